package main

import (
	"context"
	"fmt"

	"github.com/scott-cotton/cli"
)

func get(cfg *GetConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Get.Parse(cc, args)
	if err != nil {
		cfg.Get.Usage(cc, err)
		return cli.ExitCodeErr(1)
	}
	if len(args) == 0 {
		return fmt.Errorf("%w: get requires a model name", cli.ErrUsage)
	}
	ws, err := cfg.open(nil)
	if err != nil {
		return err
	}
	name, ids := args[0], args[1:]
	if len(ids) == 0 {
		ids = []string{""}
	}
	ctx := context.Background()
	for i, id := range ids {
		v, err := ws.s.Get(ctx, name, id)
		if err != nil {
			return err
		}
		if i > 0 {
			if _, err := cc.Out.Write([]byte("---\n")); err != nil {
				return err
			}
		}
		if err := cfg.encode(cc.Out, v); err != nil {
			return err
		}
	}
	return nil
}
