package main

import (
	"context"
	"fmt"

	"github.com/signadot/pathmodel/autoid"
	"github.com/signadot/pathmodel/pipeline"

	"github.com/scott-cotton/cli"
)

func parse(cfg *ParseConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Parse.Parse(cc, args)
	if err != nil {
		cfg.Parse.Usage(cc, err)
		return cli.ExitCodeErr(1)
	}
	if len(args) == 0 {
		return fmt.Errorf("%w: parse requires a model name", cli.ErrUsage)
	}
	name, files := args[0], args[1:]
	if len(files) == 0 {
		files = []string{"-"}
	}
	var ids pipeline.IDProvider
	if cfg.UUID {
		ids = autoid.UUID{}
	}
	ws, err := cfg.open(ids)
	if err != nil {
		return err
	}
	ctx := context.Background()
	for i, file := range files {
		raw, err := getObjFile(cc, file)
		if err != nil {
			return err
		}
		v, err := ws.s.Pipeline().Parse(ctx, name, raw, cfg.parseOpts()...)
		if err != nil {
			return fmt.Errorf("error parsing %s: %w", file, err)
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
