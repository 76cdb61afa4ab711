package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/scott-cotton/cli"
)

// pmMain dispatches to the subcommand named by the first argument.
// Every subcommand works on a schema, so -s is checked here.
func pmMain(cfg *MainConfig, cc *cli.Context, args []string) error {
	defer func() {
		if cfg.CloseOut != nil {
			cfg.CloseOut()
		}
	}()
	args, err := cfg.Main.Parse(cc, args)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return cli.ErrNoCommandProvided
	}
	sub := cfg.Main.FindSub(cc, args[0])
	if sub == nil {
		return fmt.Errorf("%w: %q not found", cli.ErrNoSuchCommand, args[0])
	}
	if cfg.Schema == "" {
		return fmt.Errorf("%w: %s needs a schema document (-s)", cli.ErrUsage, args[0])
	}
	if _, err := os.Stat(cfg.Schema); err != nil {
		return fmt.Errorf("schema %s: %w", cfg.Schema, err)
	}
	err = sub.Run(cc, args[1:])
	if errors.Is(err, cli.ErrUsage) {
		sub.Usage(cc, err)
		return cli.ExitCodeErr(sub.Exit(cc, err))
	}
	return err
}

// outOpt redirects command output to a file, "-" meaning stdout.
func (cfg *MainConfig) outOpt(cc *cli.Context, path string) (any, error) {
	cfg.Out = path
	if path == "-" {
		return nil, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("could not open output %s: %w", path, err)
	}
	cc.Out = f
	cfg.CloseOut = f.Close
	return nil, nil
}
