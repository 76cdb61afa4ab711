package main

import (
	"github.com/scott-cotton/cli"
)

func MainCommand() *cli.Command {
	cfg := &MainConfig{}
	sOpts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	opts := append(sOpts, &cli.Opt{
		Name:        "o",
		Description: "output file (default stdout)",
		Type:        cli.NamedFuncOpt(cfg.outOpt, "(filepath)"),
	})

	return cli.NewCommandAt(&cfg.Main, "pm").
		WithSynopsis("pm [opts] command [opts]").
		WithDescription("pm is a tool for working with path models.").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return pmMain(cfg, cc, args)
		}).
		WithSubs(
			DescribeCommand(cfg),
			ParseCommand(cfg),
			DiffCommand(cfg),
			GetCommand(cfg))
}

func DescribeCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &DescribeConfig{MainConfig: mainCfg}
	cmd := cli.NewCommand("describe").
		WithAliases("d", "desc").
		WithSynopsis("describe [models]").
		WithDescription("describe the models of a schema document").
		WithRun(func(cc *cli.Context, args []string) error {
			return describe(cfg, cc, args)
		})
	cfg.Describe = cmd
	return cmd
}

func ParseCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &ParseConfig{MainConfig: mainCfg}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	cmd := cli.NewCommand("parse").
		WithAliases("p").
		WithSynopsis("parse [opts] <model> [files]").
		WithDescription("parse input documents as a model").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return parse(cfg, cc, args)
		})
	cfg.Parse = cmd
	return cmd
}

func DiffCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &DiffConfig{MainConfig: mainCfg}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	cmd := cli.NewCommand("diff").
		WithAliases("df").
		WithSynopsis("diff [opts] <model> <id> <old> <new>").
		WithDescription("show the writes updating a stored entity from old to new").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return diff(cfg, cc, args)
		})
	cfg.Diff = cmd
	return cmd
}

func GetCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &GetConfig{MainConfig: mainCfg}
	cmd := cli.NewCommand("get").
		WithAliases("g").
		WithSynopsis("get <model> [ids]").
		WithDescription("get stored entities from the -d store document").
		WithRun(func(cc *cli.Context, args []string) error {
			return get(cfg, cc, args)
		})
	cfg.Get = cmd
	return cmd
}
