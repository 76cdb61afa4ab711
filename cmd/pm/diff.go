package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/signadot/pathmodel/pipeline"
	"github.com/signadot/pathmodel/update"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/scott-cotton/cli"
)

func diff(cfg *DiffConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Diff.Parse(cc, args)
	if err != nil {
		cfg.Diff.Usage(cc, err)
		return cli.ExitCodeErr(1)
	}
	if len(args) != 4 {
		return fmt.Errorf("%w: diff requires 4 args, got %v", cli.ErrUsage, args)
	}
	name, id := args[0], args[1]
	old, err := getObjFile(cc, args[2])
	if err != nil {
		return err
	}
	raw, err := getObjFile(cc, args[3])
	if err != nil {
		return err
	}
	ws, err := cfg.open(nil)
	if err != nil {
		return err
	}
	ctx := context.Background()
	next, err := ws.s.Pipeline().Parse(ctx, name, raw,
		pipeline.KeepNull(), pipeline.OldSnapshot(old), pipeline.NewSnapshot(raw))
	if err != nil {
		return fmt.Errorf("error parsing %s: %w", args[3], err)
	}
	if cfg.Merge {
		return mergePatch(cfg, cc, old, next)
	}
	b := update.New(ws.reg, ws.st, update.WithReplacers(ws.repl), update.WithLogger(cfg.logger()))
	writes, err := b.Update(ctx, name, id, old, next)
	if err != nil {
		return err
	}
	if len(writes) == 0 {
		return nil
	}
	prior := func(path string) any {
		v, err := ws.st.Read(ctx, path)
		if err != nil {
			return nil
		}
		return v
	}
	if err := printWrites(cc.Out, writes, prior, newPalette(cfg.colors(cc.Out))); err != nil {
		return err
	}
	return cli.ExitCodeErr(1)
}

// mergePatch prints the json merge patch turning old into next.
func mergePatch(cfg *DiffConfig, cc *cli.Context, old, next any) error {
	od, err := json.Marshal(old)
	if err != nil {
		return err
	}
	nd, err := json.Marshal(next)
	if err != nil {
		return err
	}
	patch, err := jsonpatch.CreateMergePatch(od, nd)
	if err != nil {
		return fmt.Errorf("error creating merge patch: %w", err)
	}
	if bytes.Equal(patch, []byte("{}")) {
		return nil
	}
	var v any
	if err := json.Unmarshal(patch, &v); err != nil {
		return err
	}
	if err := cfg.encode(cc.Out, v); err != nil {
		return err
	}
	return cli.ExitCodeErr(1)
}
