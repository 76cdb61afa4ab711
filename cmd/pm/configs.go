package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/signadot/pathmodel/autoid"
	"github.com/signadot/pathmodel/model"
	"github.com/signadot/pathmodel/pipeline"
	"github.com/signadot/pathmodel/session"
	"github.com/signadot/pathmodel/store"

	"github.com/goccy/go-yaml"
	"github.com/mattn/go-isatty"
	"github.com/scott-cotton/cli"
)

type MainConfig struct {
	Schema  string `cli:"name=s aliases=schema desc='schema document or directory'"`
	Data    string `cli:"name=d aliases=data desc='json store document'"`
	Y       bool   `cli:"name=y aliases=yaml desc='output yaml instead of json'"`
	Color   bool   `cli:"name=color desc='output with color'"`
	Verbose bool   `cli:"name=v desc='log debug messages'"`

	Out      string
	CloseOut func() error

	Main *cli.Command
}

func (cfg *MainConfig) logger() *slog.Logger {
	lvl := slog.LevelWarn
	if cfg.Verbose {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// schema loads the -s document into a fresh registry.
func (cfg *MainConfig) schema() (*model.Registry, *store.Replacers, error) {
	if cfg.Schema == "" {
		return nil, nil, fmt.Errorf("%w: a schema (-s) is required", cli.ErrUsage)
	}
	doc, err := model.OpenDocument(cfg.Schema)
	if err != nil {
		return nil, nil, err
	}
	reg := model.NewRegistry(model.WithLogger(cfg.logger()))
	if err := doc.Register(reg); err != nil {
		return nil, nil, fmt.Errorf("could not register %s: %w", cfg.Schema, err)
	}
	repl, err := store.NewReplacers(doc.Replacers)
	if err != nil {
		return nil, nil, fmt.Errorf("%s replacers: %w", cfg.Schema, err)
	}
	return reg, repl, nil
}

func (cfg *MainConfig) store() (*store.Memory, error) {
	opts := []store.MemoryOption{store.WithLogger(cfg.logger())}
	if cfg.Data != "" {
		d, err := os.ReadFile(cfg.Data)
		if err != nil {
			return nil, err
		}
		if !json.Valid(d) {
			return nil, fmt.Errorf("%s is not a json document", cfg.Data)
		}
		opts = append(opts, store.WithDocument(d))
	}
	return store.NewMemory(opts...), nil
}

// workspace is what a command runs against: the -s schema and the -d
// store behind a session.
type workspace struct {
	reg  *model.Registry
	repl *store.Replacers
	st   *store.Memory
	s    *session.Session
}

func (cfg *MainConfig) open(ids pipeline.IDProvider) (*workspace, error) {
	reg, repl, err := cfg.schema()
	if err != nil {
		return nil, err
	}
	st, err := cfg.store()
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = autoid.NewSequence()
	}
	s := session.New(reg, st,
		session.WithReplacers(repl),
		session.WithIDs(ids),
		session.WithLogger(cfg.logger()))
	return &workspace{reg: reg, repl: repl, st: st, s: s}, nil
}

// colors reports whether output to w is coloured: -color when given,
// otherwise whether w is a terminal.
func (cfg *MainConfig) colors(w io.Writer) bool {
	for _, opt := range cfg.Main.Opts {
		if opt.Name != "color" {
			continue
		}
		if opt.Value != nil {
			return cfg.Color
		}
		break
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd())
}

// encode writes v as json, or yaml with -y.
func (cfg *MainConfig) encode(w io.Writer, v any) error {
	var (
		d   []byte
		err error
	)
	if cfg.Y {
		d, err = yaml.Marshal(v)
	} else {
		d, err = json.MarshalIndent(v, "", "  ")
		d = append(d, '\n')
	}
	if err != nil {
		return err
	}
	_, err = w.Write(d)
	return err
}

type DescribeConfig struct {
	*MainConfig

	Describe *cli.Command
}

type ParseConfig struct {
	*MainConfig
	KeepNull bool `cli:"name=n aliases=keepnull desc='keep missing optional fields as null'"`
	Getter   bool `cli:"name=getter desc='parse as stored data'"`
	Raw      bool `cli:"name=raw desc='copy references through without loading'"`
	UUID     bool `cli:"name=uuid desc='generate uuid item ids'"`

	Parse *cli.Command
}

func (cfg *ParseConfig) parseOpts() []pipeline.ParseOption {
	var res []pipeline.ParseOption
	if cfg.KeepNull {
		res = append(res, pipeline.KeepNull())
	}
	if cfg.Getter {
		res = append(res, pipeline.Getter())
	}
	if cfg.Raw {
		res = append(res, pipeline.RawPassthrough())
	}
	return res
}

type DiffConfig struct {
	*MainConfig
	Merge bool `cli:"name=merge desc='show the json merge patch instead of the writes'"`

	Diff *cli.Command
}

type GetConfig struct {
	*MainConfig

	Get *cli.Command
}
