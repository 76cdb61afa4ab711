package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/signadot/pathmodel/store"

	"github.com/fatih/color"
)

type palette struct {
	path, value, del, name, kind func(a ...any) string
}

func newPalette(on bool) *palette {
	if !on {
		return &palette{path: fmt.Sprint, value: fmt.Sprint, del: fmt.Sprint, name: fmt.Sprint, kind: fmt.Sprint}
	}
	mk := func(attrs ...color.Attribute) func(a ...any) string {
		c := color.New(attrs...)
		c.EnableColor()
		return c.SprintFunc()
	}
	return &palette{
		path:  mk(color.FgCyan),
		value: mk(color.FgGreen),
		del:   mk(color.FgRed),
		name:  mk(color.FgYellow, color.Bold),
		kind:  mk(color.Faint),
	}
}

// printWrites writes one "path = value" line per write, in path order.
// When prior yields a string for a path written with a string, a line
// "path ~ edits" shows the character edits instead. prior may be nil.
func printWrites(w io.Writer, ws store.Writes, prior func(path string) any, p *palette) error {
	for _, path := range ws.Paths() {
		v := ws[path]
		if s, ok := v.(string); ok && prior != nil {
			if was, ok := prior(path).(string); ok {
				if line, ok := editLine(was, s, p); ok {
					if _, err := fmt.Fprintf(w, "%s ~ %s\n", p.path(path), line); err != nil {
						return err
					}
					continue
				}
			}
		}
		var val string
		if v == nil {
			val = p.del("null")
		} else {
			d, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			val = p.value(string(d))
		}
		if _, err := fmt.Fprintf(w, "%s = %s\n", p.path(path), val); err != nil {
			return err
		}
	}
	return nil
}
