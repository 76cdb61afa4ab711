package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/signadot/pathmodel/model"

	"github.com/scott-cotton/cli"
)

func describe(cfg *DescribeConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Describe.Parse(cc, args)
	if err != nil {
		cfg.Describe.Usage(cc, err)
		return cli.ExitCodeErr(1)
	}
	reg, _, err := cfg.schema()
	if err != nil {
		return err
	}
	names := args
	if len(names) == 0 {
		names = reg.Names()
	}
	p := newPalette(cfg.colors(cc.Out))
	for i, name := range names {
		m, err := reg.Model(name)
		if err != nil {
			return err
		}
		if i > 0 {
			fmt.Fprintln(cc.Out)
		}
		if err := describeModel(cc.Out, m, p); err != nil {
			return err
		}
	}
	return nil
}

func describeModel(w io.Writer, m *model.Model, p *palette) error {
	head := fmt.Sprintf("%s %s", p.name(m.Name), p.kind("("+m.Kind.String()+")"))
	if m.IsExtractor() {
		head += " of " + m.Parent
	}
	if !m.IsParser() {
		head += fmt.Sprintf(" read=%s hasID=%t", p.path(m.Read), m.HasID)
	}
	if _, err := fmt.Fprintln(w, head); err != nil {
		return err
	}
	for _, f := range m.Fields() {
		d := f.Desc
		var attrs []string
		attrs = append(attrs, d.Kind.String())
		if d.PrimitiveType != "" {
			attrs = append(attrs, d.PrimitiveType)
		}
		if d.Model != "" {
			attrs = append(attrs, d.Bind.String()+" "+d.Model)
		}
		if d.Function != "" {
			attrs = append(attrs, d.Function+"()")
		}
		if d.Required {
			attrs = append(attrs, "required")
		}
		if d.AutoCast {
			attrs = append(attrs, "autocast")
		}
		if len(d.Params) != 0 {
			attrs = append(attrs, "params="+strings.Join(d.Params, ","))
		}
		for _, flt := range d.Filters {
			attrs = append(attrs, "|"+flt.Name)
		}
		fmt.Fprintf(w, "  %-16s %-24q %s\n", f.Path, d.Original, p.kind(strings.Join(attrs, " ")))
	}
	for _, x := range m.Extract() {
		req := ""
		if x.Required {
			req = " required"
		}
		fmt.Fprintf(w, "  %-16s <- %s%s\n", x.Output, x.Source, p.kind(req))
	}
	for _, wp := range m.Writes() {
		line := "  => " + p.path(wp.Ref)
		if wp.IsQuery() {
			line += fmt.Sprintf(" where %s = id, under %s", wp.QueryOn, wp.WriteChild)
		}
		if wp.Model != "" {
			line += " as " + wp.Model
		}
		if wp.ReferenceModel != "" {
			line += " ref " + wp.ReferenceModel
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
