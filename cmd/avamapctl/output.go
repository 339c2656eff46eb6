package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/vyrodovalexey/avamapper/internal/engine"
)

type printer struct {
	out    io.Writer
	errOut io.Writer

	pass  *color.Color
	fail  *color.Color
	warn  *color.Color
	name  *color.Color
	faint *color.Color
}

func newPrinter(out, errOut io.Writer, noColor bool) *printer {
	p := &printer{
		out:    out,
		errOut: errOut,
		pass:   color.New(color.FgGreen, color.Bold),
		fail:   color.New(color.FgRed, color.Bold),
		warn:   color.New(color.FgYellow),
		name:   color.New(color.FgCyan),
		faint:  color.New(color.Faint),
	}
	if noColor {
		for _, c := range []*color.Color{p.pass, p.fail, p.warn, p.name, p.faint} {
			c.DisableColor()
		}
	}
	return p
}

// warnings lists per-rule failures on the error stream.
func (p *printer) warnings(ws []engine.Warning) {
	for _, w := range ws {
		where := fmt.Sprintf("rule %d", w.RuleIndex)
		if w.SubIndex != nil {
			where += fmt.Sprintf(".%d", *w.SubIndex)
		}
		if w.TargetPath != "" {
			where += " (" + w.TargetPath + ")"
		}
		fmt.Fprintf(p.errOut, "%s %s: %s [%s]\n", p.warn.Sprint("warning"), where, w.Message, w.Kind)
	}
}
