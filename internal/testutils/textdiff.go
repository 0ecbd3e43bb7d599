package testutils

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/mcuadros/go-defaults"
)

// TestingT is the subset of testing.T the asserters report through.
type TestingT interface {
	Helper()
	Errorf(format string, args ...interface{})
}

// TextAssertOptions control how text is normalized before comparison.
type TextAssertOptions struct {
	TrimRight        bool `default:"true"` // per line
	TrimSpace        bool `default:"true"` // whole text
	SkipBlankLines   bool `default:"false"`
	ColorizeFailures bool `default:"false"`
}

type TextOption func(*TextAssertOptions)

func WithSkipBlankLines() TextOption {
	return func(o *TextAssertOptions) { o.SkipBlankLines = true }
}

func WithColorizedFailures() TextOption {
	return func(o *TextAssertOptions) { o.ColorizeFailures = true }
}

// TextAsserter compares rendered output and reports a unified diff on mismatch.
type TextAsserter struct {
	t    TestingT
	opts TextAssertOptions
}

func NewTextAsserter(t TestingT) *TextAsserter {
	a := &TextAsserter{t: t}
	defaults.SetDefaults(&a.opts)
	return a
}

func (a *TextAsserter) WithOptions(opts ...TextOption) *TextAsserter {
	for _, o := range opts {
		o(&a.opts)
	}
	return a
}

// Assert fails the test when actual differs from expected after normalization.
func (a *TextAsserter) Assert(actual, expected string) {
	a.t.Helper()
	if d := TextDiff(expected, actual, a.opts); d != "" {
		a.t.Errorf("text mismatch (-expected +actual):\n%s", d)
	}
}

// TextDiff returns a unified diff of the normalized texts, or "" when they match.
func TextDiff(expected, actual string, opts TextAssertOptions) string {
	exp, act := normalizeText(expected, opts), normalizeText(actual, opts)
	if exp == act {
		return ""
	}

	edits := myers.ComputeEdits("", exp, act)
	d := fmt.Sprint(gotextdiff.ToUnified("expected", "actual", exp, edits))
	if opts.ColorizeFailures {
		d = colorizeDiff(d)
	}
	return d
}

func normalizeText(text string, opts TextAssertOptions) string {
	if opts.TrimSpace {
		text = strings.TrimSpace(text)
	}
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if opts.TrimRight {
			line = strings.TrimRight(line, " \t")
		}
		if opts.SkipBlankLines && strings.TrimSpace(line) == "" {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

var diffColors = []struct {
	prefix string
	color  *color.Color
}{
	{"---", nil},
	{"+++", nil},
	{"@@", color.New(color.FgCyan)},
	{"-", color.New(color.FgRed)},
	{"+", color.New(color.FgGreen)},
}

func colorizeDiff(d string) string {
	lines := strings.Split(d, "\n")
	for i, line := range lines {
		for _, dc := range diffColors {
			if !strings.HasPrefix(line, dc.prefix) {
				continue
			}
			if dc.color != nil {
				dc.color.EnableColor()
				lines[i] = dc.color.Sprint(line)
			}
			break
		}
	}
	return strings.Join(lines, "\n")
}
