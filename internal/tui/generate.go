package tui

import (
	"fmt"
	"strings"

	"github.com/zarlcorp/core/pkg/zstyle"
	"github.com/zarlcorp/zpass/internal/generator"
)

// class toggles in display order
const (
	classLower = iota
	classUpper
	classDigit
	classSymbol
	classCount
)

var classLabels = [classCount]string{"a-z", "A-Z", "0-9", "!@#"}

// generateModel holds the generator controls and the last output.
type generateModel struct {
	gen    *generator.Generator
	opts   generator.Options
	output string
}

func newGenerateModel(gen *generator.Generator, opts generator.Options) generateModel {
	opts.Length = generator.Clamp(opts.Length)
	return generateModel{gen: gen, opts: opts}
}

// adjustLength moves the slider by delta within the allowed bounds.
func (m generateModel) adjustLength(delta int) generateModel {
	m.opts.Length = generator.Clamp(m.opts.Length + delta)
	return m
}

// toggle flips one character class.
func (m generateModel) toggle(class int) generateModel {
	switch class {
	case classLower:
		m.opts.Lower = !m.opts.Lower
	case classUpper:
		m.opts.Upper = !m.opts.Upper
	case classDigit:
		m.opts.Digit = !m.opts.Digit
	case classSymbol:
		m.opts.Symbol = !m.opts.Symbol
	}
	return m
}

func (m generateModel) enabled(class int) bool {
	switch class {
	case classLower:
		return m.opts.Lower
	case classUpper:
		return m.opts.Upper
	case classDigit:
		return m.opts.Digit
	case classSymbol:
		return m.opts.Symbol
	}
	return false
}

// generate replaces the output. On failure the output is cleared so a stale
// password is never shown.
func (m generateModel) generate() (generateModel, error) {
	pw, err := m.gen.Generate(m.opts)
	if err != nil {
		m.output = ""
		return m, err
	}
	m.output = pw
	return m, nil
}

func (m generateModel) View(focused bool) string {
	var b strings.Builder

	label := func(s string) string {
		return zstyle.MutedText.Render(fmt.Sprintf("%-10s", s))
	}

	cursor := "  "
	if focused {
		cursor = "> "
	}

	fmt.Fprintf(&b, "  %s%s %s %d\n", cursor, label("length"), slider(m.opts.Length), m.opts.Length)

	var toggles []string
	for i := range classCount {
		box := "[ ]"
		if m.enabled(i) {
			box = "[x]"
		}
		toggles = append(toggles, fmt.Sprintf("%d %s %s", i+1, box, classLabels[i]))
	}
	fmt.Fprintf(&b, "    %s %s\n", label("classes"), strings.Join(toggles, "  "))

	out := zstyle.MutedText.Render("ctrl+g to generate")
	if m.output != "" {
		out = zstyle.Highlight.Render(m.output)
	}
	fmt.Fprintf(&b, "    %s %s\n", label("password"), out)

	return b.String()
}

// slider draws the length bar, one cell per allowed length.
func slider(n int) string {
	filled := n - generator.MinLength + 1
	total := generator.MaxLength - generator.MinLength + 1
	return "[" + strings.Repeat("=", filled) + strings.Repeat("-", total-filled) + "]"
}
