package transcript

import "strings"

// Options controls transcript export formatting.
type Options struct {
	TrailingSpace bool
}

// Assemble joins finalized line texts with single spaces for clipboard export.
func Assemble(lines []Line, opts Options) string {
	if len(lines) == 0 {
		return ""
	}

	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		parts = append(parts, line.Text)
	}

	normalized := strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
	if normalized == "" {
		return ""
	}
	if opts.TrailingSpace {
		return normalized + " "
	}
	return normalized
}
