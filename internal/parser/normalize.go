package parser

import "strings"

var lineReplacer = strings.NewReplacer(
	"\u00a0", " ",
	"\u2013", "-",
	"\u2014", "-",
	"\u2212", "-",
	"\r", "",
	"\t", " ",
)

// normalizeLine maps PDF-extraction artefacts to plain ASCII separators.
func normalizeLine(s string) string {
	return strings.TrimSpace(lineReplacer.Replace(s))
}

// splitLines breaks raw text into normalised lines, keeping blank lines
// because the block collector counts them.
func splitLines(raw string) []string {
	parts := strings.Split(raw, "\n")
	lines := make([]string, len(parts))
	for i, p := range parts {
		lines[i] = normalizeLine(p)
	}
	return lines
}
