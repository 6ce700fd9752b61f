package common

import (
	"fmt"
	"strings"
)

// FormatFileSize renders a byte count with a binary unit suffix
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}

// FormatPermissions renders section permissions in rwx order
func FormatPermissions(executable, readable, writable bool) string {
	var b strings.Builder
	for _, p := range []struct {
		set bool
		c   byte
	}{{readable, 'r'}, {writable, 'w'}, {executable, 'x'}} {
		if p.set {
			b.WriteByte(p.c)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}

// TruncateString shortens s to at most n runes, marking the cut with "…"
func TruncateString(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

// FormatHex renders v as 0x-prefixed hex padded to width digits
func FormatHex(v uint64, width int) string {
	return fmt.Sprintf("0x%0*X", width, v)
}

// Field is one labelled line of a text report.
type Field struct {
	Label string
	Value string
}

// FormatSection formats a titled block of aligned label/value lines with
// the same banner style used across the text reports.
func FormatSection(title string, fields []Field) string {
	var result strings.Builder
	result.WriteString(title + "\n")
	result.WriteString(strings.Repeat("═", len([]rune(title))) + "\n")

	width := 0
	for _, f := range fields {
		if len(f.Label) > width {
			width = len(f.Label)
		}
	}
	for _, f := range fields {
		result.WriteString(fmt.Sprintf("%-*s %s\n", width+1, f.Label+":", f.Value))
	}
	return result.String()
}
