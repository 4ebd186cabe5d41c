package lsp

import "strings"

// applyChanges folds content changes into text in order. A change without a
// range replaces the whole document.
func applyChanges(text string, changes []textDocumentContentChangeEvent) string {
	for _, ch := range changes {
		if ch.Range == nil {
			text = ch.Text
			continue
		}
		start := offsetAt(text, ch.Range.Start)
		end := offsetAt(text, ch.Range.End)
		if end < start {
			start, end = end, start
		}
		text = text[:start] + ch.Text + text[end:]
	}
	return text
}

// offsetAt converts a UTF-16 based position to a byte offset, clamped to
// the end of its line and of the text.
func offsetAt(text string, p position) int {
	i := 0
	for line := uint32(0); line < p.Line; line++ {
		nl := strings.IndexByte(text[i:], '\n')
		if nl < 0 {
			return len(text)
		}
		i += nl + 1
	}
	var units uint32
	for j, r := range text[i:] {
		if units >= p.Character || r == '\n' {
			return i + j
		}
		if r >= 0x10000 {
			units += 2
		} else {
			units++
		}
	}
	return len(text)
}
