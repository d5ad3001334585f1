package ai

import (
	"regexp"
	"strings"
)

// footnotePattern matches a footnote definition at the start of a line, e.g.
// "\n[^1] Some reference".
var footnotePattern = regexp.MustCompile(`\n\[\^\d+\]\s`)

// TrimFootnotes removes a trailing footnote list from Markdown content. It
// cuts at the first footnote definition, backing up to the last "---"
// separator before it when one exists.
func TrimFootnotes(content string) string {
	loc := footnotePattern.FindStringIndex(content)
	if loc == nil {
		return content
	}

	beforeFootnote := content[:loc[0]]
	if sep := strings.LastIndex(beforeFootnote, "\n---"); sep != -1 {
		return strings.TrimSpace(beforeFootnote[:sep])
	}
	return strings.TrimSpace(beforeFootnote)
}

// streamTrimmer suppresses footnote content on the fly. Detection is
// per-chunk: once a chunk contains a footnote definition, the part before it
// is emitted and everything after, including all later chunks, is dropped.
type streamTrimmer struct {
	footnotesStarted bool
}

// next returns the portion of chunk that should be forwarded.
func (t *streamTrimmer) next(chunk string) string {
	if t.footnotesStarted {
		return ""
	}

	loc := footnotePattern.FindStringIndex(chunk)
	if loc == nil {
		return chunk
	}

	t.footnotesStarted = true
	beforeFootnote := chunk[:loc[0]]
	if sep := strings.LastIndex(beforeFootnote, "\n---"); sep != -1 {
		return chunk[:sep]
	}
	return beforeFootnote
}
