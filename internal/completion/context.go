package completion

import "strings"

// CursorContext describes the text surrounding a completion position.
type CursorContext struct {
	// Word is the identifier-like run ending at the cursor, dots
	// included ("os.pa" when completing os.pa|).
	Word string

	// WordStart is the byte offset where Word begins.
	WordStart int

	// DotPrefix is Word through its final dot ("os." for "os.pa"),
	// empty when the word carries no member access.
	DotPrefix string

	// InString reports whether the cursor sits inside a quoted string
	// on its line.
	InString bool
}

// AnalyzeCursor inspects the code around a byte offset. Only the cursor's
// own line matters: Python string literals relevant to path completion do
// not span lines, and the kernel re-tokenizes the full cell anyway.
func AnalyzeCursor(code string, cursor int) CursorContext {
	if cursor < 0 {
		cursor = 0
	}
	if cursor > len(code) {
		cursor = len(code)
	}
	lineStart := strings.LastIndexByte(code[:cursor], '\n') + 1

	start := cursor
	for start > lineStart && isWordByte(code[start-1]) {
		start--
	}

	ctx := CursorContext{
		Word:      code[start:cursor],
		WordStart: start,
		InString:  insideString(code[lineStart:cursor]),
	}
	if i := strings.LastIndexByte(ctx.Word, '.'); i >= 0 {
		ctx.DotPrefix = ctx.Word[:i+1]
	}
	return ctx
}

func isWordByte(b byte) bool {
	return b == '_' || b == '.' ||
		('a' <= b && b <= 'z') ||
		('A' <= b && b <= 'Z') ||
		('0' <= b && b <= '9')
}

// insideString reports whether an unterminated quote precedes the end of
// the given line prefix.
func insideString(prefix string) bool {
	var quote byte
	for i := 0; i < len(prefix); i++ {
		c := prefix[i]
		if c == '\\' && quote != 0 {
			i++ // skip the escaped character
			continue
		}
		switch {
		case quote == 0 && (c == '\'' || c == '"'):
			quote = c
		case c == quote:
			quote = 0
		}
	}
	return quote != 0
}
