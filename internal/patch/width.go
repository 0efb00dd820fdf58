package patch

import (
	"fmt"
	"strings"
)

// Width is the number of bytes an edit writes. It governs both the size of
// the memory write and the range of values an edit may carry.
type Width uint8

const (
	Byte  Width = 1
	Half  Width = 2
	Word  Width = 4
	DWord Width = 8
)

// widthTokens is the closed set of size tokens accepted in patch files.
// Both the descriptive names and the big-endian type names seen in
// existing patch collections resolve to the same widths.
var widthTokens = map[string]Width{
	"byte":  Byte,
	"be8":   Byte,
	"half":  Half,
	"be16":  Half,
	"word":  Word,
	"be32":  Word,
	"dword": DWord,
	"be64":  DWord,
}

// ParseWidth resolves a size token to a Width. Matching is case-insensitive.
func ParseWidth(token string) (Width, error) {
	w, ok := widthTokens[strings.ToLower(strings.TrimSpace(token))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnrecognizedWidth, token)
	}
	return w, nil
}

// Valid reports whether w is one of the four supported widths.
func (w Width) Valid() bool {
	switch w {
	case Byte, Half, Word, DWord:
		return true
	}
	return false
}

// Bytes returns the byte count of w.
func (w Width) Bytes() int {
	return int(w)
}

// Max returns the largest value representable in w bytes.
func (w Width) Max() uint64 {
	if w >= DWord {
		return ^uint64(0)
	}
	return uint64(1)<<(8*uint(w)) - 1
}

func (w Width) String() string {
	switch w {
	case Byte:
		return "byte"
	case Half:
		return "half"
	case Word:
		return "word"
	case DWord:
		return "dword"
	}
	return fmt.Sprintf("width(%d)", uint8(w))
}
