package store

import (
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// CodeAlphabet is the set of characters room codes are drawn from.
	CodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	CodeLength   = 6
)

// CodeGenerator draws a candidate room code.
type CodeGenerator func() (string, error)

// RandomCode returns a fresh CodeLength-character code.
func RandomCode() (string, error) {
	return gonanoid.Generate(CodeAlphabet, CodeLength)
}

// NormalizeCode trims and upper-cases user input so codes are matched
// case-insensitively.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
