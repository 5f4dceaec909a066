// Package harness merges user code with a problem's evaluation harness into
// a single executable source.
package harness

import (
	"fmt"
	"strings"
)

// Compose appends the harness to the user code, bracketed by comment markers
// in the language's native single-line comment syntax. An empty harness
// (after trimming) returns the user code unchanged, byte for byte. The
// transform is pure and has no side effects.
func Compose(userCode, harnessText, commentPrefix string) string {
	if strings.TrimSpace(harnessText) == "" {
		return userCode
	}

	var b strings.Builder
	b.Grow(len(userCode) + len(harnessText) + 2*len(commentPrefix) + 32)
	b.WriteString(userCode)
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%sHARNESS START\n", commentPrefix))
	b.WriteString(harnessText)
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%sHARNESS END", commentPrefix))
	return b.String()
}
