package utils

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// StringHelper provides string utility functions.
type StringHelper struct{}

// NewStringHelper creates a new string helper.
func NewStringHelper() *StringHelper {
	return &StringHelper{}
}

// NormalizeWhitespace replaces multiple whitespace with single space.
func (s *StringHelper) NormalizeWhitespace(str string) string {
	return strings.Join(strings.Fields(str), " ")
}

// TruncateWidth truncates str to at most maxWidth terminal columns,
// counting wide (CJK) characters as two.
func (s *StringHelper) TruncateWidth(str string, maxWidth int) string {
	if runewidth.StringWidth(str) <= maxWidth {
		return str
	}

	return runewidth.Truncate(str, maxWidth, "...")
}

// PathSegment turns a free-text query into a single safe path element.
func (s *StringHelper) PathSegment(str string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "\x00", "")

	seg := strings.TrimSpace(replacer.Replace(str))
	if seg == "" || seg == "." || seg == ".." {
		return "_"
	}

	return seg
}
