package tui

import (
	"github.com/pmezard/go-difflib/difflib"
)

// ChunkDiff returns a unified diff between two versions of an output file,
// or "" when they are equal.
func ChunkDiff(name string, before, after []byte) (string, error) {
	if string(before) == string(after) {
		return "", nil
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(before)),
		B:        difflib.SplitLines(string(after)),
		FromFile: "a/" + name,
		ToFile:   "b/" + name,
		Context:  2,
	})
}
