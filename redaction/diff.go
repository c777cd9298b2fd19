package redaction

import (
	"fmt"

	"github.com/pmezard/go-difflib/difflib"
)

// Diff renders a unified diff between the original and redacted text of name.
// Identical texts produce an empty diff.
func Diff(name, original, redacted string) (string, error) {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(original),
		B:        difflib.SplitLines(redacted),
		FromFile: name,
		ToFile:   name + " (redacted)",
		Context:  1,
	})
	if err != nil {
		return "", fmt.Errorf("could not diff %q: %w", name, err)
	}

	return diff, nil
}
