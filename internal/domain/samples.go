package domain

import "fmt"

// SampleKind names one of the built-in demo sheets.
type SampleKind string

const (
	SamplePerfect SampleKind = "perfect"
	SampleIssues  SampleKind = "issues"
)

var perfectSample = []Contributor{
	{Name: "Drik Svensson", Role: "Composer", Percentage: 50, Identifier: "00624789341"},
	{Name: "Anna Deng", Role: "Lyricist", Percentage: 30, Identifier: "00472915682"},
	{Name: "Lars Johansson", Role: "Producer", Percentage: 20, Identifier: "00836125497"},
}

// Missing identifier, missing name, an "invalid" marker and a 115% total.
var issuesSample = []Contributor{
	{Name: "Drik Svensson", Role: "Composer", Percentage: 60, Identifier: ""},
	{Name: "", Role: "Lyricist", Percentage: 25, Identifier: "00472915682"},
	{Name: "Lars Johansson", Role: "Producer", Percentage: 20, Identifier: "invalid"},
	{Name: "Extra", Role: "Writer", Percentage: 10, Identifier: ""},
}

// Sample returns a fresh copy of the named demo sheet.
func Sample(kind SampleKind) (SplitSheet, error) {
	switch kind {
	case SamplePerfect:
		return NewSplitSheet(perfectSample), nil
	case SampleIssues:
		return NewSplitSheet(issuesSample), nil
	default:
		return SplitSheet{}, fmt.Errorf("unknown sample %q: %w", kind, ErrNotFound)
	}
}
