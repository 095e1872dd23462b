package validator

import (
	"fmt"
	"strconv"
	"strings"

	"splitverify/internal/domain"
)

// Validate checks a split sheet and returns its issues in evaluation order:
// per-contributor rules first, in sheet order, then the sheet total.
// An empty result means the sheet is valid.
func Validate(sheet domain.SplitSheet) []domain.ValidationIssue {
	var issues []domain.ValidationIssue
	var total float64

	for i, c := range sheet.Contributors {
		total += c.Percentage
		label := displayName(c)

		if blank(c.Name) {
			issues = append(issues, contributorIssue(i, domain.IssueMissingName,
				fmt.Sprintf("Contributor %d missing name", i+1)))
		}
		if blank(c.Identifier) {
			issues = append(issues, contributorIssue(i, domain.IssueMissingIdentifier,
				fmt.Sprintf("%s missing IPI/ISWC", label)))
		}
		if c.Percentage <= 0 || c.Percentage > 100 {
			issues = append(issues, contributorIssue(i, domain.IssueInvalidPercentage,
				fmt.Sprintf("%s has invalid percentage: %s%%", label, formatPercent(c.Percentage))))
		}
	}

	if !domain.TotalWithinTolerance(total) {
		issues = append(issues, domain.ValidationIssue{
			Kind:    domain.IssueTotalMismatch,
			Message: fmt.Sprintf("Total split is %.1f%%, must equal 100%%", total),
		})
	}
	return issues
}

// Valid is shorthand for len(Validate(sheet)) == 0.
func Valid(sheet domain.SplitSheet) bool {
	return len(Validate(sheet)) == 0
}

// CountByKind tallies issues per kind.
func CountByKind(issues []domain.ValidationIssue) map[domain.IssueKind]int {
	out := make(map[domain.IssueKind]int, len(issues))
	for _, is := range issues {
		out[is.Kind]++
	}
	return out
}

func contributorIssue(i int, kind domain.IssueKind, msg string) domain.ValidationIssue {
	idx := i
	return domain.ValidationIssue{Kind: kind, ContributorIndex: &idx, Message: msg}
}

func displayName(c domain.Contributor) string {
	if c.Name == "" {
		return "Contributor"
	}
	return c.Name
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

// formatPercent renders the shortest decimal form: 60, 25.5, -5.
func formatPercent(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}
