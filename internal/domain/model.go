package domain

import (
	"math"
	"time"
)

// Core domain models shared by the engine services. HTTP request/response
// shapes live in the http adapter; keep these free of transport concerns.

// Contributor is one royalty claimant on a split sheet.
type Contributor struct {
	Name       string  `json:"name" yaml:"name"`
	Role       string  `json:"role" yaml:"role"`
	Percentage float64 `json:"percentage" yaml:"percentage"`
	Identifier string  `json:"identifier" yaml:"identifier"` // IPI/ISWC, may be empty or "invalid"
}

// SplitSheet is the ordered set of contributors for a single work.
type SplitSheet struct {
	Contributors []Contributor `json:"contributors"`
}

// NewSplitSheet copies rows into a new sheet.
func NewSplitSheet(rows []Contributor) SplitSheet {
	return SplitSheet{Contributors: append([]Contributor(nil), rows...)}
}

// TotalPercentage sums every contributor's share.
func (s SplitSheet) TotalPercentage() float64 {
	var total float64
	for _, c := range s.Contributors {
		total += c.Percentage
	}
	return total
}

// Clone returns a sheet that shares no backing array with s.
func (s SplitSheet) Clone() SplitSheet {
	if s.Contributors == nil {
		return SplitSheet{}
	}
	return NewSplitSheet(s.Contributors)
}

func (s SplitSheet) Len() int { return len(s.Contributors) }

// IssueKind classifies a validation finding.
type IssueKind string

const (
	IssueMissingName       IssueKind = "missing_name"
	IssueMissingIdentifier IssueKind = "missing_identifier"
	IssueInvalidPercentage IssueKind = "invalid_percentage"
	IssueTotalMismatch     IssueKind = "total_mismatch"
)

// ValidationIssue is a user-actionable finding. ContributorIndex is 0-based and
// nil for sheet-level issues.
type ValidationIssue struct {
	Kind             IssueKind `json:"kind"`
	ContributorIndex *int      `json:"contributorIndex,omitempty"`
	Message          string    `json:"message"`
}

// ForContributor reports whether the issue is attached to contributor i.
func (v ValidationIssue) ForContributor(i int) bool {
	return v.ContributorIndex != nil && *v.ContributorIndex == i
}

type VerificationStatus string

const StatusVerified VerificationStatus = "verified"

// VerificationRecord asserts that a sheet had zero issues at GeneratedAt.
// Digest is a content hash of the sheet; ID is unique per record.
type VerificationRecord struct {
	ID          string             `json:"id"`
	Digest      string             `json:"digest"`
	GeneratedAt time.Time          `json:"generatedAt"`
	Status      VerificationStatus `json:"status"`
}

// PaymentLine is one contributor's computed payout.
type PaymentLine struct {
	Name       string  `json:"name"`
	Role       string  `json:"role"`
	Percentage float64 `json:"percentage"`
	GrossShare float64 `json:"grossShare"`
	TaxShare   float64 `json:"taxShare"`
	NetShare   float64 `json:"netShare"`
}

// PaymentSummary carries the headline totals shown next to the lines.
type PaymentSummary struct {
	GrossAmount float64 `json:"grossAmount"`
	TaxRate     float64 `json:"taxRate"`
	TaxAmount   float64 `json:"taxAmount"`
	NetAmount   float64 `json:"netAmount"`
	LineGross   float64 `json:"lineGross"`
	LineTax     float64 `json:"lineTax"`
	LineNet     float64 `json:"lineNet"`
}

// SumTolerance is the allowed distance between a sheet total and 100.
const SumTolerance = 0.1

// TotalWithinTolerance reports whether total is acceptably close to 100.
func TotalWithinTolerance(total float64) bool {
	return math.Abs(total-100) <= SumTolerance
}

// CloneIssues deep-copies issues, including contributor indexes.
func CloneIssues(issues []ValidationIssue) []ValidationIssue {
	if issues == nil {
		return nil
	}
	out := make([]ValidationIssue, len(issues))
	for i, is := range issues {
		out[i] = is
		if is.ContributorIndex != nil {
			idx := *is.ContributorIndex
			out[i].ContributorIndex = &idx
		}
	}
	return out
}
