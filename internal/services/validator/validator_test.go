package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"splitverify/internal/domain"
)

func sample(t *testing.T, kind domain.SampleKind) domain.SplitSheet {
	t.Helper()
	sheet, err := domain.Sample(kind)
	require.NoError(t, err)
	return sheet
}

func TestValidatePerfectSample(t *testing.T) {
	assert.Empty(t, Validate(sample(t, domain.SamplePerfect)))
	assert.True(t, Valid(sample(t, domain.SamplePerfect)))
}

func TestValidateIssuesSample(t *testing.T) {
	issues := Validate(sample(t, domain.SampleIssues))
	require.Len(t, issues, 4)

	want := []struct {
		kind    domain.IssueKind
		index   int
		message string
	}{
		{domain.IssueMissingIdentifier, 0, "Drik Svensson missing IPI/ISWC"},
		{domain.IssueMissingName, 1, "Contributor 2 missing name"},
		{domain.IssueMissingIdentifier, 3, "Extra missing IPI/ISWC"},
		{domain.IssueTotalMismatch, -1, "Total split is 115.0%, must equal 100%"},
	}
	for i, w := range want {
		assert.Equal(t, w.kind, issues[i].Kind, "issue %d", i)
		assert.Equal(t, w.message, issues[i].Message, "issue %d", i)
		if w.index < 0 {
			assert.Nil(t, issues[i].ContributorIndex)
		} else {
			require.NotNil(t, issues[i].ContributorIndex)
			assert.Equal(t, w.index, *issues[i].ContributorIndex)
		}
	}

	// The "invalid" marker only matters to the auto-fixer.
	for _, is := range issues {
		assert.False(t, is.ForContributor(2), "Lars should not be flagged: %s", is.Message)
	}
}

func TestValidateRules(t *testing.T) {
	tests := []struct {
		name     string
		rows     []domain.Contributor
		wantMsgs []string
	}{
		{
			name: "whitespace name and identifier",
			rows: []domain.Contributor{{Name: "  ", Percentage: 100, Identifier: "\t"}},
			wantMsgs: []string{
				"Contributor 1 missing name",
				"   missing IPI/ISWC",
			},
		},
		{
			name: "empty name falls back to label",
			rows: []domain.Contributor{{Name: "", Percentage: 100, Identifier: ""}},
			wantMsgs: []string{
				"Contributor 1 missing name",
				"Contributor missing IPI/ISWC",
			},
		},
		{
			name: "zero and negative percentages",
			rows: []domain.Contributor{
				{Name: "A", Percentage: 0, Identifier: "1"},
				{Name: "B", Percentage: -5, Identifier: "2"},
				{Name: "C", Percentage: 105, Identifier: "3"},
			},
			wantMsgs: []string{
				"A has invalid percentage: 0%",
				"B has invalid percentage: -5%",
				"C has invalid percentage: 105%",
			},
		},
		{
			name:     "fractional percentage renders shortest form",
			rows:     []domain.Contributor{{Name: "A", Percentage: 100.5, Identifier: "1"}},
			wantMsgs: []string{"A has invalid percentage: 100.5%", "Total split is 100.5%, must equal 100%"},
		},
		{
			name: "total within tolerance",
			rows: []domain.Contributor{
				{Name: "A", Percentage: 50, Identifier: "1"},
				{Name: "B", Percentage: 25, Identifier: "2"},
				{Name: "C", Percentage: 25.05, Identifier: "3"},
			},
		},
		{
			name: "total just outside tolerance",
			rows: []domain.Contributor{
				{Name: "A", Percentage: 50, Identifier: "1"},
				{Name: "B", Percentage: 49.8, Identifier: "2"},
			},
			wantMsgs: []string{"Total split is 99.8%, must equal 100%"},
		},
		{
			name:     "empty sheet",
			rows:     nil,
			wantMsgs: []string{"Total split is 0.0%, must equal 100%"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues := Validate(domain.NewSplitSheet(tt.rows))
			var got []string
			for _, is := range issues {
				got = append(got, is.Message)
			}
			assert.Equal(t, tt.wantMsgs, got)
		})
	}
}

func TestValidateIsIdempotent(t *testing.T) {
	sheet := sample(t, domain.SampleIssues)
	first := Validate(sheet)
	second := Validate(sheet)
	assert.Equal(t, first, second)
	assert.Equal(t, sample(t, domain.SampleIssues), sheet, "validation must not touch the sheet")
}

func TestCountByKind(t *testing.T) {
	counts := CountByKind(Validate(sample(t, domain.SampleIssues)))
	assert.Equal(t, map[domain.IssueKind]int{
		domain.IssueMissingIdentifier: 2,
		domain.IssueMissingName:       1,
		domain.IssueTotalMismatch:     1,
	}, counts)
}
