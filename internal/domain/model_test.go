package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleReturnsFreshCopies(t *testing.T) {
	a, err := Sample(SamplePerfect)
	require.NoError(t, err)
	assert.Equal(t, 3, a.Len())
	assert.Equal(t, 100.0, a.TotalPercentage())

	a.Contributors[0].Name = "changed"
	b, err := Sample(SamplePerfect)
	require.NoError(t, err)
	assert.Equal(t, "Drik Svensson", b.Contributors[0].Name)

	issues, err := Sample(SampleIssues)
	require.NoError(t, err)
	assert.Equal(t, 115.0, issues.TotalPercentage())

	_, err = Sample("unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCloneIsIndependent(t *testing.T) {
	s := NewSplitSheet([]Contributor{{Name: "A", Percentage: 100}})
	c := s.Clone()
	c.Contributors[0].Percentage = 1
	assert.Equal(t, 100.0, s.Contributors[0].Percentage)
	assert.Nil(t, SplitSheet{}.Clone().Contributors)
}

func TestTotalWithinTolerance(t *testing.T) {
	assert.True(t, TotalWithinTolerance(100))
	assert.True(t, TotalWithinTolerance(99.95))
	assert.True(t, TotalWithinTolerance(100.05))
	assert.False(t, TotalWithinTolerance(100.2))
	assert.False(t, TotalWithinTolerance(0))
}

func TestCloneIssues(t *testing.T) {
	idx := 2
	in := []ValidationIssue{{Kind: IssueMissingName, ContributorIndex: &idx}, {Kind: IssueTotalMismatch}}
	out := CloneIssues(in)
	*out[0].ContributorIndex = 7
	assert.Equal(t, 2, idx)
	assert.True(t, in[0].ForContributor(2))
	assert.False(t, in[1].ForContributor(0))
	assert.Nil(t, CloneIssues(nil))
}

func TestPreconditionError(t *testing.T) {
	err := NewPreconditionError("record", "sheet has issues")
	assert.EqualError(t, err, "record: sheet has issues")
	assert.True(t, errors.Is(err, ErrPrecondition))
	var pe *PreconditionError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "record", pe.Op)
}
