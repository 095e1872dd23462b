package recorder

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"splitverify/internal/domain"
)

func TestRecordValidSheet(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	r := New(WithClock(func() time.Time { return at }), WithIDGenerator(func() string { return "rec-1" }))

	sheet, err := domain.Sample(domain.SamplePerfect)
	require.NoError(t, err)

	rec, err := r.Record(sheet)
	require.NoError(t, err)
	assert.Equal(t, "rec-1", rec.ID)
	assert.Equal(t, at, rec.GeneratedAt)
	assert.Equal(t, domain.StatusVerified, rec.Status)
	assert.Equal(t, Digest(sheet), rec.Digest)
	assert.Len(t, rec.Digest, 64)
}

func TestRecordRejectsSheetsWithIssues(t *testing.T) {
	r := New()
	sheets := []domain.SplitSheet{
		{},
		domain.NewSplitSheet([]domain.Contributor{{Name: "A", Percentage: 100}}),
		domain.NewSplitSheet([]domain.Contributor{{Name: "A", Percentage: 99, Identifier: "1"}}),
	}
	issues, err := domain.Sample(domain.SampleIssues)
	require.NoError(t, err)
	sheets = append(sheets, issues)

	for i, sheet := range sheets {
		_, err := r.Record(sheet)
		require.Error(t, err, "sheet %d", i)
		assert.True(t, errors.Is(err, domain.ErrPrecondition), "sheet %d", i)

		var pe *domain.PreconditionError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "cannot verify a sheet with outstanding issues", pe.Msg)
	}
}

func TestRecordIDsAreUnique(t *testing.T) {
	r := New()
	sheet, err := domain.Sample(domain.SamplePerfect)
	require.NoError(t, err)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		rec, err := r.Record(sheet)
		require.NoError(t, err)
		assert.False(t, seen[rec.ID], "duplicate id %s", rec.ID)
		seen[rec.ID] = true
	}
}

func TestDigestTracksContent(t *testing.T) {
	base, err := domain.Sample(domain.SamplePerfect)
	require.NoError(t, err)
	assert.Equal(t, Digest(base), Digest(base.Clone()))

	changed := base.Clone()
	changed.Contributors[0].Percentage = 49.9
	assert.NotEqual(t, Digest(base), Digest(changed))

	reordered := base.Clone()
	reordered.Contributors[0], reordered.Contributors[1] = reordered.Contributors[1], reordered.Contributors[0]
	assert.NotEqual(t, Digest(base), Digest(reordered))

	// Length-delimited fields keep "ab"+"c" distinct from "a"+"bc".
	a := domain.NewSplitSheet([]domain.Contributor{{Name: "ab", Role: "c"}})
	b := domain.NewSplitSheet([]domain.Contributor{{Name: "a", Role: "bc"}})
	assert.NotEqual(t, Digest(a), Digest(b))
}
