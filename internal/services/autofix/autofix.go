package autofix

import (
	"fmt"
	"math"
	"strings"

	"splitverify/internal/domain"
)

// Marker written over missing or rejected identifiers.
const GeneratedIdentifier = "Auto-generated"

const invalidIdentifier = "invalid"

// AutoFix returns a repaired copy of sheet. The input is never modified.
//
// Repairs, in order: placeholder names, placeholder identifiers, then a
// proportional rescale of percentages to one decimal when the total is off by
// more than the tolerance. A zero total is left alone. The result is not
// guaranteed valid; callers re-run the validator.
func AutoFix(sheet domain.SplitSheet) domain.SplitSheet {
	fixed := sheet.Clone()
	rows := fixed.Contributors

	for i := range rows {
		if strings.TrimSpace(rows[i].Name) == "" {
			rows[i].Name = fmt.Sprintf("Contributor %d", i+1)
		}
	}
	for i := range rows {
		id := strings.TrimSpace(rows[i].Identifier)
		if id == "" || id == invalidIdentifier {
			rows[i].Identifier = GeneratedIdentifier
		}
	}

	total := fixed.TotalPercentage()
	if domain.TotalWithinTolerance(total) || total == 0 {
		return fixed
	}
	factor := 100 / total
	for i := range rows {
		rows[i].Percentage = round1(rows[i].Percentage * factor)
	}

	// Rounding each share can leave the sum outside tolerance on long sheets.
	if after := fixed.TotalPercentage(); !domain.TotalWithinTolerance(after) {
		j := largestShare(rows)
		rows[j].Percentage = round1(rows[j].Percentage + (100 - after))
	}
	return fixed
}

// round1 rounds half up to one decimal place.
func round1(v float64) float64 {
	return math.Floor(v*10+0.5) / 10
}

func largestShare(rows []domain.Contributor) int {
	best := 0
	for i := 1; i < len(rows); i++ {
		if math.Abs(rows[i].Percentage) > math.Abs(rows[best].Percentage) {
			best = i
		}
	}
	return best
}
