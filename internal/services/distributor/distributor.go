package distributor

import (
	"errors"
	"fmt"
	"math"

	"splitverify/internal/domain"
)

var (
	ErrInvalidAmount  = errors.New("gross amount must be a finite number >= 0")
	ErrInvalidTaxRate = errors.New("tax rate must be within [0, 1]")
)

// DefaultTaxRate is the flat regional withholding applied when none is configured.
const DefaultTaxRate = 0.25

// Distribute splits grossAmount across the sheet's contributors, one line per
// contributor in sheet order, withholding taxRate from each gross share.
//
// Shares use plain float64 arithmetic; rounding for display is the caller's job.
func Distribute(sheet domain.SplitSheet, grossAmount, taxRate float64) ([]domain.PaymentLine, error) {
	if err := checkArgs(grossAmount, taxRate); err != nil {
		return nil, err
	}
	lines := make([]domain.PaymentLine, 0, len(sheet.Contributors))
	for _, c := range sheet.Contributors {
		// Explicit conversions keep each product rounded on its own so
		// net == gross - tax holds exactly.
		gross := float64(grossAmount * (c.Percentage / 100))
		tax := float64(gross * taxRate)
		lines = append(lines, domain.PaymentLine{
			Name:       c.Name,
			Role:       c.Role,
			Percentage: c.Percentage,
			GrossShare: gross,
			TaxShare:   tax,
			NetShare:   gross - tax,
		})
	}
	return lines, nil
}

// Summarize totals a distribution next to the headline figures.
func Summarize(lines []domain.PaymentLine, grossAmount, taxRate float64) domain.PaymentSummary {
	tax := float64(grossAmount * taxRate)
	sum := domain.PaymentSummary{
		GrossAmount: grossAmount,
		TaxRate:     taxRate,
		TaxAmount:   tax,
		NetAmount:   grossAmount - tax,
	}
	for _, l := range lines {
		sum.LineGross += l.GrossShare
		sum.LineTax += l.TaxShare
		sum.LineNet += l.NetShare
	}
	return sum
}

// CheckTaxRate validates a withholding rate.
func CheckTaxRate(taxRate float64) error {
	if math.IsNaN(taxRate) || taxRate < 0 || taxRate > 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidTaxRate, taxRate)
	}
	return nil
}

func checkArgs(grossAmount, taxRate float64) error {
	if math.IsNaN(grossAmount) || math.IsInf(grossAmount, 0) || grossAmount < 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidAmount, grossAmount)
	}
	return CheckTaxRate(taxRate)
}
