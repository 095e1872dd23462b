package workflow

import (
	"splitverify/internal/domain"
	"splitverify/internal/services/distributor"
)

// Snapshot is a read-only copy of a session for rendering and export.
// Mutating it has no effect on the controller.
type Snapshot struct {
	State           State                      `json:"state"`
	Loading         bool                       `json:"loading"`
	Version         uint64                     `json:"version"`
	LastError       string                     `json:"lastError,omitempty"`
	Sheet           domain.SplitSheet          `json:"sheet"`
	TotalPercentage float64                    `json:"totalPercentage"`
	Issues          []domain.ValidationIssue   `json:"issues"`
	Record          *domain.VerificationRecord `json:"record,omitempty"`
	GrossAmount     float64                    `json:"grossAmount"`
	TaxRate         float64                    `json:"taxRate"`
	Lines           []domain.PaymentLine       `json:"lines,omitempty"`
	Summary         *domain.PaymentSummary     `json:"summary,omitempty"`
}

// View is the presentation projection of a snapshot. It is derived from the
// state alone and never stored.
type View struct {
	Step            int  `json:"step"`
	ProgressPercent int  `json:"progressPercent"`
	ShowIssues      bool `json:"showIssues"`
	CanAutoFix      bool `json:"canAutoFix"`
	CanVerify       bool `json:"canVerify"`
	CanDistribute   bool `json:"canDistribute"`
	ShowRecord      bool `json:"showRecord"`
	ShowPayment     bool `json:"showPayment"`
}

func (s Snapshot) View() View {
	step := s.State.Step()
	v := View{
		Step:            step,
		ProgressPercent: (step - 1) * 100 / 3,
	}
	if s.Loading {
		return v
	}
	switch s.State {
	case StateReviewing:
		v.ShowIssues = len(s.Issues) > 0
		v.CanAutoFix = len(s.Issues) > 0
		v.CanVerify = len(s.Issues) == 0
	case StateVerified:
		v.CanAutoFix = true
		v.CanDistribute = true
		v.ShowRecord = true
	case StatePaymentReady:
		v.CanAutoFix = true
		v.CanDistribute = true
		v.ShowRecord = true
		v.ShowPayment = true
	}
	return v
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		State:           c.state,
		Loading:         c.loading,
		Version:         c.version,
		LastError:       c.lastError,
		Sheet:           c.sheet.Clone(),
		TotalPercentage: c.sheet.TotalPercentage(),
		Issues:          domain.CloneIssues(c.issues),
		GrossAmount:     c.gross,
		TaxRate:         c.taxRate,
	}
	if c.record != nil {
		rec := *c.record
		s.Record = &rec
	}
	if c.lines != nil {
		s.Lines = append([]domain.PaymentLine(nil), c.lines...)
		sum := distributor.Summarize(c.lines, c.gross, c.taxRate)
		s.Summary = &sum
	}
	return s
}
