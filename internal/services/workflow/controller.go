package workflow

import (
	"errors"
	"sync"

	"splitverify/internal/domain"
	"splitverify/internal/services/autofix"
	"splitverify/internal/services/distributor"
	"splitverify/internal/services/recorder"
	"splitverify/internal/services/validator"
)

// Ticket identifies one ingestion request. Results are applied only while the
// ticket's version is still current.
type Ticket struct {
	Version uint64 `json:"version"`
}

// Controller sequences the engine for one split sheet. It is the only writer
// of the session's sheet, verification record and payment lines.
type Controller struct {
	mu       sync.Mutex
	recorder *recorder.Recorder
	taxRate  float64

	state     State
	version   uint64
	loading   bool
	lastError string

	sheet  domain.SplitSheet
	issues []domain.ValidationIssue
	record *domain.VerificationRecord
	gross  float64
	lines  []domain.PaymentLine
}

func New(rec *recorder.Recorder, taxRate float64) *Controller {
	if rec == nil {
		rec = recorder.New()
	}
	return &Controller{recorder: rec, taxRate: taxRate, state: StateAwaitingUpload}
}

// BeginLoad opens the loading sub-state. Only one ingestion may be in flight.
func (c *Controller) BeginLoad() (Ticket, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loading {
		return Ticket{}, ErrLoadInFlight
	}
	c.version++
	c.loading = true
	c.lastError = ""
	return Ticket{Version: c.version}, nil
}

// CompleteLoad applies an ingested sheet if t is still current.
func (c *Controller) CompleteLoad(t Ticket, sheet domain.SplitSheet) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loading || t.Version != c.version {
		return c.snapshotLocked(), ErrStaleLoad
	}
	c.loading = false
	c.loadLocked(sheet)
	return c.snapshotLocked(), nil
}

// FailLoad closes the loading sub-state and keeps the previous sheet and state.
func (c *Controller) FailLoad(t Ticket, cause error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loading || t.Version != c.version {
		return ErrStaleLoad
	}
	c.loading = false
	if cause != nil {
		c.lastError = cause.Error()
	}
	return nil
}

// Load replaces the sheet synchronously, e.g. with a sample or pre-parsed rows.
func (c *Controller) Load(sheet domain.SplitSheet) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loading {
		return c.snapshotLocked(), ErrLoadInFlight
	}
	c.version++
	c.lastError = ""
	c.loadLocked(sheet)
	return c.snapshotLocked(), nil
}

// AutoFix repairs the current sheet and drops any verification or payment.
func (c *Controller) AutoFix() (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guardLocked(StateReviewing); err != nil {
		return c.snapshotLocked(), err
	}
	c.version++
	c.loadLocked(autofix.AutoFix(c.sheet))
	return c.snapshotLocked(), nil
}

// Verify records the sheet when it has no issues. With outstanding issues the
// session stays in review and the issues are returned in the snapshot.
// created is true only for the call that issued the record.
func (c *Controller) Verify() (snap Snapshot, created bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateVerified && c.record != nil {
		return c.snapshotLocked(), false, nil
	}
	if err := c.guardLocked(StateVerified); err != nil {
		return c.snapshotLocked(), false, err
	}
	c.issues = validator.Validate(c.sheet)
	if len(c.issues) > 0 {
		return c.snapshotLocked(), false, nil
	}
	rec, err := c.recorder.Record(c.sheet)
	if err != nil {
		return c.snapshotLocked(), false, err
	}
	c.record = &rec
	c.state = StateVerified
	return c.snapshotLocked(), true, nil
}

// Distribute computes payment lines for grossAmount. It is only available
// once the sheet is verified; every call recomputes.
func (c *Controller) Distribute(grossAmount float64) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loading {
		return c.snapshotLocked(), ErrLoadInFlight
	}
	if c.record == nil || (c.state != StateVerified && c.state != StatePaymentReady) {
		return c.snapshotLocked(), domain.NewPreconditionError("distribute", "sheet is not verified")
	}
	lines, err := distributor.Distribute(c.sheet, grossAmount, c.taxRate)
	if err != nil {
		return c.snapshotLocked(), err
	}
	c.gross = grossAmount
	c.lines = lines
	c.state = StatePaymentReady
	return c.snapshotLocked(), nil
}

// Reset clears everything and cancels any pending ingestion.
func (c *Controller) Reset() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.version++
	c.loading = false
	c.lastError = ""
	c.sheet = domain.SplitSheet{}
	c.issues = nil
	c.clearDerivedLocked()
	c.state = StateAwaitingUpload
	return c.snapshotLocked()
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) TaxRate() float64 { return c.taxRate }

func (c *Controller) loadLocked(sheet domain.SplitSheet) {
	c.sheet = sheet.Clone()
	c.issues = validator.Validate(c.sheet)
	c.clearDerivedLocked()
	c.state = StateReviewing
}

func (c *Controller) clearDerivedLocked() {
	c.record = nil
	c.gross = 0
	c.lines = nil
}

func (c *Controller) guardLocked(to State) error {
	if c.loading {
		return ErrLoadInFlight
	}
	if !isAllowedTransition(c.state, to) {
		return &TransitionError{From: c.state, To: to}
	}
	return nil
}

// IsConflict reports whether err is a sequencing error rather than bad input.
func IsConflict(err error) bool {
	var te *TransitionError
	return errors.Is(err, ErrLoadInFlight) ||
		errors.Is(err, ErrStaleLoad) ||
		errors.Is(err, domain.ErrPrecondition) ||
		errors.As(err, &te)
}
