package recorder

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"math"
	"time"

	"github.com/google/uuid"
	"lukechampine.com/blake3"

	"splitverify/internal/domain"
	"splitverify/internal/services/validator"
)

// Recorder stamps verification records for valid sheets.
type Recorder struct {
	now   func() time.Time
	newID func() string
}

type Option func(*Recorder)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// WithIDGenerator overrides record id generation.
func WithIDGenerator(gen func() string) Option {
	return func(r *Recorder) { r.newID = gen }
}

func New(opts ...Option) *Recorder {
	r := &Recorder{
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record returns a fresh verification record for sheet. It fails with a
// *domain.PreconditionError when the sheet still has validation issues.
func (r *Recorder) Record(sheet domain.SplitSheet) (domain.VerificationRecord, error) {
	if !validator.Valid(sheet) {
		return domain.VerificationRecord{}, domain.NewPreconditionError("record", "cannot verify a sheet with outstanding issues")
	}
	return domain.VerificationRecord{
		ID:          r.newID(),
		Digest:      Digest(sheet),
		GeneratedAt: r.now(),
		Status:      domain.StatusVerified,
	}, nil
}

// Digest is the hex BLAKE3-256 of the sheet's canonical encoding. Identical
// sheets always produce identical digests.
func Digest(sheet domain.SplitSheet) string {
	sum := blake3.Sum256(canonical(sheet))
	return hex.EncodeToString(sum[:])
}

func canonical(sheet domain.SplitSheet) []byte {
	buf := bytes.NewBuffer(nil)
	_ = binary.Write(buf, binary.BigEndian, uint32(len(sheet.Contributors)))
	for _, c := range sheet.Contributors {
		writeDelimited(buf, c.Name)
		writeDelimited(buf, c.Role)
		_ = binary.Write(buf, binary.BigEndian, math.Float64bits(c.Percentage))
		writeDelimited(buf, c.Identifier)
	}
	return buf.Bytes()
}

func writeDelimited(buf *bytes.Buffer, s string) {
	_ = binary.Write(buf, binary.BigEndian, uint32(len(s)))
	buf.WriteString(s)
}
