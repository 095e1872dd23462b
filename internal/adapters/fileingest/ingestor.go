package fileingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"splitverify/internal/domain"
)

var (
	ErrMalformed   = errors.New("malformed split sheet")
	ErrEmpty       = errors.New("split sheet has no contributor rows")
	ErrUnsupported = errors.New("unsupported file format")
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Ingestor parses uploaded split sheets in CSV or JSON form.
type Ingestor struct {
	// MaxRows bounds the number of contributor rows accepted; 0 means no limit.
	MaxRows int
}

func New(maxRows int) *Ingestor { return &Ingestor{MaxRows: maxRows} }

// Ingest detects the format from the content type, falling back to the
// filename extension, and returns the parsed sheet.
func (in *Ingestor) Ingest(ctx context.Context, filename, contentType string, r io.Reader) (domain.SplitSheet, error) {
	if err := ctx.Err(); err != nil {
		return domain.SplitSheet{}, err
	}
	format, err := DetectFormat(filename, contentType)
	if err != nil {
		return domain.SplitSheet{}, err
	}
	var rows []domain.Contributor
	switch format {
	case FormatJSON:
		rows, err = parseJSON(r)
	default:
		rows, err = parseCSV(ctx, r, contentType)
	}
	if err != nil {
		return domain.SplitSheet{}, err
	}
	if len(rows) == 0 {
		return domain.SplitSheet{}, ErrEmpty
	}
	if in.MaxRows > 0 && len(rows) > in.MaxRows {
		return domain.SplitSheet{}, fmt.Errorf("%w: %d rows exceeds limit of %d", ErrMalformed, len(rows), in.MaxRows)
	}
	return domain.NewSplitSheet(rows), nil
}

// DetectFormat picks the parser for an upload.
func DetectFormat(filename, contentType string) (Format, error) {
	if contentType != "" {
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err == nil {
			switch mediaType {
			case "text/csv", "application/csv", "text/comma-separated-values":
				return FormatCSV, nil
			case "application/json", "text/json":
				return FormatJSON, nil
			}
		}
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	case "":
		if contentType == "" || strings.HasPrefix(contentType, "text/plain") {
			return FormatCSV, nil
		}
	}
	return "", fmt.Errorf("%w: %q (%s)", ErrUnsupported, filename, contentType)
}
