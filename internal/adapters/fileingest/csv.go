package fileingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"mime"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"

	"splitverify/internal/domain"
)

type column int

const (
	colName column = iota
	colRole
	colPercentage
	colIdentifier
)

var headerAliases = map[string]column{
	"name":        colName,
	"contributor": colName,
	"writer":      colName,
	"role":        colRole,
	"percentage":  colPercentage,
	"percent":     colPercentage,
	"share":       colPercentage,
	"split":       colPercentage,
	"%":           colPercentage,
	"identifier":  colIdentifier,
	"ipi":         colIdentifier,
	"iswc":        colIdentifier,
	"ipi/iswc":    colIdentifier,
}

func parseCSV(ctx context.Context, r io.Reader, contentType string) ([]domain.Contributor, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read: %v", ErrMalformed, err)
	}
	decoded, err := decodeText(raw, contentType)
	if err != nil {
		return nil, err
	}
	cr := csv.NewReader(decoded)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrMalformed, err)
	}
	cols, err := mapHeader(header)
	if err != nil {
		return nil, err
	}

	var rows []domain.Contributor
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, line, err)
		}
		if blankRecord(rec) {
			continue
		}
		c, err := rowToContributor(rec, cols)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, line, err)
		}
		rows = append(rows, c)
	}
	return rows, nil
}

// decodeText returns a UTF-8 reader over raw. A BOM or valid UTF-8 without a
// declared charset is taken as is; anything else is decoded by the declared
// label or, failing that, by sniffing.
func decodeText(raw []byte, contentType string) (io.Reader, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, ErrEmpty
	}
	if bytes.HasPrefix(raw, utf8BOM) {
		return bytes.NewReader(raw[len(utf8BOM):]), nil
	}
	if !hasCharsetParam(contentType) && utf8.Valid(raw) {
		return bytes.NewReader(raw), nil
	}
	decoded, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if errors.Is(err, io.EOF) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrMalformed, err)
	}
	return decoded, nil
}

var utf8BOM = []byte("\xef\xbb\xbf")

func hasCharsetParam(contentType string) bool {
	if contentType == "" {
		return false
	}
	_, params, err := mime.ParseMediaType(contentType)
	return err == nil && params["charset"] != ""
}

func mapHeader(header []string) (map[column]int, error) {
	cols := make(map[column]int, 4)
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if col, ok := headerAliases[key]; ok {
			if _, dup := cols[col]; !dup {
				cols[col] = i
			}
		}
	}
	if _, ok := cols[colName]; !ok {
		return nil, fmt.Errorf("%w: header has no name column", ErrMalformed)
	}
	if _, ok := cols[colPercentage]; !ok {
		return nil, fmt.Errorf("%w: header has no percentage column", ErrMalformed)
	}
	return cols, nil
}

func rowToContributor(rec []string, cols map[column]int) (domain.Contributor, error) {
	field := func(c column) string {
		i, ok := cols[c]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	pct, err := ParsePercentage(field(colPercentage))
	if err != nil {
		return domain.Contributor{}, err
	}
	return domain.Contributor{
		Name:       field(colName),
		Role:       field(colRole),
		Percentage: pct,
		Identifier: field(colIdentifier),
	}, nil
}

// ParsePercentage accepts "50", "50%", " 12.5 % " and treats empty as 0.
func ParsePercentage(raw string) (float64, error) {
	s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "%"))
	if s == "" {
		return 0, nil
	}
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid percentage %q", raw)
	}
	return v, nil
}

func blankRecord(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
