package fileingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"splitverify/internal/domain"
)

type jsonRow struct {
	Name       string          `json:"name"`
	Role       string          `json:"role"`
	Percentage json.RawMessage `json:"percentage"`
	Identifier string          `json:"identifier"`
	IPI        string          `json:"ipi"`
}

// parseJSON accepts either a bare array of rows or {"contributors": [...]}.
func parseJSON(r io.Reader) ([]domain.Contributor, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var rows []jsonRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		var wrapped struct {
			Contributors []jsonRow `json:"contributors"`
		}
		if err2 := json.Unmarshal(raw, &wrapped); err2 != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		rows = wrapped.Contributors
	}
	out := make([]domain.Contributor, 0, len(rows))
	for i, row := range rows {
		pct, err := jsonPercentage(row.Percentage)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrMalformed, i+1, err)
		}
		id := row.Identifier
		if id == "" {
			id = row.IPI
		}
		out = append(out, domain.Contributor{Name: row.Name, Role: row.Role, Percentage: pct, Identifier: id})
	}
	return out, nil
}

// Percentages may arrive as numbers or as strings like "50%".
func jsonPercentage(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, errors.New("percentage must be a number or string")
	}
	return ParsePercentage(s)
}
