// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"fuelstation/internal/core/apperror"
	"fuelstation/internal/core/id"
	"fuelstation/internal/core/types"
)

// ListResponse wraps list results.
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

// NewList converts items with fn. A nil input renders as an empty array.
func NewList[S, T any](items []S, fn func(S) T) ListResponse[T] {
	out := make([]T, 0, len(items))
	for _, it := range items {
		out = append(out, fn(it))
	}
	return ListResponse[T]{Items: out, Count: len(out)}
}

// ParseDecimal parses a request number, reporting failures as VALIDATION_ERROR on field.
func ParseDecimal(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, apperror.NewValidation("invalid number").
			WithDetail("field", field).
			WithDetail("value", s)
	}
	return d, nil
}

// ParseOptionalDecimal parses an optional request number.
func ParseOptionalDecimal(field string, s *string) (*decimal.Decimal, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	d, err := ParseDecimal(field, *s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ParseOptionalID parses an optional identifier.
func ParseOptionalID(field, s string) (*id.ID, error) {
	if s == "" {
		return nil, nil
	}
	v, err := id.ParseField(field, s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ParseOptionalDate parses an optional YYYY-MM-DD date.
func ParseOptionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := types.ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// RangeQuery is the common station/tank/date-range filter.
type RangeQuery struct {
	StationID string `form:"stationId" binding:"omitempty,uuid"`
	TankID    string `form:"tankId" binding:"omitempty,uuid"`
	From      string `form:"from" binding:"omitempty,date"`
	To        string `form:"to" binding:"omitempty,date"`
	Limit     int    `form:"limit" binding:"omitempty,min=1,max=1000"`
}

// Range is a parsed RangeQuery.
type Range struct {
	StationID *id.ID
	TankID    *id.ID
	From      *time.Time
	To        *time.Time
	Limit     int
}

// Parse converts the query strings.
func (q RangeQuery) Parse() (Range, error) {
	var (
		r   Range
		err error
	)
	if r.StationID, err = ParseOptionalID("stationId", q.StationID); err != nil {
		return r, err
	}
	if r.TankID, err = ParseOptionalID("tankId", q.TankID); err != nil {
		return r, err
	}
	if r.From, err = ParseOptionalDate(q.From); err != nil {
		return r, err
	}
	if r.To, err = ParseOptionalDate(q.To); err != nil {
		return r, err
	}
	if r.From != nil && r.To != nil && r.To.Before(*r.From) {
		return r, apperror.NewValidation("to must not be before from").
			WithDetail("from", q.From).
			WithDetail("to", q.To)
	}
	r.Limit = q.Limit
	return r, nil
}

// DateString renders a business date or nil.
func DateString(t time.Time) string {
	return types.FormatDate(t)
}
