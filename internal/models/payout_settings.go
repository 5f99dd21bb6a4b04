package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// BankAccount is the structured shape of a coach's bank details.
type BankAccount struct {
	AccountHolder string `json:"account_holder"`
	AccountNumber string `json:"account_number"`
	BankName      string `json:"bank_name"`
	IFSC          string `json:"ifsc,omitempty"`
	SwiftCode     string `json:"swift_code,omitempty"`
	Branch        string `json:"branch,omitempty"`
}

// TaxInfo is the structured shape of a coach's tax details.
type TaxInfo struct {
	PAN         string `json:"pan,omitempty"`
	GSTIN       string `json:"gstin,omitempty"`
	TaxID       string `json:"tax_id,omitempty"`
	Country     string `json:"country,omitempty"`
	Withholding bool   `json:"withholding,omitempty"`
}

// Details holds structured fields, a JSON object of unknown shape, or
// freeform text. JSON objects matching T decode into Structured, other objects
// into Raw and strings into Freeform. Each variant encodes back to the shape
// it was read from.
type Details[T any] struct {
	Structured *T
	Raw        json.RawMessage
	Freeform   string
}

// StructuredDetails wraps a known shape.
func StructuredDetails[T any](v T) Details[T] {
	return Details[T]{Structured: &v}
}

// FreeformDetails wraps text that has no known shape.
func FreeformDetails[T any](text string) Details[T] {
	return Details[T]{Freeform: text}
}

// IsZero reports whether no variant is set.
func (d Details[T]) IsZero() bool {
	return d.Structured == nil && len(d.Raw) == 0 && d.Freeform == ""
}

// MarshalJSON encodes structured and raw variants as objects and the
// freeform variant as a string.
func (d Details[T]) MarshalJSON() ([]byte, error) {
	switch {
	case d.Structured != nil:
		return json.Marshal(d.Structured)
	case len(d.Raw) > 0:
		return d.Raw, nil
	case d.Freeform != "":
		return json.Marshal(d.Freeform)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts null, a string or an object.
func (d *Details[T]) UnmarshalJSON(data []byte) error {
	*d = Details[T]{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	switch trimmed[0] {
	case '"':
		return json.Unmarshal(trimmed, &d.Freeform)
	case '{':
		var v T
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&v); err == nil {
			d.Structured = &v
			return nil
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, trimmed); err != nil {
			return fmt.Errorf("invalid details object: %w", err)
		}
		d.Raw = json.RawMessage(compact.Bytes())
		return nil
	default:
		return fmt.Errorf("details must be an object or a string")
	}
}

// Value stores the details as JSONB.
func (d Details[T]) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.MarshalJSON()
}

// Scan reads a JSONB column.
func (d *Details[T]) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = Details[T]{}
		return nil
	case []byte:
		return d.UnmarshalJSON(v)
	case string:
		return d.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("unsupported details type %T", src)
	}
}

// PayoutSettings prices a coach's line items.
type PayoutSettings struct {
	CoachID               string               `db:"coach_id" json:"coach_id"`
	PaymentRatePerStudent int64                `db:"payment_rate_per_student" json:"payment_rate_per_student"`
	Currency              string               `db:"currency" json:"currency"`
	BankDetails           Details[BankAccount] `db:"bank_details" json:"bank_details"`
	TaxDetails            Details[TaxInfo]     `db:"tax_details" json:"tax_details"`
	IsActive              bool                 `db:"is_active" json:"is_active"`
	UpdatedAt             time.Time            `db:"updated_at" json:"updated_at"`
}
