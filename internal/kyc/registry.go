// Package kyc verifies a customer's identity against the KYC reference
// records held by the CRM.
package kyc

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/capitalize-ai/loan-assistant/internal/model"
)

// Record is one KYC reference entry.
type Record struct {
	CustomerID string
	Name       string
	Phone      string
	Email      string
}

// Result is the verdict for a profile. CustomerID and Email are only set
// when Verified is true.
type Result struct {
	Verified   bool
	CustomerID string
	Email      string
}

// Delta returns the profile enrichment for a positive verdict.
func (r Result) Delta() model.Profile {
	if !r.Verified {
		return model.Profile{}
	}
	return model.Profile{CustomerID: r.CustomerID, Email: r.Email, Verified: true}
}

// Verifier checks a partial profile against KYC records.
type Verifier interface {
	Verify(ctx context.Context, p model.Profile) (Result, error)
}

// Registry is an in-memory KYC index keyed by (lower-cased name, phone).
type Registry struct {
	index map[string]Record
}

// NewRegistry indexes the given records.
func NewRegistry(records []Record) *Registry {
	idx := make(map[string]Record, len(records))
	for _, rec := range records {
		idx[key(rec.Name, rec.Phone)] = rec
	}
	return &Registry{index: idx}
}

// Len returns the number of indexed records.
func (r *Registry) Len() int {
	return len(r.index)
}

// Verify looks up an exact (name, phone) match; the name comparison ignores
// case. A miss is not an error.
func (r *Registry) Verify(ctx context.Context, p model.Profile) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	rec, ok := r.index[key(p.Name, p.Phone)]
	if !ok {
		return Result{}, nil
	}
	return Result{Verified: true, CustomerID: rec.CustomerID, Email: rec.Email}, nil
}

func key(name, phone string) string {
	return strings.ToLower(strings.TrimSpace(name)) + "|" + strings.TrimSpace(phone)
}

// LoadRegistry reads a "customer_id,name,phone,email" CSV file. A missing
// file yields an empty registry, which verifies nobody.
func LoadRegistry(path string) (*Registry, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return NewRegistry(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open kyc data: %w", err)
	}
	defer f.Close()

	records, err := parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return NewRegistry(records), nil
}

func parse(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := map[string]int{}
	for i, h := range header {
		cols[strings.TrimSpace(h)] = i
	}
	for _, want := range []string{"customer_id", "name", "phone"} {
		if _, ok := cols[want]; !ok {
			return nil, fmt.Errorf("missing %s column", want)
		}
	}
	emailCol, hasEmail := cols["email"]

	var out []Record
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		rec := Record{
			CustomerID: strings.TrimSpace(row[cols["customer_id"]]),
			Name:       strings.TrimSpace(row[cols["name"]]),
			Phone:      strings.TrimSpace(row[cols["phone"]]),
		}
		if hasEmail {
			rec.Email = strings.ToLower(strings.TrimSpace(row[emailCol]))
		}
		out = append(out, rec)
	}
}
