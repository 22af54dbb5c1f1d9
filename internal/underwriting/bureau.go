package underwriting

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// StaticBureau serves credit scores and pre-approved limits from in-memory
// tables, typically loaded from the bureau and offers CSV extracts.
// Customers missing from a table get the configured default.
type StaticBureau struct {
	scores       map[string]int
	limits       map[string]int64
	defaultScore int
	defaultLimit int64
}

// NewStaticBureau creates a bureau over the given tables.
func NewStaticBureau(scores map[string]int, limits map[string]int64, defaultScore int, defaultLimit int64) *StaticBureau {
	if scores == nil {
		scores = map[string]int{}
	}
	if limits == nil {
		limits = map[string]int64{}
	}
	return &StaticBureau{
		scores:       scores,
		limits:       limits,
		defaultScore: defaultScore,
		defaultLimit: defaultLimit,
	}
}

// LoadStaticBureau reads "customer_id,credit_score" and
// "customer_id,pre_approved_limit" CSV files. An empty or missing path
// leaves the corresponding table empty.
func LoadStaticBureau(scoresPath, offersPath string, defaultScore int, defaultLimit int64) (*StaticBureau, error) {
	scores := map[string]int{}
	err := readTable(scoresPath, "credit_score", func(id, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("credit score for %s: %w", id, err)
		}
		scores[id] = n
		return nil
	})
	if err != nil {
		return nil, err
	}

	limits := map[string]int64{}
	err = readTable(offersPath, "pre_approved_limit", func(id, v string) error {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("pre-approved limit for %s: %w", id, err)
		}
		limits[id] = d.IntPart()
		return nil
	})
	if err != nil {
		return nil, err
	}

	return NewStaticBureau(scores, limits, defaultScore, defaultLimit), nil
}

// CreditScore implements Bureau.
func (b *StaticBureau) CreditScore(ctx context.Context, customerID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s, ok := b.scores[customerID]; ok {
		return s, nil
	}
	return b.defaultScore, nil
}

// PreApprovedLimit implements Bureau.
func (b *StaticBureau) PreApprovedLimit(ctx context.Context, customerID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if l, ok := b.limits[customerID]; ok {
		return l, nil
	}
	return b.defaultLimit, nil
}

func readTable(path, column string, row func(id, value string) error) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("read header of %s: %w", path, err)
	}
	idCol, valCol := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case "customer_id":
			idCol = i
		case column:
			valCol = i
		}
	}
	if idCol < 0 || valCol < 0 {
		return fmt.Errorf("%s: missing customer_id or %s column", path, column)
	}

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if err := row(strings.TrimSpace(rec[idCol]), strings.TrimSpace(rec[valCol])); err != nil {
			return err
		}
	}
}
