package main

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/discount"
)

const (
	bloomFPR   = 0.001
	numColumns = 7
)

// Column order of the import files.
const (
	colCode = iota
	colType
	colValue
	colMinOrder
	colMaxDiscount
	colUsageLimit
	colDescription
)

// parseFiles parses every file concurrently, preserving file order in the result.
func parseFiles(ctx context.Context, files []string) ([][]*discount.Discount, error) {
	batches := make([][]*discount.Discount, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			ds, err := parseFile(ctx, path)
			if err != nil {
				return errors.Wrapf(err, "parse %s", path)
			}
			batches[i] = ds
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return batches, nil
}

func parseFile(ctx context.Context, path string) ([]*discount.Discount, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrap(err, "create gzip reader")
	}
	defer func() { _ = gz.Close() }()

	return parseRecords(ctx, gz)
}

// parseRecords reads CSV rows from r. A leading header row is skipped.
func parseRecords(ctx context.Context, r io.Reader) ([]*discount.Discount, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numColumns
	cr.TrimLeadingSpace = true

	var out []*discount.Discount
	for line := 1; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read line %d", line)
		}
		if line == 1 && strings.EqualFold(fields[colCode], "code") {
			continue
		}
		d, err := parseRow(fields)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		out = append(out, d)
	}
}

func parseRow(fields []string) (*discount.Discount, error) {
	code := strings.ToUpper(strings.TrimSpace(fields[colCode]))
	if code == "" {
		return nil, errors.New("empty code")
	}

	typ, err := discount.ParseType(strings.TrimSpace(fields[colType]))
	if err != nil {
		return nil, err
	}

	value, err := decimal.NewFromString(strings.TrimSpace(fields[colValue]))
	if err != nil {
		return nil, errors.Wrapf(err, "parse value for %s", code)
	}
	if !value.IsPositive() {
		return nil, errors.Errorf("value for %s must be positive", code)
	}
	if typ == discount.TypePercentage && value.GreaterThan(decimal.NewFromInt(100)) {
		return nil, errors.Errorf("percentage for %s exceeds 100", code)
	}

	minOrder, err := optionalMoney(fields[colMinOrder])
	if err != nil {
		return nil, errors.Wrapf(err, "parse min_order for %s", code)
	}
	maxDiscount, err := optionalMoney(fields[colMaxDiscount])
	if err != nil {
		return nil, errors.Wrapf(err, "parse max_discount for %s", code)
	}

	d := &discount.Discount{
		Code:              code,
		Description:       strings.TrimSpace(fields[colDescription]),
		Type:              typ,
		Value:             value,
		MinOrderAmount:    minOrder,
		MaxDiscountAmount: maxDiscount,
		Active:            true,
	}
	if s := strings.TrimSpace(fields[colUsageLimit]); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit < 0 {
			return nil, errors.Errorf("invalid usage_limit %q for %s", s, code)
		}
		d.UsageLimit = &limit
	}
	return d, nil
}

func optionalMoney(s string) (decimal.NullDecimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	if v.IsNegative() {
		return decimal.NullDecimal{}, errors.New("negative amount")
	}
	return decimal.NewNullDecimal(v), nil
}

// dedupe keeps the first occurrence of each code across batches. The bloom
// filter answers most lookups; the map settles its false positives.
func dedupe(batches [][]*discount.Discount) (unique []*discount.Discount, duplicates int) {
	var total int
	for _, b := range batches {
		total += len(b)
	}
	if total == 0 {
		return nil, 0
	}

	filter := bloom.NewWithEstimates(uint(total), bloomFPR)
	seen := make(map[string]struct{}, total)
	for _, b := range batches {
		for _, d := range b {
			if filter.TestString(d.Code) {
				if _, ok := seen[d.Code]; ok {
					duplicates++
					continue
				}
			}
			filter.AddString(d.Code)
			seen[d.Code] = struct{}{}
			unique = append(unique, d)
		}
	}
	return unique, duplicates
}
