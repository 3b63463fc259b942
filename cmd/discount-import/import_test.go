package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/discount"
)

func writeGz(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
	return path
}

func TestParseRecords(t *testing.T) {
	const content = `code,type,value,min_order,max_discount,usage_limit,description
welcome10,percentage,10,100000,50000,100,Welcome offer
FLAT50K,fixed,50000,500000,,,Flat off
`
	ds, err := parseRecords(context.Background(), strings.NewReader(content))
	require.NoError(t, err)
	require.Len(t, ds, 2)

	w := ds[0]
	assert.Equal(t, "WELCOME10", w.Code)
	assert.Equal(t, discount.TypePercentage, w.Type)
	assert.True(t, w.Value.Equal(decimal.NewFromInt(10)))
	assert.True(t, w.MinOrderAmount.Valid)
	assert.True(t, w.MaxDiscountAmount.Decimal.Equal(decimal.NewFromInt(50000)))
	require.NotNil(t, w.UsageLimit)
	assert.Equal(t, 100, *w.UsageLimit)
	assert.True(t, w.Active)

	f := ds[1]
	assert.Equal(t, discount.TypeFixedAmount, f.Type)
	assert.False(t, f.MaxDiscountAmount.Valid)
	assert.Nil(t, f.UsageLimit)
	assert.Equal(t, "Flat off", f.Description)
}

func TestParseRecordsRejectsBadRows(t *testing.T) {
	for name, row := range map[string]string{
		"EmptyCode":         ",percentage,10,,,,x",
		"UnknownType":       "A,bogus,10,,,,x",
		"ZeroValue":         "A,fixed,0,,,,x",
		"PercentageOver100": "A,percentage,150,,,,x",
		"BadMinOrder":       "A,fixed,5,abc,,,x",
		"NegativeMax":       "A,percentage,5,,-1,,x",
		"BadUsageLimit":     "A,fixed,5,,,many,x",
		"MissingColumn":     "A,fixed,5,,,",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := parseRecords(context.Background(), strings.NewReader(row+"\n"))
			require.Error(t, err)
		})
	}
}

func TestParseFilesAndDedupe(t *testing.T) {
	dir := t.TempDir()
	a := writeGz(t, dir, "a.csv.gz", "A1,fixed,5,,,,first\nB2,percentage,20,,,,b\n")
	b := writeGz(t, dir, "b.csv.gz", "code,type,value,min_order,max_discount,usage_limit,description\na1,fixed,9,,,,second\nC3,fixed,1,,,,c\n")

	batches, err := parseFiles(context.Background(), []string{a, b})
	require.NoError(t, err)
	require.Len(t, batches, 2)

	unique, duplicates := dedupe(batches)
	assert.Equal(t, 1, duplicates)
	require.Len(t, unique, 3)
	assert.Equal(t, "A1", unique[0].Code)
	assert.Equal(t, "first", unique[0].Description)
	assert.Equal(t, "C3", unique[2].Code)
}

func TestParseFilesMissingFile(t *testing.T) {
	_, err := parseFiles(context.Background(), []string{filepath.Join(t.TempDir(), "nope.csv.gz")})
	require.Error(t, err)
}

func TestDedupeEmpty(t *testing.T) {
	unique, duplicates := dedupe(nil)
	assert.Empty(t, unique)
	assert.Zero(t, duplicates)
}

type recordingUpserter struct {
	codes []string
}

func (r *recordingUpserter) Upsert(_ context.Context, d *discount.Discount) error {
	r.codes = append(r.codes, d.Code)
	return nil
}

func TestWrite(t *testing.T) {
	repo := &recordingUpserter{}
	err := write(context.Background(), repo, []*discount.Discount{{Code: "A"}, {Code: "B"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, repo.codes)
}
