// Command discount-import loads discount codes from gzip-compressed CSV files.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/storage/postgres"
)

const progressEvery = 100

// Upserter stores a discount, replacing an existing one with the same code.
type Upserter interface {
	Upsert(ctx context.Context, d *discount.Discount) error
}

func main() {
	var (
		dataDir     string
		pattern     string
		databaseURL string
		dryRun      bool
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing discount files")
	flag.StringVar(&pattern, "pattern", "*.csv.gz", "glob of files to import inside data-dir")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.BoolVar(&dryRun, "dry-run", false, "parse and report without writing")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, filepath.Join(dataDir, pattern), databaseURL, dryRun); err != nil {
		slog.Error("discount import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("discount import completed successfully")
}

func run(ctx context.Context, glob, databaseURL string, dryRun bool) error {
	files, err := filepath.Glob(glob)
	if err != nil {
		return errors.Wrap(err, "match files")
	}
	if len(files) == 0 {
		return errors.Errorf("no files match %s", glob)
	}
	sort.Strings(files)

	slog.Info("parsing files", slog.Int("files", len(files)))
	batches, err := parseFiles(ctx, files)
	if err != nil {
		return err
	}

	discounts, duplicates := dedupe(batches)
	slog.Info("parsed discounts",
		slog.Int("unique", len(discounts)),
		slog.Int("duplicates", duplicates),
	)

	if dryRun || len(discounts) == 0 {
		return nil
	}

	if err := postgres.Migrate(databaseURL); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	slog.Info("connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	return write(ctx, postgres.NewDiscountRepository(pool), discounts)
}

func write(ctx context.Context, repo Upserter, discounts []*discount.Discount) error {
	slog.Info("writing discounts to database", slog.Int("count", len(discounts)))

	for i, d := range discounts {
		if err := repo.Upsert(ctx, d); err != nil {
			return errors.Wrapf(err, "upsert discount %s", d.Code)
		}
		if (i+1)%progressEvery == 0 || i+1 == len(discounts) {
			slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(discounts)))
		}
	}
	return nil
}
