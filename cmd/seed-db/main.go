package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/user"
	"github.com/xenking/storefront/internal/storage/postgres"
)

func main() {
	var (
		databaseURL string
		skipCart    bool
	)
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.BoolVar(&skipCart, "skip-cart", false, "do not fill the demo user's cart")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, !skipCart); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL string, fillCart bool) error {
	slog.Info("running migrations")
	if err := postgres.Migrate(databaseURL); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	slog.Info("connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	users, err := seedUsers(ctx, postgres.NewUserRepository(pool))
	if err != nil {
		return errors.Wrap(err, "seed users")
	}
	products, err := seedProducts(ctx, postgres.NewProductRepository(pool))
	if err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedDiscounts(ctx, postgres.NewDiscountRepository(pool)); err != nil {
		return errors.Wrap(err, "seed discounts")
	}
	if fillCart {
		if err := seedCart(ctx, postgres.NewCartRepository(pool), users[0], products[:2]); err != nil {
			return errors.Wrap(err, "seed cart")
		}
	}
	return nil
}

func seedUsers(ctx context.Context, repo *postgres.UserRepository) ([]*user.User, error) {
	users := []*user.User{
		{Email: "ann@example.com", FullName: "Ann Example", Phone: "+10000000001"},
		{Email: "bob@example.com", FullName: "Bob Example", Phone: "+10000000002"},
	}
	for _, u := range users {
		if err := repo.Upsert(ctx, u); err != nil {
			return nil, errors.Wrapf(err, "upsert user %s", u.Email)
		}
		slog.Info("upserted user", slog.Int64("id", u.ID), slog.String("email", u.Email))
	}
	return users, nil
}

func seedProducts(ctx context.Context, repo *postgres.ProductRepository) ([]*product.Product, error) {
	products := []*product.Product{
		{SKU: "LAPTOP-14", Name: "Laptop 14\"", Price: decimal.NewFromInt(150000), Stock: 10},
		{SKU: "MOUSE-WL", Name: "Wireless mouse", Price: decimal.RequireFromString("2500.50"), Stock: 100},
		{SKU: "KB-MECH", Name: "Mechanical keyboard", Price: decimal.NewFromInt(12000), Stock: 25},
		{SKU: "MONITOR-27", Name: "27\" monitor", Price: decimal.NewFromInt(320000), Stock: 5},
	}
	for _, p := range products {
		if err := repo.Upsert(ctx, p); err != nil {
			return nil, errors.Wrapf(err, "upsert product %s", p.SKU)
		}
		slog.Info("upserted product", slog.Int64("id", p.ID), slog.String("sku", p.SKU))
	}
	return products, nil
}

func seedDiscounts(ctx context.Context, repo *postgres.DiscountRepository) error {
	welcomeLimit := 100
	discounts := []*discount.Discount{
		{
			Code:              "WELCOME10",
			Description:       "10% off orders from 100000, up to 50000",
			Type:              discount.TypePercentage,
			Value:             decimal.NewFromInt(10),
			MinOrderAmount:    decimal.NewNullDecimal(decimal.NewFromInt(100000)),
			MaxDiscountAmount: decimal.NewNullDecimal(decimal.NewFromInt(50000)),
			UsageLimit:        &welcomeLimit,
			Active:            true,
		},
		{
			Code:           "FLAT50K",
			Description:    "50000 off orders from 500000",
			Type:           discount.TypeFixedAmount,
			Value:          decimal.NewFromInt(50000),
			MinOrderAmount: decimal.NewNullDecimal(decimal.NewFromInt(500000)),
			Active:         true,
		},
	}
	for _, d := range discounts {
		if err := repo.Upsert(ctx, d); err != nil {
			return errors.Wrapf(err, "upsert discount %s", d.Code)
		}
		slog.Info("upserted discount", slog.String("code", d.Code), slog.String("description", d.Description))
	}
	return nil
}

func seedCart(ctx context.Context, repo *postgres.CartRepository, u *user.User, products []*product.Product) error {
	c, err := repo.FindOrCreateForUser(ctx, u.ID)
	if err != nil {
		return err
	}
	if !c.IsEmpty() {
		slog.Info("cart already filled", slog.Int64("user_id", u.ID))
		return nil
	}
	for _, p := range products {
		if err := repo.AddItem(ctx, c.ID, p.ID, 1); err != nil {
			return errors.Wrapf(err, "add product %s", p.SKU)
		}
	}
	slog.Info("filled cart", slog.Int64("user_id", u.ID), slog.Int("lines", len(products)))
	return nil
}
