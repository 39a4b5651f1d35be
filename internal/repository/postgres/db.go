package postgres

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
)

// InitDB connects to Postgres and applies the schema.
func InitDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migrateDB(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	slog.Info("Database connected and migrated")
	return db, nil
}

func migrateDB(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			brand_id TEXT,
			status TEXT NOT NULL DEFAULT 'ACTIVE',
			sales_count INT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS variants (
			id TEXT PRIMARY KEY,
			product_id TEXT NOT NULL REFERENCES products(id),
			name TEXT NOT NULL,
			price_cents BIGINT NOT NULL DEFAULT 0,
			stock INT NOT NULL DEFAULT 0,
			reserved_stock INT NOT NULL DEFAULT 0,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			CHECK (reserved_stock >= 0 AND reserved_stock <= stock)
		);

		CREATE TABLE IF NOT EXISTS stock_movements (
			id TEXT PRIMARY KEY,
			variant_id TEXT NOT NULL REFERENCES variants(id),
			kind TEXT NOT NULL,
			quantity INT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			reference_id TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS addresses (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			zip_code TEXT NOT NULL DEFAULT '',
			address1 TEXT NOT NULL DEFAULT '',
			address2 TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'PENDING',
			total_cents BIGINT NOT NULL DEFAULT 0,
			discount_cents BIGINT NOT NULL DEFAULT 0,
			shipping_cents BIGINT NOT NULL DEFAULT 0,
			final_cents BIGINT NOT NULL DEFAULT 0,
			coupon_id TEXT,
			addr_name TEXT NOT NULL DEFAULT '',
			addr_phone TEXT NOT NULL DEFAULT '',
			addr_zip_code TEXT NOT NULL DEFAULT '',
			addr_address1 TEXT NOT NULL DEFAULT '',
			addr_address2 TEXT NOT NULL DEFAULT '',
			note TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS order_lines (
			id TEXT PRIMARY KEY,
			order_id TEXT NOT NULL REFERENCES orders(id),
			product_id TEXT NOT NULL,
			variant_id TEXT NOT NULL,
			product_name TEXT NOT NULL,
			variant_name TEXT NOT NULL,
			price_cents BIGINT NOT NULL DEFAULT 0,
			quantity INT NOT NULL DEFAULT 1,
			subtotal_cents BIGINT NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS payments (
			id TEXT PRIMARY KEY,
			order_id TEXT NOT NULL UNIQUE REFERENCES orders(id),
			amount_cents BIGINT NOT NULL DEFAULT 0,
			cancelled_cents BIGINT NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'PENDING',
			method TEXT NOT NULL DEFAULT '',
			provider_tx_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS shipments (
			id TEXT PRIMARY KEY,
			order_id TEXT NOT NULL UNIQUE REFERENCES orders(id),
			status TEXT NOT NULL DEFAULT 'PREPARING',
			carrier TEXT,
			tracking_number TEXT,
			shipped_at TIMESTAMP,
			delivered_at TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS coupons (
			id TEXT PRIMARY KEY,
			code TEXT NOT NULL UNIQUE,
			type TEXT NOT NULL,
			value BIGINT NOT NULL DEFAULT 0,
			min_order_cents BIGINT NOT NULL DEFAULT 0,
			max_discount_cents BIGINT,
			valid_from TIMESTAMP NOT NULL,
			valid_until TIMESTAMP NOT NULL,
			max_usage_count INT,
			used_count INT NOT NULL DEFAULT 0,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS coupon_usages (
			id TEXT PRIMARY KEY,
			coupon_id TEXT NOT NULL REFERENCES coupons(id),
			user_id TEXT NOT NULL,
			order_id TEXT NOT NULL,
			used_at TIMESTAMP NOT NULL DEFAULT NOW(),
			UNIQUE (coupon_id, user_id)
		);

		CREATE TABLE IF NOT EXISTS returns (
			id TEXT PRIMARY KEY,
			order_id TEXT NOT NULL REFERENCES orders(id),
			order_line_id TEXT,
			user_id TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'REQUESTED',
			reason TEXT NOT NULL DEFAULT '',
			refund_cents BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		);
	`)
	return err
}

// Seed inserts demo catalog data and coupons when the database is empty.
func Seed(db *sql.DB) error {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM products").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	type seedVariant struct {
		id, name   string
		priceCents int64
		stock      int
	}
	type seedProduct struct {
		id, name string
		variants []seedVariant
	}

	products := []seedProduct{
		{id: "prod-001", name: "Wireless Noise-Cancelling Headphones", variants: []seedVariant{
			{id: "var-001", name: "Black", priceCents: 34999, stock: 50},
			{id: "var-002", name: "Silver", priceCents: 34999, stock: 30},
		}},
		{id: "prod-002", name: "Mechanical Keyboard RGB", variants: []seedVariant{
			{id: "var-003", name: "Brown switches", priceCents: 17999, stock: 120},
			{id: "var-004", name: "Blue switches", priceCents: 17999, stock: 80},
		}},
		{id: "prod-003", name: "Ergonomic Office Chair", variants: []seedVariant{
			{id: "var-005", name: "Standard", priceCents: 54999, stock: 25},
		}},
	}

	for _, p := range products {
		if _, err := db.Exec(
			"INSERT INTO products (id, name, status) VALUES ($1, $2, 'ACTIVE')",
			p.id, p.name,
		); err != nil {
			return fmt.Errorf("failed to seed product %s: %w", p.id, err)
		}
		for _, v := range p.variants {
			if _, err := db.Exec(
				"INSERT INTO variants (id, product_id, name, price_cents, stock) VALUES ($1, $2, $3, $4, $5)",
				v.id, p.id, v.name, v.priceCents, v.stock,
			); err != nil {
				return fmt.Errorf("failed to seed variant %s: %w", v.id, err)
			}
		}
	}

	now := time.Now().UTC()
	coupons := []struct {
		id, code, kind string
		value          int64
		minOrder       int64
		maxDiscount    *int64
	}{
		{id: "coupon-001", code: "WELCOME10", kind: "PERCENTAGE", value: 10, minOrder: 30000, maxDiscount: ptrInt64(10000)},
		{id: "coupon-002", code: "SAVE5000", kind: "FIXED", value: 5000, minOrder: 50000},
	}
	for _, c := range coupons {
		if _, err := db.Exec(
			`INSERT INTO coupons (id, code, type, value, min_order_cents, max_discount_cents, valid_from, valid_until, active)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE)`,
			c.id, c.code, c.kind, c.value, c.minOrder, c.maxDiscount, now.AddDate(0, -1, 0), now.AddDate(1, 0, 0),
		); err != nil {
			return fmt.Errorf("failed to seed coupon %s: %w", c.code, err)
		}
	}

	slog.Info("Seeded catalog", "products", len(products), "coupons", len(coupons))
	return nil
}

func ptrInt64(v int64) *int64 { return &v }
