package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	seedUsers(ctx, pool)
	seedCatalog(ctx, pool)
	seedPromos(ctx, pool)

	log.Println("Seeding completed successfully!")
}

func seedUsers(ctx context.Context, pool *pgxpool.Pool) {
	log.Println("Seeding users...")

	adminPassword := os.Getenv("SEED_ADMIN_PASSWORD")
	if adminPassword == "" {
		adminPassword = "glow-admin-dev"
	}
	hash, err := argon2id.CreateHash(adminPassword, argon2id.DefaultParams)
	if err != nil {
		log.Fatalf("Failed to hash admin password: %v", err)
	}

	users := []struct {
		Name  string
		Email string
		Roles string
	}{
		{"GlowMart Admin", "admin@glowmart.example", "{admin}"},
		{"Ayesha Rahman", "ayesha@example.com", "{customer}"},
		{"Nabila Hossain", "nabila@example.com", "{customer}"},
		{"Farhan Ahmed", "farhan@example.com", "{customer}"},
	}
	for _, u := range users {
		_, err := pool.Exec(ctx, `
			INSERT INTO users (name, email, password_hash, roles)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name, roles = EXCLUDED.roles`,
			u.Name, u.Email, hash, u.Roles)
		if err != nil {
			log.Fatalf("Failed to seed user %s: %v", u.Email, err)
		}
	}
}

func seedCatalog(ctx context.Context, pool *pgxpool.Pool) {
	log.Println("Seeding catalog...")

	brands := map[string]string{
		"Herlan":       "herlan",
		"Lafz":         "lafz",
		"Nirvana Glow": "nirvana-glow",
		"Skin Cafe":    "skin-cafe",
	}
	brandIDs := map[string]string{}
	for name, slug := range brands {
		var id string
		err := pool.QueryRow(ctx, `
			INSERT INTO brands (name, slug) VALUES ($1, $2)
			ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name
			RETURNING id`, name, slug).Scan(&id)
		if err != nil {
			log.Fatalf("Failed to seed brand %s: %v", name, err)
		}
		brandIDs[slug] = id
	}

	categories := map[string]string{
		"Skincare":  "skincare",
		"Makeup":    "makeup",
		"Hair Care": "hair-care",
		"Fragrance": "fragrance",
	}
	categoryIDs := map[string]string{}
	for name, slug := range categories {
		var id string
		err := pool.QueryRow(ctx, `
			INSERT INTO categories (name, slug) VALUES ($1, $2)
			ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name
			RETURNING id`, name, slug).Scan(&id)
		if err != nil {
			log.Fatalf("Failed to seed category %s: %v", name, err)
		}
		categoryIDs[slug] = id
	}

	products := []struct {
		Title        string
		Slug         string
		Brand        string
		Category     string
		Price        string
		Original     *string
		TaxPercent   string
		FreeDelivery bool
		Stock        int
		Threshold    int
	}{
		{"Vitamin C Brightening Serum", "vitamin-c-brightening-serum", "skin-cafe", "skincare", "850.00", ptr("1050.00"), "10", false, 40, 5},
		{"Rose Water Facial Toner", "rose-water-facial-toner", "nirvana-glow", "skincare", "320.00", nil, "10", false, 80, 10},
		{"Matte Liquid Lipstick - Crimson", "matte-liquid-lipstick-crimson", "herlan", "makeup", "450.00", ptr("520.00"), "15", false, 60, 8},
		{"Argan Oil Hair Mask", "argan-oil-hair-mask", "skin-cafe", "hair-care", "680.00", nil, "10", true, 25, 5},
		{"Oud Royale Eau de Parfum", "oud-royale-eau-de-parfum", "lafz", "fragrance", "2200.00", ptr("2600.00"), "20", true, 15, 3},
		{"Hydrating Night Cream", "hydrating-night-cream", "nirvana-glow", "skincare", "540.00", nil, "10", false, 50, 6},
	}
	for _, p := range products {
		_, err := pool.Exec(ctx, `
			INSERT INTO products (title, slug, brand_id, category_id, price, original_price,
				tax_percent, free_delivery, stock, low_stock_threshold, track_inventory, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, true, 'active')
			ON CONFLICT (slug) DO UPDATE SET price = EXCLUDED.price, stock = EXCLUDED.stock`,
			p.Title, p.Slug, brandIDs[p.Brand], categoryIDs[p.Category],
			p.Price, p.Original, p.TaxPercent, p.FreeDelivery, p.Stock, p.Threshold)
		if err != nil {
			log.Fatalf("Failed to seed product %s: %v", p.Slug, err)
		}
	}
}

func seedPromos(ctx context.Context, pool *pgxpool.Pool) {
	log.Println("Seeding promo codes...")

	promos := []struct {
		Code     string
		Type     string
		Value    string
		MinOrder string
	}{
		{"GLOW10", "percentage", "10", "500"},
		{"FLAT100", "fixed_amount", "100", "1000"},
		{"SHIPFREE", "free_shipping", "0", "1500"},
	}
	for _, p := range promos {
		_, err := pool.Exec(ctx, `
			INSERT INTO promo_codes (code, type, value, min_order_amount, active)
			VALUES ($1, $2, $3, $4, true)
			ON CONFLICT (lower(code)) DO UPDATE SET
				type = EXCLUDED.type, value = EXCLUDED.value, min_order_amount = EXCLUDED.min_order_amount`,
			p.Code, p.Type, p.Value, p.MinOrder)
		if err != nil {
			log.Fatalf("Failed to seed promo %s: %v", p.Code, err)
		}
	}
}

func ptr(s string) *string { return &s }
