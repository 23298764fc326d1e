package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	seedProducts(db)
	seedDiscountGroups(db)
	seedPricingPlans(db)

	log.Println("Seeding completed successfully!")
}

func seedProducts(db *sql.DB) {
	products := []struct {
		Code          string
		Name          string
		ConsumerPrice int64
	}{
		{"BRS-001", "Beras Premium 5kg", 78000},
		{"BRS-002", "Beras Medium 5kg", 62000},
		{"MYK-001", "Minyak Goreng 2L", 36000},
		{"MYK-002", "Minyak Goreng 1L", 19000},
		{"GUL-001", "Gula Pasir 1kg", 16500},
		{"TPG-001", "Tepung Terigu 1kg", 13000},
		{"SUS-001", "Susu Kental Manis 370g", 12500},
		{"KOP-001", "Kopi Bubuk 200g", 24000},
		{"TEH-001", "Teh Celup 25pcs", 9500},
		{"SBN-001", "Sabun Mandi 85g", 4500},
		{"SBN-002", "Sabun Cuci Piring 800ml", 15500},
		{"DET-001", "Deterjen Bubuk 1kg", 22000},
	}

	fmt.Println("Seeding Products...")
	for _, p := range products {
		_, err := db.Exec(`
			INSERT INTO products (code, name, consumer_price)
			VALUES ($1, $2, $3)
			ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name, consumer_price = EXCLUDED.consumer_price;
		`, p.Code, p.Name, p.ConsumerPrice)
		if err != nil {
			log.Printf("Failed to seed product %s: %v", p.Code, err)
		}
	}
}

func seedDiscountGroups(db *sql.DB) {
	groups := []struct {
		Name    string
		Members []string
		Tiers   []struct {
			MinQty      int
			RateBps     int32
			Description string
		}
	}{
		{
			Name:    "Sembako Pokok",
			Members: []string{"BRS-001", "BRS-002", "GUL-001", "TPG-001"},
			Tiers: []struct {
				MinQty      int
				RateBps     int32
				Description string
			}{
				{5, 300, "Diskon grup 3% mulai 5 pcs"},
				{10, 600, "Diskon grup 6% mulai 10 pcs"},
				{25, 1000, "Diskon grup 10% mulai 25 pcs"},
			},
		},
		{
			Name:    "Perawatan Rumah",
			Members: []string{"SBN-001", "SBN-002", "DET-001"},
			Tiers: []struct {
				MinQty      int
				RateBps     int32
				Description string
			}{
				{6, 400, "Diskon grup 4% mulai 6 pcs"},
				{12, 800, "Diskon grup 8% mulai 12 pcs"},
			},
		},
	}

	fmt.Println("Seeding Discount Groups...")
	for _, g := range groups {
		var groupID int64
		err := db.QueryRow(`
			INSERT INTO discount_groups (name)
			VALUES ($1)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id;
		`, g.Name).Scan(&groupID)
		if err != nil {
			log.Printf("Failed to upsert discount group %s: %v", g.Name, err)
			continue
		}

		for _, code := range g.Members {
			_, err := db.Exec(`
				INSERT INTO discount_group_members (group_id, product_code)
				VALUES ($1, $2)
				ON CONFLICT (group_id, product_code) DO NOTHING;
			`, groupID, code)
			if err != nil {
				log.Printf("Failed to add %s to group %s: %v", code, g.Name, err)
			}
		}

		for _, t := range g.Tiers {
			_, err := db.Exec(`
				INSERT INTO discount_group_tiers (group_id, min_qty, rate_bps, description)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (group_id, min_qty) DO UPDATE SET rate_bps = EXCLUDED.rate_bps, description = EXCLUDED.description;
			`, groupID, t.MinQty, t.RateBps, t.Description)
			if err != nil {
				log.Printf("Failed to seed tier for group %s: %v", g.Name, err)
			}
		}
	}
}

func seedPricingPlans(db *sql.DB) {
	var planID int64
	err := db.QueryRow(`
		INSERT INTO pricing_plans (name, is_active, valid_from, valid_to)
		VALUES ('Promo Grosir Semester', TRUE, NOW() - INTERVAL '7 days', NOW() + INTERVAL '90 days')
		ON CONFLICT (name) DO UPDATE SET is_active = EXCLUDED.is_active, valid_to = EXCLUDED.valid_to
		RETURNING id;
	`).Scan(&planID)
	if err != nil {
		log.Fatalf("Failed to upsert pricing plan: %v", err)
	}

	tiers := []struct {
		ProductCode string
		MinQty      int
		RateBps     int32
		Description string
	}{
		{"MYK-001", 4, 500, "Diskon 5% mulai 4 pcs"},
		{"MYK-001", 10, 800, "Diskon 8% mulai 10 pcs"},
		{"KOP-001", 6, 600, "Diskon 6% mulai 6 pcs"},
		{"KOP-001", 12, 1000, "Diskon 10% mulai 12 pcs"},
		{"SUS-001", 24, 700, "Diskon 7% mulai 1 karton"},
		{"TEH-001", 10, 500, "Diskon 5% mulai 10 pcs"},
	}

	fmt.Println("Seeding Pricing Plan Tiers...")
	for _, t := range tiers {
		_, err := db.Exec(`
			INSERT INTO pricing_plan_tiers (plan_id, product_code, min_qty, rate_bps, description)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (plan_id, product_code, min_qty) DO UPDATE SET rate_bps = EXCLUDED.rate_bps, description = EXCLUDED.description;
		`, planID, t.ProductCode, t.MinQty, t.RateBps, t.Description)
		if err != nil {
			log.Printf("Failed to seed plan tier %s/%d: %v", t.ProductCode, t.MinQty, err)
		}
	}
}
