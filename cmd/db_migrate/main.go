package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/asgard/atc/internal/platform/db"
)

func main() {
	log.Println("ATC Database Verification & Migration Tool")

	cfg, err := db.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Println("Testing PostgreSQL connection...")
	pgDB, err := db.NewPostgresDB(cfg)
	if err != nil {
		log.Fatalf("PostgreSQL connection failed: %v", err)
	}
	defer pgDB.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := pgDB.Health(ctx); err != nil {
		log.Fatalf("PostgreSQL health check failed: %v", err)
	}
	log.Println("✓ PostgreSQL connection successful")

	log.Println("Applying schema migrations...")
	if err := pgDB.Migrate(ctx); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("✓ Schema up to date")

	log.Println("Row counts:")
	for _, table := range db.ATCTables {
		count, err := pgDB.RowCount(ctx, table)
		if err != nil {
			log.Fatalf("Failed to count rows in %s: %v", table, err)
		}
		log.Printf("  %-20s %d", table, count)
	}

	log.Println("\n=== DATABASE VERIFICATION COMPLETE ===")
	os.Exit(0)
}
