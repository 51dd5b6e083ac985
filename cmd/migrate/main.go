package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"chatcore/config"
	"chatcore/internal/repository"
	"chatcore/pkg/database"

	"gorm.io/gorm"
)

const usage = `
chatcore - Database CLI Tool

Usage:
  migrate [command] [flags]

Commands:
  up          Create or update every table, index and constraint
  status      Show database connection status and table row counts
  truncate    Delete every row from every table (DANGEROUS, needs -yes)

Flags:
  -yes        Confirm a destructive command

Examples:
  go run cmd/migrate/main.go up
  go run cmd/migrate/main.go status
  go run cmd/migrate/main.go -yes truncate
`

func main() {
	confirm := flag.Bool("yes", false, "Confirm a destructive command")

	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	command := flag.Arg(0)

	cfg := config.LoadConfig()
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer database.Close(db)

	switch command {
	case "up":
		runMigrationsUp(db)
	case "status":
		showStatus(db)
	case "truncate":
		runTruncate(db, *confirm)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

func runMigrationsUp(db *gorm.DB) {
	log.Println("Running migrations UP...")

	if err := repository.InitSchema(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Println("Migrations completed successfully")
}

func showStatus(db *gorm.DB) {
	log.Println("Checking database status...")

	if err := database.HealthCheck(context.Background(), db); err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Database connection: OK")

	for _, model := range database.Models() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			log.Printf("Cannot resolve table for %T: %v", model, err)
			continue
		}
		table := stmt.Schema.Table
		if !db.Migrator().HasTable(table) {
			log.Printf("Table %-20s does not exist", table)
			continue
		}
		var count int64
		if err := db.Table(table).Count(&count).Error; err != nil {
			log.Printf("Error counting table %s: %v", table, err)
			continue
		}
		log.Printf("Table %-20s exists (%d rows)", table, count)
	}
}

func runTruncate(db *gorm.DB, confirmed bool) {
	if !confirmed {
		log.Fatalf("Refusing to truncate without -yes")
	}
	log.Println("WARNING: deleting every row from every table")

	if err := database.Truncate(db); err != nil {
		log.Fatalf("Truncate failed: %v", err)
	}

	log.Println("All tables truncated")
}
