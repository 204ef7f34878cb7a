package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"alumnet-chat/internal/config"
	"alumnet-chat/pkg/database"

	"github.com/joho/godotenv"
)

const usage = `
alumnet-chat database tool

Usage:
  migrate [command] [flags]

Commands:
  up          Apply all migrations
  status      Check database connectivity and core tables

Flags:
  -migrations string   Path to migrations directory (default "migrations")
`

func main() {
	migrationsDir := flag.String("migrations", "migrations", "Path to migrations directory")
	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx := context.Background()
	pool, err := database.New(ctx, database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Name:            cfg.Database.Name,
		MaxConns:        cfg.Database.MaxConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
	})
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer pool.Close()

	switch cmd := flag.Arg(0); cmd {
	case "up":
		if err := database.ApplyMigrations(ctx, pool, *migrationsDir); err != nil {
			log.Fatalf("migration failed: %v", err)
		}
		log.Println("migrations applied")
	case "status":
		showStatus(ctx, pool)
	default:
		fmt.Printf("Unknown command: %s\n", cmd)
		flag.Usage()
		os.Exit(1)
	}
}

func showStatus(ctx context.Context, db database.DBTX) {
	tables := []string{"conversations", "participants", "messages", "message_reactions", "outbox_events"}
	for _, table := range tables {
		var exists bool
		err := db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`,
			table,
		).Scan(&exists)
		switch {
		case err != nil:
			log.Printf("table %-20s check failed: %v", table, err)
		case exists:
			log.Printf("table %-20s ok", table)
		default:
			log.Printf("table %-20s missing", table)
		}
	}
}
