// Command seed loads the demo accounts into a development database and prints
// their freshly issued access codes.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/HammerMeetNail/time2watch/internal/config"
	"github.com/HammerMeetNail/time2watch/internal/database"
	"github.com/HammerMeetNail/time2watch/internal/logging"
	"github.com/HammerMeetNail/time2watch/internal/services"
)

func main() {
	if err := run(); err != nil {
		logging.Error("Seeding failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Server.IsProduction() {
		return fmt.Errorf("refusing to seed demo accounts in production")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := database.NewPostgresDB(ctx, cfg.Database.DSN(), database.PoolSize{Max: 2, Min: 0})
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer db.Close()

	if _, err := database.Migrate(cfg.Database.DSN(), "migrations"); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	seeded, err := services.NewSeeder(services.NewPoolAdapter(db.Pool)).SeedDemo(ctx)
	if err != nil {
		return err
	}

	fmt.Println("Demo accounts (codes are shown only once):")
	for _, u := range seeded {
		fmt.Printf("  %-12s %s\n", u.Username, u.Code)
	}
	return nil
}
