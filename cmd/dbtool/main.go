package main

import (
	"context"
	"database/sql"
	"delivery-batch-service/internal/adapters/repositories"
	"delivery-batch-service/internal/config"
	"delivery-batch-service/internal/platform/db"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	skipSeed := flag.Bool("schema-only", false, "create the schema without loading seed data")
	seedPath := flag.String("seed", "", "seed file path (defaults to SEED_PATH)")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}
	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL is required")
	}
	if *seedPath == "" {
		*seedPath = cfg.SeedPath
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	conn, err := db.Open(ctx, cfg.DatabaseURL, db.DefaultPoolOptions())
	if err != nil {
		log.Fatal().Err(err).Msg("cannot connect to db")
	}
	defer conn.Close()

	if err := initAndSeed(ctx, conn, *seedPath, !*skipSeed); err != nil {
		log.Fatal().Err(err).Msg("dbtool failed")
	}
}

func initAndSeed(ctx context.Context, conn *sql.DB, seedPath string, seed bool) error {
	log.Info().Msg("initializing database schema")
	if err := repositories.InitSchema(ctx, conn); err != nil {
		return fmt.Errorf("schema initialization failed: %w", err)
	}
	log.Info().Msg("schema ready")

	if !seed {
		return nil
	}

	log.Info().Str("seed_path", seedPath).Msg("seeding database")
	if err := repositories.SeedFromJSON(ctx, conn, seedPath); err != nil {
		return fmt.Errorf("seeding failed: %w", err)
	}
	log.Info().Msg("seeding complete")

	return nil
}
