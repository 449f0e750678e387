package main

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib"

	"PharmaStore/internal/auth"
	"PharmaStore/internal/catalog"
	"PharmaStore/internal/config"
	"PharmaStore/internal/seed"
	"PharmaStore/pkg/web"
)

func main() {
	log := web.NewLogger("seed")
	defer func() { _ = log.Sync() }()

	cfg := config.Load()
	if cfg.DBDSN == "" {
		log.Fatal("DB_DSN is required")
	}

	db, err := sql.Open("pgx", cfg.DBDSN)
	if err != nil {
		log.Fatal("open db", zap.Error(err))
	}
	defer db.Close()

	users := auth.NewPostgresStore(db)
	products := catalog.NewPostgresStore(db)

	if err := seed.Apply(context.Background(), users, products); err != nil {
		log.Fatal("seed apply", zap.Error(err))
	}

	log.Info("seed applied")
}
