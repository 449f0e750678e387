package main

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib"

	"PharmaStore/internal/config"
	"PharmaStore/internal/migrate"
	"PharmaStore/pkg/web"
)

func main() {
	log := web.NewLogger("migrate")
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

	if err := migrate.Apply(context.Background(), db); err != nil {
		log.Fatal("apply migrations", zap.Error(err))
	}

	log.Info("migrations applied")
}
