package postgres

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"docfill/internal/config"
)

// requiredTables must exist before the server or worker touch documents.
var requiredTables = []string{"documents"}

// NewDB opens the pgx-backed pool and verifies the document schema is migrated.
func NewDB(cfg *config.DBConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect("pgx", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpen)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := checkSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

type schemaQuerier interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

func checkSchema(ctx context.Context, q schemaQuerier) error {
	var missing []string
	for _, table := range requiredTables {
		var found bool
		if err := q.GetContext(ctx, &found, `SELECT to_regclass($1) IS NOT NULL`, "public."+table); err != nil {
			return fmt.Errorf("checking table %s: %w", table, err)
		}
		if !found {
			missing = append(missing, table)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing tables %v: run `migrate up` first", missing)
	}
	return nil
}
