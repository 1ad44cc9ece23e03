package sources

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/poiesic/knowledgebot/sources/migrations"
)

const pgUniqueViolation = "23505"

// OpenPostgres connects to a PostgreSQL source store and applies the
// schema.
func OpenPostgres(ctx context.Context, dsn string) (Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	data, err := migrations.Postgres.ReadFile("postgres/001_init.sql")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("read migration: %w", err)
	}
	if _, err := db.ExecContext(ctx, string(data)); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &sqlStore{db: db, dialect: dialect{name: "postgres", positional: true, isDuplicate: pgDuplicate}}, nil
}

func pgDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
