package sources

import (
	"context"
	"fmt"
	"strings"
)

// Open picks a backend from the database URL:
//   - postgres:// or postgresql:// opens PostgreSQL
//   - sqlite://<path> or a bare path opens SQLite
func Open(ctx context.Context, databaseURL string) (Store, error) {
	switch {
	case databaseURL == "":
		return nil, fmt.Errorf("%w: empty", ErrUnsupportedDSN)
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		store, err := OpenPostgres(ctx, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		return store, nil
	case strings.HasPrefix(databaseURL, "sqlite://"):
		return OpenSQLite(strings.TrimPrefix(databaseURL, "sqlite://"))
	case strings.Contains(databaseURL, "://"):
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDSN, databaseURL)
	default:
		return OpenSQLite(databaseURL)
	}
}
