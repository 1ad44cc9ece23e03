package sources

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/poiesic/knowledgebot/sources/migrations"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// OpenSQLite opens (creating if needed) a SQLite source store at path.
func OpenSQLite(path string) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	data, err := migrations.SQLite.ReadFile("sqlite/001_init.sql")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("read migration: %w", err)
	}
	if _, err := db.Exec(string(data)); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &sqlStore{db: db, dialect: dialect{name: "sqlite", isDuplicate: sqliteDuplicate}}, nil
}

func sqliteDuplicate(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	// Extended codes keep the primary code in the low byte.
	return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}
