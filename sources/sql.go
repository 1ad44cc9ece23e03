package sources

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/knowledgebot/core"
)

// dialect covers what differs between the SQL backends.
type dialect struct {
	name        string
	positional  bool // $1, $2 instead of ?
	isDuplicate func(error) bool
}

// sqlStore implements Store on database/sql.
type sqlStore struct {
	db      *sql.DB
	dialect dialect
}

const sourceColumns = `id, workspace_id, type, name, status, file_path,
	question, answer, title, content, created_at, updated_at`

// rebind rewrites ? placeholders for dialects that number them.
func (s *sqlStore) rebind(query string) string {
	if !s.dialect.positional {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) Create(ctx context.Context, src *Source) error {
	if err := core.ValidateID("source id", src.ID); err != nil {
		return err
	}
	if err := core.ValidateID("workspace id", src.WorkspaceID); err != nil {
		return err
	}
	if err := core.ValidateSourceType(src.Type); err != nil {
		return err
	}
	now := time.Now().UTC()
	if src.CreatedAt.IsZero() {
		src.CreatedAt = now
	}
	src.UpdatedAt = now
	if src.Status == "" {
		src.Status = core.StatusProcessing
	}

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO knowledge_sources (`+sourceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		src.ID, src.WorkspaceID, string(src.Type), src.Name, string(src.Status), src.FilePath,
		src.Question, src.Answer, src.Title, src.Content,
		src.CreatedAt.UnixNano(), src.UpdatedAt.UnixNano(),
	)
	if err != nil {
		if s.dialect.isDuplicate(err) {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, src.ID)
		}
		return fmt.Errorf("insert source: %w", err)
	}
	return nil
}

func (s *sqlStore) Get(ctx context.Context, id string) (*Source, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT `+sourceColumns+` FROM knowledge_sources WHERE id = ?`), id)
	src, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query source: %w", err)
	}
	return src, nil
}

func (s *sqlStore) List(ctx context.Context, workspaceID string) ([]Source, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT `+sourceColumns+` FROM knowledge_sources
		WHERE workspace_id = ?
		ORDER BY created_at DESC, id`), workspaceID)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	var out []Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		out = append(out, *src)
	}
	return out, rows.Err()
}

func (s *sqlStore) Update(ctx context.Context, src *Source) error {
	src.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE knowledge_sources
		SET name = ?, status = ?, file_path = ?, question = ?, answer = ?,
			title = ?, content = ?, updated_at = ?
		WHERE id = ?`),
		src.Name, string(src.Status), src.FilePath, src.Question, src.Answer,
		src.Title, src.Content, src.UpdatedAt.UnixNano(), src.ID,
	)
	if err != nil {
		return fmt.Errorf("update source: %w", err)
	}
	return expectOne(res, src.ID)
}

func (s *sqlStore) UpdateStatus(ctx context.Context, id string, status core.SourceStatus) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE knowledge_sources SET status = ?, updated_at = ? WHERE id = ?`),
		string(status), time.Now().UTC().UnixNano(), id,
	)
	if err != nil {
		return fmt.Errorf("update source status: %w", err)
	}
	return expectOne(res, id)
}

func (s *sqlStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM knowledge_sources WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete source: %w", err)
	}
	return expectOne(res, id)
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

func expectOne(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSource(row scanner) (*Source, error) {
	var (
		src              Source
		typ, status      string
		created, updated int64
	)
	err := row.Scan(&src.ID, &src.WorkspaceID, &typ, &src.Name, &status, &src.FilePath,
		&src.Question, &src.Answer, &src.Title, &src.Content, &created, &updated)
	if err != nil {
		return nil, err
	}
	src.Type = core.SourceType(typ)
	src.Status = core.SourceStatus(status)
	src.CreatedAt = time.Unix(0, created).UTC()
	src.UpdatedAt = time.Unix(0, updated).UTC()
	return &src, nil
}
