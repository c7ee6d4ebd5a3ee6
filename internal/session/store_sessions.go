package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

const sessionColumns = "id, label, status, settings, output_path, message, created_at, updated_at"

// Create starts a new running session.
func (s *Store) Create(ctx context.Context, label string, settings Settings) (*Session, error) {
	blob, err := msgpack.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}
	now := time.Now().UTC()
	sess := &Session{
		ID:        uuid.NewString(),
		Label:     strings.TrimSpace(label),
		Status:    StatusRunning,
		Settings:  settings,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.exec(ctx,
		`INSERT INTO sessions (id, label, status, settings, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, nullableString(sess.Label), sess.Status, blob, formatTime(now), formatTime(now),
	); err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

// Get fetches a session by its full identifier.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// Resolve accepts a full identifier or a unique prefix of one.
func (s *Store) Resolve(ctx context.Context, ref string) (*Session, error) {
	ref = strings.ToLower(strings.TrimSpace(ref))
	if ref == "" {
		return nil, fmt.Errorf("%w: empty identifier", ErrNotFound)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id LIKE ? ESCAPE '\' ORDER BY created_at LIMIT 2`,
		escapeLike(ref)+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}
	defer rows.Close()

	var matches []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		matches = append(matches, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguous, ref)
	}
}

// Latest returns the most recently created session.
func (s *Store) Latest(ctx context.Context) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY created_at DESC, rowid DESC LIMIT 1`)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no sessions recorded", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("latest session: %w", err)
	}
	return sess, nil
}

// List returns every session, newest first.
func (s *Store) List(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, *sess)
	}
	return out, rows.Err()
}

// Finish records the final status of a session.
func (s *Store) Finish(ctx context.Context, id string, status Status, outputPath, message string) error {
	res, err := s.exec(ctx,
		`UPDATE sessions SET status = ?, output_path = COALESCE(?, output_path), message = ?, updated_at = ? WHERE id = ?`,
		status, nullableString(outputPath), nullableString(message), formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// UpdateSettings replaces the stored parameters of a session, used after a
// rebuild re-decodes its captures with new decode options.
func (s *Store) UpdateSettings(ctx context.Context, id string, settings Settings) error {
	blob, err := msgpack.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	res, err := s.exec(ctx,
		`UPDATE sessions SET settings = ?, updated_at = ? WHERE id = ?`,
		blob, formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Reopen marks a finished session as running again for a resumed capture.
func (s *Store) Reopen(ctx context.Context, id string) error {
	return s.Finish(ctx, id, StatusRunning, "", "")
}

// Delete removes a session and its tracks.
func (s *Store) Delete(ctx context.Context, id string) error {
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin delete tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, `DELETE FROM tracks WHERE session_id = ?`, id); err != nil {
			return fmt.Errorf("delete tracks: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return tx.Commit()
	})
}

func scanSession(scanner interface{ Scan(dest ...any) error }) (*Session, error) {
	var (
		sess       Session
		label      sql.NullString
		status     string
		settings   []byte
		outputPath sql.NullString
		message    sql.NullString
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(&sess.ID, &label, &status, &settings, &outputPath, &message, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	if err := msgpack.Unmarshal(settings, &sess.Settings); err != nil {
		return nil, fmt.Errorf("decode settings for session %s: %w", sess.ID, err)
	}
	sess.Label = label.String
	sess.Status = Status(status)
	sess.OutputPath = outputPath.String
	sess.Message = message.String
	sess.CreatedAt = parseTime(createdRaw)
	sess.UpdatedAt = parseTime(updatedRaw)
	return &sess, nil
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
