package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"fluxscp/internal/flux"
	"fluxscp/internal/trackstore"
)

const trackColumns = "physical, cylinder, head, status, attempts, index_edges, message, payload, updated_at"

// RecordTrack stores the outcome of a track, replacing any earlier attempt.
func (s *Store) RecordTrack(ctx context.Context, sessionID string, rec TrackRecord) error {
	var payload any
	if rec.Status.HasData() {
		if rec.Track == nil {
			return fmt.Errorf("record track %d: status %s requires track data", rec.Physical, rec.Status)
		}
		blob, err := msgpack.Marshal(rec.Track)
		if err != nil {
			return fmt.Errorf("encode track %d: %w", rec.Physical, err)
		}
		payload = blob
	}
	_, err := s.exec(ctx,
		`INSERT INTO tracks (session_id, physical, cylinder, head, status, attempts, index_edges, message, payload, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT (session_id, physical) DO UPDATE SET
             cylinder = excluded.cylinder,
             head = excluded.head,
             status = excluded.status,
             attempts = excluded.attempts,
             index_edges = excluded.index_edges,
             message = excluded.message,
             payload = excluded.payload,
             updated_at = excluded.updated_at`,
		sessionID, rec.Physical, rec.Cylinder, rec.Head, rec.Status, rec.Attempts, rec.IndexEdges,
		nullableString(rec.Message), payload, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("record track %d: %w", rec.Physical, err)
	}
	return nil
}

// Tracks returns every recorded track of a session ordered by physical index.
// Payloads are decoded only when withData is set.
func (s *Store) Tracks(ctx context.Context, sessionID string, withData bool) ([]TrackRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+trackColumns+` FROM tracks WHERE session_id = ? ORDER BY physical`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	defer rows.Close()

	var out []TrackRecord
	for rows.Next() {
		var (
			rec        TrackRecord
			status     string
			message    sql.NullString
			payload    []byte
			updatedRaw string
		)
		if err := rows.Scan(&rec.Physical, &rec.Cylinder, &rec.Head, &status, &rec.Attempts,
			&rec.IndexEdges, &message, &payload, &updatedRaw); err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}
		rec.Status = TrackStatus(status)
		rec.Message = message.String
		rec.UpdatedAt = parseTime(updatedRaw)
		if withData && len(payload) > 0 {
			var track flux.Track
			if err := msgpack.Unmarshal(payload, &track); err != nil {
				return nil, fmt.Errorf("decode track %d: %w", rec.Physical, err)
			}
			rec.Track = &track
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Completed returns the physical indices that need no further capture:
// tracks with data, and absent tracks.
func (s *Store) Completed(ctx context.Context, sessionID string) (map[uint32]TrackStatus, error) {
	records, err := s.Tracks(ctx, sessionID, false)
	if err != nil {
		return nil, err
	}
	done := make(map[uint32]TrackStatus, len(records))
	for _, rec := range records {
		if rec.Status != TrackFailed {
			done[rec.Physical] = rec.Status
		}
	}
	return done, nil
}

// Summarize counts track outcomes.
func (s *Store) Summarize(ctx context.Context, sessionID string) (Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(1) FROM tracks WHERE session_id = ? GROUP BY status`, sessionID)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize tracks: %w", err)
	}
	defer rows.Close()

	var sum Summary
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return Summary{}, fmt.Errorf("scan summary: %w", err)
		}
		switch TrackStatus(status) {
		case TrackCaptured:
			sum.Captured = count
		case TrackWarning:
			sum.Warning = count
		case TrackAbsent:
			sum.Absent = count
		case TrackFailed:
			sum.Failed = count
		}
	}
	return sum, rows.Err()
}

// LoadStore rebuilds a track store from every track of the session that
// carries data.
func (s *Store) LoadStore(ctx context.Context, sessionID string) (*trackstore.Store, error) {
	records, err := s.Tracks(ctx, sessionID, true)
	if err != nil {
		return nil, err
	}
	store := trackstore.New()
	for _, rec := range records {
		if rec.Track != nil {
			store.Put(*rec.Track)
		}
	}
	return store, nil
}
