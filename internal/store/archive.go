// Package store persists finished-episode summaries in Postgres. The
// final roster-wide belief snapshot is kept as a pgvector column so
// archived episodes can be ranked by belief-state similarity.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/scry-rl/scry/internal/domain"
)

var ErrNotFound = errors.New("record not found")

type EpisodeArchive struct {
	db *pgxpool.Pool
}

func NewEpisodeArchive(db *pgxpool.Pool) *EpisodeArchive {
	return &EpisodeArchive{db: db}
}

// SaveEpisode upserts one archived episode. Archiving the same episode
// twice overwrites the earlier summary.
func (s *EpisodeArchive) SaveEpisode(ctx context.Context, rec *domain.EpisodeRecord) error {
	var snapshot *pgvector.Vector
	if len(rec.Snapshot) > 0 {
		v := pgvector.NewVector(rec.Snapshot)
		snapshot = &v
	}

	rosterJSON, err := json.Marshal(rec.Roster)
	if err != nil {
		return fmt.Errorf("marshal roster: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO archived_episodes (
			id, started_at, archived_at, roster,
			events, contradictions, malformed, snapshot
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			archived_at = $3, roster = $4,
			events = $5, contradictions = $6, malformed = $7, snapshot = $8`,
		rec.ID, rec.StartedAt, rec.ArchivedAt, rosterJSON,
		rec.Events, rec.Contradictions, rec.Malformed, snapshot,
	)
	return err
}

// SaveContradictions records the per-slot contradiction diagnostics for
// an archived episode. Re-archiving replaces the previous set.
func (s *EpisodeArchive) SaveContradictions(ctx context.Context, episodeID uuid.UUID, cs []domain.Contradiction) error {
	if _, err := s.db.Exec(ctx,
		`DELETE FROM episode_contradictions WHERE episode_id = $1`, episodeID,
	); err != nil {
		return fmt.Errorf("clear contradictions: %w", err)
	}

	for _, c := range cs {
		_, err := s.db.Exec(ctx,
			`INSERT INTO episode_contradictions (
				id, episode_id, slot, species, field, kept, rejected, detected_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			c.ID, episodeID, c.Slot, c.Species, string(c.Field), c.Kept, c.Rejected, c.DetectedAt,
		)
		if err != nil {
			return fmt.Errorf("insert contradiction: %w", err)
		}
	}
	return nil
}

// GetEpisode fetches one archived episode with its contradictions left
// out; use ContradictionsByEpisode for those.
func (s *EpisodeArchive) GetEpisode(ctx context.Context, id uuid.UUID) (*domain.EpisodeRecord, error) {
	rec := &domain.EpisodeRecord{}
	var rosterJSON []byte
	var snapshot *pgvector.Vector

	err := s.db.QueryRow(ctx,
		`SELECT id, started_at, archived_at, roster, events, contradictions, malformed, snapshot
		FROM archived_episodes WHERE id = $1`,
		id,
	).Scan(&rec.ID, &rec.StartedAt, &rec.ArchivedAt, &rosterJSON,
		&rec.Events, &rec.Contradictions, &rec.Malformed, &snapshot)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if len(rosterJSON) > 0 {
		if err := json.Unmarshal(rosterJSON, &rec.Roster); err != nil {
			return nil, fmt.Errorf("unmarshal roster: %w", err)
		}
	}
	if snapshot != nil {
		rec.Snapshot = snapshot.Slice()
	}
	return rec, nil
}

// ContradictionsByEpisode lists an archived episode's diagnostics in
// detection order.
func (s *EpisodeArchive) ContradictionsByEpisode(ctx context.Context, episodeID uuid.UUID) ([]domain.Contradiction, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, slot, species, field, kept, rejected, detected_at
		FROM episode_contradictions WHERE episode_id = $1
		ORDER BY detected_at, slot`,
		episodeID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Contradiction
	for rows.Next() {
		var c domain.Contradiction
		var field string
		if err := rows.Scan(&c.ID, &c.Slot, &c.Species, &field, &c.Kept, &c.Rejected, &c.DetectedAt); err != nil {
			return nil, err
		}
		c.Field = domain.ContradictionField(field)
		out = append(out, c)
	}
	return out, rows.Err()
}

// RecentEpisodes lists archived episodes newest first.
func (s *EpisodeArchive) RecentEpisodes(ctx context.Context, limit int) ([]domain.EpisodeRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, started_at, archived_at, roster, events, contradictions, malformed
		FROM archived_episodes
		ORDER BY archived_at DESC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.EpisodeRecord
	for rows.Next() {
		var rec domain.EpisodeRecord
		var rosterJSON []byte
		if err := rows.Scan(&rec.ID, &rec.StartedAt, &rec.ArchivedAt, &rosterJSON,
			&rec.Events, &rec.Contradictions, &rec.Malformed); err != nil {
			return nil, err
		}
		if len(rosterJSON) > 0 {
			_ = json.Unmarshal(rosterJSON, &rec.Roster)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SimilarEpisodes ranks archived episodes by cosine similarity between
// their final snapshot and the given vector.
func (s *EpisodeArchive) SimilarEpisodes(ctx context.Context, snapshot []float32, limit int) ([]domain.EpisodeWithScore, error) {
	if limit <= 0 {
		limit = 10
	}

	vec := pgvector.NewVector(snapshot)

	rows, err := s.db.Query(ctx,
		`SELECT id, started_at, archived_at, roster, events, contradictions, malformed,
			1 - (snapshot <=> $1) AS score
		FROM archived_episodes
		WHERE snapshot IS NOT NULL
		ORDER BY score DESC
		LIMIT $2`,
		vec, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("similar episodes query: %w", err)
	}
	defer rows.Close()

	var out []domain.EpisodeWithScore
	for rows.Next() {
		var e domain.EpisodeWithScore
		var rosterJSON []byte
		if err := rows.Scan(&e.ID, &e.StartedAt, &e.ArchivedAt, &rosterJSON,
			&e.Events, &e.Contradictions, &e.Malformed, &e.Score); err != nil {
			return nil, fmt.Errorf("scan similar episode row: %w", err)
		}
		if len(rosterJSON) > 0 {
			_ = json.Unmarshal(rosterJSON, &e.Roster)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
