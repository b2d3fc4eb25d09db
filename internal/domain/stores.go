package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EpisodeRecord is the archived summary of one finished episode: roster,
// event/diagnostic counts, and the final roster-wide belief snapshot.
type EpisodeRecord struct {
	ID             uuid.UUID      `json:"id"`
	StartedAt      time.Time      `json:"started_at"`
	ArchivedAt     time.Time      `json:"archived_at"`
	Roster         map[int]string `json:"roster"`
	Events         int            `json:"events"`
	Contradictions int            `json:"contradictions"`
	Malformed      int            `json:"malformed"`
	Snapshot       []float32      `json:"snapshot"`
}

type EpisodeWithScore struct {
	EpisodeRecord
	Score float64 `json:"score"`
}

// EpisodeArchive persists finished-episode diagnostics outside the turn
// loop. A nil archive disables the feature; nothing in the engine itself
// depends on it.
type EpisodeArchive interface {
	SaveEpisode(ctx context.Context, rec *EpisodeRecord) error
	SaveContradictions(ctx context.Context, episodeID uuid.UUID, cs []Contradiction) error
	GetEpisode(ctx context.Context, id uuid.UUID) (*EpisodeRecord, error)
	ContradictionsByEpisode(ctx context.Context, episodeID uuid.UUID) ([]Contradiction, error)
	RecentEpisodes(ctx context.Context, limit int) ([]EpisodeRecord, error)
	SimilarEpisodes(ctx context.Context, snapshot []float32, limit int) ([]EpisodeWithScore, error)
}
