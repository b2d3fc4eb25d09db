// Package service hosts live belief-tracking episodes behind the
// inspection API: a bounded registry of trackers, each guarded by its
// own mutex so replayed streams and queries can arrive from any
// request. The RL training loop does not go through this layer; it
// drives internal/belief directly inside its own game instance.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scry-rl/scry/internal/belief"
	"github.com/scry-rl/scry/internal/catalog"
	"github.com/scry-rl/scry/internal/domain"
	"github.com/scry-rl/scry/internal/store"
)

const (
	// DefaultMaxEpisodes caps how many live episodes the service hosts.
	// Creating one past the cap evicts the least recently touched.
	DefaultMaxEpisodes = 64

	// DefaultSnapshotSize is the per-unit embedding width used when a
	// caller does not request one.
	DefaultSnapshotSize = belief.DefaultEmbeddingSize
)

var (
	ErrEpisodeNotFound = errors.New("episode not found")
	ErrSlotNotTracked  = errors.New("slot not tracked in this episode")
	ErrArchiveDisabled = errors.New("episode archive is not configured")
)

// hostedEpisode pairs one tracker with the lock that serializes access
// to it. The tracker is not safe for concurrent use; this wrapper is
// what makes an episode reachable from concurrent requests.
type hostedEpisode struct {
	mu        sync.Mutex
	tracker   *belief.Tracker
	lasttouch time.Time
}

// EpisodeService owns the hosted episodes. MaxEpisodes and SnapshotSize
// are tuning knobs set once at startup, before any request arrives.
type EpisodeService struct {
	catalog *catalog.Catalog
	archive domain.EpisodeArchive
	logger  *zap.Logger

	MaxEpisodes  int
	SnapshotSize int

	mu       sync.Mutex
	episodes map[uuid.UUID]*hostedEpisode
}

// NewEpisodeService builds the registry over an injected catalog. The
// archive may be nil, which disables persistence and makes Archive
// return ErrArchiveDisabled.
func NewEpisodeService(cat *catalog.Catalog, archive domain.EpisodeArchive, logger *zap.Logger) *EpisodeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EpisodeService{
		catalog:      cat,
		archive:      archive,
		logger:       logger,
		MaxEpisodes:  DefaultMaxEpisodes,
		SnapshotSize: DefaultSnapshotSize,
		episodes:     make(map[uuid.UUID]*hostedEpisode),
	}
}

// EpisodeSummary is the hosted-episode view returned by create, get
// and list.
type EpisodeSummary struct {
	ID             uuid.UUID      `json:"id"`
	StartedAt      time.Time      `json:"started_at"`
	Roster         map[int]string `json:"roster"`
	Events         int            `json:"events"`
	Contradictions int            `json:"contradictions"`
	Malformed      int            `json:"malformed"`
	UnknownSpecies int            `json:"unknown_species"`
}

// BeliefView is the raw, unprojected belief state for one slot, the
// secondary-consumer surface alongside the embedding snapshot.
type BeliefView struct {
	Slot           int                `json:"slot"`
	Species        string             `json:"species"`
	Roles          map[string]float64 `json:"roles"`
	RemainingRoles int                `json:"remaining_roles"`
	Entropy        float64            `json:"entropy"`
	ObservedMoves  []string           `json:"observed_moves"`
	MoveUses       map[string]int     `json:"move_uses,omitempty"`
	Item           string             `json:"item,omitempty"`
	ItemConsumed   bool               `json:"item_consumed,omitempty"`
	Ability        string             `json:"ability,omitempty"`
	TeraType       string             `json:"tera_type,omitempty"`
	LockedMove     string             `json:"locked_move,omitempty"`
	SpeedResolved  bool               `json:"speed_resolved"`
}

// IngestResult reports the tracker totals after one ingest call.
type IngestResult struct {
	Ingested       int `json:"ingested"`
	Events         int `json:"events"`
	Malformed      int `json:"malformed"`
	Contradictions int `json:"contradictions"`
}

// Create hosts a new episode, optionally pre-seeded with a known
// opposing roster. At capacity the least recently touched episode is
// evicted first.
func (s *EpisodeService) Create(roster map[int]string) EpisodeSummary {
	tr := belief.NewTracker(s.catalog, s.logger)
	if len(roster) > 0 {
		tr.Seed(roster)
	}
	h := &hostedEpisode{tracker: tr, lasttouch: time.Now()}

	s.mu.Lock()
	for len(s.episodes) >= s.MaxEpisodes && s.MaxEpisodes > 0 {
		s.evictOldestLocked()
	}
	s.episodes[tr.ID()] = h
	total := len(s.episodes)
	s.mu.Unlock()

	s.logger.Info("episode hosted",
		zap.String("episode_id", tr.ID().String()),
		zap.Int("roster", len(roster)),
		zap.Int("hosted", total))
	return summarize(tr)
}

// evictOldestLocked drops the least recently touched episode. Caller
// holds s.mu.
func (s *EpisodeService) evictOldestLocked() {
	var oldest uuid.UUID
	var when time.Time
	first := true
	for id, h := range s.episodes {
		if first || h.lasttouch.Before(when) {
			oldest, when, first = id, h.lasttouch, false
		}
	}
	if !first {
		delete(s.episodes, oldest)
		s.logger.Info("episode evicted at capacity", zap.String("episode_id", oldest.String()))
	}
}

func (s *EpisodeService) hosted(id uuid.UUID) (*hostedEpisode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.episodes[id]
	if !ok {
		return nil, fmt.Errorf("episode %s: %w", id, ErrEpisodeNotFound)
	}
	h.lasttouch = time.Now()
	return h, nil
}

// Get returns the summary for one hosted episode.
func (s *EpisodeService) Get(id uuid.UUID) (EpisodeSummary, error) {
	h, err := s.hosted(id)
	if err != nil {
		return EpisodeSummary{}, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return summarize(h.tracker), nil
}

// List returns summaries for all hosted episodes, oldest first.
func (s *EpisodeService) List() []EpisodeSummary {
	s.mu.Lock()
	hs := make([]*hostedEpisode, 0, len(s.episodes))
	for _, h := range s.episodes {
		hs = append(hs, h)
	}
	s.mu.Unlock()

	out := make([]EpisodeSummary, 0, len(hs))
	for _, h := range hs {
		h.mu.Lock()
		out = append(out, summarize(h.tracker))
		h.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// Len reports how many episodes are currently hosted.
func (s *EpisodeService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.episodes)
}

// Ingest routes a batch of replayed events into one episode. Envelopes
// that fail to decode are fed through the tracker's malformed path so
// every diagnostic ends up in one place; nothing here returns an error
// for bad event content.
func (s *EpisodeService) Ingest(id uuid.UUID, envs []domain.EventEnvelope) (IngestResult, error) {
	h, err := s.hosted(id)
	if err != nil {
		return IngestResult{}, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, env := range envs {
		ev, err := env.Decode()
		if err != nil {
			s.logger.Debug("undecodable event envelope",
				zap.String("episode_id", id.String()),
				zap.String("kind", env.Kind), zap.Int("slot", env.Slot))
			h.tracker.RouteEvent(env.Slot, nil)
			continue
		}
		h.tracker.RouteEvent(env.Slot, ev)
	}
	return IngestResult{
		Ingested:       len(envs),
		Events:         h.tracker.Events(),
		Malformed:      h.tracker.MalformedEvents(),
		Contradictions: len(h.tracker.Contradictions()),
	}, nil
}

// Beliefs returns the raw belief state for every tracked slot.
func (s *EpisodeService) Beliefs(id uuid.UUID) ([]BeliefView, error) {
	h, err := s.hosted(id)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	views := make([]BeliefView, 0, len(h.tracker.Slots()))
	for _, slot := range h.tracker.Slots() {
		ub, _ := h.tracker.Belief(slot)
		views = append(views, viewOf(ub))
	}
	return views, nil
}

// Belief returns the raw belief state for one slot.
func (s *EpisodeService) Belief(id uuid.UUID, slot int) (BeliefView, error) {
	h, err := s.hosted(id)
	if err != nil {
		return BeliefView{}, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	ub, ok := h.tracker.Belief(slot)
	if !ok {
		return BeliefView{}, fmt.Errorf("episode %s slot %d: %w", id, slot, ErrSlotNotTracked)
	}
	return viewOf(ub), nil
}

// Snapshot projects every tracked slot at the given embedding width.
// size <= 0 falls back to the service default.
func (s *EpisodeService) Snapshot(id uuid.UUID, size int) (map[int][]float32, error) {
	h, err := s.hosted(id)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = s.SnapshotSize
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tracker.Snapshot(size), nil
}

// FlatSnapshot returns the roster-wide concatenated embedding.
func (s *EpisodeService) FlatSnapshot(id uuid.UUID, size int) ([]float32, error) {
	h, err := s.hosted(id)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = s.SnapshotSize
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tracker.FlatSnapshot(size), nil
}

// Contradictions returns the diagnostics recorded so far.
func (s *EpisodeService) Contradictions(id uuid.UUID) ([]domain.Contradiction, error) {
	h, err := s.hosted(id)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tracker.Contradictions(), nil
}

// Reset discards the episode's belief state in place; the id survives.
func (s *EpisodeService) Reset(id uuid.UUID) error {
	h, err := s.hosted(id)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tracker.Reset()
	return nil
}

// Delete unhosts an episode.
func (s *EpisodeService) Delete(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.episodes[id]; !ok {
		return fmt.Errorf("episode %s: %w", id, ErrEpisodeNotFound)
	}
	delete(s.episodes, id)
	return nil
}

// Archive persists the episode's summary, final roster-wide snapshot
// and contradiction records. The episode stays hosted afterwards.
func (s *EpisodeService) Archive(ctx context.Context, id uuid.UUID) (*domain.EpisodeRecord, error) {
	if s.archive == nil {
		return nil, ErrArchiveDisabled
	}
	h, err := s.hosted(id)
	if err != nil {
		return nil, err
	}

	// Copy everything out under the lock; the database write happens
	// without blocking the episode.
	h.mu.Lock()
	cs := h.tracker.Contradictions()
	rec := &domain.EpisodeRecord{
		ID:             h.tracker.ID(),
		StartedAt:      h.tracker.StartedAt(),
		ArchivedAt:     time.Now().UTC(),
		Roster:         h.tracker.Roster(),
		Events:         h.tracker.Events(),
		Contradictions: len(cs),
		Malformed:      h.tracker.MalformedEvents(),
		Snapshot:       h.tracker.FlatSnapshot(s.SnapshotSize),
	}
	h.mu.Unlock()

	if err := s.archive.SaveEpisode(ctx, rec); err != nil {
		return nil, fmt.Errorf("save episode: %w", err)
	}
	if len(cs) > 0 {
		if err := s.archive.SaveContradictions(ctx, rec.ID, cs); err != nil {
			return nil, fmt.Errorf("save contradictions: %w", err)
		}
	}
	s.logger.Info("episode archived",
		zap.String("episode_id", rec.ID.String()),
		zap.Int("events", rec.Events),
		zap.Int("contradictions", rec.Contradictions))
	return rec, nil
}

// ArchivedEpisode fetches one archived record with its contradictions.
func (s *EpisodeService) ArchivedEpisode(ctx context.Context, id uuid.UUID) (*domain.EpisodeRecord, []domain.Contradiction, error) {
	if s.archive == nil {
		return nil, nil, ErrArchiveDisabled
	}
	rec, err := s.archive.GetEpisode(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, fmt.Errorf("archived episode %s: %w", id, ErrEpisodeNotFound)
		}
		return nil, nil, err
	}
	cs, err := s.archive.ContradictionsByEpisode(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return rec, cs, nil
}

// RecentArchived lists the newest archived episode summaries.
func (s *EpisodeService) RecentArchived(ctx context.Context, limit int) ([]domain.EpisodeRecord, error) {
	if s.archive == nil {
		return nil, ErrArchiveDisabled
	}
	return s.archive.RecentEpisodes(ctx, limit)
}

// SimilarArchived finds archived episodes whose final snapshot is
// nearest to the given vector.
func (s *EpisodeService) SimilarArchived(ctx context.Context, snapshot []float32, limit int) ([]domain.EpisodeWithScore, error) {
	if s.archive == nil {
		return nil, ErrArchiveDisabled
	}
	return s.archive.SimilarEpisodes(ctx, snapshot, limit)
}

// ExpireIdle unhosts episodes untouched for longer than maxIdle and
// returns how many were dropped.
func (s *EpisodeService) ExpireIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	s.mu.Lock()
	defer s.mu.Unlock()
	dropped := 0
	for id, h := range s.episodes {
		if h.lasttouch.Before(cutoff) {
			delete(s.episodes, id)
			dropped++
			s.logger.Info("idle episode expired", zap.String("episode_id", id.String()))
		}
	}
	return dropped
}

func summarize(tr *belief.Tracker) EpisodeSummary {
	return EpisodeSummary{
		ID:             tr.ID(),
		StartedAt:      tr.StartedAt(),
		Roster:         tr.Roster(),
		Events:         tr.Events(),
		Contradictions: len(tr.Contradictions()),
		Malformed:      tr.MalformedEvents(),
		UnknownSpecies: tr.UnknownSpecies(),
	}
}

func viewOf(ub *belief.UnitBelief) BeliefView {
	locked, _ := ub.LockedMove()
	return BeliefView{
		Slot:           ub.Slot(),
		Species:        ub.Species(),
		Roles:          ub.RoleDistribution(),
		RemainingRoles: ub.RemainingRoles(),
		Entropy:        ub.RoleEntropy(),
		ObservedMoves:  ub.ObservedMoves(),
		MoveUses:       ub.MoveUses(),
		Item:           ub.Item(),
		ItemConsumed:   ub.ItemConsumed(),
		Ability:        ub.Ability(),
		TeraType:       ub.TeraType(),
		LockedMove:     locked,
		SpeedResolved:  ub.SpeedResolved(),
	}
}
