package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/scry-rl/scry/internal/belief"
	"github.com/scry-rl/scry/internal/catalog"
	"github.com/scry-rl/scry/internal/domain"
)

// MockEpisodeArchive mocks the EpisodeArchive interface.
type MockEpisodeArchive struct {
	mock.Mock
}

func (m *MockEpisodeArchive) SaveEpisode(ctx context.Context, rec *domain.EpisodeRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockEpisodeArchive) SaveContradictions(ctx context.Context, episodeID uuid.UUID, cs []domain.Contradiction) error {
	args := m.Called(ctx, episodeID, cs)
	return args.Error(0)
}

func (m *MockEpisodeArchive) GetEpisode(ctx context.Context, id uuid.UUID) (*domain.EpisodeRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EpisodeRecord), args.Error(1)
}

func (m *MockEpisodeArchive) ContradictionsByEpisode(ctx context.Context, episodeID uuid.UUID) ([]domain.Contradiction, error) {
	args := m.Called(ctx, episodeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Contradiction), args.Error(1)
}

func (m *MockEpisodeArchive) RecentEpisodes(ctx context.Context, limit int) ([]domain.EpisodeRecord, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.EpisodeRecord), args.Error(1)
}

func (m *MockEpisodeArchive) SimilarEpisodes(ctx context.Context, snapshot []float32, limit int) ([]domain.EpisodeWithScore, error) {
	args := m.Called(ctx, snapshot, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.EpisodeWithScore), args.Error(1)
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(map[string]catalog.SpeciesData{
		"ceruledge": {
			Level:     82,
			BaseSpeed: 85,
			Roles: []domain.RoleProfile{
				{
					Species: "ceruledge", Name: "sweeper", Weight: 0.8,
					Moves:     []string{"swordsdance", "bitterblade", "shadowsneak", "closecombat"},
					Items:     []domain.Candidate{{Name: "focussash", Weight: 1}},
					Abilities: []domain.Candidate{{Name: "weakarmor", Weight: 1}},
					TeraTypes: []domain.Candidate{{Name: "fighting", Weight: 1}},
				},
				{
					Species: "ceruledge", Name: "wall", Weight: 0.2,
					Moves:     []string{"willowisp", "protect", "recover", "flamecharge"},
					Items:     []domain.Candidate{{Name: "leftovers", Weight: 1}},
					Abilities: []domain.Candidate{{Name: "flashfire", Weight: 1}},
					TeraTypes: []domain.Candidate{{Name: "water", Weight: 1}},
				},
			},
		},
		"applin": {
			Roles: []domain.RoleProfile{
				{Species: "applin", Name: "only", Weight: 1, Moves: []string{"withdraw"}},
			},
		},
	})
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	return c
}

func TestEpisodeService_Create_SeedsRoster(t *testing.T) {
	svc := NewEpisodeService(testCatalog(t), nil, zap.NewNop())

	sum := svc.Create(map[int]string{1: "ceruledge", 2: "applin"})

	assert.NotEqual(t, uuid.Nil, sum.ID)
	assert.Equal(t, map[int]string{1: "ceruledge", 2: "applin"}, sum.Roster)
	assert.Zero(t, sum.Events)
	assert.Equal(t, 1, svc.Len())

	got, err := svc.Get(sum.ID)
	assert.NoError(t, err)
	assert.Equal(t, sum.ID, got.ID)
}

func TestEpisodeService_Create_EvictsAtCapacity(t *testing.T) {
	svc := NewEpisodeService(testCatalog(t), nil, zap.NewNop())
	svc.MaxEpisodes = 2

	first := svc.Create(nil)
	second := svc.Create(nil)
	// Make the first strictly the least recently touched.
	_, err := svc.Get(second.ID)
	assert.NoError(t, err)

	third := svc.Create(nil)

	assert.Equal(t, 2, svc.Len())
	_, err = svc.Get(first.ID)
	assert.ErrorIs(t, err, ErrEpisodeNotFound)
	_, err = svc.Get(third.ID)
	assert.NoError(t, err)
}

func TestEpisodeService_Get_NotFound(t *testing.T) {
	svc := NewEpisodeService(testCatalog(t), nil, zap.NewNop())

	_, err := svc.Get(uuid.New())

	assert.ErrorIs(t, err, ErrEpisodeNotFound)
}

func TestEpisodeService_List_OldestFirst(t *testing.T) {
	svc := NewEpisodeService(testCatalog(t), nil, zap.NewNop())

	a := svc.Create(nil)
	b := svc.Create(nil)

	got := svc.List()

	assert.Len(t, got, 2)
	ids := []uuid.UUID{got[0].ID, got[1].ID}
	assert.Contains(t, ids, a.ID)
	assert.Contains(t, ids, b.ID)
	assert.False(t, got[1].StartedAt.Before(got[0].StartedAt))
}

func TestEpisodeService_Ingest_RoutesEvents(t *testing.T) {
	svc := NewEpisodeService(testCatalog(t), nil, zap.NewNop())
	sum := svc.Create(nil)

	res, err := svc.Ingest(sum.ID, []domain.EventEnvelope{
		{Slot: 1, Kind: "switch_in", Species: "ceruledge"},
		{Slot: 1, Kind: "move_used", Move: "bitterblade"},
	})

	assert.NoError(t, err)
	assert.Equal(t, 2, res.Ingested)
	assert.Equal(t, 2, res.Events)
	assert.Zero(t, res.Malformed)

	view, err := svc.Belief(sum.ID, 1)
	assert.NoError(t, err)
	assert.Equal(t, "ceruledge", view.Species)
	assert.Equal(t, 1.0, view.Roles["sweeper"])
	assert.Equal(t, []string{"bitterblade"}, view.ObservedMoves)
}

func TestEpisodeService_Ingest_CountsUndecodableEnvelopes(t *testing.T) {
	svc := NewEpisodeService(testCatalog(t), nil, zap.NewNop())
	sum := svc.Create(nil)

	res, err := svc.Ingest(sum.ID, []domain.EventEnvelope{
		{Slot: 1, Kind: "switch_in", Species: "ceruledge"},
		{Slot: 1, Kind: "weather_change"},
		{Slot: 1, Kind: "move_used", Move: "shadowsneak"},
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, res.Ingested)
	assert.Equal(t, 1, res.Malformed)

	// The two well formed events still landed.
	view, err := svc.Belief(sum.ID, 1)
	assert.NoError(t, err)
	assert.Equal(t, []string{"shadowsneak"}, view.ObservedMoves)
}

func TestEpisodeService_Ingest_UnknownEpisode(t *testing.T) {
	svc := NewEpisodeService(testCatalog(t), nil, zap.NewNop())

	_, err := svc.Ingest(uuid.New(), []domain.EventEnvelope{{Slot: 1, Kind: "switch_in", Species: "applin"}})

	assert.ErrorIs(t, err, ErrEpisodeNotFound)
}

func TestEpisodeService_Beliefs_AllSlots(t *testing.T) {
	svc := NewEpisodeService(testCatalog(t), nil, zap.NewNop())
	sum := svc.Create(map[int]string{3: "applin", 5: "ceruledge"})

	views, err := svc.Beliefs(sum.ID)

	assert.NoError(t, err)
	assert.Len(t, views, 2)
	assert.Equal(t, 3, views[0].Slot)
	assert.Equal(t, 5, views[1].Slot)
}

func TestEpisodeService_Belief_SlotNotTracked(t *testing.T) {
	svc := NewEpisodeService(testCatalog(t), nil, zap.NewNop())
	sum := svc.Create(map[int]string{1: "applin"})

	_, err := svc.Belief(sum.ID, 2)

	assert.ErrorIs(t, err, ErrSlotNotTracked)
}

func TestEpisodeService_Snapshot_DefaultSize(t *testing.T) {
	svc := NewEpisodeService(testCatalog(t), nil, zap.NewNop())
	sum := svc.Create(map[int]string{1: "ceruledge"})

	snap, err := svc.Snapshot(sum.ID, 0)
	assert.NoError(t, err)
	assert.Len(t, snap[1], belief.DefaultEmbeddingSize)

	wide, err := svc.Snapshot(sum.ID, 32)
	assert.NoError(t, err)
	assert.Len(t, wide[1], 32)
}

func TestEpisodeService_FlatSnapshot_RosterWide(t *testing.T) {
	svc := NewEpisodeService(testCatalog(t), nil, zap.NewNop())
	sum := svc.Create(map[int]string{1: "ceruledge"})

	flat, err := svc.FlatSnapshot(sum.ID, 0)

	assert.NoError(t, err)
	assert.Len(t, flat, domain.RosterSize*belief.DefaultEmbeddingSize)
}

func TestEpisodeService_Reset_KeepsID(t *testing.T) {
	svc := NewEpisodeService(testCatalog(t), nil, zap.NewNop())
	sum := svc.Create(nil)
	_, err := svc.Ingest(sum.ID, []domain.EventEnvelope{
		{Slot: 1, Kind: "switch_in", Species: "ceruledge"},
		{Slot: 1, Kind: "move_used", Move: "bitterblade"},
	})
	assert.NoError(t, err)

	assert.NoError(t, svc.Reset(sum.ID))

	got, err := svc.Get(sum.ID)
	assert.NoError(t, err)
	assert.Equal(t, sum.ID, got.ID)
	assert.Zero(t, got.Events)
	assert.Empty(t, got.Roster)
}

func TestEpisodeService_Delete(t *testing.T) {
	svc := NewEpisodeService(testCatalog(t), nil, zap.NewNop())
	sum := svc.Create(nil)

	assert.NoError(t, svc.Delete(sum.ID))
	assert.ErrorIs(t, svc.Delete(sum.ID), ErrEpisodeNotFound)
	assert.Zero(t, svc.Len())
}

func TestEpisodeService_Archive_Disabled(t *testing.T) {
	svc := NewEpisodeService(testCatalog(t), nil, zap.NewNop())
	sum := svc.Create(nil)

	_, err := svc.Archive(context.Background(), sum.ID)

	assert.ErrorIs(t, err, ErrArchiveDisabled)
}

func TestEpisodeService_Archive_SavesRecordAndContradictions(t *testing.T) {
	ctx := context.Background()
	archive := new(MockEpisodeArchive)
	svc := NewEpisodeService(testCatalog(t), archive, zap.NewNop())

	sum := svc.Create(nil)
	// Conflicting item reveals produce one contradiction record.
	_, err := svc.Ingest(sum.ID, []domain.EventEnvelope{
		{Slot: 1, Kind: "switch_in", Species: "ceruledge"},
		{Slot: 1, Kind: "item_revealed", Item: "focussash"},
		{Slot: 1, Kind: "item_revealed", Item: "leftovers"},
	})
	assert.NoError(t, err)

	archive.On("SaveEpisode", ctx, mock.AnythingOfType("*domain.EpisodeRecord")).Return(nil)
	archive.On("SaveContradictions", ctx, sum.ID, mock.AnythingOfType("[]domain.Contradiction")).Return(nil)

	rec, err := svc.Archive(ctx, sum.ID)

	assert.NoError(t, err)
	assert.Equal(t, sum.ID, rec.ID)
	assert.Equal(t, 3, rec.Events)
	assert.Equal(t, 1, rec.Contradictions)
	assert.Len(t, rec.Snapshot, domain.RosterSize*DefaultSnapshotSize)
	assert.False(t, rec.ArchivedAt.IsZero())

	// Still hosted after archiving.
	_, err = svc.Get(sum.ID)
	assert.NoError(t, err)

	archive.AssertExpectations(t)
}

func TestEpisodeService_Archive_NoContradictionsSkipsSecondWrite(t *testing.T) {
	ctx := context.Background()
	archive := new(MockEpisodeArchive)
	svc := NewEpisodeService(testCatalog(t), archive, zap.NewNop())

	sum := svc.Create(map[int]string{1: "applin"})

	archive.On("SaveEpisode", ctx, mock.AnythingOfType("*domain.EpisodeRecord")).Return(nil)

	_, err := svc.Archive(ctx, sum.ID)

	assert.NoError(t, err)
	archive.AssertExpectations(t)
	archive.AssertNotCalled(t, "SaveContradictions", mock.Anything, mock.Anything, mock.Anything)
}

func TestEpisodeService_ArchivedEpisode_JoinsContradictions(t *testing.T) {
	ctx := context.Background()
	archive := new(MockEpisodeArchive)
	svc := NewEpisodeService(testCatalog(t), archive, zap.NewNop())

	id := uuid.New()
	rec := &domain.EpisodeRecord{ID: id, Events: 7, Contradictions: 1}
	cs := []domain.Contradiction{{ID: uuid.New(), Slot: 2, Field: domain.FieldItem}}
	archive.On("GetEpisode", ctx, id).Return(rec, nil)
	archive.On("ContradictionsByEpisode", ctx, id).Return(cs, nil)

	gotRec, gotCs, err := svc.ArchivedEpisode(ctx, id)

	assert.NoError(t, err)
	assert.Equal(t, rec, gotRec)
	assert.Equal(t, cs, gotCs)
	archive.AssertExpectations(t)
}

func TestEpisodeService_RecentArchived_PassThrough(t *testing.T) {
	ctx := context.Background()
	archive := new(MockEpisodeArchive)
	svc := NewEpisodeService(testCatalog(t), archive, zap.NewNop())

	want := []domain.EpisodeRecord{{ID: uuid.New()}}
	archive.On("RecentEpisodes", ctx, 10).Return(want, nil)

	got, err := svc.RecentArchived(ctx, 10)

	assert.NoError(t, err)
	assert.Equal(t, want, got)
	archive.AssertExpectations(t)
}

func TestEpisodeService_SimilarArchived_PassThrough(t *testing.T) {
	ctx := context.Background()
	archive := new(MockEpisodeArchive)
	svc := NewEpisodeService(testCatalog(t), archive, zap.NewNop())

	snap := make([]float32, domain.RosterSize*DefaultSnapshotSize)
	want := []domain.EpisodeWithScore{{EpisodeRecord: domain.EpisodeRecord{ID: uuid.New()}, Score: 0.93}}
	archive.On("SimilarEpisodes", ctx, snap, 5).Return(want, nil)

	got, err := svc.SimilarArchived(ctx, snap, 5)

	assert.NoError(t, err)
	assert.Equal(t, want, got)
	archive.AssertExpectations(t)
}

func TestEpisodeService_ExpireIdle(t *testing.T) {
	svc := NewEpisodeService(testCatalog(t), nil, zap.NewNop())

	stale := svc.Create(nil)
	fresh := svc.Create(nil)

	svc.mu.Lock()
	svc.episodes[stale.ID].lasttouch = time.Now().Add(-2 * time.Hour)
	svc.mu.Unlock()

	dropped := svc.ExpireIdle(time.Hour)

	assert.Equal(t, 1, dropped)
	_, err := svc.Get(stale.ID)
	assert.ErrorIs(t, err, ErrEpisodeNotFound)
	_, err = svc.Get(fresh.ID)
	assert.NoError(t, err)
}

func TestExpirerService_StartStop(t *testing.T) {
	svc := NewEpisodeService(testCatalog(t), nil, zap.NewNop())
	stale := svc.Create(nil)
	svc.mu.Lock()
	svc.episodes[stale.ID].lasttouch = time.Now().Add(-time.Minute)
	svc.mu.Unlock()

	exp := NewExpirerService(svc, zap.NewNop())
	exp.SetInterval(5 * time.Millisecond)
	exp.SetMaxIdle(time.Second)

	exp.Start()
	time.Sleep(25 * time.Millisecond)
	exp.Stop()

	assert.Zero(t, svc.Len())
}
