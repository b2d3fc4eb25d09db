// Package belief implements the hidden-state inference engine: per-unit
// role posteriors updated from battle observations, deductive facts, and
// the fixed-size embedding consumed by the observation encoder. All
// operations are synchronous and in-memory; one Tracker serves exactly
// one episode and is never shared between game instances.
package belief

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scry-rl/scry/internal/catalog"
	"github.com/scry-rl/scry/internal/domain"
)

// Tracker owns one UnitBelief per opposing slot for the duration of one
// episode. Beliefs are created lazily at switch-in (or primed from a
// known roster) and destroyed by Reset. Evidence never crosses slots:
// two units of the same species are inferred independently.
type Tracker struct {
	id        uuid.UUID
	catalog   *catalog.Catalog
	logger    *zap.Logger
	slots     map[int]*UnitBelief
	startedAt time.Time

	events         int
	malformed      int
	unknownSpecies int
}

// NewTracker builds an empty tracker over an injected, immutable
// catalog. cat must be non-nil; a nil logger is replaced with a no-op.
func NewTracker(cat *catalog.Catalog, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		id:        uuid.New(),
		catalog:   cat,
		logger:    logger,
		slots:     make(map[int]*UnitBelief, domain.RosterSize),
		startedAt: time.Now().UTC(),
	}
}

// Seed pre-populates beliefs from a known opposing roster, slot →
// species. Slots outside the roster range are ignored and counted as
// malformed.
func (t *Tracker) Seed(roster map[int]string) {
	for slot, species := range roster {
		if !domain.ValidSlot(slot) {
			t.malformed++
			continue
		}
		t.ensureBelief(slot, species)
	}
}

// RouteEvent dispatches one observation to the belief owning the slot.
// The event set is closed; every variant is handled here. Malformed
// input (invalid slot, nil event, events for a never-seen slot) is
// counted and otherwise ignored; nothing in the stream can fail an
// episode.
func (t *Tracker) RouteEvent(slot int, ev domain.Event) {
	if ev == nil || !domain.ValidSlot(slot) {
		t.malformed++
		t.logger.Debug("malformed event dropped", zap.Int("slot", slot))
		return
	}
	t.events++

	switch e := ev.(type) {
	case domain.SwitchIn:
		t.handleSwitchIn(slot, e)
	case domain.MoveUsed:
		if ub := t.tracked(slot); ub != nil {
			ub.ObserveMove(e.Move)
			locked := ub.ChoiceItemLikelihood() >= DefaultChoiceLockThreshold
			ub.InferMoveLock(e.Move, locked)
		}
	case domain.ItemRevealed:
		if ub := t.tracked(slot); ub != nil {
			ub.ObserveItem(e.Item)
			if e.Consumed {
				ub.itemConsumed = true
			}
		}
	case domain.AbilityTriggered:
		if ub := t.tracked(slot); ub != nil {
			ub.ObserveAbility(e.Ability)
		}
	case domain.FormChanged:
		if ub := t.tracked(slot); ub != nil {
			ub.ObserveTera(e.TeraType)
		}
	case domain.TurnOrder:
		if ub := t.tracked(slot); ub != nil && e.ActedFirst {
			ub.InferFromTurnOrder(e.OwnSpeed, e.DealtDamage)
		}
	default:
		t.malformed++
		t.logger.Debug("unhandled event kind", zap.String("kind", string(ev.Kind())))
	}
}

func (t *Tracker) handleSwitchIn(slot int, e domain.SwitchIn) {
	species := domain.NormalizeName(e.Species)
	if species == "" {
		t.malformed++
		return
	}
	if ub, ok := t.slots[slot]; ok {
		if ub.species != species {
			// A slot is one team position; its species never changes.
			t.malformed++
			t.logger.Debug("switch-in species mismatch ignored",
				zap.Int("slot", slot), zap.String("tracked", ub.species), zap.String("event", species))
			return
		}
		ub.noteReentry()
		return
	}
	t.ensureBelief(slot, species)
}

// tracked returns the belief for a slot, counting a malformed event when
// the slot has never switched in (the stream contract announces a
// species before any other observation about it).
func (t *Tracker) tracked(slot int) *UnitBelief {
	ub, ok := t.slots[slot]
	if !ok {
		t.malformed++
		t.logger.Debug("event for slot before switch-in dropped", zap.Int("slot", slot))
		return nil
	}
	return ub
}

func (t *Tracker) ensureBelief(slot int, species string) *UnitBelief {
	species = domain.NormalizeName(species)
	if ub, ok := t.slots[slot]; ok {
		return ub
	}
	roles, err := t.catalog.Lookup(species)
	if errors.Is(err, catalog.ErrUnknownSpecies) {
		t.unknownSpecies++
		t.logger.Debug("species not cataloged, flat prior",
			zap.Int("slot", slot), zap.String("species", species))
	}
	level, baseSpeed, _ := t.catalog.SpeciesStats(species)
	ub := newUnitBelief(slot, species, roles, level, baseSpeed, t.logger)
	t.slots[slot] = ub
	return ub
}

// Belief exposes the raw, unprojected state for one slot.
func (t *Tracker) Belief(slot int) (*UnitBelief, bool) {
	ub, ok := t.slots[slot]
	return ub, ok
}

// Slots lists tracked slot ids in ascending order.
func (t *Tracker) Slots() []int {
	slots := make([]int, 0, len(t.slots))
	for s := range t.slots {
		slots = append(slots, s)
	}
	sort.Ints(slots)
	return slots
}

// Roster maps tracked slots to species.
func (t *Tracker) Roster() map[int]string {
	roster := make(map[int]string, len(t.slots))
	for s, ub := range t.slots {
		roster[s] = ub.species
	}
	return roster
}

// Snapshot projects every tracked belief, slot → embedding. Called once
// per decision point by the observation encoder.
func (t *Tracker) Snapshot(size int) map[int][]float32 {
	snap := make(map[int][]float32, len(t.slots))
	for s, ub := range t.slots {
		snap[s] = Project(ub, size)
	}
	return snap
}

// FlatSnapshot concatenates per-slot embeddings into one roster-wide
// vector of RosterSize*size entries in slot order. Slots never seen
// contribute zero blocks, so the layout is stable from turn one.
func (t *Tracker) FlatSnapshot(size int) []float32 {
	flat := make([]float32, domain.RosterSize*size)
	for slot, ub := range t.slots {
		copy(flat[(slot-1)*size:slot*size], Project(ub, size))
	}
	return flat
}

// Contradictions aggregates recorded contradictions across slots, in
// slot order.
func (t *Tracker) Contradictions() []domain.Contradiction {
	var all []domain.Contradiction
	for _, slot := range t.Slots() {
		all = append(all, t.slots[slot].Contradictions()...)
	}
	return all
}

func (t *Tracker) ID() uuid.UUID        { return t.id }
func (t *Tracker) StartedAt() time.Time { return t.startedAt }
func (t *Tracker) Events() int          { return t.events }

// MalformedEvents counts dropped or unusable observations, including
// per-unit unparsable values.
func (t *Tracker) MalformedEvents() int {
	n := t.malformed
	for _, ub := range t.slots {
		n += ub.unparsable
	}
	return n
}

// UnknownSpecies counts switch-ins the catalog had no entry for.
func (t *Tracker) UnknownSpecies() int { return t.unknownSpecies }

// Reset discards all per-episode state. The tracker keeps its identity;
// a fresh event sequence afterwards reproduces the same trajectory a
// brand-new tracker would.
func (t *Tracker) Reset() {
	t.slots = make(map[int]*UnitBelief, domain.RosterSize)
	t.events = 0
	t.malformed = 0
	t.unknownSpecies = 0
	t.startedAt = time.Now().UTC()
}
