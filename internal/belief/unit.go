package belief

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scry-rl/scry/internal/domain"
)

// Tuning constants for probabilistic updates.
const (
	// DefaultChoiceLockThreshold is the posterior probability of a
	// choice-locking item above which repeated-move evidence sets the
	// locked-move fact even without a confirmed item.
	DefaultChoiceLockThreshold = 0.5

	// DefaultSoftEvidenceFloor is the minimum likelihood assigned to any
	// role during a soft turn-order reweight. Statistical evidence only
	// narrows; proof is what eliminates.
	DefaultSoftEvidenceFloor = 0.05

	// lockRepeatCount is how many consecutive uses of the same move are
	// required before the choice-lock deduction fires.
	lockRepeatCount = 2
)

// UnitBelief is the hidden-state estimate for one opposing unit: a
// posterior over its cataloged roles plus every fact confirmed so far
// this episode. Confirmed facts are monotonic; the posterior renormalizes
// after every filtering update and flat-resets on contradiction. Owned
// exclusively by one Tracker, not safe for concurrent use.
type UnitBelief struct {
	slot    int
	species string
	roles   []domain.RoleProfile // full original candidate set, shared read-only
	probs   []float64            // posterior, parallel to roles

	observed map[string]bool
	moveUses map[string]int
	item     string
	ability  string
	tera     string

	itemConsumed  bool
	lockedMove    string
	speedResolved bool
	lastMove      string
	repeats       int

	level     int
	baseSpeed int

	contradictions []domain.Contradiction
	unparsable     int

	logger *zap.Logger
}

func newUnitBelief(slot int, species string, roles []domain.RoleProfile, level, baseSpeed int, logger *zap.Logger) *UnitBelief {
	probs := make([]float64, len(roles))
	for i := range roles {
		probs[i] = roles[i].Weight
	}
	normalize(probs)
	return &UnitBelief{
		slot:      slot,
		species:   species,
		roles:     roles,
		probs:     probs,
		observed:  make(map[string]bool, domain.ExpectedKitSize),
		moveUses:  make(map[string]int, domain.ExpectedKitSize),
		level:     level,
		baseSpeed: baseSpeed,
		logger:    logger,
	}
}

// ObserveMove records a move as confirmed used and filters the role
// posterior to roles whose kit contains it. Idempotent on the observed
// set; a move uncataloged for this species is recorded without touching
// the distribution. An all-zero filter result triggers the flat reset.
func (b *UnitBelief) ObserveMove(move string) {
	move = domain.NormalizeName(move)
	if move == "" {
		b.unparsable++
		return
	}
	b.observed[move] = true
	b.moveUses[move]++

	if !b.kitContains(move) {
		b.logger.Debug("move outside cataloged kits, recorded without filtering",
			zap.Int("slot", b.slot), zap.String("species", b.species), zap.String("move", move))
		return
	}
	b.filterRoles(domain.FieldRoles, move, func(r *domain.RoleProfile) bool {
		return r.HasMove(move)
	})
}

// ObserveItem confirms the held item. First write wins: a later
// observation with a different value is rejected and recorded as a
// contradiction. A successful confirmation filters the posterior to
// roles that run the item, when any role does.
func (b *UnitBelief) ObserveItem(item string) {
	item = domain.NormalizeName(item)
	if item == "" {
		b.unparsable++
		return
	}
	if b.item != "" {
		if b.item != item {
			b.recordContradiction(domain.FieldItem, b.item, item)
		}
		return
	}
	b.item = item
	if b.anyRole(func(r *domain.RoleProfile) bool { return r.HasItem(item) }) {
		b.filterRoles(domain.FieldItem, item, func(r *domain.RoleProfile) bool {
			return r.HasItem(item)
		})
	}
}

// ObserveAbility confirms the ability; same first-write-wins and
// filtering pattern as ObserveItem.
func (b *UnitBelief) ObserveAbility(ability string) {
	ability = domain.NormalizeName(ability)
	if ability == "" {
		b.unparsable++
		return
	}
	if b.ability != "" {
		if b.ability != ability {
			b.recordContradiction(domain.FieldAbility, b.ability, ability)
		}
		return
	}
	b.ability = ability
	if b.anyRole(func(r *domain.RoleProfile) bool { return r.HasAbility(ability) }) {
		b.filterRoles(domain.FieldAbility, ability, func(r *domain.RoleProfile) bool {
			return r.HasAbility(ability)
		})
	}
}

// ObserveTera confirms the revealed tera type; same pattern as ObserveItem.
func (b *UnitBelief) ObserveTera(tera string) {
	tera = domain.NormalizeName(tera)
	if tera == "" {
		b.unparsable++
		return
	}
	if b.tera != "" {
		if b.tera != tera {
			b.recordContradiction(domain.FieldTera, b.tera, tera)
		}
		return
	}
	b.tera = tera
	if b.anyRole(func(r *domain.RoleProfile) bool { return r.HasTeraType(tera) }) {
		b.filterRoles(domain.FieldTera, tera, func(r *domain.RoleProfile) bool {
			return r.HasTeraType(tera)
		})
	}
}

// InferFromTurnOrder reasons about the opposing unit acting before a
// friendly unit with stat speed ownSpeed. When the opponent's maximum
// natural speed provably cannot reach ownSpeed and no damaging-priority
// explanation exists, the speed item is deduced and confirmed. When the
// action dealt damage, a priority move competes with the speed item and
// posterior mass is split between the two explanations in proportion to
// their prior candidate frequencies. A non-provable margin only softly
// reweights toward speed-item roles.
func (b *UnitBelief) InferFromTurnOrder(ownSpeed int, dealtDamage bool) {
	if ownSpeed <= 0 {
		b.unparsable++
		return
	}
	if b.item != "" {
		if IsSpeedBoostItem(b.item) {
			b.speedResolved = true
		}
		return
	}

	maxNatural, known := b.maxNaturalSpeed()
	provable := known && maxNatural < ownSpeed

	switch {
	case !provable:
		b.reweightRoles(func(r *domain.RoleProfile) float64 {
			return DefaultSoftEvidenceFloor + speedItemShare(r)
		})

	case dealtDamage && b.priorPriorityMass() > 0:
		wItem := b.priorSpeedItemMass()
		wPriority := b.priorPriorityMass()
		b.reweightRoles(func(r *domain.RoleProfile) float64 {
			l := DefaultSoftEvidenceFloor
			if speedItemShare(r) > 0 {
				l += wItem
			}
			if roleHasPriority(r) {
				l += wPriority
			}
			return l
		})
		b.logger.Debug("turn order ambiguous, split between priority move and speed item",
			zap.Int("slot", b.slot), zap.String("species", b.species),
			zap.Float64("speed_item_mass", wItem), zap.Float64("priority_mass", wPriority))

	default:
		item := b.likelySpeedItem()
		b.logger.Debug("impossible natural speed, deducing speed item",
			zap.Int("slot", b.slot), zap.String("species", b.species),
			zap.Int("own_speed", ownSpeed), zap.Int("max_natural", maxNatural),
			zap.String("item", item))
		b.ObserveItem(item)
		b.speedResolved = true
	}
}

// InferMoveLock tracks consecutive uses of the same move and sets the
// locked-move fact once the repeat count is reached while the item is
// choice-locking. Using a different move clears a previously inferred
// lock; the role posterior is never touched.
func (b *UnitBelief) InferMoveLock(move string, choiceLocked bool) {
	move = domain.NormalizeName(move)
	if move == "" {
		return
	}
	if move == b.lastMove {
		b.repeats++
	} else {
		b.lastMove = move
		b.repeats = 1
		if b.lockedMove != "" && b.lockedMove != move {
			b.lockedMove = ""
		}
	}
	if b.repeats >= lockRepeatCount && choiceLocked && b.lockedMove == "" {
		b.lockedMove = move
		b.logger.Debug("choice lock inferred",
			zap.Int("slot", b.slot), zap.String("species", b.species), zap.String("move", move))
	}
}

// ChoiceItemLikelihood is the current probability that the unit holds a
// choice-locking item: certain once the item is confirmed, otherwise the
// posterior-weighted choice share of the remaining roles' item pools.
func (b *UnitBelief) ChoiceItemLikelihood() float64 {
	if b.item != "" {
		if IsChoiceItem(b.item) {
			return 1
		}
		return 0
	}
	var mass float64
	for i := range b.roles {
		if b.probs[i] == 0 {
			continue
		}
		mass += b.probs[i] * choiceItemShare(&b.roles[i])
	}
	return mass
}

// noteReentry clears the working state that does not survive a switch:
// the choice lock and the consecutive-move counter. Confirmed facts and
// the posterior are untouched.
func (b *UnitBelief) noteReentry() {
	b.lockedMove = ""
	b.lastMove = ""
	b.repeats = 0
}

// --- accessors (read-only views for projectors and inspection) ---

func (b *UnitBelief) Slot() int       { return b.slot }
func (b *UnitBelief) Species() string { return b.species }

// RoleDistribution returns a copy of the current posterior keyed by role name.
func (b *UnitBelief) RoleDistribution() map[string]float64 {
	dist := make(map[string]float64, len(b.roles))
	for i := range b.roles {
		dist[b.roles[i].Name] = b.probs[i]
	}
	return dist
}

// RoleProbability returns the posterior mass on one role, 0 if unknown.
func (b *UnitBelief) RoleProbability(role string) float64 {
	for i := range b.roles {
		if b.roles[i].Name == role {
			return b.probs[i]
		}
	}
	return 0
}

// RemainingRoles counts roles that still hold nonzero mass.
func (b *UnitBelief) RemainingRoles() int {
	n := 0
	for _, p := range b.probs {
		if p > 0 {
			n++
		}
	}
	return n
}

// ObservedMoves returns the confirmed-used moves in sorted order.
func (b *UnitBelief) ObservedMoves() []string {
	moves := make([]string, 0, len(b.observed))
	for m := range b.observed {
		moves = append(moves, m)
	}
	sort.Strings(moves)
	return moves
}

// MoveUses returns a copy of the per-move usage counts.
func (b *UnitBelief) MoveUses() map[string]int {
	uses := make(map[string]int, len(b.moveUses))
	for m, n := range b.moveUses {
		uses[m] = n
	}
	return uses
}

func (b *UnitBelief) Item() string        { return b.item }
func (b *UnitBelief) ItemConsumed() bool  { return b.itemConsumed }
func (b *UnitBelief) Ability() string     { return b.ability }
func (b *UnitBelief) TeraType() string    { return b.tera }
func (b *UnitBelief) SpeedResolved() bool { return b.speedResolved }

// LockedMove returns the inferred choice-locked move, if any.
func (b *UnitBelief) LockedMove() (string, bool) {
	return b.lockedMove, b.lockedMove != ""
}

// Contradictions returns a copy of the contradictions recorded so far.
func (b *UnitBelief) Contradictions() []domain.Contradiction {
	out := make([]domain.Contradiction, len(b.contradictions))
	copy(out, b.contradictions)
	return out
}

// UnparsableObservations counts observations that carried no usable value.
func (b *UnitBelief) UnparsableObservations() int { return b.unparsable }

// RoleEntropy is the Shannon entropy (base 2) of the role posterior,
// normalized by the maximum for this species' role count, so it always
// lies in [0, 1].
func (b *UnitBelief) RoleEntropy() float64 {
	if len(b.roles) < 2 {
		return 0
	}
	var h float64
	for _, p := range b.probs {
		if p > 0 {
			h -= p * math.Log2(p)
		}
	}
	return h / math.Log2(float64(len(b.roles)))
}

// --- update mechanics ---

// filterRoles zeroes every remaining role rejected by keep and
// renormalizes. Zeroed roles stay zero; only the contradiction flat
// reset revives them.
func (b *UnitBelief) filterRoles(field domain.ContradictionField, observation string, keep func(*domain.RoleProfile) bool) {
	var total float64
	for i := range b.roles {
		if b.probs[i] == 0 {
			continue
		}
		if !keep(&b.roles[i]) {
			b.probs[i] = 0
			continue
		}
		total += b.probs[i]
	}
	if total <= 0 {
		b.flatReset(field, observation)
		return
	}
	for i := range b.probs {
		b.probs[i] /= total
	}
}

// reweightRoles multiplies remaining mass by a per-role likelihood and
// renormalizes. Likelihoods are expected positive; an all-zero product
// falls back to the flat reset like any other contradiction.
func (b *UnitBelief) reweightRoles(likelihood func(*domain.RoleProfile) float64) {
	var total float64
	for i := range b.roles {
		if b.probs[i] == 0 {
			continue
		}
		b.probs[i] *= likelihood(&b.roles[i])
		total += b.probs[i]
	}
	if total <= 0 {
		b.flatReset(domain.FieldRoles, "turn_order")
		return
	}
	for i := range b.probs {
		b.probs[i] /= total
	}
}

// flatReset discards all narrowing: uniform mass over the full original
// role set. Observed moves and confirmed facts are kept.
func (b *UnitBelief) flatReset(field domain.ContradictionField, rejected string) {
	if len(b.probs) == 0 {
		return
	}
	uniform := 1.0 / float64(len(b.probs))
	for i := range b.probs {
		b.probs[i] = uniform
	}
	b.recordContradiction(field, "", rejected)
	b.logger.Debug("belief contradiction, flat reset",
		zap.Int("slot", b.slot), zap.String("species", b.species),
		zap.String("field", string(field)), zap.String("rejected", rejected))
}

func (b *UnitBelief) recordContradiction(field domain.ContradictionField, kept, rejected string) {
	b.contradictions = append(b.contradictions, domain.Contradiction{
		ID:         uuid.New(),
		Slot:       b.slot,
		Species:    b.species,
		Field:      field,
		Kept:       kept,
		Rejected:   rejected,
		DetectedAt: time.Now().UTC(),
	})
	if kept != "" {
		b.logger.Debug("conflicting observation rejected",
			zap.Int("slot", b.slot), zap.String("species", b.species),
			zap.String("field", string(field)), zap.String("kept", kept), zap.String("rejected", rejected))
	}
}

// kitContains reports whether any cataloged role for this species runs move.
func (b *UnitBelief) kitContains(move string) bool {
	for i := range b.roles {
		if b.roles[i].HasMove(move) {
			return true
		}
	}
	return false
}

// anyRole reports whether any role in the full original set passes has.
func (b *UnitBelief) anyRole(has func(*domain.RoleProfile) bool) bool {
	for i := range b.roles {
		if has(&b.roles[i]) {
			return true
		}
	}
	return false
}

// maxNaturalSpeed is the fastest this unit moves without boosts or a
// speed item. known is false when the catalog lacks speed data.
func (b *UnitBelief) maxNaturalSpeed() (speed int, known bool) {
	if b.baseSpeed <= 0 || b.level <= 0 {
		return 0, false
	}
	return StatSpeed(b.baseSpeed, b.level), true
}

// priorSpeedItemMass is the catalog-prior probability that this species
// carries a speed-boosting item.
func (b *UnitBelief) priorSpeedItemMass() float64 {
	var mass float64
	for i := range b.roles {
		mass += b.roles[i].Weight * speedItemShare(&b.roles[i])
	}
	return mass
}

// priorPriorityMass is the catalog-prior probability that this species
// runs at least one priority move.
func (b *UnitBelief) priorPriorityMass() float64 {
	var mass float64
	for i := range b.roles {
		if roleHasPriority(&b.roles[i]) {
			mass += b.roles[i].Weight
		}
	}
	return mass
}

// likelySpeedItem picks the speed item to confirm on an unambiguous
// deduction: the heaviest speed-boosting candidate among remaining
// roles, defaulting to the choice scarf.
func (b *UnitBelief) likelySpeedItem() string {
	best := "choicescarf"
	bestWeight := 0.0
	for i := range b.roles {
		if b.probs[i] == 0 {
			continue
		}
		for _, c := range b.roles[i].Items {
			if IsSpeedBoostItem(c.Name) && c.Weight > bestWeight {
				best = c.Name
				bestWeight = c.Weight
			}
		}
	}
	return best
}

func speedItemShare(r *domain.RoleProfile) float64 {
	var share float64
	for _, c := range r.Items {
		if IsSpeedBoostItem(c.Name) {
			share += c.Weight
		}
	}
	return share
}

func choiceItemShare(r *domain.RoleProfile) float64 {
	var share float64
	for _, c := range r.Items {
		if IsChoiceItem(c.Name) {
			share += c.Weight
		}
	}
	return share
}

func roleHasPriority(r *domain.RoleProfile) bool {
	for _, m := range r.Moves {
		if IsPriorityMove(m) {
			return true
		}
	}
	return false
}

func normalize(probs []float64) {
	if len(probs) == 0 {
		return
	}
	var total float64
	for _, p := range probs {
		total += p
	}
	if total <= 0 {
		uniform := 1.0 / float64(len(probs))
		for i := range probs {
			probs[i] = uniform
		}
		return
	}
	for i := range probs {
		probs[i] /= total
	}
}
