package belief

import (
	"math"
	"testing"

	"go.uber.org/zap"

	"github.com/scry-rl/scry/internal/catalog"
	"github.com/scry-rl/scry/internal/domain"
)

// testCatalog builds the synthetic catalog shared by the belief tests.
//
//   - ceruledge: "sweeper" (0.8) vs "wall" (0.2) with disjoint kits,
//     no choice items anywhere.
//   - dragapult: "scarfer" (0.5, choice items, priority move) vs
//     "bulky" (0.5, boots), level/base speed set for turn-order math
//     (max natural speed 267).
//   - applin: single role, no speed data.
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
					Items:     []domain.Candidate{{Name: "focussash", Weight: 0.6}, {Name: "lifeorb", Weight: 0.4}},
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
		"dragapult": {
			Level:     78,
			BaseSpeed: 142,
			Roles: []domain.RoleProfile{
				{
					Species: "dragapult", Name: "scarfer", Weight: 0.5,
					Moves:     []string{"dragondarts", "uturn", "suckerpunch", "phantomforce"},
					Items:     []domain.Candidate{{Name: "choicescarf", Weight: 0.7}, {Name: "choiceband", Weight: 0.3}},
					Abilities: []domain.Candidate{{Name: "clearbody", Weight: 1}},
					TeraTypes: []domain.Candidate{{Name: "dragon", Weight: 1}},
				},
				{
					Species: "dragapult", Name: "bulky", Weight: 0.5,
					Moves:     []string{"willowisp", "hex", "dragontail", "curse"},
					Items:     []domain.Candidate{{Name: "heavydutyboots", Weight: 1}},
					Abilities: []domain.Candidate{{Name: "cursedbody", Weight: 1}},
					TeraTypes: []domain.Candidate{{Name: "ghost", Weight: 1}},
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

func testBelief(t *testing.T, c *catalog.Catalog, species string) *UnitBelief {
	t.Helper()
	roles, err := c.Lookup(species)
	if err != nil {
		t.Fatalf("Lookup %s: %v", species, err)
	}
	level, base, _ := c.SpeciesStats(species)
	return newUnitBelief(1, species, roles, level, base, zap.NewNop())
}

func distSum(b *UnitBelief) float64 {
	var sum float64
	for _, p := range b.RoleDistribution() {
		sum += p
	}
	return sum
}

func TestObserveMoveResolvesRole(t *testing.T) {
	b := testBelief(t, testCatalog(t), "ceruledge")

	b.ObserveMove("Bitter Blade")

	if got := b.RoleProbability("sweeper"); got != 1.0 {
		t.Errorf("sweeper mass = %v, want 1.0", got)
	}
	if got := b.RoleProbability("wall"); got != 0 {
		t.Errorf("wall mass = %v, want 0", got)
	}
	if moves := b.ObservedMoves(); len(moves) != 1 || moves[0] != "bitterblade" {
		t.Errorf("observed = %v", moves)
	}
}

func TestObserveMoveRenormalizesAfterEveryCall(t *testing.T) {
	b := testBelief(t, testCatalog(t), "dragapult")
	for _, move := range []string{"dragondarts", "uturn", "suckerpunch", "dragondarts"} {
		b.ObserveMove(move)
		if sum := distSum(b); math.Abs(sum-1) > 1e-9 {
			t.Fatalf("after %s: distribution sums to %v", move, sum)
		}
		for role, p := range b.RoleDistribution() {
			if p < 0 || p > 1 {
				t.Fatalf("after %s: role %s mass %v out of range", move, role, p)
			}
		}
	}
}

func TestObserveMoveIdempotent(t *testing.T) {
	b := testBelief(t, testCatalog(t), "ceruledge")
	b.ObserveMove("swordsdance")
	first := b.RoleDistribution()

	b.ObserveMove("swordsdance")

	second := b.RoleDistribution()
	for role, p := range first {
		if second[role] != p {
			t.Errorf("role %s changed on repeat observation: %v -> %v", role, p, second[role])
		}
	}
	if len(b.ObservedMoves()) != 1 {
		t.Errorf("observed set grew on repeat: %v", b.ObservedMoves())
	}
	if got := b.MoveUses()["swordsdance"]; got != 2 {
		t.Errorf("usage count = %d, want 2", got)
	}
}

func TestObserveMoveOutsideKitsRecordsWithoutFiltering(t *testing.T) {
	b := testBelief(t, testCatalog(t), "ceruledge")
	before := b.RoleDistribution()

	b.ObserveMove("surf")

	after := b.RoleDistribution()
	for role, p := range before {
		if after[role] != p {
			t.Errorf("role %s mass moved on uncataloged move: %v -> %v", role, p, after[role])
		}
	}
	if moves := b.ObservedMoves(); len(moves) != 1 || moves[0] != "surf" {
		t.Errorf("uncataloged move not recorded: %v", moves)
	}
	if len(b.Contradictions()) != 0 {
		t.Error("uncataloged move should not be a contradiction")
	}
}

func TestContradictionFlatReset(t *testing.T) {
	b := testBelief(t, testCatalog(t), "ceruledge")
	b.ObserveMove("bitterblade") // sweeper locked in

	b.ObserveMove("willowisp") // wall-only move: zero mass everywhere

	dist := b.RoleDistribution()
	if dist["sweeper"] != 0.5 || dist["wall"] != 0.5 {
		t.Errorf("flat reset should be uniform over the full role set, got %v", dist)
	}
	cs := b.Contradictions()
	if len(cs) != 1 {
		t.Fatalf("contradictions = %d, want 1", len(cs))
	}
	if cs[0].Field != domain.FieldRoles || cs[0].Rejected != "willowisp" {
		t.Errorf("contradiction record = %+v", cs[0])
	}
	// The observed set is monotonic through the reset.
	if moves := b.ObservedMoves(); len(moves) != 2 {
		t.Errorf("observed moves lost in reset: %v", moves)
	}
}

func TestZeroedRoleStaysZero(t *testing.T) {
	b := testBelief(t, testCatalog(t), "ceruledge")
	b.ObserveMove("bitterblade")

	// Another sweeper move keeps wall at exactly zero.
	b.ObserveMove("closecombat")

	if got := b.RoleProbability("wall"); got != 0 {
		t.Errorf("wall mass = %v, want exactly 0", got)
	}
	if got := b.RemainingRoles(); got != 1 {
		t.Errorf("remaining roles = %d, want 1", got)
	}
}

func TestObserveItemFirstWriteWins(t *testing.T) {
	b := testBelief(t, testCatalog(t), "ceruledge")

	b.ObserveItem("Leftovers")
	b.ObserveItem("Choice Scarf")

	if got := b.Item(); got != "leftovers" {
		t.Errorf("item = %q, want leftovers", got)
	}
	cs := b.Contradictions()
	if len(cs) != 1 {
		t.Fatalf("contradictions = %d, want 1", len(cs))
	}
	if cs[0].Field != domain.FieldItem || cs[0].Kept != "leftovers" || cs[0].Rejected != "choicescarf" {
		t.Errorf("contradiction record = %+v", cs[0])
	}
	// Confirming again with the stored value stays silent.
	b.ObserveItem("leftovers")
	if len(b.Contradictions()) != 1 {
		t.Error("same-value confirmation should be idempotent")
	}
}

func TestObserveItemFiltersRoles(t *testing.T) {
	b := testBelief(t, testCatalog(t), "ceruledge")

	b.ObserveItem("leftovers")

	if got := b.RoleProbability("wall"); got != 1.0 {
		t.Errorf("wall mass = %v, want 1.0 after leftovers", got)
	}
	if got := b.RoleProbability("sweeper"); got != 0 {
		t.Errorf("sweeper mass = %v, want 0", got)
	}
}

func TestObserveItemOutsidePoolsConfirmsWithoutFiltering(t *testing.T) {
	b := testBelief(t, testCatalog(t), "ceruledge")
	before := b.RoleDistribution()

	b.ObserveItem("airballoon")

	if got := b.Item(); got != "airballoon" {
		t.Errorf("item = %q, want airballoon", got)
	}
	after := b.RoleDistribution()
	for role, p := range before {
		if after[role] != p {
			t.Errorf("role %s mass moved on unpooled item: %v -> %v", role, p, after[role])
		}
	}
}

func TestObserveAbilityAndTera(t *testing.T) {
	b := testBelief(t, testCatalog(t), "ceruledge")

	b.ObserveAbility("Flash Fire")
	if got := b.RoleProbability("wall"); got != 1.0 {
		t.Errorf("wall mass after flashfire = %v, want 1.0", got)
	}
	if got := b.Ability(); got != "flashfire" {
		t.Errorf("ability = %q", got)
	}

	b.ObserveTera("Water")
	if got := b.TeraType(); got != "water" {
		t.Errorf("tera = %q", got)
	}
	b.ObserveTera("Fighting")
	if got := b.TeraType(); got != "water" {
		t.Errorf("tera overwritten to %q", got)
	}
	if len(b.Contradictions()) != 1 {
		t.Errorf("contradictions = %d, want 1", len(b.Contradictions()))
	}
}

func TestEmptyObservationsCountUnparsable(t *testing.T) {
	b := testBelief(t, testCatalog(t), "ceruledge")

	b.ObserveMove("")
	b.ObserveItem("  ")
	b.ObserveAbility("")
	b.ObserveTera("")

	if got := b.UnparsableObservations(); got != 4 {
		t.Errorf("unparsable = %d, want 4", got)
	}
	if len(b.ObservedMoves()) != 0 || b.Item() != "" {
		t.Error("empty observations should have no effect")
	}
}

func TestChoiceItemLikelihood(t *testing.T) {
	c := testCatalog(t)

	noChoice := testBelief(t, c, "ceruledge")
	if got := noChoice.ChoiceItemLikelihood(); got != 0 {
		t.Errorf("ceruledge choice likelihood = %v, want 0", got)
	}

	pult := testBelief(t, c, "dragapult")
	if got := pult.ChoiceItemLikelihood(); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("dragapult prior choice likelihood = %v, want 0.5", got)
	}

	pult.ObserveItem("choicescarf")
	if got := pult.ChoiceItemLikelihood(); got != 1 {
		t.Errorf("confirmed scarf likelihood = %v, want 1", got)
	}

	held := testBelief(t, c, "dragapult")
	held.ObserveItem("heavydutyboots")
	if got := held.ChoiceItemLikelihood(); got != 0 {
		t.Errorf("confirmed boots likelihood = %v, want 0", got)
	}
}

func TestInferMoveLock(t *testing.T) {
	b := testBelief(t, testCatalog(t), "dragapult")
	b.ObserveItem("choicescarf")

	b.InferMoveLock("dragondarts", true)
	if _, locked := b.LockedMove(); locked {
		t.Error("single use should not lock")
	}

	b.InferMoveLock("dragondarts", true)
	move, locked := b.LockedMove()
	if !locked || move != "dragondarts" {
		t.Errorf("lock = %q %v, want dragondarts", move, locked)
	}

	// A different move falsifies the lock.
	b.InferMoveLock("uturn", true)
	if _, locked := b.LockedMove(); locked {
		t.Error("lock should clear when a different move is used")
	}
}

func TestInferMoveLockRequiresChoiceEvidence(t *testing.T) {
	b := testBelief(t, testCatalog(t), "ceruledge")

	b.InferMoveLock("swordsdance", false)
	b.InferMoveLock("swordsdance", false)

	if _, locked := b.LockedMove(); locked {
		t.Error("repeat moves without choice evidence should not lock")
	}
}

func TestRoleEntropy(t *testing.T) {
	b := testBelief(t, testCatalog(t), "ceruledge")

	want := -(0.8*math.Log2(0.8) + 0.2*math.Log2(0.2)) // two roles: already normalized
	if got := b.RoleEntropy(); math.Abs(got-want) > 1e-9 {
		t.Errorf("entropy = %v, want %v", got, want)
	}

	b.ObserveMove("bitterblade")
	if got := b.RoleEntropy(); got != 0 {
		t.Errorf("entropy after resolution = %v, want 0", got)
	}

	single := testBelief(t, testCatalog(t), "applin")
	if got := single.RoleEntropy(); got != 0 {
		t.Errorf("single-role entropy = %v, want 0", got)
	}
}
