package belief

import (
	"sort"

	"github.com/scry-rl/scry/internal/domain"
)

// Embedding layout. Project fills this fixed layout, then truncates or
// zero-pads to the requested size, so callers can trade detail for
// width without renegotiating offsets.
const (
	// DefaultEmbeddingSize is the full per-unit layout width.
	DefaultEmbeddingSize = 16
	// TopRoleSlots is how many role probabilities the layout reports.
	TopRoleSlots = 4

	offTopRoles     = 0                                     // [0,4) top role probabilities, descending
	offMoveClasses  = offTopRoles + TopRoleSlots            // [4,12) unrevealed move-class mass
	offItemRevealed = offMoveClasses + int(NumMoveClasses)  // 12
	offTeraRevealed = offItemRevealed + 1                   // 13
	offKitFraction  = offTeraRevealed + 1                   // 14
	offRoleEntropy  = offKitFraction + 1                    // 15
)

// Project renders a belief into a fixed-size vector with entries in
// [0, 1]. It is a pure function of the belief's current state and is
// total: a nil belief, a contradicted posterior, or an uncataloged
// species all yield well-formed vectors.
func Project(b *UnitBelief, size int) []float32 {
	if size <= 0 {
		return []float32{}
	}
	vec := make([]float32, size)
	if b == nil {
		return vec
	}

	full := make([]float64, DefaultEmbeddingSize)

	top := topRoleProbs(b.probs, TopRoleSlots)
	copy(full[offTopRoles:], top)

	classes := unrevealedClassMass(b)
	copy(full[offMoveClasses:], classes[:])

	if b.item != "" {
		full[offItemRevealed] = 1
	}
	if b.tera != "" {
		full[offTeraRevealed] = 1
	}

	kit := float64(len(b.observed)) / float64(domain.ExpectedKitSize)
	if kit > 1 {
		kit = 1
	}
	full[offKitFraction] = kit

	full[offRoleEntropy] = b.RoleEntropy()

	for i := 0; i < size && i < DefaultEmbeddingSize; i++ {
		vec[i] = clamp01(full[i])
	}
	return vec
}

// topRoleProbs returns the k largest posterior entries in descending
// order, zero-padded when fewer roles exist.
func topRoleProbs(probs []float64, k int) []float64 {
	sorted := make([]float64, len(probs))
	copy(sorted, probs)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	top := make([]float64, k)
	copy(top, sorted)
	return top
}

// unrevealedClassMass sums, per move class, the posterior mass of roles
// whose kit still hides at least one move of that class, renormalized
// over the classes. All-zero when nothing classifiable remains hidden.
func unrevealedClassMass(b *UnitBelief) [NumMoveClasses]float64 {
	var mass [NumMoveClasses]float64
	var total float64
	for i := range b.roles {
		p := b.probs[i]
		if p == 0 {
			continue
		}
		var seen [NumMoveClasses]bool
		for _, m := range b.roles[i].Moves {
			if b.observed[m] {
				continue
			}
			if class, ok := ClassifyMove(m); ok && !seen[class] {
				seen[class] = true
				mass[class] += p
				total += p
			}
		}
	}
	if total > 0 {
		for c := range mass {
			mass[c] /= total
		}
	}
	return mass
}

func clamp01(v float64) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return float32(v)
}
