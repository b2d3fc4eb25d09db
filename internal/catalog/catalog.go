// Package catalog holds the static role reference data: for every species,
// the behavioral roles it runs in the target format and their candidate
// moves, items, abilities and tera types with population usage weights.
// A Catalog is immutable after load and safe to share read-only across
// concurrently running episodes; trackers receive it by injection.
package catalog

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/scry-rl/scry/internal/domain"
)

var (
	ErrUnknownSpecies = errors.New("species not in catalog")
	ErrEmptyCatalog   = errors.New("catalog has no species")
	ErrRoleWeights    = errors.New("role weights do not sum to 1")
	ErrBadCandidate   = errors.New("candidate weight out of range")
)

// WeightTolerance is the slack allowed when role weights are checked
// against 1 at load time.
const WeightTolerance = 1e-6

// SpeciesData is the cataloged record for one species. Level and
// BaseSpeed feed the turn-order speed deduction; zero values mean the
// data is unavailable and provable-margin deductions are skipped.
type SpeciesData struct {
	Level     int
	BaseSpeed int
	Roles     []domain.RoleProfile
}

type Catalog struct {
	species map[string]SpeciesData
}

// New validates and indexes species records into a Catalog. Role and
// candidate names are assumed already normalized (the loader normalizes;
// tests building catalogs directly should pass normalized names).
func New(entries map[string]SpeciesData) (*Catalog, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyCatalog
	}
	indexed := make(map[string]SpeciesData, len(entries))
	for name, data := range entries {
		key := domain.NormalizeName(name)
		if key == "" {
			return nil, fmt.Errorf("catalog: empty species name")
		}
		if len(data.Roles) == 0 {
			return nil, fmt.Errorf("catalog: species %s: no roles", key)
		}
		var sum float64
		for i := range data.Roles {
			w := data.Roles[i].Weight
			if w < 0 || math.IsNaN(w) {
				return nil, fmt.Errorf("catalog: species %s role %s: %w", key, data.Roles[i].Name, ErrRoleWeights)
			}
			sum += w
		}
		if sum == 0 {
			// Unweighted source data gets a uniform split.
			for i := range data.Roles {
				data.Roles[i].Weight = 1.0 / float64(len(data.Roles))
			}
		} else if math.Abs(sum-1) > WeightTolerance {
			return nil, fmt.Errorf("catalog: species %s: weights sum to %v: %w", key, sum, ErrRoleWeights)
		}
		sortRoles(data.Roles)
		indexed[key] = data
	}
	return &Catalog{species: indexed}, nil
}

// Lookup returns the species' roles, heaviest first. For an uncataloged
// species the returned slice is a single synthetic unknown role with
// empty candidate pools, together with ErrUnknownSpecies, so callers can
// count the miss without branching on absence. The returned profiles are
// shared; callers must not mutate them.
func (c *Catalog) Lookup(species string) ([]domain.RoleProfile, error) {
	key := domain.NormalizeName(species)
	if data, ok := c.species[key]; ok {
		return data.Roles, nil
	}
	return []domain.RoleProfile{{
		Species: key,
		Name:    domain.UnknownRole,
		Weight:  1.0,
	}}, fmt.Errorf("lookup %q: %w", key, ErrUnknownSpecies)
}

// SpeciesStats returns the level and base speed used for turn-order
// deductions. ok is false when the species is uncataloged or the source
// data omitted either value.
func (c *Catalog) SpeciesStats(species string) (level, baseSpeed int, ok bool) {
	data, found := c.species[domain.NormalizeName(species)]
	if !found || data.Level <= 0 || data.BaseSpeed <= 0 {
		return 0, 0, false
	}
	return data.Level, data.BaseSpeed, true
}

// Species lists all cataloged species keys in sorted order.
func (c *Catalog) Species() []string {
	keys := make([]string, 0, len(c.species))
	for k := range c.species {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c *Catalog) Len() int { return len(c.species) }

// sortRoles orders heaviest-first with name as the tiebreak so catalog
// iteration, and everything derived from it, is deterministic.
func sortRoles(roles []domain.RoleProfile) {
	sort.SliceStable(roles, func(i, j int) bool {
		if roles[i].Weight != roles[j].Weight {
			return roles[i].Weight > roles[j].Weight
		}
		return roles[i].Name < roles[j].Name
	})
}
