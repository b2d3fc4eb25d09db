package catalog

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/scry-rl/scry/internal/domain"
)

// fileSpecies mirrors one species entry in the randbats-style JSON source.
type fileSpecies struct {
	Level     int                 `json:"level"`
	BaseSpeed int                 `json:"baseSpeed"`
	Roles     map[string]fileRole `json:"roles"`
}

type fileRole struct {
	Weight    float64            `json:"weight"`
	Moves     []string           `json:"moves"`
	Items     map[string]float64 `json:"items"`
	Abilities map[string]float64 `json:"abilities"`
	TeraTypes map[string]float64 `json:"teraTypes"`
}

// Load reads and parses a catalog JSON file. Called once at process
// start; the result is shared read-only afterwards.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	c, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse builds a Catalog from raw JSON, normalizing every identifier and
// validating weight invariants.
func Parse(raw []byte) (*Catalog, error) {
	var file map[string]fileSpecies
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	entries := make(map[string]SpeciesData, len(file))
	for speciesName, fs := range file {
		species := domain.NormalizeName(speciesName)
		data := SpeciesData{
			Level:     fs.Level,
			BaseSpeed: fs.BaseSpeed,
			Roles:     make([]domain.RoleProfile, 0, len(fs.Roles)),
		}
		for roleName, fr := range fs.Roles {
			items, err := candidates(fr.Items)
			if err != nil {
				return nil, fmt.Errorf("species %s role %s items: %w", species, roleName, err)
			}
			abilities, err := candidates(fr.Abilities)
			if err != nil {
				return nil, fmt.Errorf("species %s role %s abilities: %w", species, roleName, err)
			}
			teras, err := candidates(fr.TeraTypes)
			if err != nil {
				return nil, fmt.Errorf("species %s role %s teraTypes: %w", species, roleName, err)
			}
			moves := make([]string, 0, len(fr.Moves))
			for _, m := range fr.Moves {
				if norm := domain.NormalizeName(m); norm != "" {
					moves = append(moves, norm)
				}
			}
			data.Roles = append(data.Roles, domain.RoleProfile{
				Species:   species,
				Name:      domain.NormalizeName(roleName),
				Weight:    fr.Weight,
				Moves:     moves,
				Items:     items,
				Abilities: abilities,
				TeraTypes: teras,
			})
		}
		entries[species] = data
	}
	return New(entries)
}

// candidates converts a weighted name map into a normalized, heaviest-first
// pool summing to 1. Entries with zero weight in an otherwise-unweighted
// map get a uniform share.
func candidates(m map[string]float64) ([]domain.Candidate, error) {
	if len(m) == 0 {
		return nil, nil
	}
	pool := make([]domain.Candidate, 0, len(m))
	var sum float64
	for name, w := range m {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("%q weight %v: %w", name, w, ErrBadCandidate)
		}
		pool = append(pool, domain.Candidate{Name: domain.NormalizeName(name), Weight: w})
		sum += w
	}
	for i := range pool {
		if sum == 0 {
			pool[i].Weight = 1.0 / float64(len(pool))
		} else {
			pool[i].Weight /= sum
		}
	}
	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].Weight != pool[j].Weight {
			return pool[i].Weight > pool[j].Weight
		}
		return pool[i].Name < pool[j].Name
	})
	return pool, nil
}
