package domain

// UnknownRole is the synthetic role assigned to species absent from the
// catalog. Its candidate pools are empty, so every observation on such a
// unit records facts without narrowing anything.
const UnknownRole = "unknown"

// Candidate is one weighted entry in a role's item/ability/tera pool.
// Weights within one pool sum to 1 after catalog load.
type Candidate struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// CandidateWeight returns the weight of name in pool, or 0 when absent.
func CandidateWeight(pool []Candidate, name string) float64 {
	for _, c := range pool {
		if c.Name == name {
			return c.Weight
		}
	}
	return 0
}

// RoleProfile is one cataloged behavioral archetype for a species: the
// moves it runs and the items, abilities and tera types it is seen with,
// weighted by population usage. Immutable after catalog load and shared
// read-only across episodes.
type RoleProfile struct {
	Species   string      `json:"species"`
	Name      string      `json:"name"`
	Weight    float64     `json:"weight"`
	Moves     []string    `json:"moves"`
	Items     []Candidate `json:"items"`
	Abilities []Candidate `json:"abilities"`
	TeraTypes []Candidate `json:"tera_types"`
}

// HasMove reports whether move is in the role's candidate kit.
func (r *RoleProfile) HasMove(move string) bool {
	for _, m := range r.Moves {
		if m == move {
			return true
		}
	}
	return false
}

// HasItem reports whether item appears in the role's item pool.
func (r *RoleProfile) HasItem(item string) bool {
	return CandidateWeight(r.Items, item) > 0
}

// HasAbility reports whether ability appears in the role's ability pool.
func (r *RoleProfile) HasAbility(ability string) bool {
	return CandidateWeight(r.Abilities, ability) > 0
}

// HasTeraType reports whether tera appears in the role's tera pool.
func (r *RoleProfile) HasTeraType(tera string) bool {
	return CandidateWeight(r.TeraTypes, tera) > 0
}
