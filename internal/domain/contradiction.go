package domain

import (
	"time"

	"github.com/google/uuid"
)

// ContradictionField names the belief dimension an observation conflicted with.
type ContradictionField string

const (
	FieldRoles   ContradictionField = "roles"
	FieldItem    ContradictionField = "item"
	FieldAbility ContradictionField = "ability"
	FieldTera    ContradictionField = "tera"
)

// Contradiction records evidence that conflicted with the current belief:
// either an observation that zeroed every remaining role (Field=roles,
// the distribution was flat-reset) or a confirmed fact observed with a
// different value (first value kept, new one rejected). Contradictions
// are diagnostics, never errors; the episode keeps running.
type Contradiction struct {
	ID         uuid.UUID          `json:"id"`
	Slot       int                `json:"slot"`
	Species    string             `json:"species"`
	Field      ContradictionField `json:"field"`
	Kept       string             `json:"kept,omitempty"`
	Rejected   string             `json:"rejected"`
	DetectedAt time.Time          `json:"detected_at"`
}
