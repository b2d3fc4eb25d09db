package domain

import (
	"errors"
	"fmt"
)

// ErrMalformedEvent flags an event outside the closed variant set. It
// is never fatal: the tracker counts the occurrence and moves on.
var ErrMalformedEvent = errors.New("malformed event")

// EventKind tags one variant of the battle observation stream.
type EventKind string

const (
	KindSwitchIn         EventKind = "switch_in"
	KindMoveUsed         EventKind = "move_used"
	KindItemRevealed     EventKind = "item_revealed"
	KindAbilityTriggered EventKind = "ability_triggered"
	KindFormChanged      EventKind = "form_changed"
	KindTurnOrder        EventKind = "turn_order"
)

func ValidEventKind(s string) bool {
	switch EventKind(s) {
	case KindSwitchIn, KindMoveUsed, KindItemRevealed, KindAbilityTriggered, KindFormChanged, KindTurnOrder:
		return true
	}
	return false
}

// Event is a single observation about one opposing unit. The variant set
// is closed: the tracker dispatches with an exhaustive type switch, so a
// new observation kind is a compile-visible extension, not a runtime
// branch.
type Event interface {
	Kind() EventKind
}

// SwitchIn announces which species occupies a slot. For a slot already
// tracked it marks re-entry, which clears the choice-lock working state.
type SwitchIn struct {
	Species string `json:"species"`
}

func (SwitchIn) Kind() EventKind { return KindSwitchIn }

// MoveUsed reports a move executed by the opposing unit.
type MoveUsed struct {
	Move        string `json:"move"`
	DealtDamage bool   `json:"dealt_damage"`
	ActedFirst  bool   `json:"acted_first"`
}

func (MoveUsed) Kind() EventKind { return KindMoveUsed }

// ItemRevealed reports a held item shown directly (trick, knock off,
// berry use, end-of-turn message). Consumed marks items no longer held.
type ItemRevealed struct {
	Item     string `json:"item"`
	Consumed bool   `json:"consumed"`
}

func (ItemRevealed) Kind() EventKind { return KindItemRevealed }

// AbilityTriggered reports an ability announcing itself.
type AbilityTriggered struct {
	Ability string `json:"ability"`
}

func (AbilityTriggered) Kind() EventKind { return KindAbilityTriggered }

// FormChanged reports a terastallization or comparable form reveal.
type FormChanged struct {
	TeraType string `json:"tera_type"`
}

func (FormChanged) Kind() EventKind { return KindFormChanged }

// TurnOrder reports that the opposing unit acted before a friendly unit
// whose effective speed stat is OwnSpeed. DealtDamage distinguishes a
// possible priority-move explanation from a pure speed-stat one.
type TurnOrder struct {
	ActedFirst  bool `json:"acted_first"`
	OwnSpeed    int  `json:"own_speed"`
	DealtDamage bool `json:"dealt_damage"`
}

func (TurnOrder) Kind() EventKind { return KindTurnOrder }

// EventEnvelope is the flat wire shape the inspection API accepts when
// replaying an event stream: a slot and kind tag plus the union of all
// variant fields. The battle transport owns the real wire format;
// this envelope exists only so recorded streams can be fed back in.
type EventEnvelope struct {
	Slot        int    `json:"slot"`
	Kind        string `json:"kind"`
	Species     string `json:"species,omitempty"`
	Move        string `json:"move,omitempty"`
	Item        string `json:"item,omitempty"`
	Ability     string `json:"ability,omitempty"`
	TeraType    string `json:"tera_type,omitempty"`
	Consumed    bool   `json:"consumed,omitempty"`
	DealtDamage bool   `json:"dealt_damage,omitempty"`
	ActedFirst  bool   `json:"acted_first,omitempty"`
	OwnSpeed    int    `json:"own_speed,omitempty"`
}

// Decode maps the envelope onto the typed event set. An unrecognized
// kind returns ErrMalformedEvent.
func (e EventEnvelope) Decode() (Event, error) {
	switch EventKind(e.Kind) {
	case KindSwitchIn:
		return SwitchIn{Species: e.Species}, nil
	case KindMoveUsed:
		return MoveUsed{Move: e.Move, DealtDamage: e.DealtDamage, ActedFirst: e.ActedFirst}, nil
	case KindItemRevealed:
		return ItemRevealed{Item: e.Item, Consumed: e.Consumed}, nil
	case KindAbilityTriggered:
		return AbilityTriggered{Ability: e.Ability}, nil
	case KindFormChanged:
		return FormChanged{TeraType: e.TeraType}, nil
	case KindTurnOrder:
		return TurnOrder{ActedFirst: e.ActedFirst, OwnSpeed: e.OwnSpeed, DealtDamage: e.DealtDamage}, nil
	}
	return nil, fmt.Errorf("%w: kind %q", ErrMalformedEvent, e.Kind)
}
