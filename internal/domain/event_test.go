package domain

import (
	"errors"
	"testing"
)

func TestEventEnvelopeDecode(t *testing.T) {
	tests := []struct {
		name string
		env  EventEnvelope
		want Event
	}{
		{"switch in", EventEnvelope{Kind: "switch_in", Species: "Dragapult"},
			SwitchIn{Species: "Dragapult"}},
		{"move used", EventEnvelope{Kind: "move_used", Move: "Dragon Darts", DealtDamage: true, ActedFirst: true},
			MoveUsed{Move: "Dragon Darts", DealtDamage: true, ActedFirst: true}},
		{"item revealed", EventEnvelope{Kind: "item_revealed", Item: "Leftovers", Consumed: true},
			ItemRevealed{Item: "Leftovers", Consumed: true}},
		{"ability triggered", EventEnvelope{Kind: "ability_triggered", Ability: "Clear Body"},
			AbilityTriggered{Ability: "Clear Body"}},
		{"form changed", EventEnvelope{Kind: "form_changed", TeraType: "Steel"},
			FormChanged{TeraType: "Steel"}},
		{"turn order", EventEnvelope{Kind: "turn_order", ActedFirst: true, OwnSpeed: 280, DealtDamage: true},
			TurnOrder{ActedFirst: true, OwnSpeed: 280, DealtDamage: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.env.Decode()
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got != tt.want {
				t.Errorf("Decode = %#v, want %#v", got, tt.want)
			}
			if got.Kind() != EventKind(tt.env.Kind) {
				t.Errorf("Kind = %q, want %q", got.Kind(), tt.env.Kind)
			}
		})
	}
}

func TestEventEnvelopeDecodeUnknownKind(t *testing.T) {
	for _, kind := range []string{"weather_change", "damage_dealt", ""} {
		ev, err := EventEnvelope{Slot: 1, Kind: kind}.Decode()
		if !errors.Is(err, ErrMalformedEvent) {
			t.Errorf("kind %q: err = %v, want ErrMalformedEvent", kind, err)
		}
		if ev != nil {
			t.Errorf("kind %q: event = %#v, want nil", kind, ev)
		}
	}
}
