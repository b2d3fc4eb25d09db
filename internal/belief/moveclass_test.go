package belief

import "testing"

func TestClassifyMove(t *testing.T) {
	tests := []struct {
		move string
		want MoveClass
		ok   bool
	}{
		{"swordsdance", ClassBoost, true},
		{"recover", ClassRecovery, true},
		{"stealthrock", ClassHazard, true},
		{"rapidspin", ClassHazardRemoval, true},
		{"suckerpunch", ClassPriority, true},
		{"protect", ClassProtect, true},
		{"uturn", ClassPivot, true},
		{"willowisp", ClassStatus, true},
		{"tackle", 0, false},
		{"earthquake", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.move, func(t *testing.T) {
			got, ok := ClassifyMove(tt.move)
			if ok != tt.ok || (ok && got != tt.want) {
				t.Errorf("ClassifyMove(%q) = %v, %v; want %v, %v", tt.move, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestIsPriorityMove(t *testing.T) {
	if !IsPriorityMove("aquajet") || !IsPriorityMove("grassyglide") {
		t.Error("priority moves misclassified")
	}
	if IsPriorityMove("surf") || IsPriorityMove("rapidspin") {
		t.Error("non-priority moves classified as priority")
	}
}

func TestItemTables(t *testing.T) {
	for _, item := range []string{"choiceband", "choicespecs", "choicescarf"} {
		if !IsChoiceItem(item) {
			t.Errorf("%s should choice-lock", item)
		}
	}
	if IsChoiceItem("leftovers") || IsChoiceItem("") {
		t.Error("non-choice items misclassified")
	}

	if !IsSpeedBoostItem("choicescarf") {
		t.Error("choicescarf boosts speed")
	}
	if IsSpeedBoostItem("choiceband") {
		t.Error("choiceband does not boost speed")
	}
	if got := SpeedFactor("choicescarf"); got != 1.5 {
		t.Errorf("scarf factor = %v, want 1.5", got)
	}
	if got := SpeedFactor("leftovers"); got != 1.0 {
		t.Errorf("leftovers factor = %v, want 1.0", got)
	}
}
