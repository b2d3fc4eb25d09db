package belief

// MoveClass buckets a move by strategic function. The embedding reports
// how much posterior mass still expects an unrevealed move of each class.
type MoveClass uint8

const (
	ClassBoost         MoveClass = iota // stat-raising setup
	ClassRecovery                       // healing and drain
	ClassHazard                         // entry hazards
	ClassHazardRemoval                  // spin/defog family
	ClassPriority                       // positive-priority attacks
	ClassProtect                        // protect variants
	ClassPivot                          // switch-out attacks
	ClassStatus                         // status infliction
	NumMoveClasses                      // count, not a class
)

var boostMoves = []string{
	"swordsdance", "nastyplot", "dragondance", "calmmind",
	"bulkup", "irondefense", "agility", "quiverdance",
	"shellsmash", "growth", "coil", "curse", "workup",
	"howl", "bellydrum", "tailglow", "geomancy", "shiftgear",
	"honeclaws", "rockpolish", "autotomize", "cottonguard",
	"cosmicpower", "amnesia", "acidarmor", "barrier", "stockpile",
}

var recoveryMoves = []string{
	"recover", "softboiled", "roost", "moonlight",
	"morningsun", "synthesis", "slackoff", "milkdrink",
	"shoreup", "wish", "rest", "healorder", "strengthsap",
	"leechseed", "drainpunch", "gigadrain", "hornleech",
	"absorb", "megadrain", "drainingkiss", "oblivionwing",
	"painsplit", "ingrain", "aquaring", "healingwish",
}

var hazardMoves = []string{
	"stealthrock", "spikes", "toxicspikes", "stickyweb",
}

var hazardRemovalMoves = []string{
	"defog", "rapidspin", "courtchange", "tidyup", "mortalspin",
}

var priorityMoves = []string{
	"extremespeed", "aquajet", "machpunch", "bulletpunch",
	"iceshard", "shadowsneak", "suckerpunch", "quickattack",
	"accelerock", "firstimpression", "fakeout", "feint",
	"vacuumwave", "watershuriken", "jetpunch", "grassyglide",
}

var protectMoves = []string{
	"protect", "detect", "kingsshield", "spikyshield",
	"banefulbunker", "obstruct", "silktrap", "burningbulwark",
}

var pivotMoves = []string{
	"uturn", "voltswitch", "flipturn", "partingshot",
	"batonpass", "teleport", "shedtail",
}

var statusMoves = []string{
	"willowisp", "thunderwave", "toxic", "spore",
	"sleeppowder", "hypnosis", "yawn", "nuzzle",
	"glare", "stunspore", "poisonpowder",
}

var moveClassTable = buildMoveClassTable()

func buildMoveClassTable() map[string]MoveClass {
	table := make(map[string]MoveClass, 128)
	add := func(moves []string, class MoveClass) {
		for _, m := range moves {
			table[m] = class
		}
	}
	add(boostMoves, ClassBoost)
	add(recoveryMoves, ClassRecovery)
	add(hazardMoves, ClassHazard)
	add(hazardRemovalMoves, ClassHazardRemoval)
	add(priorityMoves, ClassPriority)
	add(protectMoves, ClassProtect)
	add(pivotMoves, ClassPivot)
	add(statusMoves, ClassStatus)
	return table
}

// ClassifyMove returns the strategic class of a normalized move id.
// ok is false for plain attacking moves, which carry no class signal.
func ClassifyMove(move string) (MoveClass, bool) {
	c, ok := moveClassTable[move]
	return c, ok
}

// IsPriorityMove reports whether move strikes with positive priority.
func IsPriorityMove(move string) bool {
	c, ok := moveClassTable[move]
	return ok && c == ClassPriority
}

// Choice items lock the holder into its first selected move.
var choiceItems = map[string]bool{
	"choiceband":  true,
	"choicespecs": true,
	"choicescarf": true,
}

// IsChoiceItem reports whether a normalized item id choice-locks.
func IsChoiceItem(item string) bool {
	return choiceItems[item]
}

// speedBoostItems multiply the holder's speed stat.
var speedBoostItems = map[string]float64{
	"choicescarf": 1.5,
}

// IsSpeedBoostItem reports whether item raises the holder's speed.
func IsSpeedBoostItem(item string) bool {
	_, ok := speedBoostItems[item]
	return ok
}

// SpeedFactor returns the speed multiplier granted by item, 1 when none.
func SpeedFactor(item string) float64 {
	if f, ok := speedBoostItems[item]; ok {
		return f
	}
	return 1.0
}
