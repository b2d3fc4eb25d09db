package belief

// Random-battle stat spread: 31 IVs, 85 EVs, neutral nature.
const (
	speedIVs = 31
	speedEVs = 85
)

// StatSpeed is the unboosted speed stat of a species with base speed
// base at the given level under the random-battle spread.
func StatSpeed(base, level int) int {
	return (2*base+speedIVs+speedEVs/4)*level/100 + 5
}

// ItemSpeed applies an item's speed factor to a raw stat.
func ItemSpeed(stat int, item string) int {
	return int(float64(stat) * SpeedFactor(item))
}
