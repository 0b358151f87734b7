package model

import "fmt"

// Score is an integer score in the inclusive range 0..100.
type Score int

// MaxScore is the upper bound of every score column.
const MaxScore Score = 100

// IsValid reports whether the score lies within 0..100.
func (s Score) IsValid() bool {
	return s >= 0 && s <= MaxScore
}

// ParseScore validates a raw score value.
func ParseScore(v int64) (Score, error) {
	s := Score(v)
	if !s.IsValid() {
		return 0, fmt.Errorf("score %d out of range 0..100", v)
	}
	return s, nil
}

// Clamp forces a score into 0..100.
func Clamp(v int) Score {
	switch {
	case v < 0:
		return 0
	case v > int(MaxScore):
		return MaxScore
	}
	return Score(v)
}

// Temperature is the urgency tier derived from an ICP score.
type Temperature string

// Temperature constants.
const (
	TemperatureHot  Temperature = "HOT"
	TemperatureWarm Temperature = "WARM"
	TemperatureCold Temperature = "COLD"
)

// IsValid checks if the temperature is one of the known values.
func (t Temperature) IsValid() bool {
	switch t {
	case TemperatureHot, TemperatureWarm, TemperatureCold:
		return true
	}
	return false
}

// Rank orders temperatures: COLD=0, WARM=1, HOT=2. Unknown values rank -1.
func (t Temperature) Rank() int {
	switch t {
	case TemperatureCold:
		return 0
	case TemperatureWarm:
		return 1
	case TemperatureHot:
		return 2
	}
	return -1
}

// AtLeast reports whether t is as urgent as other or more.
func (t Temperature) AtLeast(other Temperature) bool {
	return t.Rank() >= other.Rank()
}

// ParseTemperature validates a raw temperature.
func ParseTemperature(s string) (Temperature, error) {
	v := Temperature(s)
	if !v.IsValid() {
		return "", &EnumError{Type: "temperature", Value: s}
	}
	return v, nil
}

// Bands holds the inclusive lower bounds of the HOT and WARM tiers.
type Bands struct {
	HotMin  Score `json:"hot_min"`
	WarmMin Score `json:"warm_min"`
}

// Classify buckets a score into a temperature.
func (b Bands) Classify(s Score) Temperature {
	switch {
	case s >= b.HotMin:
		return TemperatureHot
	case s >= b.WarmMin:
		return TemperatureWarm
	}
	return TemperatureCold
}

// Validate checks that bands are in range and ordered.
func (b Bands) Validate() error {
	if !b.HotMin.IsValid() || !b.WarmMin.IsValid() {
		return fmt.Errorf("temperature bands must lie in 0..100")
	}
	if b.WarmMin >= b.HotMin {
		return fmt.Errorf("warm_min (%d) must be below hot_min (%d)", b.WarmMin, b.HotMin)
	}
	return nil
}
