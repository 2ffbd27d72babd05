package types

// Timeframe is a bar aggregation period.
type Timeframe string

const (
	M1  Timeframe = "M1"
	M5  Timeframe = "M5"
	M15 Timeframe = "M15"
	M30 Timeframe = "M30"
	H1  Timeframe = "H1"
	H4  Timeframe = "H4"
	D1  Timeframe = "D1"
	W1  Timeframe = "W1"
	MN1 Timeframe = "MN1"
)

var timeframeMinutes = map[Timeframe]int{
	M1:  1,
	M5:  5,
	M15: 15,
	M30: 30,
	H1:  60,
	H4:  240,
	D1:  1440,
	W1:  10080,
	MN1: 43200,
}

// MinuteDuration returns the timeframe's duration in minutes, or 0 if tf is
// not one of the recognized constants.
func (tf Timeframe) MinuteDuration() int {
	return timeframeMinutes[tf]
}

// Valid reports whether tf is one of the recognized timeframe constants.
func (tf Timeframe) Valid() bool {
	_, ok := timeframeMinutes[tf]
	return ok
}
