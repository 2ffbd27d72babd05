// Package broadcast implements the engine's optional outbound publisher:
// a non-blocking, drop-on-full queue draining into a pluggable io.Writer
// sink, carrying fixed little-endian wire frames tagged by topic.
package broadcast

// Topic is the one-byte tag prefixing every broadcast frame.
type Topic uint8

const (
	TopicTick Topic = 0
	TopicBar  Topic = 1
	TopicTrade Topic = 2
	TopicOrder Topic = 3
	TopicEquity Topic = 4
	// TopicMargin and TopicPosition fill the two topic codes the wire
	// format reserves without specifying a byte layout; see encode.go for
	// the chosen field sets.
	TopicMargin   Topic = 5
	TopicPosition Topic = 6
	TopicAccount  Topic = 7
)
