package stream

import "time"

// Topic identifies one data stream within a venue's feed, e.g. the mark
// price of a single instrument. It doubles as the cache key and as the
// resubscription descriptor after a reconnect.
type Topic struct {
	Channel string // e.g. "markPrice", "position", "balance"
	Symbol  string // instrument, empty for account-wide channels
}

func (t Topic) String() string {
	if t.Symbol == "" {
		return t.Channel
	}
	return t.Channel + "." + t.Symbol
}

// CachedValue is the last decoded payload seen for a topic.
type CachedValue struct {
	Value any
	At    time.Time // local receipt time
}
