// Package chat implements the per-conversation synchronization engine:
// history fetch, live stream, merge/dedupe/ordering, and reconnection.
package chat

import (
	"sort"
	"time"
)

// Sender identifies who wrote a message. ID is nil when the backend
// only reported a username.
type Sender struct {
	ID       *int64
	Username string
}

// Message is a single chat message in a conversation. History messages
// carry server-assigned ids; live messages get a locally generated
// UUID, since the stream does not echo the durable id.
type Message struct {
	ID        string
	Content   string
	Timestamp time.Time
	Sender    Sender
}

// Identity is the authenticated user a synchronizer runs on behalf of.
type Identity struct {
	Username string
}

// sortByTimestamp orders messages ascending by timestamp, keeping
// arrival order for equal timestamps.
func sortByTimestamp(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
}
