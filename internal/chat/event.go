package chat

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Event is a chat event decoded from a stream frame.
type Event struct {
	Message         string
	UserID          int64
	Username        string
	Timestamp       time.Time
	IsDirectMessage bool
	RecipientID     int64
}

// senderUsername resolves the display name for the event's author.
// Older frames omit the username field and only carry the numeric id.
func (e Event) senderUsername() string {
	if e.Username != "" {
		return e.Username
	}
	return strconv.FormatInt(e.UserID, 10)
}

type frameKind int

const (
	frameChat frameKind = iota
	frameHandshake
	frameError
)

// frame is one classified stream payload. Three shapes are recognized:
// a server-reported error, the connection_established handshake, and a
// chat event.
type frame struct {
	Kind      frameKind
	Err       string
	Handshake string
	Event     Event
}

type wireFrame struct {
	Error           string `json:"error"`
	Type            string `json:"type"`
	Message         string `json:"message"`
	UserID          int64  `json:"user_id"`
	Username        string `json:"username"`
	Timestamp       string `json:"timestamp"`
	IsDirectMessage bool   `json:"is_direct_message"`
	RecipientID     int64  `json:"recipient_id"`
}

func parseFrame(data []byte, now func() time.Time) (frame, error) {
	var w wireFrame
	if err := json.Unmarshal(data, &w); err != nil {
		return frame{}, fmt.Errorf("decode frame: %w", err)
	}

	switch {
	case w.Error != "":
		return frame{Kind: frameError, Err: w.Error}, nil
	case w.Type == "connection_established":
		return frame{Kind: frameHandshake, Handshake: w.Message}, nil
	}

	ts := now()
	if w.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339Nano, w.Timestamp)
		if err != nil {
			return frame{}, fmt.Errorf("parse timestamp %q: %w", w.Timestamp, err)
		}
		ts = parsed
	}

	return frame{Kind: frameChat, Event: Event{
		Message:         w.Message,
		UserID:          w.UserID,
		Username:        w.Username,
		Timestamp:       ts,
		IsDirectMessage: w.IsDirectMessage,
		RecipientID:     w.RecipientID,
	}}, nil
}
