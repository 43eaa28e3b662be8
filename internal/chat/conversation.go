package chat

import (
	"fmt"
	"time"
)

// Conversation abstracts the two conversation kinds behind the small
// capability set the synchronizer needs: where to fetch history, where
// to open the stream, how to shape outbound payloads, and which inbound
// events belong to the conversation.
type Conversation interface {
	Key() string
	Title() string
	HistoryPath() string
	StreamPath() string
	Outbound(self Identity, text string) any
	Accepts(ev Event) bool
	DedupeWindow() time.Duration
}

// RoomConversation is a shared chat room.
type RoomConversation struct {
	ID          int64
	Name        string
	Description string
}

func (r RoomConversation) Key() string   { return fmt.Sprintf("room:%d", r.ID) }
func (r RoomConversation) Title() string { return r.Name }

func (r RoomConversation) HistoryPath() string {
	return fmt.Sprintf("/api/messages/?room=%d", r.ID)
}

func (r RoomConversation) StreamPath() string {
	return fmt.Sprintf("/ws/chat/room/%d/", r.ID)
}

// Outbound keys the payload the way the room consumer expects;
// user_id carries the sender's username.
func (r RoomConversation) Outbound(self Identity, text string) any {
	return roomPayload{Message: text, UserID: self.Username, RoomID: r.ID}
}

// Accepts takes every chat event: a room stream only carries traffic
// for its own room.
func (r RoomConversation) Accepts(Event) bool { return true }

// DedupeWindow enables the content/sender/time heuristic that absorbs
// the server echo of the client's own messages.
func (r RoomConversation) DedupeWindow() time.Duration { return time.Second }

// DirectConversation is a one-to-one conversation with a peer.
type DirectConversation struct {
	PeerID   int64
	PeerName string
	Online   bool
}

func (d DirectConversation) Key() string   { return fmt.Sprintf("direct:%d", d.PeerID) }
func (d DirectConversation) Title() string { return d.PeerName }

func (d DirectConversation) HistoryPath() string {
	return fmt.Sprintf("/api/messages/direct/%d/", d.PeerID)
}

func (d DirectConversation) StreamPath() string {
	return fmt.Sprintf("/ws/chat/direct/%d/", d.PeerID)
}

func (d DirectConversation) Outbound(_ Identity, text string) any {
	return directPayload{Type: "direct_message", Message: text, RecipientID: d.PeerID}
}

// Accepts drops anything that is not a direct message to or from the
// open peer; the underlying channel group can leak broadcast traffic.
func (d DirectConversation) Accepts(ev Event) bool {
	if !ev.IsDirectMessage {
		return false
	}
	return ev.UserID == d.PeerID || ev.RecipientID == d.PeerID
}

func (d DirectConversation) DedupeWindow() time.Duration { return 0 }

type roomPayload struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
	RoomID  int64  `json:"room_id"`
}

type directPayload struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	RecipientID int64  `json:"recipient_id"`
}
