package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeStream delivers scripted frames and records sends.
type fakeStream struct {
	frames chan []byte
	sent   chan any
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		frames: make(chan []byte, 16),
		sent:   make(chan any, 16),
	}
}

func (f *fakeStream) Recv(ctx context.Context) ([]byte, error) {
	select {
	case data, ok := <-f.frames:
		if !ok {
			return nil, errors.New("connection closed")
		}
		return data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeStream) Send(_ context.Context, v any) error {
	f.sent <- v
	return nil
}

func (f *fakeStream) Close() error { return nil }

// deliver pushes one JSON frame at the synchronizer.
func (f *fakeStream) deliver(t *testing.T, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	f.frames <- data
}

// drop simulates the server closing the connection.
func (f *fakeStream) drop() {
	close(f.frames)
}

// fakeBackend hands out scripted history and streams.
type fakeBackend struct {
	mu          sync.Mutex
	history     []Message
	historyErr  error
	historyGate chan struct{} // when non-nil, History blocks until closed
	streams     []*fakeStream
	dialErr     error
	dialCount   int
}

func (b *fakeBackend) History(ctx context.Context, _ Conversation) ([]Message, error) {
	if b.historyGate != nil {
		select {
		case <-b.historyGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if b.historyErr != nil {
		return nil, b.historyErr
	}
	msgs := make([]Message, len(b.history))
	copy(msgs, b.history)
	return msgs, nil
}

func (b *fakeBackend) DialStream(context.Context, string) (Stream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dialCount++
	if b.dialErr != nil {
		return nil, b.dialErr
	}
	if len(b.streams) == 0 {
		return nil, errors.New("no stream scripted")
	}
	st := b.streams[0]
	b.streams = b.streams[1:]
	return st, nil
}

func (b *fakeBackend) dials() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dialCount
}

// harness runs a synchronizer against a fake backend and collects
// snapshots for assertions.
type harness struct {
	engine   *Synchronizer
	backend  *fakeBackend
	snaps    chan Snapshot
	cancel   context.CancelFunc
	done     chan error
	stopOnce sync.Once
}

func startSynchronizer(t *testing.T, conv Conversation, self Identity, backend *fakeBackend, opts Options) *harness {
	t.Helper()

	snaps := make(chan Snapshot, 256)
	opts.OnUpdate = func(s Snapshot) { snaps <- s }

	logger := zerolog.Nop()
	s := NewSynchronizer(conv, self, backend, &logger, opts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	h := &harness{engine: s, backend: backend, snaps: snaps, cancel: cancel, done: done}
	t.Cleanup(h.stop)
	return h
}

func (h *harness) stop() {
	h.stopOnce.Do(func() {
		h.cancel()
		select {
		case <-h.done:
		case <-time.After(2 * time.Second):
		}
	})
}

// waitFor returns the first snapshot matching cond.
func (h *harness) waitFor(t *testing.T, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-h.snaps:
			if cond(s) {
				return s
			}
		case <-deadline:
			t.Fatal("timed out waiting for snapshot")
			return Snapshot{}
		}
	}
}

func (h *harness) waitOpen(t *testing.T) {
	t.Helper()
	h.waitFor(t, func(s Snapshot) bool { return s.Status == StatusOpen })
}

func testRoom() RoomConversation {
	return RoomConversation{ID: 1, Name: "general"}
}

func testPeer() DirectConversation {
	return DirectConversation{PeerID: 7, PeerName: "bob"}
}

func historyMessage(content, sender string, ts time.Time) Message {
	return Message{
		ID:        content,
		Content:   content,
		Timestamp: ts,
		Sender:    Sender{Username: sender},
	}
}

// chatFrame builds the wire shape of a live room event.
func chatFrame(content, sender string, ts time.Time) map[string]any {
	return map[string]any{
		"message":   content,
		"user_id":   3,
		"username":  sender,
		"timestamp": ts.Format(time.RFC3339Nano),
	}
}

// directFrame builds the wire shape of a live direct-message event.
func directFrame(content string, from, to int64, ts time.Time) map[string]any {
	return map[string]any{
		"message":           content,
		"user_id":           from,
		"username":          "peer",
		"recipient_id":      to,
		"timestamp":         ts.Format(time.RFC3339Nano),
		"is_direct_message": true,
	}
}
