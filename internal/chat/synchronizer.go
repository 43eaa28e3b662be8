package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Status is the connection state of a synchronizer.
type Status int

const (
	StatusConnecting Status = iota
	StatusOpen
	StatusClosed
	StatusReconnecting
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusOpen:
		return "open"
	case StatusClosed:
		return "closed"
	case StatusReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Snapshot is a read-only copy of conversation state handed to the
// presentation layer on every change.
type Snapshot struct {
	Messages       []Message
	Status         Status
	LastError      string
	LoadingHistory bool
}

// Stream is a live message-framed connection to the backend.
type Stream interface {
	Recv(ctx context.Context) ([]byte, error)
	Send(ctx context.Context, v any) error
	Close() error
}

// Backend is everything the synchronizer needs from the outside world.
type Backend interface {
	History(ctx context.Context, conv Conversation) ([]Message, error)
	DialStream(ctx context.Context, path string) (Stream, error)
}

// Options tune a synchronizer. Zero values fall back to defaults that
// match the reference client: the first reconnect fires after 3s, then
// the delay doubles up to a 30s cap until the stream reopens.
type Options struct {
	ReconnectDelay    time.Duration
	ReconnectMaxDelay time.Duration
	ReconnectFactor   float64

	// OnUpdate receives a state snapshot after every mutation. It is
	// invoked from the run loop goroutine.
	OnUpdate func(Snapshot)
}

func (o Options) withDefaults() Options {
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = 3 * time.Second
	}
	if o.ReconnectMaxDelay <= 0 {
		o.ReconnectMaxDelay = 30 * time.Second
	}
	if o.ReconnectFactor < 1 {
		o.ReconnectFactor = 2
	}
	return o
}

// Synchronizer owns the state of one mounted conversation. It fetches
// history and opens the live stream concurrently, merges pushed events
// into a totally ordered message sequence, and redials dropped streams
// for as long as it is running. All state is owned by the run loop
// goroutine; Send is the only cross-goroutine entry point.
type Synchronizer struct {
	conv    Conversation
	self    Identity
	backend Backend
	opts    Options
	log     *zerolog.Logger

	commands chan sendRequest
	now      func() time.Time

	// Run loop state. Never touched outside the loop.
	messages  []Message
	status    Status
	lastError string
	loading   bool
}

type sendRequest struct {
	text  string
	reply chan error
}

type historyResult struct {
	msgs []Message
	err  error
}

type signalKind int

const (
	sigOpened signalKind = iota
	sigFrame
	sigClosed
)

type streamSignal struct {
	kind   signalKind
	stream Stream
	data   []byte
	err    error
}

// NewSynchronizer builds a synchronizer for one conversation. It does
// nothing until Run is called.
func NewSynchronizer(conv Conversation, self Identity, backend Backend, logger *zerolog.Logger, opts Options) *Synchronizer {
	return &Synchronizer{
		conv:     conv,
		self:     self,
		backend:  backend,
		opts:     opts.withDefaults(),
		log:      logger,
		commands: make(chan sendRequest),
		now:      time.Now,
		status:   StatusConnecting,
		loading:  true,
	}
}

// Run mounts the conversation and blocks until ctx is cancelled.
// History fetch and stream dial start concurrently; neither blocks the
// other, and a history failure does not prevent the stream going live.
func (s *Synchronizer) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.publish()

	histCh := make(chan historyResult, 1)
	go func() {
		msgs, err := s.backend.History(ctx, s.conv)
		histCh <- historyResult{msgs: msgs, err: err}
	}()

	// Unbuffered so inbound events are processed strictly in arrival
	// order and nothing is delivered after teardown.
	signals := make(chan streamSignal)
	go s.connect(ctx, signals)

	delay := s.opts.ReconnectDelay
	var stream Stream
	var timer *time.Timer
	var reconnect <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			if stream != nil {
				if err := stream.Close(); err != nil {
					s.log.Debug().Err(err).Str("conversation", s.conv.Key()).Msg("close stream")
				}
			}
			s.status = StatusClosed
			s.publish()
			return ctx.Err()

		case res := <-histCh:
			histCh = nil
			s.loading = false
			if res.err != nil {
				s.log.Warn().Err(res.err).Str("conversation", s.conv.Key()).Msg("history fetch failed")
				s.lastError = "failed to load messages"
			} else {
				sortByTimestamp(res.msgs)
				s.messages = res.msgs
			}
			s.publish()

		case sig := <-signals:
			switch sig.kind {
			case sigOpened:
				stream = sig.stream
				s.status = StatusOpen
				s.lastError = ""
				delay = s.opts.ReconnectDelay
				s.log.Info().Str("conversation", s.conv.Key()).Msg("stream open")
			case sigFrame:
				s.handleFrame(sig.data)
			case sigClosed:
				stream = nil
				s.status = StatusReconnecting
				s.lastError = "connection lost, attempting to reconnect"
				if sig.err != nil {
					s.log.Warn().Err(sig.err).Str("conversation", s.conv.Key()).Msg("stream closed")
				}
				timer = time.NewTimer(delay)
				reconnect = timer.C
				delay = nextDelay(delay, s.opts.ReconnectFactor, s.opts.ReconnectMaxDelay)
			}
			s.publish()

		case <-reconnect:
			timer = nil
			reconnect = nil
			s.log.Info().Str("conversation", s.conv.Key()).Msg("redialing stream")
			go s.connect(ctx, signals)

		case req := <-s.commands:
			req.reply <- s.handleSend(ctx, stream, req.text)
			s.publish()
		}
	}
}

// Send submits text for delivery on the conversation stream. The
// request is handled on the run loop; validation failures and
// transport errors surface both in the returned error and LastError,
// so the caller can keep the rejected input for resubmission.
func (s *Synchronizer) Send(ctx context.Context, text string) error {
	req := sendRequest{text: text, reply: make(chan error, 1)}
	select {
	case s.commands <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Synchronizer) connect(ctx context.Context, signals chan<- streamSignal) {
	st, err := s.backend.DialStream(ctx, s.conv.StreamPath())
	if err != nil {
		deliver(ctx, signals, streamSignal{kind: sigClosed, err: err})
		return
	}
	if !deliver(ctx, signals, streamSignal{kind: sigOpened, stream: st}) {
		st.Close()
		return
	}
	for {
		data, err := st.Recv(ctx)
		if err != nil {
			deliver(ctx, signals, streamSignal{kind: sigClosed, err: err})
			return
		}
		if !deliver(ctx, signals, streamSignal{kind: sigFrame, data: data}) {
			return
		}
	}
}

func deliver(ctx context.Context, signals chan<- streamSignal, sig streamSignal) bool {
	select {
	case signals <- sig:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Synchronizer) handleFrame(data []byte) {
	fr, err := parseFrame(data, s.now)
	if err != nil {
		s.log.Warn().Err(err).Str("conversation", s.conv.Key()).Msg("malformed stream frame")
		return
	}

	switch fr.Kind {
	case frameError:
		s.lastError = fr.Err
	case frameHandshake:
		s.lastError = ""
		s.log.Debug().Str("conversation", s.conv.Key()).Str("message", fr.Handshake).Msg("handshake acknowledged")
	case frameChat:
		ev := fr.Event
		if !s.conv.Accepts(ev) {
			return
		}
		if s.isDuplicate(ev) {
			s.log.Debug().Str("conversation", s.conv.Key()).Msg("dropped duplicate event")
			return
		}
		var senderID *int64
		if ev.UserID != 0 {
			id := ev.UserID
			senderID = &id
		}
		s.messages = append(s.messages, Message{
			ID:        uuid.NewString(),
			Content:   ev.Message,
			Timestamp: ev.Timestamp,
			Sender:    Sender{ID: senderID, Username: ev.senderUsername()},
		})
		sortByTimestamp(s.messages)
	}
}

// isDuplicate reports whether an existing message matches the event on
// content, sender username, and a timestamp within the conversation's
// dedupe window. This absorbs the server echoing the client's own send
// back at it; see the room consumer, which rebroadcasts to the sender.
func (s *Synchronizer) isDuplicate(ev Event) bool {
	window := s.conv.DedupeWindow()
	if window <= 0 {
		return false
	}
	sender := ev.senderUsername()
	for _, m := range s.messages {
		if m.Content != ev.Message || m.Sender.Username != sender {
			continue
		}
		d := m.Timestamp.Sub(ev.Timestamp)
		if d < 0 {
			d = -d
		}
		if d < window {
			return true
		}
	}
	return false
}

func (s *Synchronizer) handleSend(ctx context.Context, stream Stream, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		s.lastError = "cannot send an empty message"
		return ErrEmptyMessage
	}
	if s.self.Username == "" {
		s.lastError = "not authenticated"
		return ErrNotAuthenticated
	}
	if s.status != StatusOpen || stream == nil {
		s.lastError = "connection not ready, please try again"
		return ErrStreamNotOpen
	}

	if err := stream.Send(ctx, s.conv.Outbound(s.self, text)); err != nil {
		s.log.Warn().Err(err).Str("conversation", s.conv.Key()).Msg("send failed")
		s.lastError = "failed to send message"
		return fmt.Errorf("send: %w", err)
	}
	s.lastError = ""
	return nil
}

func (s *Synchronizer) publish() {
	if s.opts.OnUpdate == nil {
		return
	}
	msgs := make([]Message, len(s.messages))
	copy(msgs, s.messages)
	s.opts.OnUpdate(Snapshot{
		Messages:       msgs,
		Status:         s.status,
		LastError:      s.lastError,
		LoadingHistory: s.loading,
	})
}

func nextDelay(current time.Duration, factor float64, limit time.Duration) time.Duration {
	next := time.Duration(float64(current) * factor)
	if next > limit {
		next = limit
	}
	return next
}
