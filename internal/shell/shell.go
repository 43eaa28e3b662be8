// Package shell renders conversation state in the terminal and forwards
// input lines into the synchronizer. All state belongs to the
// synchronizer; the shell only prints what it is handed.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/chatapp/chat-cli/internal/chat"
)

// Shell is a line-oriented conversation view.
type Shell struct {
	in  io.Reader
	out io.Writer
	log *zerolog.Logger

	mu      sync.Mutex
	printed map[string]struct{}
	status  chat.Status
	lastErr string
	loading bool
}

// New builds a shell reading input from in and rendering to out.
func New(in io.Reader, out io.Writer, logger *zerolog.Logger) *Shell {
	return &Shell{
		in:      in,
		out:     out,
		log:     logger,
		printed: make(map[string]struct{}),
		status:  chat.StatusConnecting,
		loading: true,
	}
}

// Apply renders a state snapshot. Called from the synchronizer's run
// loop goroutine, hence the lock against the input goroutine.
func (sh *Shell) Apply(snap chat.Snapshot) {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if snap.Status != sh.status {
		sh.status = snap.Status
		fmt.Fprintf(sh.out, "-- connection %s\n", snap.Status)
	}

	if snap.LastError != sh.lastErr {
		sh.lastErr = snap.LastError
		if snap.LastError != "" {
			fmt.Fprintf(sh.out, "!! %s\n", snap.LastError)
		}
	}

	if sh.loading && !snap.LoadingHistory {
		sh.loading = false
		fmt.Fprintf(sh.out, "-- %d messages loaded\n", len(snap.Messages))
	}

	for _, m := range snap.Messages {
		if _, ok := sh.printed[m.ID]; ok {
			continue
		}
		sh.printed[m.ID] = struct{}{}
		fmt.Fprintf(sh.out, "[%s] %s: %s\n",
			m.Timestamp.Local().Format("15:04"), m.Sender.Username, m.Content)
	}
}

// Run mounts the synchronizer and feeds input lines into Send until
// EOF or context cancellation. Rejected input is echoed back so the
// user can resubmit it.
func (sh *Shell) Run(ctx context.Context, engine *chat.Synchronizer, title string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- engine.Run(ctx) }()

	fmt.Fprintf(sh.out, "== %s. Type a message and press Enter; Ctrl+D to leave.\n", title)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(sh.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			<-done
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				cancel()
				err := <-done
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}
			if err := sh.send(ctx, engine, line); err != nil {
				return err
			}
		case err := <-done:
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}

func (sh *Shell) send(ctx context.Context, engine *chat.Synchronizer, line string) error {
	err := engine.Send(ctx, line)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	sh.log.Debug().Err(err).Msg("send rejected")
	if !errors.Is(err, chat.ErrEmptyMessage) {
		// Keep the rejected text visible so it can be resubmitted.
		sh.mu.Lock()
		fmt.Fprintf(sh.out, ">> not sent: %s\n", line)
		sh.mu.Unlock()
	}
	return nil
}
