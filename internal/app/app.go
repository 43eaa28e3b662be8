// Package app wires the client layers together for the CLI commands.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/chatapp/chat-cli/internal/api"
	"github.com/chatapp/chat-cli/internal/chat"
	"github.com/chatapp/chat-cli/internal/config"
	"github.com/chatapp/chat-cli/internal/session"
	"github.com/chatapp/chat-cli/internal/shell"
	"github.com/chatapp/chat-cli/internal/transport"
)

// App holds the wired client layers.
type App struct {
	Config   config.Config
	Log      *zerolog.Logger
	Sessions *session.Store
	API      *api.Client
}

// New constructs the application from resolved configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	sessions, err := session.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	// An expired session invalidates every conversation; tell the user
	// where to go next.
	sessions.OnClear(func() {
		fmt.Fprintln(os.Stderr, "session ended, run 'chat login' to sign in again")
	})

	tc, err := transport.NewClient(cfg.APIBaseURL, sessions, cfg.RequestTimeout, logger)
	if err != nil {
		sessions.Close()
		return nil, fmt.Errorf("init transport: %w", err)
	}

	dialer, err := transport.NewDialer(cfg.StreamBaseURL, tc.Jar())
	if err != nil {
		sessions.Close()
		return nil, fmt.Errorf("init stream dialer: %w", err)
	}

	return &App{
		Config:   cfg,
		Log:      logger,
		Sessions: sessions,
		API:      api.NewClient(tc, dialer, sessions, logger),
	}, nil
}

// Close releases held resources.
func (a *App) Close() {
	if err := a.Sessions.Close(); err != nil {
		a.Log.Warn().Err(err).Msg("failed to close session store")
	}
}

// Identity returns the current user identity, or a zero identity when
// logged out.
func (a *App) Identity(ctx context.Context) (chat.Identity, error) {
	cred, err := a.Sessions.Load(ctx)
	if err != nil {
		return chat.Identity{}, err
	}
	if cred == nil {
		return chat.Identity{}, nil
	}
	return chat.Identity{Username: cred.Username}, nil
}

// OpenConversation runs the interactive shell on one conversation
// until the user leaves or the context is cancelled.
func (a *App) OpenConversation(ctx context.Context, conv chat.Conversation) error {
	self, err := a.Identity(ctx)
	if err != nil {
		return err
	}

	sh := shell.New(os.Stdin, os.Stdout, a.Log)
	sync := chat.NewSynchronizer(conv, self, a.API, a.Log, chat.Options{
		ReconnectDelay:    a.Config.ReconnectDelay,
		ReconnectMaxDelay: a.Config.ReconnectMaxDelay,
		ReconnectFactor:   a.Config.ReconnectFactor,
		OnUpdate:          sh.Apply,
	})
	return sh.Run(ctx, sync, conv.Title())
}
