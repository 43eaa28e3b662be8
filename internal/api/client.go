// Package api wraps the REST endpoints of the chat backend with typed
// calls and adapts them to the synchronizer's backend contract.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/chatapp/chat-cli/internal/chat"
	"github.com/chatapp/chat-cli/internal/session"
	"github.com/chatapp/chat-cli/internal/transport"
)

// UserRef is the embedded user shape the API nests in other payloads.
type UserRef struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// User is a chat user as returned by the user listing, including
// presence information.
type User struct {
	ID       int64      `json:"id"`
	Username string     `json:"username"`
	IsOnline bool       `json:"is_online"`
	LastSeen *time.Time `json:"last_seen"`
}

// MessageRecord is the serialized message shape the REST API returns.
type MessageRecord struct {
	ID              int64     `json:"id"`
	Room            *int64    `json:"room"`
	User            UserRef   `json:"user"`
	Recipient       *UserRef  `json:"recipient"`
	Content         string    `json:"content"`
	Timestamp       time.Time `json:"timestamp"`
	IsDirectMessage bool      `json:"is_direct_message"`
}

// Message converts the REST shape into the domain model.
func (r MessageRecord) Message() chat.Message {
	senderID := r.User.ID
	return chat.Message{
		ID:        strconv.FormatInt(r.ID, 10),
		Content:   r.Content,
		Timestamp: r.Timestamp,
		Sender:    chat.Sender{ID: &senderID, Username: r.User.Username},
	}
}

// Room is a chat room summary.
type Room struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Creator     *UserRef       `json:"creator"`
	CreatedAt   time.Time      `json:"created_at"`
	LastMessage *MessageRecord `json:"last_message"`
}

// LoginResult is the login response body.
type LoginResult struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Token    string `json:"token"`
}

// Client is the typed REST client. It also implements chat.Backend.
type Client struct {
	tc       *transport.Client
	dialer   *transport.Dialer
	sessions *session.Store
	log      *zerolog.Logger
}

// NewClient wires the REST client over the transport layer.
func NewClient(tc *transport.Client, dialer *transport.Dialer, sessions *session.Store, logger *zerolog.Logger) *Client {
	return &Client{tc: tc, dialer: dialer, sessions: sessions, log: logger}
}

// Login authenticates and persists the credential for later runs.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	body := map[string]string{"username": username, "password": password}

	var res LoginResult
	if err := c.tc.Do(ctx, http.MethodPost, "/api/login/", body, &res); err != nil {
		return nil, err
	}
	if res.Token == "" {
		return nil, errors.New("login response carried no token")
	}

	if err := c.sessions.Save(ctx, session.Credential{Username: res.Username, Token: res.Token}); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	c.log.Info().Str("username", res.Username).Msg("logged in")
	return &res, nil
}

// Register creates an account. The backend returns no token, so
// callers still log in afterwards.
func (c *Client) Register(ctx context.Context, username, email, password string) error {
	body := map[string]string{
		"username":  username,
		"email":     email,
		"password":  password,
		"password2": password,
	}
	return c.tc.Do(ctx, http.MethodPost, "/api/register/", body, nil)
}

// Rooms lists all chat rooms.
func (c *Client) Rooms(ctx context.Context) ([]Room, error) {
	var rooms []Room
	if err := c.tc.Do(ctx, http.MethodGet, "/api/rooms/", nil, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// CreateRoom creates a new chat room.
func (c *Client) CreateRoom(ctx context.Context, name, description string) (*Room, error) {
	body := map[string]string{"name": name, "description": description}

	var room Room
	if err := c.tc.Do(ctx, http.MethodPost, "/api/rooms/", body, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

// Users lists all other users with presence information.
func (c *Client) Users(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.tc.Do(ctx, http.MethodGet, "/api/users/", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// History fetches and decodes a conversation's message history.
// Implements chat.Backend.
func (c *Client) History(ctx context.Context, conv chat.Conversation) ([]chat.Message, error) {
	var records []MessageRecord
	if err := c.tc.Do(ctx, http.MethodGet, conv.HistoryPath(), nil, &records); err != nil {
		return nil, err
	}

	msgs := make([]chat.Message, 0, len(records))
	for _, r := range records {
		msgs = append(msgs, r.Message())
	}
	return msgs, nil
}

// DialStream opens the live stream for a conversation path.
// Implements chat.Backend.
func (c *Client) DialStream(ctx context.Context, path string) (chat.Stream, error) {
	return c.dialer.Dial(ctx, path)
}
