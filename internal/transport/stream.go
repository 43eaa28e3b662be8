package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Stream is a persistent message-framed connection.
type Stream interface {
	Recv(ctx context.Context) ([]byte, error)
	Send(ctx context.Context, v any) error
	Close() error
}

// Dialer opens streams against the websocket origin.
type Dialer struct {
	base *url.URL
	jar  http.CookieJar
}

// NewDialer builds a dialer for the given stream origin, reusing the
// transport client's cookie jar for session continuity.
func NewDialer(streamBaseURL string, jar http.CookieJar) (*Dialer, error) {
	base, err := url.Parse(streamBaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse stream base url: %w", err)
	}
	return &Dialer{base: base, jar: jar}, nil
}

// Dial opens a websocket to <streamOrigin><path>.
func (d *Dialer) Dial(ctx context.Context, path string) (Stream, error) {
	rel, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("parse stream path %q: %w", path, err)
	}
	u := d.base.ResolveReference(rel)

	conn, _, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{
		HTTPClient: &http.Client{Jar: d.jar},
	})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u, err)
	}
	return &wsStream{conn: conn}, nil
}

type wsStream struct {
	conn *websocket.Conn
}

func (s *wsStream) Recv(ctx context.Context) ([]byte, error) {
	_, data, err := s.conn.Read(ctx)
	return data, err
}

func (s *wsStream) Send(ctx context.Context, v any) error {
	return wsjson.Write(ctx, s.conn, v)
}

func (s *wsStream) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "closing")
}
