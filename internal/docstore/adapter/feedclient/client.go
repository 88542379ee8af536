// Package feedclient follows the websocket change feed of one collection.
package feedclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mission-control/internal/docstore/domain/model"
	"mission-control/internal/shared/logger"

	"github.com/fasthttp/websocket"
)

// ErrUnknownCollection is returned when the server refuses the collection.
var ErrUnknownCollection = errors.New("server does not know the collection")

// message mirrors the frames the server sends.
type message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Config selects the feed to follow.
type Config struct {
	// BaseURL is the websocket mount, e.g. ws://localhost:3000/ws/collections.
	BaseURL    string
	Collection string
	// Token is sent both as a bearer header and as the token query parameter.
	Token string
	// After resumes the feed after this stream id. Servers without a change log ignore it.
	After                string
	HandshakeTimeout     time.Duration
	MaxReconnectAttempts int
	ReconnectBackoff     time.Duration
}

// Client dials the feed and hands every change to a callback, reconnecting with a
// linear backoff when the connection drops. Reconnects resume after the last stream id
// seen, so changes logged while disconnected are delivered.
type Client struct {
	cfg    Config
	cursor string
	dialer *websocket.Dialer
	log    logger.Logger
}

// New validates cfg and fills in defaults.
func New(cfg Config, log logger.Logger) (*Client, error) {
	if cfg.BaseURL == "" || cfg.Collection == "" {
		return nil, errors.New("base URL and collection are required")
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.ReconnectBackoff <= 0 {
		cfg.ReconnectBackoff = 2 * time.Second
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Client{
		cfg:    cfg,
		cursor: cfg.After,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
		log: log.WithComponent("feedclient").WithFields(map[string]interface{}{"collection": cfg.Collection}),
	}, nil
}

// FeedURL is the address dialled for the configured collection, resuming after Cursor.
func (c *Client) FeedURL() (string, error) {
	u, err := url.Parse(strings.TrimRight(c.cfg.BaseURL, "/") + "/" + url.PathEscape(c.cfg.Collection))
	if err != nil {
		return "", fmt.Errorf("invalid feed URL: %w", err)
	}
	q := u.Query()
	if c.cfg.Token != "" {
		q.Set("token", c.cfg.Token)
	}
	if c.cursor != "" {
		q.Set("after", c.cursor)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Cursor is the stream id of the last change received. Not safe to call while Run is
// active.
func (c *Client) Cursor() string {
	return c.cursor
}

// Run follows the feed until ctx is cancelled, the server rejects the collection or
// the reconnect budget is spent. A zero MaxReconnectAttempts disables reconnecting.
func (c *Client) Run(ctx context.Context, onChange func(model.ChangeEvent)) error {
	attempts := 0
	for {
		err := c.follow(ctx, onChange, func() { attempts = 0 })
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, ErrUnknownCollection) {
			return err
		}
		if attempts >= c.cfg.MaxReconnectAttempts {
			return fmt.Errorf("feed lost after %d reconnect attempts: %w", attempts, err)
		}
		attempts++
		wait := time.Duration(attempts) * c.cfg.ReconnectBackoff
		c.log.Warnf("feed dropped (%v), reconnecting in %v (attempt %d/%d)", err, wait, attempts, c.cfg.MaxReconnectAttempts)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (c *Client) follow(ctx context.Context, onChange func(model.ChangeEvent), subscribed func()) error {
	target, err := c.FeedURL()
	if err != nil {
		return err
	}
	header := http.Header{}
	if c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	conn, _, err := c.dialer.DialContext(ctx, target, header)
	if err != nil {
		return fmt.Errorf("failed to connect to feed: %w", err)
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}
		switch msg.Type {
		case "subscribed":
			c.log.Info("subscribed")
			subscribed()
		case "change":
			var change model.ChangeEvent
			if err := json.Unmarshal(msg.Data, &change); err != nil {
				c.log.Warnf("skipping undecodable change: %v", err)
				continue
			}
			if change.StreamID != "" {
				c.cursor = change.StreamID
			}
			onChange(change)
		case "error":
			return fmt.Errorf("%w: %s", ErrUnknownCollection, string(msg.Data))
		default:
			c.log.Debugf("ignoring %q frame", msg.Type)
		}
	}
}
