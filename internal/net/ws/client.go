package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	nethttp "net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"boardfx/effects/contract"
	"boardfx/internal/net/proto"
	"boardfx/internal/telemetry"
)

// ClientConfig wires a Client to its consumers. Callbacks run on the read
// loop goroutine.
type ClientConfig struct {
	HTTPClient *nethttp.Client
	Dialer     *websocket.Dialer
	Logger     telemetry.Logger
	OnSnapshot func(*contract.Snapshot)
	OnReject   func(proto.ServerMessage)
}

// Client is the player side of a session.
type Client struct {
	id     string
	conn   *websocket.Conn
	config ClientConfig

	writeMu sync.Mutex
	seq     atomic.Uint64
}

// Join registers a player with the server at baseURL.
func Join(ctx context.Context, httpClient *nethttp.Client, baseURL string) (proto.JoinResponse, error) {
	var join proto.JoinResponse
	if httpClient == nil {
		httpClient = nethttp.DefaultClient
	}
	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodPost, strings.TrimSuffix(baseURL, "/")+"/join", nil)
	if err != nil {
		return join, fmt.Errorf("build join request: %w", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return join, fmt.Errorf("join: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != nethttp.StatusOK {
		return join, fmt.Errorf("join: unexpected status %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&join); err != nil {
		return join, fmt.Errorf("decode join response: %w", err)
	}
	if join.ID == "" {
		return join, errors.New("join: empty player id")
	}
	return join, nil
}

// Dial opens the websocket session for playerID.
func Dial(ctx context.Context, baseURL, playerID string, cfg ClientConfig) (*Client, error) {
	target, err := websocketURL(baseURL, playerID)
	if err != nil {
		return nil, err
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	if cfg.Logger == nil {
		cfg.Logger = telemetry.WrapLogger(log.Default())
	}
	conn, resp, err := dialer.DialContext(ctx, target, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return &Client{id: playerID, conn: conn, config: cfg}, nil
}

// Connect joins and dials in one step.
func Connect(ctx context.Context, baseURL string, cfg ClientConfig) (*Client, proto.JoinResponse, error) {
	join, err := Join(ctx, cfg.HTTPClient, baseURL)
	if err != nil {
		return nil, join, err
	}
	client, err := Dial(ctx, baseURL, join.ID, cfg)
	return client, join, err
}

func websocketURL(baseURL, playerID string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	u.RawQuery = url.Values{"id": []string{playerID}}.Encode()
	return u.String(), nil
}

// ID returns the player id the session was opened for.
func (c *Client) ID() string {
	return c.id
}

// Run reads server messages until ctx is done or the connection fails.
// Cancellation is a clean exit.
func (c *Client) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		c.conn.Close()
	})
	defer stop()

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		msg, err := proto.DecodeServerMessage(payload)
		if err != nil {
			c.config.Logger.Printf("discarding malformed server message: %v", err)
			continue
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg proto.ServerMessage) {
	switch msg.Type {
	case proto.TypeState:
		if c.config.OnSnapshot != nil {
			c.config.OnSnapshot(msg.Snapshot)
		}
	case proto.TypeMoveReject:
		if c.config.OnReject != nil {
			c.config.OnReject(msg)
		} else {
			c.config.Logger.Printf("move %s seq=%d rejected: %s", msg.Move, msg.Seq, msg.Reason)
		}
	case proto.TypeMoveAck, proto.TypeHeartbeat:
	default:
		c.config.Logger.Printf("unknown server message type %q", msg.Type)
	}
}

// SendMove sends a move with the next sequence number and returns it.
func (c *Client) SendMove(move string, arg any) (uint64, error) {
	var raw json.RawMessage
	if arg != nil {
		encoded, err := json.Marshal(arg)
		if err != nil {
			return 0, fmt.Errorf("encode move argument: %w", err)
		}
		raw = encoded
	}
	seq := c.seq.Add(1)
	return seq, c.write(proto.ClientMessage{
		Ver:  proto.Version,
		Type: proto.TypeMove,
		Move: move,
		Arg:  raw,
		Seq:  seq,
	})
}

// Heartbeat tells the server the session is alive.
func (c *Client) Heartbeat(now time.Time) error {
	return c.write(proto.ClientMessage{
		Ver:    proto.Version,
		Type:   proto.TypeHeartbeat,
		SentAt: now.UnixMilli(),
	})
}

func (c *Client) write(msg proto.ClientMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a close frame and closes the connection.
func (c *Client) Close() error {
	c.writeMu.Lock()
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return c.conn.Close()
}
