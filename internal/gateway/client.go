// Package gateway is a client for the chat platform's real-time WebSocket
// gateway. It maintains one session, resuming it across reconnects, and
// hands MESSAGE_CREATE events to a handler in arrival order.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/msaad732/meme-coin/internal/metrics"
	"github.com/msaad732/meme-coin/internal/snowflake"
)

// DefaultURL is the public gateway endpoint.
const DefaultURL = "wss://gateway.discord.gg/?v=10&encoding=json"

const (
	defaultMinBackoff = time.Second
	defaultMaxBackoff = 60 * time.Second
)

// MessageHandler receives MESSAGE_CREATE events. The client does not read
// the next frame until the handler returns.
type MessageHandler func(ctx context.Context, m MessageCreate)

type Options struct {
	URL     string
	Token   string
	Intents int

	// OnReady is called with the bot's own user ID each time a new session
	// is established.
	OnReady func(selfID snowflake.ID)

	Dialer     *websocket.Dialer
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// FatalError is returned by Run when the server closes the connection for a
// reason that reconnecting cannot fix.
type FatalError struct {
	Code   int
	Reason string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("gateway: closed with code %d: %s", e.Code, e.Reason)
}

var fatalCloseCodes = map[int]string{
	4004: "authentication failed",
	4010: "invalid shard",
	4011: "sharding required",
	4012: "invalid API version",
	4013: "invalid intents",
	4014: "disallowed intents",
}

var (
	errReconnect      = errors.New("gateway: server requested reconnect")
	errInvalidSession = errors.New("gateway: session invalidated")
)

type Client struct {
	opts     Options
	handler  MessageHandler
	channels *channelCache

	seq    atomic.Int64
	selfID atomic.Int64

	mu        sync.Mutex
	sessionID string
	resumeURL string
}

func New(opts Options, handler MessageHandler) *Client {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.Intents == 0 {
		opts.Intents = DefaultIntents
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = defaultMinBackoff
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = max(defaultMaxBackoff, opts.MinBackoff)
	}
	return &Client{
		opts:     opts,
		handler:  handler,
		channels: newChannelCache(),
	}
}

// SelfID returns the bot's user ID from the last READY, or 0.
func (c *Client) SelfID() snowflake.ID {
	return snowflake.ID(c.selfID.Load())
}

// ChannelName returns the cached name for id, or "".
func (c *Client) ChannelName(id snowflake.ID) string {
	return c.channels.name(id)
}

// Run connects and keeps the session alive until ctx is cancelled, backing
// off exponentially between attempts. It returns nil on cancellation and a
// *FatalError when the server refuses the bot outright.
func (c *Client) Run(ctx context.Context) error {
	backoff := c.opts.MinBackoff
	for {
		established, err := c.runSession(ctx)
		if ctx.Err() != nil {
			return nil
		}
		var fatal *FatalError
		if errors.As(err, &fatal) {
			return err
		}
		if established {
			backoff = c.opts.MinBackoff
		}

		metrics.GatewayReconnects.Inc()
		slog.Warn("gateway connection lost, reconnecting", "error", err, "backoff", backoff, "resume", c.resumable())

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
		backoff = min(backoff*2, c.opts.MaxBackoff)
	}
}

// runSession runs one connection. established reports whether the server
// accepted the session with READY or RESUMED.
func (c *Client) runSession(ctx context.Context) (established bool, err error) {
	url, sessionID := c.dialTarget()

	ws, _, err := c.opts.Dialer.DialContext(ctx, url, nil)
	if err != nil {
		return false, fmt.Errorf("dialing gateway: %w", err)
	}
	conn := newConnection(ws, &c.seq)
	stop := context.AfterFunc(ctx, conn.closeNormal)
	defer stop()
	defer conn.close()

	hello, err := conn.readPayload()
	if err != nil {
		return false, c.classifyClose(err)
	}
	if hello.Op != OpHello {
		return false, fmt.Errorf("gateway: expected HELLO, got op %d", hello.Op)
	}
	var hd HelloData
	if err := json.Unmarshal(hello.Data, &hd); err != nil || hd.HeartbeatInterval <= 0 {
		return false, fmt.Errorf("gateway: invalid HELLO payload %s", hello.Data)
	}
	go conn.writePump(time.Duration(hd.HeartbeatInterval) * time.Millisecond)

	if sessionID != "" {
		err = conn.sendPayload(GatewayPayload{Op: OpResume, Data: mustMarshal(ResumeData{
			Token:     c.opts.Token,
			SessionID: sessionID,
			Sequence:  c.seq.Load(),
		})})
	} else {
		c.seq.Store(0)
		err = conn.sendPayload(GatewayPayload{Op: OpIdentify, Data: mustMarshal(IdentifyData{
			Token:   c.opts.Token,
			Intents: c.opts.Intents,
			Properties: IdentifyProperties{
				OS:      runtime.GOOS,
				Browser: "memetracker",
				Device:  "memetracker",
			},
		})})
	}
	if err != nil {
		return false, err
	}

	for {
		p, err := conn.readPayload()
		if err != nil {
			return established, c.classifyClose(err)
		}

		switch p.Op {
		case OpDispatch:
			if c.dispatch(ctx, p) {
				established = true
			}
		case OpHeartbeat:
			if err := conn.heartbeat(); err != nil {
				return established, err
			}
		case OpHeartbeatAck:
			conn.acked.Store(true)
		case OpReconnect:
			return established, errReconnect
		case OpInvalidSession:
			var resumable bool
			_ = json.Unmarshal(p.Data, &resumable)
			if !resumable {
				c.clearSession()
			}
			return established, errInvalidSession
		}
	}
}

// dispatch handles one Op 0 payload and reports whether it established the
// session.
func (c *Client) dispatch(ctx context.Context, p GatewayPayload) bool {
	if p.Event == nil {
		return false
	}

	switch *p.Event {
	case EventReady:
		var r ReadyData
		if err := json.Unmarshal(p.Data, &r); err != nil {
			slog.Warn("dropping undecodable READY", "error", err)
			return false
		}
		c.mu.Lock()
		c.sessionID = r.SessionID
		c.resumeURL = r.ResumeGatewayURL
		c.mu.Unlock()
		c.selfID.Store(r.User.ID.Int64())
		slog.Info("gateway session ready", "user", r.User.Username, "user_id", r.User.ID.String())
		if c.opts.OnReady != nil {
			c.opts.OnReady(r.User.ID)
		}
		return true

	case EventResumed:
		slog.Info("gateway session resumed", "seq", c.seq.Load())
		return true

	case EventGuildCreate:
		var g GuildCreateData
		if err := json.Unmarshal(p.Data, &g); err != nil {
			slog.Warn("dropping undecodable GUILD_CREATE", "error", err)
			return false
		}
		for _, ch := range g.Channels {
			c.channels.put(ch)
		}
		for _, ch := range g.Threads {
			c.channels.put(ch)
		}
		slog.Debug("guild channels cached", "guild_id", g.ID.String(), "channels", len(g.Channels), "cached", c.channels.len())

	case EventChannelCreate, EventChannelUpdate, EventThreadCreate, EventThreadUpdate:
		var ch Channel
		if err := json.Unmarshal(p.Data, &ch); err != nil {
			slog.Warn("dropping undecodable channel event", "event", *p.Event, "error", err)
			return false
		}
		c.channels.put(ch)

	case EventChannelDelete:
		var ch Channel
		if err := json.Unmarshal(p.Data, &ch); err == nil {
			c.channels.remove(ch.ID)
		}

	case EventMessageCreate:
		var m messageCreateData
		if err := json.Unmarshal(p.Data, &m); err != nil {
			slog.Warn("dropping undecodable MESSAGE_CREATE", "error", err)
			return false
		}
		if c.handler != nil {
			c.handler(ctx, MessageCreate{
				ID:          m.ID,
				ChannelID:   m.ChannelID,
				GuildID:     m.GuildID,
				ChannelName: c.channels.name(m.ChannelID),
				AuthorID:    m.Author.ID,
				AuthorName:  m.authorName(),
				AuthorBot:   m.Author.Bot,
				Content:     m.Content,
			})
		}
	}
	return false
}

func (c *Client) dialTarget() (url, sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionID != "" && c.resumeURL != "" {
		return withGatewayQuery(c.resumeURL), c.sessionID
	}
	return c.opts.URL, c.sessionID
}

func (c *Client) resumable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID != ""
}

func (c *Client) clearSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = ""
	c.resumeURL = ""
}

// classifyClose turns fatal close codes into *FatalError and forgets the
// session for codes that make it unresumable.
func (c *Client) classifyClose(err error) error {
	var ce *websocket.CloseError
	if !errors.As(err, &ce) {
		return err
	}
	if reason, ok := fatalCloseCodes[ce.Code]; ok {
		return &FatalError{Code: ce.Code, Reason: reason}
	}
	switch ce.Code {
	case 4007, 4009:
		c.clearSession()
	}
	return err
}
