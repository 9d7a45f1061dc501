// Package livechannel is the persistent command/push connection to the bot
// backend: a Socket.IO v4 client on the Engine.IO v4 websocket transport.
//
// A Channel is owned by exactly one consumer. Events are delivered on a
// single channel in the order the server sent them. After an unexpected
// drop the transport redials with exponential backoff and emits a
// KindReconnected marker; it never replays missed state.
package livechannel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	neturl "net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/membit-bot/botctl/internal/buildinfo"
)

const (
	socketPath = "/socket.io/"

	defaultCommandRate          = 2
	defaultCommandBurst         = 3
	defaultMaxReconnectInterval = 30 * time.Second
	defaultHandshakeTimeout     = 10 * time.Second
	defaultPingWindow           = 45 * time.Second
	eventBuffer                 = 256
)

var (
	// ErrThrottled is returned by Emit when commands arrive faster than the
	// configured rate.
	ErrThrottled = errors.New("command throttled")
	// ErrNotConnected is returned by Emit while the transport is reconnecting.
	ErrNotConnected = errors.New("live channel is not connected")
	// ErrClosed is returned by Emit after Close.
	ErrClosed = errors.New("live channel is closed")
)

// RejectedError is returned when the server refuses the namespace connect.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string {
	return "live channel rejected: " + e.Message
}

// Options configures a Channel.
type Options struct {
	// BaseURL is the backend's HTTP base URL.
	BaseURL string
	// Cookies authenticate the websocket handshake.
	Cookies []*http.Cookie

	// CommandRate and CommandBurst bound outbound commands.
	CommandRate  rate.Limit
	CommandBurst int

	// MaxReconnectInterval caps the backoff between redials.
	MaxReconnectInterval time.Duration

	Dialer *websocket.Dialer
	Logger *slog.Logger
}

func (o *Options) setDefaults() {
	if o.CommandRate <= 0 {
		o.CommandRate = defaultCommandRate
	}

	if o.CommandBurst <= 0 {
		o.CommandBurst = defaultCommandBurst
	}

	if o.MaxReconnectInterval <= 0 {
		o.MaxReconnectInterval = defaultMaxReconnectInterval
	}

	if o.Dialer == nil {
		d := *websocket.DefaultDialer
		d.HandshakeTimeout = defaultHandshakeTimeout
		o.Dialer = &d
	}

	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
}

// link is one established connection. early holds event payloads the
// server sent before acknowledging the namespace connect; python-socketio
// runs its connect handler, which emits the status snapshot and log replay,
// before the ack.
type link struct {
	conn  *websocket.Conn
	open  openPacket
	early [][]byte
}

// Channel is one live connection to the backend.
type Channel struct {
	id      string
	opts    Options
	url     string
	header  http.Header
	limiter *rate.Limiter
	logger  *slog.Logger

	events chan Event

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	// writeMu serialises writes; gorilla allows one concurrent writer.
	writeMu sync.Mutex
}

// Dial opens the channel and completes the Engine.IO and Socket.IO
// handshakes. ctx bounds the initial connect only.
func Dial(ctx context.Context, opts Options) (*Channel, error) {
	opts.setDefaults()

	wsURL, err := socketURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())

	c := &Channel{
		id:      uuid.NewString(),
		opts:    opts,
		url:     wsURL,
		header:  handshakeHeader(opts.Cookies),
		limiter: rate.NewLimiter(opts.CommandRate, opts.CommandBurst),
		events:  make(chan Event, eventBuffer),
		ctx:     runCtx,
		cancel:  cancel,
	}
	c.logger = opts.Logger.With(slog.String("component", "livechannel"), slog.String("channel.id", c.id))

	l, err := c.connect(ctx)
	if err != nil {
		cancel()
		return nil, err
	}

	c.setConn(l.conn)

	c.wg.Add(1)
	go c.run(l)

	return c, nil
}

// ID returns the local identifier used in logs.
func (c *Channel) ID() string {
	return c.id
}

// Events returns the inbound event stream. It is closed when the channel
// ends, either through Close or a server-initiated disconnect.
func (c *Channel) Events() <-chan Event {
	return c.events
}

// Emit sends cmd without waiting for any acknowledgement. Commands are
// never retried.
func (c *Channel) Emit(cmd Command) error {
	if !cmd.Valid() {
		return fmt.Errorf("unknown command %q", cmd)
	}

	c.mu.Lock()
	conn, closed := c.conn, c.closed
	c.mu.Unlock()

	if closed {
		return ErrClosed
	}

	if conn == nil {
		return ErrNotConnected
	}

	if !c.limiter.Allow() {
		return ErrThrottled
	}

	msg, err := encodeEvent(string(cmd))
	if err != nil {
		return err
	}

	if err := c.write(conn, msg); err != nil {
		return fmt.Errorf("emit %s: %w", cmd, err)
	}

	c.logger.Debug("command emitted", slog.String("command", string(cmd)))

	return nil
}

// Close tears the connection down. It is safe to call more than once, and
// no events are delivered after it returns.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}

	c.closed = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	c.cancel()

	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		_ = conn.Close()
	}

	c.wg.Wait()

	// Discard anything buffered before shutdown.
	for range c.events {
	}

	return nil
}

func (c *Channel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}

func (c *Channel) setConn(conn *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	c.conn = conn

	return true
}

func (c *Channel) clearConn(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == conn {
		c.conn = nil
	}
}

func (c *Channel) write(conn *websocket.Conn, msg []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(defaultHandshakeTimeout))

	return conn.WriteMessage(websocket.TextMessage, msg)
}

// run owns the read side for the channel's lifetime.
func (c *Channel) run(l link) {
	defer c.wg.Done()
	defer close(c.events)

	for {
		for _, payload := range l.early {
			if !c.handleEvent(payload, true) {
				c.clearConn(l.conn)
				_ = l.conn.Close()

				return
			}
		}

		serverClosed := c.readLoop(l.conn, l.open)
		c.clearConn(l.conn)
		_ = l.conn.Close()

		if c.isClosed() {
			return
		}

		if serverClosed {
			c.logger.Info("server closed live channel")
			return
		}

		var ok bool

		l, ok = c.reconnect()
		if !ok {
			return
		}

		if !c.deliver(Event{Kind: KindReconnected}) {
			return
		}
	}
}

// readLoop reads until the connection fails. It reports true when the
// server ended the session deliberately.
func (c *Channel) readLoop(conn *websocket.Conn, open openPacket) bool {
	window := pingWindow(open)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(window))

		_, data, err := conn.ReadMessage()
		if err != nil {
			if !c.isClosed() {
				c.logger.Warn("live channel read failed", slog.String("error", err.Error()))
			}

			return false
		}

		f, err := parseFrame(data)
		if err != nil {
			c.logger.Warn("dropping malformed frame", slog.String("error", err.Error()))
			continue
		}

		switch f.engine {
		case enginePing:
			if err := c.write(conn, []byte{enginePong}); err != nil {
				c.logger.Warn("pong failed", slog.String("error", err.Error()))
				return false
			}
		case engineClose:
			return true
		case engineMessage:
			switch f.socket {
			case socketEvent:
				if !c.handleEvent(f.payload, false) {
					return false
				}
			case socketDisconnect:
				return true
			case socketConnectError:
				c.logger.Warn("live channel connect error", slog.String("message", connectErrorMessage(f.payload)))
				return true
			}
		}
	}
}

// handleEvent decodes and delivers one event. It returns false when the
// channel is shutting down.
func (c *Channel) handleEvent(payload []byte, replayed bool) bool {
	name, arg, err := decodeEventPayload(payload)
	if err != nil {
		c.logger.Warn("dropping malformed event", slog.String("error", err.Error()))
		return true
	}

	ev, err := decodeEvent(name, arg)
	if err != nil {
		var unknown errUnknownEvent
		if errors.As(err, &unknown) {
			c.logger.Debug("ignoring event", slog.String("event", name))
		} else {
			c.logger.Warn("dropping malformed event", slog.String("event", name), slog.String("error", err.Error()))
		}

		return true
	}

	ev.Replayed = replayed

	return c.deliver(ev)
}

func (c *Channel) deliver(ev Event) bool {
	select {
	case <-c.ctx.Done():
		return false
	default:
	}

	select {
	case c.events <- ev:
		return true
	case <-c.ctx.Done():
		return false
	}
}

func (c *Channel) reconnect() (link, bool) {
	b := backoff.NewExponentialBackOff()
	b.MaxInterval = c.opts.MaxReconnectInterval
	b.InitialInterval = min(b.InitialInterval, b.MaxInterval)
	b.Reset()

	for attempt := 1; ; attempt++ {
		wait := b.NextBackOff()
		if wait == backoff.Stop {
			wait = c.opts.MaxReconnectInterval
		}

		c.logger.Info("reconnecting live channel", slog.Int("attempt", attempt), slog.Duration("wait", wait))

		timer := time.NewTimer(wait)
		select {
		case <-c.ctx.Done():
			timer.Stop()
			return link{}, false
		case <-timer.C:
		}

		l, err := c.connect(c.ctx)
		if err != nil {
			var rejected *RejectedError
			if errors.As(err, &rejected) {
				c.logger.Warn("live channel reconnect rejected", slog.String("message", rejected.Message))
				return link{}, false
			}

			c.logger.Debug("reconnect attempt failed", slog.Int("attempt", attempt), slog.String("error", err.Error()))

			continue
		}

		if !c.setConn(l.conn) {
			_ = l.conn.Close()
			return link{}, false
		}

		c.logger.Info("live channel reconnected", slog.Int("attempt", attempt))

		return l, true
	}
}

// connect dials and performs both handshakes.
func (c *Channel) connect(ctx context.Context) (link, error) {
	conn, resp, err := c.opts.Dialer.DialContext(ctx, c.url, c.header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	if err != nil {
		return link{}, fmt.Errorf("dial live channel: %w", err)
	}

	l, err := c.handshake(ctx, conn)
	if err != nil {
		_ = conn.Close()
		return link{}, err
	}

	c.logger.Debug("live channel connected", slog.String("sid", l.open.SID), slog.Int("early_events", len(l.early)))

	return l, nil
}

func (c *Channel) handshake(ctx context.Context, conn *websocket.Conn) (link, error) {
	deadline := time.Now().Add(defaultHandshakeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	_ = conn.SetReadDeadline(deadline)

	l := link{conn: conn}

	_, data, err := conn.ReadMessage()
	if err != nil {
		return l, fmt.Errorf("read open packet: %w", err)
	}

	f, err := parseFrame(data)
	if err != nil || f.engine != engineOpen {
		return l, fmt.Errorf("unexpected handshake frame %q", truncate(data))
	}

	if err := json.Unmarshal(f.payload, &l.open); err != nil {
		return l, fmt.Errorf("decode open packet: %w", err)
	}

	if err := c.write(conn, []byte{engineMessage, socketConnect}); err != nil {
		return l, fmt.Errorf("send namespace connect: %w", err)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return l, fmt.Errorf("read namespace connect: %w", err)
		}

		f, err := parseFrame(data)
		if err != nil {
			continue
		}

		switch {
		case f.engine == enginePing:
			if err := c.write(conn, []byte{enginePong}); err != nil {
				return l, fmt.Errorf("pong during handshake: %w", err)
			}
		case f.engine == engineMessage && f.socket == socketConnect:
			return l, nil
		case f.engine == engineMessage && f.socket == socketEvent:
			l.early = append(l.early, f.payload)
		case f.engine == engineMessage && f.socket == socketConnectError:
			return l, &RejectedError{Message: connectErrorMessage(f.payload)}
		case f.engine == engineClose:
			return l, fmt.Errorf("server closed during handshake")
		}
	}
}

func pingWindow(open openPacket) time.Duration {
	if open.PingInterval <= 0 {
		return defaultPingWindow
	}

	return time.Duration(open.PingInterval+open.PingTimeout) * time.Millisecond
}

func socketURL(base string) (string, error) {
	u, err := neturl.Parse(strings.TrimRight(base, "/"))
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid backend URL %q", base)
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported backend URL scheme %q", u.Scheme)
	}

	u.Path = strings.TrimRight(u.Path, "/") + socketPath
	u.RawQuery = neturl.Values{"EIO": {"4"}, "transport": {"websocket"}}.Encode()

	return u.String(), nil
}

func handshakeHeader(cookies []*http.Cookie) http.Header {
	h := http.Header{}
	h.Set("User-Agent", buildinfo.UserAgent())

	if len(cookies) > 0 {
		parts := make([]string, 0, len(cookies))
		for _, ck := range cookies {
			parts = append(parts, ck.Name+"="+ck.Value)
		}

		h.Set("Cookie", strings.Join(parts, "; "))
	}

	return h
}

func truncate(b []byte) string {
	if len(b) > 64 {
		return string(b[:64]) + "..."
	}

	return string(b)
}
