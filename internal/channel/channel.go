// Package channel implements the duplex, reconnecting live channel between
// an assetforge process and its peer, with request buffering while
// disconnected.
//
// The connection state machine is Disconnected → Connecting → Open →
// Disconnected, retried indefinitely at a fixed interval. Fixed-interval
// retry is deliberate: a local development tool favors predictability over
// backoff sophistication. While Disconnected, outbound mutations land in a
// RequestBuffer and flush in FIFO order on the next Open transition.
package channel

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/assetforge/assetforge/internal/logging"
	"github.com/assetforge/assetforge/internal/protocol"
)

const writeTimeout = 10 * time.Second

// DefaultRetryInterval is the fixed delay between reconnect attempts.
const DefaultRetryInterval = 2 * time.Second

// Options tunes an EditorChannel.
type Options struct {
	// RetryInterval overrides DefaultRetryInterval.
	RetryInterval time.Duration
	// OnOpen runs on every fresh Open transition before the buffer flush,
	// so the first message on the wire can be a connection handshake.
	OnOpen func()
	Logger logging.Logger
}

// EditorChannel is the dialing side of the live channel: it connects to the
// peer's websocket endpoint, delivers inbound mutations to registered
// handlers, and buffers outbound mutations across disconnects.
type EditorChannel struct {
	url      string
	retry    time.Duration
	buffer   *RequestBuffer
	onOpen   func()
	logger   logging.Logger
	handlers []func(protocol.Mutation)

	mutex sync.Mutex
	conn  *websocket.Conn
}

// Dial prepares a channel toward url. No connection is attempted until
// Start.
func Dial(url string, opts *Options) *EditorChannel {
	c := &EditorChannel{
		url:    url,
		retry:  DefaultRetryInterval,
		buffer: NewRequestBuffer(),
		logger: logging.Nop(),
	}
	if opts != nil {
		if opts.RetryInterval > 0 {
			c.retry = opts.RetryInterval
		}
		if opts.Logger != nil {
			c.logger = opts.Logger.WithScope("channel")
		}
		c.onOpen = opts.OnOpen
	}
	return c
}

// OnMessage registers a handler for inbound mutations. Handlers also
// receive the synthetic EDITOR_DISCONNECTED event when the connection
// drops. Must be called before Start.
func (c *EditorChannel) OnMessage(handler func(protocol.Mutation)) {
	c.handlers = append(c.handlers, handler)
}

// Send delivers a mutation to the peer, or buffers it when disconnected.
// Buffered mutations are flushed in enqueue order on reconnect.
func (c *EditorChannel) Send(m protocol.Mutation) {
	c.mutex.Lock()
	conn := c.conn
	c.mutex.Unlock()

	if conn == nil {
		c.buffer.Enqueue(m)
		return
	}
	if err := c.write(conn, m); err != nil {
		c.logger.Warn(err, "write failed, buffering", "type", m.Type)
		c.buffer.Enqueue(m)
	}
}

// Buffered returns the number of mutations waiting for reconnection.
func (c *EditorChannel) Buffered() int {
	return c.buffer.Len()
}

// Start runs the connect loop until ctx is cancelled.
func (c *EditorChannel) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *EditorChannel) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := websocket.Dial(ctx, c.url, nil)
		if err != nil {
			c.logger.Debug("connect failed, retrying", "url", c.url, "retry", c.retry.String())
			if !sleep(ctx, c.retry) {
				return
			}
			continue
		}

		c.mutex.Lock()
		c.conn = conn
		c.mutex.Unlock()
		c.logger.Info("channel open", "url", c.url)

		if c.onOpen != nil {
			c.onOpen()
		}
		c.flush(conn)
		c.readLoop(ctx, conn)

		c.mutex.Lock()
		c.conn = nil
		c.mutex.Unlock()
		conn.Close(websocket.StatusNormalClosure, "")

		c.deliver(protocol.EditorDisconnected())
		c.logger.Info("channel closed, reconnecting", "retry", c.retry.String())

		if !sleep(ctx, c.retry) {
			return
		}
	}
}

// flush sends buffered mutations in FIFO order. On a write failure the
// unsent remainder re-enters the queue in order for the next connection.
func (c *EditorChannel) flush(conn *websocket.Conn) {
	pending := c.buffer.Drain()
	for i, m := range pending {
		if err := c.write(conn, m); err != nil {
			c.logger.Warn(err, "flush interrupted", "remaining", len(pending)-i)
			for _, rest := range pending[i:] {
				c.buffer.Enqueue(rest)
			}
			return
		}
	}
}

func (c *EditorChannel) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		m, err := protocol.Decode(data)
		if err != nil {
			c.logger.Warn(err, "dropping malformed message")
			continue
		}
		c.deliver(m)
	}
}

func (c *EditorChannel) deliver(m protocol.Mutation) {
	for _, handler := range c.handlers {
		handler(m)
	}
}

func (c *EditorChannel) write(conn *websocket.Conn, m protocol.Mutation) error {
	data, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}

// sleep waits for d or ctx cancellation, reporting whether to continue.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
