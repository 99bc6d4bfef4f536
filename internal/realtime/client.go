package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/davemarrero/learnhub-backend/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 32
)

// Client is one live websocket connection bound to an authenticated
// user. Reads and writes run on their own goroutines; the registry
// only ever touches the buffered send channel.
type Client struct {
	id     uuid.UUID
	userID uuid.UUID

	conn        *websocket.Conn
	send        chan []byte
	registry    *Registry
	enrollments EnrollmentChecker
	progress    ProgressSink
	logg        *logger.Logger
}

// NewClient wraps an upgraded connection.
func NewClient(conn *websocket.Conn, userID uuid.UUID, registry *Registry, enrollments EnrollmentChecker, progress ProgressSink, logg *logger.Logger) *Client {
	return &Client{
		id:          uuid.New(),
		userID:      userID,
		conn:        conn,
		send:        make(chan []byte, sendBufferSize),
		registry:    registry,
		enrollments: enrollments,
		progress:    progress,
		logg:        logg,
	}
}

// UserID returns the owning user.
func (c *Client) UserID() uuid.UUID {
	return c.userID
}

// trySend queues raw bytes without blocking. Returns false when the
// buffer is full or the channel is closed, marking the peer as dead.
func (c *Client) trySend(raw []byte) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case c.send <- raw:
		return true
	default:
		return false
	}
}

// closeWith sends an application close code before dropping the
// connection; the read pump then exits and unregisters as usual.
func (c *Client) closeWith(code int, reason string) {
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(writeWait),
	)
	_ = c.conn.Close()
}

// closeSlow tears down a connection pruned by the registry.
func (c *Client) closeSlow() {
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "send buffer overflow"),
		time.Now().Add(writeWait),
	)
	_ = c.conn.Close()
}

// Run registers the client and blocks pumping messages until the
// connection drops.
func (c *Client) Run(ctx context.Context) {
	c.registry.Register(c)
	go c.writePump()
	c.readPump(ctx)
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.registry.Unregister(c)
		close(c.send)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && c.logg != nil {
				c.logg.Warn(ctx, "realtime: unexpected close")
			}
			return
		}

		var msg InboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			if c.logg != nil {
				c.logg.Debug(ctx, "realtime: malformed message ignored")
			}
			continue
		}
		c.handleMessage(ctx, msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case raw, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(ctx context.Context, msg InboundMessage) {
	switch msg.Type {
	case MessageTypePing:
		c.reply(OutboundMessage{Type: MessageTypePong, Timestamp: time.Now().UTC().Format(time.RFC3339)})

	case MessageTypeSubscribeCourse:
		c.handleSubscribe(ctx, msg.CourseID)

	case MessageTypeUnsubscribeCourse:
		c.registry.UnsubscribeCourse(c, msg.CourseID)

	case MessageTypeProgressUpdate:
		c.handleProgress(ctx, msg)

	default:
		if c.logg != nil {
			c.logg.Debug(ctx, "realtime: unknown message type ignored")
		}
	}
}

func (c *Client) handleSubscribe(ctx context.Context, courseID uuid.UUID) {
	if courseID == uuid.Nil {
		return
	}
	enrolled, err := c.enrollments.IsEnrolled(ctx, c.userID, courseID)
	if err != nil {
		if c.logg != nil {
			c.logg.Error(c.logg.WithCourseID(ctx, courseID.String()), "realtime: enrollment check failed", err)
		}
		return
	}
	if !enrolled {
		c.closeWith(CloseCodeNotEnrolled, "not enrolled in course")
		return
	}
	c.registry.SubscribeCourse(c, courseID)
	c.reply(OutboundMessage{Type: MessageTypeSubscribed, CourseID: courseID})
}

func (c *Client) handleProgress(ctx context.Context, msg InboundMessage) {
	if msg.ContentID == uuid.Nil || msg.CourseID == uuid.Nil {
		return
	}
	// The sink fans progress_updated out to the course room, so this
	// connection hears the result through its subscription like every
	// other viewer.
	_, err := c.progress.Apply(ctx, ProgressUpdate{
		UserID:          c.userID,
		CourseID:        msg.CourseID,
		ContentID:       msg.ContentID,
		ProgressPercent: msg.ProgressPercent,
		PositionSeconds: msg.PositionSeconds,
	})
	if err != nil && c.logg != nil {
		c.logg.Error(c.logg.WithContentID(ctx, msg.ContentID.String()), "realtime: apply progress failed", err)
	}
}

func (c *Client) reply(msg OutboundMessage) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return
	}
	_ = c.trySend(raw)
}
