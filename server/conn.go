package server

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vcnkl/coalesce/capture"
	"github.com/vcnkl/coalesce/logger"
	"github.com/vcnkl/coalesce/models"
)

// connection is owned by the handler goroutine; every write to conn happens
// on that goroutine.
type connection struct {
	server  *Server
	conn    *websocket.Conn
	session *capture.Session
	framer  *capture.Framer
	closed  bool
}

func (c *connection) serve() {
	defer c.conn.Close()

	log := c.server.log.With(logger.String("session", c.session.ID()))
	log.Info("session opened", logger.String("remote", c.conn.RemoteAddr().String()))

	framer, err := capture.NewFramer(c.session.Format())
	if err != nil {
		log.Error("failed to create framer", logger.Err(err))
		return
	}
	c.framer = framer

	c.send(Event{Type: TypeSession, Session: c.session.ID()})

	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			c.closed = true
			c.finish(log, err)
			return
		}

		switch mt {
		case websocket.BinaryMessage:
			err = c.session.Write(c.framer.Write(data))
		case websocket.TextMessage:
			err = c.control(data)
		}
		if err != nil {
			log.Error("session failed", logger.Err(err))
			c.session.Abort()
			c.send(Event{Type: TypeError, Session: c.session.ID(), Error: err.Error()})
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "session failed"),
				time.Now().Add(time.Second))
			return
		}
	}
}

// finish ends the session after the read loop stops. A clean close by the
// client or a server shutdown flushes the trailing slice; anything else
// aborts it.
func (c *connection) finish(log logger.Logger, readErr error) {
	clean := websocket.IsCloseError(readErr, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
		c.server.closing.Load()

	if !clean {
		log.Warn("connection lost", logger.Err(readErr))
		c.session.Abort()
	} else if err := c.session.Close(); err != nil {
		log.Error("failed to store trailing slice", logger.Err(err))
	}

	res := c.session.Result()
	log.Info("session closed",
		logger.Int("slices", res.Slices),
		logger.Int64("frames", res.Frames),
		logger.Bool("aborted", res.Aborted))
}

func (c *connection) control(data []byte) error {
	var msg Control
	if err := json.Unmarshal(data, &msg); err != nil {
		c.send(Event{Type: TypeError, Error: "invalid control message"})
		return nil
	}

	switch msg.Type {
	case TypeFlush:
		return c.session.Flush()
	case TypeReset:
		c.session.Reset()
	case TypeTimeSlice:
		if msg.MS < 0 {
			c.send(Event{Type: TypeError, Error: "time_slice must not be negative"})
			return nil
		}
		c.session.SetTimeSlice(time.Duration(msg.MS) * time.Millisecond)
	default:
		c.send(Event{Type: TypeError, Error: fmt.Sprintf("unknown control type %q", msg.Type)})
	}
	return nil
}

// store persists the slice and acknowledges it to the client.
func (c *connection) store(slice *models.Slice) error {
	if err := storeSlice(c.server.opts.Sink, slice); err != nil {
		return err
	}
	c.send(Event{
		Type:      TypeSlice,
		Session:   slice.SessionID,
		Index:     slice.Index,
		Frames:    slice.Frames(),
		ElapsedMs: slice.Elapsed.Milliseconds(),
	})
	return nil
}

func (c *connection) send(ev Event) {
	if c.closed {
		return
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteJSON(ev); err != nil {
		c.closed = true
		c.server.log.Debug("failed to send event", logger.String("type", ev.Type), logger.Err(err))
	}
}

func storeSlice(sink capture.Sink, slice *models.Slice) error {
	if sink == nil {
		return nil
	}
	return sink.Store(slice)
}
