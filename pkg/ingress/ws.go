package ingress

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	echo "github.com/labstack/echo/v5"

	"github.com/codewatch-ai/revbot/pkg/events"
)

const wsWriteTimeout = 10 * time.Second

// eventWSHandler handles GET /ws/{pipeline_id}: streams that pipeline's bus
// events to the client. Any client message is echoed back with
// {type: "ack", ...} (spec §6).
func (s *Server) eventWSHandler(c *echo.Context) error {
	return s.streamEvents(c, c.Param("pipeline_id"))
}

// eventAllWSHandler handles GET /ws/all: streams the all_pipelines sentinel
// topic, observing every pipeline at once.
func (s *Server) eventAllWSHandler(c *echo.Context) error {
	return s.streamEvents(c, events.AllPipelinesTopic)
}

func (s *Server) streamEvents(c *echo.Context, topic string) error {
	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	sub := s.bus.Subscribe(topic)
	defer sub.Close()

	go pumpEvents(ctx, conn, sub)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return nil
		}

		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		msg["type"] = "ack"
		ack, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		writeCtx, writeCancel := context.WithTimeout(ctx, wsWriteTimeout)
		err = conn.Write(writeCtx, websocket.MessageText, ack)
		writeCancel()
		if err != nil {
			return nil
		}
	}
}

func pumpEvents(ctx context.Context, conn *websocket.Conn, sub *events.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err = conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				slog.Debug("event ws write failed, closing stream", "topic", sub.Topic(), "error", err)
				return
			}
		}
	}
}
