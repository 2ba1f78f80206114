package ingress

import (
	"context"
	"encoding/json"

	"github.com/coder/websocket"
	echo "github.com/labstack/echo/v5"

	"github.com/codewatch-ai/revbot/pkg/events"
)

// terminalWSHandler handles GET /ws/terminal/{session_id}: streams that
// session's terminal_* events and accepts the client control messages of
// spec §6 (ping, list_sessions, start_session, terminate_session,
// get_status).
func (s *Server) terminalWSHandler(c *echo.Context) error {
	return s.streamTerminal(c, c.Param("session_id"))
}

// terminalAllWSHandler handles GET /ws/terminal/all: streams every
// session's output via the all_terminals sentinel topic. Control messages
// must carry an explicit session_id.
func (s *Server) terminalAllWSHandler(c *echo.Context) error {
	return s.streamTerminal(c, "")
}

func (s *Server) streamTerminal(c *echo.Context, defaultSessionID string) error {
	topic := defaultSessionID
	if topic == "" {
		topic = events.AllTerminalsTopic
	}

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
	go pumpEvents(ctx, conn, sub)
	defer func() {
		sub.Close()
		if defaultSessionID != "" {
			s.terminals.OnLastSubscriberDisconnect(defaultSessionID)
		}
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return nil
		}

		var msg events.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		sessionID := msg.SessionID
		if sessionID == "" {
			sessionID = defaultSessionID
		}

		reply := s.handleTerminalMessage(msg, sessionID)
		if reply == nil {
			continue
		}
		if err := writeJSON(ctx, conn, reply); err != nil {
			return nil
		}
	}
}

func (s *Server) handleTerminalMessage(msg events.ClientMessage, sessionID string) map[string]any {
	switch msg.Action {
	case "ping":
		return map[string]any{"type": "pong"}

	case "list_sessions":
		return map[string]any{"type": "session_list", "sessions": s.terminals.ListSessions()}

	case "start_session":
		if sessionID == "" || msg.Command == "" {
			return map[string]any{"type": "error", "message": "session_id and command are required"}
		}
		if err := s.terminals.Start(sessionID, msg.Command, msg.Cwd); err != nil {
			return map[string]any{"type": "error", "message": err.Error()}
		}
		return map[string]any{"type": "ack", "session_id": sessionID, "status": "started"}

	case "terminate_session":
		if sessionID == "" {
			return map[string]any{"type": "error", "message": "session_id is required"}
		}
		if err := s.terminals.Terminate(sessionID); err != nil {
			return map[string]any{"type": "error", "message": err.Error()}
		}
		return map[string]any{"type": "ack", "session_id": sessionID, "status": "terminating"}

	case "get_status":
		if sessionID == "" {
			return map[string]any{"type": "error", "message": "session_id is required"}
		}
		status, err := s.terminals.Status(sessionID)
		if err != nil {
			return map[string]any{"type": "error", "message": err.Error()}
		}
		return map[string]any{"type": "status", "session": status}

	default:
		return nil
	}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
