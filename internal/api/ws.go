package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/parlando-ai/parlando/internal/app"
)

// clientCommand is a control message from the browser. Binary frames on
// the same connection carry microphone PCM16 audio.
type clientCommand struct {
	Type   string `json:"type"`
	UserID string `json:"user_id,omitempty"`
}

// handleWebSocket runs one learner connection: start_session/stop_session
// control messages and microphone audio inbound, the session's update
// stream outbound. A connection that drops mid-session has its session
// ended and persisted.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Warn("websocket accept", "err", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "session terminated")

	ctx := r.Context()
	var (
		rt         *app.Runtime
		stopStream context.CancelFunc
	)
	defer func() {
		if rt != nil {
			stopStream()
			if _, err := s.manager.EndSession(context.Background(), rt.ID()); err != nil {
				slog.Warn("end session on disconnect", "session_id", rt.ID(), "err", err)
			}
		}
	}()

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				slog.Debug("websocket read", "err", err)
			}
			return
		}

		switch typ {
		case websocket.MessageBinary:
			if rt == nil {
				continue
			}
			if err := rt.SendAudio(data); err != nil {
				slog.Warn("forward audio", "session_id", rt.ID(), "err", err)
			}

		case websocket.MessageText:
			var cmd clientCommand
			if err := json.Unmarshal(data, &cmd); err != nil {
				s.writeControlError(ctx, conn, "invalid command")
				continue
			}

			switch cmd.Type {
			case "start_session":
				if rt != nil {
					s.writeControlError(ctx, conn, "session already active")
					continue
				}
				rt, err = s.manager.StartSession(ctx, cmd.UserID)
				if err != nil {
					slog.Error("start session over websocket", "err", err)
					s.writeControlError(ctx, conn, "could not start session")
					continue
				}
				var streamCtx context.Context
				streamCtx, stopStream = context.WithCancel(ctx)
				go streamUpdates(streamCtx, conn, rt)
				s.write(ctx, conn, app.StateUpdate{
					Type: "session_state", Status: "active", SessionID: rt.ID(),
				})

			case "stop_session":
				if rt == nil {
					s.writeControlError(ctx, conn, "no active session")
					continue
				}
				stopStream()
				summary, err := s.manager.EndSession(ctx, rt.ID())
				id := rt.ID()
				rt = nil
				if err != nil {
					slog.Error("stop session over websocket", "session_id", id, "err", err)
					s.writeControlError(ctx, conn, "could not stop session")
					continue
				}
				s.write(ctx, conn, feedbackFrom(summary))
				s.write(ctx, conn, app.StateUpdate{
					Type: "session_state", Status: "stopped", SessionID: id,
				})

			default:
				slog.Debug("unknown websocket command", "command", cmd.Type)
			}
		}
	}
}

// streamUpdates copies the runtime's update stream onto the connection
// until the session or the connection ends.
func streamUpdates(ctx context.Context, conn *websocket.Conn, rt *app.Runtime) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-rt.Updates():
			if !ok {
				return
			}
			if err := wsjson.Write(ctx, conn, u); err != nil {
				slog.Debug("websocket write", "session_id", rt.ID(), "err", err)
				return
			}
		}
	}
}

func (s *Server) write(ctx context.Context, conn *websocket.Conn, v any) {
	if err := wsjson.Write(ctx, conn, v); err != nil {
		slog.Debug("websocket write", "err", err)
	}
}

func (s *Server) writeControlError(ctx context.Context, conn *websocket.Conn, msg string) {
	s.write(ctx, conn, map[string]string{"type": "error", "error": msg})
}
