package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/dhrumilbhut/codevoice/internal/agent"
)

// wsAskMessage is the single request a client sends after connecting to
// /ws/assist.
type wsAskMessage struct {
	UserInput string `json:"user_input"`
	APIKey    string `json:"api_key"`
	Model     string `json:"model"`
}

// wsEventMessage frames loop events and the final result on the socket.
type wsEventMessage struct {
	Type   string       `json:"type"`
	Event  *agent.Event `json:"event,omitempty"`
	Result *wsResult    `json:"result,omitempty"`
	Error  string       `json:"error,omitempty"`
}

type wsResult struct {
	Response     string   `json:"response"`
	Category     string   `json:"category"`
	Steps        int      `json:"steps"`
	FilesWritten []string `json:"files_written"`
	Degraded     bool     `json:"degraded"`
}

// WSSink fans loop events out to the websocket connection of the session
// that started the run.
type WSSink struct {
	mu    sync.RWMutex
	conns map[string]chan agent.Event
}

// NewWSSink builds the event sink shared between the agent service and the
// websocket handler.
func NewWSSink() *WSSink {
	return &WSSink{conns: make(map[string]chan agent.Event)}
}

// OnEvent implements agent.EventSink. Slow consumers lose events rather
// than stalling the loop.
func (s *WSSink) OnEvent(sessionID string, ev agent.Event) {
	s.mu.RLock()
	ch, ok := s.conns[sessionID]
	s.mu.RUnlock()
	if !ok {
		return
	}
	select {
	case ch <- ev:
	default:
	}
}

func (s *WSSink) subscribe(sessionID string) chan agent.Event {
	ch := make(chan agent.Event, 64)
	s.mu.Lock()
	s.conns[sessionID] = ch
	s.mu.Unlock()
	return ch
}

func (s *WSSink) unsubscribe(sessionID string) {
	s.mu.Lock()
	delete(s.conns, sessionID)
	s.mu.Unlock()
}

// WSHandler serves the streaming variant of /api/ask.
type WSHandler struct {
	runner Runner
	sink   *WSSink
}

// NewWSHandler creates the websocket handler around a shared sink.
func NewWSHandler(runner Runner, sink *WSSink) *WSHandler {
	return &WSHandler{runner: runner, sink: sink}
}

// HandleAssist handles GET /ws/assist. The client sends one ask message and
// receives loop events as they happen, terminated by a result or error
// frame.
func (h *WSHandler) HandleAssist(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Warn("WebSocket accept failed", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "run finished"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	ctx := r.Context()

	var msg wsAskMessage
	if err := wsjson.Read(ctx, ws, &msg); err != nil {
		slog.Debug("WebSocket read failed", "error", err)
		return
	}

	apiKey := strings.TrimSpace(msg.APIKey)
	if apiKey == "" || !validAPIKeyFormat(apiKey) {
		h.writeFrame(ctx, ws, wsEventMessage{Type: "error", Error: "a valid API key is required"})
		return
	}
	if strings.TrimSpace(msg.UserInput) == "" {
		h.writeFrame(ctx, ws, wsEventMessage{Type: "error", Error: "user_input is required"})
		return
	}

	sessionID := uuid.NewString()
	events := h.sink.subscribe(sessionID)
	defer h.sink.unsubscribe(sessionID)

	runDone := make(chan struct{})
	var result agent.RunResult
	var runErr error
	go func() {
		defer close(runDone)
		result, runErr = h.runner.Run(ctx, agent.RunRequest{
			SessionID: sessionID,
			Utterance: msg.UserInput,
			APIKey:    apiKey,
			Model:     msg.Model,
		})
	}()

	for {
		select {
		case <-ctx.Done():
			<-runDone
			return
		case ev := <-events:
			event := ev
			h.writeFrame(ctx, ws, wsEventMessage{Type: "event", Event: &event})
		case <-runDone:
			// Drain events published before the run finished.
			for {
				select {
				case ev := <-events:
					event := ev
					h.writeFrame(ctx, ws, wsEventMessage{Type: "event", Event: &event})
					continue
				default:
				}
				break
			}
			if runErr != nil {
				h.writeFrame(ctx, ws, wsEventMessage{Type: "error", Error: runErr.Error()})
				return
			}
			h.writeFrame(ctx, ws, wsEventMessage{Type: "result", Result: &wsResult{
				Response:     result.Answer,
				Category:     result.Category,
				Steps:        result.Steps,
				FilesWritten: result.FilesWritten,
				Degraded:     result.Degraded,
			}})
			return
		}
	}
}

func (h *WSHandler) writeFrame(ctx context.Context, ws *websocket.Conn, frame wsEventMessage) {
	data, err := json.Marshal(frame)
	if err != nil {
		slog.Warn("Failed to marshal websocket frame", "error", err)
		return
	}
	if err := ws.Write(ctx, websocket.MessageText, data); err != nil {
		slog.Debug("Failed to write websocket frame", "error", err)
	}
}
