package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/domain"
)

type WSHandler struct {
	service          *app.QuizService
	log              logrus.FieldLogger
	completionMaxAge time.Duration
	upgrader         websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, log logrus.FieldLogger, completionMaxAge time.Duration) *WSHandler {
	return &WSHandler{
		service:          service,
		log:              log,
		completionMaxAge: completionMaxAge,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Answer string `json:"answer"`
}

type submitPayload struct {
	Name string `json:"name"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// ServeWS upgrades HTTP requests to websockets and plays one session over the socket.
// Inbound: answer, restart, submit. Outbound: state, answerResult, submitted, error.
// The socket cannot set cookies; clients fetch GET /api/session after completion to store the completion cookie.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	scope, err := h.service.ResolveScope(r.URL.Query().Get("day"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var prior *domain.CompletionRecord
	if record, ok := app.NewCompletionStore(newCookieStore(w, r), h.completionMaxAge).Load(); ok {
		prior = &record
	}

	// Cookies minted by the identity middleware ride on the upgrade response.
	conn, err := h.upgrader.Upgrade(w, r, w.Header())
	if err != nil {
		h.log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	log := h.log.WithField("identity", identity)
	ctx := r.Context()

	if _, err := h.service.Start(ctx, identity, scope, prior); err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	updates, cancel, err := h.service.Subscribe(ctx, identity)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()
	defer h.abandonIfUnfinished(identity)

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Single writer goroutine; gorilla connections allow one concurrent writer.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.WithError(err).Debug("ws write failed")
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case view, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "state", Payload: view}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if msg, ok := h.handle(ctx, identity, inbound); ok {
			send <- msg
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) handle(ctx context.Context, identity string, inbound inboundMessage) (outboundMessage[any], bool) {
	fail := func(msg string) (outboundMessage[any], bool) {
		return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}, true
	}

	switch inbound.Type {
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return fail("invalid answer payload")
		}
		result, err := h.service.Answer(ctx, identity, payload.Answer)
		if err != nil {
			return fail(err.Error())
		}
		return outboundMessage[any]{Type: "answerResult", Payload: result}, true
	case "restart":
		// The new state arrives through the subscription.
		if _, err := h.service.Restart(ctx, identity); err != nil {
			return fail(err.Error())
		}
		return outboundMessage[any]{}, false
	case "submit":
		var payload submitPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return fail("invalid submit payload")
		}
		entry, err := h.service.SubmitScore(ctx, identity, payload.Name)
		if err != nil {
			return fail(err.Error())
		}
		return outboundMessage[any]{Type: "submitted", Payload: entry}, true
	default:
		return fail("unsupported message type")
	}
}

// abandonIfUnfinished drops an in-progress session when the socket closes.
// Finished sessions stay so the score can still be submitted over REST.
func (h *WSHandler) abandonIfUnfinished(identity string) {
	ctx := context.Background()
	view, err := h.service.Current(ctx, identity)
	if err != nil || view.Complete {
		return
	}
	h.service.Abandon(ctx, identity)
}
