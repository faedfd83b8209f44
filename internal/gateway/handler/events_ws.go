package handler

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"crewsheet/internal/events"
)

const (
	eventsWSWriteWait = 10 * time.Second
	eventsWSPongWait  = 60 * time.Second
	eventsWSPingEvery = (eventsWSPongWait * 9) / 10
)

var eventsWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type eventsWSInbound struct {
	Type string `json:"type"`
}

type eventsWSOutbound struct {
	Type      string        `json:"type"`
	SessionID string        `json:"sessionId,omitempty"`
	Event     *events.Event `json:"event,omitempty"`
	Code      string        `json:"code,omitempty"`
	Message   string        `json:"message,omitempty"`
}

// HandleEventsWS replays the session's events after ?after= and then tails
// new ones until the session ends or the client goes away.
func (h *SessionHandler) HandleEventsWS(w http.ResponseWriter, r *http.Request) {
	o, ok := h.lookup(w, r)
	if !ok {
		return
	}
	after, err := afterParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := eventsWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(eventsWSPongWait)); err != nil {
		log.Printf("events ws set read deadline failed: %v", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(eventsWSPongWait))
	})

	backlog, live, unsubscribe := o.Events().Subscribe(after, 64)
	defer unsubscribe()

	writeCh := make(chan eventsWSOutbound, 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(eventsWSPingEvery)
		defer ticker.Stop()

		write := func(out eventsWSOutbound) bool {
			if err := conn.SetWriteDeadline(time.Now().Add(eventsWSWriteWait)); err != nil {
				return false
			}
			return conn.WriteJSON(out) == nil
		}

		if !write(eventsWSOutbound{Type: "subscribed", SessionID: o.SessionID()}) {
			return
		}
		for i := range backlog {
			if !write(eventsWSOutbound{Type: "event", SessionID: o.SessionID(), Event: &backlog[i]}) {
				return
			}
		}
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-live:
				if !ok {
					write(eventsWSOutbound{Type: "closed", SessionID: o.SessionID()})
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"),
						time.Now().Add(eventsWSWriteWait))
					return
				}
				if !write(eventsWSOutbound{Type: "event", SessionID: o.SessionID(), Event: &ev}) {
					return
				}
			case out := <-writeCh:
				if !write(out) {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(eventsWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// The read loop only serves client pings and notices disconnects.
	go func() {
		defer cancel()
		for {
			var in eventsWSInbound
			if err := conn.ReadJSON(&in); err != nil {
				return
			}
			switch strings.ToLower(strings.TrimSpace(in.Type)) {
			case "ping":
				pushEventsWS(writeCh, eventsWSOutbound{Type: "pong"})
			default:
				pushEventsWS(writeCh, eventsWSOutbound{
					Type:    "error",
					Code:    "invalid_argument",
					Message: "unsupported type: " + in.Type,
				})
			}
		}
	}()

	<-writerDone
}

func pushEventsWS(writeCh chan eventsWSOutbound, out eventsWSOutbound) {
	select {
	case writeCh <- out:
		return
	default:
	}
	select {
	case <-writeCh:
	default:
	}
	select {
	case writeCh <- out:
	default:
	}
}
