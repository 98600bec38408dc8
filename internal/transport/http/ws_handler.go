package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"dailyquiz-service/internal/app"
	"dailyquiz-service/internal/domain"
)

type WSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService) *WSHandler {
	return &WSHandler{
		service: service,
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

type startPayload struct {
	Resume bool `json:"resume"`
}

type answerPayload struct {
	Option string `json:"option"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type finishedPayload struct {
	Result domain.ResultView `json:"result"`
	Badge  domain.Badge      `json:"badge"`
}

type historyPayload struct {
	Attempts []domain.QuizAttempt `json:"attempts"`
	Week     [7]domain.Medal      `json:"weeklyProgress"`
	Streak   int                  `json:"streak"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the daily
// quiz session flow. One client drives one session: start/answer/next/exit/
// unlockMega inbound, state snapshots and results outbound.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("name")
	if username == "" {
		http.Error(w, "missing name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	var updatesWG sync.WaitGroup
	var cancelUpdates func()

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	sendErr := func(code string, err error) {
		send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Code: code, Message: err.Error()}}
	}

	avail, err := h.service.Availability(r.Context())
	if err != nil {
		sendErr("availability", err)
	} else {
		send <- outboundMessage[any]{Type: "availability", Payload: avail}
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "start":
			var payload startPayload
			if len(inbound.Payload) > 0 {
				if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
					sendErr("badPayload", errors.New("invalid start payload"))
					continue
				}
			}
			if _, err := h.service.Start(r.Context(), payload.Resume); err != nil {
				sendErr(startErrorCode(err), err)
				continue
			}
			updates, cancel, err := h.service.Subscribe(r.Context())
			if err != nil {
				sendErr("subscribe", err)
				continue
			}
			if cancelUpdates != nil {
				cancelUpdates()
				updatesWG.Wait()
			}
			cancelUpdates = cancel
			updatesWG.Add(1)
			go h.forwardUpdates(&updatesWG, username, updates, send, closeSignals)

		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				sendErr("badPayload", errors.New("invalid answer payload"))
				continue
			}
			if err := h.service.SelectAnswer(r.Context(), payload.Option); err != nil {
				sendErr("answer", err)
			}

		case "next":
			if _, _, err := h.service.Advance(r.Context()); err != nil {
				sendErr("next", err)
			}

		case "exit":
			if err := h.service.Exit(r.Context()); err != nil {
				sendErr("exit", err)
			}

		case "unlockMega":
			if err := h.service.UnlockMega(r.Context()); err != nil {
				sendErr("unlockMega", err)
			}

		case "results":
			view, err := h.service.Results(r.Context())
			if err != nil {
				sendErr("results", err)
				continue
			}
			send <- outboundMessage[any]{Type: "result", Payload: view}

		case "history":
			attempts, week, streak, err := h.service.History(r.Context())
			if err != nil {
				sendErr("history", err)
				continue
			}
			send <- outboundMessage[any]{Type: "history", Payload: historyPayload{
				Attempts: attempts,
				Week:     week,
				Streak:   streak,
			}}

		default:
			sendErr("unsupported", errors.New("unsupported message type"))
		}
	}

	close(closeSignals)
	if cancelUpdates != nil {
		cancelUpdates()
	}
	updatesWG.Wait()
	close(send)
	<-writerDone
}

// forwardUpdates streams session snapshots to the client and, on the
// transition into finished, composes the results view and badge.
func (h *WSHandler) forwardUpdates(wg *sync.WaitGroup, username string, updates <-chan app.Snapshot, send chan<- outboundMessage[any], closeSignals <-chan struct{}) {
	defer wg.Done()
	lastState := app.StateNotStarted
	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				return
			}
			select {
			case send <- outboundMessage[any]{Type: "state", Payload: snap}:
			case <-closeSignals:
				return
			}
			if snap.State == app.StateFinished && lastState != app.StateFinished {
				view, err := h.service.Results(context.Background())
				if err != nil {
					log.Printf("compose results: %v", err)
				} else {
					badge := h.service.Badge(context.Background(), view.Medal, username)
					select {
					case send <- outboundMessage[any]{Type: "finished", Payload: finishedPayload{Result: view, Badge: badge}}:
					case <-closeSignals:
						return
					}
				}
			}
			lastState = snap.State
		case <-closeSignals:
			return
		}
	}
}

func startErrorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrNoQuizToday):
		return "noQuizToday"
	case errors.Is(err, domain.ErrNoSavedProgress):
		return "noSavedProgress"
	}
	return "start"
}
