package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var errHubFull = errors.New("telemetry hub: buffer full")

// Buzzer はAPIから鳴らすブザー
type Buzzer interface {
	Ring(tone int, duration time.Duration)
}

type nopBuzzer struct{}

func (nopBuzzer) Ring(int, time.Duration) {}

// TelemetryHub はWebSocketで接続しているクライアントにテレメトリを配る
type TelemetryHub struct {
	mu        sync.Mutex
	clients   map[*websocket.Conn]bool
	broadcast chan TelemetryRecord
	upgrader  websocket.Upgrader
}

func NewTelemetryHub() *TelemetryHub {
	return &TelemetryHub{
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan TelemetryRecord, 64),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Publish は制御ループを止めないよう、詰まっていたら捨てる
func (h *TelemetryHub) Publish(rec TelemetryRecord) error {
	if h.ClientCount() == 0 {
		return nil
	}
	select {
	case h.broadcast <- rec:
		return nil
	default:
		return errHubFull
	}
}

func (h *TelemetryHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Run はクライアントへの送信ループである
func (h *TelemetryHub) Run(done <-chan struct{}) {
	for {
		select {
		case <-done:
			h.mu.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		case rec := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				client.SetWriteDeadline(time.Now().Add(time.Second))
				if err := client.WriteJSON(rec); err != nil {
					log.Printf("[API] websocket write: %v", err)
					client.Close()
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *TelemetryHub) handleConnections(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[API] websocket upgrade: %v", err)
		return
	}
	log.Println("Telemetry stream connected by ", ws.RemoteAddr())

	h.mu.Lock()
	h.clients[ws] = true
	h.mu.Unlock()

	for {
		// クライアントからのメッセージは使わない
		if _, _, err := ws.ReadMessage(); err != nil {
			h.mu.Lock()
			if h.clients[ws] {
				ws.Close()
				delete(h.clients, ws)
			}
			h.mu.Unlock()
			return
		}
	}
}

// API は状態の参照とブザー操作を提供するHTTPサーバ
type API struct {
	store  *StatusStore
	hub    *TelemetryHub
	buzzer Buzzer
}

func NewAPI(store *StatusStore, hub *TelemetryHub, buzzer Buzzer) *API {
	if buzzer == nil {
		buzzer = nopBuzzer{}
	}
	return &API{store: store, hub: hub, buzzer: buzzer}
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", a.handleStatus)
	mux.HandleFunc("GET /buzzer/{tone}/{duration}", a.handleBuzzer)
	if a.hub != nil {
		mux.HandleFunc("GET /ws", a.hub.handleConnections)
	}
	return mux
}

// RunApi は addr で待ち受ける
func (a *API) RunApi(addr string) error {
	log.Println("Remote API listening on", addr)
	return http.ListenAndServe(addr, a.Handler())
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if err := json.NewEncoder(w).Encode(a.store.Get()); err != nil {
		log.Printf("[API] encode status: %v", err)
	}
}

func (a *API) handleBuzzer(w http.ResponseWriter, r *http.Request) {
	tone, err := strconv.Atoi(r.PathValue("tone"))
	if err != nil || tone < 0 || tone > 15 {
		http.Error(w, "400 Bad Request", http.StatusBadRequest)
		return
	}
	duration, err := strconv.Atoi(r.PathValue("duration"))
	if err != nil || duration < 50 || duration > 3000 {
		http.Error(w, "400 Bad Request", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("BUZZER OK\r\n"))
	go a.buzzer.Ring(tone, time.Duration(duration)*time.Millisecond)
}
