// Package server отдаёт события подписчикам по WebSocket и историю китов по HTTP
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/skalibog/whalewatch/internal/broadcast"
	"github.com/skalibog/whalewatch/internal/config"
	"github.com/skalibog/whalewatch/internal/observability"
	"github.com/skalibog/whalewatch/internal/tracker"
	"github.com/skalibog/whalewatch/pkg/logger"
	"github.com/skalibog/whalewatch/pkg/models"
)

const (
	summaryPeriod = 24 * time.Hour
	writeWait     = 10 * time.Second
	pongWait      = 90 * time.Second
	pingPeriod    = 45 * time.Second
)

// Assets доступ к трекерам активов
type Assets interface {
	Symbols() []string
	Tracker(symbol string) (*tracker.Tracker, error)
	AvailableAssets() models.Event
}

// clientMessage команда от подписчика
type clientMessage struct {
	Action string `json:"action"`
	Asset  string `json:"asset"`
}

// Server HTTP и WebSocket интерфейс
type Server struct {
	httpServer *http.Server
	hub        *broadcast.Hub
	assets     Assets
	metrics    *observability.Metrics
	upgrader   websocket.Upgrader
}

// New создает сервер
func New(cfg config.ServerConfig, hub *broadcast.Hub, assets Assets, m *observability.Metrics) *Server {
	s := &Server{
		hub:     hub,
		assets:  assets,
		metrics: m,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.httpServer = &http.Server{
		Addr:        cfg.Addr,
		Handler:     s.Handler(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}
	return s
}

// Handler маршруты сервера
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	mux.HandleFunc("GET /api/whales", s.whales)
	mux.HandleFunc("GET /api/summary", s.summary)
	mux.HandleFunc("GET /healthz", s.health)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	return mux
}

// Start блокирует до остановки сервера
func (s *Server) Start() error {
	logger.Info("Запуск HTTP сервера", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown останавливает сервер
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("Остановка HTTP сервера")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	asset := r.URL.Query().Get("asset")
	if _, err := s.assets.Tracker(asset); err != nil {
		asset = ""
		if symbols := s.assets.Symbols(); len(symbols) > 0 {
			asset = symbols[0]
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("Не удалось установить WebSocket соединение", zap.Error(err))
		return
	}
	defer conn.Close()

	sub := s.hub.Subscribe(asset)
	logger.Info("Клиент подключен", zap.String("id", sub.ID), zap.String("remote", r.RemoteAddr), zap.String("asset", asset))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.writeLoop(conn, sub)
	}()

	s.sync(sub, asset)
	s.readLoop(conn, sub)

	s.hub.Unsubscribe(sub)
	wg.Wait()
	logger.Info("Клиент отключен", zap.String("id", sub.ID), zap.Uint64("dropped", sub.Dropped()))
}

// sync отправляет подписчику текущее состояние актива
func (s *Server) sync(sub *broadcast.Subscription, asset string) {
	s.hub.Deliver(sub, s.assets.AvailableAssets())
	t, err := s.assets.Tracker(asset)
	if err != nil {
		return
	}
	for _, ev := range t.Snapshot() {
		s.hub.Deliver(sub, ev)
	}
}

func (s *Server) readLoop(conn *websocket.Conn, sub *broadcast.Subscription) {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			var (
				syntaxErr *json.SyntaxError
				typeErr   *json.UnmarshalTypeError
			)
			// Обрезанный JSON в одном кадре приходит как io.ErrUnexpectedEOF,
			// закрытие соединения gorilla возвращает как CloseError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF) {
				logger.Debug("Некорректное сообщение клиента", zap.String("id", sub.ID), zap.Error(err))
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("Ошибка чтения WebSocket", zap.String("id", sub.ID), zap.Error(err))
			}
			return
		}

		switch msg.Action {
		case "select":
			if _, err := s.assets.Tracker(msg.Asset); err != nil {
				logger.Warn("Запрошен неизвестный актив", zap.String("id", sub.ID), zap.String("asset", msg.Asset))
				continue
			}
			s.hub.Select(sub, msg.Asset)
			s.sync(sub, msg.Asset)
		default:
			logger.Debug("Неизвестная команда клиента", zap.String("id", sub.ID), zap.String("action", msg.Action))
		}
	}
}

// writeLoop единственный писатель в соединение
func (s *Server) writeLoop(conn *websocket.Conn, sub *broadcast.Subscription) {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				logger.Debug("Ошибка записи WebSocket", zap.String("id", sub.ID), zap.Error(err))
				conn.Close()
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				conn.Close()
				return
			}
		}
	}
}

func (s *Server) trackerFor(w http.ResponseWriter, r *http.Request) (*tracker.Tracker, bool) {
	asset := r.URL.Query().Get("asset")
	if asset == "" {
		writeError(w, http.StatusBadRequest, "asset is required")
		return nil, false
	}
	t, err := s.assets.Tracker(asset)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return t, true
}

func (s *Server) whales(w http.ResponseWriter, r *http.Request) {
	t, ok := s.trackerFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, t.WhaleHistory())
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	t, ok := s.trackerFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, t.Summary(summaryPeriod))
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	states := make(map[string]tracker.State)
	for _, sym := range s.assets.Symbols() {
		if t, err := s.assets.Tracker(sym); err == nil {
			states[sym] = t.State()
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"subscribers": s.hub.Count(),
		"assets":      states,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Ошибка записи ответа", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
