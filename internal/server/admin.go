package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fenggwsx/RoomGate/internal/storage"
	"github.com/fenggwsx/RoomGate/internal/transport"
)

func (a *App) routes(ts *transport.Server) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(a.socketPath(), ts)
	mux.HandleFunc("GET /health", a.handleHealth)
	if a.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))
	}
	mux.HandleFunc("POST /admin/token", a.handleToken)
	mux.HandleFunc("POST /admin/broadcast", a.requireAdmin(a.handleBroadcast))
	mux.HandleFunc("GET /admin/rooms", a.requireAdmin(a.handleRoom))
	mux.HandleFunc("GET /admin/admissions", a.requireAdmin(a.handleAdmissions))
	return mux
}

func (a *App) socketPath() string {
	path := strings.TrimSpace(a.cfg.SocketPath)
	if path == "" {
		return "/socket"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	hub, err := a.hub()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	rooms, sockets := hub.Stats()
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "rooms": rooms, "clients": sockets})
}

func (a *App) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	req, err := decodeBroadcastRequest(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var target any
	switch {
	case req.Room != "":
		target = req.Room
	case len(req.Props) > 0:
		target = req.Props
	}

	if err := a.Emit(target, req.Payload, req.Event); err != nil {
		var routingErr *RoutingError
		if errors.As(err, &routingErr) {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	resp := broadcastResponse{}
	switch t := target.(type) {
	case string:
		resp.Room = t
	case map[string]any:
		resp.Room = a.RoomKey(t)
	}
	if resp.Room != "" {
		resp.Size, _ = a.RoomSize(resp.Room)
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (a *App) handleRoom(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, errors.New("key required"))
		return
	}
	size, err := a.RoomSize(key)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, roomResponse{Room: key, Size: size})
}

type admissionView struct {
	ConnectionID   string               `json:"connection_id"`
	RemoteAddr     string               `json:"remote_addr"`
	RoomKey        string               `json:"room"`
	Status         string               `json:"status"`
	Errors         []storage.FieldError `json:"errors,omitempty"`
	ConnectedAt    time.Time            `json:"connected_at"`
	DisconnectedAt *time.Time           `json:"disconnected_at,omitempty"`
}

func (a *App) handleAdmissions(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		writeError(w, http.StatusNotFound, errors.New("journal disabled"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	admissions, err := a.store.ListAdmissions(r.Context(), limit)
	if err != nil {
		a.logger.Error("list admissions", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("journal unavailable"))
		return
	}

	views := make([]admissionView, 0, len(admissions))
	for _, adm := range admissions {
		views = append(views, admissionView(adm))
	}
	writeJSON(w, http.StatusOK, views)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
