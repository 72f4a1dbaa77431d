package net

import (
	"encoding/json"
	"log"
	nethttp "net/http"
	"strconv"
	"time"

	"boardfx"
	"boardfx/internal/net/ws"
	"boardfx/internal/telemetry"
)

type HTTPHandlerConfig struct {
	Logger telemetry.Logger
}

// NewHTTPHandler serves the join endpoint, the websocket session and the
// operational endpoints.
func NewHTTPHandler(hub *boardfx.Hub, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		payload := struct {
			Status     string                      `json:"status"`
			ServerTime int64                       `json:"serverTime"`
			Players    []boardfx.DiagnosticsPlayer `json:"players"`
			TickRate   int                         `json:"tickRate"`
			Pending    int                         `json:"pendingMoves"`
			Telemetry  map[string]uint64           `json:"telemetry"`
			Keyframes  keyframeWindow              `json:"keyframes"`
		}{
			Status:     "ok",
			ServerTime: time.Now().UnixMilli(),
			Players:    hub.DiagnosticsSnapshot(),
			TickRate:   hub.TickRate(),
			Pending:    hub.Pending(),
			Telemetry:  hub.TelemetrySnapshot(),
		}
		payload.Keyframes.Size, payload.Keyframes.Oldest, payload.Keyframes.Newest = hub.KeyframeWindow()
		writeJSON(w, logger, payload)
	})

	mux.HandleFunc("/join", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, logger, hub.Join())
	})

	mux.HandleFunc("/keyframe", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		turn, err := strconv.ParseUint(r.URL.Query().Get("turn"), 10, 64)
		if err != nil {
			httpError(w, "invalid turn", nethttp.StatusBadRequest)
			return
		}
		frame, ok := hub.Keyframe(turn)
		if !ok {
			httpError(w, "keyframe not retained", nethttp.StatusNotFound)
			return
		}
		writeJSON(w, logger, frame)
	})

	handler := ws.NewHandler(hub, ws.HandlerConfig{Logger: logger})
	mux.HandleFunc("/ws", handler.Handle)

	return mux
}

type keyframeWindow struct {
	Size   int    `json:"size"`
	Oldest uint64 `json:"oldest"`
	Newest uint64 `json:"newest"`
}

func writeJSON(w nethttp.ResponseWriter, logger telemetry.Logger, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Printf("failed to encode response: %v", err)
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
