package httpapi

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"movie-relay/internal/middleware"
)

// Stats are process-lifetime counters for the ops endpoints. Incremented
// from the gateway's per-event goroutines, hence atomics.
type Stats struct {
	Start       time.Time
	Discoveries atomic.Int64
	Replays     atomic.Int64
	Deliveries  atomic.Int64
	Failures    atomic.Int64
	PagesWalked atomic.Int64
}

func NewStats() *Stats { return &Stats{Start: time.Now()} }

type statsResp struct {
	UptimeSeconds    int64  `json:"uptimeSeconds"`
	TargetPeer       string `json:"targetPeer"`
	Discoveries      int64  `json:"discoveries"`
	Replays          int64  `json:"replays"`
	Deliveries       int64  `json:"deliveries"`
	Failures         int64  `json:"failures"`
	PagesWalked      int64  `json:"pagesWalked"`
	MenusOutstanding int    `json:"menusOutstanding"`
}

type Handler struct {
	Stats      *Stats
	TargetPeer string
	Menus      interface{ Len() int }
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", cors(h.Health))
	mux.HandleFunc("/stats", cors(h.StatsJSON))
}

func cors(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		middleware.EnableCORS(w)
		if r.Method == http.MethodOptions {
			return
		}
		next(w, r)
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) StatsJSON(w http.ResponseWriter, r *http.Request) {
	out := statsResp{
		UptimeSeconds: int64(time.Since(h.Stats.Start).Seconds()),
		TargetPeer:    h.TargetPeer,
		Discoveries:   h.Stats.Discoveries.Load(),
		Replays:       h.Stats.Replays.Load(),
		Deliveries:    h.Stats.Deliveries.Load(),
		Failures:      h.Stats.Failures.Load(),
		PagesWalked:   h.Stats.PagesWalked.Load(),
	}
	if h.Menus != nil {
		out.MenusOutstanding = h.Menus.Len()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}
