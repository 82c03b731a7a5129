package httpapi

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/fantasy-draft-backend/internal/hub"
	"github.com/DoyleJ11/fantasy-draft-backend/internal/session"
)

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

type countdown struct {
	Holder   string    `json:"currentTurnOwnerId,omitempty"`
	Deadline time.Time `json:"deadline"`
}

type sessionDebug struct {
	session.Session
	Lobby     bool       `json:"lobby"`
	Countdown *countdown `json:"countdown,omitempty"`
}

// Sessions dumps every live room keyed by league id, with the countdown its
// lobby is running if any.
func Sessions(reg *session.Registry, h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := reg.Snapshot()
		ids := make([]string, 0, len(snap))
		for id := range snap {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		out := make(map[string]sessionDebug, len(snap))
		for _, id := range ids {
			d := sessionDebug{Session: snap[id]}
			lb, err := h.Get(r.Context(), id)
			if err != nil {
				log.Warn("lobby lookup failed", zap.String("league_id", id), zap.Error(err))
			}
			if lb != nil {
				d.Lobby = true
				if v, err := lb.State(r.Context()); err == nil && v.TimerArmed {
					d.Countdown = &countdown{Holder: v.Holder, Deadline: v.Deadline}
				}
			}
			out[id] = d
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(out)
	}
}
