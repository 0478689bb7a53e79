package admin

import (
	"fmt"
	"net/http"

	"github.com/scpigo/hislipd/pkg/session"
)

// healthHandler answers the liveness probe: 200 as long as the admin HTTP
// server itself is responsive. It carries no dependency on the HiSLIP
// listener, so it stays correct even if the front door is momentarily
// backed up accepting connections.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthy(map[string]string{"service": "hislipd"}))
}

// sessionRow is one row of the /sessions listing. The CLI's `hislipd status`
// command decodes these rows into its own sessionRow type.
type sessionRow struct {
	ID             uint16 `json:"id"`
	TraceID        string `json:"trace_id"`
	Protocol       string `json:"protocol"`
	State          string `json:"state"`
	Mode           string `json:"mode"`
	AsyncConnected bool   `json:"async_connected"`
}

func toSessionRows(infos []session.Info) []sessionRow {
	rows := make([]sessionRow, 0, len(infos))
	for _, info := range infos {
		rows = append(rows, sessionRow{
			ID:             info.ID,
			TraceID:        info.TraceID,
			Protocol:       formatProtocol(info.Protocol),
			State:          info.State.String(),
			Mode:           info.Mode.String(),
			AsyncConnected: info.AsyncConnected,
		})
	}
	return rows
}

func formatProtocol(p session.Protocol) string {
	return fmt.Sprintf("%d.%d", p.Major, p.Minor)
}

// sessionsHandler lists every currently live HiSLIP session.
func sessionsHandler(registry *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows := toSessionRows(registry.Snapshot())
		writeJSON(w, http.StatusOK, ok(map[string]interface{}{
			"count":    len(rows),
			"sessions": rows,
		}))
	}
}
