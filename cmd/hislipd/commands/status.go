package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/scpigo/hislipd/internal/cli/output"
	"github.com/scpigo/hislipd/internal/config"
)

var statusAdminAddress string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show live sessions on a running hislipd server",
	Long: `Query a running hislipd server's admin surface and print its live
HiSLIP sessions as a table.

Examples:
  # Query the admin address from the config file
  hislipd status

  # Query an explicit admin address
  hislipd status --admin-address localhost:9480`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusAdminAddress, "admin-address", "", "Admin/metrics HTTP address (default: from config)")
}

type sessionRow struct {
	ID             uint16 `json:"id"`
	TraceID        string `json:"trace_id"`
	Protocol       string `json:"protocol"`
	State          string `json:"state"`
	Mode           string `json:"mode"`
	AsyncConnected bool   `json:"async_connected"`
}

// sessionRows adapts the admin surface's /sessions payload to output.TableRenderer.
type sessionRows []sessionRow

func (rs sessionRows) Headers() []string {
	return []string{"ID", "TRACE ID", "PROTOCOL", "STATE", "MODE", "ASYNC"}
}

func (rs sessionRows) Rows() [][]string {
	rows := make([][]string, 0, len(rs))
	for _, r := range rs {
		rows = append(rows, []string{
			fmt.Sprintf("%d", r.ID),
			r.TraceID,
			r.Protocol,
			r.State,
			r.Mode,
			fmt.Sprintf("%t", r.AsyncConnected),
		})
	}
	return rows
}

type sessionsResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
	Data   struct {
		Count    int          `json:"count"`
		Sessions []sessionRow `json:"sessions"`
	} `json:"data"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	addr := statusAdminAddress
	if addr == "" {
		cfg, err := config.Load(GetConfigFile())
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		addr = cfg.Metrics.ListenAddress
	}

	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://%s/sessions", normalizeAdminAddress(addr)))
	if err != nil {
		return fmt.Errorf("failed to reach admin surface at %s: %w", addr, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var body sessionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if body.Status != "ok" {
		return fmt.Errorf("admin surface returned an error: %s", body.Error)
	}

	if body.Data.Count == 0 {
		fmt.Println("No active sessions.")
		return nil
	}

	return output.PrintTable(os.Stdout, sessionRows(body.Data.Sessions))
}

// normalizeAdminAddress turns a bind address like ":9480" into a dialable
// loopback address, leaving an already-explicit host:port untouched.
func normalizeAdminAddress(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}
