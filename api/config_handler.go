package api

import (
	"net/http"

	"github.com/swamplocks/marketdata/internal/config"
)

// ConfigResponse is the JSON envelope returned by GET /api/v1/config.
type ConfigResponse struct {
	Sectors  int    `json:"sectors"`
	Chart    string `json:"chart_base_url"`
	Calendar string `json:"calendar_endpoint"`
	MaxPages int    `json:"calendar_max_pages"`
	CacheTTL int    `json:"cache_ttl_sec"`
	Headless bool   `json:"render_headless"`

	APIKeys []config.KeyStatus `json:"api_keys"`
}

// handleGetConfig returns a summary of the running configuration.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: ConfigResponse{
			Sectors:  len(s.cfg.Sectors),
			Chart:    s.cfg.Chart.BaseURL,
			Calendar: s.cfg.Calendar.Endpoint,
			MaxPages: s.cfg.Calendar.MaxPages,
			CacheTTL: s.cfg.API.CacheTTLSec,
			Headless: s.cfg.Render.Headless,
			APIKeys:  config.CheckAPIKeys(s.cfg),
		},
	})
}
