// Package manager exposes the firewall's administrative control surface.
// Authentication is owned by the host platform; mount these routes behind
// its admin-privilege middleware.
package manager

import (
	"encoding/json"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"pollguard/logger"
	"pollguard/waf"
)

type API struct {
	engine *waf.Engine
}

func NewAPI(engine *waf.Engine) *API {
	return &API{engine: engine}
}

// Register mounts the /waf/* routes on mux.
func (api *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("/waf/stats", api.handleStats)
	mux.HandleFunc("/waf/config", api.handleConfig)
	mux.HandleFunc("/waf/block-ip", api.handleBlockIP)
	mux.HandleFunc("/waf/unblock-ip", api.handleUnblockIP)
	mux.HandleFunc("/waf/blocked-ips", api.handleBlockedIPs)
	mux.HandleFunc("/waf/suspicious-activity", api.handleSuspiciousActivity)
	mux.HandleFunc("/waf/test-rules", api.handleTestRules)
}

type blockIPRequest struct {
	IP     string `json:"ip"`
	Reason string `json:"reason"`
}

type configPatchRequest struct {
	Config waf.ConfigPatch `json:"config"`
}

type testRulesRequest struct {
	TestInput string `json:"testInput"`
}

type activityEntry struct {
	ClientID    string    `json:"client_id"`
	EventCount  int       `json:"event_count"`
	LastSeen    time.Time `json:"last_seen"`
	ThreatLevel string    `json:"threat_level"`
}

func (api *API) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"blockedIPs":         blockedList(api.engine),
		"suspiciousActivity": activityList(api.engine),
		"config":             api.engine.Config(),
	})
}

func (api *API) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		http.Error(w, "Use PATCH", http.StatusMethodNotAllowed)
		return
	}
	var req configPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid body", http.StatusBadRequest)
		return
	}
	updated := api.engine.UpdateConfig(req.Config)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Config updated", "config": updated})
}

func (api *API) handleBlockIP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req blockIPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid body", http.StatusBadRequest)
		return
	}
	if !validIPv4(req.IP) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid IPv4 address"})
		return
	}
	reason := req.Reason
	if reason == "" {
		reason = "manual block"
	}
	api.engine.BlockIP(req.IP, reason, "manual")
	writeJSON(w, http.StatusOK, map[string]string{"message": "IP blocked", "ip": req.IP})
}

func (api *API) handleUnblockIP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req blockIPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid body", http.StatusBadRequest)
		return
	}
	if err := api.engine.UnblockIP(req.IP); err != nil {
		logger.Error("unblock failed", "ip", req.IP, "err", err)
		http.Error(w, "Unblock failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "IP unblocked", "ip": req.IP})
}

func (api *API) handleBlockedIPs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	list := blockedList(api.engine)
	writeJSON(w, http.StatusOK, map[string]any{"blockedIPs": list, "total": len(list)})
}

func (api *API) handleSuspiciousActivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suspiciousActivity": activityList(api.engine)})
}

// handleTestRules evaluates a sample input against the detection rules with
// no side effects on tracker state, metrics or security logs.
func (api *API) handleTestRules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req testRulesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid body", http.StatusBadRequest)
		return
	}
	blocked, reason := api.engine.TestRules(req.TestInput)
	writeJSON(w, http.StatusOK, map[string]any{
		"blocked": blocked,
		"reason":  reason,
		"passed":  !blocked,
	})
}

type blockedEntry struct {
	IP        string    `json:"ip"`
	Source    string    `json:"source"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

func blockedList(engine *waf.Engine) []blockedEntry {
	blocks := engine.BlockedIPs()
	out := make([]blockedEntry, 0, len(blocks))
	for ip, info := range blocks {
		out = append(out, blockedEntry{IP: ip, Source: info.Source, Reason: info.Reason, CreatedAt: info.CreatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IP < out[j].IP })
	return out
}

func activityList(engine *waf.Engine) []activityEntry {
	records := engine.Tracker().Snapshot()
	out := make([]activityEntry, 0, len(records))
	for _, rec := range records {
		out = append(out, activityEntry{
			ClientID:    rec.ClientID,
			EventCount:  rec.EventCount,
			LastSeen:    rec.LastSeen,
			ThreatLevel: threatLevel(rec.EventCount),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventCount > out[j].EventCount })
	return out
}

func threatLevel(count int) string {
	switch {
	case count > 5:
		return "HIGH"
	case count > 2:
		return "MEDIUM"
	default:
		return "LOW"
	}
}

// validIPv4 accepts dotted-quad IPv4 only; IPv6 and malformed input fail.
func validIPv4(ip string) bool {
	if strings.Count(ip, ".") != 3 {
		return false
	}
	parsed := net.ParseIP(ip)
	return parsed != nil && parsed.To4() != nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
