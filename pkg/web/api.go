package web

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dl9xyz/dmrgateway/pkg/logger"
	"github.com/dl9xyz/dmrgateway/pkg/protocol"
	"github.com/dl9xyz/dmrgateway/pkg/slot"
)

// trafficEntry is one recent slot claim, kept for the dashboard's
// activity feed.
type trafficEntry struct {
	SourceID  uint32    `json:"source_id"`
	DestID    uint32    `json:"dest_id"`
	Timeslot  int       `json:"timeslot"`
	Owner     string    `json:"owner"`
	Timestamp time.Time `json:"timestamp"`
}

const maxRecentActivity = 50

// API handles REST API endpoints. It also satisfies dispatch.Observer
// structurally (SlotClaimed/XLXLinkChanged), the same way
// database.TransmissionLogger and mqtt.Publisher do, so the dashboard's
// /api/links and /api/activity endpoints reflect the live Dispatcher
// without pkg/web importing pkg/dispatch. /api/peers always returns an
// empty list; no peer state reaches the API.
type API struct {
	logger *logger.Logger
	hub    *WebSocketHub

	mu     sync.RWMutex
	links  map[string]uint32
	recent []trafficEntry
}

// NewAPI creates a new API instance with no hub. Once SetHub wires one,
// observed events are also broadcast to connected WebSocket clients.
func NewAPI(log *logger.Logger) *API {
	return &API{
		logger: log,
		links:  make(map[string]uint32),
	}
}

// SetHub wires a WebSocketHub so observed events also reach connected
// dashboard clients in real time, not just the next /api/* poll.
func (a *API) SetHub(hub *WebSocketHub) {
	a.hub = hub
}

// SlotClaimed records a slot claim for the activity feed and broadcasts
// it to connected WebSocket clients.
func (a *API) SlotClaimed(f protocol.Frame, owner slot.Owner) {
	entry := trafficEntry{
		SourceID:  f.SrcID,
		DestID:    f.DstID,
		Timeslot:  f.Slot,
		Owner:     owner.String(),
		Timestamp: time.Now(),
	}

	a.mu.Lock()
	a.recent = append(a.recent, entry)
	if len(a.recent) > maxRecentActivity {
		a.recent = a.recent[len(a.recent)-maxRecentActivity:]
	}
	a.mu.Unlock()

	if a.hub != nil {
		a.hub.BroadcastTransmissionsUpdate(entry)
	}
}

// XLXLinkChanged records an XLX reflector's current link and broadcasts
// it to connected WebSocket clients.
func (a *API) XLXLinkChanged(name string, reflector uint32) {
	a.mu.Lock()
	a.links[name] = reflector
	a.mu.Unlock()

	if a.hub != nil {
		a.hub.BroadcastLinksUpdate(map[string]interface{}{"network": name, "reflector": reflector})
	}
}

// HandleStatus handles the /api/status endpoint
func (a *API) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	v, _, _ := GetVersionInfo()
	response := map[string]interface{}{
		"status":  "running",
		"service": "dmrgateway",
		"version": v,
	}

	json.NewEncoder(w).Encode(response)
}

// HandlePeers handles the /api/peers endpoint
func (a *API) HandlePeers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// Return empty array for now - will be populated with actual peer data
	peers := []interface{}{}
	json.NewEncoder(w).Encode(peers)
}

// HandleLinks handles the /api/links endpoint: the current reflector
// each enabled XLX network is linked to, as last reported via
// XLXLinkChanged.
func (a *API) HandleLinks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	a.mu.RLock()
	links := make(map[string]uint32, len(a.links))
	for k, v := range a.links {
		links[k] = v
	}
	a.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(links)
}

// activityEntry is a trafficEntry plus a humanized "time ago" string, for
// clients that render the feed directly without reimplementing the math.
type activityEntry struct {
	trafficEntry
	Age string `json:"age"`
}

// HandleActivity handles the /api/activity endpoint: the most recent
// slot claims, newest last, as last reported via SlotClaimed.
func (a *API) HandleActivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	a.mu.RLock()
	activity := make([]activityEntry, len(a.recent))
	for i, e := range a.recent {
		activity[i] = activityEntry{trafficEntry: e, Age: humanize.Time(e.Timestamp)}
	}
	a.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(activity)
}
