package httpapi

import (
	"net/http"
	"time"
)

// ServerInfo represents the server's capabilities and configuration
type ServerInfo struct {
	APIVersion       string                          `json:"apiVersion"`
	ServerTime       string                          `json:"serverTime"`
	Collections      map[string]CollectionCapability `json:"collections"`
	Locking          LockingCapability               `json:"locking"`
	MinClientVersion string                          `json:"minClientVersion"`
	RateLimit        *RateLimitInfo                  `json:"rateLimit,omitempty"`
	Hints            *SyncHints                      `json:"hints,omitempty"`
}

// RateLimitInfo describes the server's rate limiting policy. Reads and
// writes of each collection are limited separately; zero write values fall
// back to the read values.
type RateLimitInfo struct {
	WindowSeconds    int `json:"windowSeconds"`              // e.g. 60
	MaxRequests      int `json:"maxRequests"`                // reads per window
	Burst            int `json:"burst"`                      // read bucket size
	WriteMaxRequests int `json:"writeMaxRequests,omitempty"` // writes per window
	WriteBurst       int `json:"writeBurst,omitempty"`       // write bucket size
}

// DefaultRateLimitConfig is used when the server is not configured otherwise
var DefaultRateLimitConfig = RateLimitInfo{
	WindowSeconds:    60,
	MaxRequests:      600,
	Burst:            120,
	WriteMaxRequests: 120,
	WriteBurst:       30,
}

// SyncHints provides recommendations for client behavior
type SyncHints struct {
	RecommendedPage int `json:"recommendedPage"`
	BackoffMsOn429  int `json:"backoffMsOn429"` // default backoff if Retry-After missing
}

// CollectionCapability describes what a collection supports
type CollectionCapability struct {
	MaxLimit   int    `json:"maxLimit"`
	MoveTarget string `json:"moveTarget,omitempty"`
}

// LockingCapability describes sync locking/session support
type LockingCapability struct {
	Supported bool   `json:"supported"`
	Mode      string `json:"mode"` // "session" or "none"
}

// Info handles GET /v1/sync/info
// Can be called without authentication to allow capability discovery.
func (s *Server) Info(w http.ResponseWriter, r *http.Request) {
	info := ServerInfo{
		APIVersion: "1.0",
		ServerTime: time.Now().UTC().Format(time.RFC3339Nano),
		Collections: map[string]CollectionCapability{
			"cart":     {MaxLimit: maxPageSize},
			"wishlist": {MaxLimit: maxPageSize, MoveTarget: "cart"},
		},
		Locking: LockingCapability{
			Supported: true,
			Mode:      "session",
		},
		MinClientVersion: "0.1.0",
		RateLimit:        &s.RateLimitConfig,
		Hints: &SyncHints{
			RecommendedPage: defaultPageSize,
			BackoffMsOn429:  1000,
		},
	}

	writeJSON(w, http.StatusOK, info)
}
