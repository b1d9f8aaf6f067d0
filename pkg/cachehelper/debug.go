package cachehelper

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"
)

const expiredTTL = "expired"

// DebugResponse represents the JSON response structure for debug endpoints
type DebugResponse struct {
	Stats     *DebugStats    `json:"stats"`
	Functions []FunctionInfo `json:"functions,omitempty"`
	Keys      []DebugKey     `json:"keys,omitempty"`

	// KeysError explains why keys could not be listed
	KeysError string `json:"keysError,omitempty"`
}

// DebugStats represents memoizer statistics in the debug response
type DebugStats struct {
	Hits          int64        `json:"hits"`
	Misses        int64        `json:"misses"`
	Computes      int64        `json:"computes"`
	ComputeErrors int64        `json:"computeErrors"`
	Invalidations int64        `json:"invalidations"`
	KeyErrors     int64        `json:"keyErrors"`
	TruncatedKeys int64        `json:"truncatedKeys"`
	InFlight      int64        `json:"inFlight"`
	HitRate       float64      `json:"hitRate"`
	Total         int64        `json:"total"`
	Config        *DebugConfig `json:"config"`
}

// DebugConfig represents the memoizer configuration in the debug response
type DebugConfig struct {
	StoreType         string        `json:"storeType"`
	MaxEntries        int           `json:"maxEntries"`
	DefaultTimeout    time.Duration `json:"defaultTimeout"`
	CleanupInterval   time.Duration `json:"cleanupInterval"`
	MaxDepth          int           `json:"maxDepth"`
	MaxKeyLength      int           `json:"maxKeyLength"`
	ReservedKeyLength int           `json:"reservedKeyLength"`
	Singleflight      bool          `json:"singleflight"`
}

// DebugKey represents a stored key with its metadata
type DebugKey struct {
	Key       string     `json:"key"`
	Value     any        `json:"value,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	Age       string     `json:"age"`
	TTL       string     `json:"ttl,omitempty"`
}

// DebugHandler returns an HTTP handler that provides memoizer debug information
// The handler supports the following endpoints:
//   - GET /stats - Returns statistics and configuration only
//   - GET /functions - Returns statistics and the memoized functions seen so far
//   - GET /keys - Returns statistics, functions and all stored keys with metadata
//   - GET / - Same as /keys
//
// Keys are listed only when the backend is a Cache whose store can
// enumerate them; memcached cannot.
func (m *Memoizer) DebugHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "application/json")

		response := DebugResponse{Stats: m.debugStats()}
		switch r.URL.Path {
		case "/functions":
			response.Functions = m.Functions()
		case "/", "/keys":
			response.Functions = m.Functions()
			m.collectKeys(r, &response)
		}

		if err := json.NewEncoder(w).Encode(response); err != nil {
			http.Error(w, "Failed to encode JSON response", http.StatusInternalServerError)
		}
	})
}

func (m *Memoizer) debugStats() *DebugStats {
	s := m.stats
	return &DebugStats{
		Hits:          s.Hits(),
		Misses:        s.Misses(),
		Computes:      s.Computes(),
		ComputeErrors: s.ComputeErrors(),
		Invalidations: s.Invalidations(),
		KeyErrors:     s.KeyErrors(),
		TruncatedKeys: s.TruncatedKeys(),
		InFlight:      s.InFlight(),
		HitRate:       s.HitRate(),
		Total:         s.Total(),
		Config: &DebugConfig{
			StoreType:         m.config.StoreType.String(),
			MaxEntries:        m.config.MaxEntries,
			DefaultTimeout:    m.config.DefaultTimeout,
			CleanupInterval:   m.config.CleanupInterval,
			MaxDepth:          m.builder.Flattener().MaxDepth(),
			MaxKeyLength:      m.builder.MaxLength(),
			ReservedKeyLength: m.builder.ReservedLength(),
			Singleflight:      m.sf != nil,
		},
	}
}

func (m *Memoizer) collectKeys(r *http.Request, response *DebugResponse) {
	cache, ok := m.backend.(*Cache)
	if !ok {
		response.KeysError = "backend does not list keys"
		return
	}

	ctx := r.Context()
	keys, err := cache.Keys(ctx)
	if err != nil {
		response.KeysError = err.Error()
		return
	}
	sort.Strings(keys)

	entries, err := cache.entries(ctx, keys)
	if err != nil {
		response.KeysError = err.Error()
		return
	}

	response.Keys = make([]DebugKey, 0, len(entries))
	for _, key := range keys {
		e, found := entries[key]
		if !found {
			continue
		}
		debugKey := DebugKey{
			Key:       key,
			Value:     e.Value,
			ExpiresAt: e.ExpiresAt,
			CreatedAt: e.CreatedAt,
			Age:       formatDuration(e.Age()),
		}
		if e.HasExpiry() {
			if ttl := e.TTL(); ttl > 0 {
				debugKey.TTL = formatDuration(ttl)
			} else {
				debugKey.TTL = expiredTTL
			}
		}
		response.Keys = append(response.Keys, debugKey)
	}
}

// NewDebugServer creates a new HTTP server with memoizer debug endpoints
func (m *Memoizer) NewDebugServer(addr string) *http.Server {
	mux := http.NewServeMux()
	handler := m.DebugHandler()

	mux.Handle("/stats", handler)
	mux.Handle("/functions", handler)
	mux.Handle("/keys", handler)
	mux.Handle("/", handler)

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// formatDuration formats a duration in a human-readable format
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Microsecond:
		return d.String()
	case d < time.Millisecond:
		return d.Truncate(time.Microsecond).String()
	case d < time.Second:
		return d.Truncate(time.Millisecond).String()
	case d < time.Minute:
		return d.Truncate(time.Second).String()
	case d < time.Hour:
		return d.Truncate(time.Minute).String()
	default:
		return d.Truncate(time.Hour).String()
	}
}
