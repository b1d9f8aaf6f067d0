package cachehelper

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func getDebug(t *testing.T, handler http.Handler, path string) DebugResponse {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if w.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("Expected JSON content type, got %s", w.Header().Get("Content-Type"))
	}

	var response DebugResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return response
}

func TestDebugHandler(t *testing.T) {
	m := newMemoizer(t, NewDefaultConfig())

	double := Wrap(m, func(x int) int { return x * 2 })
	double.Fn(1) // miss
	double.Fn(1) // hit
	double.Fn(2) // miss

	handler := m.DebugHandler()

	t.Run("StatsOnly", func(t *testing.T) {
		response := getDebug(t, handler, "/stats")

		if response.Stats.Hits != 1 || response.Stats.Misses != 2 {
			t.Fatalf("Expected 1 hit and 2 misses, got %d/%d", response.Stats.Hits, response.Stats.Misses)
		}
		if response.Stats.Computes != 2 || response.Stats.Total != 3 {
			t.Fatalf("Expected 2 computes of 3 lookups, got %d/%d", response.Stats.Computes, response.Stats.Total)
		}
		if len(response.Keys) != 0 || len(response.Functions) != 0 {
			t.Fatal("Expected no keys or functions in /stats endpoint")
		}

		config := response.Stats.Config
		if config.StoreType != "memory" || config.MaxEntries != 1000 {
			t.Fatalf("Unexpected store config %+v", config)
		}
		if config.DefaultTimeout != 5*time.Minute {
			t.Fatalf("Expected DefaultTimeout 5m, got %v", config.DefaultTimeout)
		}
		if config.MaxDepth != 2 || config.MaxKeyLength != 250 || config.Singleflight {
			t.Fatalf("Unexpected key config %+v", config)
		}
	})

	t.Run("FunctionsEndpoint", func(t *testing.T) {
		response := getDebug(t, handler, "/functions")

		if len(response.Functions) != 1 {
			t.Fatalf("Expected 1 function, got %d", len(response.Functions))
		}
		fn := response.Functions[0]
		if !strings.HasPrefix(fn.Name, pkgPath+".TestDebugHandler") || fn.Line == 0 {
			t.Fatalf("Unexpected function info %+v", fn)
		}
		if len(response.Keys) != 0 {
			t.Fatal("Expected no keys in /functions endpoint")
		}
	})

	t.Run("KeysEndpoint", func(t *testing.T) {
		response := getDebug(t, handler, "/keys")

		if len(response.Keys) != 2 {
			t.Fatalf("Expected 2 keys, got %d", len(response.Keys))
		}
		if response.Keys[0].Key >= response.Keys[1].Key {
			t.Fatal("Expected keys in sorted order")
		}
		for _, key := range response.Keys {
			if !strings.HasSuffix(key.Key, ",;") {
				t.Fatalf("Unexpected key format %q", key.Key)
			}
			if key.ExpiresAt == nil || key.TTL == "" || key.Age == "" {
				t.Fatalf("Expected expiry metadata for %q", key.Key)
			}
		}
		if response.Keys[0].Value != float64(2) {
			t.Fatalf("Expected cached value 2, got %v", response.Keys[0].Value)
		}
	})

	t.Run("RootEndpoint", func(t *testing.T) {
		response := getDebug(t, handler, "/")
		if len(response.Keys) != 2 || len(response.Functions) != 1 {
			t.Fatal("Expected root endpoint to match /keys")
		}
	})

	t.Run("MethodNotAllowed", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/stats", nil)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Code != http.StatusMethodNotAllowed {
			t.Fatalf("Expected status 405, got %d", w.Code)
		}
	})
}

func TestDebugHandlerCustomBackend(t *testing.T) {
	m := newMemoizer(t, NewDefaultConfig().WithBackend(newMapBackend()))
	response := getDebug(t, m.DebugHandler(), "/keys")

	if response.KeysError != "backend does not list keys" {
		t.Fatalf("Expected keys error, got %q", response.KeysError)
	}
	if response.Stats.Config.Singleflight {
		t.Fatal("Expected single-flight off")
	}
}

func TestDebugHandlerMemcached(t *testing.T) {
	m := newMemoizer(t, NewDefaultConfig().WithMemcachedClient(newFakeMemcache()))
	response := getDebug(t, m.DebugHandler(), "/keys")

	if !strings.Contains(response.KeysError, "not supported") {
		t.Fatalf("Expected unsupported keys error, got %q", response.KeysError)
	}
	if response.Stats.Config.StoreType != "memcached" || response.Stats.Config.ReservedKeyLength != 3 {
		t.Fatalf("Unexpected memcached config %+v", response.Stats.Config)
	}
}

func TestNewDebugServer(t *testing.T) {
	m := newMemoizer(t, NewDefaultConfig())
	server := m.NewDebugServer(":0")
	if server.Addr != ":0" || server.Handler == nil {
		t.Fatal("Expected configured debug server")
	}

	srv := httptest.NewServer(server.Handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/stats")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{500 * time.Nanosecond, "500ns"},
		{1500 * time.Nanosecond, "1µs"},
		{1500 * time.Microsecond, "1ms"},
		{1500 * time.Millisecond, "1s"},
		{90 * time.Second, "1m0s"},
		{90 * time.Minute, "1h0m0s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Fatalf("formatDuration(%s): expected %s, got %s", tt.in, tt.want, got)
		}
	}
}
