package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
)

// MockMapsKey is the API key the mock geocoder accepts.
const MockMapsKey = "AIzaTestMapsKey"

// MockGeocoder mocks the Google Geocoding JSON endpoint.
type MockGeocoder struct {
	server    *httptest.Server
	mu        sync.RWMutex
	locations map[string][2]float64

	// Tracking
	RequestCount int
}

// NewMockGeocoder creates a new mock geocoder.
func NewMockGeocoder() *MockGeocoder {
	mock := &MockGeocoder{
		locations: make(map[string][2]float64),
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the mock server URL.
func (m *MockGeocoder) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockGeocoder) Close() {
	m.server.Close()
}

// SetLocation registers the coordinate returned for address.
func (m *MockGeocoder) SetLocation(address string, lat, lng float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations[address] = [2]float64{lat, lng}
}

// GetRequestCount returns the number of geocoding requests made to the server.
func (m *MockGeocoder) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

func (m *MockGeocoder) handle(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.RequestCount++
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json; charset=UTF-8")

	q := r.URL.Query()
	if q.Get("key") != MockMapsKey {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":        "REQUEST_DENIED",
			"error_message": "The provided API key is invalid.",
			"results":       []any{},
		})
		return
	}

	m.mu.RLock()
	loc, ok := m.locations[q.Get("address")]
	m.mu.RUnlock()

	if !ok {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  "ZERO_RESULTS",
			"results": []any{},
		})
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": "OK",
		"results": []any{
			map[string]any{
				"formatted_address": q.Get("address"),
				"geometry": map[string]any{
					"location": map[string]float64{"lat": loc[0], "lng": loc[1]},
				},
			},
		},
	})
}
