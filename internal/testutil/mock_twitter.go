// Package testutil provides testing utilities for the tweet datasource.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Default credentials accepted by the mock token endpoint.
const (
	MockConsumerKey    = "test-consumer-key"
	MockConsumerSecret = "test-consumer-secret"
	MockBearerToken    = "test-bearer-token"
)

// MockResponse defines the behavior for a canned mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockStatus is one entry of a mock backlog.
type MockStatus struct {
	ID         int64
	CreatedAt  time.Time
	ScreenName string
	Text       string
}

// MockTwitter is a configurable mock of the token and standard search endpoints.
// The search endpoint serves per-query backlogs newest first and honors the
// count and max_id parameters.
type MockTwitter struct {
	server *httptest.Server
	mu     sync.RWMutex

	consumerKey    string
	consumerSecret string
	backlogs       map[string][]MockStatus
	handlers       map[string]func(w http.ResponseWriter, r *http.Request)
	failAfter      int
	failure        *MockResponse
	remaining      int

	// Tracking
	TokenCount    int
	SearchCount   int
	SearchQueries []url.Values
	LastAuth      string
}

// NewMockTwitter creates a new mock API server.
func NewMockTwitter() *MockTwitter {
	mock := &MockTwitter{
		consumerKey:    MockConsumerKey,
		consumerSecret: MockConsumerSecret,
		backlogs:       make(map[string][]MockStatus),
		handlers:       make(map[string]func(w http.ResponseWriter, r *http.Request)),
		failAfter:      -1,
		remaining:      180,
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		switch r.URL.Path {
		case "/oauth2/token":
			mock.tokenHandler(w, r)
		case "/1.1/search/tweets.json":
			mock.searchHandler(w, r)
		default:
			writeErrors(w, http.StatusNotFound, 34, "Sorry, that page does not exist")
		}
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockTwitter) URL() string {
	return m.server.URL
}

// Client returns an HTTP client for the mock server.
func (m *MockTwitter) Client() *http.Client {
	return m.server.Client()
}

// Close shuts down the mock server.
func (m *MockTwitter) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockTwitter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TokenCount = 0
	m.SearchCount = 0
	m.SearchQueries = nil
	m.LastAuth = ""
}

// SetCredentials changes the credentials the token endpoint accepts.
func (m *MockTwitter) SetCredentials(key, secret string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consumerKey = key
	m.consumerSecret = secret
}

// SetHandler sets a custom handler for a specific path.
func (m *MockTwitter) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a canned response for a path.
func (m *MockTwitter) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if path == "/1.1/search/tweets.json" {
			m.track(r)
		}
		writeResponse(w, resp)
	})
}

// SetBacklog registers statuses for query q. They are served newest first.
func (m *MockTwitter) SetBacklog(q string, statuses []MockStatus) {
	sorted := append([]MockStatus(nil), statuses...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID > sorted[j].ID })

	m.mu.Lock()
	defer m.mu.Unlock()
	m.backlogs[q] = sorted
}

// GenerateBacklog registers n statuses for q with IDs newestID down to newestID-n+1.
func (m *MockTwitter) GenerateBacklog(q string, n int, newestID int64) []MockStatus {
	base := time.Date(2016, time.March, 14, 12, 0, 0, 0, time.UTC)
	statuses := make([]MockStatus, n)
	for i := range statuses {
		id := newestID - int64(i)
		statuses[i] = MockStatus{
			ID:         id,
			CreatedAt:  base.Add(-time.Duration(i) * time.Minute),
			ScreenName: fmt.Sprintf("user%d", i%7),
			Text:       fmt.Sprintf("%s status %d", q, id),
		}
	}
	m.SetBacklog(q, statuses)
	return statuses
}

// FailSearchesAfter answers every search after the first n successful ones with resp.
func (m *MockTwitter) FailSearchesAfter(n int, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAfter = n
	m.failure = &resp
}

// SetRemaining sets the x-rate-limit-remaining value reported on the next search.
func (m *MockTwitter) SetRemaining(remaining int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remaining = remaining
}

// GetSearchCount returns the number of search requests made to the server.
func (m *MockTwitter) GetSearchCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.SearchCount
}

// GetTokenCount returns the number of token requests made to the server.
func (m *MockTwitter) GetTokenCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.TokenCount
}

// GetSearchQueries returns the query parameters of every search request.
func (m *MockTwitter) GetSearchQueries() []url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]url.Values(nil), m.SearchQueries...)
}

// GetLastAuth returns the Authorization header of the last search request.
func (m *MockTwitter) GetLastAuth() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastAuth
}

func (m *MockTwitter) track(r *http.Request) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SearchCount++
	m.SearchQueries = append(m.SearchQueries, r.URL.Query())
	m.LastAuth = r.Header.Get("Authorization")
	return m.SearchCount
}

func (m *MockTwitter) tokenHandler(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.TokenCount++
	key, secret := m.consumerKey, m.consumerSecret
	m.mu.Unlock()

	user, pass, ok := r.BasicAuth()
	if r.Method != http.MethodPost || !ok {
		writeErrors(w, http.StatusForbidden, 99, "Unable to verify your credentials")
		return
	}
	// Credentials arrive form-encoded inside the basic auth header
	user, _ = url.QueryUnescape(user)
	pass, _ = url.QueryUnescape(pass)
	if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "client_credentials" {
		writeErrors(w, http.StatusForbidden, 170, "Missing required parameter: grant_type")
		return
	}
	if user != key || pass != secret {
		writeErrors(w, http.StatusForbidden, 99, "Unable to verify your credentials")
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"token_type":   "bearer",
		"access_token": MockBearerToken,
	})
}

func (m *MockTwitter) searchHandler(w http.ResponseWriter, r *http.Request) {
	call := m.track(r)

	if r.Header.Get("Authorization") != "Bearer "+MockBearerToken {
		writeErrors(w, http.StatusUnauthorized, 89, "Invalid or expired token.")
		return
	}

	m.mu.Lock()
	failAfter, failure := m.failAfter, m.failure
	remaining := m.remaining
	if m.remaining > 0 {
		m.remaining--
	}
	q := r.URL.Query()
	backlog := m.backlogs[q.Get("q")]
	m.mu.Unlock()

	w.Header().Set("X-Rate-Limit-Limit", "180")
	w.Header().Set("X-Rate-Limit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-Rate-Limit-Reset", strconv.FormatInt(time.Now().Add(15*time.Minute).Unix(), 10))

	if failure != nil && failAfter >= 0 && call > failAfter {
		writeResponse(w, *failure)
		return
	}

	count := 15
	if raw := q.Get("count"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			count = n
		}
	}
	if count > 100 {
		count = 100
	}
	maxID := int64(-1)
	if raw := q.Get("max_id"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			maxID = n
		}
	}

	page := make([]map[string]any, 0, count)
	for _, s := range backlog {
		if len(page) == count {
			break
		}
		if maxID >= 0 && s.ID > maxID {
			continue
		}
		page = append(page, map[string]any{
			"id":         s.ID,
			"id_str":     strconv.FormatInt(s.ID, 10),
			"created_at": s.CreatedAt.UTC().Format(time.RubyDate),
			"text":       s.Text,
			"user":       map[string]string{"screen_name": s.ScreenName},
		})
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"statuses": page,
		"search_metadata": map[string]any{
			"count": count,
			"query": q.Get("q"),
		},
	})
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		_, _ = w.Write([]byte(resp.Body))
	}
}

func writeErrors(w http.ResponseWriter, status, code int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, `{"errors":[{"code":%d,"message":%q}]}`, code, message)
}

// NewRateLimitResponse creates a 429 response carrying error code 88.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"errors":[{"code":88,"message":"Rate limit exceeded"}]}`,
		Headers: map[string]string{
			"X-Rate-Limit-Limit":     "180",
			"X-Rate-Limit-Remaining": "0",
			"X-Rate-Limit-Reset":     strconv.FormatInt(time.Now().Add(15*time.Minute).Unix(), 10),
			"Content-Type":           "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 503 response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusServiceUnavailable,
		Body:       `{"errors":[{"code":130,"message":"Over capacity"}]}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewClientErrorResponse creates a 400 response with the given message.
func NewClientErrorResponse(code int, message string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusBadRequest,
		Body:       fmt.Sprintf(`{"errors":[{"code":%d,"message":%q}]}`, code, message),
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}
