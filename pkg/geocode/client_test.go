package geocode

import (
	"context"
	"errors"
	"testing"

	"github.com/Sternrassler/tweet-datasource/internal/testutil"
	"github.com/Sternrassler/tweet-datasource/pkg/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGeocoder(t *testing.T, mock *testutil.MockGeocoder, key string) *Client {
	t.Helper()

	c, err := New(Config{APIKey: key, BaseURL: mock.URL()})
	require.NoError(t, err)
	return c
}

func TestNew_RequiresKey(t *testing.T) {
	_, err := New(Config{})
	assert.EqualError(t, err, "maps api key is required")
}

func TestClient_Resolve(t *testing.T) {
	mock := testutil.NewMockGeocoder()
	defer mock.Close()
	mock.SetLocation("Vassar College, Poughkeepsie, NY", 41.6868, -73.8957)

	c := newTestGeocoder(t, mock, testutil.MockMapsKey)

	coord, err := c.Resolve(context.Background(), "Vassar College, Poughkeepsie, NY")
	require.NoError(t, err)
	assert.Equal(t, query.Coordinate{Latitude: 41.6868, Longitude: -73.8957}, coord)
	assert.Equal(t, 1, mock.GetRequestCount())
}

func TestClient_Resolve_Unknown(t *testing.T) {
	mock := testutil.NewMockGeocoder()
	defer mock.Close()

	c := newTestGeocoder(t, mock, testutil.MockMapsKey)

	_, err := c.Resolve(context.Background(), "nowhere at all")
	assert.Error(t, err)
}

func TestClient_Resolve_Denied(t *testing.T) {
	mock := testutil.NewMockGeocoder()
	defer mock.Close()
	mock.SetLocation("Paris", 48.8566, 2.3522)

	c := newTestGeocoder(t, mock, "AIzaWrongKey")

	_, err := c.Resolve(context.Background(), "Paris")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoResults))
}
