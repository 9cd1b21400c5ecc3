package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotCounts(t *testing.T) {
	t.Parallel()

	m := New()
	m.IncConsumed()
	m.IncConsumed()
	m.IncAcked()
	m.IncNacked()
	m.IncUnknown()
	m.IncEmailFailed()
	m.IncReconnect()

	s := m.Snapshot()
	assert.EqualValues(t, 2, s.Consumed)
	assert.EqualValues(t, 1, s.Acked)
	assert.EqualValues(t, 1, s.Nacked)
	assert.EqualValues(t, 1, s.UnknownEvents)
	assert.EqualValues(t, 1, s.EmailsFailed)
	assert.EqualValues(t, 1, s.Reconnects)
	assert.Zero(t, s.EmailsSent)
}

func TestHandlerServesJSON(t *testing.T) {
	t.Parallel()

	m := New()
	m.IncCreated()
	m.IncDirectoryHit()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.EqualValues(t, 1, got["notifications_created"])
	assert.EqualValues(t, 1, got["directory_hits"])
	assert.EqualValues(t, 0, got["nacked"])
}
