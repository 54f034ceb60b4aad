package webhook

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelkit/core"
)

func TestSink_OnEventPostsToEndpoints(t *testing.T) {
	var hits int32
	var got core.Event
	var eventHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		eventHeader = r.Header.Get(HeaderEvent)
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = r.Body.Close()
	}))
	defer srv.Close()

	sink := New([]string{srv.URL, srv.URL})
	sink.OnEvent(core.NewScoreUpdated("u1", 5, 5))

	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
	assert.Equal(t, core.UserID("u1"), got.UserID)
	assert.Equal(t, "score_updated", eventHeader)
}

func TestSink_FiltersEventTypes(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	sink := New([]string{srv.URL}, WithEventTypes(core.EventLevelUp))
	sink.OnEvent(core.NewScoreUpdated("u1", 5, 5))
	sink.OnEvent(core.NewLevelUp("u1", core.TravelerLevel(100), 100))

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestSink_SignsBody(t *testing.T) {
	var sig string
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sig = r.Header.Get(HeaderSignature)
		body, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	sink := New([]string{srv.URL}, WithSecret("s3cret"))
	sink.OnEvent(core.NewAchievementUnlocked("u1", core.Achievement{ID: core.AchievementExplorer}))

	require.NotEmpty(t, body)
	assert.Equal(t, "sha256="+Sign([]byte("s3cret"), body), sig)
}

func TestSink_ToleratesFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	srv.Close()

	// closed server and no endpoints must not panic
	New([]string{srv.URL}).OnEvent(core.NewScoreUpdated("u1", 1, 1))
	New(nil).OnEvent(core.NewScoreUpdated("u1", 1, 1))
}
