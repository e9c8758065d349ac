package webhook

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"rewardkit/core"
)

func TestSink_OnEventPostsToEndpoints(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = io.ReadAll(r.Body)
		_ = r.Body.Close()
	}))
	defer srv.Close()

	sink := New([]string{srv.URL})
	sink.OnEvent(core.NewXPGranted("u1", core.ActionVideoWatch, "", 3, 3, 1))

	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", hits)
	}
}

func TestSink_EventTypeFilter(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	sink := New([]string{srv.URL}, WithEventTypes(core.EventLevelUp))
	sink.OnEvent(core.NewXPGranted("u1", core.ActionVideoWatch, "", 3, 3, 1))
	sink.OnEvent(core.NewLevelUp("u1", 100, 2))

	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected only the level_up delivery, got %d", hits)
	}
}
