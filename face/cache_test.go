package face

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"moodscan/session"
)

func TestModelCacheLoadsOnce(t *testing.T) {
	var calls atomic.Int32
	det := NewFakeDetector()
	c := NewModelCache("primary", "fallback", func(ctx context.Context, source string) (Detector, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return det, nil
	})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := c.EnsureLoaded(context.Background())
			if err != nil || got != Detector(det) {
				t.Errorf("EnsureLoaded = %v, %v", got, err)
			}
		}()
	}
	wg.Wait()
	if n := calls.Load(); n != 1 {
		t.Errorf("loader called %d times, want 1", n)
	}
	if !c.Loaded() {
		t.Error("Loaded() = false")
	}
}

func TestModelCacheFallback(t *testing.T) {
	var sources []string
	det := NewFakeDetector()
	c := NewModelCache("primary", "fallback", func(ctx context.Context, source string) (Detector, error) {
		sources = append(sources, source)
		if source == "primary" {
			return nil, errors.New("unreachable")
		}
		return det, nil
	})
	got, err := c.EnsureLoaded(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != Detector(det) {
		t.Error("fallback detector not returned")
	}
	if len(sources) != 2 || sources[0] != "primary" || sources[1] != "fallback" {
		t.Errorf("sources = %v", sources)
	}
}

func TestModelCacheBothFail(t *testing.T) {
	fail := true
	c := NewModelCache("primary", "fallback", func(ctx context.Context, source string) (Detector, error) {
		if fail {
			return nil, errors.New(source + " down")
		}
		return NewFakeDetector(), nil
	})
	_, err := c.EnsureLoaded(context.Background())
	if !session.IsKind(err, session.KindModelLoad) {
		t.Fatalf("err = %v, want model load error", err)
	}
	if c.Loaded() {
		t.Error("failed load cached")
	}

	fail = false
	if _, err := c.EnsureLoaded(context.Background()); err != nil {
		t.Errorf("retry after failure: %v", err)
	}
}

func fakeInferenceServer(t *testing.T, models []string, dets []Detection) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/models":
			writeJSON(w, map[string]any{"models": models})
		case r.Method == http.MethodPost && r.URL.Path == "/detect":
			if r.Header.Get("Content-Type") != "image/jpeg" {
				http.Error(w, "want jpeg", http.StatusUnsupportedMediaType)
				return
			}
			writeJSON(w, map[string]any{"detections": dets})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}
