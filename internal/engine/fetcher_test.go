package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/pagegrab/pagegrab/internal/models"
)

func segmentList(baseURL string, n int) []*models.Segment {
	segs := make([]*models.Segment, n)
	for i := range segs {
		segs[i] = &models.Segment{URL: fmt.Sprintf("%s/seg%d.ts", baseURL, i), Index: i}
	}
	return segs
}

func TestFetchAllSequential(t *testing.T) {
	var inFlight, maxInFlight int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur := atomic.AddInt32(&inFlight, 1)
		defer atomic.AddInt32(&inFlight, -1)
		for {
			old := atomic.LoadInt32(&maxInFlight)
			if cur <= old || atomic.CompareAndSwapInt32(&maxInFlight, old, cur) {
				break
			}
		}
		fmt.Fprint(w, strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/"), ".ts"))
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), nil)
	var calls []int
	bodies, err := f.FetchAll(context.Background(), segmentList(srv.URL, 4), func(completed, total int) {
		if total != 4 {
			t.Errorf("total = %d, want 4", total)
		}
		calls = append(calls, completed)
	})
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(bodies) != 4 {
		t.Fatalf("got %d bodies, want 4", len(bodies))
	}
	if got := string(bodies[2]); got != "seg2" {
		t.Errorf("bodies[2] = %q, want %q", got, "seg2")
	}
	for i, c := range calls {
		if c != i+1 {
			t.Fatalf("callback sequence %v, want strictly increasing from 1", calls)
		}
	}
	if atomic.LoadInt32(&maxInFlight) != 1 {
		t.Errorf("max concurrent requests = %d, want 1", maxInFlight)
	}
}

func TestFetchAllAbortsOnFirstFailure(t *testing.T) {
	var requested []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = append(requested, r.URL.Path)
		if r.URL.Path == "/seg2.ts" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, "data")
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), nil)
	_, err := f.FetchAll(context.Background(), segmentList(srv.URL, 5), nil)

	var segErr *SegmentError
	if !errors.As(err, &segErr) {
		t.Fatalf("err = %v, want *SegmentError", err)
	}
	if segErr.Index != 2 || segErr.Status != http.StatusNotFound {
		t.Errorf("SegmentError = {Index:%d Status:%d}, want {2 404}", segErr.Index, segErr.Status)
	}
	if !strings.Contains(err.Error(), "segment 2") {
		t.Errorf("error %q should name the failed segment", err)
	}
	// seg3 and seg4 must never have been requested.
	if len(requested) != 3 {
		t.Errorf("requested %v, want requests to stop after the failure", requested)
	}
}

func TestFetchAllSendsHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Referer") != "http://page.example/" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), map[string]string{"Referer": "http://page.example/"})
	if _, err := f.FetchAll(context.Background(), segmentList(srv.URL, 1), nil); err != nil {
		t.Fatalf("FetchAll with headers: %v", err)
	}
}

func TestFetchAllEmpty(t *testing.T) {
	f := NewFetcher(nil, nil)
	bodies, err := f.FetchAll(context.Background(), nil, func(int, int) {
		t.Error("callback invoked for empty segment list")
	})
	if err != nil || len(bodies) != 0 {
		t.Errorf("FetchAll(nil) = (%v, %v), want empty result", bodies, err)
	}
}
