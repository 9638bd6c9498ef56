package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/pagegrab/pagegrab/internal/models"
)

// SegmentError reports the first segment that failed to download. Index is
// the segment's zero-based position in its track.
type SegmentError struct {
	Index  int
	Status int
	Err    error
}

func (e *SegmentError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("segment %d: HTTP %d", e.Index, e.Status)
	}
	return fmt.Sprintf("segment %d: %v", e.Index, e.Err)
}

func (e *SegmentError) Unwrap() error { return e.Err }

// Fetcher downloads segment lists strictly in order.
type Fetcher struct {
	client  *http.Client
	headers map[string]string
}

// NewFetcher creates a segment fetcher. A nil client falls back to
// http.DefaultClient.
func NewFetcher(client *http.Client, headers map[string]string) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{client: client, headers: headers}
}

// FetchAll retrieves every segment in order and returns their bodies.
//
// Segment i+1 is not requested until segment i's body has been fully read;
// this bounds memory growth and keeps progress monotonic at the cost of
// throughput. After each successful segment, onDone is invoked synchronously
// with (completed, total) before the next request starts. The first failure
// aborts the whole operation with a SegmentError; there is no retry and no
// partial result.
func (f *Fetcher) FetchAll(ctx context.Context, segments []*models.Segment, onDone func(completed, total int)) ([][]byte, error) {
	total := len(segments)
	out := make([][]byte, 0, total)

	for i, seg := range segments {
		data, err := f.fetchOne(ctx, seg)
		if err != nil {
			return nil, err
		}
		out = append(out, data)
		if onDone != nil {
			onDone(i+1, total)
		}
	}
	return out, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, seg *models.Segment) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, seg.URL, nil)
	if err != nil {
		return nil, &SegmentError{Index: seg.Index, Err: err}
	}
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &SegmentError{Index: seg.Index, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &SegmentError{Index: seg.Index, Status: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &SegmentError{Index: seg.Index, Err: err}
	}
	return data, nil
}
