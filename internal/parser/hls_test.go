package parser

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

const masterDoc = `#EXTM3U
#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID="aud1",NAME="English",URI="audio/en.m3u8"
#EXT-X-STREAM-INF:BANDWIDTH=1000000,RESOLUTION=1280x720
720/video.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=2500000,RESOLUTION=1920x1080,AUDIO="aud1"
1080/video.m3u8
`

const leafDoc = `#EXTM3U
#EXT-X-TARGETDURATION:10
#EXTINF:9.0,
seg0.ts
#EXTINF:9.0,
seg1.ts
#EXTINF:9.0,
seg2.ts
#EXTINF:9.0,
seg3.ts
#EXTINF:4.2,
seg4.ts
#EXT-X-ENDLIST
`

func serve(t *testing.T, doc string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(doc))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestParseMaster(t *testing.T) {
	srv := serve(t, masterDoc)
	p := New(srv.Client(), nil)

	m, err := p.Parse(context.Background(), srv.URL+"/live/master.m3u8")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !m.IsMaster() {
		t.Fatal("expected master classification")
	}

	variants := m.Master.Variants
	if len(variants) != 2 {
		t.Fatalf("variants = %d, want 2", len(variants))
	}

	// Sorted by height descending: 1080p first.
	best := variants[0]
	if best.Height != 1080 || best.Width != 1920 {
		t.Errorf("best variant = %dx%d, want 1920x1080", best.Width, best.Height)
	}
	if best.Bandwidth != 2500000 {
		t.Errorf("best bandwidth = %d, want 2500000", best.Bandwidth)
	}
	if best.ResolutionLabel() != "1080p" {
		t.Errorf("label = %q, want 1080p", best.ResolutionLabel())
	}
	if best.URL != srv.URL+"/live/1080/video.m3u8" {
		t.Errorf("variant URL = %q, not resolved against manifest base", best.URL)
	}

	if best.Audio == nil {
		t.Fatal("1080p variant should reference the aud1 track")
	}
	if best.Audio.GroupID != "aud1" || best.Audio.Name != "English" {
		t.Errorf("audio = %+v, want group aud1 / English", best.Audio)
	}
	if best.Audio.URL != srv.URL+"/live/audio/en.m3u8" {
		t.Errorf("audio URL = %q, not resolved against manifest base", best.Audio.URL)
	}

	// The 720p variant has no AUDIO attribute and stays unpaired.
	if variants[1].Audio != nil {
		t.Errorf("720p variant unexpectedly paired with %+v", variants[1].Audio)
	}
}

func TestParseLeaf(t *testing.T) {
	srv := serve(t, leafDoc)
	p := New(srv.Client(), nil)

	m, err := p.Parse(context.Background(), srv.URL+"/vod/index.m3u8")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.IsMaster() {
		t.Fatal("expected leaf classification")
	}

	segs := m.Leaf.Segments
	if len(segs) != 5 {
		t.Fatalf("segments = %d, want 5", len(segs))
	}
	for i, s := range segs {
		if s.Index != i {
			t.Errorf("segment %d has index %d", i, s.Index)
		}
	}
	if segs[0].URL != srv.URL+"/vod/seg0.ts" {
		t.Errorf("segment URL = %q, not resolved against manifest base", segs[0].URL)
	}
}

func TestClassificationRequiresResolution(t *testing.T) {
	// Tag soup without RESOLUTION anywhere must classify as leaf.
	doc := `#EXTM3U
#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID="aud1",URI="a.m3u8"
#EXT-X-VERSION:4
seg.ts
`
	srv := serve(t, doc)
	p := New(srv.Client(), nil)

	m, err := p.Parse(context.Background(), srv.URL+"/x.m3u8")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.IsMaster() {
		t.Fatal("document without RESOLUTION classified as master")
	}
	if len(m.Leaf.Segments) != 1 {
		t.Fatalf("segments = %d, want 1", len(m.Leaf.Segments))
	}
}

func TestVariantSortIsStable(t *testing.T) {
	doc := `#EXT-X-STREAM-INF:BANDWIDTH=1,RESOLUTION=1280x720
first.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=2,RESOLUTION=1280x720
second.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=3,RESOLUTION=640x360
third.m3u8
`
	srv := serve(t, doc)
	p := New(srv.Client(), nil)

	m, err := p.Parse(context.Background(), srv.URL+"/m.m3u8")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	v := m.Master.Variants
	if len(v) != 3 {
		t.Fatalf("variants = %d, want 3", len(v))
	}
	if v[0].Bandwidth != 1 || v[1].Bandwidth != 2 {
		t.Errorf("equal-height variants reordered: %d then %d", v[0].Bandwidth, v[1].Bandwidth)
	}
	if v[2].Height != 360 {
		t.Errorf("lowest variant height = %d, want 360", v[2].Height)
	}
}

func TestAudioGroupFallback(t *testing.T) {
	doc := `#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID="main",URI="a.m3u8"
#EXT-X-STREAM-INF:RESOLUTION=1280x720,AUDIO="missing"
v.m3u8
`
	srv := serve(t, doc)
	p := New(srv.Client(), nil)

	m, err := p.Parse(context.Background(), srv.URL+"/m.m3u8")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	v := m.Master.Variants[0]
	if v.Audio == nil || v.Audio.GroupID != "main" {
		t.Fatalf("unmatched group should fall back to first audio track, got %+v", v.Audio)
	}
}

func TestAudioNameDefault(t *testing.T) {
	doc := `#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID="g",URI="a.m3u8"
#EXT-X-STREAM-INF:RESOLUTION=640x360,AUDIO="g"
v.m3u8
`
	srv := serve(t, doc)
	p := New(srv.Client(), nil)

	m, err := p.Parse(context.Background(), srv.URL+"/m.m3u8")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := m.Master.AudioTracks[0].Name; got != "Audio" {
		t.Errorf("missing NAME should default to Audio, got %q", got)
	}
}

func TestMediaWithoutURISkipped(t *testing.T) {
	doc := `#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID="g",NAME="muxed"
#EXT-X-STREAM-INF:RESOLUTION=640x360,AUDIO="g"
v.m3u8
`
	srv := serve(t, doc)
	p := New(srv.Client(), nil)

	m, err := p.Parse(context.Background(), srv.URL+"/m.m3u8")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(m.Master.AudioTracks) != 0 {
		t.Fatalf("URI-less media entry should not produce a track")
	}
	if m.Master.Variants[0].Audio != nil {
		t.Fatal("variant paired with a track that has nothing to download")
	}
}

func TestFetchErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	p := New(srv.Client(), nil)
	_, err := p.Parse(context.Background(), srv.URL+"/gone.m3u8")

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v, want *FetchError", err)
	}
	if fe.Status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", fe.Status)
	}
}

func TestBinaryPayloadRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte{0x00, 0x01, 0x02, 0xff})
	}))
	defer srv.Close()

	p := New(srv.Client(), nil)
	_, err := p.Parse(context.Background(), srv.URL+"/blob")
	if !errors.Is(err, ErrNotPlaylist) {
		t.Fatalf("error = %v, want ErrNotPlaylist", err)
	}
}
