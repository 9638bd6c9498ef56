package parser

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/pagegrab/pagegrab/internal/models"
)

const (
	tagStreamInf = "#EXT-X-STREAM-INF:"
	tagMedia     = "#EXT-X-MEDIA:"
)

// HLSParser fetches and parses m3u8 playlists.
type HLSParser struct {
	client  *http.Client
	headers map[string]string
}

// New creates a parser using the given HTTP client. A nil client falls back
// to http.DefaultClient.
func New(client *http.Client, headers map[string]string) *HLSParser {
	if client == nil {
		client = http.DefaultClient
	}
	return &HLSParser{client: client, headers: headers}
}

// Parse fetches the playlist at manifestURL and returns either a master
// (multi-variant) or leaf (segment list) manifest.
//
// A document is classified as master when any tag line carries a RESOLUTION
// attribute, regardless of position; everything else is a leaf.
func (p *HLSParser) Parse(ctx context.Context, manifestURL string) (*models.Manifest, error) {
	text, err := p.fetch(ctx, manifestURL)
	if err != nil {
		return nil, err
	}
	return p.parseText(text, manifestURL)
}

func (p *HLSParser) parseText(text, manifestURL string) (*models.Manifest, error) {
	base := baseOf(manifestURL)
	manifest := &models.Manifest{URL: manifestURL}

	if isMasterDocument(text) {
		manifest.Master = parseMaster(text, base)
		return manifest, nil
	}
	manifest.Leaf = parseLeaf(text, base)
	return manifest, nil
}

// isMasterDocument reports whether any tag line declares a RESOLUTION
// attribute. Downstream behavior depends on this exact trigger.
func isMasterDocument(text string) bool {
	sc := newLineScanner(text)
	for {
		line, ok := sc.next()
		if !ok {
			return false
		}
		if isTag(line) && strings.Contains(line, "RESOLUTION=") {
			return true
		}
	}
}

// parseMaster extracts variants and audio tracks in two passes over the full
// document: audio declarations first, then stream-info tags paired with their
// following URI line.
func parseMaster(text string, base *url.URL) *models.Master {
	sc := newLineScanner(text)
	master := &models.Master{}

	// Pass 1: audio renditions. Entries without a URI are multiplexed into
	// the video segments and carry nothing to download.
	for {
		line, ok := sc.next()
		if !ok {
			break
		}
		if !strings.HasPrefix(line, tagMedia) {
			continue
		}
		attrs := parseAttributes(strings.TrimPrefix(line, tagMedia))
		if !strings.EqualFold(attrs["TYPE"], "AUDIO") {
			continue
		}
		uri, ok := attrs["URI"]
		if !ok || uri == "" {
			continue
		}
		name := attrs["NAME"]
		if name == "" {
			name = "Audio"
		}
		master.AudioTracks = append(master.AudioTracks, &models.AudioTrack{
			URL:     resolveRef(base, uri),
			GroupID: attrs["GROUP-ID"],
			Name:    name,
		})
	}

	// Pass 2: variants. The URI line following each stream-info tag is the
	// variant's playlist; a tag with no following URI line is skipped.
	sc.reset()
	for {
		line, ok := sc.next()
		if !ok {
			break
		}
		if !strings.HasPrefix(line, tagStreamInf) {
			continue
		}
		uri, ok := sc.peekURI()
		if !ok {
			continue
		}
		attrs := parseAttributes(strings.TrimPrefix(line, tagStreamInf))

		v := &models.Variant{URL: resolveRef(base, uri)}
		if res, ok := attrs["RESOLUTION"]; ok {
			if w, h, ok := splitResolution(res); ok {
				v.Width, v.Height = w, h
			}
		}
		if bw, ok := attrs["BANDWIDTH"]; ok {
			v.Bandwidth, _ = strconv.ParseInt(bw, 10, 64)
		}
		if group, ok := attrs["AUDIO"]; ok && len(master.AudioTracks) > 0 {
			v.Audio = findAudioTrack(master.AudioTracks, group)
		}
		master.Variants = append(master.Variants, v)
	}

	// Highest resolution first; ties keep encounter order.
	sort.SliceStable(master.Variants, func(i, j int) bool {
		return master.Variants[i].Height > master.Variants[j].Height
	})
	return master
}

// parseLeaf collects every non-blank, non-tag line as a segment URL in
// document order.
func parseLeaf(text string, base *url.URL) *models.Leaf {
	sc := newLineScanner(text)
	leaf := &models.Leaf{}
	for {
		line, ok := sc.next()
		if !ok {
			break
		}
		if line == "" || isTag(line) {
			continue
		}
		leaf.Segments = append(leaf.Segments, &models.Segment{
			URL:   resolveRef(base, line),
			Index: len(leaf.Segments),
		})
	}
	return leaf
}

// findAudioTrack matches a variant's AUDIO group-id against declared tracks,
// falling back to the first track when the group has no match.
func findAudioTrack(tracks []*models.AudioTrack, groupID string) *models.AudioTrack {
	for _, t := range tracks {
		if t.GroupID == groupID {
			return t
		}
	}
	return tracks[0]
}

func splitResolution(s string) (w, h int, ok bool) {
	parts := strings.SplitN(s, "x", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	w, errW := strconv.Atoi(parts[0])
	h, errH := strconv.Atoi(parts[1])
	if errW != nil || errH != nil {
		return 0, 0, false
	}
	return w, h, true
}

func (p *HLSParser) fetch(ctx context.Context, manifestURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, manifestURL, nil)
	if err != nil {
		return "", &FetchError{URL: manifestURL, Err: err}
	}
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", &FetchError{URL: manifestURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &FetchError{URL: manifestURL, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &FetchError{URL: manifestURL, Err: err}
	}
	if !looksLikeText(body) {
		return "", ErrNotPlaylist
	}
	return string(body), nil
}
