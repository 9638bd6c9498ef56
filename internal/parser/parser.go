// Package parser parses HLS (m3u8) playlist documents.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Sentinel errors.
var (
	// ErrNotPlaylist means the fetched document is not per-line playlist text.
	ErrNotPlaylist = errors.New("document is not playlist text")

	// ErrNestedMaster is raised by callers when a playlist reached through
	// variant selection turns out to be another master playlist.
	ErrNestedMaster = errors.New("nested master playlists are not supported")
)

// FetchError reports a failure to retrieve a manifest document.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch manifest %s: HTTP %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch manifest %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// lineScanner walks playlist lines with one token of lookahead. Tag pairing
// ("the next non-tag line is this tag's URL") is expressed through peek.
type lineScanner struct {
	lines []string
	pos   int
}

func newLineScanner(text string) *lineScanner {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		lines = append(lines, strings.TrimSpace(l))
	}
	return &lineScanner{lines: lines}
}

// next returns the current line and advances. ok is false at end of input.
func (s *lineScanner) next() (string, bool) {
	if s.pos >= len(s.lines) {
		return "", false
	}
	l := s.lines[s.pos]
	s.pos++
	return l, true
}

// peekURI returns the next non-blank line if it is a URI line (not a tag).
func (s *lineScanner) peekURI() (string, bool) {
	for i := s.pos; i < len(s.lines); i++ {
		l := s.lines[i]
		if l == "" {
			continue
		}
		if isTag(l) {
			return "", false
		}
		s.pos = i + 1
		return l, true
	}
	return "", false
}

func (s *lineScanner) reset() { s.pos = 0 }

func isTag(line string) bool { return strings.HasPrefix(line, "#") }

// attrRe matches KEY=VALUE pairs where VALUE is either quoted or runs to the
// next comma.
var attrRe = regexp.MustCompile(`([A-Z0-9-]+)=("[^"]*"|[^,]*)`)

// parseAttributes parses the attribute list of a playlist tag. Quoted values
// are returned without their quotes.
func parseAttributes(s string) map[string]string {
	attrs := make(map[string]string)
	for _, m := range attrRe.FindAllStringSubmatch(s, -1) {
		if len(m) < 3 {
			continue
		}
		attrs[m[1]] = strings.Trim(m[2], `"`)
	}
	return attrs
}

// baseOf truncates a manifest URL to its last path segment. Relative segment
// and rendition references resolve against this base, never against the
// requesting page.
func baseOf(manifestURL string) *url.URL {
	s := manifestURL
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[:i+1]
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil
	}
	return u
}

// resolveRef resolves a playlist reference against the manifest base.
func resolveRef(base *url.URL, ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	if base == nil {
		return ref
	}
	rel, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(rel).String()
}

// looksLikeText rejects payloads that cannot be per-line playlist text.
func looksLikeText(body []byte) bool {
	if bytes.IndexByte(body, 0) >= 0 {
		return false
	}
	return utf8.Valid(body)
}
