// Package detector scans HTML documents for downloadable video sources.
package detector

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pagegrab/pagegrab/internal/models"
)

// Found is one downloadable video source discovered in a page.
type Found struct {
	URL    string
	Kind   models.TaskKind
	Format string
}

// maxPerKind bounds how many sources of each kind a single page may surface.
// Pages with hundreds of sources (ad slots, galleries) would otherwise swamp
// any consumer of the list.
const maxPerKind = 10

// Detect scans an HTML document for video sources. It collects the src of
// every <video> element and its nested <source> children, resolves them
// against pageURL and classifies each as a segmented HLS stream or a plain
// file. Duplicate URLs are reported once, first occurrence wins.
func Detect(body io.Reader, pageURL string) ([]Found, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page URL: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse HTML document: %w", err)
	}

	seen := map[string]struct{}{}
	perKind := map[models.TaskKind]int{}
	var found []Found
	add := func(raw string) {
		if raw == "" || strings.HasPrefix(raw, "blob:") {
			return
		}
		target, err := base.Parse(raw)
		if err != nil {
			return
		}
		u := target.String()
		if _, dup := seen[u]; dup {
			return
		}
		seen[u] = struct{}{}
		f := classify(u)
		if perKind[f.Kind] >= maxPerKind {
			return
		}
		perKind[f.Kind]++
		found = append(found, f)
	}

	doc.Find("video").Each(func(_ int, video *goquery.Selection) {
		if src, ok := video.Attr("src"); ok {
			add(src)
		}
		video.Find("source").Each(func(_ int, source *goquery.Selection) {
			if src, ok := source.Attr("src"); ok {
				add(src)
			}
		})
	})

	return found, nil
}

func classify(u string) Found {
	lower := strings.ToLower(u)
	if strings.Contains(lower, ".m3u8") {
		return Found{URL: u, Kind: models.KindSegmented, Format: "HLS"}
	}
	for _, ext := range []string{".mp4", ".webm", ".mkv", ".mov", ".ts"} {
		if strings.Contains(lower, ext) {
			return Found{URL: u, Kind: models.KindDirect, Format: strings.ToUpper(ext[1:])}
		}
	}
	return Found{URL: u, Kind: models.KindDirect, Format: "Unknown"}
}
