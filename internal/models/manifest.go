// Package models defines core data structures for captured streams and tasks.
package models

import "fmt"

// Manifest is the result of parsing one playlist document. Exactly one of
// Master or Leaf is set.
type Manifest struct {
	URL    string
	Master *Master
	Leaf   *Leaf
}

// IsMaster reports whether the manifest describes a multi-variant playlist.
func (m *Manifest) IsMaster() bool {
	return m.Master != nil
}

// Master describes a multi-variant playlist: selectable video renditions and
// any separately declared audio tracks.
type Master struct {
	Variants    []*Variant
	AudioTracks []*AudioTrack
}

// Leaf describes a media playlist: an ordered list of segments. A Leaf never
// contains sub-playlists.
type Leaf struct {
	Segments []*Segment
}

// Variant is one selectable video rendition within a master playlist.
// Variants are sorted by Height descending at parse time; that ordering is the
// selection policy.
type Variant struct {
	URL       string
	Width     int
	Height    int
	Bandwidth int64

	// Audio is the separately declared audio track paired with this variant
	// by GROUP-ID, or nil when audio is multiplexed into the video segments.
	Audio *AudioTrack
}

// ResolutionLabel returns a display string for the variant's resolution.
func (v *Variant) ResolutionLabel() string {
	if v.Height <= 0 {
		return "Unknown"
	}
	return fmt.Sprintf("%dp", v.Height)
}

// AudioTrack is a separately declared audio rendition.
type AudioTrack struct {
	URL     string
	GroupID string
	Name    string
}

// Segment is one fetchable chunk of a continuous media stream. Order is
// significant.
type Segment struct {
	URL   string
	Index int
}
