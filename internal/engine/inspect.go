package engine

import (
	"bytes"
	"fmt"
	"time"

	"github.com/Eyevinn/mp4ff/mp4"
)

// ArtifactInfo summarizes a finished artifact for display.
type ArtifactInfo struct {
	Container string
	Tracks    []string
	Duration  time.Duration
}

func (a *ArtifactInfo) String() string {
	if len(a.Tracks) == 0 {
		return a.Container
	}
	s := fmt.Sprintf("%s, tracks: %v", a.Container, a.Tracks)
	if a.Duration > 0 {
		s += fmt.Sprintf(", duration %s", a.Duration.Round(time.Second))
	}
	return s
}

// DescribeArtifact inspects a saved artifact. MP4 containers yield track and
// duration details; raw transport-stream concatenations are reported as-is
// since they carry no index to read.
func DescribeArtifact(data []byte) *ArtifactInfo {
	if len(data) > 0 && data[0] == 0x47 {
		return &ArtifactInfo{Container: "MPEG-TS"}
	}

	f, err := mp4.DecodeFile(bytes.NewReader(data))
	if err != nil || f.Moov == nil {
		return &ArtifactInfo{Container: "unknown"}
	}

	info := &ArtifactInfo{Container: "MP4"}
	if f.Moov.Mvhd != nil {
		info.Duration = scaleDuration(f.Moov.Mvhd.Duration, uint64(f.Moov.Mvhd.Timescale))
	}
	for _, trak := range f.Moov.Traks {
		if trak.Mdia == nil || trak.Mdia.Hdlr == nil {
			continue
		}
		switch trak.Mdia.Hdlr.HandlerType {
		case "vide":
			info.Tracks = append(info.Tracks, "video")
		case "soun":
			info.Tracks = append(info.Tracks, "audio")
		default:
			info.Tracks = append(info.Tracks, trak.Mdia.Hdlr.HandlerType)
		}
	}
	return info
}

// scaleDuration converts a timescale-denominated duration to a time.Duration.
// Dividing before scaling to nanoseconds keeps long recordings from
// overflowing int64.
func scaleDuration(units, timescale uint64) time.Duration {
	if timescale == 0 {
		return 0
	}
	whole := units / timescale
	frac := units % timescale
	return time.Duration(whole)*time.Second + time.Duration(frac*uint64(time.Second)/timescale)
}
