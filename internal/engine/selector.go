// Package engine supervises download tasks end-to-end: variant selection,
// sequential segment fetching, merge resolution and progress accounting.
package engine

import (
	"errors"

	"github.com/pagegrab/pagegrab/internal/models"
)

// ErrNoVariants means a master playlist declared no video renditions.
var ErrNoVariants = errors.New("no video variants found in master playlist")

// SelectVariant picks the rendition to download from a master playlist.
//
// The policy is fixed best-quality: variants are already sorted by height
// descending at parse time, so the first entry wins; ties keep document
// order. The variant's paired audio track (possibly nil) passes through
// unchanged.
func SelectVariant(master *models.Master) (*models.Variant, *models.AudioTrack, error) {
	if len(master.Variants) == 0 {
		return nil, nil, ErrNoVariants
	}
	best := master.Variants[0]
	return best, best.Audio, nil
}
