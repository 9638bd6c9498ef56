package engine

import (
	"errors"
	"testing"

	"github.com/pagegrab/pagegrab/internal/models"
)

func TestSelectVariantPicksFirst(t *testing.T) {
	aud := &models.AudioTrack{URL: "http://cdn/aud.m3u8", GroupID: "aud1"}
	master := &models.Master{
		Variants: []*models.Variant{
			{URL: "http://cdn/1080.m3u8", Height: 1080, Audio: aud},
			{URL: "http://cdn/720.m3u8", Height: 720},
		},
	}

	v, a, err := SelectVariant(master)
	if err != nil {
		t.Fatalf("SelectVariant: %v", err)
	}
	if v.Height != 1080 {
		t.Errorf("selected height = %d, want 1080", v.Height)
	}
	if a != aud {
		t.Errorf("audio track = %v, want paired track", a)
	}
}

func TestSelectVariantNoAudio(t *testing.T) {
	master := &models.Master{
		Variants: []*models.Variant{{URL: "http://cdn/v.m3u8", Height: 720}},
	}
	_, a, err := SelectVariant(master)
	if err != nil {
		t.Fatalf("SelectVariant: %v", err)
	}
	if a != nil {
		t.Errorf("audio track = %v, want nil", a)
	}
}

func TestSelectVariantEmpty(t *testing.T) {
	_, _, err := SelectVariant(&models.Master{})
	if !errors.Is(err, ErrNoVariants) {
		t.Errorf("err = %v, want ErrNoVariants", err)
	}
}
