package verification_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JaimeStill/terra/internal/hotspots"
	"github.com/JaimeStill/terra/internal/verification"
	"github.com/JaimeStill/terra/pkg/geo"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeHotspots struct {
	spots map[string]*hotspots.Hotspot
	err   error
	calls int
}

func (f *fakeHotspots) Find(_ context.Context, id string) (*hotspots.Hotspot, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	h, ok := f.spots[id]
	if !ok {
		return nil, hotspots.ErrNotFound
	}
	return h, nil
}

var nyc = geo.Point{Latitude: 40.7128, Longitude: -74.0060}

func newHotspots() *fakeHotspots {
	return &fakeHotspots{spots: map[string]*hotspots.Hotspot{
		"central-park": {ID: "central-park", Name: "Central Park", Location: &nyc},
		"unmapped":     {ID: "unmapped", Name: "Unmapped"},
	}}
}

func ptr(s string) *string { return &s }

func TestLocationVerifier(t *testing.T) {
	near := &geo.Point{Latitude: 40.7130, Longitude: -74.0062}
	far := &geo.Point{Latitude: 40.7218, Longitude: -74.0060}

	tests := []struct {
		name    string
		point   *geo.Point
		hotspot *string
		err     error
		wantOK  bool
		wantErr error
	}{
		{"no hotspot", far, nil, nil, true, nil},
		{"empty hotspot", far, ptr(""), nil, true, nil},
		{"within radius", near, ptr("central-park"), nil, true, nil},
		{"exact location", &nyc, ptr("central-park"), nil, true, nil},
		{"one kilometer away", far, ptr("central-park"), nil, false, verification.ErrOutsideHotspot},
		{"unknown hotspot", near, ptr("nowhere"), nil, false, verification.ErrHotspotMissing},
		{"hotspot without location", near, ptr("unmapped"), nil, false, verification.ErrHotspotUnlocated},
		{"store failure", near, ptr("central-park"), errors.New("connection reset"), false, verification.ErrLocationUnchecked},
		{"missing point", nil, ptr("central-park"), nil, false, verification.ErrLocationUnchecked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			finder := newHotspots()
			finder.err = tt.err
			v := verification.NewLocationVerifier(finder, verification.DefaultRadius, discard())

			ok, err := v.Verify(context.Background(), tt.point, tt.hotspot)

			assert.Equal(t, tt.wantOK, ok)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLocationVerifierSkipsLookupWithoutHotspot(t *testing.T) {
	finder := newHotspots()
	v := verification.NewLocationVerifier(finder, 0, discard())

	ok, err := v.Verify(context.Background(), nil, nil)

	assert.True(t, ok)
	assert.NoError(t, err)
	assert.Zero(t, finder.calls)
}

func TestLocationVerifierRadius(t *testing.T) {
	far := &geo.Point{Latitude: 40.7218, Longitude: -74.0060}
	v := verification.NewLocationVerifier(newHotspots(), 1500, discard())

	ok, err := v.Verify(context.Background(), far, ptr("central-park"))

	assert.True(t, ok)
	assert.NoError(t, err)
}
