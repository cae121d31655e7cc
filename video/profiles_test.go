package video

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseResolution(t *testing.T) {
	tests := []struct {
		name           string
		resolution     string
		expectedWidth  int64
		expectedHeight int64
		expectErr      bool
	}{
		{name: "1080p", resolution: "1920x1080", expectedWidth: 1920, expectedHeight: 1080},
		{name: "240p", resolution: "426x240", expectedWidth: 426, expectedHeight: 240},
		{name: "empty is unconstrained", resolution: ""},
		{name: "missing height", resolution: "1920", expectErr: true},
		{name: "garbage", resolution: "axb", expectErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h, err := ParseResolution(tt.resolution)
			if tt.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.expectedWidth, w)
			require.Equal(t, tt.expectedHeight, h)
		})
	}
}

func TestSortByPreference(t *testing.T) {
	profiles := []EncodedProfile{
		{Name: "240p"},
		{Name: "weird"},
		{Name: "1080p"},
		{Name: "360p"},
		{Name: "720p"},
	}
	SortByPreference(profiles)
	names := make([]string, len(profiles))
	for i, p := range profiles {
		names[i] = p.Name
	}
	require.Equal(t, []string{"1080p", "720p", "360p", "240p", "weird"}, names)
}

func TestStandardLadderOrder(t *testing.T) {
	// The ladder is declared in preference order already; sorting must not
	// reorder it.
	ladder := append([]EncodedProfile{}, StandardLadder...)
	SortByPreference(ladder)
	require.Equal(t, StandardLadder, ladder)
}
