package video

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// EncodedProfile describes one target rendition: a representation name, a
// video bitrate in bits per second and a "WxH" resolution. Resolution may be
// empty, in which case the encoder falls back to 1280x720 and the
// feasibility filter always admits the profile.
type EncodedProfile struct {
	Name       string `json:"representationId"`
	Bitrate    int64  `json:"bitrate"`
	Resolution string `json:"resolution,omitempty"`
}

// StandardLadder is the default rendition set applied when a transcode is
// started without explicit profiles.
var StandardLadder = []EncodedProfile{
	{Name: "1080p", Bitrate: 3_500_000, Resolution: "1920x1080"},
	{Name: "720p", Bitrate: 1_800_000, Resolution: "1280x720"},
	{Name: "360p", Bitrate: 650_000, Resolution: "640x360"},
	{Name: "240p", Bitrate: 400_000, Resolution: "426x240"},
}

// ParseResolution splits a "WxH" string. An empty string is valid and
// returns (0, 0) so callers can treat the height as unconstrained.
func ParseResolution(resolution string) (width, height int64, err error) {
	if resolution == "" {
		return 0, 0, nil
	}
	parts := strings.SplitN(resolution, "x", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid resolution %q", resolution)
	}
	width, err = strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid resolution width %q: %w", resolution, err)
	}
	height, err = strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid resolution height %q: %w", resolution, err)
	}
	return width, height, nil
}

// Height returns the profile's target height, or 0 when no resolution is set
// or it cannot be parsed.
func (p EncodedProfile) Height() int64 {
	_, h, err := ParseResolution(p.Resolution)
	if err != nil {
		return 0
	}
	return h
}

var preferenceOrder = map[string]int{
	"1080p": 0,
	"720p":  1,
	"360p":  2,
	"240p":  3,
}

func profileOrder(name string) int {
	if o, ok := preferenceOrder[name]; ok {
		return o
	}
	return 99
}

// SortByPreference orders profiles 1080p, 720p, 360p, 240p with unknown
// representations last. The worker relies on this order being stable: the
// encoder's variant ordinals are the positions in the sorted producible
// list.
func SortByPreference(profiles []EncodedProfile) {
	sort.SliceStable(profiles, func(i, j int) bool {
		return profileOrder(profiles[i].Name) < profileOrder(profiles[j].Name)
	})
}
