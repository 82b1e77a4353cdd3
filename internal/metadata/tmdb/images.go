package tmdb

import "strings"

// ImageSize is a TMDb image size token.
type ImageSize string

// Supported image sizes.
const (
	PosterSmall    ImageSize = "w185"
	PosterMedium   ImageSize = "w342"
	PosterLarge    ImageSize = "w500"
	BackdropSmall  ImageSize = "w300"
	BackdropMedium ImageSize = "w780"
	BackdropLarge  ImageSize = "w1280"
	Original       ImageSize = "original"
)

// ImageSizes lists every supported size token.
var ImageSizes = []ImageSize{
	PosterSmall, PosterMedium, PosterLarge,
	BackdropSmall, BackdropMedium, BackdropLarge,
	Original,
}

// Valid reports whether s is one of the supported tokens.
func (s ImageSize) Valid() bool {
	for _, known := range ImageSizes {
		if s == known {
			return true
		}
	}
	return false
}

// ParseImageSize maps a token ("w500") or a name ("poster-large") to an ImageSize.
func ParseImageSize(v string) (ImageSize, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	if s := ImageSize(v); s.Valid() {
		return s, true
	}
	names := map[string]ImageSize{
		"poster-small":    PosterSmall,
		"poster-medium":   PosterMedium,
		"poster-large":    PosterLarge,
		"backdrop-small":  BackdropSmall,
		"backdrop-medium": BackdropMedium,
		"backdrop-large":  BackdropLarge,
	}
	s, ok := names[v]
	return s, ok
}

// ImageURL returns the full URL for an image path on the default image host.
func ImageURL(path string, size ImageSize) string {
	return joinImageURL(defaultImageBaseURL, path, size)
}

func joinImageURL(base, path string, size ImageSize) string {
	if path == "" {
		return ""
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimRight(base, "/") + "/" + string(size) + path
}

// YouTubeURL returns the watch URL for a YouTube video key.
func YouTubeURL(key string) string {
	if key == "" {
		return ""
	}
	return "https://www.youtube.com/watch?v=" + key
}

// IsTrailer reports whether v is a YouTube trailer.
func (v Video) IsTrailer() bool {
	return v.Type == "Trailer" && v.Site == "YouTube"
}

// WatchURL returns the playback URL, or "" for non-YouTube sites.
func (v Video) WatchURL() string {
	if v.Site != "YouTube" {
		return ""
	}
	return YouTubeURL(v.Key)
}

// PickTrailer returns the first YouTube trailer, falling back to the first
// YouTube video of any type.
func PickTrailer(videos []Video) (Video, bool) {
	for _, v := range videos {
		if v.IsTrailer() {
			return v, true
		}
	}
	for _, v := range videos {
		if v.Site == "YouTube" {
			return v, true
		}
	}
	return Video{}, false
}
