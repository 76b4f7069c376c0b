package services

// MimePreferences is the ordered list of container/codec combinations tried
// at start. The first one the encoder supports wins.
var MimePreferences = []string{
	"video/webm;codecs=vp9,opus",
	"video/webm;codecs=vp8,opus",
	"video/webm;codecs=h264,opus",
	"video/webm",
	"video/mp4",
}

// FallbackMimeType is declared when no preference is supported.
const FallbackMimeType = "video/webm"

// SelectMimeType returns the first entry of prefs accepted by supports, or
// FallbackMimeType.
func SelectMimeType(prefs []string, supports func(mimeType string) bool) string {
	if supports == nil {
		return FallbackMimeType
	}
	for _, mt := range prefs {
		if supports(mt) {
			return mt
		}
	}
	return FallbackMimeType
}
