package convert

import "strings"

// FailureKind is the coarse classification of a conversion failure.
type FailureKind int

const (
	// FailureGeneric is the fallback when no known pattern matched.
	FailureGeneric FailureKind = iota
	// FailureNoAudioTrack means the input has no audio stream to extract.
	FailureNoAudioTrack
	// FailureUnsupportedFormat means the input is corrupt or in a format
	// the engine cannot decode.
	FailureUnsupportedFormat
	// FailureTimeout means the engine gave up waiting.
	FailureTimeout
	// FailureOutOfMemory means the engine ran out of memory.
	FailureOutOfMemory
)

// Classification qualifies a conversion failure for display. Matching is
// substring heuristics over the engine's free-text output, so Confident
// is false for the generic fallback: the log format is not a stable
// contract and a non-match proves nothing.
type Classification struct {
	Kind      FailureKind
	Confident bool
	Message   string
}

// failurePatterns maps log substrings (lowercase) to failure kinds. First
// match wins, so more specific patterns come first.
var failurePatterns = []struct {
	substr string
	kind   FailureKind
}{
	{"matches no streams", FailureNoAudioTrack},
	{"does not contain any stream", FailureNoAudioTrack},
	{"could not find audio", FailureNoAudioTrack},
	{"invalid data found when processing input", FailureUnsupportedFormat},
	{"moov atom not found", FailureUnsupportedFormat},
	{"could not find codec", FailureUnsupportedFormat},
	{"unknown format", FailureUnsupportedFormat},
	{"timed out", FailureTimeout},
	{"timeout", FailureTimeout},
	{"out of memory", FailureOutOfMemory},
	{"cannot allocate memory", FailureOutOfMemory},
}

// failureMessages are the user-facing texts, never raw engine output.
var failureMessages = map[FailureKind]string{
	FailureNoAudioTrack:      "This video has no audio track to extract.",
	FailureUnsupportedFormat: "The file appears to be corrupt or in an unsupported format.",
	FailureTimeout:           "The conversion timed out. Try a shorter or smaller file.",
	FailureOutOfMemory:       "The engine ran out of memory. Try a smaller file.",
	FailureGeneric:           "The conversion failed. The file may not be a playable video.",
}

// Classify maps a raised failure (and any accumulated engine log text)
// to a user-facing classification.
func Classify(err error, logText string) Classification {
	haystack := strings.ToLower(logText)
	if err != nil {
		haystack += "\n" + strings.ToLower(err.Error())
	}

	for _, p := range failurePatterns {
		if strings.Contains(haystack, p.substr) {
			return Classification{
				Kind:      p.kind,
				Confident: true,
				Message:   failureMessages[p.kind],
			}
		}
	}

	return Classification{
		Kind:      FailureGeneric,
		Confident: false,
		Message:   failureMessages[FailureGeneric],
	}
}

// audioMarkers are the substrings whose presence in the probe log
// indicates an audio stream.
var audioMarkers = []string{"Audio:", "Stream #0:1"}

// HasAudioMarker reports whether the probe log mentions an audio stream.
func HasAudioMarker(logText string) bool {
	for _, marker := range audioMarkers {
		if strings.Contains(logText, marker) {
			return true
		}
	}
	return false
}
