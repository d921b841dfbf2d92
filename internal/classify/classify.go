// Package classify derives the input modality for a turn and validates
// identifiers and file references before any processing commits.
package classify

import "strings"

// Modality is the classified shape of a turn's input.
type Modality string

const (
	ModalityText       Modality = "text"
	ModalitySpeech     Modality = "speech"
	ModalityImage      Modality = "image"
	ModalityMultimodal Modality = "multimodal"
)

// Classify derives the modality from which inputs are present. Zero inputs
// default to text (treated as a greeting downstream); exactly one input is
// that input's modality; two or more are multimodal.
func Classify(text, audioRef, imageRef string) Modality {
	hasText := strings.TrimSpace(text) != ""
	hasAudio := audioRef != ""
	hasImage := imageRef != ""

	count := 0
	for _, present := range []bool{hasText, hasAudio, hasImage} {
		if present {
			count++
		}
	}

	switch {
	case count >= 2:
		return ModalityMultimodal
	case hasAudio:
		return ModalitySpeech
	case hasImage:
		return ModalityImage
	default:
		return ModalityText
	}
}
