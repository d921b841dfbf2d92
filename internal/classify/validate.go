package classify

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Domain errors for input validation. All are fatal for the turn.
var (
	ErrMissingPatientID = errors.New("patient ID is required")
	ErrInvalidPatientID = errors.New("invalid patient ID format")
	ErrInvalidImageRef  = errors.New("invalid image reference")
	ErrInvalidAudioRef  = errors.New("invalid audio reference")
)

// patientIDRe is the structural pattern for patient identifiers:
// FirstName###_LastName###_uuid.
var patientIDRe = regexp.MustCompile(`^[A-Z][a-z]+\d+_[A-Z][a-z]+\d+_[a-f0-9-]{36}$`)

var (
	allowedImageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true}
	allowedAudioExts = map[string]bool{".wav": true, ".mp3": true, ".m4a": true, ".ogg": true}
)

// Validator checks patient identifiers and file references against the
// configured size caps.
type Validator struct {
	maxImageMB int
	maxAudioMB int
}

// NewValidator creates a Validator with the given size caps in megabytes.
func NewValidator(maxImageMB, maxAudioMB int) *Validator {
	return &Validator{maxImageMB: maxImageMB, maxAudioMB: maxAudioMB}
}

// ValidatePatientID checks the structural pattern of a patient identifier.
func (v *Validator) ValidatePatientID(id string) error {
	if id == "" {
		return ErrMissingPatientID
	}
	if !patientIDRe.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidPatientID, id)
	}
	return nil
}

// ValidateImageRef checks an image reference's extension and, when the
// reference resolves to local storage, its size.
func (v *Validator) ValidateImageRef(ref string) error {
	return validateFileRef(ref, ErrInvalidImageRef, allowedImageExts, v.maxImageMB)
}

// ValidateAudioRef checks an audio reference's extension and, when the
// reference resolves to local storage, its size.
func (v *Validator) ValidateAudioRef(ref string) error {
	return validateFileRef(ref, ErrInvalidAudioRef, allowedAudioExts, v.maxAudioMB)
}

func validateFileRef(ref string, sentinel error, allowed map[string]bool, maxMB int) error {
	if ref == "" {
		return fmt.Errorf("%w: reference is empty", sentinel)
	}

	ext := strings.ToLower(filepath.Ext(ref))
	if !allowed[ext] {
		return fmt.Errorf("%w: extension %q not allowed", sentinel, ext)
	}

	// References may address remote storage; size is only enforceable
	// when the file is visible locally.
	info, err := os.Stat(ref)
	if err != nil {
		return nil
	}
	sizeMB := float64(info.Size()) / (1024 * 1024)
	if sizeMB > float64(maxMB) {
		return fmt.Errorf("%w: file too large (%.1fMB, max %dMB)", sentinel, sizeMB, maxMB)
	}
	return nil
}
