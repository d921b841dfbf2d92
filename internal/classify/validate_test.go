package classify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validPatientID = "Adam631_Cronin387_aff8f143-2375-416f-901d-b0e4c73e3e58"

func TestValidatePatientID(t *testing.T) {
	v := NewValidator(10, 50)

	tests := []struct {
		name    string
		id      string
		wantErr error
	}{
		{"valid id", validPatientID, nil},
		{"empty id", "", ErrMissingPatientID},
		{"garbage", "invalid_id", ErrInvalidPatientID},
		{"missing uuid", "Adam631_Cronin387", ErrInvalidPatientID},
		{"lowercase name", "adam631_Cronin387_aff8f143-2375-416f-901d-b0e4c73e3e58", ErrInvalidPatientID},
		{"short uuid", "Adam631_Cronin387_aff8f143", ErrInvalidPatientID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidatePatientID(tt.id)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestValidateFileRefExtensions(t *testing.T) {
	v := NewValidator(10, 50)

	assert.NoError(t, v.ValidateImageRef("uploads/rash.JPG"))
	assert.NoError(t, v.ValidateImageRef("rash.webp"))
	assert.ErrorIs(t, v.ValidateImageRef("notes.pdf"), ErrInvalidImageRef)
	assert.ErrorIs(t, v.ValidateImageRef(""), ErrInvalidImageRef)

	assert.NoError(t, v.ValidateAudioRef("question.wav"))
	assert.NoError(t, v.ValidateAudioRef("voice.m4a"))
	assert.ErrorIs(t, v.ValidateAudioRef("question.flac"), ErrInvalidAudioRef)
}

func TestValidateFileRefSize(t *testing.T) {
	// 1 MB caps so an oversized local file is cheap to create.
	v := NewValidator(1, 1)
	dir := t.TempDir()

	small := filepath.Join(dir, "small.png")
	require.NoError(t, os.WriteFile(small, make([]byte, 512), 0o600))
	assert.NoError(t, v.ValidateImageRef(small))

	big := filepath.Join(dir, "big.png")
	require.NoError(t, os.WriteFile(big, make([]byte, 2*1024*1024), 0o600))
	assert.ErrorIs(t, v.ValidateImageRef(big), ErrInvalidImageRef)

	// References that do not resolve locally pass on extension alone.
	assert.NoError(t, v.ValidateImageRef(filepath.Join(dir, "remote.png")))
}
