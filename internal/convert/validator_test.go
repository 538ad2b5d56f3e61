package convert

import (
	"strings"
	"testing"
)

func TestValidate_SizeBoundary(t *testing.T) {
	// Exactly the ceiling is accepted; one byte more is rejected.
	if err := Validate("clip.mp4", MaxInputBytes, "video/mp4"); err != nil {
		t.Errorf("file of exactly 250 MiB rejected: %v", err)
	}
	if err := Validate("clip.mp4", MaxInputBytes+1, "video/mp4"); err == nil {
		t.Error("file of 250 MiB + 1 byte accepted")
	}
}

func TestValidate_OversizeMessageNamesBothSizes(t *testing.T) {
	err := Validate("clip.mp4", 300*1024*1024, "video/mp4")
	if err == nil {
		t.Fatal("300 MiB file accepted")
	}
	msg := err.Error()
	if !strings.Contains(msg, "300 MiB") {
		t.Errorf("message does not name the actual size: %q", msg)
	}
	if !strings.Contains(msg, "250 MiB") {
		t.Errorf("message does not name the ceiling: %q", msg)
	}
}

func TestValidate_Extensions(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		ok          bool
	}{
		{"clip.mp4", "", true},
		{"clip.avi", "", true},
		{"clip.MOV", "", true}, // case-insensitive
		{"CLIP.MKV", "", true},
		{"clip.webm", "", true},
		{"clip.flv", "", true},
		{"clip.txt", "", false},
		{"clip.txt", "text/plain", false},
		{"clip", "", false},
		{"clip.wmv", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.name, 1024, tt.contentType)
			if tt.ok && err != nil {
				t.Errorf("Validate(%q) = %v, want accept", tt.name, err)
			}
			if !tt.ok && err == nil {
				t.Errorf("Validate(%q) accepted, want reject", tt.name)
			}
		})
	}
}

func TestValidate_MIMETypeAloneSuffices(t *testing.T) {
	// Unrecognized extension but allow-listed declared type.
	if err := Validate("capture.bin", 1024, "video/quicktime"); err != nil {
		t.Errorf("allow-listed MIME type rejected: %v", err)
	}
}

func TestIsValidationError(t *testing.T) {
	err := Validate("clip.txt", 1024, "")
	if !IsValidationError(err) {
		t.Error("validation rejection not recognized")
	}
	if IsValidationError(nil) {
		t.Error("nil recognized as validation error")
	}
}
