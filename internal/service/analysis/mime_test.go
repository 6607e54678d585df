package analysis

import "testing"

func TestDetectImageMIME(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00}, "image/jpeg"},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A}, "image/png"},
		{"gif", []byte("GIF89a"), "image/gif"},
		{"bmp", []byte{0x42, 0x4D, 0x36, 0x00}, "image/bmp"},
		{"pdf defaults to jpeg", []byte("%PDF-1.7"), "image/jpeg"},
		{"short input", []byte{0x89}, "image/jpeg"},
		{"empty", nil, "image/jpeg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectImageMIME(tt.data); got != tt.want {
				t.Errorf("DetectImageMIME() = %q, want %q", got, tt.want)
			}
		})
	}
}
