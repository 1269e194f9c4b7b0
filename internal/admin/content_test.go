package admin

import "testing"

func TestExtOf(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"photo.png", ".png"},
		{"clip.video.mp4", ".mp4"},
		{"noextension", ""},
		{"trailing.", "."},
		{".hidden", ".hidden"},
	}
	for _, tt := range tests {
		if got := extOf(tt.filename); got != tt.want {
			t.Errorf("extOf(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}
