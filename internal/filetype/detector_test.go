package filetype

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"testing"
)

func TestAllowedExtension(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"scan.jpg", true},
		{"scan.JPEG", true},
		{"page.Png", true},
		{"doc.pdf", false},
		{"anim.gif", false},
		{"noext", false},
		{"png", false},
	}
	for _, tt := range tests {
		if got := AllowedExtension(tt.name); got != tt.want {
			t.Errorf("AllowedExtension(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestDetectBytes(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 2, 2))

	var pngBuf, jpgBuf bytes.Buffer
	if err := png.Encode(&pngBuf, img); err != nil {
		t.Fatal(err)
	}
	if err := jpeg.Encode(&jpgBuf, img, nil); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		data      []byte
		mime      string
		supported bool
	}{
		{"png", pngBuf.Bytes(), "image/png", true},
		{"jpeg", jpgBuf.Bytes(), "image/jpeg", true},
		{"gif", []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00"), "image/gif", false},
		{"pdf", []byte("%PDF-1.4 fake pdf"), "application/pdf", false},
	}

	d := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := d.DetectBytes(tt.data)
			if err != nil {
				t.Fatalf("DetectBytes failed: %v", err)
			}
			if info.MIMEType != tt.mime {
				t.Errorf("expected %s, got %s", tt.mime, info.MIMEType)
			}
			if info.Supported != tt.supported {
				t.Errorf("expected supported=%v, got %v (%s)", tt.supported, info.Supported, info.Description)
			}
		})
	}
}

func TestDetectBytes_Empty(t *testing.T) {
	if _, err := New().DetectBytes(nil); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}
