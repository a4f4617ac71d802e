package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: 128, B: uint8(y % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encoding test JPEG: %v", err)
	}
	return buf.Bytes()
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding test PNG: %v", err)
	}
	return buf.Bytes()
}

func decodeDims(t *testing.T, data []byte) (int, int) {
	t.Helper()
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	b := img.Bounds()
	return b.Dx(), b.Dy()
}

func TestProcessOutputsJPEG(t *testing.T) {
	for name, data := range map[string][]byte{
		"jpeg": encodeJPEG(t, 120, 80),
		"png":  encodePNG(t, 120, 80),
	} {
		result, err := Process(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("Process %s: %v", name, err)
		}
		if result.MIME != "image/jpeg" {
			t.Errorf("%s: expected image/jpeg output, got %s", name, result.MIME)
		}
		if len(result.Data) == 0 {
			t.Errorf("%s: empty output", name)
		}
	}
}

func TestProcessDownscalesLargeImage(t *testing.T) {
	result, err := Process(bytes.NewReader(encodeJPEG(t, 3000, 1500)))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	w, h := decodeDims(t, result.Data)
	if w > MaxDimension || h > MaxDimension {
		t.Errorf("expected both dimensions <= %d, got %dx%d", MaxDimension, w, h)
	}
	// Aspect ratio 2:1 survives the downscale.
	if w != MaxDimension || h != MaxDimension/2 {
		t.Errorf("expected %dx%d, got %dx%d", MaxDimension, MaxDimension/2, w, h)
	}
}

func TestProcessKeepsSmallImage(t *testing.T) {
	result, err := Process(bytes.NewReader(encodeJPEG(t, 64, 48)))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	w, h := decodeDims(t, result.Data)
	if w != 64 || h != 48 {
		t.Errorf("small image should not be resized: got %dx%d", w, h)
	}
}

func TestProcessRejectsNonImage(t *testing.T) {
	if _, err := Process(bytes.NewReader([]byte("definitely not pixels"))); err == nil {
		t.Error("expected error for non-image input")
	}
}

func TestProcessRejectsGIF(t *testing.T) {
	if _, err := Process(bytes.NewReader([]byte("GIF89a\x01\x00\x01\x00"))); err == nil {
		t.Error("expected error for GIF input")
	}
}
