package qr

import (
	"encoding/base64"
	"image/png"
	"strings"
	"testing"
)

func decodePNG(t *testing.T, dataURL string) {
	t.Helper()
	const prefix = "data:image/png;base64,"
	if !strings.HasPrefix(dataURL, prefix) {
		t.Fatalf("not a png data url: %.40s", dataURL)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURL, prefix))
	if err != nil {
		t.Fatalf("decode base64: %v", err)
	}
	if _, err := png.Decode(strings.NewReader(string(raw))); err != nil {
		t.Fatalf("decode png: %v", err)
	}
}

func TestRenderImage_EncodesPayload(t *testing.T) {
	decodePNG(t, RenderImage("00020126580014br.gov.bcb.pix0136ch_1"))
}

func TestRenderImage_EmptyPayloadFallsBack(t *testing.T) {
	decodePNG(t, RenderImage(""))
}

func TestRenderImage_OversizedPayloadFallsBack(t *testing.T) {
	decodePNG(t, RenderImage(strings.Repeat("x", 8000)))
}

func TestTruncatePreview(t *testing.T) {
	long := strings.Repeat("a", 40)
	got := truncatePreview(long)
	if got != strings.Repeat("a", 20)+"…" {
		t.Fatalf("unexpected preview %q", got)
	}
	if truncatePreview("short") != "short" {
		t.Fatalf("short payloads must pass through")
	}
}
