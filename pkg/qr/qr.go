package qr

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	imageSize      = 256
	previewMaxLen  = 20
	fallbackMargin = 12
)

// RenderImage encodes a PIX copy-paste payload into a PNG data URL, 256px,
// black-on-white. Encoding failures (empty or oversized payloads, encoder
// errors) degrade to a placeholder image with a truncated textual preview so
// the caller never has to handle an error or a broken image element.
func RenderImage(payload string) string {
	code, err := qrcode.New(payload, qrcode.Medium)
	if err != nil {
		return fallbackImage(payload)
	}
	data, err := code.PNG(imageSize)
	if err != nil {
		return fallbackImage(payload)
	}
	return dataURL(data)
}

func fallbackImage(payload string) string {
	img := image.NewRGBA(image.Rect(0, 0, imageSize, imageSize))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: basicfont.Face7x13,
		Dot: fixed.Point26_6{
			X: fixed.I(fallbackMargin),
			Y: fixed.I(imageSize / 2),
		},
	}
	drawer.DrawString(truncatePreview(payload))

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return dataURL(nil)
	}
	return dataURL(buf.Bytes())
}

func truncatePreview(payload string) string {
	if payload == "" {
		return "PIX"
	}
	runes := []rune(payload)
	if len(runes) <= previewMaxLen {
		return payload
	}
	return string(runes[:previewMaxLen]) + "…"
}

func dataURL(data []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
}
