package navsmoke

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"strings"

	webpenc "github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"
)

const (
	captionHeight   = 20
	captionPadding  = 4
	defaultMaxWidth = 1280
	defaultQuality  = 60
)

var (
	captionBackground = color.RGBA{R: 0xC0, G: 0x39, B: 0x2B, A: 0xFF}
	captionForeground = color.White
)

// renderScreenshot decodes a base64 screenshot, scales it down to maxWidth,
// stamps caption above it and encodes it as WebP. PNG is returned when WebP
// encoding fails. The second result is the file extension.
func renderScreenshot(base64Image, caption string, maxWidth int, quality float32) ([]byte, string, error) {
	if strings.TrimSpace(base64Image) == "" {
		return nil, "", errors.New("empty screenshot data")
	}
	decoded, err := base64.StdEncoding.DecodeString(base64Image)
	if err != nil {
		return nil, "", err
	}
	img, _, err := image.Decode(bytes.NewReader(decoded))
	if err != nil {
		return nil, "", err
	}
	if maxWidth <= 0 {
		maxWidth = defaultMaxWidth
	}
	if quality <= 0 {
		quality = defaultQuality
	}

	src := img.Bounds()
	width, height := src.Dx(), src.Dy()
	if width > maxWidth {
		height = height * maxWidth / width
		width = maxWidth
	}
	top := 0
	if caption != "" {
		top = captionHeight
	}
	canvas := image.NewRGBA(image.Rect(0, 0, width, height+top))
	body := image.Rect(0, top, width, height+top)
	if width == src.Dx() {
		draw.Draw(canvas, body, img, src.Min, draw.Src)
	} else {
		xdraw.CatmullRom.Scale(canvas, body, img, src, draw.Src, nil)
	}
	if caption != "" {
		drawCaption(canvas, caption)
	}

	var buffer bytes.Buffer
	if err := webpenc.Encode(&buffer, canvas, &webpenc.Options{Quality: quality}); err != nil {
		buffer.Reset()
		if err := png.Encode(&buffer, canvas); err != nil {
			return nil, "", err
		}
		return buffer.Bytes(), ".png", nil
	}
	return buffer.Bytes(), ".webp", nil
}

func drawCaption(img *image.RGBA, caption string) {
	bar := image.Rect(0, 0, img.Bounds().Dx(), captionHeight)
	draw.Draw(img, bar, image.NewUniform(captionBackground), image.Point{}, draw.Src)
	face := basicfont.Face7x13
	drawer := font.Drawer{Dst: img, Src: image.NewUniform(captionForeground), Face: face}
	maxChars := (bar.Dx() - 2*captionPadding) / face.Advance
	runes := []rune(caption)
	if maxChars > 0 && len(runes) > maxChars {
		runes = runes[:maxChars]
	}
	drawer.Dot = fixed.P(captionPadding, captionHeight-captionPadding-face.Descent+1)
	drawer.DrawString(string(runes))
}
