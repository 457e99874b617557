package navsmoke

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "golang.org/x/image/webp"
)

func whitePNG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{R: 255, G: 255, B: 255, A: 255}}, image.Point{}, draw.Src)
	var buffer bytes.Buffer
	require.NoError(t, png.Encode(&buffer, img))
	return base64.StdEncoding.EncodeToString(buffer.Bytes())
}

func TestRenderScreenshotScalesAndCaptions(t *testing.T) {
	data, ext, err := renderScreenshot(whitePNG(t, 400, 200), "Dashboard: load timeout", 200, 80)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	output, _, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Contains(t, []string{".webp", ".png"}, ext)
	assert.Equal(t, 200, output.Bounds().Dx())
	assert.Equal(t, 100+captionHeight, output.Bounds().Dy())

	// caption bar is not white, the page body below it is
	r, g, b, _ := output.At(1, 1).RGBA()
	assert.False(t, r == 0xffff && g == 0xffff && b == 0xffff, "expected caption background")
	r, g, b, _ = output.At(100, captionHeight+50).RGBA()
	assert.True(t, r > 0xf000 && g > 0xf000 && b > 0xf000, "expected white body")
}

func TestRenderScreenshotWithoutCaption(t *testing.T) {
	data, _, err := renderScreenshot(whitePNG(t, 40, 30), "", 0, 0)
	require.NoError(t, err)
	output, _, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 40, 30), output.Bounds())
}

func TestRenderScreenshotRejectsBadInput(t *testing.T) {
	_, _, err := renderScreenshot("", "x", 0, 0)
	require.Error(t, err)
	_, _, err = renderScreenshot("!!!", "x", 0, 0)
	require.Error(t, err)
	_, _, err = renderScreenshot(base64.StdEncoding.EncodeToString([]byte("not an image")), "x", 0, 0)
	require.Error(t, err)
}
