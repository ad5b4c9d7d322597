package pipeline

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// solidPNG encodes a w by h image of one color. PNG keeps exact pixel
// values, which the normalization assertions rely on.
func solidPNG(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func gradientJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 8), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestDecoderDecodesJPEGAndPNG(t *testing.T) {
	dec := NewDecoder(1 << 20)

	img, err := dec.Decode(gradientJPEG(t, 16, 12))
	require.NoError(t, err)
	assert.Equal(t, 16, img.Rect.Dx())
	assert.Equal(t, 12, img.Rect.Dy())

	img, err = dec.Decode(solidPNG(t, 8, 8, color.RGBA{R: 10, G: 20, B: 30, A: 255}))
	require.NoError(t, err)
	assert.Equal(t, 8, img.Rect.Dx())

	_, err = dec.Decode([]byte("not an image"))
	assert.Error(t, err)
}

func TestSampleCropWindowStaysInBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	cfg := DefaultRandomCrop()
	for i := 0; i < 200; i++ {
		win, ok := sampleCropWindow(rng, 64, 48, &cfg)
		if !ok {
			continue
		}
		assert.GreaterOrEqual(t, win.Min.X, 0)
		assert.GreaterOrEqual(t, win.Min.Y, 0)
		assert.LessOrEqual(t, win.Max.X, 64)
		assert.LessOrEqual(t, win.Max.Y, 48)
		assert.Greater(t, win.Dx(), 0)
		assert.Greater(t, win.Dy(), 0)
	}
}

func TestResizeBilinearPreservesSolidColor(t *testing.T) {
	dec := NewDecoder(0)
	img, err := dec.Decode(solidPNG(t, 20, 10, color.RGBA{R: 200, G: 100, B: 50, A: 255}))
	require.NoError(t, err)

	out := ResizeBilinear(img, 7, 5)
	require.Equal(t, 7, out.Rect.Dx())
	require.Equal(t, 5, out.Rect.Dy())
	for y := 0; y < 5; y++ {
		for x := 0; x < 7; x++ {
			p := out.PixOffset(x, y)
			assert.Equal(t, uint8(200), out.Pix[p+0])
			assert.Equal(t, uint8(100), out.Pix[p+1])
			assert.Equal(t, uint8(50), out.Pix[p+2])
		}
	}
}

func TestResizeShorter(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	out := ResizeShorter(img, 10)
	assert.Equal(t, 20, out.Rect.Dx())
	assert.Equal(t, 10, out.Rect.Dy())

	tall := image.NewRGBA(image.Rect(0, 0, 20, 40))
	out = ResizeShorter(tall, 10)
	assert.Equal(t, 10, out.Rect.Dx())
	assert.Equal(t, 20, out.Rect.Dy())
}

func TestCropMirrorNormalizeNCHW(t *testing.T) {
	// 4x4 image, left half red, right half blue; crop the full image.
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			c := color.RGBA{R: 250, A: 255}
			if x >= 2 {
				c = color.RGBA{B: 250, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}

	mean := []float32{50, 50, 50}
	std := []float32{100, 100, 100}
	op := &CropMirrorNormalize{Crop: [2]int{4, 4}, Mean: mean, Std: std, Layout: NCHW}
	require.Equal(t, 3*4*4, op.OutputLen())

	dst := make([]float32, op.OutputLen())
	require.NoError(t, op.Run(img, false, dst))

	// R plane: (250-50)/100 = 2 on the left, (0-50)/100 = -0.5 on the right.
	assert.InDelta(t, 2.0, dst[0], 1e-6)
	assert.InDelta(t, -0.5, dst[3], 1e-6)
	// B plane is the third: -0.5 left, 2 right.
	bPlane := 2 * 16
	assert.InDelta(t, -0.5, dst[bPlane], 1e-6)
	assert.InDelta(t, 2.0, dst[bPlane+3], 1e-6)

	// Mirrored, the red half moves to the right.
	require.NoError(t, op.Run(img, true, dst))
	assert.InDelta(t, -0.5, dst[0], 1e-6)
	assert.InDelta(t, 2.0, dst[3], 1e-6)
}

func TestCropMirrorNormalizeNHWCAndPad(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 100, G: 150, B: 200, A: 255})
		}
	}

	op := &CropMirrorNormalize{
		Crop:      [2]int{2, 2},
		Mean:      []float32{0, 0, 0},
		Std:       []float32{1, 1, 1},
		Layout:    NHWC,
		PadOutput: true,
	}
	require.Equal(t, 4*2*2, op.OutputLen())

	dst := make([]float32, op.OutputLen())
	require.NoError(t, op.Run(img, false, dst))

	// First pixel: R,G,B then the zero pad channel.
	assert.Equal(t, []float32{100, 150, 200, 0}, dst[:4])
}

func TestCropMirrorNormalizeRejectsSmallImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	op := &CropMirrorNormalize{Crop: [2]int{4, 4}, Mean: DefaultMeanPixel, Std: DefaultStdPixel, Layout: NCHW}
	err := op.Run(img, false, make([]float32, op.OutputLen()))
	assert.Error(t, err)
}

func TestCoinFlipIsSeeded(t *testing.T) {
	flip := CoinFlip{Probability: 0.5}
	a := rand.New(rand.NewSource(3))
	b := rand.New(rand.NewSource(3))
	for i := 0; i < 50; i++ {
		assert.Equal(t, flip.Flip(a), flip.Flip(b))
	}
}
