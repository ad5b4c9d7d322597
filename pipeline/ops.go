package pipeline

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"math"
	"math/rand"

	_ "image/jpeg"
	_ "image/png"
)

// Decoder turns encoded image bytes into RGBA pixels. Each decode worker
// owns one Decoder; the pixel buffer is reused across calls and pre-sized
// by the configured memory padding.
type Decoder struct {
	scratch []uint8
}

// NewDecoder pre-allocates at least memoryPadding bytes of pixel scratch.
func NewDecoder(memoryPadding int) *Decoder {
	d := &Decoder{}
	if memoryPadding > 0 {
		d.scratch = make([]uint8, 0, memoryPadding)
	}
	return d
}

// Decode decodes JPEG or PNG bytes into an RGBA image.
func (d *Decoder) Decode(data []byte) (*image.RGBA, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("pipeline: decode image: %w", err)
	}
	return d.toRGBA(img), nil
}

// DecodeCrop decodes and then crops to a window sampled by cfg. When no
// acceptable window is found within cfg.Attempts, the whole image is kept.
func (d *Decoder) DecodeCrop(data []byte, cfg *RandomCropConfig, rng *rand.Rand) (*image.RGBA, error) {
	img, err := d.Decode(data)
	if err != nil {
		return nil, err
	}
	win, ok := sampleCropWindow(rng, img.Rect.Dx(), img.Rect.Dy(), cfg)
	if !ok {
		return img, nil
	}
	return cropRGBA(img, win), nil
}

func (d *Decoder) toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	need := 4 * b.Dx() * b.Dy()
	if cap(d.scratch) < need {
		d.scratch = make([]uint8, 0, need)
	}
	dst := &image.RGBA{
		Pix:    d.scratch[:need],
		Stride: 4 * b.Dx(),
		Rect:   image.Rect(0, 0, b.Dx(), b.Dy()),
	}
	draw.Draw(dst, dst.Rect, img, b.Min, draw.Src)
	return dst
}

// sampleCropWindow picks a crop rectangle whose area and aspect ratio fall
// inside the configured bounds. ok is false when every attempt overflowed
// the source image.
func sampleCropWindow(rng *rand.Rand, w, h int, cfg *RandomCropConfig) (image.Rectangle, bool) {
	srcArea := float64(w * h)
	logLo := math.Log(cfg.AspectRatio[0])
	logHi := math.Log(cfg.AspectRatio[1])
	for i := 0; i < cfg.Attempts; i++ {
		area := srcArea * (cfg.Area[0] + rng.Float64()*(cfg.Area[1]-cfg.Area[0]))
		ratio := math.Exp(logLo + rng.Float64()*(logHi-logLo))
		cw := int(math.Round(math.Sqrt(area * ratio)))
		ch := int(math.Round(math.Sqrt(area / ratio)))
		if cw <= 0 || ch <= 0 || cw > w || ch > h {
			continue
		}
		x := rng.Intn(w - cw + 1)
		y := rng.Intn(h - ch + 1)
		return image.Rect(x, y, x+cw, y+ch), true
	}
	return image.Rectangle{}, false
}

func cropRGBA(src *image.RGBA, win image.Rectangle) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, win.Dx(), win.Dy()))
	draw.Draw(dst, dst.Rect, src, win.Min.Add(src.Rect.Min), draw.Src)
	return dst
}

// ResizeBilinear scales src to exactly w by h pixels.
func ResizeBilinear(src *image.RGBA, w, h int) *image.RGBA {
	sw, sh := src.Rect.Dx(), src.Rect.Dy()
	if sw == w && sh == h {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xScale := float64(sw) / float64(w)
	yScale := float64(sh) / float64(h)
	for y := 0; y < h; y++ {
		sy := (float64(y)+0.5)*yScale - 0.5
		y0 := int(math.Floor(sy))
		fy := sy - float64(y0)
		y1 := y0 + 1
		if y0 < 0 {
			y0, y1, fy = 0, 0, 0
		}
		if y1 >= sh {
			y1 = sh - 1
		}
		for x := 0; x < w; x++ {
			sx := (float64(x)+0.5)*xScale - 0.5
			x0 := int(math.Floor(sx))
			fx := sx - float64(x0)
			x1 := x0 + 1
			if x0 < 0 {
				x0, x1, fx = 0, 0, 0
			}
			if x1 >= sw {
				x1 = sw - 1
			}
			p00 := src.PixOffset(src.Rect.Min.X+x0, src.Rect.Min.Y+y0)
			p10 := src.PixOffset(src.Rect.Min.X+x1, src.Rect.Min.Y+y0)
			p01 := src.PixOffset(src.Rect.Min.X+x0, src.Rect.Min.Y+y1)
			p11 := src.PixOffset(src.Rect.Min.X+x1, src.Rect.Min.Y+y1)
			d := dst.PixOffset(x, y)
			for c := 0; c < 4; c++ {
				top := float64(src.Pix[p00+c])*(1-fx) + float64(src.Pix[p10+c])*fx
				bot := float64(src.Pix[p01+c])*(1-fx) + float64(src.Pix[p11+c])*fx
				dst.Pix[d+c] = uint8(math.Round(top*(1-fy) + bot*fy))
			}
		}
	}
	return dst
}

// ResizeShorter scales src so the shorter edge becomes shorter pixels,
// preserving aspect ratio.
func ResizeShorter(src *image.RGBA, shorter int) *image.RGBA {
	sw, sh := src.Rect.Dx(), src.Rect.Dy()
	if sw <= 0 || sh <= 0 || shorter <= 0 {
		return src
	}
	var w, h int
	if sw < sh {
		w = shorter
		h = int(math.Round(float64(sh) * float64(shorter) / float64(sw)))
	} else {
		h = shorter
		w = int(math.Round(float64(sw) * float64(shorter) / float64(sh)))
	}
	return ResizeBilinear(src, w, h)
}

// RandomResizedCrop samples a crop window and scales it to (w, h).
func RandomResizedCrop(src *image.RGBA, w, h int, cfg *RandomCropConfig, rng *rand.Rand) *image.RGBA {
	win, ok := sampleCropWindow(rng, src.Rect.Dx(), src.Rect.Dy(), cfg)
	if !ok {
		return ResizeBilinear(src, w, h)
	}
	return ResizeBilinear(cropRGBA(src, win), w, h)
}

// CoinFlip draws mirror decisions.
type CoinFlip struct {
	Probability float64
}

func (c CoinFlip) Flip(rng *rand.Rand) bool {
	return rng.Float64() < c.Probability
}

// CropMirrorNormalize fuses the final center crop, optional horizontal
// mirror and per-channel mean/std normalization, emitting either NCHW or
// NHWC with optional zero padding to four channels.
type CropMirrorNormalize struct {
	Crop      [2]int // width, height
	Mean      []float32
	Std       []float32
	Layout    Layout
	PadOutput bool
}

// OutputLen is the number of elements Run writes per image.
func (op *CropMirrorNormalize) OutputLen() int {
	c := 3
	if op.PadOutput {
		c = 4
	}
	return c * op.Crop[0] * op.Crop[1]
}

// Run crops the center Crop window out of img, mirrors it when asked, and
// writes normalized values into dst, which must hold OutputLen elements.
func (op *CropMirrorNormalize) Run(img *image.RGBA, mirror bool, dst []float32) error {
	cw, ch := op.Crop[0], op.Crop[1]
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w < cw || h < ch {
		return fmt.Errorf("pipeline: image %dx%d smaller than crop %dx%d", w, h, cw, ch)
	}
	if len(dst) < op.OutputLen() {
		return fmt.Errorf("pipeline: output buffer too small: %d < %d", len(dst), op.OutputLen())
	}

	x0 := img.Rect.Min.X + (w-cw)/2
	y0 := img.Rect.Min.Y + (h-ch)/2
	channels := 3
	if op.PadOutput {
		channels = 4
	}
	plane := cw * ch

	for y := 0; y < ch; y++ {
		for x := 0; x < cw; x++ {
			sx := x0 + x
			if mirror {
				sx = x0 + cw - 1 - x
			}
			p := img.PixOffset(sx, y0+y)
			for c := 0; c < 3; c++ {
				v := (float32(img.Pix[p+c]) - op.Mean[c]) / op.Std[c]
				if op.Layout == NHWC {
					dst[(y*cw+x)*channels+c] = v
				} else {
					dst[c*plane+y*cw+x] = v
				}
			}
			if op.PadOutput {
				if op.Layout == NHWC {
					dst[(y*cw+x)*channels+3] = 0
				} else {
					dst[3*plane+y*cw+x] = 0
				}
			}
		}
	}
	return nil
}
