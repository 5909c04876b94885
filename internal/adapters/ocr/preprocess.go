// Package ocr provides text recognition adapters.
// Clean Architecture: Adapter implementing ports.OCREngine.
package ocr

import (
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/effect"
)

// MedianRadius is the denoising filter radius applied before recognition.
const MedianRadius = 1

// Preprocess prepares a scan for OCR: grayscale, median denoise, then
// histogram equalisation. It is deterministic for a given input.
func Preprocess(img image.Image) *image.Gray {
	gray := effect.Grayscale(img)
	denoised := effect.Median(gray, MedianRadius)
	return Equalize(denoised)
}

// Equalize spreads the luminance histogram of img over the full 0-255 range.
// A single-tone image is returned unchanged.
func Equalize(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(b)

	var hist [256]int
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y
			out.SetGray(x, y, color.Gray{Y: v})
			hist[v]++
		}
	}

	total := b.Dx() * b.Dy()
	var cdf [256]int
	running, cdfMin := 0, 0
	for i, n := range hist {
		running += n
		cdf[i] = running
		if cdfMin == 0 && running > 0 {
			cdfMin = running
		}
	}
	if total == 0 || total == cdfMin {
		return out
	}

	var lut [256]uint8
	for i := range lut {
		if cdf[i] < cdfMin {
			continue
		}
		lut[i] = uint8((cdf[i]-cdfMin)*255/(total-cdfMin))
	}
	for i, v := range out.Pix {
		out.Pix[i] = lut[v]
	}
	return out
}
