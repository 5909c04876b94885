package ocr

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoTone(w, h int, dark, light uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := light
			if x < w/2 {
				v = dark
			}
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func TestEqualize_StretchesContrast(t *testing.T) {
	out := Equalize(twoTone(10, 10, 100, 140))

	assert.Equal(t, uint8(0), out.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(255), out.GrayAt(9, 9).Y)
}

func TestEqualize_SingleToneUnchanged(t *testing.T) {
	out := Equalize(twoTone(4, 4, 90, 90))

	for _, v := range out.Pix {
		assert.Equal(t, uint8(90), v)
	}
}

func TestPreprocess_DeterministicGray(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 20), B: 50, A: 255})
		}
	}

	a := Preprocess(img)
	b := Preprocess(img)
	assert.Equal(t, img.Bounds(), a.Bounds())
	assert.Equal(t, a.Pix, b.Pix)
}

type recordingRunner struct {
	name string
	args []string
	png  bool
	out  string
	err  error
}

func (r *recordingRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	r.name, r.args = name, args
	if f, err := os.Open(args[0]); err == nil {
		_, decodeErr := png.Decode(f)
		r.png = decodeErr == nil
		f.Close()
	}
	return []byte(r.out), r.err
}

func TestTesseractEngine_Recognize(t *testing.T) {
	runner := &recordingRunner{out: "  hello world\n\f"}
	e := NewTesseractEngine(WithRunner(runner))

	text, err := e.Recognize(context.Background(), twoTone(4, 4, 0, 255))
	require.NoError(t, err)

	assert.Equal(t, "hello world", text)
	assert.Equal(t, "tesseract", runner.name)
	assert.True(t, runner.png, "runner should receive a readable PNG")
	assert.Equal(t, []string{"stdout", "-l", "jpn+eng", "--oem", "1", "--psm", "3"}, runner.args[1:])

	_, err = os.Stat(runner.args[0])
	assert.True(t, os.IsNotExist(err), "temp image should be removed")
}

func TestTesseractEngine_Options(t *testing.T) {
	runner := &recordingRunner{}
	e := NewTesseractEngine(WithRunner(runner), WithBinary("/opt/bin/tesseract"), WithLanguages("eng"))

	_, err := e.Recognize(context.Background(), twoTone(2, 2, 0, 255))
	require.NoError(t, err)
	assert.Equal(t, "/opt/bin/tesseract", runner.name)
	assert.Equal(t, "eng", runner.args[3])
}

func TestTesseractEngine_RunnerError(t *testing.T) {
	e := NewTesseractEngine(WithRunner(&recordingRunner{err: errors.New("exit status 1")}))

	_, err := e.Recognize(context.Background(), twoTone(2, 2, 0, 255))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "running tesseract")
}
