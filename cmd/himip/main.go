// Command himip generates a high-pass filtered mipmap chain from an image
// and writes one PNG per mip level.
//
// Usage:
//
//	himip [options] <input>
//
// Input may be PNG, JPEG, GIF, BMP or TIFF. The image must be square with a
// power-of-two side length unless -fit is given.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/deepteams/highpass"
)

func main() {
	var (
		linear  = flag.Bool("linear", false, "treat input as linear (default sRGB)")
		normal  = flag.Bool("normal", false, "treat input as a tangent-space normal map")
		yuv     = flag.Bool("yuv", false, "emit CoYCg chroma encoding")
		yuvn    = flag.Bool("yuvn", false, "emit packed CoYCg chroma encoding with dither")
		keep    = flag.Int("keep", 0, "synthesis steps kept unfiltered per level (may be negative)")
		fit     = flag.Bool("fit", false, "resample input to the next square power of two")
		out     = flag.String("o", "", "output prefix (default input name without extension)")
		verbose = flag.Bool("v", false, "print per-level detail statistics")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: himip [options] <input>")
		flag.PrintDefaults()
		os.Exit(1)
	}

	input := flag.Arg(0)
	prefix := *out
	if prefix == "" {
		prefix = strings.TrimSuffix(input, filepath.Ext(input))
	}

	opts := &highpass.Options{
		SRGBInput: !*linear && !*normal,
		NormalMap: *normal,
		KeepSharp: *keep,
		Channels:  4,
	}
	switch {
	case *yuvn:
		opts.Chroma = highpass.ChromaPacked
	case *yuv:
		opts.Chroma = highpass.ChromaScaled
	}

	if err := run(input, prefix, *fit, *verbose, opts); err != nil {
		fmt.Fprintf(os.Stderr, "himip: %v\n", err)
		os.Exit(1)
	}
}

func run(input, prefix string, fit, verbose bool, opts *highpass.Options) error {
	src, err := loadNRGBA(input, fit)
	if err != nil {
		return err
	}

	w := &pngWriter{prefix: prefix}
	summary, err := highpass.Generate(src.Pix, src.Rect.Dx(), w, opts)
	if err != nil {
		return err
	}

	if verbose {
		printSummary(summary)
	}
	fmt.Printf("wrote %d mip levels to %s_mip*.png\n", summary.Levels+1, prefix)
	return nil
}

// loadNRGBA decodes the input and returns it as tightly packed NRGBA,
// optionally resampled up to the next square power of two.
func loadNRGBA(path string, fit bool) (*image.NRGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening input")
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", path)
	}

	b := img.Bounds()
	if fit {
		side := nextPow2(max(b.Dx(), b.Dy()))
		if b.Dx() != side || b.Dy() != side {
			img = resize.Resize(uint(side), uint(side), img, resize.Lanczos3)
			b = img.Bounds()
		}
	}

	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Rect, img, b.Min, draw.Src)
	return dst, nil
}

type pngWriter struct {
	prefix string
}

// WriteMip stores one finished level as <prefix>_mip<N>.png. The incoming
// buffer is reused by the engine, so the pixels are copied.
func (w *pngWriter) WriteMip(pixels []byte, width, height, depth, face, mip int) error {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	copy(img.Pix, pixels)

	name := fmt.Sprintf("%s_mip%d.png", w.prefix, mip)
	f, err := os.Create(name)
	if err != nil {
		return errors.Wrapf(err, "creating %s", name)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return errors.Wrapf(err, "encoding %s", name)
	}
	return nil
}

func printSummary(s *highpass.Summary) {
	fmt.Printf("input range: lo=%.4v hi=%.4v\n", s.InputLo, s.InputHi)
	for l := s.Levels; l >= 1; l-- {
		st := s.Stats[l]
		fmt.Printf("level %2d (%4dpx): mean=%.5v rms=%.5v\n",
			l, 1<<l, st.MeanAbs[:3], st.RMS[:3])
	}
}

func nextPow2(v int) int {
	n := 1
	for n < v {
		n <<= 1
	}
	return n
}
