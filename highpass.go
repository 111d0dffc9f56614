// Package highpass generates mipmap chains for square power-of-two RGBA
// textures by Haar wavelet decomposition and re-synthesis instead of a
// conventional downsampling filter.
//
// The image is decomposed once into a low-frequency pyramid plus per-level
// detail coefficients; every mip level is then re-synthesized independently
// with a level-dependent attenuation of the detail coefficients, so coarse
// mips keep more high-frequency detail than box or Kaiser filtering would
// leave them. Optional output transforms cover gamma, normal-map
// renormalization and CoYCg luma/chroma encoding with dither.
//
// The engine produces raw 8-bit RGBA surfaces only; block compression and
// container writing belong to the MipWriter implementation.
package highpass

import (
	"errors"
	"fmt"

	"github.com/deepteams/highpass/internal/haar"
	"github.com/deepteams/highpass/internal/pyramid"
)

// ErrNotPowerOfTwo is returned by Generate when the image width is not an
// exact power of two. No mip data is written in that case.
var ErrNotPowerOfTwo = errors.New("highpass: width is not a power of two")

// MipWriter receives finished mip surfaces, one call per level. pixels is
// packed 8-bit RGBA and is only valid for the duration of the call; depth is
// always 1 and face always 0 for the 2D textures this engine produces. The
// coarsest surface arrives at the highest mip index.
type MipWriter interface {
	WriteMip(pixels []byte, width, height, depth, face, mip int) error
}

// ChromaMode selects the luma/chroma output encoding.
type ChromaMode int

const (
	// ChromaNone leaves the output as RGB.
	ChromaNone ChromaMode = iota
	// ChromaScaled encodes CoYCg with the wide (127/255) chroma bias.
	ChromaScaled
	// ChromaPacked encodes CoYCg with the 5-bit (15/31) chroma bias and
	// a deterministic luma dither.
	ChromaPacked
)

// Options configures one mip-chain generation.
type Options struct {
	// SRGBInput treats the source as sRGB-authored: channels are converted
	// through a 2.2 gamma into linear space before filtering and converted
	// back on output.
	SRGBInput bool

	// NormalMap treats the source as a tangent-space normal map: channels
	// load into signed [-1,1], the coarsest mip is forced to a flat normal,
	// and output re-derives the up component from the other two.
	// Takes precedence over SRGBInput and Chroma.
	NormalMap bool

	// Chroma selects an optional CoYCg output encoding. Implies the gamma
	// output transform.
	Chroma ChromaMode

	// KeepSharp is the number of synthesis steps nearest each target
	// resolution whose detail coefficients pass through unattenuated.
	// Zero is the default profile; negative values blur harder, large
	// values approach the lossless inverse at every level.
	KeepSharp int

	// Channels is the source pixel stride in bytes, 3 or 4. Three-channel
	// sources get opaque alpha. Zero means 4.
	Channels int

	// Pitch is the source row stride in bytes. Zero means Channels*width.
	Pitch int
}

// DefaultOptions returns options for plain linear RGBA input with the
// default sharpness profile.
func DefaultOptions() *Options {
	return &Options{Channels: 4}
}

// LevelStats reports the advisory detail statistics of one pyramid level:
// per-channel mean absolute and RMS magnitude of the detail coefficients.
// The attenuation policy does not consult these.
type LevelStats struct {
	MeanAbs [4]float32
	RMS     [4]float32
}

// Summary reports advisory measurements from a completed generation.
type Summary struct {
	// Levels is L = log2(width); L+1 mip surfaces were emitted.
	Levels int
	// Stats holds per-level detail statistics, indexed by level
	// (0 = coarsest; its entry is always zero).
	Stats []LevelStats
	// InputLo and InputHi are the per-channel extremes of the loaded
	// image in the working float representation.
	InputLo, InputHi [4]float32
}

// Generate decomposes the image, re-synthesizes all L+1 mip levels with the
// configured sharpness profile and hands each finished 8-bit RGBA surface to
// dst, coarsest level first. Level l is delivered as mip index L-l, so the
// full-resolution surface is mip 0.
//
// pixels is 8-bit row-major data of a square image with the given width.
// The only validated precondition is that width is a power of two; other
// input contracts (buffer size, pitch) are the caller's responsibility.
func Generate(pixels []byte, width int, dst MipWriter, opts *Options) (*Summary, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	policy := haar.LoadLinear
	switch {
	case opts.NormalMap:
		policy = haar.LoadSignedNormal
	case opts.SRGBInput:
		policy = haar.LoadGamma
	}

	p, err := pyramid.Decompose(pixels, width, opts.Pitch, opts.Channels, policy)
	if err != nil {
		if errors.Is(err, pyramid.ErrNotPowerOfTwo) {
			return nil, fmt.Errorf("highpass: width %d: %w", width, ErrNotPowerOfTwo)
		}
		return nil, fmt.Errorf("highpass: decomposing: %w", err)
	}

	p.Reconstruct(opts.KeepSharp)

	if err := emit(p, dst, opts); err != nil {
		return nil, err
	}

	s := &Summary{
		Levels: p.Levels(),
		Stats:  make([]LevelStats, p.Levels()+1),
	}
	for i, st := range p.Stats() {
		s.Stats[i] = LevelStats{MeanAbs: st.MeanAbs, RMS: st.RMS}
	}
	s.InputLo, s.InputHi = p.InputRange()
	return s, nil
}
