package highpass_test

import (
	"fmt"
	"image"
	"math"
	"math/rand"
	"testing"

	"github.com/nfnt/resize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepteams/highpass"
)

type capturedMip struct {
	width, height int
	pix           []byte
}

// captureWriter records every delivered surface, copying the pixels since
// the engine reuses the buffer between levels.
type captureWriter struct {
	mips  map[int]capturedMip
	order []int
}

func (w *captureWriter) WriteMip(pixels []byte, width, height, depth, face, mip int) error {
	if w.mips == nil {
		w.mips = make(map[int]capturedMip)
	}
	if depth != 1 || face != 0 {
		return fmt.Errorf("unexpected depth=%d face=%d", depth, face)
	}
	p := make([]byte, len(pixels))
	copy(p, pixels)
	w.mips[mip] = capturedMip{width: width, height: height, pix: p}
	w.order = append(w.order, mip)
	return nil
}

func solidImage(width int, v byte) []byte {
	pix := make([]byte, 4*width*width)
	for i := range pix {
		pix[i] = v
		if i%4 == 3 {
			pix[i] = 255
		}
	}
	return pix
}

func noiseImage(width int, seed int64) []byte {
	rng := rand.New(rand.NewSource(seed))
	pix := make([]byte, 4*width*width)
	rng.Read(pix)
	for i := 3; i < len(pix); i += 4 {
		pix[i] = 255
	}
	return pix
}

func TestSolidGrayChain(t *testing.T) {
	const width = 256
	w := &captureWriter{}

	summary, err := highpass.Generate(solidImage(width, 128), width, w, &highpass.Options{Channels: 4})
	require.NoError(t, err)
	require.Equal(t, 8, summary.Levels)
	require.Len(t, w.mips, 9)

	// Coarsest surface first: mip 8 (1x1) down to mip 0 (256x256).
	assert.Equal(t, []int{8, 7, 6, 5, 4, 3, 2, 1, 0}, w.order)

	for mip, m := range w.mips {
		wantSide := width >> mip
		assert.Equal(t, wantSide, m.width, "mip %d width", mip)
		assert.Equal(t, wantSide, m.height, "mip %d height", mip)
		for i := 0; i < len(m.pix); i += 4 {
			for c := 0; c < 3; c++ {
				assert.InDelta(t, 128, int(m.pix[i+c]), 1, "mip %d pixel %d channel %d", mip, i/4, c)
			}
			assert.EqualValues(t, 255, m.pix[i+3], "mip %d alpha", mip)
		}
	}
}

func TestCheckerboardLosslessFinest(t *testing.T) {
	const width = 8
	pix := make([]byte, 4*width*width)
	for y := 0; y < width; y++ {
		for x := 0; x < width; x++ {
			v := byte(0)
			if (x+y)%2 == 1 {
				v = 255
			}
			i := 4 * (y*width + x)
			pix[i], pix[i+1], pix[i+2], pix[i+3] = v, v, v, 255
		}
	}

	w := &captureWriter{}
	_, err := highpass.Generate(pix, width, w, &highpass.Options{Channels: 4, KeepSharp: 10})
	require.NoError(t, err)

	finest := w.mips[0]
	require.Equal(t, width, finest.width)
	assert.Equal(t, pix, finest.pix, "finest mip must reproduce the checkerboard exactly")
}

func TestNonPowerOfTwoRejected(t *testing.T) {
	buf := make([]byte, 4*256*256)
	for _, width := range []int{100, 0, 3} {
		w := &captureWriter{}
		summary, err := highpass.Generate(buf, width, w, nil)
		require.ErrorIs(t, err, highpass.ErrNotPowerOfTwo, "width %d", width)
		assert.Nil(t, summary)
		assert.Empty(t, w.mips, "width %d must not emit any mip", width)
	}
}

func TestNormalMapCoarsestIsFlatNormal(t *testing.T) {
	const width = 32
	w := &captureWriter{}
	summary, err := highpass.Generate(noiseImage(width, 7), width, w, &highpass.Options{
		NormalMap: true,
		Channels:  4,
	})
	require.NoError(t, err)

	coarsest := w.mips[summary.Levels]
	require.Equal(t, 1, coarsest.width)
	// Working root (1, 0, 0): up component remaps to 254, the zero
	// tangent components to 127.
	assert.Equal(t, []byte{254, 127, 127, 255}, coarsest.pix)
}

func TestSinglePixelImage(t *testing.T) {
	w := &captureWriter{}
	summary, err := highpass.Generate([]byte{10, 200, 30, 255}, 1, w, &highpass.Options{Channels: 4})
	require.NoError(t, err)
	require.Equal(t, 0, summary.Levels)
	require.Len(t, w.mips, 1)
	assert.Equal(t, []byte{10, 200, 30, 255}, w.mips[0].pix)
}

// boxReference computes the exact recursive 2x2 average of the linear-loaded
// image at the given level, quantized the same way the emitter quantizes.
func boxReference(pix []byte, width, level int) []byte {
	cur := make([]float64, 4*width*width)
	for i := range cur {
		cur[i] = float64(pix[i]) / 255
	}
	for side := width; side > 1<<level; side /= 2 {
		half := side / 2
		next := make([]float64, 4*half*half)
		for y := 0; y < half; y++ {
			for x := 0; x < half; x++ {
				for c := 0; c < 4; c++ {
					sum := cur[4*((2*y)*side+2*x)+c] +
						cur[4*((2*y)*side+2*x+1)+c] +
						cur[4*((2*y+1)*side+2*x)+c] +
						cur[4*((2*y+1)*side+2*x+1)+c]
					next[4*(y*half+x)+c] = sum / 4
				}
			}
		}
		cur = next
	}
	out := make([]byte, len(cur))
	for i, v := range cur {
		out[i] = byte(255*v + 0.5)
	}
	return out
}

func meanAbsDiff(a, b []byte) float64 {
	var sum float64
	n := 0
	for i := 0; i < len(a); i += 4 {
		for c := 0; c < 3; c++ {
			sum += math.Abs(float64(a[i+c]) - float64(b[i+c]))
			n++
		}
	}
	return sum / float64(n)
}

// hfEnergy measures a surface's own high-frequency content: the mean
// absolute deviation of each pixel from its 2x2 block average.
func hfEnergy(pix []byte, side int) float64 {
	var sum float64
	n := 0
	for y := 0; y < side; y += 2 {
		for x := 0; x < side; x += 2 {
			for c := 0; c < 3; c++ {
				p := [4]float64{
					float64(pix[4*(y*side+x)+c]),
					float64(pix[4*(y*side+x+1)+c]),
					float64(pix[4*((y+1)*side+x)+c]),
					float64(pix[4*((y+1)*side+x+1)+c]),
				}
				avg := (p[0] + p[1] + p[2] + p[3]) / 4
				for _, v := range p {
					sum += math.Abs(v - avg)
					n++
				}
			}
		}
	}
	return sum / float64(n)
}

func TestKeepSharpControlsRetainedEnergy(t *testing.T) {
	const width = 64 // L = 6
	const level = 3  // inspect the 8x8 surface, mip 3
	pix := noiseImage(width, 11)
	ref := boxReference(pix, width, level)

	keeps := []int{-3, -1, 0, 1, 2, 5}
	devs := make([]float64, len(keeps))
	energies := make([]float64, len(keeps))

	for i, keep := range keeps {
		w := &captureWriter{}
		_, err := highpass.Generate(pix, width, w, &highpass.Options{Channels: 4, KeepSharp: keep})
		require.NoError(t, err)

		m := w.mips[3]
		require.Equal(t, 1<<level, m.width)
		devs[i] = meanAbsDiff(m.pix, ref)
		energies[i] = hfEnergy(m.pix, m.width)
	}

	// More kept steps means more retained detail: the surface's own
	// high-frequency energy grows and its deviation from the plain box
	// reference shrinks, both saturating once every step is unfiltered.
	for i := 1; i < len(keeps); i++ {
		assert.LessOrEqual(t, devs[i], devs[i-1]+0.5,
			"deviation from box reference must not grow with keepSharp (%d -> %d)", keeps[i-1], keeps[i])
		assert.GreaterOrEqual(t, energies[i], energies[i-1]-0.5,
			"retained energy must not shrink with keepSharp (%d -> %d)", keeps[i-1], keeps[i])
	}
	assert.Greater(t, devs[0], devs[len(devs)-1]+1.0, "attenuation at keepSharp=-3 must be clearly visible")
	assert.Greater(t, energies[len(energies)-1], energies[0]+1.0, "keepSharp=5 must clearly retain more detail")

	// Fully unfiltered synthesis reproduces the box average up to
	// quantization.
	assert.Less(t, devs[len(devs)-1], 1.0)
}

func TestChromaEncodedGray(t *testing.T) {
	const width = 16
	pix := solidImage(width, 100)

	for _, tc := range []struct {
		mode       highpass.ChromaMode
		wantChroma byte
	}{
		{highpass.ChromaScaled, 127}, // 255 * 127/255 rounded
		{highpass.ChromaPacked, 123}, // 255 * 15/31 rounded
	} {
		w := &captureWriter{}
		_, err := highpass.Generate(pix, width, w, &highpass.Options{
			SRGBInput: true,
			Chroma:    tc.mode,
			Channels:  4,
		})
		require.NoError(t, err)

		wantLuma := 255 * math.Pow(100.0/255, 1/2.2) // gamma round trip of the gray value

		finest := w.mips[0]
		for i := 0; i < len(finest.pix); i += 4 {
			assert.EqualValues(t, tc.wantChroma, finest.pix[i+0], "Co channel")
			assert.EqualValues(t, tc.wantChroma, finest.pix[i+2], "Cg channel")
			// Packed mode dithers luma by at most half a 6-bit step.
			assert.InDelta(t, wantLuma, float64(finest.pix[i+1]), 4, "luma channel")
		}
	}
}

func TestChromaDitherIsDeterministic(t *testing.T) {
	const width = 32
	pix := noiseImage(width, 13)
	opts := &highpass.Options{SRGBInput: true, Chroma: highpass.ChromaPacked, Channels: 4}

	w1 := &captureWriter{}
	_, err := highpass.Generate(pix, width, w1, opts)
	require.NoError(t, err)

	w2 := &captureWriter{}
	_, err = highpass.Generate(pix, width, w2, opts)
	require.NoError(t, err)

	require.Equal(t, w1.mips, w2.mips, "same input must produce byte-identical mips")
}

func TestSummaryStats(t *testing.T) {
	const width = 64
	w := &captureWriter{}
	summary, err := highpass.Generate(noiseImage(width, 17), width, w, &highpass.Options{Channels: 4})
	require.NoError(t, err)

	require.Len(t, summary.Stats, 7)
	assert.Zero(t, summary.Stats[0], "level 0 has no detail blocks")
	for l := 1; l <= summary.Levels; l++ {
		for c := 0; c < 3; c++ {
			assert.Greater(t, summary.Stats[l].MeanAbs[c], float32(0), "level %d channel %d", l, c)
			assert.GreaterOrEqual(t, summary.Stats[l].RMS[c], summary.Stats[l].MeanAbs[c],
				"RMS is never below the mean of magnitudes")
		}
	}
	assert.LessOrEqual(t, summary.InputLo[0], summary.InputHi[0])
}

func TestResampledFixture(t *testing.T) {
	// Non-power-of-two content resampled to a pow2 square, the same path
	// cmd/himip's -fit takes.
	src := image.NewNRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			i := src.PixOffset(x, y)
			src.Pix[i+0] = byte(x * 255 / 99)
			src.Pix[i+1] = byte(y * 255 / 99)
			src.Pix[i+2] = byte((x + y) * 255 / 198)
			src.Pix[i+3] = 255
		}
	}

	fitted := resize.Resize(64, 64, src, resize.Lanczos3)
	nrgba, ok := fitted.(*image.NRGBA)
	if !ok {
		nrgba = image.NewNRGBA(fitted.Bounds())
		for y := 0; y < 64; y++ {
			for x := 0; x < 64; x++ {
				nrgba.Set(x, y, fitted.At(x, y))
			}
		}
	}

	w := &captureWriter{}
	summary, err := highpass.Generate(nrgba.Pix, 64, w, &highpass.Options{SRGBInput: true, Channels: 4})
	require.NoError(t, err)
	assert.Equal(t, 6, summary.Levels)
	assert.Len(t, w.mips, 7)
}
