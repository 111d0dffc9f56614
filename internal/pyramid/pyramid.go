// Package pyramid builds and re-synthesizes the Haar mip pyramid: a single
// decomposition pass over a square power-of-two RGBA image produces a
// low-frequency pyramid, a detail-coefficient arena and per-level statistics;
// reconstruction then re-synthesizes any level with a level-dependent
// attenuation of the detail coefficients.
//
// Both arenas are allocated once per decomposition and addressed through
// offset tables precomputed from the width, so every stage reads and writes
// fixed, disjoint slices. Levels are stored coarsest first: level 0 (the 1x1
// global average) at offset 0, level L (full resolution) last.
package pyramid

import (
	"errors"

	"github.com/chewxy/math32"

	"github.com/deepteams/highpass/internal/haar"
)

// ErrNotPowerOfTwo is returned by Decompose when the image width is not an
// exact power of two. It is the only validated precondition.
var ErrNotPowerOfTwo = errors.New("pyramid: width is not a power of two")

// LevelStats holds the advisory detail statistics of one pyramid level:
// per-channel mean absolute magnitude and RMS magnitude of the salience
// (|horizontal| + |vertical| + |diagonal|) over the level's 2x2 blocks.
// Reconstruction does not consult these; they exist for diagnostics and
// future attenuation policies.
type LevelStats struct {
	MeanAbs [4]float32
	RMS     [4]float32
}

// Pyramid is the decomposition of one image. It is single-use and not safe
// for concurrent access.
type Pyramid struct {
	width  int
	levels int

	sums []float32 // low-frequency pyramid, coarsest level first
	wave []float32 // detail triples for levels 1..levels, coarsest first

	sumOff  []int // sums offset per level, 0..levels+1 (last entry = len)
	waveOff []int // wave offset per level, valid for 1..levels

	salience []byte // per-level scratch magnitude plane, alpha forced opaque
	stats    []LevelStats

	inputLo [4]float32
	inputHi [4]float32

	scratch [2][]float32 // synthesis ping-pong, allocated on first Reconstruct
}

func ilog2(v int) int {
	n := 0
	for v > 1 {
		v >>= 1
		n++
	}
	return n
}

// Decompose runs the forward wavelet pass over an 8-bit image of the given
// width (square, power of two). pitch is the source row stride in bytes
// (0 means channels*width); channels is 3 or 4. The load policy fixes the
// byte-to-float conversion for the whole image.
//
// On success the returned Pyramid holds the full low-frequency pyramid, the
// detail coefficients of every level and the per-level statistics. The only
// failure is a non-power-of-two width.
func Decompose(pixels []byte, width, pitch, channels int, policy haar.LoadPolicy) (*Pyramid, error) {
	if width <= 0 || width&(width-1) != 0 {
		return nil, ErrNotPowerOfTwo
	}
	if channels == 0 {
		channels = 4
	}
	if pitch == 0 {
		pitch = channels * width
	}

	p := &Pyramid{
		width:  width,
		levels: ilog2(width),
	}

	// Offset tables. Level l holds 4*4^l sums floats and, for l >= 1,
	// 12*4^(l-1) wave floats; coarsest-first layout gives closed forms
	// sumOff(l) = 4*(4^l-1)/3 and waveOff(l) = 4*(4^(l-1)-1).
	p.sumOff = make([]int, p.levels+2)
	p.waveOff = make([]int, p.levels+1)
	for l := 0; l <= p.levels+1; l++ {
		p.sumOff[l] = 4 * ((1 << (2 * l)) - 1) / 3
	}
	for l := 1; l <= p.levels; l++ {
		p.waveOff[l] = 4 * ((1 << (2 * (l - 1))) - 1)
	}

	p.sums = make([]float32, p.sumOff[p.levels+1])
	p.wave = make([]float32, 4*(width*width-1))
	p.salience = make([]byte, width*width)
	p.stats = make([]LevelStats, p.levels+1)

	p.loadImage(pixels, pitch, channels, policy)

	for l := p.levels; l >= 1; l-- {
		p.decomposeLevel(l)
	}

	p.finishRoot(policy)
	return p, nil
}

// loadImage converts the source rows into the finest pyramid level and
// records the per-channel input range.
func (p *Pyramid) loadImage(pixels []byte, pitch, channels int, policy haar.LoadPolicy) {
	for c := 0; c < 4; c++ {
		p.inputLo[c] = 1
		p.inputHi[c] = 0
	}

	top := p.sums[p.sumOff[p.levels]:]
	rowFloats := 4 * p.width
	for y := 0; y < p.width; y++ {
		row := top[y*rowFloats : (y+1)*rowFloats]
		haar.LoadRow(row, pixels[y*pitch:], p.width, channels, policy)

		for i := 0; i < rowFloats; i += 4 {
			for c := 0; c < 4; c++ {
				v := row[i+c]
				if v > p.inputHi[c] {
					p.inputHi[c] = v
				}
				if v < p.inputLo[c] {
					p.inputLo[c] = v
				}
			}
		}
	}
}

// decomposeLevel runs the forward butterfly over level l, writing level l-1
// sums and level l details, then derives the salience plane and statistics
// for the level.
func (p *Pyramid) decomposeLevel(l int) {
	w := 1 << l
	src := p.sums[p.sumOff[l]:p.sumOff[l+1]]
	dst := p.sums[p.sumOff[l-1]:p.sumOff[l]]
	wv := p.wave[p.waveOff[l] : p.waveOff[l]+12*(w/2)*(w/2)]

	for y := 0; y < w; y += 2 {
		half := y / 2
		haar.ForwardRows(
			src[y*4*w:(y+1)*4*w],
			src[(y+1)*4*w:(y+2)*4*w],
			w,
			dst[half*4*(w/2):],
			wv[half*12*(w/2):],
		)
	}

	p.accumulateStats(l, wv, w/2)
}

// accumulateStats computes the level's salience plane and the mean/RMS
// detail statistics from its freshly written detail triples. half is the
// block-grid width (w/2).
func (p *Pyramid) accumulateStats(l int, wv []float32, half int) {
	st := &p.stats[l]
	var sum, sumSq [4]float32

	gi := 0
	for b := 0; b < half*half; b++ {
		block := wv[b*12 : b*12+12]
		for k := 0; k < 4; k++ {
			v := haar.BlockMagnitude(block[k*3 : k*3+3])
			sum[k] += v
			sumSq[k] += v * v

			g := v*255 + 0.5
			if g > 255 {
				g = 255
			}
			p.salience[gi] = byte(g)
			gi++
		}
		p.salience[gi-1] = 255 // alpha stays opaque
	}

	d := 1 / float32(3*half*half)
	for k := 0; k < 4; k++ {
		st.MeanAbs[k] = d * sum[k]
		st.RMS[k] = math32.Sqrt(d * sumSq[k])
	}
}

// finishRoot post-processes the 1x1 level. Normal maps get a flat
// "pointing up" normal regardless of content; color images have the root
// snapped to 8-bit precision so the coarsest mip is an exact rounded color
// rather than an accumulation of float drift.
func (p *Pyramid) finishRoot(policy haar.LoadPolicy) {
	root := p.sums[:4]
	if policy == haar.LoadSignedNormal {
		root[0] = 1
		root[1] = 0
		root[2] = 0
		return
	}
	for c := 0; c < 3; c++ {
		root[c] = float32(int(root[c]*255+0.5)) * (1.0 / 255)
	}
}

// Width returns the side length of the source image.
func (p *Pyramid) Width() int { return p.width }

// Levels returns L = log2(width); the pyramid holds levels 0..L.
func (p *Pyramid) Levels() int { return p.levels }

// Level returns the float pixel data of one level as a slice into the
// pyramid arena (4 floats per pixel, 2^l pixels per side). After Reconstruct
// the slice holds the re-synthesized level.
func (p *Pyramid) Level(l int) []float32 {
	return p.sums[p.sumOff[l]:p.sumOff[l+1]]
}

// Stats returns the advisory per-level detail statistics, indexed by level.
// The level 0 entry is always zero.
func (p *Pyramid) Stats() []LevelStats { return p.stats }

// InputRange returns the per-channel minimum and maximum observed while
// loading the source image, in the working float representation.
func (p *Pyramid) InputRange() (lo, hi [4]float32) { return p.inputLo, p.inputHi }
