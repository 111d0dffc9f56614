package pyramid

import (
	"github.com/chewxy/math32"

	"github.com/deepteams/highpass/internal/haar"
)

// Reconstruct re-synthesizes every pyramid level from the stored 1x1 root
// and the detail coefficients, overwriting each level's slot in the pyramid
// arena with its finished pixels.
//
// Each target level gets its own sharpness profile: synthesis step i
// (0-indexed from the root) attenuates the step's detail coefficients by
// cf = 2^(i-levsup) while i < levsup, where
//
//	levsup = L - 1 - target - keepSharp
//
// so the coarsest steps are exponentially blurred and the finest keepSharp
// steps pass through unfiltered. With this threshold the finest level is
// always the exact inverse transform for keepSharp >= 0. keepSharp may be
// negative, which extends the attenuation into finer steps.
//
// Only the root value and the detail arena are read, so reconstruction is
// independent of any previously overwritten level.
func (p *Pyramid) Reconstruct(keepSharp int) {
	if p.scratch[0] == nil {
		n := 4 * p.width * p.width
		p.scratch[0] = make([]float32, n)
		p.scratch[1] = make([]float32, n)
	}
	for target := 0; target <= p.levels; target++ {
		p.reconstructLevel(target, keepSharp)
	}
}

func (p *Pyramid) reconstructLevel(target, keepSharp int) {
	cur := p.scratch[0]
	next := p.scratch[1]
	copy(cur[:4], p.sums[:4])

	levsup := p.levels - 1 - target - keepSharp

	for i := 0; i < target; i++ {
		cf := float32(1)
		if i < levsup {
			cf = math32.Ldexp(1, i-levsup)
		}

		// Step i expands the w x w approximation in cur into 2w x 2w in
		// next using the level i+1 detail triples: input pixel (x, y)
		// becomes the 2x2 output block at (2x, 2y).
		w := 1 << i
		wv := p.wave[p.waveOff[i+1]:]
		for y := 0; y < w; y++ {
			haar.InverseRows(
				next[(2*y)*4*2*w:(2*y+1)*4*2*w],
				next[(2*y+1)*4*2*w:(2*y+2)*4*2*w],
				2*w,
				cur[y*4*w:],
				wv[y*12*w:],
				cf,
			)
		}

		cur, next = next, cur
	}

	copy(p.Level(target), cur[:4<<(2*target)])
}
