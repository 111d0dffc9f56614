// Package haar implements the separable Haar butterfly used by the mip
// pyramid: a forward pass turning pairs of interleaved RGBA float rows into
// one low-frequency row plus three detail coefficients per 2x2 block, and the
// exact algebraic inverse with optional detail attenuation.
//
// The arithmetic is plain averaging/differencing (divide by two), not
// orthonormal scaling. At cf == 1 the inverse undoes the forward pass up to
// float rounding, which the reconstruction stage relies on.
package haar

import "github.com/chewxy/math32"

// Channels is the interleaved channel count of every row this package
// processes. Rows are packed RGBA float32 regardless of the source format;
// three-channel sources get alpha filled during loading.
const Channels = 4

// DetailsPerBlock is the number of detail coefficients produced per channel
// per 2x2 block: horizontal, vertical and diagonal.
const DetailsPerBlock = 3

// ForwardRows decomposes two adjacent rows of width pixels into width/2
// low-frequency pixels and width/2 detail triples.
//
// top and bot must hold Channels*width floats. sums receives
// Channels*width/2 floats, diff receives Channels*DetailsPerBlock*width/2
// floats laid out as [dac sbd dbd] per channel, channel-interleaved per
// block, exactly as InverseRows consumes them.
func ForwardRows(top, bot []float32, width int, sums, diff []float32) {
	si, di := 0, 0
	for x := 0; x < width; x += 2 {
		i := x * Channels
		for k := 0; k < Channels; k++ {
			a := top[i+k]
			b := top[i+k+Channels]
			c := bot[i+k]
			d := bot[i+k+Channels]

			sa := (a + b) / 2
			db := a - b
			sc := (c + d) / 2
			dd := c - d

			sums[si] = (sa + sc) / 2
			diff[di+0] = sa - sc
			diff[di+1] = (db + dd) / 2
			diff[di+2] = db - dd
			si++
			di += DetailsPerBlock
		}
	}
}

// InverseRows reconstructs two rows of width pixels from width/2
// low-frequency pixels and width/2 detail triples. The three detail
// coefficients of every block are scaled by cf before inversion: cf == 1 is
// the lossless inverse of ForwardRows, cf == 0 replicates the block average
// into all four pixels.
func InverseRows(top, bot []float32, width int, sums, diff []float32, cf float32) {
	si, di := 0, 0
	for x := 0; x < width; x += 2 {
		i := x * Channels
		for k := 0; k < Channels; k++ {
			sac := sums[si]
			dac := cf * diff[di+0]
			sbd := cf * diff[di+1]
			dbd := cf * diff[di+2]
			si++
			di += DetailsPerBlock

			sa := sac + dac/2
			sc := sac - dac/2
			db := sbd + dbd/2
			dd := sbd - dbd/2

			top[i+k] = sa + db/2
			top[i+k+Channels] = sa - db/2
			bot[i+k] = sc + dd/2
			bot[i+k+Channels] = sc - dd/2
		}
	}
}

// BlockMagnitude returns the salience of one block's detail triple: the sum
// of absolute detail coefficients.
func BlockMagnitude(diff []float32) float32 {
	return math32.Abs(diff[0]) + math32.Abs(diff[1]) + math32.Abs(diff[2])
}
