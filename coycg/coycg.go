// Package coycg implements the CoYCg luma/chroma encoding used for
// compression-friendly mip output: gamma-space RGB is repacked as two biased
// chroma channels around a luma channel, so that a block compressor can
// spend its green precision on luma.
//
// Two variants exist, differing only in the chroma bias constant and in
// whether a deterministic luma dither is applied before quantization.
package coycg

// Variant selects the chroma bias and dithering policy.
type Variant int

const (
	// VariantScaled biases chroma with 127/255 and applies no dither.
	VariantScaled Variant = iota
	// VariantPacked biases chroma with 15/31 (half of a 5-bit endpoint
	// range) and dithers luma to decorrelate quantization banding.
	VariantPacked
)

const (
	biasScaled = 127.0 / 255
	biasPacked = 15.0 / 31

	// Dither hash constants: a large odd multiplier and the scale mapping
	// a wrapped int32 onto [-1,1).
	hashK      = 2047483673
	hashIRange = float32(1.0 / 2147483648.0)

	// DitherAmplitude is half of one 6-bit quantization step, the
	// precision luma lands in after block compression.
	DitherAmplitude = 0.5 / 63
)

// Bias returns the chroma bias constant of the variant.
func (v Variant) Bias() float32 {
	if v == VariantPacked {
		return biasPacked
	}
	return biasScaled
}

// Encode repacks one gamma-space RGB pixel (components in [0,1]) as
// (chromaO, luma, chromaG):
//
//	Y  = (r + 2g + b) / 4
//	Co = 2 * (2r - 2b) / 4
//	Cg = 2 * (-r + 2g - b) / 4
//
// with each chroma channel mapped to bias*(2*C + 1), so zero chroma encodes
// as the bias midpoint. Luma is passed through unscaled. Saturated chroma
// can land outside [0,1]; quantization is expected to clamp.
func Encode(r, g, b float32, v Variant) (co, y, cg float32) {
	bias := v.Bias()
	y = (r + 2*g + b) * 0.25
	co2 := (2*r - 2*b) * 0.25 * 2
	cg2 := (-r + 2*g - b) * 0.25 * 2
	co = bias * (2*co2 + 1)
	cg = bias * (2*cg2 + 1)
	return co, y, cg
}

// Dither returns the deterministic luma dither for the pixel at float index
// k (pixel index * 4, matching the emitter's walk): a cheap integer hash
// mapped to [-1,1) and scaled by DitherAmplitude. It is a pure function of
// k, so repeated encodes of the same image are byte-identical.
func Dither(k int) float32 {
	p := (int32(hashK)*int32(k) + 1) * int32(k)
	return float32(p) * hashIRange * DitherAmplitude
}
