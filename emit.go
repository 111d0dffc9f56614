package highpass

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/deepteams/highpass/coycg"
	"github.com/deepteams/highpass/internal/pool"
	"github.com/deepteams/highpass/internal/pyramid"
)

// normalScale remaps signed [-1,1] components so that zero lands exactly on
// byte 127, the inverse of the (v-127)/127 load policy.
const normalScale = 127.0 / 255

func saturate(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// emit converts every reconstructed level to 8-bit RGBA and delivers it,
// coarsest first. The surface buffer is pooled and reused across levels, so
// writers must not retain it.
func emit(p *pyramid.Pyramid, dst MipWriter, opts *Options) error {
	levels := p.Levels()
	buf := pool.Get(4 * p.Width() * p.Width())
	defer pool.Put(buf)

	for level := 0; level <= levels; level++ {
		w := 1 << level
		surface := buf[:4*w*w]
		convertLevel(surface, p.Level(level), opts)

		mip := levels - level
		if err := dst.WriteMip(surface, w, w, 1, 0, mip); err != nil {
			return fmt.Errorf("highpass: writing mip %d: %w", mip, err)
		}
	}
	return nil
}

// convertLevel applies the output colorspace transform and quantizes one
// level's working floats to 8-bit RGBA. Alpha is forced opaque.
func convertLevel(dst []byte, src []float32, opts *Options) {
	gamma := opts.SRGBInput || opts.Chroma != ChromaNone
	variant := coycg.VariantScaled
	if opts.Chroma == ChromaPacked {
		variant = coycg.VariantPacked
	}

	for k := 0; k < len(src); k += 4 {
		var f0, f1, f2 float32

		switch {
		case opts.NormalMap:
			// Re-derive the up component from the filtered tangent
			// components; filtering denormalizes, this renormalizes.
			z2 := 1 - (src[k+1]*src[k+1] + src[k+2]*src[k+2])
			var z float32
			if z2 > 0 {
				z = math32.Sqrt(z2)
			}
			f0 = saturate((z + 1) * normalScale)
			f1 = saturate((src[k+1] + 1) * normalScale)
			f2 = saturate((src[k+2] + 1) * normalScale)

		case gamma:
			f0 = math32.Pow(saturate(src[k+0]), 1/2.2)
			f1 = math32.Pow(saturate(src[k+1]), 1/2.2)
			f2 = math32.Pow(saturate(src[k+2]), 1/2.2)

			if opts.Chroma != ChromaNone {
				f0, f1, f2 = coycg.Encode(f0, f1, f2, variant)
				if opts.Chroma == ChromaPacked {
					f1 += coycg.Dither(k)
				}
				f0 = saturate(f0)
				f1 = saturate(f1)
				f2 = saturate(f2)
			}

		default:
			f0 = saturate(src[k+0])
			f1 = saturate(src[k+1])
			f2 = saturate(src[k+2])
		}

		dst[k+0] = byte(255*f0 + 0.5)
		dst[k+1] = byte(255*f1 + 0.5)
		dst[k+2] = byte(255*f2 + 0.5)
		dst[k+3] = 255
	}
}
