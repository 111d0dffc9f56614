package haar

import "github.com/chewxy/math32"

// LoadPolicy selects how 8-bit source channels are converted to working
// floats. The policy is chosen once per decomposition and applies to the
// whole image; alpha is always linear.
type LoadPolicy int

const (
	// LoadLinear maps bytes to [0,1] as v/255.
	LoadLinear LoadPolicy = iota
	// LoadGamma maps bytes through (v/255)^2.2, converting sRGB-authored
	// content into the linear space the pyramid averages in.
	LoadGamma
	// LoadSignedNormal maps the first three channels to [-1,1] as
	// (v-127)/127, the working range for normal map components.
	LoadSignedNormal
)

// LoadRow converts one row of 8-bit pixels into Channels*width working
// floats. channels is the source pixel stride in bytes (3 or 4); when 3, the
// destination alpha is set to 1.
func LoadRow(dst []float32, src []byte, width, channels int, policy LoadPolicy) {
	for x := 0; x < width; x++ {
		s := src[x*channels : x*channels+channels]
		d := dst[x*Channels : x*Channels+Channels]

		switch policy {
		case LoadSignedNormal:
			d[0] = float32(int(s[0])-127) * (1.0 / 127)
			d[1] = float32(int(s[1])-127) * (1.0 / 127)
			d[2] = float32(int(s[2])-127) * (1.0 / 127)
		case LoadGamma:
			d[0] = math32.Pow(float32(s[0])*(1.0/255), 2.2)
			d[1] = math32.Pow(float32(s[1])*(1.0/255), 2.2)
			d[2] = math32.Pow(float32(s[2])*(1.0/255), 2.2)
		default:
			d[0] = float32(s[0]) * (1.0 / 255)
			d[1] = float32(s[1]) * (1.0 / 255)
			d[2] = float32(s[2]) * (1.0 / 255)
		}

		if channels < 4 {
			d[3] = 1
		} else {
			d[3] = float32(s[3]) * (1.0 / 255)
		}
	}
}
