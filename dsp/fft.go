package dsp

import "math"

// FFT computes the in-place radix-2 decimation-in-time transform of the
// complex sequence re/im. Both slices must have the same power-of-two
// length. Used by the linear-phase EQ realization and the engine's spectrum
// analyzer; the sizes involved (<= 4096) do not warrant an FFT dependency.
func FFT(re, im []float64) {
	n := len(re)
	if n < 2 || n&(n-1) != 0 || len(im) != n {
		return
	}
	// bit reversal permutation
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			re[i], re[j] = re[j], re[i]
			im[i], im[j] = im[j], im[i]
		}
	}
	for length := 2; length <= n; length <<= 1 {
		ang := -2 * math.Pi / float64(length)
		wRe, wIm := math.Cos(ang), math.Sin(ang)
		for start := 0; start < n; start += length {
			curRe, curIm := 1.0, 0.0
			for k := 0; k < length/2; k++ {
				i, j := start+k, start+k+length/2
				tRe := re[j]*curRe - im[j]*curIm
				tIm := re[j]*curIm + im[j]*curRe
				re[j], im[j] = re[i]-tRe, im[i]-tIm
				re[i], im[i] = re[i]+tRe, im[i]+tIm
				curRe, curIm = curRe*wRe-curIm*wIm, curRe*wIm+curIm*wRe
			}
		}
	}
}

// IFFT computes the inverse transform of FFT, including the 1/n scaling.
func IFFT(re, im []float64) {
	n := len(re)
	for i := range im {
		im[i] = -im[i]
	}
	FFT(re, im)
	for i := range re {
		re[i] /= float64(n)
		im[i] = -im[i] / float64(n)
	}
}
