package imagedoc

import (
	"image"
	"image/color"
	"math"
	"sort"
)

// Preprocess runs the scan-cleanup chain before OCR: grayscale,
// median denoise, deskew, contrast stretch. Output is always grayscale.
func Preprocess(src image.Image) *image.Gray {
	gray := toGray(src)
	gray = medianFilter(gray)
	if angle := estimateSkew(gray); angle != 0 {
		gray = rotate(gray, -angle)
	}
	return stretchContrast(gray)
}

func toGray(src image.Image) *image.Gray {
	bounds := src.Bounds()
	out := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			out.Set(x, y, color.GrayModel.Convert(src.At(x, y)))
		}
	}
	return out
}

// medianFilter removes salt-and-pepper noise with a 3x3 window.
func medianFilter(src *image.Gray) *image.Gray {
	bounds := src.Bounds()
	out := image.NewGray(bounds)
	window := make([]uint8, 0, 9)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			window = window[:0]
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < bounds.Min.X || nx >= bounds.Max.X || ny < bounds.Min.Y || ny >= bounds.Max.Y {
						continue
					}
					window = append(window, src.GrayAt(nx, ny).Y)
				}
			}
			sort.Slice(window, func(i, j int) bool { return window[i] < window[j] })
			out.SetGray(x, y, color.Gray{Y: window[len(window)/2]})
		}
	}
	return out
}

// estimateSkew tries small rotations and keeps the angle maximizing the
// variance of row darkness. Text lines make rows strongly bimodal when
// the page is straight.
func estimateSkew(src *image.Gray) float64 {
	bestAngle, bestScore := 0.0, rowVariance(src)
	for _, angle := range []float64{-3, -2, -1, 1, 2, 3} {
		score := rowVariance(rotate(src, angle))
		if score > bestScore {
			bestScore = score
			bestAngle = angle
		}
	}
	return bestAngle
}

func rowVariance(src *image.Gray) float64 {
	bounds := src.Bounds()
	height := bounds.Dy()
	if height == 0 {
		return 0
	}
	sums := make([]float64, 0, height)
	var mean float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		var row float64
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			row += 255 - float64(src.GrayAt(x, y).Y)
		}
		sums = append(sums, row)
		mean += row
	}
	mean /= float64(height)

	var variance float64
	for _, s := range sums {
		variance += (s - mean) * (s - mean)
	}
	return variance / float64(height)
}

// rotate applies a nearest-neighbor rotation about the center, filling
// uncovered pixels with white.
func rotate(src *image.Gray, degrees float64) *image.Gray {
	bounds := src.Bounds()
	out := image.NewGray(bounds)
	rad := degrees * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	cx := float64(bounds.Min.X+bounds.Max.X) / 2
	cy := float64(bounds.Min.Y+bounds.Max.Y) / 2

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			dx, dy := float64(x)-cx, float64(y)-cy
			sx := int(math.Round(cx + dx*cos - dy*sin))
			sy := int(math.Round(cy + dx*sin + dy*cos))
			if sx < bounds.Min.X || sx >= bounds.Max.X || sy < bounds.Min.Y || sy >= bounds.Max.Y {
				out.SetGray(x, y, color.Gray{Y: 255})
				continue
			}
			out.SetGray(x, y, src.GrayAt(sx, sy))
		}
	}
	return out
}

// stretchContrast maps the 2nd..98th percentile range onto 0..255.
func stretchContrast(src *image.Gray) *image.Gray {
	bounds := src.Bounds()
	var hist [256]int
	total := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			hist[src.GrayAt(x, y).Y]++
			total++
		}
	}
	if total == 0 {
		return src
	}

	lo := percentile(hist[:], total, 0.02)
	hi := percentile(hist[:], total, 0.98)
	if hi <= lo {
		return src
	}

	out := image.NewGray(bounds)
	scale := 255.0 / float64(hi-lo)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			v := float64(int(src.GrayAt(x, y).Y)-lo) * scale
			if v < 0 {
				v = 0
			}
			if v > 255 {
				v = 255
			}
			out.SetGray(x, y, color.Gray{Y: uint8(v)})
		}
	}
	return out
}

func percentile(hist []int, total int, p float64) int {
	target := int(float64(total) * p)
	acc := 0
	for v, count := range hist {
		acc += count
		if acc >= target {
			return v
		}
	}
	return len(hist) - 1
}
