package operators

import "math"

const epsilon = 1e-9

// grid returns positions 1, 1+step, ... strictly before end
func grid(step, end float64) []float64 {
	if step <= 0 {
		return nil
	}
	var out []float64
	for i := 0; ; i++ {
		b := 1 + float64(i)*step
		if b >= end-epsilon {
			break
		}
		out = append(out, b)
	}
	return out
}

func isWhole(v float64) bool {
	return math.Abs(v-math.Round(v)) < epsilon
}

// octaveInto shifts pitch by octaves until it lies in [low, high]. A window
// narrower than an octave may have no solution; the nearest octave below
// high is returned then.
func octaveInto(pitch, low, high int) int {
	if low > high {
		return pitch
	}
	for pitch < low {
		pitch += 12
	}
	for pitch > high {
		pitch -= 12
	}
	return pitch
}
