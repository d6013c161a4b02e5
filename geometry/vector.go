package geometry

import "math"

func Add(a, b [3]float64) [3]float64 {
	return [3]float64{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
}

func Sub(a, b [3]float64) [3]float64 {
	return [3]float64{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func Scale(alpha float64, a [3]float64) [3]float64 {
	return [3]float64{alpha * a[0], alpha * a[1], alpha * a[2]}
}

func Dot(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func Cross(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func Norm(a [3]float64) float64 {
	return math.Sqrt(Dot(a, a))
}

func Distance(a, b [3]float64) float64 {
	return Norm(Sub(a, b))
}

// Unit returns a/|a|, or the zero vector for a zero input.
func Unit(a [3]float64) [3]float64 {
	n := Norm(a)
	if n == 0 {
		return a
	}
	return Scale(1/n, a)
}
