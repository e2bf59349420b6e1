package stats

import "math"

// Online accumulates a running mean and sample variance using Welford's update.
// The zero value is ready to use.
type Online struct {
	count int
	mean  float64
	m2    float64
}

func (o *Online) Add(x float64) {
	o.count++
	delta := x - o.mean
	o.mean += delta / float64(o.count)
	o.m2 += delta * (x - o.mean)
}

func (o *Online) Count() int { return o.count }

func (o *Online) Mean() float64 {
	if o.count == 0 {
		return 0
	}
	return o.mean
}

// Variance divides by count-1 and is 0 until two samples exist.
func (o *Online) Variance() float64 {
	if o.count <= 1 {
		return 0
	}
	return o.m2 / float64(o.count-1)
}

func (o *Online) StdDev() float64 { return math.Sqrt(o.Variance()) }

func (o *Online) Reset() { *o = Online{} }
