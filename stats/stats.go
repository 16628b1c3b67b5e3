// Package stats has helpers for summarising datasets and batches.
package stats

import (
	"fmt"
	"html/template"
	"math"
)

// Calc exponentional moving average
type EMA float64

func (e EMA) Add(val, n float64) EMA {
	if e == 0 {
		return EMA(val)
	}
	k := 2.0 / (n + 1.0)
	return EMA(val*k + float64(e)*(1-k))
}

// Running mean and stddev as per http://www.johndcook.com/blog/standard_deviation/
type Average struct {
	Count, Mean float64
	Var, StdDev float64
	oldM, oldV  float64
}

func (s *Average) Add(x float64) {
	s.Count++
	if s.Count == 1 {
		s.oldM, s.Mean = x, x
		s.oldV = 0
	} else {
		s.Mean = s.oldM + (x-s.oldM)/s.Count
		s.Var = s.oldV + (x-s.oldM)*(x-s.Mean)
		s.oldM, s.oldV = s.Mean, s.Var
		s.StdDev = math.Sqrt(s.Var / (s.Count - 1))
	}
}

func (s *Average) String() string {
	return fmt.Sprintf("%.3f±%.3f", s.Mean, s.StdDev)
}

func (s *Average) HTML() template.HTML {
	var text string
	if math.Abs(s.Mean) > 10 {
		text = fmt.Sprintf("%.1f&PlusMinus;%.1f", s.Mean, s.StdDev)
	} else {
		text = fmt.Sprintf("%.3f&PlusMinus;%.3f", s.Mean, s.StdDev)
	}
	return template.HTML(text)
}

// Counts tallies the number of positive labels for each attribute
type Counts struct {
	Names    []string
	Positive []int
	Total    int
}

func NewCounts(names []string) *Counts {
	return &Counts{Names: names, Positive: make([]int, len(names))}
}

// Add a label vector, values above 0.5 are counted as positive
func (c *Counts) Add(label []float32) {
	c.Total++
	for i, v := range label {
		if i < len(c.Positive) && v > 0.5 {
			c.Positive[i]++
		}
	}
}

// Fraction of samples with attribute i set
func (c *Counts) Fraction(i int) float64 {
	if c.Total == 0 {
		return 0
	}
	return float64(c.Positive[i]) / float64(c.Total)
}

func (c *Counts) String() string {
	s := fmt.Sprintf("%d samples", c.Total)
	for i, name := range c.Names {
		s += fmt.Sprintf("\n  %-20s %6.2f%%", name, 100*c.Fraction(i))
	}
	return s
}
