package chrome

import "strings"

// ChartLimit is the number of points each series keeps.
const ChartLimit = 20

// Chart is a rolling window of CPU and memory samples with time labels.
// All three slices always have the same length.
type Chart struct {
	Labels []string
	CPU    []float64
	Memory []float64
	limit  int
}

// NewChart returns an empty chart holding at most limit points per series.
func NewChart(limit int) *Chart {
	if limit <= 0 {
		limit = ChartLimit
	}
	return &Chart{limit: limit}
}

// Push appends one point to every series and evicts the oldest once more
// than limit points are held.
func (c *Chart) Push(label string, cpu, memory float64) {
	c.Labels = append(c.Labels, label)
	c.CPU = append(c.CPU, cpu)
	c.Memory = append(c.Memory, memory)
	if len(c.Labels) > c.limit {
		c.Labels = c.Labels[1:]
		c.CPU = c.CPU[1:]
		c.Memory = c.Memory[1:]
	}
}

// Len reports the number of points held.
func (c *Chart) Len() int { return len(c.Labels) }

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// Sparkline renders percentages in [0, 100] as block characters.
func Sparkline(values []float64) string {
	var b strings.Builder
	for _, v := range values {
		switch {
		case v < 0:
			v = 0
		case v > 100:
			v = 100
		}
		idx := int(v / 100 * float64(len(sparkLevels)-1))
		b.WriteRune(sparkLevels[idx])
	}
	return b.String()
}
