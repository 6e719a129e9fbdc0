package extract

import (
	"math"
	"sort"

	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/domain"
)

// summarize computes the numeric summary of values using the sample
// standard deviation and linearly interpolated quartiles.
func summarize(values []float64) domain.ColumnStats {
	n := len(values)
	if n == 0 {
		return domain.ColumnStats{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(n)

	// A single value has no sample deviation; report zero rather than NaN.
	var std float64
	if n > 1 {
		var sq float64
		for _, v := range sorted {
			sq += (v - mean) * (v - mean)
		}
		std = math.Sqrt(sq / float64(n-1))
	}

	return domain.ColumnStats{
		Count: n,
		Mean:  mean,
		Std:   std,
		Min:   sorted[0],
		Q25:   quantile(sorted, 0.25),
		Q50:   quantile(sorted, 0.5),
		Q75:   quantile(sorted, 0.75),
		Max:   sorted[n-1],
	}
}

// quantile interpolates linearly between the closest ranks of sorted.
func quantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// numericValues collects the non-null numeric cells of column col.
func numericValues(rows [][]any, col int) []float64 {
	var out []float64
	for _, row := range rows {
		switch v := row[col].(type) {
		case int64:
			out = append(out, float64(v))
		case float64:
			out = append(out, v)
		}
	}
	return out
}
