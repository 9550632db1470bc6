package procstat

import "fmt"

// ComputeUsage computes the busy percentage of every entry over the interval
// between prev and curr and appends the results to dst[:0].
//
// Counters are assumed not to wrap between the two snapshots. The call fails
// as a whole, with no partial result, if the snapshots differ in shape or if
// any entry saw no elapsed time. A shape mismatch is reported even when an
// entry also saw no elapsed time.
func ComputeUsage(prev, curr []CounterRecord, dst []float64) ([]float64, error) {
	if len(prev) != len(curr) {
		return dst[:0], fmt.Errorf("%w: %d vs %d entries", ErrShapeMismatch, len(prev), len(curr))
	}

	for i := range curr {
		if prev[i].Name != curr[i].Name {
			return dst[:0], fmt.Errorf("%w: entry %d is %q then %q", ErrShapeMismatch, i, prev[i].Name, curr[i].Name)
		}
	}

	dst = dst[:0]
	for i := range curr {
		p, c := &prev[i], &curr[i]
		totalDelta := c.TotalTime() - p.TotalTime()
		idleDelta := c.IdleTime() - p.IdleTime()
		if totalDelta == 0 {
			return dst[:0], fmt.Errorf("%w: %s", ErrZeroDelta, c.Name)
		}

		dst = append(dst, float64(totalDelta-idleDelta)/float64(totalDelta)*100)
	}
	return dst, nil
}
