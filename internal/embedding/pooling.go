package embedding

import "fmt"

// meanPool averages the token vectors of hidden ([seq, dims], row-major) whose mask is set.
func meanPool(hidden []float32, mask []int64, dims int) ([]float32, error) {
	if dims <= 0 || len(hidden) != len(mask)*dims {
		return nil, fmt.Errorf("hidden state has %d values, want %d tokens x %d dims", len(hidden), len(mask), dims)
	}
	out := make([]float32, dims)
	var n float32
	for t, m := range mask {
		if m == 0 {
			continue
		}
		row := hidden[t*dims : (t+1)*dims]
		for i, x := range row {
			out[i] += x
		}
		n++
	}
	if n == 0 {
		return nil, fmt.Errorf("no attended tokens")
	}
	for i := range out {
		out[i] /= n
	}
	return out, nil
}
