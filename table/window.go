package table

import "time"

// Rolling calls fn for every row i with lo, the first row inside the
// trailing window (index[i]-w, index[i]].
func Rolling(index []time.Time, w time.Duration, fn func(i, lo int)) {
	lo := 0
	for i, ts := range index {
		edge := ts.Add(-w)
		for lo < i && !index[lo].After(edge) {
			lo++
		}
		fn(i, lo)
	}
}
