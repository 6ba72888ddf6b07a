package reconcile

import "sort"

// longestIncreasing returns the values of one longest strictly increasing
// subsequence of seq, in order. It runs in O(n log n).
func longestIncreasing(seq []int) []int {
	if len(seq) == 0 {
		return nil
	}
	// tails[k] is the index in seq of the smallest tail of an increasing
	// run of length k+1; prev links each element to its predecessor.
	tails := make([]int, 0, len(seq))
	prev := make([]int, len(seq))
	for i, v := range seq {
		k := sort.Search(len(tails), func(j int) bool { return seq[tails[j]] >= v })
		if k > 0 {
			prev[i] = tails[k-1]
		} else {
			prev[i] = -1
		}
		if k == len(tails) {
			tails = append(tails, i)
		} else {
			tails[k] = i
		}
	}
	out := make([]int, len(tails))
	for i, k := tails[len(tails)-1], len(tails)-1; k >= 0; i, k = prev[i], k-1 {
		out[k] = seq[i]
	}
	return out
}

// fenwick is a binary indexed tree over positions 0..n-1.
type fenwick []int

func newFenwick(n int) fenwick {
	return make(fenwick, n+1)
}

func (f fenwick) add(i, delta int) {
	for i++; i < len(f); i += i & -i {
		f[i] += delta
	}
}

// sum returns the total over positions [0, i). Negative i yields 0.
func (f fenwick) sum(i int) int {
	total := 0
	if i > len(f)-1 {
		i = len(f) - 1
	}
	for ; i > 0; i -= i & -i {
		total += f[i]
	}
	return total
}
