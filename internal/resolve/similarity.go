package resolve

import "strings"

// Similarity scores query against title in [0, 1] using a partial-ratio
// scheme: the shorter string is slid over the longer one and the best
// normalized indel similarity of any window wins. A query that appears
// verbatim inside a longer title therefore scores 1.0.
func Similarity(query, title string) float64 {
	a := normalize(query)
	b := normalize(title)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	if len(a) > len(b) {
		a, b = b, a
	}
	return partialRatio([]rune(a), []rune(b))
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// partialRatio slides short over long and returns the best window ratio.
func partialRatio(short, long []rune) float64 {
	n := len(short)
	best := 0.0
	for start := 0; start+n <= len(long); start++ {
		r := indelRatio(short, long[start:start+n])
		if r > best {
			best = r
			if best == 1 {
				return 1
			}
		}
	}
	// Also score against the full long string so near-misses in length are
	// not punished by a hard window cut.
	if r := indelRatio(short, long); r > best {
		best = r
	}
	return best
}

// indelRatio is the normalized insert/delete similarity:
// 2*LCS(a,b) / (len(a)+len(b)).
func indelRatio(a, b []rune) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 0
	}
	return float64(2*lcs(a, b)) / float64(total)
}

// lcs computes longest-common-subsequence length with a rolling row.
func lcs(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
