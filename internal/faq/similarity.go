package faq

// Ratio computes a similarity score in [0,1] between two strings using the
// classic sequence-matcher measure: 2*M/T, where M is the total length of
// the matching blocks (longest matching substring, then the same measure
// applied recursively to the pieces on either side) and T is the combined
// length of both inputs. Equal strings score 1, disjoint strings 0.
func Ratio(a, b string) float64 {
	ar := []rune(a)
	br := []rune(b)
	total := len(ar) + len(br)
	if total == 0 {
		return 1
	}
	matched := matchingSize(ar, br)
	return 2 * float64(matched) / float64(total)
}

func matchingSize(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	ai, bi, size := longestMatch(a, b)
	if size == 0 {
		return 0
	}
	return size +
		matchingSize(a[:ai], b[:bi]) +
		matchingSize(a[ai+size:], b[bi+size:])
}

// longestMatch finds the longest common contiguous block, preferring the
// earliest occurrence in a (then in b) on ties.
func longestMatch(a, b []rune) (bestA, bestB, bestSize int) {
	// lengths[j] holds the length of the common suffix ending at a[i-1], b[j-1]
	// for the current row i.
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > bestSize {
					bestSize = cur[j]
					bestA = i - cur[j]
					bestB = j - cur[j]
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}
	return bestA, bestB, bestSize
}
