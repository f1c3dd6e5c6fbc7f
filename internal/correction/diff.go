package correction

import (
	"fmt"
	"strings"
)

// Confidence assigned to diff-derived changes. Generative edits are
// inherently less certain than deterministic rules, so they never reach 1.0.
const (
	diffReplaceConfidence = 0.85
	diffEditConfidence    = 0.8
)

// indexPair maps a token index in the before sequence to the corresponding
// index in the after sequence.
type indexPair struct {
	beforeIdx int
	afterIdx  int
}

// Diff tokenizes before and after on whitespace, aligns the token sequences
// with a longest-common-subsequence match, and returns one [Change] per
// maximal differing block: a replacement carries both spans, a deletion an
// empty Corrected span, an insertion an empty Original span. Equal inputs
// produce no changes.
func Diff(before, after string) []Change {
	if before == after {
		return nil
	}

	a := strings.Fields(before)
	b := strings.Fields(after)

	var changes []Change
	ai, bi := 0, 0
	emit := func(aEnd, bEnd int) {
		if ai >= aEnd && bi >= bEnd {
			return
		}
		changes = append(changes, blockChange(a[ai:aEnd], b[bi:bEnd]))
	}

	for _, anchor := range tokenLCS(a, b) {
		emit(anchor.beforeIdx, anchor.afterIdx)
		ai = anchor.beforeIdx + 1
		bi = anchor.afterIdx + 1
	}
	emit(len(a), len(b))

	return changes
}

// blockChange converts one differing token block into a [Change].
func blockChange(beforeTokens, afterTokens []string) Change {
	orig := strings.Join(beforeTokens, " ")
	corr := strings.Join(afterTokens, " ")
	switch {
	case len(beforeTokens) == 0:
		return Change{
			Corrected:   corr,
			Type:        ErrorGrammar,
			Confidence:  diffEditConfidence,
			Description: fmt.Sprintf("Added '%s'", corr),
		}
	case len(afterTokens) == 0:
		return Change{
			Original:    orig,
			Type:        ErrorGrammar,
			Confidence:  diffEditConfidence,
			Description: fmt.Sprintf("Removed '%s'", orig),
		}
	default:
		return Change{
			Original:    orig,
			Corrected:   corr,
			Type:        ErrorWordChoice,
			Confidence:  diffReplaceConfidence,
			Description: fmt.Sprintf("'%s' -> '%s'", orig, corr),
		}
	}
}

// tokenLCS computes the longest common subsequence of two token slices and
// returns anchor pairs (indices into a and b) representing common tokens in
// order. Standard O(m×n) DP — token counts are small (single utterances).
// The backtrack prefers advancing the before sequence on ties, which pins
// block boundaries deterministically.
func tokenLCS(a, b []string) []indexPair {
	m, n := len(a), len(b)
	if m == 0 || n == 0 {
		return nil
	}

	dp := make([][]int, m+1)
	for i := range dp {
		dp[i] = make([]int, n+1)
	}
	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			if a[i-1] == b[j-1] {
				dp[i][j] = dp[i-1][j-1] + 1
			} else if dp[i-1][j] >= dp[i][j-1] {
				dp[i][j] = dp[i-1][j]
			} else {
				dp[i][j] = dp[i][j-1]
			}
		}
	}

	lcsLen := dp[m][n]
	if lcsLen == 0 {
		return nil
	}

	anchors := make([]indexPair, lcsLen)
	i, j, k := m, n, lcsLen-1
	for i > 0 && j > 0 {
		if a[i-1] == b[j-1] {
			anchors[k] = indexPair{beforeIdx: i - 1, afterIdx: j - 1}
			i--
			j--
			k--
		} else if dp[i-1][j] >= dp[i][j-1] {
			i--
		} else {
			j--
		}
	}
	return anchors
}
