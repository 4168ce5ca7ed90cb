package transcribe

import (
	"strings"
	"unicode"
)

// WERResult holds detailed word error rate results.
type WERResult struct {
	WER           float64 // (S + I + D) / RefWords
	Substitutions int
	Insertions    int
	Deletions     int
	RefWords      int
}

// ComputeWER scores a hypothesis against a reference transcript. Both are
// lowercased, stripped of punctuation and split on whitespace first.
func ComputeWER(reference, hypothesis string) WERResult {
	return scoreWords(normalizeWords(reference), normalizeWords(hypothesis))
}

// ComputeSegmentWER scores a sequence of streamed transcript segments, joined
// in order, against a single reference transcript.
func ComputeSegmentWER(reference string, segments []string) WERResult {
	return ComputeWER(reference, strings.Join(segments, " "))
}

func scoreWords(ref, hyp []string) WERResult {
	n, m := len(ref), len(hyp)
	if n == 0 {
		return WERResult{}
	}

	// dist[i][j] is the edit distance between ref[:i] and hyp[:j].
	dist := make([][]int, n+1)
	for i := range dist {
		dist[i] = make([]int, m+1)
		dist[i][0] = i
	}
	for j := 1; j <= m; j++ {
		dist[0][j] = j
	}
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			cost := 1
			if ref[i-1] == hyp[j-1] {
				cost = 0
			}
			dist[i][j] = min(dist[i-1][j-1]+cost, dist[i-1][j]+1, dist[i][j-1]+1)
		}
	}

	res := WERResult{RefWords: n}
	for i, j := n, m; i > 0 || j > 0; {
		switch {
		case i > 0 && j > 0 && ref[i-1] == hyp[j-1] && dist[i][j] == dist[i-1][j-1]:
			i, j = i-1, j-1
		case i > 0 && j > 0 && dist[i][j] == dist[i-1][j-1]+1:
			res.Substitutions++
			i, j = i-1, j-1
		case i > 0 && dist[i][j] == dist[i-1][j]+1:
			res.Deletions++
			i--
		default:
			res.Insertions++
			j--
		}
	}
	res.WER = float64(res.Substitutions+res.Insertions+res.Deletions) / float64(n)
	return res
}

func normalizeWords(s string) []string {
	return strings.Fields(strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s))
}
