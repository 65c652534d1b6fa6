package engine

// TallyResult is the outcome of one voting phase. NoElimination is explicit:
// a tie never falls back to a random pick.
type TallyResult struct {
	Eliminated    string
	NoElimination bool
	Counts        map[string]int
}

// TallyVotes computes the elimination from a voter -> target map (one entry
// per living voter; overwrite semantics upstream already collapsed repeat
// votes). The candidate with strictly more votes than every other candidate
// is eliminated; an exact tie at the top eliminates nobody. Abstainers are
// simply absent from the input.
func TallyVotes(votes map[string]string) TallyResult {
	counts := make(map[string]int)
	for _, target := range votes {
		counts[target]++
	}

	best, bestCount, tied := "", 0, false
	for target, n := range counts {
		switch {
		case n > bestCount:
			best, bestCount, tied = target, n, false
		case n == bestCount && bestCount > 0:
			tied = true
		}
	}

	if bestCount == 0 || tied {
		return TallyResult{NoElimination: true, Counts: counts}
	}
	return TallyResult{Eliminated: best, Counts: counts}
}
