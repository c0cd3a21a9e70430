// Package cache places prompt-cache boundaries in a message history.
package cache

// Plan is a strictly increasing list of zero-based message indices.
// Boundary b means "cache point after message b".
type Plan []int

// DefaultMinMessages is the history length below which no message cache points are placed.
const DefaultMinMessages = 2

// Constraints bound a plan.
type Constraints struct {
	MaxPoints   int // maximum boundaries in the plan
	MinTokens   int // minimum estimated tokens per segment
	MinMessages int // histories shorter than this get an empty plan
}

// Compute places cache boundaries over messages with the given estimated token sizes.
//
// Boundaries from prev are kept (minus the most recent one, which is always
// recomputed) when their segments still meet MinTokens. New boundaries are then
// added as close to the end of the history as the segment minimum allows.
// A segment is the run of messages after the preceding boundary up to and
// including the boundary itself; the tail after the last boundary is not a segment.
func Compute(sizes []int, prev Plan, c Constraints) Plan {
	n := len(sizes)
	minMessages := c.MinMessages
	if minMessages <= 0 {
		minMessages = DefaultMinMessages
	}
	if c.MaxPoints <= 0 || n < minMessages {
		return Plan{}
	}

	// prefix[i] is the token total of sizes[0:i].
	prefix := make([]int, n+1)
	for i, s := range sizes {
		prefix[i+1] = prefix[i] + max(0, s)
	}
	segment := func(after, b int) int { return prefix[b+1] - prefix[after+1] }

	plan := retain(prev, n, c, segment)

	last := -1
	if len(plan) > 0 {
		last = plan[len(plan)-1]
	}
	plan = append(plan, placeFromEnd(last, n, c.MaxPoints-len(plan), c.MinTokens, segment)...)
	return plan
}

// retain keeps previous boundaries except the most recent, dropping any that no
// longer fall in range or whose segment became too small.
func retain(prev Plan, n int, c Constraints, segment func(after, b int) int) Plan {
	if len(prev) == 0 {
		return Plan{}
	}
	kept := make(Plan, 0, len(prev))
	last := -1
	for _, b := range prev[:len(prev)-1] {
		if len(kept) == c.MaxPoints {
			break
		}
		if b <= last || b >= n {
			continue
		}
		if segment(last, b) < c.MinTokens {
			continue
		}
		kept = append(kept, b)
		last = b
	}
	return kept
}

// placeFromEnd chooses up to k boundaries in (after, n-1], latest first, such that
// every resulting segment holds at least minTokens. Returned ascending.
func placeFromEnd(after, n, k, minTokens int, segment func(after, b int) int) Plan {
	if k <= 0 {
		return nil
	}
	var picked []int
	upper := n - 1 // latest index the next boundary may take
	right := -1    // boundary already picked to the right of the candidate, if any
	for len(picked) < k {
		found := -1
		for b := upper; b > after; b-- {
			if right >= 0 && segment(b, right) < minTokens {
				continue
			}
			if segment(after, b) < minTokens {
				// Earlier candidates only shrink this segment further.
				break
			}
			found = b
			break
		}
		if found < 0 {
			break
		}
		picked = append(picked, found)
		right = found
		upper = found - 1
	}
	// picked is descending; reverse into ascending order.
	for i, j := 0, len(picked)-1; i < j; i, j = i+1, j-1 {
		picked[i], picked[j] = picked[j], picked[i]
	}
	return picked
}
