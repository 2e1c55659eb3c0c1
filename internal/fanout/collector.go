package fanout

import "fmt"

// collect drains results until the channel is closed and empty, placing each
// outcome at its request index. onOutcome, if set, sees outcomes in arrival
// order.
//
// A missing or duplicated index means the one-write-per-task guarantee was
// broken; that is a programming error and panics.
func collect(results <-chan Outcome, n int, onOutcome func(Outcome)) []Outcome {
	outcomes := make([]Outcome, n)
	seen := make([]bool, n)

	for o := range results {
		i := o.Request.Index
		if i < 0 || i >= n || seen[i] {
			panic(fmt.Sprintf("fanout: %s: outcome for index %d out of range or duplicated", ProgrammingError, i))
		}
		seen[i] = true
		outcomes[i] = o

		if onOutcome != nil {
			onOutcome(o)
		}
	}

	for i, ok := range seen {
		if !ok {
			panic(fmt.Sprintf("fanout: %s: no outcome for index %d", ProgrammingError, i))
		}
	}
	return outcomes
}
