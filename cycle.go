package forge

// detectCycles runs a depth-first search over the whole dependency graph and
// returns a CircularDependencyError for the first cycle found. The reported
// path is reconstructed from the DFS stack and rotated so it starts and ends
// at the same reference.
//
// The walk covers every given node, not only the ones a particular run asks
// for, so a cycle hidden behind an unrelated template is still caught at
// registration time. Edges may point at unregistered references; those are
// treated as leaves.
func detectCycles(nodes []Ref, edges func(Ref) []Ref) error {
	var (
		done    = make(map[Ref]bool, len(nodes))
		onStack = make(map[Ref]bool)
		stack   []Ref
	)
	var visit func(Ref) error
	visit = func(r Ref) error {
		if done[r] {
			return nil
		}
		if onStack[r] {
			return NewCircularDependencyError(cyclePath(stack, r))
		}
		onStack[r] = true
		stack = append(stack, r)
		for _, dep := range edges(r) {
			if err := visit(dep); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		delete(onStack, r)
		done[r] = true
		return nil
	}
	for _, r := range nodes {
		if err := visit(r); err != nil {
			return err
		}
	}
	return nil
}

// cyclePath slices the DFS stack from the back-edge target onward and closes
// the loop by repeating the target, e.g. [a b c] with a back edge to b
// yields [b c b].
func cyclePath(stack []Ref, target Ref) []Ref {
	start := 0
	for i, r := range stack {
		if r == target {
			start = i
			break
		}
	}
	path := make([]Ref, 0, len(stack)-start+1)
	path = append(path, stack[start:]...)
	path = append(path, target)
	return path
}
