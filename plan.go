package forge

// expansion is the transitive closure of one run's targets: every template
// the run must materialize, in breadth-first discovery order, plus the
// in-closure dependency edges of each.
type expansion struct {
	order     []Ref
	templates map[Ref]*Template
	deps      map[Ref][]Ref
}

// expand computes the closure of targets over the store, following relation
// attributes of both base template values and composed overrides. Explicit
// Ref values must resolve (triggering lazy discovery) or the expansion fails
// with TemplateNotFound; bare strings that match no template are literals
// and introduce no edge.
func expand(s *Store, targets []Ref, overrides *Overrides) (*expansion, error) {
	x := &expansion{
		templates: make(map[Ref]*Template),
		deps:      make(map[Ref][]Ref),
	}
	queue := make([]Ref, 0, len(targets))
	queue = append(queue, targets...)
	for len(queue) > 0 {
		ref := queue[0]
		queue = queue[1:]
		t, err := s.resolve(ref)
		if err != nil {
			return nil, err
		}
		canonical := t.Ref()
		if _, ok := x.templates[canonical]; ok {
			continue
		}
		x.order = append(x.order, canonical)
		x.templates[canonical] = t
		var override map[string]any
		if overrides != nil {
			override, _ = overrides.Get(canonical)
		}
		deps, err := dependencyRefs(s, t, override)
		if err != nil {
			return nil, err
		}
		x.deps[canonical] = deps
		queue = append(queue, deps...)
	}
	return x, nil
}

// dependencyRefs resolves the dependency edges of one template for
// expansion, deduplicated and in attribute order. Override values replace
// base values key by key; override-only keys are scanned last, in lexical
// order.
func dependencyRefs(s *Store, t *Template, override map[string]any) ([]Ref, error) {
	kind, ok := s.provider.Kind(t.Kind)
	if !ok {
		return nil, nil
	}
	var (
		deps []Ref
		seen = make(map[Ref]bool)
		add  = func(r Ref) {
			if !seen[r] {
				seen[r] = true
				deps = append(deps, r)
			}
		}
	)
	edge := func(key string, value any) error {
		rel, ok := kind.Relation(key)
		if !ok {
			return nil
		}
		switch v := value.(type) {
		case Ref:
			target := v.Kind
			if target == "" {
				target = rel.Target
			}
			dep, err := s.resolve(Ref{Kind: target, Name: v.Name})
			if err != nil {
				return err
			}
			add(dep.Ref())
		case string:
			dep, err := s.Get(rel.Target, v)
			switch {
			case err == nil:
				add(dep.Ref())
			case IsTemplateNotFound(err):
				// A literal that happens to look like a reference.
			default:
				return err
			}
		}
		return nil
	}
	visited := make(map[string]bool, len(t.Attrs))
	for _, a := range t.Attrs {
		visited[a.Key] = true
		value := a.Value
		if ov, ok := override[a.Key]; ok {
			value = ov
		}
		if err := edge(a.Key, value); err != nil {
			return nil, err
		}
	}
	for _, key := range sortedKeys(override) {
		if !visited[key] {
			if err := edge(key, override[key]); err != nil {
				return nil, err
			}
		}
	}
	return deps, nil
}

// schedule orders an expansion with Kahn's algorithm: a FIFO queue seeded
// with zero-indegree nodes in discovery order, ties broken by discovery
// order for reproducibility. A drained queue with nodes left over means an
// override introduced a cycle the registration-time check could not see; the
// cycle path is reconstructed for the error.
func schedule(x *expansion) ([]Ref, error) {
	indegree := make(map[Ref]int, len(x.order))
	dependents := make(map[Ref][]Ref, len(x.order))
	for _, r := range x.order {
		indegree[r] += 0
	}
	for _, r := range x.order {
		for _, dep := range x.deps[r] {
			indegree[r]++
			dependents[dep] = append(dependents[dep], r)
		}
	}
	queue := make([]Ref, 0, len(x.order))
	for _, r := range x.order {
		if indegree[r] == 0 {
			queue = append(queue, r)
		}
	}
	order := make([]Ref, 0, len(x.order))
	for len(queue) > 0 {
		r := queue[0]
		queue = queue[1:]
		order = append(order, r)
		for _, dependent := range dependents[r] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}
	if len(order) != len(x.order) {
		var remaining []Ref
		for _, r := range x.order {
			if indegree[r] > 0 {
				remaining = append(remaining, r)
			}
		}
		if err := detectCycles(remaining, func(r Ref) []Ref { return x.deps[r] }); err != nil {
			return nil, err
		}
		// Unreachable for a well-formed expansion, kept as a guard.
		return nil, ErrCircularDependency
	}
	return order, nil
}
