package graph

// Validate checks that root is a well-formed tree: no nil nodes, no empty
// names, leaves have a body, composites have children, names are unique and
// no node contains itself.
func Validate(root *Node) error {
	if root == nil {
		return invalidf("nil root")
	}

	seen := make(map[string]*Node)
	var stack []*Node

	var visit func(n *Node) error
	visit = func(n *Node) error {
		if n == nil {
			parent := "<root>"
			if len(stack) > 0 {
				parent = stack[len(stack)-1].Name
			}
			return invalidf("nil child in %q", parent)
		}
		for i, s := range stack {
			if s == n {
				path := make([]string, 0, len(stack)-i+1)
				for _, p := range stack[i:] {
					path = append(path, p.Name)
				}
				return cycleError(append(path, n.Name))
			}
		}
		if n.Name == "" {
			return invalidf("node with empty name")
		}
		if prev, ok := seen[n.Name]; ok && prev != n {
			return invalidf("duplicate task name %q", n.Name)
		}
		if _, ok := seen[n.Name]; ok {
			return invalidf("task %q appears more than once", n.Name)
		}
		seen[n.Name] = n

		switch n.Kind {
		case KindTask:
			if n.Fn == nil {
				return invalidf("task %q has no function", n.Name)
			}
			if len(n.Children) > 0 {
				return invalidf("task %q cannot have children", n.Name)
			}
		case KindSeries, KindParallel:
			if len(n.Children) == 0 {
				return invalidf("%s %q has no children", n.Kind, n.Name)
			}
		default:
			return invalidf("node %q has unknown kind %d", n.Name, n.Kind)
		}

		stack = append(stack, n)
		for _, c := range n.Children {
			if err := visit(c); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		return nil
	}

	return visit(root)
}
