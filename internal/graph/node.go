package graph

import "context"

// Func is the body of a leaf task.
type Func func(ctx context.Context) error

// Kind distinguishes leaf tasks from the two composition primitives.
type Kind int

const (
	// KindTask is a leaf that runs a Func.
	KindTask Kind = iota
	// KindSeries runs children in order; each child must succeed before the next starts.
	KindSeries
	// KindParallel starts all children at once and waits for all of them.
	KindParallel
)

func (k Kind) String() string {
	switch k {
	case KindTask:
		return "task"
	case KindSeries:
		return "series"
	case KindParallel:
		return "parallel"
	default:
		return "unknown"
	}
}

// Node is one named step of a task graph.
type Node struct {
	Name     string
	Kind     Kind
	Fn       Func
	Children []*Node

	// Optional nodes may fail without failing their parent series.
	Optional bool
}

// Task creates a leaf node.
func Task(name string, fn Func) *Node {
	return &Node{Name: name, Kind: KindTask, Fn: fn}
}

// Series creates a node that runs children one after another.
func Series(name string, children ...*Node) *Node {
	return &Node{Name: name, Kind: KindSeries, Children: children}
}

// Parallel creates a node that runs children concurrently.
func Parallel(name string, children ...*Node) *Node {
	return &Node{Name: name, Kind: KindParallel, Children: children}
}

// Optional returns a copy of n whose failure is reported but does not stop
// the enclosing series.
func Optional(n *Node) *Node {
	cp := *n
	cp.Optional = true
	return &cp
}

// Walk visits n and its descendants depth-first, parents before children.
func Walk(n *Node, fn func(*Node)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range n.Children {
		Walk(c, fn)
	}
}
