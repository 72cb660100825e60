package graph

// Index is a read-only lookup structure over a graph.
//
// It maps every node id, nested nodes included, to its node and records which
// ids are the target of at least one Link anywhere in the graph. Secondary
// indexes on kind and incoming links keep lookups O(result) rather than
// O(graph). An Index is built once and never mutated, so it is safe for
// concurrent reads.
type Index struct {
	nodes    map[string]*Node
	order    []string
	byKind   map[Kind][]*Node
	incoming map[string][]Link
}

// Link is a resolved edge: input Input of node From reads node To.
type Link struct {
	From  string
	Input string
	To    string
}

// NewIndex discovers every node of g. It fails if a node lacks an id or two
// nodes share one. Dangling links are not checked here; see Index.Check.
func NewIndex(g *Graph) (*Index, error) {
	idx := &Index{
		nodes:    make(map[string]*Node),
		byKind:   make(map[Kind][]*Node),
		incoming: make(map[string][]Link),
	}
	if err := idx.discover(g.Nodes); err != nil {
		return nil, err
	}

	for _, id := range idx.order {
		n := idx.nodes[id]
		for _, in := range n.Inputs {
			if in.IsLink() {
				idx.incoming[in.Link] = append(idx.incoming[in.Link], Link{From: n.ID, Input: in.Name, To: in.Link})
			}
		}
	}

	return idx, nil
}

func (idx *Index) discover(nodes []*Node) error {
	for i, n := range nodes {
		if n == nil {
			return NullNodeError(i)
		}
		if n.ID == "" {
			return MissingIDError(i, n.Kind)
		}
		if _, ok := idx.nodes[n.ID]; ok {
			return DuplicateIDError(n.ID)
		}
		idx.nodes[n.ID] = n
		idx.order = append(idx.order, n.ID)
		idx.byKind[n.Kind] = append(idx.byKind[n.Kind], n)

		if err := idx.discover(n.Body); err != nil {
			return err
		}
		if err := idx.discover(n.Orelse); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of indexed nodes.
func (idx *Index) Len() int {
	return len(idx.nodes)
}

// Node returns the node with the given id, or nil.
func (idx *Index) Node(id string) *Node {
	return idx.nodes[id]
}

// Nodes returns all nodes in discovery order.
func (idx *Index) Nodes() []*Node {
	result := make([]*Node, 0, len(idx.order))
	for _, id := range idx.order {
		result = append(result, idx.nodes[id])
	}
	return result
}

// NodesByKind returns the nodes of the given kind in discovery order.
func (idx *Index) NodesByKind(kind Kind) []*Node {
	return idx.byKind[kind]
}

// IsLinked reports whether any Link in the graph targets id.
func (idx *Index) IsLinked(id string) bool {
	return len(idx.incoming[id]) > 0
}

// Incoming returns the links that read node id.
func (idx *Index) Incoming(id string) []Link {
	return idx.incoming[id]
}

// Links returns every link in the graph, ordered by consumer discovery order.
func (idx *Index) Links() []Link {
	var links []Link
	for _, id := range idx.order {
		n := idx.nodes[id]
		for _, in := range n.Inputs {
			if in.IsLink() {
				links = append(links, Link{From: n.ID, Input: in.Name, To: in.Link})
			}
		}
	}
	return links
}

// Check verifies that every link resolves to an indexed node.
func (idx *Index) Check() error {
	for _, id := range idx.order {
		n := idx.nodes[id]
		for _, in := range n.Inputs {
			if in.IsLink() && idx.nodes[in.Link] == nil {
				return DanglingLinkError(n, in.Name, in.Link)
			}
		}
	}
	return nil
}

// IsStatement reports whether n executes in sequence within its statement
// list. Binders and conditionals always do; calls and prints only when no
// link consumes their value; binary operations never do.
func (idx *Index) IsStatement(n *Node) bool {
	switch n.Kind {
	case KindVariableAssign, KindIf, KindFor:
		return true
	case KindCall, KindPrint:
		return !idx.IsLinked(n.ID)
	case KindBinaryOp:
		return false
	}
	return false
}

// Roots returns the statement roots of a statement list.
func (idx *Index) Roots(nodes []*Node) []*Node {
	var roots []*Node
	for _, n := range nodes {
		if n != nil && idx.IsStatement(n) {
			roots = append(roots, n)
		}
	}
	return roots
}

// DeadValues returns value-producing nodes that nothing consumes and that do
// not run as statements: unlinked binary operations.
func (idx *Index) DeadValues() []*Node {
	var dead []*Node
	for _, n := range idx.byKind[KindBinaryOp] {
		if !idx.IsLinked(n.ID) {
			dead = append(dead, n)
		}
	}
	return dead
}
