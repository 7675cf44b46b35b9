package boosting

// Node is one node of a regression tree. Leaves have LeftChild and
// RightChild set to -1.
type Node struct {
	LeftChild  int
	RightChild int

	// Split information (internal nodes)
	SplitFeature int
	Threshold    float64 // go left when value <= Threshold
	Gain         float64

	// Leaf information
	LeafValue float64
	LeafCount int
}

// IsLeaf returns true if the node is a leaf node.
func (n *Node) IsLeaf() bool {
	return n.LeftChild == -1 && n.RightChild == -1
}

// Tree is a single regression tree. Nodes[0] is the root.
type Tree struct {
	Nodes         []Node
	ShrinkageRate float64
}

// Predict returns the shrunk leaf value reached by features.
func (t *Tree) Predict(features []float64) float64 {
	id := 0
	for {
		node := &t.Nodes[id]
		if node.IsLeaf() {
			return node.LeafValue * t.ShrinkageRate
		}
		if features[node.SplitFeature] <= node.Threshold {
			id = node.LeftChild
		} else {
			id = node.RightChild
		}
	}
}

// NumLeaves returns the number of leaves.
func (t *Tree) NumLeaves() int {
	n := 0
	for i := range t.Nodes {
		if t.Nodes[i].IsLeaf() {
			n++
		}
	}
	return n
}

// Depth returns the length of the longest root-to-leaf path.
func (t *Tree) Depth() int {
	var walk func(id int) int
	walk = func(id int) int {
		n := &t.Nodes[id]
		if n.IsLeaf() {
			return 0
		}
		return 1 + max(walk(n.LeftChild), walk(n.RightChild))
	}
	return walk(0)
}

func newLeaf(value float64, count int) Node {
	return Node{LeftChild: -1, RightChild: -1, SplitFeature: -1, LeafValue: value, LeafCount: count}
}
