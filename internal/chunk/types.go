package chunk

// UnitKind represents the kind of code unit a chunk covers
type UnitKind string

const (
	UnitKindFunction UnitKind = "function"
	UnitKindClass    UnitKind = "class"
	UnitKindModule   UnitKind = "module"
	UnitKindFile     UnitKind = "file"
)

// Draft is one unit of code produced by the chunker, before persistence
// and enrichment. StartLine/EndLine are 1-indexed and inclusive.
type Draft struct {
	UnitName  string // empty for module/file chunks
	UnitKind  UnitKind
	Code      string
	StartLine int
	EndLine   int
}

// Tree represents a parsed syntax tree
type Tree struct {
	Root     *Node
	Source   []byte
	Language string
}

// Node represents a node in the syntax tree
type Node struct {
	Type       string
	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point
	// HasEnd reports whether the parser supplied an explicit end
	// position for this node. When false, line math falls back to a
	// single-line span below the start.
	HasEnd   bool
	Children []*Node
	HasError bool
}

// Point represents a position in the source code
type Point struct {
	Row    uint32 // 0-indexed line number
	Column uint32
}

// Walk traverses the tree depth-first and calls fn for each node,
// nested definitions included. Returning false skips the node's
// children.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, child := range n.Children {
		child.Walk(fn)
	}
}

// FindChildByType finds the first direct child with the given type
func (n *Node) FindChildByType(nodeType string) *Node {
	for _, child := range n.Children {
		if child.Type == nodeType {
			return child
		}
	}
	return nil
}

// GetContent returns the source content for a node
func (n *Node) GetContent(source []byte) string {
	if n.StartByte >= n.EndByte || int(n.EndByte) > len(source) {
		return ""
	}
	return string(source[n.StartByte:n.EndByte])
}
