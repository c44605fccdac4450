package obis

// Tree is the recursive {name, value, children} node used to assemble
// SML get-proc-param / get-list response bodies.
type Tree struct {
	Name     Code
	Value    any
	Children []*Tree
}

// NewTree returns an empty tree node addressed by name.
func NewTree(name Code) *Tree {
	return &Tree{Name: name}
}

// Merge walks path, locating each level's child by OBIS equality,
// creating missing children as empty tree nodes, and replaces the
// value at the final level. Sibling order is insertion order and is
// preserved across merges.
func Merge(root *Tree, path []Code, value any) {
	node := root
	for _, step := range path {
		node = node.childOrCreate(step)
	}
	node.Value = value
}

func (t *Tree) childOrCreate(name Code) *Tree {
	for _, c := range t.Children {
		if c.Name.Equal(name) {
			return c
		}
	}
	child := NewTree(name)
	t.Children = append(t.Children, child)
	return child
}

// Lookup walks path the same way Merge does but never creates nodes,
// returning the value at the addressed node or nil if the path does
// not exist.
func Lookup(root *Tree, path []Code) any {
	node := root
	for _, step := range path {
		next := node.child(step)
		if next == nil {
			return nil
		}
		node = next
	}
	return node.Value
}

func (t *Tree) child(name Code) *Tree {
	for _, c := range t.Children {
		if c.Name.Equal(name) {
			return c
		}
	}
	return nil
}
