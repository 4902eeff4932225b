package assemble

// NameNode mirrors the assembled array's layout with display names, one
// node per column plus synthetic entries for buffer children of lists and
// text columns.
type NameNode struct {
	Name     string
	Children []NameNode
}

// Child returns the named child, or nil.
func (n *NameNode) Child(name string) *NameNode {
	for i := range n.Children {
		if n.Children[i].Name == name {
			return &n.Children[i]
		}
	}
	return nil
}

// Flatten returns the dot-joined paths of every node in depth-first order,
// skipping the synthetic buffer entries.
func (n *NameNode) Flatten() []string {
	var out []string
	n.flatten("", &out)
	return out
}

func (n *NameNode) flatten(prefix string, out *[]string) {
	path := n.Name
	if prefix != "" {
		path = prefix + "." + n.Name
	}
	*out = append(*out, path)
	for i := range n.Children {
		switch n.Children[i].Name {
		case "offsets", "bytes":
			continue
		}
		n.Children[i].flatten(path, out)
	}
}
