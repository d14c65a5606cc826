package condition

// MatchQualified is the match type of leaves that test segment membership.
const MatchQualified = "qualified"

// QualifiedSegments returns the distinct segment names referenced by
// "qualified" leaves, in first-seen order.
func QualifiedSegments(n *Node) []string {
	seen := make(map[string]struct{})
	var out []string
	var walk func(*Node)
	walk = func(node *Node) {
		if node == nil {
			return
		}
		if node.Kind == KindLeaf {
			if node.Leaf == nil || node.Leaf.Match != MatchQualified {
				return
			}
			segment, ok := node.Leaf.Value.(string)
			if !ok {
				return
			}
			if _, dup := seen[segment]; !dup {
				seen[segment] = struct{}{}
				out = append(out, segment)
			}
			return
		}
		for _, c := range node.Children {
			walk(c)
		}
	}
	walk(n)
	return out
}
