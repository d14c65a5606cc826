package condition

// LeafFunc evaluates a terminal node: an attribute leaf or an audience
// reference.
type LeafFunc func(n *Node) Tristate

// Evaluate walks the tree under three-valued logic.
//
//   - AND is False as soon as one operand is False, else Unknown if any
//     operand is Unknown, else True.
//   - OR is True as soon as one operand is True, else Unknown if any operand
//     is Unknown, else False.
//   - NOT negates its first operand and keeps Unknown. Without an operand it
//     is Unknown.
//
// Operands after the deciding one are not evaluated.
func Evaluate(n *Node, leaf LeafFunc) Tristate {
	if n == nil {
		return Unknown
	}

	switch n.Kind {
	case KindAnd:
		return evaluateAnd(n.Children, leaf)
	case KindOr:
		return evaluateOr(n.Children, leaf)
	case KindNot:
		if len(n.Children) == 0 {
			return Unknown
		}
		return Evaluate(n.Children[0], leaf).Not()
	case KindAudience, KindLeaf:
		if leaf == nil {
			return Unknown
		}
		return leaf(n)
	default:
		return Unknown
	}
}

func evaluateAnd(children []*Node, leaf LeafFunc) Tristate {
	sawUnknown := false
	for _, c := range children {
		switch Evaluate(c, leaf) {
		case False:
			return False
		case Unknown:
			sawUnknown = true
		}
	}
	if sawUnknown {
		return Unknown
	}
	return True
}

func evaluateOr(children []*Node, leaf LeafFunc) Tristate {
	sawUnknown := false
	for _, c := range children {
		switch Evaluate(c, leaf) {
		case True:
			return True
		case Unknown:
			sawUnknown = true
		}
	}
	if sawUnknown {
		return Unknown
	}
	return False
}
