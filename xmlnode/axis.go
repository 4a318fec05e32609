package xmlnode

// Axis identifies one of the 13 XPath navigation axes.
type Axis uint8

const (
	Self Axis = iota
	Child
	Descendant
	DescendantOrSelf
	Parent
	Ancestor
	AncestorOrSelf
	FollowingSibling
	PrecedingSibling
	Following
	Preceding
	AttributeAxis
	NamespaceAxis
)

// Reverse reports whether nodes on this axis are produced in reverse
// document order, per the axis table: parent, ancestor, ancestor-or-self,
// preceding-sibling and preceding all walk backwards from the context node.
func (a Axis) Reverse() bool {
	switch a {
	case Parent, Ancestor, AncestorOrSelf, PrecedingSibling, Preceding:
		return true
	default:
		return false
	}
}

// PrincipalKind is the node kind unprefixed name tests match on this axis:
// AttributeNode on the attribute axis, NamespaceNode on the namespace axis,
// ElementNode everywhere else.
func (a Axis) PrincipalKind() Kind {
	switch a {
	case AttributeAxis:
		return AttributeNode
	case NamespaceAxis:
		return NamespaceNode
	default:
		return ElementNode
	}
}

// Iterate walks id's axis, yielding nodes in the axis's natural order (see
// Reverse for which axes that means walking backwards from id).
func (t *Tree) Iterate(axis Axis, id ID) func(yield func(ID) bool) {
	switch axis {
	case Self:
		return t.selfAxis(id)
	case Child:
		return t.Children(id)
	case Descendant:
		return t.descendantAxis(id, false)
	case DescendantOrSelf:
		return t.descendantAxis(id, true)
	case Parent:
		return t.parentAxis(id)
	case Ancestor:
		return t.ancestorAxis(id, false)
	case AncestorOrSelf:
		return t.ancestorAxis(id, true)
	case FollowingSibling:
		return t.followingSiblingAxis(id)
	case PrecedingSibling:
		return t.precedingSiblingAxis(id)
	case Following:
		return t.followingAxis(id)
	case Preceding:
		return t.precedingAxis(id)
	case AttributeAxis:
		return t.attributeAxis(id)
	case NamespaceAxis:
		return t.namespaceAxis(id)
	default:
		return func(yield func(ID) bool) {}
	}
}

func (t *Tree) selfAxis(id ID) func(yield func(ID) bool) {
	return func(yield func(ID) bool) {
		yield(id)
	}
}

// descendantAxis walks the subtree rooted at id in document (pre-order) order.
func (t *Tree) descendantAxis(id ID, includeSelf bool) func(yield func(ID) bool) {
	return func(yield func(ID) bool) {
		if includeSelf {
			if !yield(id) {
				return
			}
		}
		var walk func(ID) bool
		walk = func(n ID) bool {
			for c := t.node(n).FirstChild; c != NoID; c = t.node(c).NextSibling {
				if !yield(c) {
					return false
				}
				if !walk(c) {
					return false
				}
			}
			return true
		}
		walk(id)
	}
}

func (t *Tree) parentAxis(id ID) func(yield func(ID) bool) {
	return func(yield func(ID) bool) {
		if p := t.node(id).Parent; p != NoID {
			yield(p)
		}
	}
}

func (t *Tree) ancestorAxis(id ID, includeSelf bool) func(yield func(ID) bool) {
	return func(yield func(ID) bool) {
		if includeSelf {
			if !yield(id) {
				return
			}
		}
		for p := t.node(id).Parent; p != NoID; p = t.node(p).Parent {
			if !yield(p) {
				return
			}
		}
	}
}

func (t *Tree) followingSiblingAxis(id ID) func(yield func(ID) bool) {
	return func(yield func(ID) bool) {
		for s := t.node(id).NextSibling; s != NoID; s = t.node(s).NextSibling {
			if !yield(s) {
				return
			}
		}
	}
}

func (t *Tree) precedingSiblingAxis(id ID) func(yield func(ID) bool) {
	return func(yield func(ID) bool) {
		for s := t.node(id).PrevSibling; s != NoID; s = t.node(s).PrevSibling {
			if !yield(s) {
				return
			}
		}
	}
}

// followingAxis yields every node after id in document order that is not a
// descendant of id: for each ancestor-or-self level, walk its following
// siblings' subtrees depth-first.
func (t *Tree) followingAxis(id ID) func(yield func(ID) bool) {
	return func(yield func(ID) bool) {
		cur := id
		for cur != NoID {
			for s := t.node(cur).NextSibling; s != NoID; s = t.node(s).NextSibling {
				if !yield(s) {
					return
				}
				for sub := range t.descendantAxis(s, false) {
					if !yield(sub) {
						return
					}
				}
			}
			cur = t.node(cur).Parent
		}
	}
}

// precedingAxis yields every node before id in document order that is not an
// ancestor of id, in reverse document order.
func (t *Tree) precedingAxis(id ID) func(yield func(ID) bool) {
	return func(yield func(ID) bool) {
		var out []ID
		cur := id
		for cur != NoID {
			for s := t.node(cur).PrevSibling; s != NoID; s = t.node(s).PrevSibling {
				var sub []ID
				for d := range t.descendantAxis(s, false) {
					sub = append(sub, d)
				}
				for i := len(sub) - 1; i >= 0; i-- {
					out = append(out, sub[i])
				}
				out = append(out, s)
			}
			cur = t.node(cur).Parent
		}
		for _, n := range out {
			if !yield(n) {
				return
			}
		}
	}
}

func (t *Tree) attributeAxis(id ID) func(yield func(ID) bool) {
	return func(yield func(ID) bool) {
		for _, a := range t.node(id).Attrs {
			if !yield(a) {
				return
			}
		}
	}
}

func (t *Tree) namespaceAxis(id ID) func(yield func(ID) bool) {
	return func(yield func(ID) bool) {
		seen := map[string]bool{}
		for n := id; n != NoID; n = t.node(n).Parent {
			for _, ns := range t.node(n).NS {
				prefix := t.node(ns).Name.Local
				if seen[prefix] {
					continue
				}
				seen[prefix] = true
				if !yield(ns) {
					return
				}
			}
		}
	}
}
