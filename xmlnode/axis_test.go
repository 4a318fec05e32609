package xmlnode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const axisXML = `<root>
	<a><a1/><a2/></a>
	<b><b1/></b>
	<c/>
</root>`

// collect lists the names of the element nodes an axis yields, in axis
// order; the whitespace text nodes of axisXML and the document node are
// left out.
func collect(t *Tree, axis Axis, id ID) []string {
	var out []string
	for n := range t.Iterate(axis, id) {
		if t.Get(n).Kind == ElementNode {
			out = append(out, t.Get(n).Name.Local)
		}
	}
	return out
}

func TestIterate_ChildAndDescendant(t *testing.T) {
	tree, err := Build(strings.NewReader(axisXML))
	require.NoError(t, err)
	root := firstElement(tree, "root")

	require.Equal(t, []string{"a", "b", "c"}, collect(tree, Child, root))
	require.Equal(t, []string{"a", "a1", "a2", "b", "b1", "c"}, collect(tree, Descendant, root))
	require.Equal(t, []string{"root", "a", "a1", "a2", "b", "b1", "c"}, collect(tree, DescendantOrSelf, root))
}

func TestIterate_SiblingAxes(t *testing.T) {
	tree, err := Build(strings.NewReader(axisXML))
	require.NoError(t, err)
	b := firstElement(tree, "b")

	require.Equal(t, []string{"c"}, collect(tree, FollowingSibling, b))
	require.Equal(t, []string{"a"}, collect(tree, PrecedingSibling, b))
}

func TestIterate_AncestorAndParent(t *testing.T) {
	tree, err := Build(strings.NewReader(axisXML))
	require.NoError(t, err)
	a1 := firstElement(tree, "a1")

	require.Equal(t, []string{"a"}, collect(tree, Parent, a1))
	require.Equal(t, []string{"a", "root"}, collect(tree, Ancestor, a1))
	require.Equal(t, []string{"a1", "a", "root"}, collect(tree, AncestorOrSelf, a1))
}

func TestIterate_FollowingAndPreceding(t *testing.T) {
	tree, err := Build(strings.NewReader(axisXML))
	require.NoError(t, err)
	a := firstElement(tree, "a")
	b1 := firstElement(tree, "b1")

	require.Equal(t, []string{"b", "b1", "c"}, collect(tree, Following, a))
	require.Equal(t, []string{"a2", "a1", "a"}, collect(tree, Preceding, b1))
}

func TestAxis_ReverseAndPrincipalKind(t *testing.T) {
	require.True(t, Ancestor.Reverse())
	require.True(t, Preceding.Reverse())
	require.False(t, Child.Reverse())

	require.Equal(t, AttributeNode, AttributeAxis.PrincipalKind())
	require.Equal(t, NamespaceNode, NamespaceAxis.PrincipalKind())
	require.Equal(t, ElementNode, Child.PrincipalKind())
}
