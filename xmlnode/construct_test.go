package xmlnode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTreeBuilder_BasicShape(t *testing.T) {
	b := NewTreeBuilder()
	b.StartElement(Name{Local: "root"}, "")
	b.Attribute(Name{Local: "id"}, "7")
	b.StartElement(Name{Local: "child"}, "")
	b.Characters("hi")
	b.EndElement()
	b.EndElement()

	tree := b.Tree()
	root := firstElement(tree, "root")
	require.NotEqual(t, NoID, root)

	n := tree.Get(root)
	require.Len(t, n.Attrs, 1)
	require.Equal(t, "7", tree.Get(n.Attrs[0]).Value)

	child := firstElement(tree, "child")
	require.Equal(t, "hi", tree.StringValue(child))
}

func TestTreeBuilder_AttributeAfterContentDropped(t *testing.T) {
	var errs []error
	b := NewTreeBuilder()
	b.OnError = func(err error) { errs = append(errs, err) }

	b.StartElement(Name{Local: "root"}, "")
	b.Characters("text")
	b.Attribute(Name{Local: "late"}, "v")
	b.EndElement()

	root := firstElement(b.Tree(), "root")
	require.Empty(t, b.Tree().Get(root).Attrs)
	require.Len(t, errs, 1)
}

func TestTreeBuilder_DuplicateAttributeLastWins(t *testing.T) {
	b := NewTreeBuilder()
	b.StartElement(Name{Local: "root"}, "")
	b.Attribute(Name{Local: "a"}, "1")
	b.Attribute(Name{Local: "a"}, "2")
	b.EndElement()

	root := firstElement(b.Tree(), "root")
	attrs := b.Tree().Get(root).Attrs
	require.Len(t, attrs, 1)
	require.Equal(t, "2", b.Tree().Get(attrs[0]).Value)
}

func TestTreeBuilder_UnbalancedEndElement(t *testing.T) {
	var errs []error
	b := NewTreeBuilder()
	b.OnError = func(err error) { errs = append(errs, err) }
	b.EndElement()
	require.Len(t, errs, 1)
}
