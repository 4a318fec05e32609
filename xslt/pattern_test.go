package xslt_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/go-xslt/xmlnode"
	"github.com/arturoeanton/go-xslt/xpath"
)

const patternFixture = `<shop>
	<book category="fiction"><title>A</title></book>
	<magazine/>
</shop>`

func TestPattern_SimpleAndWildcard(t *testing.T) {
	tree, err := xmlnode.Build(strings.NewReader(patternFixture))
	require.NoError(t, err)

	book := firstElementNamed(tree, "book")
	magazine := firstElementNamed(tree, "magazine")

	bookPattern := mustPattern(t, "book")
	require.True(t, bookPattern.Matches(tree, book, nil))
	require.False(t, bookPattern.Matches(tree, magazine, nil))

	wildcard := mustPattern(t, "*")
	require.True(t, wildcard.Matches(tree, book, nil))
	require.True(t, wildcard.Matches(tree, magazine, nil))
}

func TestPattern_AbsoluteAndDescendant(t *testing.T) {
	tree, err := xmlnode.Build(strings.NewReader(patternFixture))
	require.NoError(t, err)
	title := firstElementNamed(tree, "title")
	book := firstElementNamed(tree, "book")

	deep := mustPattern(t, "//title")
	require.True(t, deep.Matches(tree, title, nil))
	require.False(t, deep.Matches(tree, book, nil))

	anchored := mustPattern(t, "/shop/book")
	require.True(t, anchored.Matches(tree, book, nil))
	require.False(t, anchored.Matches(tree, title, nil))
}

func TestPattern_PredicateAgainstContext(t *testing.T) {
	tree, err := xmlnode.Build(strings.NewReader(patternFixture))
	require.NoError(t, err)
	book := firstElementNamed(tree, "book")

	p := mustPattern(t, `book[@category='fiction']`)
	ec := &xpath.Context{Tree: tree, Node: book, Pos: 1, Size: 1, Vars: xpath.Scope{}, Funcs: xpath.CoreLibrary()}
	require.True(t, p.Matches(tree, book, ec))

	p2 := mustPattern(t, `book[@category='nonfiction']`)
	require.False(t, p2.Matches(tree, book, ec))
}

func firstElementNamed(tree *xmlnode.Tree, local string) xmlnode.ID {
	var found xmlnode.ID = xmlnode.NoID
	var walk func(xmlnode.ID)
	walk = func(id xmlnode.ID) {
		if found != xmlnode.NoID {
			return
		}
		n := tree.Get(id)
		if n.Kind == xmlnode.ElementNode && n.Name.Local == local {
			found = id
			return
		}
		for c := range tree.Children(id) {
			walk(c)
		}
	}
	walk(tree.Root)
	return found
}
