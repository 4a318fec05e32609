package xpath_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/go-xslt/xmlnode"
	"github.com/arturoeanton/go-xslt/xpath"
)

const catalogXML = `<catalog>
	<book id="b1" price="12.5"><title>Go in Practice</title></book>
	<book id="b2" price="30"><title>Advanced Go</title></book>
	<book id="b3" price="9"><title>XSLT Cookbook</title></book>
</catalog>`

func evalString(t *testing.T, tree *xmlnode.Tree, node xmlnode.ID, expr string) xpath.Value {
	t.Helper()
	e, err := xpath.Parse(expr)
	require.NoError(t, err)
	ctx := &xpath.Context{
		Tree: tree, Node: node, Pos: 1, Size: 1,
		Vars: xpath.Scope{}, NS: map[string]string{}, Funcs: xpath.CoreLibrary(),
	}
	v, err := xpath.Eval(e, ctx)
	require.NoError(t, err)
	return v
}

func TestEval_PathAndPredicate(t *testing.T) {
	tree, err := xmlnode.Build(strings.NewReader(catalogXML))
	require.NoError(t, err)

	v := evalString(t, tree, tree.Root, "count(/catalog/book)")
	require.Equal(t, float64(3), v.AsNumber())

	v = evalString(t, tree, tree.Root, "/catalog/book[@id='b2']/title")
	require.Equal(t, "Advanced Go", v.AsString())

	v = evalString(t, tree, tree.Root, "/catalog/book[position()=1]/@id")
	require.Equal(t, "b1", v.AsString())
}

func TestEval_NumericAndBooleanFunctions(t *testing.T) {
	tree, err := xmlnode.Build(strings.NewReader(catalogXML))
	require.NoError(t, err)

	v := evalString(t, tree, tree.Root, "sum(/catalog/book/@price)")
	require.InDelta(t, 51.5, v.AsNumber(), 0.0001)

	v = evalString(t, tree, tree.Root, "/catalog/book[@price > 10]")
	require.Equal(t, xpath.TypeNodeSet, v.Type)
	require.Len(t, v.Nodes.IDs, 2)

	v = evalString(t, tree, tree.Root, `contains(/catalog/book[1]/title, 'Practice')`)
	require.True(t, v.AsBoolean())
}

func TestEval_StringFunctions(t *testing.T) {
	tree, err := xmlnode.Build(strings.NewReader(catalogXML))
	require.NoError(t, err)

	v := evalString(t, tree, tree.Root, `concat('x', '-', /catalog/book[1]/@id)`)
	require.Equal(t, "x-b1", v.AsString())

	v = evalString(t, tree, tree.Root, `substring('hello world', 1, 5)`)
	require.Equal(t, "hello", v.AsString())

	v = evalString(t, tree, tree.Root, `translate('ABC', 'AB', 'ab')`)
	require.Equal(t, "abC", v.AsString())
}

func TestEval_UndefinedVariable(t *testing.T) {
	tree, err := xmlnode.Build(strings.NewReader(catalogXML))
	require.NoError(t, err)

	e, err := xpath.Parse("$missing")
	require.NoError(t, err)
	ctx := &xpath.Context{Tree: tree, Node: tree.Root, Pos: 1, Size: 1, Vars: xpath.Scope{}, Funcs: xpath.CoreLibrary()}
	_, err = xpath.Eval(e, ctx)
	require.Error(t, err)
}
