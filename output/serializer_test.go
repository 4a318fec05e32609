package output_test

import (
	"strings"
	"testing"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/go-xslt/output"
	"github.com/arturoeanton/go-xslt/xmlnode"
)

func requireGolden(t *testing.T, want, got string) {
	t.Helper()
	if want == got {
		return
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(want),
		B:        difflib.SplitLines(got),
		FromFile: "want",
		ToFile:   "got",
		Context:  2,
	})
	require.NoError(t, err)
	t.Fatalf("serializer output mismatch:\n%s", diff)
}

func TestSerializer_SelfClosingAndAttributes(t *testing.T) {
	var sb strings.Builder
	s := &output.Serializer{W: &sb, Method: output.MethodXML, OmitXMLDeclaration: true}

	s.StartDocument()
	s.StartElement(xmlnode.Name{Local: "root"}, "")
	s.Attribute(xmlnode.Name{Local: "id"}, "7")
	s.StartElement(xmlnode.Name{Local: "empty"}, "")
	s.EndElement()
	s.EndElement()
	s.EndDocument()

	requireGolden(t, `<root id="7"><empty/></root>`, sb.String())
}

func TestSerializer_DuplicateAttributeLastWins(t *testing.T) {
	var sb strings.Builder
	var warnings []error
	s := &output.Serializer{W: &sb, Method: output.MethodXML, OmitXMLDeclaration: true,
		OnError: func(err error) { warnings = append(warnings, err) }}

	s.StartDocument()
	s.StartElement(xmlnode.Name{Local: "n"}, "")
	s.Attribute(xmlnode.Name{Local: "a"}, "1")
	s.Attribute(xmlnode.Name{Local: "a"}, "2")
	s.EndElement()
	s.EndDocument()

	requireGolden(t, `<n a="2"/>`, sb.String())
	require.Len(t, warnings, 1)
}

func TestSerializer_TextEscaping(t *testing.T) {
	var sb strings.Builder
	s := &output.Serializer{W: &sb, Method: output.MethodXML, OmitXMLDeclaration: true}

	s.StartDocument()
	s.StartElement(xmlnode.Name{Local: "p"}, "")
	s.Characters("a < b & c")
	s.EndElement()
	s.EndDocument()

	requireGolden(t, `<p>a &lt; b &amp; c</p>`, sb.String())
}

func TestSerializer_TextMethodIgnoresMarkup(t *testing.T) {
	var sb strings.Builder
	s := &output.Serializer{W: &sb, Method: output.MethodText}

	s.StartDocument()
	s.StartElement(xmlnode.Name{Local: "p"}, "")
	s.Characters("hello <b>world</b>")
	s.EndElement()
	s.EndDocument()

	requireGolden(t, "hello <b>world</b>", sb.String())
}

func TestSerializer_XMLDeclaration(t *testing.T) {
	var sb strings.Builder
	s := &output.Serializer{W: &sb, Method: output.MethodXML, Version: "1.0", Encoding: "UTF-8"}

	s.StartDocument()
	s.StartElement(xmlnode.Name{Local: "r"}, "")
	s.EndElement()
	s.EndDocument()

	requireGolden(t, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<r/>", sb.String())
}
