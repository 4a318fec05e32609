package xslt_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/go-xslt/output"
	"github.com/arturoeanton/go-xslt/xmlnode"
	"github.com/arturoeanton/go-xslt/xslt"
)

func compileStylesheet(t *testing.T, src string) *xslt.Stylesheet {
	t.Helper()
	tree, err := xmlnode.Build(strings.NewReader(src))
	require.NoError(t, err)
	s, err := xslt.Compile(tree, nil)
	require.NoError(t, err)
	return s
}

func runTransform(t *testing.T, s *xslt.Stylesheet, srcXML string) string {
	t.Helper()
	srcTree, err := xmlnode.BuildWithSpacePolicy(strings.NewReader(srcXML), s)
	require.NoError(t, err)

	var sb strings.Builder
	ser := &output.Serializer{W: &sb, Method: output.MethodXML, OmitXMLDeclaration: true}
	tr := xslt.NewTransform(s)
	err = tr.Run(srcTree, ser, nil)
	require.NoError(t, err)
	ser.Flush()
	return sb.String()
}

const identityStylesheet = `<xsl:stylesheet version="1.0" xmlns:xsl="http://www.w3.org/1999/XSL/Transform">
	<xsl:template match="@*|node()">
		<xsl:copy>
			<xsl:apply-templates select="@*|node()"/>
		</xsl:copy>
	</xsl:template>
</xsl:stylesheet>`

func TestTransform_IdentityTemplate(t *testing.T) {
	s := compileStylesheet(t, identityStylesheet)
	out := runTransform(t, s, `<root a="1"><child>text</child></root>`)
	require.Equal(t, `<root a="1"><child>text</child></root>`, out)
}

const greetStylesheet = `<xsl:stylesheet version="1.0" xmlns:xsl="http://www.w3.org/1999/XSL/Transform">
	<xsl:output method="xml" omit-xml-declaration="yes"/>
	<xsl:template match="/greeting">
		<hello><xsl:value-of select="concat('Hi ', @name)"/></hello>
	</xsl:template>
</xsl:stylesheet>`

func TestTransform_ValueOfAndAVT(t *testing.T) {
	s := compileStylesheet(t, greetStylesheet)
	out := runTransform(t, s, `<greeting name="World"/>`)
	require.Equal(t, `<hello>Hi World</hello>`, out)
}

const forEachStylesheet = `<xsl:stylesheet version="1.0" xmlns:xsl="http://www.w3.org/1999/XSL/Transform">
	<xsl:output omit-xml-declaration="yes"/>
	<xsl:template match="/items">
		<list>
			<xsl:for-each select="item">
				<xsl:sort select="@rank" data-type="number"/>
				<entry><xsl:value-of select="."/></entry>
			</xsl:for-each>
		</list>
	</xsl:template>
</xsl:stylesheet>`

func TestTransform_ForEachWithSort(t *testing.T) {
	s := compileStylesheet(t, forEachStylesheet)
	out := runTransform(t, s, `<items>
		<item rank="3">c</item>
		<item rank="1">a</item>
		<item rank="2">b</item>
	</items>`)
	require.Equal(t, `<list><entry>a</entry><entry>b</entry><entry>c</entry></list>`, out)
}

const choosePathStylesheet = `<xsl:stylesheet version="1.0" xmlns:xsl="http://www.w3.org/1999/XSL/Transform">
	<xsl:output omit-xml-declaration="yes"/>
	<xsl:template match="/n">
		<out>
			<xsl:choose>
				<xsl:when test="@v &gt; 10">big</xsl:when>
				<xsl:otherwise>small</xsl:otherwise>
			</xsl:choose>
		</out>
	</xsl:template>
</xsl:stylesheet>`

func TestTransform_ChooseWhenOtherwise(t *testing.T) {
	s := compileStylesheet(t, choosePathStylesheet)
	require.Equal(t, "<out>big</out>", runTransform(t, s, `<n v="42"/>`))
	require.Equal(t, "<out>small</out>", runTransform(t, s, `<n v="1"/>`))
}

const namedTemplateStylesheet = `<xsl:stylesheet version="1.0" xmlns:xsl="http://www.w3.org/1999/XSL/Transform">
	<xsl:output omit-xml-declaration="yes"/>
	<xsl:template match="/root">
		<xsl:call-template name="square">
			<xsl:with-param name="n" select="@v"/>
		</xsl:call-template>
	</xsl:template>
	<xsl:template name="square">
		<xsl:param name="n" select="0"/>
		<result><xsl:value-of select="$n * $n"/></result>
	</xsl:template>
</xsl:stylesheet>`

func TestTransform_CallTemplateWithParam(t *testing.T) {
	s := compileStylesheet(t, namedTemplateStylesheet)
	out := runTransform(t, s, `<root v="6"/>`)
	require.Equal(t, "<result>36</result>", out)
}

const keyLookupStylesheet = `<xsl:stylesheet version="1.0" xmlns:xsl="http://www.w3.org/1999/XSL/Transform">
	<xsl:output omit-xml-declaration="yes"/>
	<xsl:key name="by-id" match="item" use="@id"/>
	<xsl:template match="/root">
		<found><xsl:value-of select="key('by-id', '7')/text()"/></found>
	</xsl:template>
</xsl:stylesheet>`

func TestTransform_KeyLookup(t *testing.T) {
	s := compileStylesheet(t, keyLookupStylesheet)
	out := runTransform(t, s, `<root><item id="5">five</item><item id="7">seven</item></root>`)
	require.Equal(t, "<found>seven</found>", out)
}

const formatNumberStylesheet = `<xsl:stylesheet version="1.0" xmlns:xsl="http://www.w3.org/1999/XSL/Transform">
	<xsl:output omit-xml-declaration="yes"/>
	<xsl:template match="/n">
		<out><xsl:value-of select="format-number(@v, '#,##0.00')"/></out>
	</xsl:template>
</xsl:stylesheet>`

func TestTransform_FormatNumber(t *testing.T) {
	s := compileStylesheet(t, formatNumberStylesheet)
	out := runTransform(t, s, `<n v="1234.5"/>`)
	require.Equal(t, "<out>1,234.50</out>", out)
}
