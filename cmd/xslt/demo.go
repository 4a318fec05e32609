package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/arturoeanton/go-xslt/dynmodel"
	"github.com/arturoeanton/go-xslt/xmlnode"
)

// ============================================================================
// DEMO REGISTRY
// ============================================================================

var demoRegistry = map[string]func(){
	"basic": demo_v1_BasicParsing,
	"array": demo_v1_ForceArray,

	"html": demo_v1_HtmlLenient,

	"ns":    demo_v2_Namespaces,
	"query": demo_v2_QueryAdvanced,

	"hooks": demo_v2_HooksAndTypes,
	"cdata": demo_v2_MarshalCDATA,

	"stream_r": demo_v3_StreamingDecoder,
	"stream_w": demo_v3_StreamingEncoder,
	"validate": demo_v3_Validation,

	"legacy": demo_v3_LegacyCharsets,
	"json":   demo_v3_JSONConversion,
	"typed":  demo_v4_TypedTreeBridge,
}

// RunDemos runs either every registered demo in a fixed order, or one named
// demo, driven by the "demo" CLI subcommand.
func RunDemos(arg string) {
	fmt.Println("========================================")
	fmt.Println("   go-xslt - dynmodel demo gallery")
	fmt.Println("========================================")

	if arg == "all" || arg == "" {
		runSequence := []string{
			"basic", "array", "html",
			"ns", "query", "hooks",
			"cdata", "validate",
			"stream_r", "stream_w",
			"legacy", "json",
			"typed",
		}

		for _, name := range runSequence {
			printHeader(name)
			demoRegistry[name]()
			time.Sleep(300 * time.Millisecond)
		}
	} else {
		if fn, exists := demoRegistry[arg]; exists {
			printHeader(arg)
			fn()
		} else {
			fmt.Printf("demo %q not found. available demos: %v\n", arg, getDemoKeys())
		}
	}
}

func printHeader(name string) {
	fmt.Printf("\n>>> running demo: [%s] <<<\n", strings.ToUpper(name))
	fmt.Println(strings.Repeat("-", 40))
}

func getDemoKeys() []string {
	keys := []string{}
	for k := range demoRegistry {
		keys = append(keys, k)
	}
	return keys
}

// ============================================================================
// BASICS
// ============================================================================

func demo_v1_BasicParsing() {
	fmt.Println("Goal: read plain XML with no structs.")

	xmlData := `<library><book id="1">The Little Prince</book></library>`

	m, err := dynmodel.MapXML(strings.NewReader(xmlData))
	if err != nil {
		panic(err)
	}

	title, _ := dynmodel.Query(m, "library/book/#text")
	id, _ := dynmodel.Query(m, "library/book/@id")

	fmt.Printf("Resulting map: %+v\n", m)
	fmt.Printf("Title: %s (ID: %s)\n", title, id)
}

func demo_v1_ForceArray() {
	fmt.Println("Goal: resolve single-vs-array ambiguity.")

	xmlData := `<library><book>Only One</book></library>`

	m, _ := dynmodel.MapXML(strings.NewReader(xmlData), dynmodel.ForceArray("book"))

	lib := m.Get("library").(*dynmodel.OrderedMap)
	books := lib.Get("book").([]any)

	fmt.Printf("Type of 'book': %T (length %d)\n", books, len(books))
}

// ============================================================================
// LENIENT HTML
// ============================================================================

func demo_v1_HtmlLenient() {
	fmt.Println("Goal: read messy HTML (unclosed tags).")

	htmlData := `<html><body>Hello<br>World<br><meta charset="utf-8"></body></html>`

	m, err := dynmodel.MapXML(strings.NewReader(htmlData), dynmodel.EnableExperimental())
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	body, _ := dynmodel.Query(m, "html/body/#text")
	fmt.Printf("Content read successfully: %v\n", body)
}

// ============================================================================
// NAMESPACES & QUERY
// ============================================================================

func demo_v2_Namespaces() {
	fmt.Println("Goal: collapse long namespace URIs into short aliases.")

	xmlData := `<root xmlns:h="http://w3.org/html"><h:table>Data</h:table></root>`

	m, _ := dynmodel.MapXML(strings.NewReader(xmlData),
		dynmodel.RegisterNamespace("html", "http://w3.org/html"),
	)

	tableVal, _ := dynmodel.Query(m, "root/html:table/#text")
	fmt.Printf("Value via alias: %v\n", tableVal)
}

func demo_v2_QueryAdvanced() {
	fmt.Println("Goal: deep, iterative search (QueryAll).")

	xmlData := `
	<store>
		<section><item>A</item><item>B</item></section>
		<section><item>C</item></section>
	</store>`

	m, _ := dynmodel.MapXML(strings.NewReader(xmlData), dynmodel.ForceArray("section", "item"))

	items, _ := dynmodel.QueryAll(m, "store/section/item/#text")

	fmt.Printf("Items found (3 expected): %v\n", items)
}

// ============================================================================
// HOOKS & MARSHAL
// ============================================================================

func demo_v2_HooksAndTypes() {
	fmt.Println("Goal: coerce strings into Go types (time/int) on the fly.")

	xmlData := `<log><date>2025-12-31</date><count>99</count></log>`

	dateHook := func(s string) any {
		t, _ := time.Parse("2006-01-02", s)
		return t
	}

	m, _ := dynmodel.MapXML(strings.NewReader(xmlData),
		dynmodel.WithValueHook("date", dateHook),
		dynmodel.EnableExperimental(),
	)

	dateVal, _ := dynmodel.Query(m, "log/date")
	countVal, _ := dynmodel.Query(m, "log/count")

	fmt.Printf("Date type: %T, value: %v\n", dateVal, dateVal)
	fmt.Printf("Count type: %T, value: %v\n", countVal, countVal)
}

func demo_v2_MarshalCDATA() {
	fmt.Println("Goal: emit XML with CDATA and comments.")

	data := map[string]any{
		"msg": map[string]any{
			"#comments": []string{" raw HTML note "},
			"#cdata":    "<b>Bold</b>",
		},
	}

	fmt.Println("Generated XML:")
	dynmodel.NewEncoder(os.Stdout, dynmodel.WithPrettyPrint()).Encode(data)
	fmt.Println()
}

// ============================================================================
// STREAMING & VALIDATION
// ============================================================================

func demo_v3_Validation() {
	fmt.Println("Goal: validate business rules (min, regex, enum).")

	xmlData := `<user><age>17</age><role>hacker</role></user>`
	m, _ := dynmodel.MapXML(strings.NewReader(xmlData), dynmodel.EnableExperimental())

	rules := []dynmodel.Rule{
		{Path: "user/age", Type: "int", Min: 18},
		{Path: "user/role", Type: "string", Enum: []string{"admin", "user"}},
	}

	errs := dynmodel.Validate(m, rules)
	fmt.Println("Errors found (expected):")
	for _, e := range errs {
		fmt.Printf(" - %s\n", e)
	}
}

func demo_v3_StreamingDecoder() {
	fmt.Println("Goal: read large files (generics) without loading everything into memory.")

	xmlData := `
	<orders>
		<Order><id>101</id><total>50.5</total></Order>
		<Order><id>102</id><total>100.0</total></Order>
	</orders>`

	type Order struct {
		ID    int     `xml:"id"`
		Total float64 `xml:"total"`
	}

	stream := dynmodel.NewStream[Order](strings.NewReader(xmlData), "Order")

	fmt.Println("Iterating stream:")
	for o := range stream.Iter() {
		fmt.Printf(" -> Order %d: $%.2f\n", o.ID, o.Total)
	}
}

func demo_v3_StreamingEncoder() {
	fmt.Println("Goal: write XML straight to an io.Writer, with root attributes.")

	data := map[string]any{
		"feed": map[string]any{
			"@lang":    "en-US",
			"@version": "2.0",
			"title":    "Tech Blog",
		},
	}

	encoder := dynmodel.NewEncoder(os.Stdout, dynmodel.WithPrettyPrint())

	fmt.Println("Writing XML to stdout:")
	if err := encoder.Encode(data); err != nil {
		fmt.Println("Error encoding:", err)
	}
	fmt.Println()
}

// ============================================================================
// UTILITIES & LEGACY
// ============================================================================

func demo_v3_LegacyCharsets() {
	fmt.Println("Goal: parse ISO-8859-1 (Latin1) encoded XML.")

	isoData := []byte{
		'<', 'd', 'a', 't', 'a', '>',
		'c', 'a', 'f', 0xE9,
		'<', '/', 'd', 'a', 't', 'a', '>',
	}

	fmt.Println("Input (bytes):", isoData)

	reader := strings.NewReader(string(isoData))

	m, err := dynmodel.MapXML(reader, dynmodel.EnableLegacyCharsets())
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Printf("Resulting map: %v\n", m)
}

func demo_v3_JSONConversion() {
	fmt.Println("Goal: convert XML to JSON (keys as parsed: '@' attributes and '#seq' metadata are kept).")

	xmlData := `<user id="42"><name>Alice</name><active>true</active></user>`
	reader := strings.NewReader(xmlData)

	jsonBytes, err := dynmodel.ToJSON(reader)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	fmt.Printf("XML input: %s\n", xmlData)
	fmt.Printf("JSON output: %s\n", jsonBytes)
}

// ============================================================================
// TYPED TREE BRIDGE (dynmodel <-> xmlnode.Tree)
// ============================================================================

func demo_v4_TypedTreeBridge() {
	fmt.Println("Goal: drive the dynmodel helpers (Map/C14N/Validate/JSON/CSV/Stream) off a typed xmlnode.Tree instead of raw bytes.")

	xmlData := `<orders>
		<order id="101"><customer>Alice</customer><total>50.5</total></order>
		<order id="102"><customer> Bob </customer><total>-5</total></order>
	</orders>`

	tree, err := dynmodel.BuildSoup(strings.NewReader(xmlData), nil)
	if err != nil {
		die(err)
	}

	canon, err := dynmodel.CanonicalizeTree(tree, tree.Root)
	if err != nil {
		die(err)
	}
	fmt.Printf("Canonicalized: %s\n", canon)

	ordersRoot := firstElementChild(tree, tree.Root)
	var orderIDs []xmlnode.ID
	for c := range tree.Children(ordersRoot) {
		if tree.Get(c).Kind == xmlnode.ElementNode {
			orderIDs = append(orderIDs, c)
		}
	}

	rules := []dynmodel.Rule{
		{Path: "total", Type: "int", Min: 1},
	}
	fmt.Println("Validating each <order> (expect the 2nd to fail its minimum):")
	for _, id := range orderIDs {
		for _, errMsg := range dynmodel.ValidateTree(tree, id, rules) {
			fmt.Printf(" - %s\n", errMsg)
		}
	}

	jsonOut, err := dynmodel.TreeToJSON(tree, orderIDs[0])
	if err != nil {
		die(err)
	}
	fmt.Printf("Order as JSON: %s\n", jsonOut)

	fmt.Println("Orders as CSV:")
	if err := dynmodel.TreeToCSV(os.Stdout, tree, tree.Root, "order"); err != nil {
		die(err)
	}

	fmt.Println("Streaming <order> elements as trees:")
	for t := range dynmodel.StreamTrees(context.Background(), strings.NewReader(xmlData), "order") {
		fmt.Printf(" -> order subtree with %d nodes\n", len(t.Nodes))
	}
}

func firstElementChild(tree *xmlnode.Tree, id xmlnode.ID) xmlnode.ID {
	for c := range tree.Children(id) {
		if tree.Get(c).Kind == xmlnode.ElementNode {
			return c
		}
	}
	return id
}
