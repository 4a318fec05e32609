// Command xslt is the go-xslt toolkit's CLI: stylesheet transformation and
// one-shot XPath queries over the typed xmlnode/xpath/xslt engine, plus the
// dynmodel convenience subcommands (fmt/json/csv/validate) inherited from
// the teacher toolkit.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arturoeanton/go-xslt/dynmodel"
	"github.com/arturoeanton/go-xslt/output"
	"github.com/arturoeanton/go-xslt/xmlnode"
	"github.com/arturoeanton/go-xslt/xpath"
	"github.com/arturoeanton/go-xslt/xslt"
)

func main() {
	root := &cobra.Command{
		Use:   "xslt",
		Short: "go-xslt - an XSLT 1.0+ transformation engine and XML toolkit",
	}

	root.AddCommand(
		newTransformCmd(),
		newQueryCmd(),
		newFmtCmd(),
		newJSONCmd(),
		newCSVCmd(),
		newValidateCmd(),
		newDemoCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newTransformCmd() *cobra.Command {
	var stylesheetPath, outPath string
	var params []string

	cmd := &cobra.Command{
		Use:   "transform <input.xml>",
		Short: "apply an XSLT stylesheet to an XML document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if stylesheetPath == "" {
				return fmt.Errorf("--stylesheet is required")
			}

			styleFile, err := os.Open(stylesheetPath)
			if err != nil {
				return err
			}
			defer styleFile.Close()
			styleTree, err := xmlnode.Build(styleFile)
			if err != nil {
				return fmt.Errorf("parsing stylesheet: %w", err)
			}

			loader := func(href string) (*xmlnode.Tree, error) {
				f, err := os.Open(href)
				if err != nil {
					return nil, err
				}
				defer f.Close()
				return xmlnode.Build(f)
			}

			s, err := xslt.Compile(styleTree, loader)
			if err != nil {
				return fmt.Errorf("compiling stylesheet: %w", err)
			}

			srcFile, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer srcFile.Close()
			srcTree, err := xmlnode.BuildWithSpacePolicy(srcFile, s)
			if err != nil {
				return fmt.Errorf("parsing input: %w", err)
			}

			paramValues, err := parseParams(params)
			if err != nil {
				return err
			}

			out := os.Stdout
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}

			ser := &output.Serializer{
				W:                  out,
				Method:             output.Method(s.Output.Method),
				Version:            s.Output.Version,
				Encoding:           s.Output.Encoding,
				OmitXMLDeclaration: s.Output.OmitXMLDeclaration,
				Indent:             s.Output.Indent,
				DoctypePublic:      s.Output.DoctypePublic,
				DoctypeSystem:      s.Output.DoctypeSystem,
				CDataElements:      s.Output.CDataSectionElements,
				StandaloneSet:      s.Output.StandaloneSet,
				StandaloneYes:      s.Output.StandaloneYes,
				OnError:            func(err error) { fmt.Fprintln(os.Stderr, "warning:", err) },
			}

			tr := xslt.NewTransform(s)
			dynmodel.RegisterXPathExtensions(tr.Funcs())
			tr.OnMessage = func(text string, terminate bool) {
				fmt.Fprintln(os.Stderr, "xsl:message:", text)
			}
			tr.OnError = func(err error) { fmt.Fprintln(os.Stderr, "warning:", err) }

			if err := tr.Run(srcTree, ser, paramValues); err != nil {
				return fmt.Errorf("transforming: %w", err)
			}
			ser.Flush()
			return nil
		},
	}

	cmd.Flags().StringVarP(&stylesheetPath, "stylesheet", "s", "", "path to the XSLT stylesheet (required)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, `stylesheet parameter, "name=value" (repeatable)`)
	return cmd
}

func parseParams(raw []string) (map[string]xpath.Value, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]xpath.Value, len(raw))
	for _, p := range raw {
		name, val, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --param %q, expected name=value", p)
		}
		out[name] = xpath.StringValue(val)
	}
	return out, nil
}

func newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <input.xml> <xpath-expr>",
		Short: "evaluate a one-shot XPath expression against an XML document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			tree, err := xmlnode.Build(f)
			if err != nil {
				return fmt.Errorf("parsing input: %w", err)
			}

			expr, err := xpath.Parse(args[1])
			if err != nil {
				return fmt.Errorf("parsing xpath expression: %w", err)
			}

			ctx := &xpath.Context{
				Tree: tree, Node: tree.Root, Pos: 1, Size: 1,
				Vars: xpath.Scope{}, NS: map[string]string{}, Funcs: xpath.CoreLibrary(),
			}
			dynmodel.RegisterXPathExtensions(ctx.Funcs)
			v, err := xpath.Eval(expr, ctx)
			if err != nil {
				return fmt.Errorf("evaluating expression: %w", err)
			}

			switch v.Type {
			case xpath.TypeNodeSet:
				for _, id := range v.Nodes.IDs {
					fmt.Println(tree.StringValue(id))
				}
			default:
				fmt.Println(v.AsString())
			}
			return nil
		},
	}
	return cmd
}

func newFmtCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fmt <file>",
		Short: "pretty-print an XML document",
		Args:  cobra.MaximumNArgs(1),
		Run:   func(cmd *cobra.Command, args []string) { dynmodel.CliFormat(args) },
	}
}

func newJSONCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "json <file>",
		Short: "convert an XML document to JSON",
		Args:  cobra.MaximumNArgs(1),
		Run:   func(cmd *cobra.Command, args []string) { dynmodel.CliToJson(args) },
	}
}

func newCSVCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "csv <file>",
		Short: "flatten a repeated XML element into CSV rows",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			rawArgs := args
			if path != "" {
				rawArgs = append([]string{"--path=" + path}, args...)
			}
			dynmodel.CliToCsv(rawArgs)
		},
	}
	cmd.Flags().StringVar(&path, "path", "", `element path to flatten, e.g. "orders/order"`)
	return cmd
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "check an XML document is well-formed",
		Args:  cobra.MaximumNArgs(1),
		Run:   func(cmd *cobra.Command, args []string) { dynmodel.CliValidateWellFormed(args) },
	}
}

func newDemoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo [name]",
		Short: "run the dynmodel feature demos",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			target := "all"
			if len(args) > 0 {
				target = args[0]
			}
			RunDemos(target)
		},
	}
}
