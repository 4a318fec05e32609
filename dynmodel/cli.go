package dynmodel

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Helper para obtener el Reader (File o Stdin)
func getInputReader(args []string) (io.Reader, error) {
	// Si hay argumentos y el primero no es un flag, asumimos que es el archivo
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		f, err := os.Open(args[0])
		if err != nil {
			return nil, err
		}
		return f, nil
	}

	// Si no, verificar Stdin
	stat, _ := os.Stdin.Stat()
	if (stat.Mode() & os.ModeCharDevice) == 0 {
		return os.Stdin, nil
	}

	return nil, fmt.Errorf("no input provided (pipe or file)")
}

// 1. Formatter (Pretty Print)
func CliFormat(args []string) {
	r, err := getInputReader(args)
	if err != nil {
		die(err)
	}

	// Leemos a OrderedMap
	m, err := MapXML(r, EnableLegacyCharsets()) // Robustez por defecto
	if err != nil {
		die(err)
	}

	// Escribimos con PrettyPrint
	enc := NewEncoder(os.Stdout, WithPrettyPrint())
	if err := enc.Encode(m.ToMap()); err != nil {
		die(err)
	}
	fmt.Println()
}

// 2. JSON Converter
func CliToJson(args []string) {
	r, err := getInputReader(args)
	if err != nil {
		die(err)
	}
	// Usamos ToJSON helper
	b, err := ToJSON(r)
	if err != nil {
		die(err)
	}
	fmt.Println(string(b))
}

// 3. CSV Converter (Flatten Lists)
// Uso: xslt csv data.xml --path="orders/order"
func CliToCsv(args []string) {
	var targetPath string
	// Parse args manual simple
	cleanArgs := []string{}
	for _, a := range args {
		if strings.HasPrefix(a, "--path=") {
			targetPath = strings.TrimPrefix(a, "--path=")
		} else {
			cleanArgs = append(cleanArgs, a)
		}
	}

	if targetPath == "" {
		die(fmt.Errorf("parameter --path=\"node/list\" is required for CSV"))
	}

	r, err := getInputReader(cleanArgs)
	if err != nil {
		die(err)
	}

	// Forzamos array en el target path para asegurar lista
	nodeName := getLastSegment(targetPath)
	m, err := MapXML(r, ForceArray(nodeName))
	if err != nil {
		die(err)
	}

	// Extraer la lista
	list := m.List(targetPath)
	if len(list) == 0 {
		fmt.Fprintln(os.Stderr, "No rows found at path:", targetPath)
		return
	}

	// Convertir
	if err := ToCSV(os.Stdout, list); err != nil {
		die(err)
	}
}

// 4. Query
func CliQuery(args []string) {
	if len(args) < 1 {
		die(fmt.Errorf("xpath argument required"))
	}

	// El query suele ser el último arg o el segundo si hay archivo
	xpath := args[len(args)-1]
	fileArgs := args[:len(args)-1]

	r, err := getInputReader(fileArgs)
	if err != nil {
		die(err)
	}

	m, err := MapXML(r)
	if err != nil {
		die(err)
	}

	res, err := QueryAll(m, xpath)
	if err != nil {
		die(err)
	}

	// Salida JSON bonita de los resultados
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(res)
}

// 5. Validate (well-formedness only; no business rules are applied) —
// "validate" CLI subcommand.
func CliValidateWellFormed(args []string) {
	r, err := getInputReader(args)
	if err != nil {
		die(err)
	}

	if _, err := MapXML(r, EnableExperimental()); err != nil {
		die(fmt.Errorf("not well-formed: %w", err))
	}
	fmt.Println("well-formed")
}

func die(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func getLastSegment(path string) string {
	parts := strings.Split(path, "/")
	return parts[len(parts)-1]
}

