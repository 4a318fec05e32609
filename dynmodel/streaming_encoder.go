package dynmodel

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// ============================================================================
// 4. STREAMING ENCODER (Feature 3: Escritura Eficiente)
// ============================================================================

// Encoder escribe XML directamente a un io.Writer.
type Encoder struct {
	w   io.Writer
	cfg *config
}

// NewEncoder crea un encoder configurado.
func NewEncoder(w io.Writer, opts ...Option) *Encoder {
	cfg := &config{namespaces: make(map[string]string)}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Encoder{w: w, cfg: cfg}
}

// Encode escribe el mapa como XML.
func (e *Encoder) Encode(data map[string]any) error {
	if len(data) != 1 {
		return errors.New("root must have exactly 1 element")
	}
	for k, v := range data {
		if err := encodeNode(e.w, k, v, e.cfg, 0); err != nil {
			return err
		}
	}
	return nil
}

// Marshal Wrapper Legacy (para compatibilidad con v2)
func Marshal(data map[string]any, opts ...Option) (string, error) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf, opts...)
	if err := enc.Encode(data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// encodeNode es la función recursiva que ahora escribe a io.Writer
func encodeNode(w io.Writer, tag string, value any, cfg *config, depth int) error {
	indent := ""
	if cfg.prettyPrint {
		indent = "\n" + strings.Repeat("  ", depth)
	}

	// 1. Apertura del Tag
	fmt.Fprint(w, indent+"<"+tag)

	// Feature: Inyección de Namespace Reverso (Solo en raíz)
	if depth == 0 {
		var urls []string
		for u := range cfg.namespaces {
			urls = append(urls, u)
		}
		sort.Strings(urls)
		for _, u := range urls {
			alias := cfg.namespaces[u]
			fmt.Fprintf(w, ` xmlns:%s="%s"`, alias, u)
		}
	}

	var content any
	var children map[string]any
	var isSimple bool
	var cdataContent string
	var comments []string

	// 2. Procesamiento de Atributos e Hijos
	switch v := value.(type) {
	case map[string]any:
		children = v
		keys := sortedKeys(v)
		for _, k := range keys {
			val := v[k]
			if strings.HasPrefix(k, "@") {
				// Feature: Soporte de Atributos en Root y Hijos
				// Escribe atributos directamente en el tag de apertura
				esc := escapeString(fmt.Sprintf("%v", val))
				fmt.Fprintf(w, ` %s="%s"`, strings.TrimPrefix(k, "@"), esc)
			} else if k == "#text" {
				content = val
			} else if k == "#cdata" {
				cdataContent = fmt.Sprintf("%v", val)
			} else if k == "#comments" {
				if list, ok := val.([]string); ok {
					comments = list
				}
			}
		}
	default:
		isSimple = true
		content = v
	}

	fmt.Fprint(w, ">")

	// 3. Escribir Comentarios
	if len(comments) > 0 {
		fmt.Fprint(w, "<!--")
	}

	for _, c := range comments {
		if cfg.prettyPrint {
			fmt.Fprint(w, "\n"+strings.Repeat("  ", depth+1))
		}
		fmt.Fprint(w, c)
	}

	if len(comments) > 0 {
		fmt.Fprint(w, "-->")
	}

	// 4. Escribir Contenido
	if cdataContent != "" {
		if cfg.prettyPrint {
			fmt.Fprint(w, "\n"+strings.Repeat("  ", depth+1))
		}
		fmt.Fprint(w, "<![CDATA["+cdataContent+"]]>")
	} else if content != nil {
		xml.EscapeText(w, []byte(fmt.Sprintf("%v", content)))
	}

	// 5. Hijos Recursivos
	if !isSimple && len(children) > 0 {
		keys := sortedKeys(children)
		hasComplex := false
		for _, k := range keys {
			val := children[k]
			if !strings.HasPrefix(k, "@") && k != "#text" && k != "#cdata" && k != "#comments" && k != "#seq" {
				hasComplex = true
				if list, ok := val.([]any); ok {
					for _, item := range list {
						if err := encodeNode(w, k, item, cfg, depth+1); err != nil {
							return err
						}
					}
				} else {
					if err := encodeNode(w, k, val, cfg, depth+1); err != nil {
						return err
					}
				}
			}
		}
		if hasComplex && cfg.prettyPrint {
			fmt.Fprint(w, indent)
		}
	}

	fmt.Fprint(w, "</"+tag+">")
	return nil
}

// Helpers Marshal
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
func escapeString(s string) string {
	var b bytes.Buffer
	xml.EscapeText(&b, []byte(s))
	return b.String()
}

