package dynmodel

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"

	"github.com/arturoeanton/go-xslt/xmlnode"
)

// ============================================================================
// 3. STREAMING DECODER (Feature: High Performance / Large Files)
// ============================================================================

// Stream allows iterating over huge XML files efficiently without loading
// the entire content into memory.
// It leverages Go Generics to yield typed structs directly.
type Stream[T any] struct {
	decoder *xml.Decoder
	tagName string
}

// NewStream initializes a new streaming iterator for a specific XML tag.
// r: The input reader (file, http body, etc).
// tagName: The local name of the XML element to iterate over (e.g., "Item", "Entry").
// opts: Variadic options (e.g., EnableLegacyCharsets)
func NewStream[T any](r io.Reader, tagName string, opts ...Option) *Stream[T] {
	// 1. Procesar configuración
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	decoder := xml.NewDecoder(r)

	// 2. Inyectar el CharsetReader si la opción está activa
	if cfg.useCharsetReader {
		// Aquí usamos la función charsetReader definida en util.go
		decoder.CharsetReader = charsetReader
	}

	return &Stream[T]{
		decoder: decoder,
		tagName: tagName,
	}
}

// Iter returns a read-only channel of items of type T.
// It is a convenience wrapper around IterWithContext using context.Background().
//
// Usage:
//
//	stream := dynmodel.NewStream[MyStruct](reader, "MyTag")
//	for item := range stream.Iter() {
//	    // process item
//	}
func (s *Stream[T]) Iter() <-chan T {
	return s.IterWithContext(context.Background())
}

// IterWithContext returns a channel of items, respecting the provided Context.
// Use this method if you need to cancel the streaming process early or handle timeouts.
//
// Usage:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
//	defer cancel()
//	for item := range stream.IterWithContext(ctx) { ... }
func (s *Stream[T]) IterWithContext(ctx context.Context) <-chan T {
	ch := make(chan T)
	go func() {
		defer close(ch)
		for {
			// 1. Check cancellation before work
			select {
			case <-ctx.Done():
				return
			default:
			}

			t, err := s.decoder.Token()
			if err == io.EOF {
				return
			}
			if err != nil {
				// In a production environment, consider an error channel.
				fmt.Printf("Stream error: %v\n", err)
				return
			}

			if se, ok := t.(xml.StartElement); ok && se.Name.Local == s.tagName {
				var item T
				if err := s.decoder.DecodeElement(&item, &se); err == nil {
					// 2. Blocking Send with Context Awareness
					// Prevents goroutine leak if the receiver stops reading.
					select {
					case ch <- item:
						// OK
					case <-ctx.Done():
						return // Abort
					}
				}
			}
		}
	}()
	return ch
}

// StreamTrees is Stream's counterpart for the typed engine: instead of
// decoding each matched element into a caller-supplied Go struct, it
// re-serializes each matched element's tokens with xml.Encoder and hands
// the fragment to xmlnode.Build, yielding one *xmlnode.Tree per match.
// This lets huge documents (order feeds, log dumps) be walked with
// xpath/xslt per record instead of requiring the whole file to be built
// into a single Tree first.
func StreamTrees(ctx context.Context, r io.Reader, tagName string, opts ...Option) <-chan *xmlnode.Tree {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	decoder := xml.NewDecoder(r)
	if cfg.useCharsetReader {
		decoder.CharsetReader = charsetReader
	}

	ch := make(chan *xmlnode.Tree)
	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			tok, err := decoder.Token()
			if err == io.EOF {
				return
			}
			if err != nil {
				fmt.Printf("StreamTrees error: %v\n", err)
				return
			}

			se, ok := tok.(xml.StartElement)
			if !ok || se.Name.Local != tagName {
				continue
			}

			var buf bytes.Buffer
			enc := xml.NewEncoder(&buf)
			if err := enc.EncodeToken(se); err != nil {
				continue
			}
			depth := 1
			for depth > 0 {
				t, err := decoder.Token()
				if err != nil {
					break
				}
				if err := enc.EncodeToken(t); err != nil {
					break
				}
				switch t.(type) {
				case xml.StartElement:
					depth++
				case xml.EndElement:
					depth--
				}
			}
			if err := enc.Flush(); err != nil {
				continue
			}

			tree, err := xmlnode.Build(bytes.NewReader(buf.Bytes()))
			if err != nil {
				continue
			}

			select {
			case ch <- tree:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}
