package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/gagliardetto/solana-go"

	"noema.dev/ledgerkit/codec"
)

func formatValue(v any) any {
	switch x := v.(type) {
	case solana.PublicKey:
		return x.String()
	case []solana.PublicKey:
		out := make([]string, len(x))
		for i, k := range x {
			out[i] = k.String()
		}
		return out
	case []byte:
		return hex.EncodeToString(x)
	default:
		return x
	}
}

type jsonField struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Value any    `json:"value"`
}

type jsonRecord struct {
	Type    string      `json:"type"`
	Address string      `json:"address,omitempty"`
	Fields  []jsonField `json:"fields"`
}

// writeRecord prints fields in schema order.
func writeRecord(w io.Writer, format string, addr string, rec codec.Record) error {
	if format == "json" {
		out := jsonRecord{Type: rec.Schema.Name, Address: addr}
		for i, f := range rec.Schema.Fields {
			out.Fields = append(out.Fields, jsonField{Name: f.Name, Kind: f.Kind.String(), Value: formatValue(rec.Values[i])})
		}
		return writeJSON(w, out)
	}
	if addr != "" {
		fmt.Fprintf(w, "%s %s\n", rec.Schema.Name, addr)
	} else {
		fmt.Fprintln(w, rec.Schema.Name)
	}
	for i, f := range rec.Schema.Fields {
		v := formatValue(rec.Values[i])
		if list, ok := v.([]string); ok {
			v = "[" + strings.Join(list, ", ") + "]"
		}
		fmt.Fprintf(w, "  %s: %v\n", f.Name, v)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func joinSorted[T any](m map[string]T) string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
