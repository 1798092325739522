package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// ─── Claves no modeladas ───
//
// Bundles, roles, grupos, clients y usuarios conservan las claves JSON que
// no tienen campo propio, en el orden de entrada, y las re-emiten al final
// del objeto al serializar.

// jsonKeys retorna las claves json de los campos de t (sin las "-").
func jsonKeys(t reflect.Type) map[string]bool {
	keys := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("json")
		if tag == "-" || !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		if name == "" {
			name = f.Name
		}
		keys[name] = true
	}
	return keys
}

// unknownKeys recorre el objeto data y retorna las claves fuera de known.
// Si data no es un objeto retorna nil.
func unknownKeys(data []byte, known map[string]bool) ([]Section, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil
	}
	var out []Section
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected key token %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		if !known[key] {
			out = append(out, Section{Key: key, Raw: raw})
		}
	}
	return out, nil
}

// decodeWithExtra decodifica data en dst (un tipo alias sin métodos) y
// retorna las claves que dst no modela.
func decodeWithExtra[A any](data []byte, known map[string]bool, dst *A) ([]Section, error) {
	if err := json.Unmarshal(data, dst); err != nil {
		return nil, err
	}
	return unknownKeys(data, known)
}

// encodeWithExtra serializa v y agrega extra antes de la '}' final.
func encodeWithExtra(v any, extra []Section) ([]byte, error) {
	base, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return base, nil
	}

	var buf bytes.Buffer
	buf.Write(base[:len(base)-1]) // sin '}'
	first := len(base) == 2       // "{}"
	for _, s := range extra {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		k, err := json.Marshal(s.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		if len(s.Raw) == 0 {
			buf.WriteString("null")
		} else {
			buf.Write(s.Raw)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
