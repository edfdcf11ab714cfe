package sigpayload

import (
	"bytes"
	"encoding/json"
)

// SerializeCompact renders v with no extraneous whitespace. This is the form
// signatures are computed and verified over.
func SerializeCompact(v Value) []byte {
	var buf bytes.Buffer
	writeValue(&buf, v, "", "")
	return buf.Bytes()
}

// SerializePretty renders v indented two spaces per level, for debugging.
func SerializePretty(v Value) []byte {
	var buf bytes.Buffer
	writeValue(&buf, v, "", "  ")
	return buf.Bytes()
}

func writeValue(buf *bytes.Buffer, v Value, indent, step string) {
	switch v.Kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		if v.Bool {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindNumber:
		buf.WriteString(string(v.Number))
	case KindString:
		writeJSONString(buf, v.String)
	case KindArray:
		writeArray(buf, v.Array, indent, step)
	case KindObject:
		writeObject(buf, v.Object, indent, step)
	}
}

func writeObject(buf *bytes.Buffer, members []Member, indent, step string) {
	if len(members) == 0 {
		buf.WriteString("{}")
		return
	}
	childIndent := indent + step
	buf.WriteByte('{')
	for i, m := range members {
		if i > 0 {
			buf.WriteByte(',')
		}
		if step != "" {
			buf.WriteByte('\n')
			buf.WriteString(childIndent)
		}
		writeJSONString(buf, m.Key)
		buf.WriteByte(':')
		if step != "" {
			buf.WriteByte(' ')
		}
		writeValue(buf, m.Value, childIndent, step)
	}
	if step != "" {
		buf.WriteByte('\n')
		buf.WriteString(indent)
	}
	buf.WriteByte('}')
}

func writeArray(buf *bytes.Buffer, items []Value, indent, step string) {
	if len(items) == 0 {
		buf.WriteString("[]")
		return
	}
	childIndent := indent + step
	buf.WriteByte('[')
	for i, it := range items {
		if i > 0 {
			buf.WriteByte(',')
		}
		if step != "" {
			buf.WriteByte('\n')
			buf.WriteString(childIndent)
		}
		writeValue(buf, it, childIndent, step)
	}
	if step != "" {
		buf.WriteByte('\n')
		buf.WriteString(indent)
	}
	buf.WriteByte(']')
}

func writeJSONString(buf *bytes.Buffer, s string) {
	// encoding/json's string quoting is exactly what the compact/pretty forms
	// need (escaping, unicode handling); reuse it rather than hand-rolling.
	b, _ := json.Marshal(s)
	buf.Write(b)
}
