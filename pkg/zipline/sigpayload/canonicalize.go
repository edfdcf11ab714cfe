package sigpayload

import (
	"fmt"

	"github.com/smallnest/deepcopy"
)

// Canonicalize parses raw manifest JSON and returns the canonical signature
// payload: a copy of the parsed tree with every modules[*].url value and
// every signatures[*] value blanked to the empty string. Key order, unknown
// fields, and every other value are left untouched. The input is never
// mutated: canonicalization runs against a defensive deep copy so a verifier
// and a re-signer can share one parsed manifest safely.
func Canonicalize(raw []byte) (Value, error) {
	v, err := Parse(raw)
	if err != nil {
		return Value{}, fmt.Errorf("sigpayload: canonicalize: %w", err)
	}
	cp := deepcopy.Copy(v)
	blankModuleURLs(&cp)
	blankSignatureValues(&cp)
	return cp, nil
}

func blankModuleURLs(root *Value) {
	modules := fieldPtr(root, "modules")
	if modules == nil || modules.Kind != KindObject {
		return
	}
	for i := range modules.Object {
		mod := &modules.Object[i].Value
		if mod.Kind != KindObject {
			continue
		}
		for j := range mod.Object {
			if mod.Object[j].Key == "url" {
				mod.Object[j].Value = Value{Kind: KindString, String: ""}
			}
		}
	}
}

func blankSignatureValues(root *Value) {
	sigs := fieldPtr(root, "signatures")
	if sigs == nil || sigs.Kind != KindObject {
		return
	}
	for i := range sigs.Object {
		sigs.Object[i].Value = Value{Kind: KindString, String: ""}
	}
}

// fieldPtr returns a pointer to the value of the named top-level member, or
// nil if root is not an object or has no such member.
func fieldPtr(root *Value, key string) *Value {
	if root.Kind != KindObject {
		return nil
	}
	for i := range root.Object {
		if root.Object[i].Key == key {
			return &root.Object[i].Value
		}
	}
	return nil
}
