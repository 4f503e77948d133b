package vm

import (
	"fmt"
	"strings"
)

// Serialized VM values carry a one-byte type tag. The admission pipeline and
// the query facade never decode full values (the codec is the VM's); they
// only sniff tags to type-check call arguments and to wrap map lookups in an
// optional.
const (
	TagInt               byte = 0x00
	TagUInt              byte = 0x01
	TagBuffer            byte = 0x02
	TagBoolTrue          byte = 0x03
	TagBoolFalse         byte = 0x04
	TagPrincipalStandard byte = 0x05
	TagPrincipalContract byte = 0x06
	TagResponseOk        byte = 0x07
	TagResponseErr       byte = 0x08
	TagOptionalNone      byte = 0x09
	TagOptionalSome      byte = 0x0a
	TagList              byte = 0x0b
	TagTuple             byte = 0x0c
	TagStringASCII       byte = 0x0d
	TagStringUTF8        byte = 0x0e
)

// None returns the serialized empty optional.
func None() []byte {
	return []byte{TagOptionalNone}
}

// WrapSome wraps a serialized value in an optional.
func WrapSome(value []byte) []byte {
	out := make([]byte, 0, len(value)+1)
	out = append(out, TagOptionalSome)
	return append(out, value...)
}

// UnwrapOptional splits a serialized optional into presence and payload.
func UnwrapOptional(value []byte) (payload []byte, present bool, err error) {
	if len(value) == 0 {
		return nil, false, fmt.Errorf("empty value")
	}
	switch value[0] {
	case TagOptionalNone:
		return nil, false, nil
	case TagOptionalSome:
		return value[1:], true, nil
	default:
		return nil, false, fmt.Errorf("value is not an optional (tag 0x%02x)", value[0])
	}
}

// MatchesType reports whether a serialized value's tag is compatible with a
// declared interface type such as "uint128", "principal" or
// "(optional ...)". Composite payloads are not inspected beyond the tag;
// declared types this sniffer does not understand are accepted and left to
// the VM's own checker.
func MatchesType(declared string, value []byte) bool {
	if len(value) == 0 {
		return false
	}
	tag := value[0]
	decl := strings.TrimSpace(strings.ToLower(declared))
	decl = strings.TrimPrefix(decl, "(")
	switch {
	case decl == "uint128" || decl == "uint":
		return tag == TagUInt
	case decl == "int128" || decl == "int":
		return tag == TagInt
	case decl == "bool":
		return tag == TagBoolTrue || tag == TagBoolFalse
	case decl == "principal" || strings.HasPrefix(decl, "trait_reference"):
		return tag == TagPrincipalStandard || tag == TagPrincipalContract
	case strings.HasPrefix(decl, "buff"):
		return tag == TagBuffer
	case strings.HasPrefix(decl, "string-ascii"):
		return tag == TagStringASCII
	case strings.HasPrefix(decl, "string-utf8"):
		return tag == TagStringUTF8
	case strings.HasPrefix(decl, "optional"):
		return tag == TagOptionalNone || tag == TagOptionalSome
	case strings.HasPrefix(decl, "response"):
		return tag == TagResponseOk || tag == TagResponseErr
	case strings.HasPrefix(decl, "list"):
		return tag == TagList
	case strings.HasPrefix(decl, "tuple"):
		return tag == TagTuple
	default:
		return true
	}
}
