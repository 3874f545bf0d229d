package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode/utf16"
)

// ID names a value or operation result inside one peer's registry.
type ID int64

// NoID is the sentinel identifier used when only peer identities are rewritten.
// Registries never hand it out.
const NoID ID = -1

// PeerID is the opaque identity of an addressable peer.
type PeerID string

// IRValue is a sealed interface representing constrained value types.
// Only IRNull, IRString, IRInt, IRBool, IRID, IRPeer, IRArray and IRObject
// implement this. There is no float type.
type IRValue interface {
	irValue() // Sealed - only these types implement it
}

// IRNull represents the inert "no value".
type IRNull struct{}

func (IRNull) irValue() {}

// MarshalJSON implements json.Marshaler for IRNull.
func (IRNull) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// IRString represents a string value in the IR.
type IRString string

func (IRString) irValue() {}

// IRInt represents a literal integer. Literals are data, never identifiers,
// so the identifier rewriter leaves them alone.
type IRInt int64

func (IRInt) irValue() {}

// IRBool represents a boolean value in the IR.
type IRBool bool

func (IRBool) irValue() {}

// IRID is an identifier reference embedded in a message.
type IRID ID

func (IRID) irValue() {}

// IRPeer is a peer identity embedded in a message.
type IRPeer PeerID

func (IRPeer) irValue() {}

// IRArray represents an ordered sequence of IRValue elements.
type IRArray []IRValue

func (IRArray) irValue() {}

// IRObject represents a map of string keys to IRValue elements.
// Use SortedKeys() for deterministic iteration.
type IRObject map[string]IRValue

func (IRObject) irValue() {}

// NewIRArray creates an IRArray from values.
func NewIRArray(vals ...IRValue) IRArray {
	return IRArray(vals)
}

// IDs converts identifiers into an IRArray of IRID.
func IDs(ids ...ID) IRArray {
	arr := make(IRArray, len(ids))
	for i, id := range ids {
		arr[i] = IRID(id)
	}
	return arr
}

// ToIDs is the inverse of IDs. Elements that are not IRID are rejected.
func ToIDs(v IRValue) ([]ID, error) {
	arr, ok := v.(IRArray)
	if !ok {
		return nil, fmt.Errorf("expected id array, got %T", v)
	}
	ids := make([]ID, len(arr))
	for i, elem := range arr {
		id, ok := elem.(IRID)
		if !ok {
			return nil, fmt.Errorf("array[%d]: expected id, got %T", i, elem)
		}
		ids[i] = ID(id)
	}
	return ids, nil
}

// IsNull reports whether v is absent or IRNull.
func IsNull(v IRValue) bool {
	if v == nil {
		return true
	}
	_, ok := v.(IRNull)
	return ok
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings uses UTF-8 which produces a different order.
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering
// as required by RFC 8785 (Canonical JSON).
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// Tagged object keys used by the JSON form of IRID and IRPeer.
const (
	jsonIDKey   = "$id"
	jsonPeerKey = "$peer"
)

// MarshalIRValue marshals an IRValue to JSON bytes.
// IRID and IRPeer become single-key tagged objects so they survive a round trip.
func MarshalIRValue(v IRValue) ([]byte, error) {
	return MarshalCanonical(v)
}

// UnmarshalIRValue deserializes JSON into an IRValue.
// Floats are rejected; null becomes IRNull.
func UnmarshalIRValue(data []byte) (IRValue, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}

	return convertToIRValue(raw)
}

// convertToIRValue recursively converts a decoded JSON value to an IRValue.
func convertToIRValue(v any) (IRValue, error) {
	switch val := v.(type) {
	case nil:
		return IRNull{}, nil
	case bool:
		return IRBool(val), nil
	case string:
		return IRString(val), nil
	case json.Number:
		n, err := parseJSONInt(val)
		if err != nil {
			return nil, err
		}
		return IRInt(n), nil
	case []any:
		arr := make(IRArray, len(val))
		for i, elem := range val {
			irElem, err := convertToIRValue(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = irElem
		}
		return arr, nil
	case map[string]any:
		if tagged, ok, err := convertTagged(val); ok || err != nil {
			return tagged, err
		}
		obj := make(IRObject, len(val))
		for k, elem := range val {
			irElem, err := convertToIRValue(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = irElem
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// convertTagged recognises the {"$id": n} and {"$peer": "p"} forms.
func convertTagged(m map[string]any) (IRValue, bool, error) {
	if len(m) != 1 {
		return nil, false, nil
	}
	if raw, ok := m[jsonIDKey]; ok {
		num, ok := raw.(json.Number)
		if !ok {
			return nil, true, fmt.Errorf("%s must be an integer, got %T", jsonIDKey, raw)
		}
		n, err := parseJSONInt(num)
		if err != nil {
			return nil, true, err
		}
		return IRID(n), true, nil
	}
	if raw, ok := m[jsonPeerKey]; ok {
		s, ok := raw.(string)
		if !ok {
			return nil, true, fmt.Errorf("%s must be a string, got %T", jsonPeerKey, raw)
		}
		return IRPeer(s), true, nil
	}
	return nil, false, nil
}

func parseJSONInt(num json.Number) (int64, error) {
	s := string(num)
	if strings.ContainsAny(s, ".eE") {
		return 0, fmt.Errorf("floats are forbidden in IR: %s", s)
	}
	n, err := num.Int64()
	if err != nil {
		return 0, fmt.Errorf("number out of int64 range: %s", s)
	}
	return n, nil
}

// FromGo converts plain Go values (as produced by YAML or CUE decoding) into
// IR values. Integers of any width are accepted; floats are not.
func FromGo(v any) (IRValue, error) {
	switch val := v.(type) {
	case nil:
		return IRNull{}, nil
	case IRValue:
		return val, nil
	case string:
		return IRString(val), nil
	case bool:
		return IRBool(val), nil
	case int:
		return IRInt(val), nil
	case int64:
		return IRInt(val), nil
	case int32:
		return IRInt(val), nil
	case uint64:
		return IRInt(int64(val)), nil
	case float64:
		if val != float64(int64(val)) {
			return nil, fmt.Errorf("floats are forbidden in IR: %v", val)
		}
		return IRInt(int64(val)), nil
	case []any:
		arr := make(IRArray, len(val))
		for i, elem := range val {
			irElem, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = irElem
		}
		return arr, nil
	case map[string]any:
		obj := make(IRObject, len(val))
		for k, elem := range val {
			irElem, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			obj[k] = irElem
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// ToGo converts an IR value into plain Go values for display and comparison.
// IRID and IRPeer keep their tagged map form.
func ToGo(v IRValue) any {
	switch val := v.(type) {
	case nil, IRNull:
		return nil
	case IRString:
		return string(val)
	case IRInt:
		return int64(val)
	case IRBool:
		return bool(val)
	case IRID:
		return map[string]any{jsonIDKey: int64(val)}
	case IRPeer:
		return map[string]any{jsonPeerKey: string(val)}
	case IRArray:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToGo(elem)
		}
		return out
	case IRObject:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = ToGo(elem)
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON implements json.Marshaler using the canonical form.
func (v IRID) MarshalJSON() ([]byte, error) { return MarshalCanonical(v) }

// MarshalJSON implements json.Marshaler using the canonical form.
func (v IRPeer) MarshalJSON() ([]byte, error) { return MarshalCanonical(v) }

// MarshalJSON implements json.Marshaler using the canonical form.
func (arr IRArray) MarshalJSON() ([]byte, error) { return MarshalCanonical(arr) }

// MarshalJSON implements json.Marshaler using the canonical form.
func (obj IRObject) MarshalJSON() ([]byte, error) { return MarshalCanonical(obj) }
