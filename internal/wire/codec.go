package wire

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"

	"github.com/roach88/deferplan/internal/ir"
)

// Private CBOR tag numbers for the IR reference types.
const (
	TagID   uint64 = 65101
	TagPeer uint64 = 65102
)

// none is the CBOR encoding of null, the inert response.
var none = []byte{0xf6}

// None returns the encoded inert response.
func None() []byte {
	return bytes.Clone(none)
}

// IsNone reports whether data is the encoded inert response.
func IsNone(data []byte) bool {
	return bytes.Equal(data, none)
}

// Codec encodes and decodes messages and IR values.
// A Codec is immutable and safe for concurrent use.
type Codec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// New builds a codec with deterministic encoding.
func New() (*Codec, error) {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("wire: encode mode: %w", err)
	}
	dec, err := cbor.DecOptions{
		DupMapKey:      cbor.DupMapKeyEnforcedAPF,
		IntDec:         cbor.IntDecConvertSigned,
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("wire: decode mode: %w", err)
	}
	return &Codec{enc: enc, dec: dec}, nil
}

// MustNew is like New but panics on error. The options are static, so an
// error here is a programming mistake.
func MustNew() *Codec {
	c, err := New()
	if err != nil {
		panic(err)
	}
	return c
}

// Encode serializes a message envelope.
func (c *Codec) Encode(m ir.Message) ([]byte, error) {
	data, err := c.EncodeValue(m.Value())
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Kind, err)
	}
	return data, nil
}

// Decode parses a message envelope.
func (c *Codec) Decode(data []byte) (ir.Message, error) {
	v, err := c.DecodeValue(data)
	if err != nil {
		return ir.Message{}, err
	}
	m, err := ir.MessageFromValue(v)
	if err != nil {
		return ir.Message{}, fmt.Errorf("decode: %w", err)
	}
	return m, nil
}

// EncodeValue serializes a single IR value.
func (c *Codec) EncodeValue(v ir.IRValue) ([]byte, error) {
	raw, err := toCBOR(v)
	if err != nil {
		return nil, err
	}
	return c.enc.Marshal(raw)
}

// DecodeValue parses a single IR value.
func (c *Codec) DecodeValue(data []byte) (ir.IRValue, error) {
	var raw any
	if err := c.dec.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return fromCBOR(raw)
}

func toCBOR(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case nil, ir.IRNull:
		return nil, nil
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRBool:
		return bool(val), nil
	case ir.IRID:
		return cbor.Tag{Number: TagID, Content: int64(val)}, nil
	case ir.IRPeer:
		return cbor.Tag{Number: TagPeer, Content: string(val)}, nil
	case ir.IRArray:
		out := make([]any, len(val))
		for i, elem := range val {
			raw, err := toCBOR(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = raw
		}
		return out, nil
	case ir.IRObject:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			raw, err := toCBOR(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			out[k] = raw
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported IR type %T", v)
	}
}

func fromCBOR(raw any) (ir.IRValue, error) {
	switch val := raw.(type) {
	case nil:
		return ir.IRNull{}, nil
	case string:
		return ir.IRString(val), nil
	case int64:
		return ir.IRInt(val), nil
	case bool:
		return ir.IRBool(val), nil
	case []any:
		arr := make(ir.IRArray, len(val))
		for i, elem := range val {
			v, err := fromCBOR(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = v
		}
		return arr, nil
	case map[string]any:
		obj := make(ir.IRObject, len(val))
		for k, elem := range val {
			v, err := fromCBOR(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			obj[k] = v
		}
		return obj, nil
	case cbor.Tag:
		return fromTag(val)
	case float32, float64:
		return nil, fmt.Errorf("floats are forbidden in IR: %v", val)
	default:
		return nil, fmt.Errorf("unsupported CBOR type %T", raw)
	}
}

func fromTag(t cbor.Tag) (ir.IRValue, error) {
	switch t.Number {
	case TagID:
		n, ok := t.Content.(int64)
		if !ok {
			return nil, fmt.Errorf("tag %d: expected integer, got %T", t.Number, t.Content)
		}
		return ir.IRID(n), nil
	case TagPeer:
		s, ok := t.Content.(string)
		if !ok {
			return nil, fmt.Errorf("tag %d: expected string, got %T", t.Number, t.Content)
		}
		return ir.IRPeer(s), nil
	default:
		return nil, fmt.Errorf("unknown tag %d", t.Number)
	}
}
