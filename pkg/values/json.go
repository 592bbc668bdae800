// Copyright 2025 Certen Protocol
//
// JSON envelopes for the StorageValue and Update interfaces, needed
// because encoding/json cannot round-trip an interface-typed field
// without an explicit tag telling it which concrete type to rebuild.

package values

import (
	"encoding/json"
	"fmt"
	"math/big"
)

type valueEnvelope struct {
	Kind Kind            `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// EncodeValue serializes a single StorageValue for storage.
func EncodeValue(v StorageValue) (json.RawMessage, error) {
	var data any
	switch t := v.(type) {
	case NullValue:
		data = struct{}{}
	case BooleanValue, ByteValue, CharValue, ShortValue, IntValue, LongValue, FloatValue, DoubleValue:
		data = t
	case BigIntegerValue:
		s := "0"
		if t.V != nil {
			s = t.V.String()
		}
		data = s
	case StringValue:
		// Encoded as bytes (base64) so strings that are not valid UTF-8,
		// such as raw public keys, survive the round trip unchanged.
		data = []byte(t)
	case EnumValue:
		data = t
	case StorageReference:
		data = t
	default:
		return nil, fmt.Errorf("encoding storage value: unsupported type %T", v)
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encoding storage value: %w", err)
	}
	env, err := json.Marshal(valueEnvelope{Kind: v.Kind(), Data: payload})
	if err != nil {
		return nil, fmt.Errorf("encoding storage value envelope: %w", err)
	}
	return env, nil
}

// DecodeValue reconstructs a StorageValue previously written by EncodeValue.
func DecodeValue(raw json.RawMessage) (StorageValue, error) {
	var env valueEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decoding storage value envelope: %w", err)
	}
	switch env.Kind {
	case KindNull:
		return NullValue{}, nil
	case KindBoolean:
		var v BooleanValue
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case KindByte:
		var v ByteValue
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case KindChar:
		var v CharValue
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case KindShort:
		var v ShortValue
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case KindInt:
		var v IntValue
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case KindLong:
		var v LongValue
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case KindFloat:
		var v FloatValue
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case KindDouble:
		var v DoubleValue
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case KindBigInteger:
		var s string
		if err := json.Unmarshal(env.Data, &s); err != nil {
			return nil, fmt.Errorf("decoding big integer: %w", err)
		}
		n, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, fmt.Errorf("decoding big integer: invalid literal %q", s)
		}
		return BigIntegerValue{V: n}, nil
	case KindString:
		var v []byte
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, err
		}
		return StringValue(v), nil
	case KindEnum:
		var v EnumValue
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case KindStorageReference:
		var v StorageReference
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("decoding storage value: unknown kind %d", env.Kind)
	}
}

// EncodeValues and DecodeValues handle the []StorageValue slices that
// appear in constructor/method actuals.
func EncodeValues(vs []StorageValue) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, len(vs))
	for i, v := range vs {
		raw, err := EncodeValue(v)
		if err != nil {
			return nil, err
		}
		out[i] = raw
	}
	return out, nil
}

func DecodeValues(raws []json.RawMessage) ([]StorageValue, error) {
	out := make([]StorageValue, len(raws))
	for i, raw := range raws {
		v, err := DecodeValue(raw)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

type updateEnvelope struct {
	IsClassTag bool            `json:"isClassTag"`
	Data       json.RawMessage `json:"data"`
}

type updateOfFieldWire struct {
	Ref        StorageReference `json:"ref"`
	Field      FieldSignature   `json:"field"`
	Value      json.RawMessage  `json:"value"`
	EagerField bool             `json:"eagerField"`
}

// EncodeUpdate/DecodeUpdate round-trip the Update interface the same way.
func EncodeUpdate(u Update) (json.RawMessage, error) {
	switch t := u.(type) {
	case ClassTag:
		payload, err := json.Marshal(t)
		if err != nil {
			return nil, fmt.Errorf("encoding class tag: %w", err)
		}
		return json.Marshal(updateEnvelope{IsClassTag: true, Data: payload})
	case UpdateOfField:
		val, err := EncodeValue(t.Value)
		if err != nil {
			return nil, err
		}
		payload, err := json.Marshal(updateOfFieldWire{Ref: t.Ref, Field: t.Field, Value: val, EagerField: t.EagerField})
		if err != nil {
			return nil, fmt.Errorf("encoding field update: %w", err)
		}
		return json.Marshal(updateEnvelope{IsClassTag: false, Data: payload})
	default:
		return nil, fmt.Errorf("encoding update: unsupported type %T", u)
	}
}

func DecodeUpdate(raw json.RawMessage) (Update, error) {
	var env updateEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decoding update envelope: %w", err)
	}
	if env.IsClassTag {
		var c ClassTag
		if err := json.Unmarshal(env.Data, &c); err != nil {
			return nil, fmt.Errorf("decoding class tag: %w", err)
		}
		return c, nil
	}
	var wire updateOfFieldWire
	if err := json.Unmarshal(env.Data, &wire); err != nil {
		return nil, fmt.Errorf("decoding field update: %w", err)
	}
	val, err := DecodeValue(wire.Value)
	if err != nil {
		return nil, err
	}
	return UpdateOfField{Ref: wire.Ref, Field: wire.Field, Value: val, EagerField: wire.EagerField}, nil
}

func EncodeUpdates(us []Update) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, len(us))
	for i, u := range us {
		raw, err := EncodeUpdate(u)
		if err != nil {
			return nil, err
		}
		out[i] = raw
	}
	return out, nil
}

func DecodeUpdates(raws []json.RawMessage) ([]Update, error) {
	out := make([]Update, len(raws))
	for i, raw := range raws {
		u, err := DecodeUpdate(raw)
		if err != nil {
			return nil, err
		}
		out[i] = u
	}
	return out, nil
}
