// Copyright 2025 Certen Protocol
//
// Object serialization and deserialization. An object's current field
// values are never stored directly, only the ordered chain of updates
// that produced them; reconstructing an object means walking its history
// oldest-to-newest and folding each Update into a field map. This
// package is the read-side counterpart of pkg/store's history
// bookkeeping.

package serialize

import (
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/mokanode/corechain/pkg/store"
	"github.com/mokanode/corechain/pkg/values"
)

// ErrNoSuchObject is returned when an object's history is empty - it was
// never created, or was pruned by a GC sweep that ran past its retention
// window.
var ErrNoSuchObject = errors.New("serialize: no such object")

// ErrIllegalArgument is returned by Serialize for values of a class it
// has no storage representation for.
var ErrIllegalArgument = errors.New("serialize: value has no storage representation")

// Serialize maps an in-memory value to its storage value: storage
// objects become their storage reference, primitives and strings and
// big integers become the corresponding typed value, nil becomes the
// distinguished null. Anything else is an illegal argument.
func Serialize(v any) (values.StorageValue, error) {
	switch t := v.(type) {
	case nil:
		return values.NullValue{}, nil
	case values.StorageValue:
		return t, nil
	case *Object:
		return t.Ref, nil
	case bool:
		return values.BooleanValue(t), nil
	case int8:
		return values.ByteValue(byte(t)), nil
	case byte:
		return values.ByteValue(t), nil
	case uint16:
		return values.CharValue(t), nil
	case int16:
		return values.ShortValue(t), nil
	case int32:
		return values.IntValue(t), nil
	case int64:
		return values.LongValue(t), nil
	case int:
		return values.LongValue(int64(t)), nil
	case float32:
		return values.FloatValue(t), nil
	case float64:
		return values.DoubleValue(t), nil
	case *big.Int:
		return values.BigIntegerValue{V: t}, nil
	case string:
		return values.StringValue(t), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrIllegalArgument, v)
	}
}

// Object is a storage object's reconstructed in-memory form: its class
// tag plus the latest value of every field an update has ever touched.
type Object struct {
	Ref       values.StorageReference
	ClassName string
	Jar       values.TransactionReference
	Fields    map[values.FieldSignature]values.StorageValue
}

// Deserialize reconstructs obj's current state by replaying its full
// history against s. History is stored newest-first (pkg/store), so
// replay proceeds from the end of the slice to the front: earlier
// snapshots, the class tag, then progressively later field updates, each
// overwriting anything an older update wrote to the same field.
func Deserialize(s *store.Store, obj values.StorageReference) (*Object, error) {
	history, err := s.GetHistory(obj)
	if err != nil {
		return nil, fmt.Errorf("reading history for %s: %w", obj, err)
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchObject, obj)
	}

	result := &Object{Ref: obj, Fields: make(map[values.FieldSignature]values.StorageValue)}
	sawClassTag := false

	for i := len(history) - 1; i >= 0; i-- {
		ref := history[i]
		resp, err := s.GetResponse(ref)
		if err != nil {
			return nil, fmt.Errorf("reading response %s for object %s: %w", ref, obj, err)
		}
		for _, upd := range resp.Updates() {
			if upd.Object() != obj {
				continue
			}
			switch u := upd.(type) {
			case values.ClassTag:
				result.ClassName = u.ClassName
				result.Jar = u.Jar
				sawClassTag = true
			case values.UpdateOfField:
				result.Fields[u.Field] = u.Value
			default:
				return nil, fmt.Errorf("serialize: unrecognized update kind %T for object %s", upd, obj)
			}
		}
	}

	if !sawClassTag {
		return nil, fmt.Errorf("serialize: object %s has field updates but no class tag in its history", obj)
	}
	return result, nil
}

// FieldOrder returns obj.Fields' signatures sorted superclass-first, then
// by field name, then by type name - a deterministic ordering for
// wherever fields are iterated for hashing or display, since Go map
// iteration order is randomized.
func (o *Object) FieldOrder(classHierarchy func(className string) []string) []values.FieldSignature {
	depth := make(map[string]int)
	if classHierarchy != nil {
		for i, c := range classHierarchy(o.ClassName) {
			depth[c] = i
		}
	}

	sigs := make([]values.FieldSignature, 0, len(o.Fields))
	for sig := range o.Fields {
		sigs = append(sigs, sig)
	}

	sort.Slice(sigs, func(i, j int) bool {
		a, b := sigs[i], sigs[j]
		da, aok := depth[a.DefiningClass]
		db, bok := depth[b.DefiningClass]
		if aok && bok && da != db {
			return da < db
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Type.String() < b.Type.String()
	})
	return sigs
}
