package values

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// TransactionReference is the 32-byte content hash of a request. It is
// totally ordered by its hash bytes, which is all a history needs to stay
// deterministic across implementations.
type TransactionReference [32]byte

func (r TransactionReference) String() string { return hex.EncodeToString(r[:]) }

// Compare orders two references by hash bytes, lexicographically.
func (r TransactionReference) Compare(other TransactionReference) int {
	for i := range r {
		if r[i] != other[i] {
			if r[i] < other[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func (r TransactionReference) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *TransactionReference) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("decoding transaction reference: %w", err)
	}
	if len(b) != 32 {
		return fmt.Errorf("transaction reference must be 32 bytes, got %d", len(b))
	}
	copy(r[:], b)
	return nil
}

// StorageReference identifies an object in the store: the transaction that
// created it plus its progressive ordinal within that transaction's
// created objects (0, 1, 2, ... contiguous per creator).
type StorageReference struct {
	Creator     TransactionReference
	Progressive uint64
}

func (s StorageReference) String() string {
	return fmt.Sprintf("%s#%d", s.Creator, s.Progressive)
}

func (s StorageReference) Kind() Kind { return KindStorageReference }

func (s StorageReference) MarshalCanonical() []byte {
	b := make([]byte, 1+32+8)
	b[0] = byte(KindStorageReference)
	copy(b[1:33], s.Creator[:])
	binary.BigEndian.PutUint64(b[33:], s.Progressive)
	return b
}

// StorageType names the declared type of a field: either a primitive/
// String/BigInteger/Enum "basic" type or a fully-qualified class type for
// reference fields.
type StorageType struct {
	Name string // e.g. "int", "java.lang.String", or a class name
}

func (t StorageType) String() string { return t.Name }

// IsBasic reports whether this type is one of the built-in eager kinds
// (primitive/String/BigInteger). Enum types are also eager but are not
// distinguishable from a plain class type by name alone; the class loader,
// which knows every class's kind, is the one that decides eagerness for
// reference-shaped types and stamps it onto the Update it produces.
func (t StorageType) IsBasic() bool {
	switch t.Name {
	case "boolean", "byte", "char", "short", "int", "long", "float", "double",
		"java.math.BigInteger", "java.lang.String":
		return true
	}
	return false
}

// FieldSignature identifies a field of a class by its declaring class,
// name, and declared type.
type FieldSignature struct {
	DefiningClass string
	Name          string
	Type          StorageType
}

func (f FieldSignature) String() string {
	return fmt.Sprintf("%s.%s:%s", f.DefiningClass, f.Name, f.Type)
}

func (f FieldSignature) MarshalCanonical() []byte {
	return canonicalStrings(0, f.DefiningClass, f.Name, f.Type.Name)
}
