package values

// Update is an atomic change to an object: either the object's ClassTag
// (stamped once, by the creating transaction) or a single field value
// (UpdateOfField). Updates are immutable and are the only unit the store
// persists; an object's current state is the union of its updates across
// its history.
type Update interface {
	// Object is the storage reference the update applies to.
	Object() StorageReference
	// Eager reports whether this update must be replayed on every
	// deserialization (true for ClassTag and eager-field updates) or can
	// be resolved lazily on first access (false for a lazy reference
	// field's UpdateOfField).
	Eager() bool
	MarshalCanonical() []byte
}

// ClassTag stamps an object with its concrete class and the jar
// transaction it was loaded from. Every object has exactly one ClassTag,
// carried by the oldest (creating) entry of its history.
type ClassTag struct {
	Ref       StorageReference
	ClassName string
	Jar       TransactionReference
}

func (c ClassTag) Object() StorageReference { return c.Ref }
func (c ClassTag) Eager() bool              { return true }
func (c ClassTag) MarshalCanonical() []byte {
	out := []byte{'C'}
	out = append(out, c.Ref.MarshalCanonical()...)
	out = append(out, canonicalStrings(0, c.ClassName)...)
	out = append(out, c.Jar[:]...)
	return out
}

// UpdateOfField records the value assigned to one field of an object by
// the transaction that produced this update.
type UpdateOfField struct {
	Ref   StorageReference
	Field FieldSignature
	Value StorageValue
	// EagerField is true when Field.Type is a basic type or a known enum
	// class; the class loader computes this when it resolves Field.Type,
	// since StorageType alone cannot distinguish an enum from any other
	// reference type (see StorageType.IsBasic).
	EagerField bool
}

func (u UpdateOfField) Object() StorageReference { return u.Ref }
func (u UpdateOfField) Eager() bool              { return u.EagerField }
func (u UpdateOfField) MarshalCanonical() []byte {
	out := []byte{'F'}
	out = append(out, u.Ref.MarshalCanonical()...)
	out = append(out, u.Field.MarshalCanonical()...)
	out = append(out, u.Value.MarshalCanonical()...)
	return out
}
