// Copyright 2025 Certen Protocol
//
// Transaction request model: the seven request kinds the engine accepts,
// their canonical wire encoding, and the hash that becomes their
// TransactionReference.

package request

import (
	"crypto/sha256"
	"encoding/binary"
	"math/big"

	"github.com/mokanode/corechain/pkg/values"
)

// Kind tags the seven request variants.
type Kind byte

const (
	KindJarStoreInitial Kind = iota
	KindGameteCreation
	KindInitialization
	KindJarStore
	KindConstructorCall
	KindInstanceMethodCall
	KindStaticMethodCall
)

// Classpath is the set of jar transaction references that root a
// dependency DAG, used to build a class loader.
type Classpath struct {
	Jars []values.TransactionReference
}

// Signer carries the fields every non-initial request signs over.
type Signer struct {
	Caller    values.StorageReference
	Nonce     *big.Int
	ChainID   string
	GasLimit  *big.Int
	GasPrice  *big.Int
	Classpath Classpath
	Signature []byte // excluded from the signed bytes
}

// Request is implemented by all seven variants.
type Request interface {
	Kind() Kind
	// IsView reports whether this is a read-only call: no nonce/chain-id
	// check, no signature check, effects discarded.
	IsView() bool
	// MarshalCanonical returns the deterministic wire bytes. For
	// signable variants this is body||signature; Hash always hashes
	// exactly what MarshalCanonical returns.
	MarshalCanonical() []byte
	// SignedBytes returns the bytes a signature is computed over -
	// MarshalCanonical with the signature field itself excluded.
	SignedBytes() []byte
}

// Hash computes the TransactionReference of a request: H(body) for
// initial requests, H(body_without_signature || signature) otherwise,
// with H = SHA-256.
func Hash(r Request) values.TransactionReference {
	return sha256.Sum256(r.MarshalCanonical())
}

func bigBytes(n *big.Int) []byte {
	if n == nil {
		return []byte{0}
	}
	mag := n.Bytes()
	out := make([]byte, 0, 5+len(mag))
	out = append(out, u32(uint32(len(mag)))...)
	out = append(out, mag...)
	return out
}

func u32(n uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, n)
	return b
}

func strBytes(s string) []byte {
	out := u32(uint32(len(s)))
	return append(out, []byte(s)...)
}

func (s Signer) marshalFields() []byte {
	out := s.Caller.MarshalCanonical()
	out = append(out, bigBytes(s.Nonce)...)
	out = append(out, strBytes(s.ChainID)...)
	out = append(out, bigBytes(s.GasLimit)...)
	out = append(out, bigBytes(s.GasPrice)...)
	out = append(out, u32(uint32(len(s.Classpath.Jars)))...)
	for _, j := range s.Classpath.Jars {
		out = append(out, j[:]...)
	}
	return out
}

// JarStoreInitial installs the first jar (typically the base runtime
// library) before the node is initialized. Unsigned.
type JarStoreInitial struct {
	Jar []byte
}

func (r JarStoreInitial) Kind() Kind          { return KindJarStoreInitial }
func (r JarStoreInitial) IsView() bool        { return false }
func (r JarStoreInitial) SignedBytes() []byte { return r.MarshalCanonical() }
func (r JarStoreInitial) MarshalCanonical() []byte {
	out := []byte{byte(KindJarStoreInitial)}
	out = append(out, u32(uint32(len(r.Jar)))...)
	return append(out, r.Jar...)
}

// GameteCreation creates the distinguished bootstrap account. Unsigned.
type GameteCreation struct {
	Classpath     Classpath
	InitialAmount *big.Int
	RedAmount     *big.Int
	PublicKey     []byte
}

func (r GameteCreation) Kind() Kind          { return KindGameteCreation }
func (r GameteCreation) IsView() bool        { return false }
func (r GameteCreation) SignedBytes() []byte { return r.MarshalCanonical() }
func (r GameteCreation) MarshalCanonical() []byte {
	out := []byte{byte(KindGameteCreation)}
	out = append(out, u32(uint32(len(r.Classpath.Jars)))...)
	for _, j := range r.Classpath.Jars {
		out = append(out, j[:]...)
	}
	out = append(out, bigBytes(r.InitialAmount)...)
	out = append(out, bigBytes(r.RedAmount)...)
	out = append(out, u32(uint32(len(r.PublicKey)))...)
	return append(out, r.PublicKey...)
}

// Initialization seals the manifest reference, marking the node
// initialized. Unsigned.
type Initialization struct {
	Classpath Classpath
	Manifest  values.StorageReference
}

func (r Initialization) Kind() Kind          { return KindInitialization }
func (r Initialization) IsView() bool        { return false }
func (r Initialization) SignedBytes() []byte { return r.MarshalCanonical() }
func (r Initialization) MarshalCanonical() []byte {
	out := []byte{byte(KindInitialization)}
	for _, j := range r.Classpath.Jars {
		out = append(out, j[:]...)
	}
	return append(out, r.Manifest.MarshalCanonical()...)
}

// JarStore installs a new jar against an existing classpath, signed by a
// caller who pays for the verification/instrumentation/storage cost.
type JarStore struct {
	Signer
	Jar          []byte
	Dependencies Classpath
}

func (r JarStore) Kind() Kind   { return KindJarStore }
func (r JarStore) IsView() bool { return false }
func (r JarStore) MarshalCanonical() []byte {
	body := append([]byte{byte(KindJarStore)}, r.marshalFields()...)
	body = append(body, u32(uint32(len(r.Jar)))...)
	body = append(body, r.Jar...)
	body = append(body, u32(uint32(len(r.Dependencies.Jars)))...)
	for _, j := range r.Dependencies.Jars {
		body = append(body, j[:]...)
	}
	return append(body, r.Signature...)
}
func (r JarStore) SignedBytes() []byte {
	b := r.MarshalCanonical()
	return b[:len(b)-len(r.Signature)]
}

// ConstructorCall invokes a constructor to create a new instance.
type ConstructorCall struct {
	Signer
	ConstructorSignature string // e.g. "Wallet(BigInteger)"
	Actuals              []values.StorageValue
}

func (r ConstructorCall) Kind() Kind   { return KindConstructorCall }
func (r ConstructorCall) IsView() bool { return false }
func (r ConstructorCall) MarshalCanonical() []byte {
	body := append([]byte{byte(KindConstructorCall)}, r.marshalFields()...)
	body = append(body, strBytes(r.ConstructorSignature)...)
	body = append(body, u32(uint32(len(r.Actuals)))...)
	for _, a := range r.Actuals {
		body = append(body, a.MarshalCanonical()...)
	}
	return append(body, r.Signature...)
}
func (r ConstructorCall) SignedBytes() []byte {
	b := r.MarshalCanonical()
	return b[:len(b)-len(r.Signature)]
}

// InstanceMethodCall invokes an instance method on a receiver. View is
// true for @View methods, which skip nonce/signature/chain-id checks and
// discard their effects.
type InstanceMethodCall struct {
	Signer
	MethodSignature string
	Receiver        values.StorageReference
	Actuals         []values.StorageValue
	View            bool
}

func (r InstanceMethodCall) Kind() Kind   { return KindInstanceMethodCall }
func (r InstanceMethodCall) IsView() bool { return r.View }
func (r InstanceMethodCall) MarshalCanonical() []byte {
	body := append([]byte{byte(KindInstanceMethodCall)}, r.marshalFields()...)
	body = append(body, strBytes(r.MethodSignature)...)
	body = append(body, r.Receiver.MarshalCanonical()...)
	body = append(body, u32(uint32(len(r.Actuals)))...)
	for _, a := range r.Actuals {
		body = append(body, a.MarshalCanonical()...)
	}
	return append(body, r.Signature...)
}
func (r InstanceMethodCall) SignedBytes() []byte {
	b := r.MarshalCanonical()
	return b[:len(b)-len(r.Signature)]
}

// StaticMethodCall invokes a static method; there is no receiver.
type StaticMethodCall struct {
	Signer
	MethodSignature string
	Actuals         []values.StorageValue
	View            bool
}

func (r StaticMethodCall) Kind() Kind   { return KindStaticMethodCall }
func (r StaticMethodCall) IsView() bool { return r.View }
func (r StaticMethodCall) MarshalCanonical() []byte {
	body := append([]byte{byte(KindStaticMethodCall)}, r.marshalFields()...)
	body = append(body, strBytes(r.MethodSignature)...)
	body = append(body, u32(uint32(len(r.Actuals)))...)
	for _, a := range r.Actuals {
		body = append(body, a.MarshalCanonical()...)
	}
	return append(body, r.Signature...)
}
func (r StaticMethodCall) SignedBytes() []byte {
	b := r.MarshalCanonical()
	return b[:len(b)-len(r.Signature)]
}
