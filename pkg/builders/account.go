// Copyright 2025 Certen Protocol
//
// The fixed, well-known fields every externally-owned account carries:
// balance, red balance, nonce, publicKey. These are ordinary
// UpdateOfField entries on a io.certen.lang.ExternallyOwnedAccount-class
// object; this file is the only place that names the field signatures,
// the same way pkg/store centralizes its infoKey* constants.

package builders

import (
	"math/big"

	"github.com/mokanode/corechain/pkg/gas"
	"github.com/mokanode/corechain/pkg/serialize"
	"github.com/mokanode/corechain/pkg/values"
)

const eoaClassName = "io.certen.lang.ExternallyOwnedAccount"

// isExternallyOwned reports whether className names an account class a
// transaction is allowed to be signed by - a plain externally-owned
// account or the distinguished gamete created at genesis, which behaves
// as an externally-owned account in every respect but its creation. Any
// other class, including a plain Contract, is never a valid caller: the
// prelude rejects it before a single field is read off it.
func isExternallyOwned(className string) bool {
	return className == eoaClassName || className == gameteClassName
}

var (
	fieldBalance    = values.FieldSignature{DefiningClass: eoaClassName, Name: "balance", Type: values.StorageType{Name: "java.math.BigInteger"}}
	fieldRedBalance = values.FieldSignature{DefiningClass: eoaClassName, Name: "redBalance", Type: values.StorageType{Name: "java.math.BigInteger"}}
	fieldNonce      = values.FieldSignature{DefiningClass: eoaClassName, Name: "nonce", Type: values.StorageType{Name: "java.math.BigInteger"}}
	fieldPublicKey  = values.FieldSignature{DefiningClass: eoaClassName, Name: "publicKey", Type: values.StorageType{Name: "java.lang.String"}}
)

// accountView adapts a deserialized account object to gas.Account and
// exposes the other well-known fields builders need in the prelude.
type accountView struct {
	obj *serialize.Object
}

func newAccountView(obj *serialize.Object) *accountView { return &accountView{obj: obj} }

func bigFieldOrZero(obj *serialize.Object, f values.FieldSignature) *big.Int {
	v, ok := obj.Fields[f]
	if !ok {
		return big.NewInt(0)
	}
	bi, ok := v.(values.BigIntegerValue)
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(bi.V)
}

func (a *accountView) GreenBalance() *big.Int { return bigFieldOrZero(a.obj, fieldBalance) }
func (a *accountView) RedBalance() *big.Int   { return bigFieldOrZero(a.obj, fieldRedBalance) }

func (a *accountView) SetGreenBalance(v *big.Int) {
	a.obj.Fields[fieldBalance] = values.BigIntegerValue{V: v}
}
func (a *accountView) SetRedBalance(v *big.Int) {
	a.obj.Fields[fieldRedBalance] = values.BigIntegerValue{V: v}
}

func (a *accountView) Nonce() *big.Int { return bigFieldOrZero(a.obj, fieldNonce) }

func (a *accountView) PublicKey() string {
	v, ok := a.obj.Fields[fieldPublicKey]
	if !ok {
		return ""
	}
	sv, ok := v.(values.StringValue)
	if !ok {
		return ""
	}
	return string(sv)
}

// balanceUpdates returns the UpdateOfField entries needed to persist
// whatever the prelude/postlude mutated on this account view (balance,
// red balance, nonce), to be appended to the response's update set.
func (a *accountView) balanceUpdates(ref values.StorageReference) []values.Update {
	return []values.Update{
		values.UpdateOfField{Ref: ref, Field: fieldBalance, Value: values.BigIntegerValue{V: a.GreenBalance()}, EagerField: true},
		values.UpdateOfField{Ref: ref, Field: fieldRedBalance, Value: values.BigIntegerValue{V: a.RedBalance()}, EagerField: true},
		values.UpdateOfField{Ref: ref, Field: fieldNonce, Value: values.BigIntegerValue{V: a.Nonce()}, EagerField: true},
	}
}

func (a *accountView) bumpNonce() {
	a.obj.Fields[fieldNonce] = values.BigIntegerValue{V: new(big.Int).Add(a.Nonce(), big.NewInt(1))}
}

var _ gas.Account = (*accountView)(nil)
