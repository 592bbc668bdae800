// Copyright 2025 Certen Protocol
//
// JSON envelope for persisting a Request in the store's requests trie.
// The canonical byte form used for hashing/signing lives in
// MarshalCanonical; this envelope is the engine's own storage format and
// has no cross-implementation determinism requirement. Actuals
// (StorageValue) go through values.Encode/DecodeValues since encoding/json
// cannot rebuild an interface-typed field on its own.

package request

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/mokanode/corechain/pkg/values"
)

type envelope struct {
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

type signerWire struct {
	Caller    values.StorageReference       `json:"caller"`
	Nonce     string                        `json:"nonce"`
	ChainID   string                        `json:"chainId"`
	GasLimit  string                        `json:"gasLimit"`
	GasPrice  string                        `json:"gasPrice"`
	Classpath Classpath                     `json:"classpath"`
	Signature []byte                        `json:"signature"`
}

func bigToStr(n *big.Int) string {
	if n == nil {
		return "0"
	}
	return n.String()
}

// Encode serializes r for storage.
func Encode(r Request) ([]byte, error) {
	var payload []byte
	var err error
	switch t := r.(type) {
	case JarStoreInitial:
		payload, err = json.Marshal(t)
	case GameteCreation:
		payload, err = json.Marshal(t)
	case Initialization:
		payload, err = json.Marshal(t)
	case JarStore:
		payload, err = marshalSignedRequest(t.Signer, struct {
			Jar          []byte    `json:"jar"`
			Dependencies Classpath `json:"dependencies"`
		}{t.Jar, t.Dependencies})
	case ConstructorCall:
		var actuals []json.RawMessage
		actuals, err = values.EncodeValues(t.Actuals)
		if err != nil {
			return nil, err
		}
		payload, err = marshalSignedRequest(t.Signer, struct {
			ConstructorSignature string            `json:"constructorSignature"`
			Actuals              []json.RawMessage `json:"actuals"`
		}{t.ConstructorSignature, actuals})
	case InstanceMethodCall:
		var actuals []json.RawMessage
		actuals, err = values.EncodeValues(t.Actuals)
		if err != nil {
			return nil, err
		}
		payload, err = marshalSignedRequest(t.Signer, struct {
			MethodSignature string                   `json:"methodSignature"`
			Receiver        values.StorageReference  `json:"receiver"`
			Actuals         []json.RawMessage        `json:"actuals"`
			View            bool                     `json:"view"`
		}{t.MethodSignature, t.Receiver, actuals, t.View})
	case StaticMethodCall:
		var actuals []json.RawMessage
		actuals, err = values.EncodeValues(t.Actuals)
		if err != nil {
			return nil, err
		}
		payload, err = marshalSignedRequest(t.Signer, struct {
			MethodSignature string            `json:"methodSignature"`
			Actuals         []json.RawMessage `json:"actuals"`
			View            bool              `json:"view"`
		}{t.MethodSignature, actuals, t.View})
	default:
		return nil, fmt.Errorf("encoding request: unsupported type %T", r)
	}
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	return json.Marshal(envelope{Kind: r.Kind(), Payload: payload})
}

func marshalSignedRequest(s Signer, extra any) ([]byte, error) {
	sw := signerWire{
		Caller: s.Caller, Nonce: bigToStr(s.Nonce), ChainID: s.ChainID,
		GasLimit: bigToStr(s.GasLimit), GasPrice: bigToStr(s.GasPrice),
		Classpath: s.Classpath, Signature: s.Signature,
	}
	extraRaw, err := json.Marshal(extra)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Signer signerWire      `json:"signer"`
		Extra  json.RawMessage `json:"extra"`
	}{sw, extraRaw})
}

// Decode reconstructs a Request previously written by Encode.
func Decode(data []byte) (Request, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding request envelope: %w", err)
	}
	switch env.Kind {
	case KindJarStoreInitial:
		var r JarStoreInitial
		if err := json.Unmarshal(env.Payload, &r); err != nil {
			return nil, fmt.Errorf("decoding jar store initial: %w", err)
		}
		return r, nil
	case KindGameteCreation:
		var r GameteCreation
		if err := json.Unmarshal(env.Payload, &r); err != nil {
			return nil, fmt.Errorf("decoding gamete creation: %w", err)
		}
		return r, nil
	case KindInitialization:
		var r Initialization
		if err := json.Unmarshal(env.Payload, &r); err != nil {
			return nil, fmt.Errorf("decoding initialization: %w", err)
		}
		return r, nil
	case KindJarStore:
		var signed struct {
			Signer signerWire      `json:"signer"`
			Extra  json.RawMessage `json:"extra"`
		}
		if err := json.Unmarshal(env.Payload, &signed); err != nil {
			return nil, fmt.Errorf("decoding jar store: %w", err)
		}
		var extra struct {
			Jar          []byte    `json:"jar"`
			Dependencies Classpath `json:"dependencies"`
		}
		if err := json.Unmarshal(signed.Extra, &extra); err != nil {
			return nil, fmt.Errorf("decoding jar store extra: %w", err)
		}
		return JarStore{Signer: signerFromWire(signed.Signer), Jar: extra.Jar, Dependencies: extra.Dependencies}, nil
	case KindConstructorCall:
		var signed struct {
			Signer signerWire      `json:"signer"`
			Extra  json.RawMessage `json:"extra"`
		}
		if err := json.Unmarshal(env.Payload, &signed); err != nil {
			return nil, fmt.Errorf("decoding constructor call: %w", err)
		}
		var extra struct {
			ConstructorSignature string            `json:"constructorSignature"`
			Actuals              []json.RawMessage `json:"actuals"`
		}
		if err := json.Unmarshal(signed.Extra, &extra); err != nil {
			return nil, fmt.Errorf("decoding constructor call extra: %w", err)
		}
		actuals, err := values.DecodeValues(extra.Actuals)
		if err != nil {
			return nil, err
		}
		return ConstructorCall{Signer: signerFromWire(signed.Signer), ConstructorSignature: extra.ConstructorSignature, Actuals: actuals}, nil
	case KindInstanceMethodCall:
		var signed struct {
			Signer signerWire      `json:"signer"`
			Extra  json.RawMessage `json:"extra"`
		}
		if err := json.Unmarshal(env.Payload, &signed); err != nil {
			return nil, fmt.Errorf("decoding instance method call: %w", err)
		}
		var extra struct {
			MethodSignature string                  `json:"methodSignature"`
			Receiver        values.StorageReference `json:"receiver"`
			Actuals         []json.RawMessage       `json:"actuals"`
			View            bool                    `json:"view"`
		}
		if err := json.Unmarshal(signed.Extra, &extra); err != nil {
			return nil, fmt.Errorf("decoding instance method call extra: %w", err)
		}
		actuals, err := values.DecodeValues(extra.Actuals)
		if err != nil {
			return nil, err
		}
		return InstanceMethodCall{
			Signer: signerFromWire(signed.Signer), MethodSignature: extra.MethodSignature,
			Receiver: extra.Receiver, Actuals: actuals, View: extra.View,
		}, nil
	case KindStaticMethodCall:
		var signed struct {
			Signer signerWire      `json:"signer"`
			Extra  json.RawMessage `json:"extra"`
		}
		if err := json.Unmarshal(env.Payload, &signed); err != nil {
			return nil, fmt.Errorf("decoding static method call: %w", err)
		}
		var extra struct {
			MethodSignature string            `json:"methodSignature"`
			Actuals         []json.RawMessage `json:"actuals"`
			View            bool              `json:"view"`
		}
		if err := json.Unmarshal(signed.Extra, &extra); err != nil {
			return nil, fmt.Errorf("decoding static method call extra: %w", err)
		}
		actuals, err := values.DecodeValues(extra.Actuals)
		if err != nil {
			return nil, err
		}
		return StaticMethodCall{Signer: signerFromWire(signed.Signer), MethodSignature: extra.MethodSignature, Actuals: actuals, View: extra.View}, nil
	default:
		return nil, fmt.Errorf("decoding request: unknown kind %d", env.Kind)
	}
}

func parseBig(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return big.NewInt(0)
	}
	return n
}

func signerFromWire(w signerWire) Signer {
	return Signer{
		Caller: w.Caller, Nonce: parseBig(w.Nonce), ChainID: w.ChainID,
		GasLimit: parseBig(w.GasLimit), GasPrice: parseBig(w.GasPrice),
		Classpath: w.Classpath, Signature: w.Signature,
	}
}
