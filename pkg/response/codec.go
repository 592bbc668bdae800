// Copyright 2025 Certen Protocol
//
// JSON envelope for persisting a Response in the store's responses trie.
// Updates and StorageValues go through values.Encode/Decode since
// encoding/json cannot rebuild an interface-typed field on its own.

package response

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/mokanode/corechain/pkg/request"
	"github.com/mokanode/corechain/pkg/values"
)

type variant byte

const (
	variantJarStoreInitial variant = iota
	variantGameteCreation
	variantInitialization
	variantJarStore
	variantConstructorCall
	variantMethodCall
)

type envelope struct {
	Variant variant         `json:"variant"`
	Payload json.RawMessage `json:"payload"`
}

type baseWire struct {
	Updates []json.RawMessage         `json:"updates"`
	Events  []values.StorageReference `json:"events"`
	Gas     gasWire                   `json:"gas"`
}

type gasWire struct {
	CPU     string `json:"cpu"`
	RAM     string `json:"ram"`
	Storage string `json:"storage"`
	Penalty string `json:"penalty"`
}

func toBaseWire(b base) (baseWire, error) {
	upds, err := values.EncodeUpdates(b.Upds)
	if err != nil {
		return baseWire{}, err
	}
	g := b.GasUs
	return baseWire{
		Updates: upds,
		Events:  b.Evts,
		Gas: gasWire{
			CPU: strOrZero(g.CPU), RAM: strOrZero(g.RAM),
			Storage: strOrZero(g.Storage), Penalty: strOrZero(g.Penalty),
		},
	}, nil
}

func strOrZero(n *big.Int) string {
	if n == nil {
		return "0"
	}
	return n.String()
}

func parseBig(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return big.NewInt(0)
	}
	return n
}

func fromBaseWire(w baseWire) (base, error) {
	upds, err := values.DecodeUpdates(w.Updates)
	if err != nil {
		return base{}, err
	}
	return base{
		Upds: upds,
		Evts: w.Events,
		GasUs: GasConsumed{
			CPU: parseBig(w.Gas.CPU), RAM: parseBig(w.Gas.RAM),
			Storage: parseBig(w.Gas.Storage), Penalty: parseBig(w.Gas.Penalty),
		},
	}, nil
}

func Encode(r Response) ([]byte, error) {
	var v variant
	var payload []byte
	var err error

	switch t := r.(type) {
	case JarStoreInitialResponse:
		v = variantJarStoreInitial
		var bw baseWire
		if bw, err = toBaseWire(t.base); err == nil {
			payload, err = json.Marshal(struct {
				Base                baseWire         `json:"base"`
				InstrumentedJar     []byte           `json:"instrumentedJar"`
				Dependencies        request.Classpath `json:"dependencies"`
				VerificationVersion int              `json:"verificationVersion"`
			}{bw, t.InstrumentedJar, t.Dependencies, t.VerificationVersion})
		}
	case GameteCreationResponse:
		v = variantGameteCreation
		var bw baseWire
		if bw, err = toBaseWire(t.base); err == nil {
			payload, err = json.Marshal(struct {
				Base   baseWire                `json:"base"`
				Gamete values.StorageReference `json:"gamete"`
			}{bw, t.Gamete})
		}
	case InitializationResponse:
		v = variantInitialization
		var bw baseWire
		if bw, err = toBaseWire(t.base); err == nil {
			payload, err = json.Marshal(struct {
				Base baseWire `json:"base"`
			}{bw})
		}
	case JarStoreResponse:
		v = variantJarStore
		var bw baseWire
		if bw, err = toBaseWire(t.base); err == nil {
			payload, err = json.Marshal(struct {
				Base                baseWire          `json:"base"`
				Out                 Outcome           `json:"out"`
				InstrumentedJar     []byte            `json:"instrumentedJar"`
				Dependencies        request.Classpath `json:"dependencies"`
				VerificationVersion int               `json:"verificationVersion"`
				FailureClass        string            `json:"failureClass"`
				FailureMessage      string            `json:"failureMessage"`
			}{bw, t.Out, t.InstrumentedJar, t.Dependencies, t.VerificationVersion, t.FailureClass, t.FailureMessage})
		}
	case ConstructorCallResponse:
		v = variantConstructorCall
		var bw baseWire
		if bw, err = toBaseWire(t.base); err == nil {
			payload, err = json.Marshal(struct {
				Base           baseWire                `json:"base"`
				Out            Outcome                 `json:"out"`
				NewObject      values.StorageReference `json:"newObject"`
				ExceptionClass string                  `json:"exceptionClass"`
				ExceptionMsg   string                  `json:"exceptionMsg"`
				FailureClass   string                  `json:"failureClass"`
				FailureMsg     string                  `json:"failureMsg"`
			}{bw, t.Out, t.NewObject, t.ExceptionClass, t.ExceptionMsg, t.FailureClass, t.FailureMsg})
		}
	case MethodCallResponse:
		v = variantMethodCall
		var bw baseWire
		if bw, err = toBaseWire(t.base); err == nil {
			var result json.RawMessage
			if t.Result != nil {
				result, err = values.EncodeValue(t.Result)
			}
			if err == nil {
				payload, err = json.Marshal(struct {
					Base           baseWire        `json:"base"`
					Out            Outcome         `json:"out"`
					Result         json.RawMessage `json:"result"`
					ExceptionClass string          `json:"exceptionClass"`
					ExceptionMsg   string          `json:"exceptionMsg"`
					FailureClass   string          `json:"failureClass"`
					FailureMsg     string          `json:"failureMsg"`
				}{bw, t.Out, result, t.ExceptionClass, t.ExceptionMsg, t.FailureClass, t.FailureMsg})
			}
		}
	default:
		return nil, fmt.Errorf("encoding response: unknown type %T", r)
	}
	if err != nil {
		return nil, fmt.Errorf("encoding response: %w", err)
	}
	return json.Marshal(envelope{Variant: v, Payload: payload})
}

func Decode(data []byte) (Response, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding response envelope: %w", err)
	}
	switch env.Variant {
	case variantJarStoreInitial:
		var w struct {
			Base                baseWire          `json:"base"`
			InstrumentedJar     []byte            `json:"instrumentedJar"`
			Dependencies        request.Classpath `json:"dependencies"`
			VerificationVersion int               `json:"verificationVersion"`
		}
		if err := json.Unmarshal(env.Payload, &w); err != nil {
			return nil, err
		}
		b, err := fromBaseWire(w.Base)
		if err != nil {
			return nil, err
		}
		return JarStoreInitialResponse{base: b, InstrumentedJar: w.InstrumentedJar, Dependencies: w.Dependencies, VerificationVersion: w.VerificationVersion}, nil
	case variantGameteCreation:
		var w struct {
			Base   baseWire                `json:"base"`
			Gamete values.StorageReference `json:"gamete"`
		}
		if err := json.Unmarshal(env.Payload, &w); err != nil {
			return nil, err
		}
		b, err := fromBaseWire(w.Base)
		if err != nil {
			return nil, err
		}
		return GameteCreationResponse{base: b, Gamete: w.Gamete}, nil
	case variantInitialization:
		var w struct {
			Base baseWire `json:"base"`
		}
		if err := json.Unmarshal(env.Payload, &w); err != nil {
			return nil, err
		}
		b, err := fromBaseWire(w.Base)
		if err != nil {
			return nil, err
		}
		return InitializationResponse{base: b}, nil
	case variantJarStore:
		var w struct {
			Base                baseWire          `json:"base"`
			Out                 Outcome           `json:"out"`
			InstrumentedJar     []byte            `json:"instrumentedJar"`
			Dependencies        request.Classpath `json:"dependencies"`
			VerificationVersion int               `json:"verificationVersion"`
			FailureClass        string            `json:"failureClass"`
			FailureMessage      string            `json:"failureMessage"`
		}
		if err := json.Unmarshal(env.Payload, &w); err != nil {
			return nil, err
		}
		b, err := fromBaseWire(w.Base)
		if err != nil {
			return nil, err
		}
		return JarStoreResponse{
			base: b, Out: w.Out, InstrumentedJar: w.InstrumentedJar, Dependencies: w.Dependencies,
			VerificationVersion: w.VerificationVersion, FailureClass: w.FailureClass, FailureMessage: w.FailureMessage,
		}, nil
	case variantConstructorCall:
		var w struct {
			Base           baseWire                `json:"base"`
			Out            Outcome                 `json:"out"`
			NewObject      values.StorageReference `json:"newObject"`
			ExceptionClass string                  `json:"exceptionClass"`
			ExceptionMsg   string                  `json:"exceptionMsg"`
			FailureClass   string                  `json:"failureClass"`
			FailureMsg     string                  `json:"failureMsg"`
		}
		if err := json.Unmarshal(env.Payload, &w); err != nil {
			return nil, err
		}
		b, err := fromBaseWire(w.Base)
		if err != nil {
			return nil, err
		}
		return ConstructorCallResponse{
			base: b, Out: w.Out, NewObject: w.NewObject, ExceptionClass: w.ExceptionClass,
			ExceptionMsg: w.ExceptionMsg, FailureClass: w.FailureClass, FailureMsg: w.FailureMsg,
		}, nil
	case variantMethodCall:
		var w struct {
			Base           baseWire        `json:"base"`
			Out            Outcome         `json:"out"`
			Result         json.RawMessage `json:"result"`
			ExceptionClass string          `json:"exceptionClass"`
			ExceptionMsg   string          `json:"exceptionMsg"`
			FailureClass   string          `json:"failureClass"`
			FailureMsg     string          `json:"failureMsg"`
		}
		if err := json.Unmarshal(env.Payload, &w); err != nil {
			return nil, err
		}
		b, err := fromBaseWire(w.Base)
		if err != nil {
			return nil, err
		}
		var result values.StorageValue
		if len(w.Result) > 0 && string(w.Result) != "null" {
			result, err = values.DecodeValue(w.Result)
			if err != nil {
				return nil, err
			}
		}
		return MethodCallResponse{
			base: b, Out: w.Out, Result: result, ExceptionClass: w.ExceptionClass,
			ExceptionMsg: w.ExceptionMsg, FailureClass: w.FailureClass, FailureMsg: w.FailureMsg,
		}, nil
	default:
		return nil, fmt.Errorf("decoding response: unknown variant %d", env.Variant)
	}
}
