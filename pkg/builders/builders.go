// Copyright 2025 Certen Protocol
//
// Build dispatches a request to its builder by concrete type. No
// polymorphic Builder objects are needed since Go's type switch already
// gives exhaustive, compile-checked dispatch over the seven known kinds.

package builders

import (
	"fmt"

	"github.com/mokanode/corechain/pkg/request"
	"github.com/mokanode/corechain/pkg/response"
)

// Build runs the appropriate builder for req's concrete type.
func Build(ctx *Context, req request.Request) (response.Response, error) {
	switch r := req.(type) {
	case request.JarStoreInitial:
		return BuildJarStoreInitial(ctx, r)
	case request.GameteCreation:
		return BuildGameteCreation(ctx, r)
	case request.Initialization:
		return BuildInitialization(ctx, r)
	case request.JarStore:
		return BuildJarStore(ctx, r)
	case request.ConstructorCall:
		return BuildConstructorCall(ctx, r)
	case request.InstanceMethodCall:
		return BuildInstanceMethodCall(ctx, r)
	case request.StaticMethodCall:
		return BuildStaticMethodCall(ctx, r)
	default:
		return nil, fmt.Errorf("builders: unrecognized request type %T", req)
	}
}
