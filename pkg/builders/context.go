// Copyright 2025 Certen Protocol

package builders

import (
	"math/big"

	"github.com/mokanode/corechain/pkg/cache"
	"github.com/mokanode/corechain/pkg/classloader"
	"github.com/mokanode/corechain/pkg/gas"
	"github.com/mokanode/corechain/pkg/sig"
	"github.com/mokanode/corechain/pkg/store"
)

// Context carries everything a builder needs to deliver one request: the
// store view it reads from, the gas/jar/signature collaborators, and the
// chain parameters a Prelude check validates against.
type Context struct {
	Store    *store.Store
	Loader   *classloader.Loader
	SigCache *cache.SignatureCache
	Executor Executor

	GasPrice *big.Int
	ChainID  string

	// BaseCPUCost is the flat per-request CPU charge; PerByteCPUCost
	// scales with the request's marshaled size;
	// PerJarCPUCost/PerJarRAMCost/PerDependencyLookupCost are charged
	// once per dependency loaded during the prelude.
	BaseCPUCost            int64
	PerByteCPUCost         int64
	PerJarCPUCost          int64
	PerJarRAMCost          int64
	PerDependencyLookupCost int64
	StorageCostPerByte     int64

	SignatureAlgorithm string

	// VerificationVersion stamps newly stored jars with the node's
	// current bytecode-verifier rule set.
	VerificationVersion int
}

// newMeter builds a gas.Meter for one request's gasLimit at ctx's price.
func (ctx *Context) newMeter(gasLimit *big.Int) *gas.Meter {
	return gas.New(gasLimit, ctx.GasPrice)
}

func (ctx *Context) algorithm() (sig.Algorithm, error) {
	return sig.Lookup(ctx.SignatureAlgorithm)
}
