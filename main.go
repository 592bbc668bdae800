package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	dbm "github.com/cometbft/cometbft-db"
	cmtcfg "github.com/cometbft/cometbft/config"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	nm "github.com/cometbft/cometbft/node"
	"github.com/cometbft/cometbft/p2p"
	"github.com/cometbft/cometbft/privval"
	"github.com/cometbft/cometbft/proxy"
	cmthttp "github.com/cometbft/cometbft/rpc/client/http"
	cmttypes "github.com/cometbft/cometbft/types"

	"github.com/mokanode/corechain/pkg/abci"
	"github.com/mokanode/corechain/pkg/builders"
	"github.com/mokanode/corechain/pkg/cache"
	"github.com/mokanode/corechain/pkg/classloader"
	"github.com/mokanode/corechain/pkg/config"
	"github.com/mokanode/corechain/pkg/controller"
	"github.com/mokanode/corechain/pkg/kv"
	"github.com/mokanode/corechain/pkg/node"
	"github.com/mokanode/corechain/pkg/store"
)

const (
	signatureCacheSize = 1024
	loaderCacheSize    = 128
)

// acceptAllVerifier stands in until a bytecode verifier is wired in; it
// lets any jar through, which is only acceptable on a development node.
type acceptAllVerifier struct{}

func (acceptAllVerifier) Verify(jar []byte) (bool, string) { return true, "" }

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	var (
		configPath = flag.String("config", "", "Path to the node configuration file")
		dir        = flag.String("dir", "", "Node base directory (overrides the config file)")
		showHelp   = flag.Bool("help", false, "Show help message")
	)
	flag.Parse()

	if *showHelp {
		flag.Usage()
		return
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		cfg = loaded
	}
	if *dir != "" {
		cfg.Dir = *dir
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.Printf("Starting corechain node in %s (chain-id %s)", cfg.Dir, cfg.ChainID)

	db, err := dbm.NewGoLevelDB("store", filepath.Join(cfg.Dir, "store"))
	if err != nil {
		log.Fatalf("Failed to open store database: %v", err)
	}
	kvStore := kv.NewCometAdapter(db)
	defer kvStore.Close()

	head := store.Open(kvStore)

	sigCache, err := cache.NewSignatureCache(signatureCacheSize)
	if err != nil {
		log.Fatalf("Failed to build signature cache: %v", err)
	}
	loaderCache, err := cache.NewLoaderCache(loaderCacheSize)
	if err != nil {
		log.Fatalf("Failed to build loader cache: %v", err)
	}
	configCache := cache.NewConfigCache()
	configCache.Put(cache.ConfigGasPrice, cfg.InitialGasPrice.Int)

	loader := classloader.New(classloader.Config{
		MaxDependencies:                 cfg.MaxDependencies,
		MaxCumulativeSizeOfDependencies: cfg.MaxCumulativeSizeOfDependencies,
		VerificationVersion:             cfg.VerificationVersion,
	}, acceptAllVerifier{}, loaderCache)

	// The native runtime resolves and runs the system classes; classes
	// from installed jars are added to its registry by the bytecode
	// bridge once one is wired in.
	runtime := builders.NewRuntime()

	ctrl := controller.New(controller.Params{
		ChainID:                 cfg.ChainID,
		SignatureAlgorithm:      cfg.SignatureForRequests,
		BaseCPUCost:             100,
		PerByteCPUCost:          1,
		PerJarCPUCost:           50,
		PerJarRAMCost:           50,
		PerDependencyLookupCost: 10,
		StorageCostPerByte:      10,
		VerificationVersion:     cfg.VerificationVersion,
	}, loader, sigCache, configCache, runtime)

	app := abci.New(head, ctrl, nil, log.New(log.Writer(), "[abci] ", log.LstdFlags))

	cometHome := filepath.Join(cfg.Dir, "cometbft")
	cometCfg := cmtcfg.DefaultConfig()
	cometCfg.SetRoot(cometHome)
	cmtcfg.EnsureRoot(cometHome)

	pv := privval.LoadOrGenFilePV(cometCfg.PrivValidatorKeyFile(), cometCfg.PrivValidatorStateFile())
	nodeKey, err := p2p.LoadOrGenNodeKey(cometCfg.NodeKeyFile())
	if err != nil {
		log.Fatalf("Failed to load node key: %v", err)
	}
	if err := writeGenesisIfNeeded(cometCfg, cfg, pv); err != nil {
		log.Fatalf("Failed to write genesis: %v", err)
	}

	tmLogger := cmtlog.NewTMLogger(cmtlog.NewSyncWriter(os.Stdout)).With("module", "cometbft")

	cometNode, err := nm.NewNode(
		cometCfg,
		pv,
		nodeKey,
		proxy.NewLocalClientCreator(app),
		nm.DefaultGenesisDocProviderFunc(cometCfg),
		cmtcfg.DefaultDBProvider,
		nm.DefaultMetricsProvider(cometCfg.Instrumentation),
		tmLogger,
	)
	if err != nil {
		log.Fatalf("Failed to create cometbft node: %v", err)
	}

	if err := cometNode.Start(); err != nil {
		log.Fatalf("Failed to start cometbft node: %v", err)
	}
	defer func() {
		_ = cometNode.Stop()
		cometNode.Wait()
	}()

	rpcAddr := strings.Replace(cometCfg.RPC.ListenAddress, "0.0.0.0", "127.0.0.1", 1)
	rpcClient, err := cmthttp.New(rpcAddr, "/websocket")
	if err != nil {
		log.Fatalf("Failed to create rpc client: %v", err)
	}
	if err := rpcClient.Start(); err != nil {
		log.Fatalf("Failed to start rpc client: %v", err)
	}
	defer func() { _ = rpcClient.Stop() }()

	facade := node.New(app, rpcClient, node.Params{
		MaxPollingAttempts: cfg.MaxPollingAttempts,
		PollingDelay:       cfg.PollingDelay.Value(),
	})
	notifications, unsubscribe := facade.Subscribe(nil)
	defer unsubscribe()
	go func() {
		for note := range notifications {
			log.Printf("committed response %s at height %d (%d events)", note.Response, note.Height, len(note.Events))
		}
	}()

	log.Printf("Node started; rpc at %s", rpcAddr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	log.Printf("Shutting down")
}

// writeGenesisIfNeeded writes a single-validator genesis document on
// first start, so a fresh directory comes up without a separate init
// step. An existing genesis file is always left untouched.
func writeGenesisIfNeeded(cometCfg *cmtcfg.Config, cfg *config.Config, pv *privval.FilePV) error {
	genFile := cometCfg.GenesisFile()
	if _, err := os.Stat(genFile); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(genFile), 0o755); err != nil {
		return fmt.Errorf("create genesis dir: %w", err)
	}
	pubKey, err := pv.GetPubKey()
	if err != nil {
		return fmt.Errorf("get validator public key: %w", err)
	}
	doc := cmttypes.GenesisDoc{
		ChainID:         cfg.ChainID,
		GenesisTime:     cfg.GenesisTime,
		ConsensusParams: cmttypes.DefaultConsensusParams(),
		Validators: []cmttypes.GenesisValidator{{
			Address: pubKey.Address(),
			PubKey:  pubKey,
			Power:   10,
			Name:    "validator-0",
		}},
	}
	if err := doc.SaveAs(genFile); err != nil {
		return fmt.Errorf("save genesis: %w", err)
	}
	return nil
}
