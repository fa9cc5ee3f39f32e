package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/colorfulnotion/shieldedpool/chain"
	"github.com/colorfulnotion/shieldedpool/coins"
	"github.com/colorfulnotion/shieldedpool/common"
	log "github.com/colorfulnotion/shieldedpool/log"
	"github.com/colorfulnotion/shieldedpool/merkle"
	"github.com/colorfulnotion/shieldedpool/storage"
	"github.com/colorfulnotion/shieldedpool/types"
	"github.com/colorfulnotion/shieldedpool/wallet"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// setupTracing installs an OTLP/HTTP tracer provider when an endpoint is
// configured. The returned shutdown flushes pending spans.
func setupTracing(ctx context.Context, endpoint string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", "shielded-replay"),
			attribute.String("service.version", Version),
		)),
	)
	otel.SetTracerProvider(tp)
	log.Info(log.ChainMonitoring, "Tracing enabled", "endpoint", endpoint)
	return tp.Shutdown, nil
}

func readBlocks(path string) ([]*types.Block, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read blocks %s: %w", path, err)
	}
	var blocks []*types.Block
	if err := json.Unmarshal(data, &blocks); err != nil {
		return nil, fmt.Errorf("parse blocks %s: %w", path, err)
	}
	return blocks, nil
}

type replayOptions struct {
	BlocksPath   string
	IVKSeeds     []string
	ShowTree     bool
	VerifyRescan bool
	WitnessOut   string
}

func runReplay(ctx context.Context, cfg *types.Config, opts replayOptions) (err error) {
	shutdown, err := setupTracing(ctx, cfg.TelemetryEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		if serr := shutdown(context.Background()); serr != nil && err == nil {
			err = serr
		}
	}()

	blocks, err := readBlocks(opts.BlocksPath)
	if err != nil {
		return err
	}

	store, err := storage.NewShieldedStore(cfg.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	view := coins.NewCoinViewCache(store, cfg.TreeDepth)
	best, err := view.GetBestBlock()
	if err != nil {
		return err
	}
	if !common.IsNilHash(best) {
		return fmt.Errorf("data dir %s already holds chain state at block %s; use a fresh --data-dir", cfg.DataDir, best.String_short())
	}

	keys := wallet.NewTagKeyStore()
	for _, seed := range opts.IVKSeeds {
		keys.AddKey(wallet.DeriveIncomingViewingKey([]byte(seed)))
	}
	w := wallet.NewWallet(keys, cfg)
	orch := chain.NewOrchestrator(view, chain.AcceptAllVerifier{}, chain.WithWallet(w))

	fmt.Printf("Replaying %d blocks from %s into %s\n", len(blocks), opts.BlocksPath, cfg.DataDir)
	connected, replayErr := orch.Replay(ctx, blocks)

	// whatever was connected is persisted, even after a failure
	if err := view.Flush(); err != nil {
		return err
	}
	printSummary(orch, w, connected)
	if opts.ShowTree {
		fmt.Println(w.DebugTree())
	}
	if replayErr != nil {
		return replayErr
	}
	if opts.VerifyRescan {
		if err := verifyRescan(ctx, orch, keys, cfg, w); err != nil {
			return err
		}
	}
	if opts.WitnessOut != "" {
		return writeWitnesses(w, opts.WitnessOut)
	}
	return nil
}

func writeWitnesses(w *wallet.Wallet, path string) error {
	exports, err := w.ExportWitnesses()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(exports, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write witnesses %s: %w", path, err)
	}
	fmt.Printf("Wrote %d note witnesses to %s\n", len(exports), path)
	return nil
}

// runVerifyWitnesses checks every exported witness decodes, authenticates its
// note commitment and is anchored at a root the data dir knows.
func runVerifyWitnesses(cfg *types.Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read witnesses %s: %w", path, err)
	}
	var exports []wallet.WitnessExport
	if err := json.Unmarshal(data, &exports); err != nil {
		return fmt.Errorf("parse witnesses %s: %w", path, err)
	}

	store, err := storage.NewShieldedStore(cfg.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	failed := 0
	for i := range exports {
		e := &exports[i]
		if err := e.Check(); err != nil {
			fmt.Printf("  %s %v\n", common.Colorize(common.ColorRed, "FAIL"), err)
			failed++
			continue
		}
		if _, found, err := store.GetAnchorAt(e.Root); err != nil {
			return err
		} else if !found && e.Root != merkle.EmptyRoot(cfg.TreeDepth) {
			fmt.Printf("  %s %s anchor %s unknown\n", common.Colorize(common.ColorRed, "FAIL"), e.OutPoint, e.Root)
			failed++
			continue
		}
		fmt.Printf("  %s %s pos=%d root=%s\n", common.Colorize(common.ColorGreen, "OK"), e.OutPoint, e.Position, e.Root.String_short())
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d witnesses failed verification", failed, len(exports))
	}
	fmt.Printf("Verified %d witnesses\n", len(exports))
	return nil
}

// verifyRescan rebuilds the wallet from genesis and checks it ends up in the
// state the live wallet reached.
func verifyRescan(ctx context.Context, orch *chain.Orchestrator, keys wallet.KeyStore, cfg *types.Config, live *wallet.Wallet) error {
	genesis, ok := orch.Chain().At(0)
	if !ok {
		return nil
	}
	rescanned := wallet.NewWallet(keys, cfg)
	found, err := rescanned.ScanForWalletTransactions(ctx, genesis, orch.Chain(), orch.Blocks(), orch.View(), false)
	if err != nil {
		return fmt.Errorf("rescan: %w", err)
	}
	diff, err := wallet.DiffStates(live.State(), rescanned.State())
	if err != nil {
		return err
	}
	if diff != "" {
		fmt.Println(diff)
		return fmt.Errorf("rescanned wallet differs from live wallet")
	}
	fmt.Printf("Rescan matched live wallet (%d transactions)\n", found)
	return nil
}

func printSummary(orch *chain.Orchestrator, w *wallet.Wallet, connected int) {
	fmt.Printf("\nConnected %d blocks\n", connected)
	if tip, ok := orch.Tip(); ok {
		fmt.Printf("  Tip: %s\n", tip)
	}
	anchors, nullifiers := orch.View().CacheSize()
	fmt.Printf("  Cached anchors: %d, nullifiers: %d\n", anchors, nullifiers)
	notes := w.UnspentNotes()
	fmt.Printf("  Wallet transactions: %d, unspent notes: %d, witness cache: %d\n", w.TxCount(), len(notes), w.WitnessCacheSize())
	for _, n := range notes {
		fmt.Printf("    %s pos=%d height=%d nf=%s\n", n.OutPoint, n.Position, n.WitnessHeight, n.Nullifier.Hex())
	}
}

func runInspect(cfg *types.Config) error {
	store, err := storage.NewShieldedStore(cfg.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	best, err := store.GetBestBlock()
	if err != nil {
		return err
	}
	root, ok, err := store.GetBestAnchor()
	if err != nil {
		return err
	}
	anchors, nullifiers, err := store.Counts()
	if err != nil {
		return err
	}

	fmt.Printf("Data dir: %s\n", cfg.DataDir)
	fmt.Printf("  Best block: %s\n", best)
	if ok {
		tree, found, err := store.GetAnchorAt(root)
		if err != nil {
			return err
		}
		if found {
			fmt.Printf("  Best anchor: %s (%d leaves)\n", root, tree.Size())
		} else {
			fmt.Printf("  Best anchor: %s (tree missing)\n", root)
		}
	} else {
		fmt.Printf("  Best anchor: none\n")
	}
	fmt.Printf("  Anchors: %d, spent nullifiers: %d\n", anchors, nullifiers)
	return nil
}
