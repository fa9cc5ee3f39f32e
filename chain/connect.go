package chain

import (
	"context"
	"fmt"
	"sync"

	"github.com/colorfulnotion/shieldedpool/coins"
	"github.com/colorfulnotion/shieldedpool/common"
	"github.com/colorfulnotion/shieldedpool/log"
	"github.com/colorfulnotion/shieldedpool/merkle"
	"github.com/colorfulnotion/shieldedpool/poolerrors"
	"github.com/colorfulnotion/shieldedpool/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/colorfulnotion/shieldedpool/chain"

// WalletNotifier receives every connected and disconnected block. ChainTip
// must replay the block's outputs into tree when added is set.
type WalletNotifier interface {
	SyncBlock(block *types.Block) int
	ChainTip(index *types.BlockIndex, block *types.Block, tree *merkle.CommitmentTree, added bool) error
}

// Orchestrator applies blocks to the coin view in order and notifies the
// wallet. All connects and disconnects are serialized.
type Orchestrator struct {
	mu       sync.Mutex
	view     *coins.CoinViewCache
	chain    *ActiveChain
	blocks   BlockStore
	verifier ProofVerifier
	wallet   WalletNotifier
	tracer   trace.Tracer
}

type Option func(*Orchestrator)

func WithWallet(w WalletNotifier) Option {
	return func(o *Orchestrator) { o.wallet = w }
}

func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

func WithBlockStore(s BlockStore) Option {
	return func(o *Orchestrator) { o.blocks = s }
}

// NewOrchestrator drives view. A nil verifier only admits blocks without
// shielded data.
func NewOrchestrator(view *coins.CoinViewCache, verifier ProofVerifier, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		view:     view,
		chain:    NewActiveChain(),
		blocks:   NewMemoryBlockStore(),
		verifier: verifier,
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) Chain() *ActiveChain {
	return o.chain
}

func (o *Orchestrator) View() *coins.CoinViewCache {
	return o.view
}

func (o *Orchestrator) Blocks() BlockStore {
	return o.blocks
}

func (o *Orchestrator) startSpan(ctx context.Context, name string, block *types.Block) (context.Context, trace.Span) {
	return o.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.Int64("block.height", int64(block.Height())),
		attribute.String("block.hash", block.Hash().Hex()),
		attribute.Int("block.txs", len(block.Transactions)),
		attribute.Int("block.outputs", block.OutputCount()),
		attribute.Int("block.spends", block.SpendCount()),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, poolerrors.GetErrorName(err))
	}
	span.End()
}

// ConnectBlock validates block against the view and, only if every check
// passes, marks its nullifiers spent, commits the advanced tree as the new
// best anchor and moves the best block. It returns the resulting index and
// a snapshot of the tree before the block.
func (o *Orchestrator) ConnectBlock(ctx context.Context, block *types.Block) (*types.BlockIndex, *merkle.CommitmentTree, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.connectBlock(ctx, block, false)
}

// connectBlock validates and applies block. With persist set the block is
// written to the block store after validation and before any view mutation,
// so a failed write leaves the view untouched.
func (o *Orchestrator) connectBlock(ctx context.Context, block *types.Block, persist bool) (index *types.BlockIndex, pre *merkle.CommitmentTree, err error) {
	_, span := o.startSpan(ctx, "ConnectBlock", block)
	defer func() { endSpan(span, err) }()

	height := block.Height()
	if want := uint64(o.chain.Len()); height != want {
		return nil, nil, fmt.Errorf("%w: block %d, expected %d", poolerrors.ErrBHeightMismatch, height, want)
	}
	best, err := o.view.GetBestBlock()
	if err != nil {
		return nil, nil, err
	}
	if block.Header.PrevHash != best {
		return nil, nil, fmt.Errorf("%w: prev %s, best %s", poolerrors.ErrBPrevHashMismatch, block.Header.PrevHash.String_short(), best.String_short())
	}

	seen := make(map[common.Nullifier]int)
	for i := range block.Transactions {
		tx := &block.Transactions[i]
		if err := CheckTransaction(tx); err != nil {
			return nil, nil, fmt.Errorf("tx %d: %w", i, err)
		}
		if err := ContextualCheckTransaction(tx, o.verifier); err != nil {
			return nil, nil, fmt.Errorf("tx %d: %w", i, err)
		}
		for _, s := range tx.ShieldedSpends {
			if first, dup := seen[s.Nullifier]; dup {
				return nil, nil, fmt.Errorf("%w: txs %d and %d reveal %s", poolerrors.ErrNDuplicateInBlock, first, i, s.Nullifier)
			}
			seen[s.Nullifier] = i
		}
		if err := o.view.CheckShieldedRequirements(tx); err != nil {
			return nil, nil, fmt.Errorf("tx %d: %w", i, err)
		}
	}

	pre, err = o.preBlockTree(height)
	if err != nil {
		return nil, nil, err
	}
	if outputs := uint64(block.OutputCount()); pre.Size()+outputs > pre.Capacity() {
		return nil, nil, fmt.Errorf("%w: %d leaves, block adds %d, capacity %d", poolerrors.ErrTTreeFull, pre.Size(), outputs, pre.Capacity())
	}
	post := pre.Clone()
	for i := range block.Transactions {
		for _, cm := range block.Transactions[i].Commitments() {
			if err := post.Append(cm); err != nil {
				return nil, nil, err
			}
		}
	}
	root := post.Root()
	if want := block.Header.FinalSaplingRoot; !want.IsZero() && want != root {
		return nil, nil, fmt.Errorf("%w: header %s, computed %s", poolerrors.ErrBRootMismatch, want, root)
	}
	if persist {
		if err := o.blocks.WriteBlock(block); err != nil {
			return nil, nil, fmt.Errorf("write block %d: %w", height, err)
		}
	}

	for i := range block.Transactions {
		o.view.SetNullifiers(&block.Transactions[i], true)
	}
	o.view.PushAnchor(post)
	o.view.SetBestBlock(block.Hash())

	index = &types.BlockIndex{
		Height:           height,
		Hash:             block.Hash(),
		PrevHash:         block.Header.PrevHash,
		FinalSaplingRoot: root,
	}
	log.Debug(log.ChainMonitoring, "ConnectBlock", "height", height, "hash", index.Hash.String_short(), "outputs", block.OutputCount(), "spends", block.SpendCount(), "root", root.String_short())
	return index, pre, nil
}

// preBlockTree resolves the tree at the view's best anchor. Only the genesis
// block may start without one.
func (o *Orchestrator) preBlockTree(height uint64) (*merkle.CommitmentTree, error) {
	root, ok, err := o.view.GetBestAnchor()
	if err != nil {
		return nil, err
	}
	if !ok {
		if height != 0 {
			return nil, fmt.Errorf("%w: no best anchor below block %d", poolerrors.ErrABestAnchorMissing, height)
		}
		return merkle.NewCommitmentTree(o.view.TreeDepth())
	}
	tree, found, err := o.view.GetAnchorAt(root)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", poolerrors.ErrABestAnchorMissing, root)
	}
	return tree, nil
}

// ConnectTip connects block on top of the active chain and has the wallet
// replay it. A wallet error leaves the chain connected; the wallet must then
// be rescanned.
func (o *Orchestrator) ConnectTip(ctx context.Context, block *types.Block) (err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	ctx, span := o.startSpan(ctx, "ConnectTip", block)
	defer func() { endSpan(span, err) }()

	index, pre, err := o.connectBlock(ctx, block, true)
	if err != nil {
		return err
	}
	o.chain.push(index)

	if o.wallet != nil {
		if err := o.notifyWallet(ctx, index, block, pre, true); err != nil {
			return err
		}
		if replayed := pre.Root(); replayed != index.FinalSaplingRoot {
			return fmt.Errorf("%w: block %d wallet %s, consensus %s", poolerrors.ErrBWalletDiverged, index.Height, replayed, index.FinalSaplingRoot)
		}
	}
	log.Info(log.ChainMonitoring, "Connected tip", "height", index.Height, "hash", index.Hash.String_short(), "root", index.FinalSaplingRoot.String_short())
	return nil
}

func (o *Orchestrator) notifyWallet(ctx context.Context, index *types.BlockIndex, block *types.Block, tree *merkle.CommitmentTree, added bool) (err error) {
	_, span := o.startSpan(ctx, "Wallet.ChainTip", block)
	span.SetAttributes(attribute.Bool("added", added))
	defer func() { endSpan(span, err) }()

	if added {
		o.wallet.SyncBlock(block)
	}
	return o.wallet.ChainTip(index, block, tree, added)
}
