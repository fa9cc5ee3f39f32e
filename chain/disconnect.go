package chain

import (
	"context"
	"fmt"

	"github.com/colorfulnotion/shieldedpool/common"
	"github.com/colorfulnotion/shieldedpool/log"
	"github.com/colorfulnotion/shieldedpool/poolerrors"
	"github.com/colorfulnotion/shieldedpool/types"
)

// DisconnectBlock undoes ConnectBlock for block, which must be the view's
// best block: its nullifiers become unspent, the best anchor returns to
// prevRoot (nil before genesis) and the best block to block's parent.
func (o *Orchestrator) DisconnectBlock(ctx context.Context, block *types.Block, prevRoot *common.FieldHash) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.disconnectBlock(ctx, block, prevRoot)
}

func (o *Orchestrator) disconnectBlock(ctx context.Context, block *types.Block, prevRoot *common.FieldHash) (err error) {
	_, span := o.startSpan(ctx, "DisconnectBlock", block)
	defer func() { endSpan(span, err) }()

	best, err := o.view.GetBestBlock()
	if err != nil {
		return err
	}
	if hash := block.Hash(); hash != best {
		return fmt.Errorf("%w: block %s, best %s", poolerrors.ErrBNotTip, hash.String_short(), best.String_short())
	}

	for i := len(block.Transactions) - 1; i >= 0; i-- {
		o.view.SetNullifiers(&block.Transactions[i], false)
	}
	if err := o.view.PopAnchor(prevRoot); err != nil {
		return err
	}
	o.view.SetBestBlock(block.Header.PrevHash)
	log.Debug(log.ChainMonitoring, "DisconnectBlock", "height", block.Height(), "hash", block.Hash().String_short(), "spends", block.SpendCount())
	return nil
}

// DisconnectTip disconnects the last block of the active chain and rewinds
// the wallet. ErrWRollbackTooDeep from the wallet leaves the chain
// disconnected; the wallet must then be rescanned.
func (o *Orchestrator) DisconnectTip(ctx context.Context) (err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	tip, ok := o.chain.Tip()
	if !ok {
		return poolerrors.ErrBNoTip
	}
	block, err := o.blocks.ReadBlock(tip)
	if err != nil {
		return err
	}
	ctx, span := o.startSpan(ctx, "DisconnectTip", block)
	defer func() { endSpan(span, err) }()

	var prevRoot *common.FieldHash
	if prev, ok := o.chain.Prev(tip); ok {
		root := prev.FinalSaplingRoot
		prevRoot = &root
	}
	if err := o.disconnectBlock(ctx, block, prevRoot); err != nil {
		return err
	}
	o.chain.pop()

	if o.wallet != nil {
		if err := o.notifyWallet(ctx, tip, block, nil, false); err != nil {
			return err
		}
	}
	log.Info(log.ChainMonitoring, "Disconnected tip", "height", tip.Height, "hash", tip.Hash.String_short())
	return nil
}

// Replay connects blocks in order, stopping at the first error or when ctx
// is cancelled. ctx is only checked between blocks.
func (o *Orchestrator) Replay(ctx context.Context, blocks []*types.Block) (int, error) {
	for i, b := range blocks {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if err := o.ConnectTip(ctx, b); err != nil {
			return i, fmt.Errorf("block %d: %w", b.Height(), err)
		}
	}
	return len(blocks), nil
}

// Tip returns the active chain tip.
func (o *Orchestrator) Tip() (*types.BlockIndex, bool) {
	return o.chain.Tip()
}
