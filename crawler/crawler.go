// Package crawler walks block heights and indexes their miner ids
package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsv-blockchain/go-sdk/transaction"
	"github.com/tonicpow/go-minerid/chain"
	"github.com/tonicpow/go-minerid/identity"
	"github.com/tonicpow/go-minerid/minerid"
	"go.uber.org/zap"
)

// Source supplies coinbase transactions by height
type Source interface {
	BestHeight(ctx context.Context) (int32, error)
	Coinbase(ctx context.Context, height int32) (*transaction.Transaction, error)
}

// Crawler fetches coinbases, extracts miner ids and records them
type Crawler struct {
	source   Source
	scanner  *minerid.Scanner
	registry *identity.Registry
	log      *zap.Logger
	workers  int
}

// New returns a crawler fetching with up to workers concurrent requests
func New(source Source, scanner *minerid.Scanner, registry *identity.Registry, log *zap.Logger, workers int) *Crawler {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Crawler{source: source, scanner: scanner, registry: registry, log: log, workers: workers}
}

type blockResult struct {
	done    bool
	minerID *minerid.MinerID
	err     error
}

// Sync processes heights from..to inclusive. Blocks are fetched in
// parallel but recorded in height order; on the first failure it returns
// the last height recorded and the error. No new fetches start above a
// failed height.
func (c *Crawler) Sync(ctx context.Context, from, to int32) (int32, error) {
	if to < from {
		return from - 1, nil
	}
	crawlStart := time.Now()

	feedCtx, stopFeed := context.WithCancel(ctx)
	defer stopFeed()

	var (
		mu     sync.Mutex
		failed = to + 1
	)
	skip := func(h int32) bool {
		mu.Lock()
		defer mu.Unlock()
		return h > failed
	}

	results := make([]blockResult, int(to-from)+1)
	heights := make(chan int32)
	var wg sync.WaitGroup
	for w := 0; w < c.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for h := range heights {
				if skip(h) {
					continue
				}
				res := c.scanHeight(ctx, h)
				if res.err != nil {
					mu.Lock()
					if h < failed {
						failed = h
					}
					mu.Unlock()
					stopFeed()
				}
				results[h-from] = res
			}
		}()
	}
feed:
	for h := from; h <= to; h++ {
		select {
		case heights <- h:
		case <-feedCtx.Done():
			break feed
		}
	}
	close(heights)
	wg.Wait()

	last := from - 1
	found := 0
	for i, res := range results {
		h := from + int32(i)
		if !res.done {
			break
		}
		if res.err != nil {
			return last, fmt.Errorf("height %d: %w", h, res.err)
		}
		if res.minerID != nil {
			c.registry.Record(h, res.minerID)
			found++
		}
		last = h
	}
	if err := ctx.Err(); err != nil && last < to {
		return last, err
	}

	c.log.Info("sync complete",
		zap.Int32("from", from),
		zap.Int32("to", last),
		zap.Int("minerIds", found),
		zap.Duration("elapsed", time.Since(crawlStart)),
	)
	return last, nil
}

func (c *Crawler) scanHeight(ctx context.Context, height int32) blockResult {
	if err := ctx.Err(); err != nil {
		return blockResult{}
	}
	tx, err := c.source.Coinbase(ctx, height)
	if err != nil {
		return blockResult{done: true, err: err}
	}
	m, ok := c.scanner.Find(tx, height)
	if !ok {
		c.log.Debug("no miner id", zap.Int32("height", height), zap.String("txid", tx.TxID().String()))
		return blockResult{done: true}
	}
	return blockResult{done: true, minerID: m}
}

// BatchSize is the number of blocks synced between registry updates
const BatchSize int32 = 100

// Run syncs from height up to the tip, then polls for new blocks every
// interval until ctx is done
func (c *Crawler) Run(ctx context.Context, from int32, interval time.Duration) error {
	next := from
	for {
		next = c.catchUp(ctx, next)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// catchUp syncs in batches until the tip or the first error and returns
// the next height to process
func (c *Crawler) catchUp(ctx context.Context, next int32) int32 {
	tip, err := c.source.BestHeight(ctx)
	if err != nil {
		c.log.Warn("fetch chain tip", zap.Error(err))
		return next
	}
	if tip < next {
		c.log.Debug("everything up-to-date", zap.Int32("height", next-1))
		return next
	}
	last, err := c.SyncBatched(ctx, next, tip)
	if err != nil && !errors.Is(err, context.Canceled) {
		c.log.Warn("sync stopped", zap.Int32("height", last+1), zap.Error(err))
	}
	return last + 1
}

// SyncBatched runs Sync over from..to in chunks of BatchSize, stopping at
// the first error
func (c *Crawler) SyncBatched(ctx context.Context, from, to int32) (int32, error) {
	last := from - 1
	for next := from; next <= to; next = last + 1 {
		end := min(next+BatchSize-1, to)
		var err error
		if last, err = c.Sync(ctx, next, end); err != nil {
			return last, err
		}
	}
	return last, nil
}

var _ Source = (*chain.Client)(nil)
