package gateway

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/helioslabs/solgate/internal/extract"
	"github.com/helioslabs/solgate/internal/rpc"
	"github.com/helioslabs/solgate/internal/rpc/discovery"
	"github.com/helioslabs/solgate/internal/rpc/health"
	"github.com/helioslabs/solgate/internal/rpc/pool"
	"github.com/helioslabs/solgate/pkg/cache"
	"github.com/helioslabs/solgate/pkg/common/logger"
	"github.com/helioslabs/solgate/pkg/events"
	"github.com/helioslabs/solgate/pkg/store/extractionstore"
)

const (
	DefaultStatusTTL  = 15 * time.Second
	DefaultNodesTTL   = 120 * time.Second
	DefaultSamplesTTL = 30 * time.Second

	DefaultMaintenanceTimeout = 60 * time.Second
)

// Config wires a Gateway together. Emitter and Store are optional; a nil
// value disables that sink.
type Config struct {
	Client    rpc.ClientConfig
	AuthFor   func(endpointURL string) *rpc.AuthConfig
	Providers []discovery.Provider
	DenyHosts []string
	Quick     bool

	StatusTTL  time.Duration
	NodesTTL   time.Duration
	SamplesTTL time.Duration

	MaintenanceTimeout time.Duration

	Emitter *events.Emitter
	Store   *extractionstore.Store
}

// Gateway is the single composition point of the module: one pool, the read
// caches in front of it, and the extraction pipeline behind it. Construct one
// at startup and share it; every collaborator it holds is safe for concurrent
// use.
type Gateway struct {
	cfg  Config
	pool *pool.Pool

	statusCache  *cache.Cache[*NetworkStatus]
	nodesCache   *cache.Cache[[]rpc.ClusterNode]
	samplesCache *cache.Cache[[]rpc.PerformanceSample]
}

// NetworkStatus is the cached cluster snapshot served to callers.
type NetworkStatus struct {
	Slot         uint64 `json:"slot"`
	BlockHeight  uint64 `json:"block_height"`
	Epoch        uint64 `json:"epoch"`
	SlotIndex    uint64 `json:"slot_index"`
	SlotsInEpoch uint64 `json:"slots_in_epoch"`
	Version      string `json:"version"`
	Healthy      bool   `json:"healthy"`
}

func New(cfg Config) *Gateway {
	if cfg.StatusTTL == 0 {
		cfg.StatusTTL = DefaultStatusTTL
	}
	if cfg.NodesTTL == 0 {
		cfg.NodesTTL = DefaultNodesTTL
	}
	if cfg.SamplesTTL == 0 {
		cfg.SamplesTTL = DefaultSamplesTTL
	}
	if cfg.MaintenanceTimeout == 0 {
		cfg.MaintenanceTimeout = DefaultMaintenanceTimeout
	}

	return &Gateway{
		cfg: cfg,
		pool: pool.New(pool.Config{
			Client:  cfg.Client,
			AuthFor: cfg.AuthFor,
		}),
		statusCache:  cache.New[*NetworkStatus](cfg.StatusTTL),
		nodesCache:   cache.New[[]rpc.ClusterNode](cfg.NodesTTL),
		samplesCache: cache.New[[]rpc.PerformanceSample](cfg.SamplesTTL),
	}
}

// Initialize brings the pool up on the given endpoints.
func (g *Gateway) Initialize(ctx context.Context, urls []string) error {
	return g.pool.Initialize(ctx, urls)
}

// NetworkStatus returns a cluster snapshot, served from cache within its TTL.
// The health check failing does not fail the snapshot; it is reported in the
// Healthy field.
func (g *Gateway) NetworkStatus(ctx context.Context) (*NetworkStatus, error) {
	if status, ok := g.statusCache.Get("status"); ok {
		return status, nil
	}

	var status NetworkStatus
	err := g.pool.WithClient(ctx, func(c *rpc.Client) error {
		slot, err := c.GetSlot(ctx)
		if err != nil {
			return err
		}
		status.Slot = slot

		height, err := c.GetBlockHeight(ctx)
		if err != nil {
			return err
		}
		status.BlockHeight = height

		epoch, err := c.GetEpochInfo(ctx)
		if err != nil {
			return err
		}
		status.Epoch = epoch.Epoch
		status.SlotIndex = epoch.SlotIndex
		status.SlotsInEpoch = epoch.SlotsInEpoch

		version, err := c.GetVersion(ctx)
		if err != nil {
			return err
		}
		status.Version = version.SolanaCore

		status.Healthy = c.GetHealth(ctx) == nil
		return nil
	})
	if err != nil {
		return nil, err
	}

	g.statusCache.Set("status", &status)
	return &status, nil
}

// RPCNodes returns the cluster's gossip view of RPC-serving nodes, cached.
func (g *Gateway) RPCNodes(ctx context.Context) ([]rpc.ClusterNode, error) {
	if nodes, ok := g.nodesCache.Get("nodes"); ok {
		return nodes, nil
	}

	var nodes []rpc.ClusterNode
	err := g.pool.WithClient(ctx, func(c *rpc.Client) error {
		all, err := c.GetClusterNodes(ctx)
		if err != nil {
			return err
		}
		for _, n := range all {
			if n.RPC != "" {
				nodes = append(nodes, n)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	g.nodesCache.Set("nodes", nodes)
	return nodes, nil
}

// PerformanceSamples returns recent performance samples, cached per limit.
func (g *Gateway) PerformanceSamples(ctx context.Context, limit int) ([]rpc.PerformanceSample, error) {
	key := "samples:" + strconv.Itoa(limit)
	if samples, ok := g.samplesCache.Get(key); ok {
		return samples, nil
	}

	var samples []rpc.PerformanceSample
	err := g.pool.WithClient(ctx, func(c *rpc.Client) error {
		var err error
		samples, err = c.GetRecentPerformanceSamples(ctx, limit)
		return err
	})
	if err != nil {
		return nil, err
	}

	g.samplesCache.Set(key, samples)
	return samples, nil
}

// BlockReport is the outcome of extracting one block.
type BlockReport struct {
	Slot      uint64                              `json:"slot"`
	Blockhash string                              `json:"blockhash"`
	BlockTime int64                               `json:"block_time,omitempty"`
	Results   map[string]extract.ExtractionResult `json:"results"`
}

// ProcessBlock fetches one block through the pool, runs the full handler
// pipeline over it, and feeds the summary to the configured sinks. Sink
// failures are logged, never propagated; extraction already succeeded.
func (g *Gateway) ProcessBlock(ctx context.Context, slot uint64) (*BlockReport, error) {
	var block *rpc.Block
	err := g.pool.WithClient(ctx, func(c *rpc.Client) error {
		var err error
		block, err = c.GetBlock(ctx, slot)
		return err
	})
	if err != nil {
		return nil, err
	}

	results := extract.DefaultPipeline().ProcessBlock(&extract.Block{
		Slot:         block.Slot,
		Blockhash:    block.Blockhash,
		BlockTime:    block.BlockTime,
		Transactions: block.Transactions,
	})

	var blockTime int64
	if block.BlockTime != nil {
		blockTime = *block.BlockTime
	}
	report := &BlockReport{
		Slot:      block.Slot,
		Blockhash: block.Blockhash,
		BlockTime: blockTime,
		Results:   results,
	}
	g.sink(report)
	return report, nil
}

// ProcessBlocks walks the slot range [fromSlot, toSlot]. Skipped slots are
// normal on this chain and do not fail the range; any other error aborts.
func (g *Gateway) ProcessBlocks(ctx context.Context, fromSlot, toSlot uint64) ([]*BlockReport, error) {
	if toSlot < fromSlot {
		return nil, fmt.Errorf("invalid slot range %d..%d", fromSlot, toSlot)
	}

	reports := make([]*BlockReport, 0, toSlot-fromSlot+1)
	for slot := fromSlot; slot <= toSlot; slot++ {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		report, err := g.ProcessBlock(ctx, slot)
		if err != nil {
			if rpc.KindOf(err) == rpc.KindSlotSkipped {
				logger.Debug("slot skipped", "slot", slot)
				continue
			}
			if g.cfg.Emitter != nil {
				if emitErr := g.cfg.Emitter.EmitError(slot, err); emitErr != nil {
					logger.Warn("error event publish failed", "slot", slot, "err", emitErr)
				}
			}
			return reports, fmt.Errorf("slot %d: %w", slot, err)
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func (g *Gateway) sink(report *BlockReport) {
	if g.cfg.Emitter == nil && g.cfg.Store == nil {
		return
	}

	operations := make(map[string]int64, len(report.Results))
	handlers := make(map[string]map[string]any, len(report.Results))
	for name, res := range report.Results {
		if total, ok := res.Statistics["total_operations"].(int64); ok {
			operations[name] = total
		}
		handlers[name] = res.Statistics
	}

	if g.cfg.Emitter != nil {
		err := g.cfg.Emitter.EmitBlockSummary(&events.BlockSummary{
			Slot:       report.Slot,
			Blockhash:  report.Blockhash,
			BlockTime:  report.BlockTime,
			Operations: operations,
			Handlers:   handlers,
		})
		if err != nil {
			logger.Warn("block summary publish failed", "slot", report.Slot, "err", err)
		}
	}

	if g.cfg.Store != nil {
		err := g.cfg.Store.Put(&extractionstore.Record{
			Slot:       report.Slot,
			Blockhash:  report.Blockhash,
			BlockTime:  report.BlockTime,
			Operations: operations,
			Handlers:   handlers,
		})
		if err != nil {
			logger.Warn("block summary persist failed", "slot", report.Slot, "err", err)
		}
	}
}

// MaintainPool runs one discovery-probe-update cycle under a hard wall-clock
// cap. maxTest bounds how many candidates get probed, maxEndpoints bounds the
// working set handed to the pool. On timeout or an empty healthy set the pool
// keeps its current endpoints and the cycle reports failure.
func (g *Gateway) MaintainPool(ctx context.Context, maxTest, maxEndpoints int) error {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.MaintenanceTimeout)
	defer cancel()

	var seed *rpc.Client
	if g.pool.Initialized() {
		client, err := g.pool.Acquire(ctx)
		if err != nil {
			logger.Warn("no pool client for cluster discovery, using static sources", "err", err)
		} else {
			seed = client
			// Discovery traffic counts as a successful use.
			defer func() { g.pool.Release(client, true, 0) }()
		}
	}

	candidates := discovery.Discover(ctx, discovery.Options{
		Quick:     g.cfg.Quick,
		Seed:      seed,
		Providers: g.cfg.Providers,
		DenyHosts: g.cfg.DenyHosts,
	})
	if maxTest > 0 && len(candidates) > maxTest {
		candidates = candidates[:maxTest]
	}

	verdicts := health.ProbeAll(ctx, candidates, health.DefaultTimeout, health.DefaultConcurrency)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("maintenance cycle timed out: %w", err)
	}

	best := health.SelectTop(verdicts, maxEndpoints)
	if len(best) == 0 {
		return errors.New("maintenance cycle found no healthy endpoints")
	}

	if !g.pool.Initialized() {
		return g.pool.Initialize(ctx, best)
	}
	g.pool.UpdateEndpoints(best)
	return nil
}

// EndpointStats returns the pool detail including raw URLs.
func (g *Gateway) EndpointStats() pool.PoolStats {
	return g.pool.Stats()
}

// FilteredEndpointStats redacts API-keyed URLs for external consumption.
func (g *Gateway) FilteredEndpointStats() pool.PoolStats {
	return g.pool.FilteredStats()
}

// CacheContents reports the age of every live cache entry, for diagnostics.
func (g *Gateway) CacheContents() map[string]map[string]time.Duration {
	return map[string]map[string]time.Duration{
		"status":  g.statusCache.Ages(),
		"nodes":   g.nodesCache.Ages(),
		"samples": g.samplesCache.Ages(),
	}
}

// Close releases the pool and both optional sinks.
func (g *Gateway) Close() {
	g.pool.Close()
	if g.cfg.Emitter != nil {
		g.cfg.Emitter.Close()
	}
	if g.cfg.Store != nil {
		if err := g.cfg.Store.Close(); err != nil {
			logger.Warn("store close failed", "err", err)
		}
	}
}
