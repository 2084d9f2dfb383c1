package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/callmux/callmux/types"
)

// Recorder receives pool observability events. Satisfied by the engine's
// metrics collector; may be nil.
type Recorder interface {
	RecordPoolAcquisition(kind, tier string)
	RecordPoolExhausted(kind string)
	RecordPoolSizes(kind string, warm, affinity int)
}

// Config configures a pool of one handle kind.
type Config struct {
	// Kind of handle this pool supplies.
	Kind Kind `yaml:"kind" json:"kind"`

	// WarmTarget is the number of idle pre-built handles the pool keeps.
	WarmTarget int `yaml:"warm_target" json:"warm_target"`

	// MaxWarm caps the warm queue; recycled handles beyond it are destroyed.
	MaxWarm int `yaml:"max_warm" json:"max_warm"`

	// AffinityTTL is the inactivity window after which a session-bound handle
	// is recycled into the general pool.
	AffinityTTL time.Duration `yaml:"affinity_ttl" json:"affinity_ttl"`

	// AcquireTimeout bounds acquisition when the caller passes no timeout.
	AcquireTimeout time.Duration `yaml:"acquire_timeout" json:"acquire_timeout"`

	// ReplenishInterval is how often the background task tops up the warm
	// queue and sweeps expired affinity entries.
	ReplenishInterval time.Duration `yaml:"replenish_interval" json:"replenish_interval"`

	// ColdRate limits cold constructions per second; zero means unlimited.
	ColdRate  float64 `yaml:"cold_rate" json:"cold_rate"`
	ColdBurst int     `yaml:"cold_burst" json:"cold_burst"`
}

// DefaultConfig returns pool defaults for the given kind.
func DefaultConfig(kind Kind) Config {
	return Config{
		Kind:              kind,
		WarmTarget:        4,
		MaxWarm:           16,
		AffinityTTL:       90 * time.Second,
		AcquireTimeout:    2 * time.Second,
		ReplenishInterval: 500 * time.Millisecond,
	}
}

// Pool is a tiered resource pool. Its warm queue and session-affinity cache
// are the only state shared across calls; all mutation goes through acquire
// and release under the pool mutex. Client use itself is never serialized.
type Pool struct {
	cfg      Config
	factory  Factory
	logger   *zap.Logger
	recorder Recorder
	limiter  *rate.Limiter

	mu       sync.Mutex
	warm     []*Resource
	affinity map[string]*Resource
	prepared bool
	closed   bool

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a pool. The factory is invoked for warm-up and cold
// construction; recorder may be nil.
func New(cfg Config, factory Factory, recorder Recorder, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxWarm <= 0 {
		cfg.MaxWarm = DefaultConfig(cfg.Kind).MaxWarm
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = DefaultConfig(cfg.Kind).AcquireTimeout
	}
	if cfg.ReplenishInterval <= 0 {
		cfg.ReplenishInterval = DefaultConfig(cfg.Kind).ReplenishInterval
	}
	var limiter *rate.Limiter
	if cfg.ColdRate > 0 {
		burst := cfg.ColdBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.ColdRate), burst)
	}
	return &Pool{
		cfg:      cfg,
		factory:  factory,
		logger:   logger.With(zap.String("component", "resource_pool"), zap.String("kind", string(cfg.Kind))),
		recorder: recorder,
		limiter:  limiter,
		affinity: make(map[string]*Resource),
		done:     make(chan struct{}),
	}
}

// Prepare pre-constructs warmSize idle handles and, if requested, starts the
// background replenisher. Idempotent; safe to call once at process start.
func (p *Pool) Prepare(ctx context.Context, warmSize int, backgroundWarmup bool) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return types.NewError(types.ErrPoolClosed, "prepare on closed pool")
	}
	if p.prepared {
		p.mu.Unlock()
		return nil
	}
	p.prepared = true
	if warmSize > 0 {
		p.cfg.WarmTarget = warmSize
	}
	p.mu.Unlock()

	for i := 0; i < warmSize; i++ {
		client, err := p.factory(ctx, p.cfg.Kind)
		if err != nil {
			return fmt.Errorf("warm-up construction %d/%d: %w", i+1, warmSize, err)
		}
		p.mu.Lock()
		p.warm = append(p.warm, newResource(client, p.cfg.Kind, TierWarm, ""))
		p.mu.Unlock()
	}
	p.logger.Info("pool prepared",
		zap.Int("warm_size", warmSize),
		zap.Bool("background_warmup", backgroundWarmup))

	if backgroundWarmup {
		p.wg.Add(1)
		go p.replenish()
	}
	p.recordSizes()
	return nil
}

// AcquireForSession checks out a handle for the session, preferring the
// dedicated tier. The returned tier reports how the handle was obtained.
func (p *Pool) AcquireForSession(ctx context.Context, sessionID string, timeout time.Duration) (*Resource, Tier, error) {
	return p.acquire(ctx, sessionID, timeout)
}

// Acquire checks out an anonymous handle with no session affinity.
func (p *Pool) Acquire(ctx context.Context, timeout time.Duration) (*Resource, Tier, error) {
	return p.acquire(ctx, "", timeout)
}

func (p *Pool) acquire(ctx context.Context, sessionID string, timeout time.Duration) (*Resource, Tier, error) {
	if timeout <= 0 {
		timeout = p.cfg.AcquireTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stale []Client

	// Tier 1: dedicated. Zero wait; a broken or expired handle falls through.
	if sessionID != "" {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, "", types.NewError(types.ErrPoolClosed, "acquire on closed pool")
		}
		res, ok := p.affinity[sessionID]
		if ok {
			delete(p.affinity, sessionID)
		}
		p.mu.Unlock()
		if ok {
			if res.healthy() && !p.expired(res) {
				res.Tier = TierDedicated
				res.LastUsedAt = time.Now()
				p.record(TierDedicated)
				return res, TierDedicated, nil
			}
			stale = append(stale, res.client)
		}
	}
	// Closure so handles appended by the warm loop below are included.
	defer func() { closeAll(stale) }()

	// Tier 2: warm. Pop until a healthy handle is found.
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, "", types.NewError(types.ErrPoolClosed, "acquire on closed pool")
		}
		if len(p.warm) == 0 {
			p.mu.Unlock()
			break
		}
		res := p.warm[0]
		p.warm = p.warm[1:]
		p.mu.Unlock()

		if !res.healthy() {
			stale = append(stale, res.client)
			continue
		}
		res.Tier = TierWarm
		res.OwnerSession = sessionID
		res.LastUsedAt = time.Now()
		p.record(TierWarm)
		p.recordSizes()
		return res, TierWarm, nil
	}

	// Tier 3: cold. Bounded by the acquire timeout; a construction failure is
	// exhaustion, not retried here.
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			p.recordExhausted()
			return nil, "", types.NewError(types.ErrPoolExhausted, "timed out waiting for cold construction slot").
				WithRetryable(true).WithCause(err)
		}
	}
	client, err := p.factory(ctx, p.cfg.Kind)
	if err != nil {
		p.recordExhausted()
		return nil, "", types.NewError(types.ErrPoolExhausted, "cold construction failed").
			WithRetryable(true).WithCause(err)
	}
	if ctx.Err() != nil {
		_ = client.Close()
		p.recordExhausted()
		return nil, "", types.NewError(types.ErrPoolExhausted, "acquire timeout elapsed").
			WithRetryable(true).WithCause(ctx.Err())
	}
	res := newResource(client, p.cfg.Kind, TierCold, sessionID)
	p.record(TierCold)
	return res, TierCold, nil
}

// ReleaseForSession returns the handle to the session-affinity cache so a
// subsequent turn by the same session acquires it at tier dedicated.
func (p *Pool) ReleaseForSession(sessionID string, res *Resource) {
	if res == nil {
		return
	}
	res.OwnerSession = sessionID
	res.LastUsedAt = time.Now()

	var stale []Client
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = res.client.Close()
		return
	}
	if old, ok := p.affinity[sessionID]; ok && old != res {
		p.recycleLocked(old, &stale)
	}
	p.affinity[sessionID] = res
	p.mu.Unlock()

	closeAll(stale)
	p.recordSizes()
}

// Release returns an anonymous handle to the warm queue, or destroys it when
// the queue is full or the handle is unhealthy.
func (p *Pool) Release(res *Resource) {
	if res == nil {
		return
	}
	res.OwnerSession = ""
	res.LastUsedAt = time.Now()

	var stale []Client
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = res.client.Close()
		return
	}
	p.recycleLocked(res, &stale)
	p.mu.Unlock()

	closeAll(stale)
	p.recordSizes()
}

// EndSession releases any handle held via session affinity back to the
// general pool when a call is torn down. The handle is reused or expires
// naturally; it is not destroyed.
func (p *Pool) EndSession(sessionID string) {
	var stale []Client
	p.mu.Lock()
	res, ok := p.affinity[sessionID]
	if ok {
		delete(p.affinity, sessionID)
		res.OwnerSession = ""
		p.recycleLocked(res, &stale)
	}
	p.mu.Unlock()

	closeAll(stale)
	if ok {
		p.recordSizes()
	}
}

// Stats reports current queue and cache sizes.
func (p *Pool) Stats() (warm, affinity int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.warm), len(p.affinity)
}

// Close stops the replenisher and destroys all idle handles. Handles checked
// out at close time are destroyed when released.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	warm := p.warm
	p.warm = nil
	affinity := p.affinity
	p.affinity = make(map[string]*Resource)
	p.mu.Unlock()

	close(p.done)
	p.wg.Wait()

	for _, res := range warm {
		_ = res.client.Close()
	}
	for _, res := range affinity {
		_ = res.client.Close()
	}
	p.logger.Info("pool closed",
		zap.Int("warm_destroyed", len(warm)),
		zap.Int("affinity_destroyed", len(affinity)))
	return nil
}

// replenish is the background warm-up task: it tops up the warm queue to the
// target and sweeps expired affinity entries. It never holds the pool mutex
// across a construction, so a foreground acquire is never blocked by it.
func (p *Pool) replenish() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.ReplenishInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.sweepExpired()
			p.topUp()
		}
	}
}

func (p *Pool) topUp() {
	for {
		p.mu.Lock()
		need := !p.closed && len(p.warm) < p.cfg.WarmTarget
		p.mu.Unlock()
		if !need {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.AcquireTimeout)
		client, err := p.factory(ctx, p.cfg.Kind)
		cancel()
		if err != nil {
			p.logger.Warn("background warm-up construction failed", zap.Error(err))
			return
		}

		p.mu.Lock()
		if p.closed || len(p.warm) >= p.cfg.MaxWarm {
			p.mu.Unlock()
			_ = client.Close()
			return
		}
		p.warm = append(p.warm, newResource(client, p.cfg.Kind, TierWarm, ""))
		p.mu.Unlock()
		p.recordSizes()
	}
}

func (p *Pool) sweepExpired() {
	if p.cfg.AffinityTTL <= 0 {
		return
	}
	var stale []Client
	recycled := 0

	p.mu.Lock()
	for sessionID, res := range p.affinity {
		if time.Since(res.LastUsedAt) <= p.cfg.AffinityTTL {
			continue
		}
		delete(p.affinity, sessionID)
		res.OwnerSession = ""
		p.recycleLocked(res, &stale)
		recycled++
	}
	p.mu.Unlock()

	closeAll(stale)
	if recycled > 0 {
		p.logger.Debug("affinity entries expired", zap.Int("count", recycled))
		p.recordSizes()
	}
}

// recycleLocked puts a handle back on the warm queue, or marks it for
// destruction when the queue is full or the handle is unhealthy. Caller holds
// p.mu; actual Close happens outside the lock.
func (p *Pool) recycleLocked(res *Resource, stale *[]Client) {
	if res.healthy() && len(p.warm) < p.cfg.MaxWarm {
		res.Tier = TierWarm
		p.warm = append(p.warm, res)
		return
	}
	*stale = append(*stale, res.client)
}

func (p *Pool) expired(res *Resource) bool {
	return p.cfg.AffinityTTL > 0 && time.Since(res.LastUsedAt) > p.cfg.AffinityTTL
}

func (p *Pool) record(tier Tier) {
	if p.recorder != nil {
		p.recorder.RecordPoolAcquisition(string(p.cfg.Kind), string(tier))
	}
}

func (p *Pool) recordExhausted() {
	if p.recorder != nil {
		p.recorder.RecordPoolExhausted(string(p.cfg.Kind))
	}
}

func (p *Pool) recordSizes() {
	if p.recorder == nil {
		return
	}
	warm, affinity := p.Stats()
	p.recorder.RecordPoolSizes(string(p.cfg.Kind), warm, affinity)
}

func closeAll(clients []Client) {
	for _, c := range clients {
		if c != nil {
			_ = c.Close()
		}
	}
}
