package broadcast

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"math/rand/v2"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ligun0805/batch-broadcaster/internal/accounts"
	"github.com/ligun0805/batch-broadcaster/internal/network"
	"github.com/ligun0805/batch-broadcaster/internal/payload"
)

// Chain is the active network as the dispatcher sees it; *network.Context satisfies it.
type Chain interface {
	Name() string
	ChainID() *big.Int
	Client() network.Client
	GasPrice(ctx context.Context) (*big.Int, error)
	Nonce(ctx context.Context, addr common.Address, includePending bool) (uint64, error)
	Send(ctx context.Context, tx *types.Transaction) error
	Receipt(ctx context.Context, h common.Hash) (*types.Receipt, error)
}

var _ Chain = (*network.Context)(nil)

// PayloadFunc maps an account to its payload; most batches return the same payload for everyone.
type PayloadFunc func(ctx context.Context, a accounts.Account) (payload.Payload, error)

// Static returns a PayloadFunc that ignores the account.
func Static(p payload.Payload) PayloadFunc {
	return func(context.Context, accounts.Account) (payload.Payload, error) { return p, nil }
}

const (
	DefaultMaxConcurrency = 5
	DefaultJitterMin      = 200 * time.Millisecond
	DefaultJitterMax      = 800 * time.Millisecond
	DefaultTimeout        = 120 * time.Second
	DefaultPollInterval   = 2 * time.Second
)

// Policy controls one batch.
type Policy struct {
	Action         string
	GasLimit       uint64
	MaxConcurrency int
	WaitForReceipt bool
	JitterMin      time.Duration
	JitterMax      time.Duration
	NoJitter       bool // zero range is intentional; skip the default
	Timeout        time.Duration
	PollInterval   time.Duration
}

func (p Policy) withDefaults() Policy {
	if p.MaxConcurrency < 1 {
		p.MaxConcurrency = DefaultMaxConcurrency
	}
	if p.JitterMin == 0 && p.JitterMax == 0 && !p.NoJitter {
		p.JitterMin, p.JitterMax = DefaultJitterMin, DefaultJitterMax
	}
	if p.JitterMax < p.JitterMin {
		p.JitterMax = p.JitterMin
	}
	if p.Timeout <= 0 {
		p.Timeout = DefaultTimeout
	}
	if p.PollInterval <= 0 {
		p.PollInterval = DefaultPollInterval
	}
	if p.Action == "" {
		p.Action = "tx"
	}
	return p
}

// Dispatcher fans one action out across accounts.
type Dispatcher struct {
	net     Chain
	log     logrus.FieldLogger
	limiter *rate.Limiter
	metrics *Metrics
	jitter  func(min, max time.Duration) time.Duration
	sleep   func(ctx context.Context, d time.Duration) error
	pause   time.Duration
}

type Option func(*Dispatcher)

func WithLogger(l logrus.FieldLogger) Option { return func(d *Dispatcher) { d.log = l } }

// WithLimiter caps submissions per second across all workers.
func WithLimiter(l *rate.Limiter) Option { return func(d *Dispatcher) { d.limiter = l } }

func WithMetrics(m *Metrics) Option { return func(d *Dispatcher) { d.metrics = m } }

// WithJitter replaces the uniform jitter source.
func WithJitter(f func(min, max time.Duration) time.Duration) Option {
	return func(d *Dispatcher) { d.jitter = f }
}

func WithSleep(f func(ctx context.Context, d time.Duration) error) Option {
	return func(d *Dispatcher) { d.sleep = f }
}

// WithAccountPause sets the gap between chain starts in DispatchChain.
func WithAccountPause(p time.Duration) Option { return func(d *Dispatcher) { d.pause = p } }

func New(net Chain, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		net:     net,
		log:     logrus.StandardLogger(),
		limiter: rate.NewLimiter(rate.Inf, 1),
		jitter:  uniformJitter,
		sleep:   sleepCtx,
		pause:   300 * time.Millisecond,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func uniformJitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + rand.N(max-min)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// DispatchBatch runs build -> sign -> submit (-> await receipt) once per account on a bounded pool.
// It always returns exactly len(accts) results; an empty batch touches no network.
func (d *Dispatcher) DispatchBatch(ctx context.Context, accts []accounts.Account, build PayloadFunc, p Policy) *Report {
	p = p.withDefaults()
	rep := &Report{
		RunID:   uuid.NewString(),
		Action:  p.Action,
		Network: d.net.Name(),
		ChainID: d.net.ChainID(),
		Started: time.Now(),
		Results: make([]Result, 0, len(accts)),
	}
	log := d.log.WithFields(logrus.Fields{"run": rep.RunID[:8], "action": p.Action})
	if len(accts) == 0 {
		rep.Finished = time.Now()
		return rep
	}
	log.Infof("dispatching to %d accounts on %s (workers=%d, wait=%v)", len(accts), d.net.Name(), p.MaxConcurrency, p.WaitForReceipt)

	results := make(chan Result, len(accts))
	var g errgroup.Group
	g.SetLimit(p.MaxConcurrency)
	go func() {
		for _, a := range accts {
			g.Go(func() error {
				results <- d.task(ctx, a, build, p, log)
				return nil
			})
		}
		_ = g.Wait()
		close(results)
	}()

	for r := range results {
		rep.Results = append(rep.Results, r)
	}
	rep.Finished = time.Now()
	return rep
}

func (d *Dispatcher) task(ctx context.Context, a accounts.Account, build PayloadFunc, p Policy, log logrus.FieldLogger) Result {
	d.metrics.taskStarted()
	defer d.metrics.taskDone()
	start := time.Now()

	r := d.buildAndSend(ctx, a, build, p)
	d.metrics.observe(p.Action, r, time.Since(start).Seconds())
	logResult(log, r)
	return r
}

func (d *Dispatcher) buildAndSend(ctx context.Context, a accounts.Account, build PayloadFunc, p Policy) Result {
	if err := d.sleep(ctx, d.jitter(p.JitterMin, p.JitterMax)); err != nil {
		return failedKind(a, 0, KindCancelled, err)
	}
	pl, err := build(ctx, a)
	if err != nil {
		return failedKind(a, 0, KindBuild, err)
	}
	nonce, fallback, err := accountNonce(ctx, d.net.Client(), a.Address)
	if err != nil {
		return failed(a, 0, fmt.Errorf("get nonce: %w", err))
	}
	if fallback {
		d.log.WithField("account", a.String()).Debug("pending nonce unavailable, using confirmed count")
	}
	return d.Send(ctx, a, pl, nonce, p)
}

// Send submits one transaction with an explicit nonce. Gas price is read fresh on every call.
func (d *Dispatcher) Send(ctx context.Context, a accounts.Account, pl payload.Payload, nonce uint64, p Policy) Result {
	p = p.withDefaults()
	if err := ctx.Err(); err != nil {
		return failedKind(a, nonce, KindCancelled, err)
	}
	if err := d.limiter.Wait(ctx); err != nil {
		return failedKind(a, nonce, KindCancelled, err)
	}
	gasPrice, err := d.net.GasPrice(ctx)
	if err != nil {
		return failed(a, nonce, fmt.Errorf("get gas price: %w", err))
	}
	tx := buildLegacyTx(nonce, pl, p.GasLimit, gasPrice)
	signed, err := signTx(tx, d.net.ChainID(), a.Key)
	if err != nil {
		return failedKind(a, nonce, KindCredential, err)
	}
	if err := d.net.Send(ctx, signed); err != nil {
		return failed(a, nonce, err)
	}
	h := signed.Hash()
	if !p.WaitForReceipt {
		return Result{Account: a, Status: StatusSent, Nonce: nonce, TxHash: h, At: time.Now()}
	}

	rcpt, err := d.waitReceipt(ctx, h, p.Timeout, p.PollInterval)
	if err != nil {
		r := failed(a, nonce, err)
		r.TxHash = h
		return r
	}
	r := Result{Account: a, Nonce: nonce, TxHash: h, GasUsed: rcpt.GasUsed, At: time.Now()}
	if rcpt.Status != types.ReceiptStatusSuccessful {
		r.Status = StatusReverted
		r.Reason = fmt.Sprintf("reverted on-chain, gas used %d", rcpt.GasUsed)
		return r
	}
	r.Status = StatusConfirmed
	if pl.IsCreation() && rcpt.ContractAddress != (common.Address{}) {
		addr := rcpt.ContractAddress
		r.ContractAddress = &addr
	}
	return r
}

// waitReceipt polls on a ticker; only this task blocks.
func (d *Dispatcher) waitReceipt(ctx context.Context, h common.Hash, timeout, every time.Duration) (*types.Receipt, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		rcpt, err := d.net.Receipt(ctx, h)
		if err == nil && rcpt != nil {
			return rcpt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			d.log.WithField("tx", h.Hex()).Debugf("receipt poll: %v", err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, fmt.Errorf("%w after %v", ErrReceiptTimeout, timeout)
		case <-ticker.C:
		}
	}
}

func logResult(log logrus.FieldLogger, r Result) {
	l := log.WithFields(logrus.Fields{"account": r.Account.String(), "nonce": r.Nonce})
	if r.TxHash != (common.Hash{}) {
		l = l.WithField("tx", r.TxHash.Hex())
	}
	switch r.Status {
	case StatusFailed:
		l.Errorf("failed: %s", r.Reason)
	case StatusReverted:
		l.Warnf("reverted (gas used %d)", r.GasUsed)
	case StatusConfirmed:
		if r.ContractAddress != nil {
			l.Infof("confirmed, contract %s", r.ContractAddress.Hex())
			return
		}
		l.Info("confirmed")
	default:
		l.Info("sent")
	}
}
