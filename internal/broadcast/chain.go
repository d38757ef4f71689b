package broadcast

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ligun0805/batch-broadcaster/internal/accounts"
)

// Step is one transaction in an account's chain.
type Step struct {
	Name     string
	Build    PayloadFunc
	GasLimit uint64 // 0 keeps the policy gas limit
	Wait     bool
}

// DispatchChain runs steps in order for every account. Each account takes one nonce from its
// Sequence and uses nonce0+k for step k, so non-awaited steps never re-read the network nonce.
// A failed step ends that account's chain only.
func (d *Dispatcher) DispatchChain(ctx context.Context, accts []accounts.Account, steps []Step, p Policy) *ChainReport {
	p = p.withDefaults()
	rep := &ChainReport{
		RunID:   uuid.NewString(),
		Network: d.net.Name(),
		ChainID: d.net.ChainID(),
		Started: time.Now(),
		Chains:  make([]ChainResult, 0, len(accts)),
	}
	if len(accts) == 0 {
		rep.Finished = time.Now()
		return rep
	}
	log := d.log.WithFields(logrus.Fields{"run": rep.RunID[:8], "action": p.Action})
	log.Infof("running %d-step chain for %d accounts on %s", len(steps), len(accts), d.net.Name())

	results := make(chan ChainResult, len(accts))
	var g errgroup.Group
	g.SetLimit(p.MaxConcurrency)
	go func() {
		for i, a := range accts {
			if i > 0 {
				_ = d.sleep(ctx, d.pause)
			}
			g.Go(func() error {
				results <- d.runChain(ctx, a, steps, p, log)
				return nil
			})
		}
		_ = g.Wait()
		close(results)
	}()

	for cr := range results {
		rep.Chains = append(rep.Chains, cr)
	}
	rep.Finished = time.Now()
	return rep
}

func (d *Dispatcher) runChain(ctx context.Context, a accounts.Account, steps []Step, p Policy, log logrus.FieldLogger) ChainResult {
	d.metrics.taskStarted()
	defer d.metrics.taskDone()

	cr := ChainResult{Account: a, Status: ChainFailed}
	log = log.WithField("account", a.String())

	seq, err := StartSequence(ctx, d.net.Client(), a.Address)
	if err != nil {
		cr.Error = Describe(Classify(err), err)
		log.Errorf("chain not started: %s", cr.Error)
		return cr
	}
	cr.StartNonce, cr.Fallback = seq.Start(), seq.Fallback
	if seq.Fallback {
		log.Warnf("pending nonce unavailable, using confirmed count %d", seq.Start())
	}

	for _, st := range steps {
		start := time.Now()
		sp := p
		sp.Action = st.Name
		sp.WaitForReceipt = st.Wait
		if st.GasLimit > 0 {
			sp.GasLimit = st.GasLimit
		}

		var r Result
		if err := d.sleep(ctx, d.jitter(p.JitterMin, p.JitterMax)); err != nil {
			r = failedKind(a, seq.Peek(), KindCancelled, err)
		} else if pl, err := st.Build(ctx, a); err != nil {
			r = failedKind(a, seq.Peek(), KindBuild, err)
		} else {
			r = d.Send(ctx, a, pl, seq.Peek(), sp)
		}
		d.metrics.observe(st.Name, r, time.Since(start).Seconds())
		logResult(log.WithField("step", st.Name), r)
		cr.Steps = append(cr.Steps, StepResult{Step: st.Name, Result: r})
		if !r.OK() {
			cr.Error = fmt.Sprintf("%s: %s", st.Name, r.Reason)
			break
		}
		seq.Next()
	}

	ok := 0
	for _, s := range cr.Steps {
		if s.OK() {
			ok++
		}
	}
	switch {
	case ok == len(steps):
		cr.Status = ChainSuccess
	case ok > 0:
		cr.Status = ChainPartial
	}
	return cr
}
