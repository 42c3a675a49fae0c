package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"bibomarket/internal/infrastructure/events"
	"bibomarket/internal/infrastructure/ratelimit"
	"bibomarket/pkg/errors"
	"bibomarket/pkg/logger"
	"bibomarket/pkg/metrics"
)

const (
	TriggerTick   = "tick"
	TriggerEvent  = "event"
	TriggerManual = "manual"
)

// Job names registered by the gateway.
const (
	JobCartBadge         = "cart-badge"
	JobConversationBadge = "conversation-badge"
	JobSelectedThread    = "selected-thread"
)

type JobFunc func(ctx context.Context) error

// Poller runs every registered job on one shared ticker. Runs of the same
// job coalesce: a manual or event-triggered run that starts while another
// is in flight waits for it instead of issuing a second request.
type Poller struct {
	interval   time.Duration
	jobTimeout time.Duration
	limiter    *ratelimit.RateLimiter
	active     func() bool

	group singleflight.Group

	mutex   sync.RWMutex
	jobs    map[string]JobFunc
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	stopped bool
}

// NewPoller creates a poller ticking every interval. Event-triggered runs
// are throttled per job by limiter; a nil limiter disables them.
func NewPoller(interval time.Duration, limiter *ratelimit.RateLimiter) *Poller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		interval:   interval,
		jobTimeout: interval,
		limiter:    limiter,
		active:     func() bool { return true },
		jobs:       make(map[string]JobFunc),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// WhenActive makes scheduled and event runs skip while fn reports false,
// e.g. when nobody is signed in.
func (p *Poller) WhenActive(fn func() bool) {
	p.mutex.Lock()
	p.active = fn
	p.mutex.Unlock()
}

func (p *Poller) Register(name string, fn JobFunc) {
	p.mutex.Lock()
	p.jobs[name] = fn
	p.mutex.Unlock()
}

func (p *Poller) Jobs() []string {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	names := make([]string, 0, len(p.jobs))
	for name := range p.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start launches the ticker. It is a no-op when already started or
// stopped.
func (p *Poller) Start() {
	p.mutex.Lock()
	if p.started {
		p.mutex.Unlock()
		return
	}
	p.started = true
	p.mutex.Unlock()

	started := p.spawn(func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-p.ctx.Done():
				return
			case <-ticker.C:
				p.tick()
			}
		}
	})
	if !started {
		return
	}
	logger.Info("Poller started with interval %s and jobs %v", p.interval, p.Jobs())
}

func (p *Poller) tick() {
	if !p.isActive() {
		return
	}
	var wg sync.WaitGroup
	for _, name := range p.Jobs() {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			_ = p.run(p.ctx, name, TriggerTick)
		}(name)
	}
	wg.Wait()
}

// RunNow runs name immediately, sharing the result with a run already in
// flight.
func (p *Poller) RunNow(ctx context.Context, name string) error {
	return p.run(ctx, name, TriggerManual)
}

// Trigger starts an event-driven run of name in the background unless the
// job's bucket is empty. It reports whether a run was started.
func (p *Poller) Trigger(name string) bool {
	if p.limiter == nil || p.ctx.Err() != nil || !p.isActive() {
		return false
	}
	if ok, wait := p.limiter.Allow(name); !ok {
		logger.Debug("Poller: throttled %s, next run possible in %s", name, wait)
		metrics.RecordPollRun(name, TriggerEvent, "throttled")
		return false
	}

	return p.spawn(func() {
		_ = p.run(p.ctx, name, TriggerEvent)
	})
}

// Watch triggers jobs when events arrive on ch. routes maps an event type
// to the jobs it refreshes. It returns when ch is closed or the poller
// stops.
func (p *Poller) Watch(ch <-chan events.Event, routes map[string][]string) {
	p.spawn(func() {
		for {
			select {
			case <-p.ctx.Done():
				return
			case event, ok := <-ch:
				if !ok {
					return
				}
				for _, job := range routes[event.Type] {
					p.Trigger(job)
				}
			}
		}
	})
}

// spawn runs fn in a goroutine tracked by Stop. It reports false, without
// running fn, once Stop has been called.
func (p *Poller) spawn(fn func()) bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.stopped {
		return false
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		fn()
	}()
	return true
}

func (p *Poller) run(ctx context.Context, name, trigger string) error {
	p.mutex.RLock()
	fn, ok := p.jobs[name]
	p.mutex.RUnlock()
	if !ok {
		return errors.NotFound("Poll job", nil)
	}

	result := p.group.DoChan(name, func() (interface{}, error) {
		runCtx, cancel := context.WithTimeout(p.ctx, p.jobTimeout)
		defer cancel()
		return nil, fn(runCtx)
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-result:
		status := "ok"
		switch {
		case res.Err != nil:
			status = "error"
			logger.Warn("Poller: job %s (%s) failed: %v", name, trigger, res.Err)
		case res.Shared:
			status = "shared"
		}
		metrics.RecordPollRun(name, trigger, status)
		return res.Err
	}
}

func (p *Poller) isActive() bool {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.active()
}

// Stop cancels in-flight runs and waits for every goroutine to exit.
func (p *Poller) Stop() {
	p.mutex.Lock()
	p.stopped = true
	p.mutex.Unlock()

	p.cancel()
	p.wg.Wait()
	if p.limiter != nil {
		p.limiter.Reset()
	}
	logger.Info("Poller stopped")
}
