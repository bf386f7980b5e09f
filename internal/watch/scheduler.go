// Package watch runs the recurring sweep that turns stored spawn
// windows into milestone announcements.
package watch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"raidwatch/internal/raids"
	kit "raidwatch/internal/transport"
	logx "raidwatch/pkg/logx"
)

type Config struct {
	// Tick is the sweep interval. Milestones are reported with at most
	// one tick of latency.
	Tick time.Duration

	// WarningLead is how long before open the early warning fires.
	WarningLead time.Duration
}

const (
	defaultTick = 15 * time.Second
	defaultLead = 30 * time.Minute
)

// Scheduler owns the sweep loop. One instance per process; Start is
// idempotent and Stop waits for an in-flight sweep to finish.
//
// Delivery is at-most-once: a flag is persisted after the dispatch
// attempt whether or not the send succeeded, so a transient outage
// drops that announcement instead of repeating it every tick.
type Scheduler struct {
	log     logx.Logger
	store   raids.Store
	sender  Sender
	resolve Resolver
	now     func() time.Time

	mu      sync.Mutex
	cfg     Config
	c       *cron.Cron
	runCtx  context.Context
	running bool

	// lead is read by the sweep without taking mu, since Apply holds
	// mu while waiting for an in-flight sweep to drain.
	lead atomic.Int64

	// sweeping serializes passes. robfig/cron runs each firing in its
	// own goroutine, so a sweep outlasting one tick would otherwise
	// overlap the next, and two passes reading the same unset flags
	// would both dispatch the same milestone.
	sweeping atomic.Bool
}

func New(cfg Config, store raids.Store, sender Sender, resolve Resolver, log logx.Logger) *Scheduler {
	if cfg.Tick <= 0 {
		cfg.Tick = defaultTick
	}
	if cfg.WarningLead <= 0 {
		cfg.WarningLead = defaultLead
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Scheduler{
		log:     log,
		store:   store,
		sender:  sender,
		resolve: resolve,
		now:     time.Now,
		cfg:     cfg,
	}
	s.lead.Store(int64(cfg.WarningLead))
	return s
}

// Start begins ticking. Calling it on a running scheduler is a no-op.
// The first sweep also catches up transitions that came due while the
// process was down.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.runCtx = ctx
	if err := s.startCronLocked(); err != nil {
		return err
	}
	s.running = true
	s.log.Info("window sweep started",
		logx.Duration("tick", s.cfg.Tick),
		logx.Duration("warning_lead", s.cfg.WarningLead),
	)
	return nil
}

func (s *Scheduler) startCronLocked() error {
	c := cron.New()
	ctx := s.runCtx
	_, err := c.AddFunc(fmt.Sprintf("@every %s", s.cfg.Tick), func() {
		if ctx.Err() != nil {
			return
		}
		s.Sweep(ctx, s.now())
	})
	if err != nil {
		return err
	}
	c.Start()
	s.c = c
	return nil
}

// Stop halts ticking and waits for the in-flight sweep, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	wasRunning := s.running
	s.running = false
	s.mu.Unlock()

	if !wasRunning || c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
		s.log.Info("window sweep stopped")
	case <-ctx.Done():
		s.log.Warn("window sweep stop timed out", logx.Err(ctx.Err()))
	}
}

// Apply updates tick and lead at runtime. A tick change restarts the
// cron entry; a lead change takes effect on the next sweep.
func (s *Scheduler) Apply(cfg Config) {
	if cfg.Tick <= 0 {
		cfg.Tick = defaultTick
	}
	if cfg.WarningLead <= 0 {
		cfg.WarningLead = defaultLead
	}

	s.lead.Store(int64(cfg.WarningLead))

	s.mu.Lock()
	defer s.mu.Unlock()
	tickChanged := cfg.Tick != s.cfg.Tick
	s.cfg = cfg
	if !s.running || !tickChanged {
		return
	}
	if s.c != nil {
		<-s.c.Stop().Done()
	}
	if err := s.startCronLocked(); err != nil {
		s.log.Error("window sweep restart failed", logx.Err(err))
		s.running = false
		return
	}
	s.log.Info("window sweep interval changed", logx.Duration("tick", cfg.Tick))
}

func (s *Scheduler) warningLead() time.Duration {
	return time.Duration(s.lead.Load())
}

// Sweep runs one full pass over every tracked guild at the given
// instant. Errors are logged and narrow the skip to the affected
// guild or window; the pass always visits everything else. At most
// one pass runs at a time; a call that finds one in flight returns
// immediately and leaves the work to the next tick.
func (s *Scheduler) Sweep(ctx context.Context, now time.Time) {
	if !s.sweeping.CompareAndSwap(false, true) {
		s.log.Debug("sweep still in flight; skipping this pass")
		return
	}
	defer s.sweeping.Store(false)

	now = now.UTC()
	guilds, err := s.store.Guilds(ctx)
	if err != nil {
		s.log.Warn("sweep: listing guilds failed; retrying next tick", logx.Err(err))
		return
	}
	for _, gid := range guilds {
		if ctx.Err() != nil {
			return
		}
		s.sweepGuild(ctx, gid, now)
	}
}

func (s *Scheduler) sweepGuild(ctx context.Context, guildID string, now time.Time) {
	log := s.log.With(logx.String("guild_id", guildID))

	dest, hasDest := s.resolve.Resolve(guildID)
	if !hasDest {
		log.Debug("no announce destination; sweeping for cleanup only")
	}

	windows, err := s.store.List(ctx, guildID)
	if err != nil {
		log.Warn("sweep: listing windows failed; skipping guild this tick", logx.Err(err))
		return
	}

	lead := s.warningLead()
	for _, w := range windows {
		due := raids.Decide(w, now, lead)
		if !due.Any() {
			continue
		}
		wlog := log.With(logx.String("boss", w.Name))

		// Without a destination there is no dispatch attempt, so the
		// flags stay unset; the Decide bounds suppress anything whose
		// moment has passed if a destination shows up later.
		if due.Warning && hasDest {
			s.dispatch(ctx, wlog, dest, raids.KindWarning, w)
			s.markSent(ctx, wlog, w, raids.FlagWarning)
		}
		if due.Open && hasDest {
			s.dispatch(ctx, wlog, dest, raids.KindOpen, w)
			s.markSent(ctx, wlog, w, raids.FlagOpen)
		}
		if due.Close {
			if hasDest {
				s.dispatch(ctx, wlog, dest, raids.KindClose, w)
			}
			// Version-checked so a window replaced after classification
			// survives the delete.
			if err := s.store.DeleteVersion(ctx, w); err != nil {
				wlog.Warn("sweep: closing delete failed; retrying next tick", logx.Err(err))
			} else {
				wlog.Info("window closed", logx.Time("end", w.End))
			}
		}
	}
}

// dispatch attempts one announcement. At-most-once: the caller marks
// the flag regardless of the outcome, so failures are only logged.
func (s *Scheduler) dispatch(ctx context.Context, log logx.Logger, to kit.ChatTarget, kind raids.Kind, w raids.Window) {
	if err := s.sender.Send(ctx, to, kind, w.Name); err != nil {
		log.Warn("announce failed; not retrying",
			logx.String("kind", string(kind)),
			logx.Err(err),
		)
		return
	}
	log.Debug("announced", logx.String("kind", string(kind)))
}

func (s *Scheduler) markSent(ctx context.Context, log logx.Logger, w raids.Window, flag raids.Flag) {
	if err := s.store.MarkSent(ctx, w, flag); err != nil {
		log.Warn("marking flag failed", logx.String("flag", string(flag)), logx.Err(err))
	}
}
