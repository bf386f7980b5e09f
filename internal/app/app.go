// Package app assembles the bot: config, logging, storage, the raid
// tracker, the announce sweep and the command front end.
package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"raidwatch/internal/bot"
	"raidwatch/internal/config"
	"raidwatch/internal/raids"
	"raidwatch/internal/runtime/supervisor"
	"raidwatch/internal/storage"
	kit "raidwatch/internal/transport"
	"raidwatch/internal/transport/telegram"
	"raidwatch/internal/transport/telegram/router"
	"raidwatch/internal/watch"
	logx "raidwatch/pkg/logx"
)

// StopReason tags a shutdown for the logs.
type StopReason string

const (
	StopSignal StopReason = "signal"
	StopFatal  StopReason = "fatal"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	adapter *telegram.Adapter
	store   raids.Store

	svc    *raids.Service
	sender *watch.ChatSender
	sched  *watch.Scheduler
	cmdm   *router.CommandManager

	updates chan kit.Update
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole("info").With(logx.String("comp", "telegram"))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, bootLog)
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(loggingConfig(cfg), ad)
	log = log.With(logx.String("comp", "app"))
	applyLogTarget(logSvc, cfg)

	busyTimeout, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 5*time.Second)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	timers, err := buildTimers(cfg.Raids)
	if err != nil {
		return nil, err
	}
	svc := raids.NewService(store, timers, log.With(logx.String("comp", "raids")))

	wcfg, err := watchConfig(cfg.Raids)
	if err != nil {
		return nil, err
	}
	sendTimeout, err := config.ParseDurationOrDefault("raids.send_timeout", cfg.Raids.SendTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	ratePerSec := cfg.Raids.SendRatePerSec
	if ratePerSec <= 0 {
		ratePerSec = 5
	}
	sender := watch.NewChatSender(ad, ratePerSec, sendTimeout, wcfg.WarningLead)

	resolver := watch.ResolverFunc(func(guildID string) (kit.ChatTarget, bool) {
		d, ok := cfgm.Get().Raids.Destinations[guildID]
		if !ok || d.ChatID == 0 {
			return kit.ChatTarget{}, false
		}
		return kit.ChatTarget{ChatID: d.ChatID, ThreadID: d.ThreadID}, true
	})

	sched := watch.New(wcfg, store, sender, resolver, log.With(logx.String("comp", "watch")))

	cmdm := router.NewCommandManager(log.With(logx.String("comp", "commands")), ad, cfg.Telegram.OwnerUserIDs)

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		adapter: ad,
		store:   store,
		svc:     svc,
		sender:  sender,
		sched:   sched,
		cmdm:    cmdm,
		updates: make(chan kit.Update, 256),
	}, nil
}

// Done is closed when the run context unwinds (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	// Validate before commit so a bad edit never reaches the running
	// components.
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return validate(cfg)
	})

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}

	if err := a.sched.Start(a.sup.Context()); err != nil {
		return err
	}

	a.cmdm.SetRegistry(a.sup.Context(), bot.Commands(a.svc))

	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.cmdm.DispatchLoop(c, a.updates)
	})

	// Hot reload fan-out.
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: apply only the newest config.
			drain:
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						break drain
					}
				}
				a.applyConfig(newCfg)
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

// applyConfig pushes a validated config into the live components.
func (a *App) applyConfig(cfg *config.Config) {
	a.logs.Apply(loggingConfig(cfg))
	applyLogTarget(a.logs, cfg)

	a.cmdm.SetOwners(cfg.Telegram.OwnerUserIDs)

	if timers, err := buildTimers(cfg.Raids); err != nil {
		a.log.Warn("config reload: keeping previous timers", logx.Err(err))
	} else {
		a.svc.SetTimers(timers)
	}

	if wcfg, err := watchConfig(cfg.Raids); err != nil {
		a.log.Warn("config reload: keeping previous sweep settings", logx.Err(err))
	} else {
		a.sender.SetLead(wcfg.WarningLead)
		a.sched.Apply(wcfg)
	}

	a.log.Info("config reloaded")
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	a.sup.Cancel()

	// Each stop step gets an upper bound so one component cannot stall
	// the whole shutdown.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()

		stepCtx := ctx
		var cancel context.CancelFunc
		if dl, ok := ctx.Deadline(); ok {
			if rem := time.Until(dl); rem < max {
				max = rem
			}
		}
		if max > 0 {
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			} else {
				a.log.Debug("stop step done", logx.String("name", name), logx.Duration("took", time.Since(start)))
			}
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("scheduler", 3*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("storage", time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	return a.logs.Close()
}

func loggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func applyLogTarget(logs *logx.Service, cfg *config.Config) {
	raw := strings.TrimSpace(cfg.Telegram.GroupLog)
	if raw == "" {
		logs.SetTelegramTarget(0, 0)
		return
	}
	if chatID, err := strconv.ParseInt(raw, 10, 64); err == nil {
		logs.SetTelegramTarget(chatID, cfg.Logging.Telegram.ThreadID)
	}
}

// buildTimers layers the config overrides on top of the built-in
// timer table.
func buildTimers(rc config.RaidsConfig) (raids.Timers, error) {
	t := raids.DefaultTimers()

	if rc.DefaultTimer != nil {
		p, err := parseProfile("raids.default_timer", *rc.DefaultTimer)
		if err != nil {
			return raids.Timers{}, err
		}
		t.Default = p
	}
	for name, tc := range rc.Timers {
		key := raids.Normalize(name)
		if key == "" {
			return raids.Timers{}, fmt.Errorf("raids.timers: empty boss name")
		}
		p, err := parseProfile("raids.timers."+name, tc)
		if err != nil {
			return raids.Timers{}, err
		}
		t.Profiles[key] = p
	}
	return t, nil
}

func parseProfile(path string, tc config.TimerConfig) (raids.Profile, error) {
	fixed, err := config.ParseDurationField(path+".fixed", tc.Fixed)
	if err != nil {
		return raids.Profile{}, err
	}
	jitter, err := config.ParseDurationField(path+".jitter", tc.Jitter)
	if err != nil {
		return raids.Profile{}, err
	}
	if fixed < 0 {
		return raids.Profile{}, fmt.Errorf("%s.fixed must be >= 0", path)
	}
	if jitter <= 0 {
		return raids.Profile{}, fmt.Errorf("%s.jitter must be > 0", path)
	}
	return raids.Profile{Fixed: fixed, Jitter: jitter}, nil
}

func watchConfig(rc config.RaidsConfig) (watch.Config, error) {
	tick, err := config.ParseDurationOrDefault("raids.tick", rc.Tick, 15*time.Second)
	if err != nil {
		return watch.Config{}, err
	}
	lead, err := config.ParseDurationOrDefault("raids.warning_lead", rc.WarningLead, 30*time.Minute)
	if err != nil {
		return watch.Config{}, err
	}
	return watch.Config{Tick: tick, WarningLead: lead}, nil
}

func validate(cfg *config.Config) error {
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required")
	}
	if _, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second); err != nil {
		return err
	}
	if _, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 5*time.Second); err != nil {
		return err
	}
	if _, err := config.ParseDurationOrDefault("raids.send_timeout", cfg.Raids.SendTimeout, 10*time.Second); err != nil {
		return err
	}
	if cfg.Raids.SendRatePerSec < 0 {
		return fmt.Errorf("raids.send_rate_per_sec must be >= 0")
	}
	if _, err := watchConfig(cfg.Raids); err != nil {
		return err
	}
	if _, err := buildTimers(cfg.Raids); err != nil {
		return err
	}
	for guildID, d := range cfg.Raids.Destinations {
		if d.ChatID == 0 {
			return fmt.Errorf("raids.destinations.%s: chat_id is required", guildID)
		}
	}
	return nil
}
