package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	domsvc "FinScore/internal/domain/service"
	"FinScore/internal/handler/ws"
	"FinScore/internal/service/ratelimit"
	"FinScore/internal/usecase"
	"FinScore/pkg/config"
	xhttp "FinScore/pkg/http"
	pkgkafka "FinScore/pkg/kafka"
	applogger "FinScore/pkg/logger"
	"FinScore/pkg/queue"
)

type closer struct {
	name string
	fn   func() error
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	hub        *ws.Hub
	lifecycle  *usecase.ModelLifecycleManager
	preload    []string
	scheduler  domsvc.RetrainScheduler
	queue      *queue.RedisQueue
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	limiter    *ratelimit.Limiter
	closers    []closer
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, httpServer *xhttp.Server, hub *ws.Hub, lm *usecase.ModelLifecycleManager, preload ...string) *App {
	return &App{
		cfg:        cfg,
		log:        l,
		httpServer: httpServer,
		hub:        hub,
		lifecycle:  lm,
		preload:    preload,
	}
}

func (a *App) SetScheduler(s domsvc.RetrainScheduler) { a.scheduler = s }

func (a *App) SetQueue(q *queue.RedisQueue) { a.queue = q }

// SetConsumer registers the transaction events handler on the consumer.
func (a *App) SetConsumer(c *pkgkafka.Consumer, h pkgkafka.MessageHandler) {
	a.consumer = c
	a.kh = h
}

func (a *App) SetLimiter(l *ratelimit.Limiter) { a.limiter = l }

// AddCloser registers a resource closed last during shutdown, in reverse order.
func (a *App) AddCloser(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go a.hub.Run(ctx)

	if len(a.preload) > 0 {
		a.lifecycle.Preload(ctx, a.preload...)
	}

	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			a.log.Error("retrain queue start error", applogger.Error(err))
			return err
		}
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		if err := a.consumer.Start(); err != nil {
			a.log.Error("kafka consumer error", applogger.Error(err))
			return err
		}
	}

	if a.limiter != nil {
		go a.pruneLimiter(ctx)
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("finscore started",
		applogger.String("environment", a.cfg.Environment),
		applogger.Int("port", a.cfg.Server.Port),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

func (a *App) pruneLimiter(ctx context.Context) {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.limiter.Prune()
		}
	}
}

// shutdown stops intake first, then drains in-flight retrains, then closes clients.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.httpServer.ShutdownTimeout())
	defer cancel()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.queue != nil {
		if err := a.queue.Stop(ctx); err != nil {
			a.log.Warn("retrain queue stop error", applogger.Error(err))
		}
	}

	if w, ok := a.scheduler.(interface{ Wait() }); ok {
		done := make(chan struct{})
		go func() {
			w.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			a.log.Warn("in-flight retrains abandoned at shutdown")
		}
	}

	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			a.log.Warn("close error", applogger.String("resource", c.name), applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
