package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	xhttp "FactorPipe/pkg/http"
	pkgkafka "FactorPipe/pkg/kafka"
	applogger "FactorPipe/pkg/logger"
)

// Resource is released on shutdown after the transports have stopped.
type Resource struct {
	Name  string
	Close func() error
}

// Resources are closed in order.
type Resources []Resource

// Task runs every Interval while the app is up. Run receives a context that
// is cancelled on shutdown.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context)
}

// Tasks are started with the app and stopped before the transports.
type Tasks []Task

// App owns the HTTP server, the optional Kafka consumer and every resource
// they depend on.
type App struct {
	log             *applogger.Logger
	httpServer      *xhttp.Server
	consumer        *pkgkafka.Consumer
	tasks           Tasks
	resources       Resources
	shutdownTimeout time.Duration

	stopTasks context.CancelFunc
	tasksWG   sync.WaitGroup
}

// New creates an App. consumer may be nil.
func New(log *applogger.Logger, httpServer *xhttp.Server, consumer *pkgkafka.Consumer, tasks Tasks, resources Resources, shutdownTimeout time.Duration) *App {
	if log == nil {
		log = applogger.Nop()
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &App{
		log:             log,
		httpServer:      httpServer,
		consumer:        consumer,
		tasks:           tasks,
		resources:       resources,
		shutdownTimeout: shutdownTimeout,
	}
}

// Run starts the application and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts the application and blocks until ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		_ = a.Shutdown(context.Background())
		return err
	}
	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.Shutdown(context.Background())
}

// Start launches the background tasks, the consumer and the HTTP server
// without blocking.
func (a *App) Start(ctx context.Context) error {
	a.startTasks(ctx)
	if a.consumer != nil {
		if err := a.consumer.Start(ctx); err != nil {
			return fmt.Errorf("kafka consumer: %w", err)
		}
	}
	if a.httpServer != nil {
		if err := a.httpServer.Start(); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	return nil
}

// Shutdown stops background tasks and transports first, then closes
// resources. Every step runs even if an earlier one fails; the errors are
// joined.
func (a *App) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.shutdownTimeout)
	defer cancel()

	a.stopBackground()

	var errs []error
	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	for _, r := range a.resources {
		if err := r.Close(); err != nil {
			a.log.Warn("close resource", applogger.String("resource", r.Name), applogger.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", r.Name, err))
		}
	}
	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}

func (a *App) startTasks(ctx context.Context) {
	if len(a.tasks) == 0 || a.stopTasks != nil {
		return
	}
	ctx, a.stopTasks = context.WithCancel(ctx)
	for _, t := range a.tasks {
		if t.Interval <= 0 || t.Run == nil {
			continue
		}
		a.tasksWG.Add(1)
		go func() {
			defer a.tasksWG.Done()
			ticker := time.NewTicker(t.Interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					t.Run(ctx)
				}
			}
		}()
		a.log.Debug("background task started",
			applogger.String("task", t.Name),
			applogger.Duration("interval", t.Interval),
		)
	}
}

func (a *App) stopBackground() {
	if a.stopTasks == nil {
		return
	}
	a.stopTasks()
	a.tasksWG.Wait()
}
