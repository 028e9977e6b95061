package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/CryptoDev0408/3-BSC-FourMeme-TradingBot-Fresh-sub000/internal/ledger"
	"github.com/CryptoDev0408/3-BSC-FourMeme-TradingBot-Fresh-sub000/internal/monitor"
	"github.com/CryptoDev0408/3-BSC-FourMeme-TradingBot-Fresh-sub000/internal/oracle"
	"github.com/CryptoDev0408/3-BSC-FourMeme-TradingBot-Fresh-sub000/internal/queue"
	"github.com/CryptoDev0408/3-BSC-FourMeme-TradingBot-Fresh-sub000/internal/server"
	"github.com/CryptoDev0408/3-BSC-FourMeme-TradingBot-Fresh-sub000/internal/server/handler"
)

// TradeMode starts the execution queue and the monitoring engine and blocks
// until the context is cancelled.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode")
	return a.runCore(ctx, deps, false)
}

// MonitorMode runs the monitoring loop in observe-only form: positions are
// repriced and triggers are reported, but no transaction is ever signed or
// submitted.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")
	return a.runCore(ctx, deps, true)
}

func (a *App) runCore(ctx context.Context, deps *Dependencies, monitorOnly bool) error {
	book := ledger.New(deps.PositionStore, deps.AuditStore, a.logger)
	if err := book.Initialize(ctx); err != nil {
		return fmt.Errorf("app: initialize ledger: %w", err)
	}

	execQueue := queue.New(deps.Exchange, deps.ExecutionStore, a.logger)
	execQueue.SetPollInterval(a.cfg.Queue.PollInterval.Duration)

	prices := oracle.New(deps.Pools, deps.PriceCache, a.logger)

	engine := monitor.New(
		monitor.Config{
			Interval:    a.cfg.Monitor.Interval.Duration,
			ExecTimeout: time.Duration(a.cfg.Monitor.ExecTimeoutSec) * time.Second,
			GasHeadroom: a.cfg.Monitor.GasHeadroom,
			MonitorOnly: monitorOnly,
		},
		book,
		prices,
		execQueue,
		deps.Orders,
		deps.Chain,
		deps.Chain,
		deps.LockManager,
		deps.Notifier,
		a.logger,
	)

	// In monitor mode the queue is never dispatched; nothing enqueues.
	if !monitorOnly {
		execQueue.Start(ctx)
	}
	engine.Start(ctx)

	g, ctx := errgroup.WithContext(ctx)

	if a.cfg.Server.Enabled {
		handlers := server.Handlers{
			Health:    handler.NewHealthHandler(a.logger),
			Positions: handler.NewPositionHandler(book, a.logger),
		}
		if !monitorOnly {
			handlers.Queue = handler.NewQueueHandler(execQueue, a.logger)
			handlers.Trades = handler.NewTradeHandler(engine, deps.Chain, a.logger)
		}

		srv := server.NewServer(server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			APIKey:      a.cfg.Server.APIKey,
		}, handlers, a.logger)

		g.Go(srv.Start)
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		return ctx.Err()
	})

	err := g.Wait()

	engine.Stop()
	if !monitorOnly {
		execQueue.Stop()
	}
	if err != nil && err != context.Canceled {
		return err
	}
	return nil
}
