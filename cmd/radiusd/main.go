// Command radiusd runs RADIUS authentication and accounting endpoints.
//
// Access-Requests are decided by a YAML allowlist; Accounting-Requests are
// recorded in Redis when RADIUSD_REDIS_ADDR is set and logged otherwise.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/vitalvas/radiusd/internal/acctstore"
	"github.com/vitalvas/radiusd/internal/config"
	"github.com/vitalvas/radiusd/internal/policy"
	"github.com/vitalvas/radiusd/pkg/dictionaries"
	"github.com/vitalvas/radiusd/pkg/dictionary"
	"github.com/vitalvas/radiusd/pkg/log"
	"github.com/vitalvas/radiusd/pkg/packet"
	"github.com/vitalvas/radiusd/pkg/server"
)

type app struct {
	logger  log.Logger
	auth    *server.Server
	acct    *server.Server
	closers []io.Closer
}

func newApp(ctx context.Context, cfg *config.Config, logger log.Logger, audit io.Writer) (*app, error) {
	a := &app{logger: logger}

	dict, err := loadDictionary(cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Infof("dictionary loaded with %d attributes", dict.Len())

	if cfg.AuthAddr != "" {
		pol, err := loadPolicy(cfg, logger)
		if err != nil {
			return nil, err
		}

		a.auth, err = server.New(server.Config{
			Addr:          cfg.AuthAddr,
			Secret:        []byte(cfg.Secret),
			Dictionary:    dict,
			Mode:          server.ModeAuthentication,
			AccessHandler: pol,
			Logger:        logger,
			Workers:       cfg.Workers,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create authentication server: %w", err)
		}

		a.auth.Use(server.LoggingMiddleware(logger))
		if audit != nil {
			a.auth.Use(auditMiddleware(audit, dict, logger))
		}
		a.auth.Use(server.RecoverMiddleware(logger))
	}

	if cfg.AcctAddr != "" {
		handler, err := a.accountingHandler(ctx, cfg)
		if err != nil {
			a.close()
			return nil, err
		}

		a.acct, err = server.New(server.Config{
			Addr:              cfg.AcctAddr,
			Secret:            []byte(cfg.Secret),
			Dictionary:        dict,
			Mode:              server.ModeAccounting,
			AccountingHandler: handler,
			Logger:            logger,
			Workers:           cfg.Workers,
		})
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to create accounting server: %w", err)
		}
	}

	return a, nil
}

func loadDictionary(cfg *config.Config, logger log.Logger) (*dictionary.Dictionary, error) {
	opts := []dictionary.Option{dictionary.WithLogger(logger)}

	if cfg.Dictionary == "" {
		dict, err := dictionaries.NewDefault(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load built-in dictionary: %w", err)
		}
		return dict, nil
	}

	dict, err := dictionary.LoadFile(cfg.Dictionary, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load dictionary: %w", err)
	}
	return dict, nil
}

func loadPolicy(cfg *config.Config, logger log.Logger) (*policy.Policy, error) {
	if cfg.Policy == "" {
		logger.Warnf("RADIUSD_POLICY is not set, every Access-Request will be rejected")
		return policy.New("", nil)
	}

	pol, err := policy.Load(cfg.Policy)
	if err != nil {
		return nil, err
	}
	logger.Infof("policy loaded with %d users", pol.Len())
	return pol, nil
}

func (a *app) accountingHandler(ctx context.Context, cfg *config.Config) (server.AccountingHandler, error) {
	if cfg.RedisAddr == "" {
		a.logger.Infof("RADIUSD_REDIS_ADDR is not set, accounting is only logged")
		return logAccounting(a.logger), nil
	}

	rdb, err := acctstore.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, rdb)

	a.logger.Infof("recording accounting in redis at %s", cfg.RedisAddr)
	return acctstore.New(rdb, acctstore.Options{
		DuplicateTTL: cfg.DuplicateTTL,
		Logger:       a.logger.WithField("component", "acctstore"),
	}), nil
}

// logAccounting only logs the session and status of each request
func logAccounting(logger log.Logger) server.AccountingHandler {
	return server.AccountingHandlerFunc(func(ctx context.Context, req *packet.Packet) error {
		var status uint32
		if attr, ok := req.GetAttribute(packet.AttrAcctStatusType); ok {
			status, _ = attr.Uint32()
		}

		var session string
		if attr, ok := req.GetAttribute(packet.AttrAcctSessionID); ok {
			session = string(attr.Value)
		}

		user, _ := req.Username()

		source := "unknown"
		if addr, ok := server.RemoteAddr(ctx); ok {
			source = addr.String()
		}

		logger.Infof("accounting from %s: status=%d session=%q user=%q", source, status, session, user)
		return nil
	})
}

// run serves both endpoints; the first failure stops the other
func (a *app) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, srv := range []*server.Server{a.auth, a.acct} {
		if srv == nil {
			continue
		}
		srv := srv
		g.Go(func() error {
			return srv.ListenAndServe(gctx)
		})
	}

	return g.Wait()
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Warnf("close: %v", err)
		}
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "radiusd: %v\n", err)
		os.Exit(2)
	}

	logger := log.New(log.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var audit io.Writer
	if cfg.Audit {
		audit = os.Stdout
	}

	a, err := newApp(ctx, cfg, logger, audit)
	if err != nil {
		logger.Errorf("startup failed: %v", err)
		os.Exit(1)
	}
	defer a.close()

	if err := a.run(ctx); err != nil {
		logger.Errorf("server failed: %v", err)
		a.close()
		os.Exit(1)
	}

	logger.Infof("shutdown complete")
}
