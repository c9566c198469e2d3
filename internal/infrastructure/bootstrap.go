package infrastructure

import (
	"context"

	"saldo/internal/config"
	"saldo/internal/repository"
	"saldo/internal/saga"
	"saldo/internal/service"
	transportHTTP "saldo/internal/transport/http"
	transportNATS "saldo/internal/transport/nats"
)

// Bootstrap initialises all dependencies from config and wires up the application.
// Returns the App, a cleanup function, or an error.
func Bootstrap(ctx context.Context) (*App, func(), error) {
	cfg, err := config.New()
	if err != nil {
		return nil, nil, err
	}

	db, err := connectPostgres(cfg.DSN())
	if err != nil {
		return nil, nil, err
	}

	rdb, err := connectRedis(cfg.RedisAddr())
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	var cleanupFns []func()
	cleanupFns = append(cleanupFns, func() {
		db.Close()
		_ = rdb.Close()
	})

	nc, err := connectNats(cfg.NatsAddr())
	if err != nil {
		return nil, runCleanup(cleanupFns), err
	}
	cleanupFns = append(cleanupFns, nc.Close)

	stores := saga.Stores{
		Users:     repository.NewUserRepo(db),
		Balances:  repository.NewBalanceRepo(db, rdb),
		Topups:    repository.NewTopupRepo(db),
		Withdraws: repository.NewWithdrawRepo(db),
		Transfers: repository.NewTransferRepo(db),
	}

	emitter := saga.NewEmitter(transportNATS.NewBus(nc), cfg.EmitAttempts)

	var svc service.SagaService = saga.NewCoordinator(stores, emitter, cfg.TopupMaxAmount)

	var servers []Server
	servers = append(servers, transportNATS.NewHandler(svc, nc))
	if addr, apiErr := cfg.ApiAddr(); apiErr == nil {
		servers = append(servers, transportHTTP.NewServer(addr, svc))
	}

	return NewApp(servers), runCleanup(cleanupFns), nil
}

// runCleanup returns a single function that calls all cleanup functions in reverse order.
func runCleanup(fns []func()) func() {
	return func() {
		for i := len(fns) - 1; i >= 0; i-- {
			fns[i]()
		}
	}
}
