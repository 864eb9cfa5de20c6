package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"raffle/internal/api"
	"raffle/internal/config"
	"raffle/internal/fee"
	"raffle/internal/ledger"
	"raffle/internal/logger"
	"raffle/internal/metrics"
	"raffle/internal/oracle"
	"raffle/internal/raffle"
	"raffle/internal/randomness"
	"raffle/internal/storage"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// network is the set of external collaborators of one deployment target.
type network struct {
	feed        oracle.Feed
	coordinator randomness.Coordinator
	custody     raffle.Transferrer

	// set on mock networks only
	mockCoordinator *randomness.MockCoordinator
	wallet          api.Wallet

	close func()
}

func connect(ctx context.Context, cfg *config.Config) (*network, error) {
	n := cfg.Network

	if n.Mock {
		logger.Info("raffled: using in-process mock network",
			zap.String("network", cfg.NetworkName),
			zap.Uint8("decimals", n.Decimals),
			zap.Int64("initial value", n.InitialValue),
			zap.Duration("auto fulfill", n.AutoFulfill))

		// fee token is topped up on demand so every round can draw
		coordinator := randomness.NewMockCoordinator(
			randomness.WithAutoFulfill(n.AutoFulfill),
			randomness.WithAutoFund(randomness.DefaultFundAmount),
		)
		wallet := ledger.NewMemory(n.Raffle())

		return &network{
			feed:            oracle.NewMockAggregator(n.Decimals, big.NewInt(n.InitialValue)),
			coordinator:     coordinator,
			custody:         wallet,
			mockCoordinator: coordinator,
			wallet:          wallet,
			close:           func() {},
		}, nil
	}

	logger.Info("raffled: connecting to network...", zap.String("network", cfg.NetworkName), zap.String("rpc", n.RPCURL))
	client, err := ethclient.DialContext(ctx, n.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", n.RPCURL, err)
	}

	feed, err := oracle.NewAggregatorClient(client, n.PriceFeedAddress())
	if err != nil {
		client.Close()
		return nil, err
	}

	custody, err := ledger.NewChain(client, cfg.CustodyKey)
	if err != nil {
		client.Close()
		return nil, err
	}

	logger.Info("raffled: connecting to network... done",
		zap.String("price feed", n.PriceFeed),
		zap.String("custody", custody.Custody().Hex()))

	return &network{
		feed:        feed,
		coordinator: randomness.NewHTTPCoordinator(n.CoordinatorURL, n.CallbackURL),
		custody:     custody,
		close:       client.Close,
	}, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	sqliteStorage, err := storage.NewSqliteStorage(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	var store storage.Storage = sqliteStorage
	defer store.Close()

	net, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer net.close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	fees, err := fee.NewCalculator(oracle.NewAdapter(net.feed, cfg.OracleMaxAge), cfg.EntryPriceFiat)
	if err != nil {
		return err
	}

	consumer := cfg.Network.Raffle()
	rng := randomness.NewAdapter(net.coordinator, randomness.Config{
		Consumer: consumer,
		KeyHash:  cfg.Network.KeyHashValue(),
		Fee:      cfg.Network.FeeValue(),
	})
	if net.mockCoordinator != nil {
		net.mockCoordinator.Attach(consumer, rng)
	}

	engine, err := raffle.New(raffle.Dependencies{
		Fees:       fees,
		Randomness: rng,
		Custody:    net.custody,
		Store:      store,
		Metrics:    metrics.New(registry),
	}, raffle.WithPayoutBackOff(func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.MaxElapsedTime = cfg.PayoutMaxElapsed
		return b
	}))
	if err != nil {
		return err
	}

	if err := engine.Restore(ctx); err != nil {
		return err
	}

	if cfg.OperatorToken == "" {
		logger.Warn("raffled: RAFFLE_OPERATOR_TOKEN is empty, operator routes are not protected")
	}

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	handler := api.New(api.Options{
		Raffle:        engine,
		Rounds:        store,
		Fulfiller:     rng,
		Wallet:        net.wallet,
		OperatorToken: cfg.OperatorToken,
		CallbackToken: cfg.CallbackToken,
		Gatherer:      registry,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("raffled: listening", zap.String("addr", cfg.HTTPAddr), zap.Stringer("state", engine.Status().State))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return group.Wait()
}
