package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"ammswap/internal/api"
	"ammswap/internal/broadcast"
	"ammswap/internal/config"
	"ammswap/internal/journal"
	"ammswap/internal/keys"
	"ammswap/internal/lock"
	"ammswap/internal/metrics"
	"ammswap/internal/swap"
	"ammswap/internal/trade"
	"ammswap/internal/txbuilder"
)

// App holds one connected engine: node client, account, orchestrator.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	rpcClient *rpc.Client
	ethClient *ethclient.Client
	redis     *redis.Client

	Status  *Status
	Account *keys.Account
	Orch    *swap.Orchestrator
	Trade   *trade.Service
	Journal *journal.Store
}

// New dials the node, verifies it answers, loads the account and wires the
// swap engine.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	account, err := loadAccount(cfg)
	if err != nil {
		return nil, err
	}
	rpcClient, ethClient, err := dialHTTP(cfg, logger)
	if err != nil {
		return nil, txbuilder.NewError(txbuilder.KindConnectivity, "dial", err)
	}
	a := &App{cfg: cfg, logger: logger, rpcClient: rpcClient, ethClient: ethClient, Account: account}
	if err := a.assemble(ctx, ethClient); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) assemble(ctx context.Context, client txbuilder.ChainClient) error {
	cfg := a.cfg
	chainID, err := probeChainID(ctx, client, cfg.RPC.RetryMax, cfg.RPC.RetryBackoff.Duration, cfg.RPC.RequestTimeout.Duration)
	if err != nil {
		return err
	}
	if err := checkChainID(cfg.ChainID, chainID); err != nil {
		return err
	}
	st, err := preflight(ctx, a.logger, client, chainID, a.Account.Address, cfg.RPC.RequestTimeout.Duration)
	if err != nil {
		return err
	}
	a.Status = st

	increment, err := txbuilder.GweiToWei(cfg.Tx.FeeIncrementGwei)
	if err != nil {
		return fmt.Errorf("tx.fee_increment_gwei: %w", err)
	}
	minOut, ok := new(big.Int).SetString(strings.TrimSpace(cfg.Swap.MinAmountOut), 10)
	if !ok || minOut.Sign() < 0 {
		return fmt.Errorf("swap.min_amount_out %q is not a non-negative integer", cfg.Swap.MinAmountOut)
	}
	parsed, err := txbuilder.LoadRouterABI(cfg.Router.ABIPath)
	if err != nil {
		return err
	}
	router := txbuilder.NewRouter(cfg.RouterAddress(), cfg.WrappedNative(), parsed)
	oracle := txbuilder.NewFeeOracle(client, txbuilder.FeeOracleConfig{
		Increment:        increment,
		RewardPercentile: cfg.Tx.RewardPercentile,
	})
	nonces := txbuilder.NewNonceManager(client)
	builder := txbuilder.NewAutoBuilder(client, oracle, nonces, router, txbuilder.AutoBuilderConfig{
		ChainID:            chainID,
		DeadlineWindow:     time.Duration(cfg.Tx.DeadlineSeconds) * time.Second,
		GasLimitMultiplier: cfg.Tx.GasLimitMultiplier,
		MinAmountOut:       minOut,
	})
	bc := broadcast.New(client, broadcast.Config{PollInterval: cfg.Tx.PollInterval.Duration}, a.logger)

	locker, err := a.accountLocker(ctx, nonces)
	if err != nil {
		return err
	}
	a.Journal = journal.New(cfg.Journal.Path)
	a.warnUnconfirmed()

	a.Orch, err = swap.New(swap.Config{
		Account:        a.Account.Address,
		ConfirmTimeout: cfg.Tx.ConfirmTimeout.Duration,
	}, swap.Deps{
		Builder:     builder,
		Signer:      a.Account,
		Broadcaster: bc,
		Nonces:      nonces,
		Locker:      locker,
		Recorder:    a.Journal,
		Logger:      a.logger,
	})
	if err != nil {
		return err
	}
	a.Trade = trade.NewService(a.Orch, client)
	return nil
}

func (a *App) accountLocker(ctx context.Context, nonces *txbuilder.NonceManager) (txbuilder.AccountLocker, error) {
	if a.cfg.Nonce.Lock != "redis" {
		return nonces, nil
	}
	a.redis = redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	ctxTimeout, cancel := withTimeout(ctx, a.cfg.RPC.RequestTimeout.Duration)
	defer cancel()
	if err := a.redis.Ping(ctxTimeout).Err(); err != nil {
		return nil, fmt.Errorf("redis ping %s: %w", a.cfg.Redis.Addr, err)
	}
	a.logger.Info("redis account lock enabled", "addr", a.cfg.Redis.Addr)
	return lock.NewRedisLock(a.redis, lock.Config{TTL: a.cfg.Redis.LockTTL.Duration}, a.logger), nil
}

// warnUnconfirmed surfaces timed-out swaps left by an earlier run. Loading
// the journal also seeds Journal.Last for /health.
func (a *App) warnUnconfirmed() {
	pending, err := a.Journal.Unconfirmed()
	if err != nil {
		a.logger.Warn("journal unreadable", "path", a.Journal.Path(), "error", err)
		return
	}
	if len(pending) > 0 {
		a.logger.Warn("unconfirmed swaps in journal", "path", a.Journal.Path(), "count", len(pending), "last_tx_hash", pending[len(pending)-1].TxHash)
	}
}

// Serve runs the HTTP API and, when configured, the metrics endpoint until
// ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	server := api.NewServer(api.Config{Listen: a.cfg.API.Listen, AuthToken: a.cfg.API.AuthToken}, a.logger, a.Trade, a.Journal)
	g.Go(func() error {
		return server.Start(gctx)
	})

	if a.cfg.Metrics.Listen != "" {
		srv := metrics.NewServer(a.cfg.Metrics.Listen)
		g.Go(func() error {
			a.logger.Info("metrics listening", "addr", a.cfg.Metrics.Listen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			ctxTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(ctxTimeout)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *App) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.ethClient != nil {
		a.ethClient.Close()
	} else if a.rpcClient != nil {
		a.rpcClient.Close()
	}
}

func loadAccount(cfg *config.Config) (*keys.Account, error) {
	if cfg.Account.KeystorePath != "" {
		pass, err := cfg.KeystorePassphrase()
		if err != nil {
			return nil, err
		}
		return keys.FromKeystore(cfg.Account.KeystorePath, pass)
	}
	hexKey, err := cfg.PrivateKey()
	if err != nil {
		return nil, err
	}
	return keys.FromHex(hexKey)
}

func dialHTTP(cfg *config.Config, logger *slog.Logger) (*rpc.Client, *ethclient.Client, error) {
	httpClient := &http.Client{
		Timeout: cfg.RPC.RequestTimeout.Duration,
	}
	rpcClient, err := rpc.DialHTTPWithClient(cfg.RPC.HTTP, httpClient)
	if err != nil {
		return nil, nil, err
	}
	rpcClient.SetHeader("User-Agent", "ammswap")
	logger.Info("rpc http connected")
	return rpcClient, ethclient.NewClient(rpcClient), nil
}
