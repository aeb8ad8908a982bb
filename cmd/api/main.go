package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/time/rate"

	"github.com/fastprodman/coingate/internal/api"
	"github.com/fastprodman/coingate/internal/auth"
	"github.com/fastprodman/coingate/internal/config"
	"github.com/fastprodman/coingate/internal/infra/logging"
	"github.com/fastprodman/coingate/internal/infra/metrics"
	"github.com/fastprodman/coingate/internal/infra/pgutils"
	"github.com/fastprodman/coingate/internal/security/coupon"
	"github.com/fastprodman/coingate/internal/security/integrity"
	"github.com/fastprodman/coingate/internal/security/keys"
	"github.com/fastprodman/coingate/internal/services/balance"
	"github.com/fastprodman/coingate/internal/services/gate"
	"github.com/fastprodman/coingate/internal/services/janitor"
	"github.com/fastprodman/coingate/internal/services/ratelimit"
	"github.com/fastprodman/coingate/internal/store"
	"github.com/fastprodman/coingate/internal/store/memstore"
	"github.com/fastprodman/coingate/internal/store/pgstore"
	"github.com/fastprodman/coingate/pkg/envconf"
	"github.com/fastprodman/coingate/pkg/shutdownqueue"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error running api: %v\n", err)
		//nolint:gocritic
		os.Exit(1)
	}
}

func run(ctx context.Context) (retErr error) {
	cfg := new(apiConfig)

	err := envconf.Load(cfg)
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	log := logging.Setup(cfg.LogLevel, cfg.LogFormat)
	queue := shutdownqueue.New(log)

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		serr := queue.Shutdown(shutdownCtx)
		if serr != nil {
			retErr = errors.Join(retErr, serr)
		}
	}()

	// --- Infra ---
	st, ping, err := openStore(ctx, cfg, queue)
	if err != nil {
		return err
	}

	master, err := cfg.Crypto.MasterKey()
	if err != nil {
		return fmt.Errorf("master key: %w", err)
	}

	keyStore, err := keys.New(master, cfg.Crypto.CouponKeyID)
	if err != nil {
		return fmt.Errorf("key store: %w", err)
	}

	tagKey, err := cfg.Crypto.TagKey()
	if err != nil {
		return fmt.Errorf("tag key: %w", err)
	}

	if tagKey != nil {
		err = keyStore.UseTagKey(tagKey)
		if err != nil {
			return fmt.Errorf("tag key: %w", err)
		}
	}

	m := metrics.New()

	// --- Services ---
	limiter, err := ratelimit.NewLimiter(cfg.Gate.RateMax, cfg.Gate.RateWindow)
	if err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	ledger := balance.New(st)
	coupons := coupon.NewCipher(keyStore)

	g, err := gate.New(gate.Config{
		FreshnessWindow: cfg.Gate.FreshnessWindow,
		StoreTimeout:    cfg.Gate.StoreTimeout,
	}, gate.Deps{
		Store:    st,
		Verifier: newVerifier(cfg.Gate.TagMode, keyStore),
		Limiter:  limiter,
		Ledger:   ledger,
		Coupons:  coupons,
		Logger:   log,
		Observer: m,
	})
	if err != nil {
		return fmt.Errorf("gate: %w", err)
	}

	throttle := ratelimit.NewAdvisory(rate.Limit(cfg.Throttle.RPS), cfg.Throttle.Burst)

	jan, err := janitor.New(cfg.Janitor, st, log)
	if err != nil {
		return fmt.Errorf("janitor: %w", err)
	}

	jan.SweepAdvisory(throttle, throttleIdle)

	err = jan.Start()
	if err != nil {
		return fmt.Errorf("start janitor: %w", err)
	}

	queue.Add("janitor", jan.Stop)

	// --- HTTP server ---
	srv := api.NewServer(cfg.Port, api.NewRouter(api.RouterDeps{
		Gate:     g,
		Ledger:   ledger,
		Coupons:  coupons,
		Auth:     auth.NewSupabase(cfg.Auth),
		Logger:   log,
		Observer: m,
		Throttle: throttle,
		Metrics:  m.Handler(),
		Ping:     ping,
	}))

	queue.Add("http server", func(c context.Context) error {
		err := srv.Shutdown(c)
		if err != nil {
			return fmt.Errorf("shutdown srv: %w", err)
		}

		return nil
	})

	errCh := make(chan error, 1)

	go func() {
		serr := srv.ListenAndServe()
		// http.ErrServerClosed is the normal path during Shutdown
		if serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			errCh <- serr
			return
		}

		errCh <- nil
	}()

	log.Info("API started", "port", cfg.Port, "store", cfg.StoreBackend, "tag_mode", cfg.Gate.TagMode)

	select {
	case <-ctx.Done():
		return nil
	case serr := <-errCh:
		if serr != nil {
			return fmt.Errorf("server error: %w", serr)
		}

		return nil
	}
}

func openStore(ctx context.Context, cfg *apiConfig, queue *shutdownqueue.Queue) (store.Store, func(context.Context) error, error) {
	if cfg.StoreBackend == backendMemory {
		slog.Warn("using in-memory store; state is lost on restart")
		return memstore.New(), nil, nil
	}

	db, err := pgutils.OpenDB(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}

	queue.Add("postgres", func(context.Context) error { return closeDB(db) })

	return pgstore.New(db), db.PingContext, nil
}

func closeDB(db *sql.DB) error {
	err := db.Close()
	if err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	return nil
}

func newVerifier(mode string, ks *keys.Store) *integrity.Verifier {
	if mode == config.TagModeDigest {
		slog.Warn("integrity tags are unkeyed digests; anyone can forge them")
		return integrity.NewDigest()
	}

	return integrity.NewHMAC(ks.TagKey())
}
