package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/drone-orders/internal/auth"
	"github.com/ariefcatur/drone-orders/internal/config"
	"github.com/ariefcatur/drone-orders/internal/httpx"
	kafkax "github.com/ariefcatur/drone-orders/internal/kafka"
	"github.com/ariefcatur/drone-orders/internal/logging"
	"github.com/ariefcatur/drone-orders/internal/notify"
	"github.com/ariefcatur/drone-orders/internal/orders"
	"github.com/ariefcatur/drone-orders/internal/postgres"
	"github.com/ariefcatur/drone-orders/internal/redisx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// store is what the service needs from a backend.
type store interface {
	orders.Catalog
	orders.Cart
	orders.Coupons
	orders.OrderStore
	orders.Journal
	orders.JournalReader
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.ServiceName)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var st store
	switch cfg.StoreDriver {
	case "memory":
		log.Warn("using in-memory store, data is lost on exit")
		st = orders.NewMemStore()
	default:
		if cfg.MigrateOnStart {
			if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
				log.Fatal("migrate", zap.Error(err))
			}
		}
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.ServiceName)
		if err != nil {
			log.Fatal("db connect", zap.Error(err))
		}
		defer db.Close()
		st = &orders.Repo{DB: db}
	}

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024, log)
	prod.Start(ctx)

	svc := &orders.Service{
		Catalog: st,
		Cart:    st,
		Coupons: st,
		Orders:  st,
		Ledger: &orders.Ledger{
			Catalog:    st,
			Journal:    st,
			Log:        log.Named("ledger"),
			MaxRetries: cfg.LedgerMaxRetries,
		},
		Notifier: notify.NewPublisher(prod, cfg.ServiceName),
		Pricing: orders.Calculator{
			FreeShippingThreshold: cfg.FreeShippingThreshold,
			FlatShippingFee:       cfg.FlatShippingFee,
			TaxRate:               cfg.TaxRate,
		},
		Currency: cfg.Currency,
		Log:      log.Named("orders"),
	}

	router := httpx.NewRouter(log)
	oh := &httpx.OrdersHandler{
		Service:  svc,
		Journal:  st,
		Idem:     &redisx.Idempotency{RDB: rdb},
		Verifier: auth.NewVerifier(cfg.JWTSecret),
		Log:      log.Named("http"),
	}
	oh.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()
	prod.WaitClosed()
}
