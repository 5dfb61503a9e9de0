package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-realtime-shop/internal/catalog"
	"github.com/ariefcatur/go-realtime-shop/internal/checkout"
	"github.com/ariefcatur/go-realtime-shop/internal/config"
	"github.com/ariefcatur/go-realtime-shop/internal/httpx"
	kafkax "github.com/ariefcatur/go-realtime-shop/internal/kafka"
	"github.com/ariefcatur/go-realtime-shop/internal/logging"
	"github.com/ariefcatur/go-realtime-shop/internal/notify"
	"github.com/ariefcatur/go-realtime-shop/internal/orders"
	"github.com/ariefcatur/go-realtime-shop/internal/postgres"
	"github.com/ariefcatur/go-realtime-shop/internal/redisx"
	"github.com/ariefcatur/go-realtime-shop/internal/scheduler"
	"github.com/ariefcatur/go-realtime-shop/internal/store"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("config")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat).WithField("service", cfg.ServiceName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Store
	backend, closeBackend, err := openBackend(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("open store")
	}
	defer closeBackend()
	st := store.New(backend)
	if err := st.Init(ctx); err != nil {
		log.WithError(err).Fatal("init store")
	}

	admins := cfg.Admins()
	if admins.Len() == 0 {
		log.Warn("ADMIN_IDS is empty, nobody can approve orders")
	}

	// Notifications: lewat Kafka kalau broker diset, selain itu langsung
	var (
		notifiers notify.Multi
		prod      *kafkax.Producer
	)
	if cfg.KafkaEnabled() {
		prod = kafkax.NewProducer(cfg.KafkaBrokers(), orders.TopicOrderEvents, 1024, log)
		prod.Start()
		notifiers = append(notifiers, &kafkax.EventPublisher{Out: prod, Service: cfg.ServiceName, Log: log})
	} else {
		gw := &notify.Gateway{Sender: directSender(cfg, log), Log: log}
		notifiers = append(notifiers, &notify.Notifier{Gateway: gw, Admins: admins})
	}

	// Services
	cat := &catalog.Catalog{Store: st, Policy: catalog.Policy(cfg.RemovePolicy), Log: log}
	svc := &checkout.Service{
		Store:    st,
		Timeout:  cfg.PaymentTimeout,
		Notifier: notifiers,
		Log:      log,
	}
	sched := scheduler.New(svc, log)
	svc.Timers = sched
	rearm(ctx, svc, sched, log)

	// HTTP
	router := httpx.NewRouter()
	h := &httpx.ShopHandler{
		Catalog:             cat,
		Checkout:            svc,
		Admins:              admins,
		PaymentInstructions: cfg.PaymentInstructions,
		Log:                 log,
	}
	h.Register(router)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("HTTP listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("listen")
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	sched.Stop()
	if prod != nil {
		prod.Close()      // tutup inbox -> flush & close writer
		prod.WaitClosed() // drain
	}
}

// openBackend picks the document store named by STORE_BACKEND.
func openBackend(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (store.Backend, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, errors.Wrap(err, "db connect")
		}
		b := &store.PostgresBackend{DB: db, Log: log}
		if err := b.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return b, db.Close, nil
	case config.BackendRedis:
		rdb := redisx.New(cfg.RedisAddr)
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, errors.Wrap(err, "redis ping")
		}
		return &store.RedisBackend{Client: rdb, Log: log}, func() { _ = rdb.Close() }, nil
	default:
		return &store.FileBackend{Path: cfg.DataPath, Log: log}, func() {}, nil
	}
}

func directSender(cfg config.Config, log logrus.FieldLogger) notify.Sender {
	if cfg.NotifyWebhookURL != "" {
		return &notify.WebhookSender{URL: cfg.NotifyWebhookURL}
	}
	return notify.LogSender{Log: log}
}

// rearm restores payment timers for orders that were still open when the
// process stopped. Already-due orders fire immediately.
func rearm(ctx context.Context, svc *checkout.Service, sched *scheduler.Scheduler, log logrus.FieldLogger) {
	pending, err := svc.PendingDeadlines(ctx)
	if err != nil {
		log.WithError(err).Warn("list pending orders, relying on lazy expiry")
		return
	}
	for _, d := range pending {
		if err := sched.Arm(d.OrderID, d.At); err != nil {
			log.WithError(err).WithField("order_id", d.OrderID).Warn("re-arm payment timer")
		}
	}
	if len(pending) > 0 {
		log.WithField("orders", len(pending)).Info("payment timers re-armed")
	}
}
