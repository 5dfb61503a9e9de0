package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-realtime-shop/internal/config"
	kafkax "github.com/ariefcatur/go-realtime-shop/internal/kafka"
	"github.com/ariefcatur/go-realtime-shop/internal/logging"
	"github.com/ariefcatur/go-realtime-shop/internal/notify"
	"github.com/ariefcatur/go-realtime-shop/internal/orders"
	"github.com/ariefcatur/go-realtime-shop/internal/redisx"
	"github.com/ariefcatur/go-realtime-shop/internal/relay"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("config")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat).WithField("service", cfg.ServiceName+"-notifier")
	if !cfg.KafkaEnabled() {
		log.Fatal("KAFKA_BROKERS is empty, nothing to consume")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Sender: webhook kalau diset, selain itu ke topic outbox untuk chat transport
	var (
		sender notify.Sender
		outbox *kafkax.Producer
	)
	if cfg.NotifyWebhookURL != "" {
		sender = &notify.WebhookSender{URL: cfg.NotifyWebhookURL}
	} else {
		outbox = kafkax.NewProducer(cfg.KafkaBrokers(), orders.TopicChatOutbox, 1024, log)
		outbox.Start()
		sender = &kafkax.OutboxSender{Out: outbox}
	}

	svc := &relay.Service{
		Dedup: &redisx.Dedup{Redis: rdb, Service: "notifier"},
		Notifier: &notify.Notifier{
			Gateway: &notify.Gateway{Sender: sender, Log: log},
			Admins:  cfg.Admins(),
		},
		Log: log,
	}

	// Consumer
	cons := kafkax.NewConsumer(cfg.KafkaBrokers(), cfg.NotifierGroup, orders.TopicOrderEvents, cfg.NotifierWorkers, log)
	done := make(chan struct{})
	go func() {
		defer close(done)
		log.WithFields(logrus.Fields{"group": cfg.NotifierGroup, "topic": orders.TopicOrderEvents, "workers": cfg.NotifierWorkers}).
			Info("notifier consumer started")
		if err := cons.Start(ctx, svc.HandleOrderEvent); err != nil {
			log.WithError(err).Error("consumer exit")
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		log.Info("shutting down consumer...")
	case <-ctx.Done():
	}
	cancel()
	<-done
	if outbox != nil {
		outbox.Close()
		outbox.WaitClosed()
	}
}
