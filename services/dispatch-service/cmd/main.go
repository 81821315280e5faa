//services/dispatch-service/cmd/main.go

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/dukens11-create/gud/services/dispatch-service/internal/alerts"
	"github.com/dukens11-create/gud/services/dispatch-service/internal/dispatcher"
	"github.com/dukens11-create/gud/services/dispatch-service/internal/earnings"
	"github.com/dukens11-create/gud/services/dispatch-service/internal/handlers"
	"github.com/dukens11-create/gud/services/dispatch-service/internal/httpapi"
	"github.com/dukens11-create/gud/services/dispatch-service/internal/notify"
	"github.com/dukens11-create/gud/services/dispatch-service/internal/reminders"
	"github.com/dukens11-create/gud/services/dispatch-service/internal/retention"
	"github.com/dukens11-create/gud/services/dispatch-service/internal/scheduler"
	"github.com/dukens11-create/gud/services/dispatch-service/internal/store/postgres"
	"github.com/dukens11-create/gud/services/dispatch-service/internal/validation"
	"github.com/dukens11-create/gud/shared/config"
	pkgkafka "github.com/dukens11-create/gud/shared/kafka"
	"github.com/dukens11-create/gud/shared/logger"
	pkgrabbit "github.com/dukens11-create/gud/shared/rabbitmq"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.LoadCommonConfig()
	log := logger.New(logger.Options{Service: "dispatch-service", Level: cfg.LOG_LEVEL, File: cfg.LOG_FILE})

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	db, err := postgres.Open(ctx, cfg.GetDBURL())
	if err != nil {
		log.Fatalf("Failed to connect to postgres: %v", err)
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	st := postgres.NewPostgresStore(db)

	// Notification transport
	amqpURL := cfg.GetRabbitMQURL()
	if amqpURL == "" {
		log.Fatal("RABBITMQ_HOST is not set")
	}
	log.WithField("host", cfg.RABBITMQ_HOST).Info("connecting to rabbitmq")
	rabbitClient, err := pkgrabbit.NewClient(amqpURL, log)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	for _, q := range []string{notify.PushQueue, notify.EmailQueue} {
		if err := rabbitClient.CreateQueue(q); err != nil {
			log.Fatalf("Failed to create queue %s: %v", q, err)
		}
	}
	router := notify.NewRouter(st, notify.NewQueuePushSender(rabbitClient), log)

	// Change event pipeline
	d := dispatcher.New(log)
	handlers.NewLoadHandlers(
		validation.NewGate(st, log),
		earnings.NewUpdater(st, log),
		router,
		notify.NewQueueEmailSender(rabbitClient),
		st,
		log,
	).Register(d)

	var kafkaConsumer *pkgkafka.Consumer
	if cfg.KAFKA_BROKER != "" {
		log.WithField("broker", cfg.KAFKA_BROKER).WithField("topic", cfg.KAFKA_TOPIC).Info("connecting to kafka")
		kafkaConsumer = pkgkafka.NewConsumer([]string{cfg.KAFKA_BROKER}, cfg.KAFKA_TOPIC, cfg.KAFKA_GROUP, log)
	} else {
		log.Warn("KAFKA_BROKER not set, change events will not be consumed")
	}

	// Scheduled jobs
	loc, err := time.LoadLocation(cfg.SCHEDULE_TIMEZONE)
	if err != nil {
		log.Fatalf("invalid SCHEDULE_TIMEZONE %q: %v", cfg.SCHEDULE_TIMEZONE, err)
	}
	var locker scheduler.Locker = scheduler.NewLocalLocker()
	var redisClient *redis.Client
	if cfg.REDIS_ADDR != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.REDIS_ADDR})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		locker = scheduler.NewRedisLocker(redisClient)
	} else {
		log.Warn("REDIS_ADDR not set, job locks are local to this process")
	}

	engine := alerts.NewEngine(st, router, log)
	sweeper := retention.NewSweeper(st, log)
	overdue := reminders.NewOverdueReminder(st, router, loc, log)

	sched := scheduler.New(loc, locker, log)
	jobs := []scheduler.Job{
		{Name: "expiration-alerts", Spec: "0 6 * * *", Run: func(ctx context.Context) (any, error) { return engine.Run(ctx) }},
		{Name: "alert-refresh", Spec: "0 5 * * *", Run: func(ctx context.Context) (any, error) { return engine.Refresh(ctx) }},
		{Name: "location-cleanup", Spec: "@every 24h", Run: func(ctx context.Context) (any, error) { return sweeper.Run(ctx) }},
		{Name: "overdue-reminders", Spec: "0 9 * * *", Run: func(ctx context.Context) (any, error) { return overdue.Run(ctx) }},
	}
	for _, j := range jobs {
		if err := sched.Add(j); err != nil {
			log.Fatalf("Failed to schedule %s: %v", j.Name, err)
		}
	}

	// Ops HTTP
	srv := &http.Server{
		Addr:              cfg.HTTP_ADDR,
		Handler:           httpapi.NewHandler(sched, st, log).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup

	if kafkaConsumer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			kafkaConsumer.Start(ctx, d.KafkaHandler())
		}()
	}

	sched.Start()

	go func() {
		log.WithField("addr", cfg.HTTP_ADDR).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server failed: %v", err)
		}
	}()

	stopSignal := make(chan os.Signal, 1)
	signal.Notify(stopSignal, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-stopSignal
	log.WithField("signal", receivedSignal.String()).Info("initiating shutdown")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutCancel()

	if err := srv.Shutdown(shutCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	sched.Stop(shutCtx)

	// stop consuming, then wait for the in-flight event
	cancel()
	wg.Wait()

	if kafkaConsumer != nil {
		if err := kafkaConsumer.Close(); err != nil {
			log.WithError(err).Warn("kafka consumer close")
		}
	}
	if err := rabbitClient.Close(); err != nil {
		log.WithError(err).Warn("rabbitmq close")
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if err := st.Close(); err != nil {
		log.WithError(err).Warn("postgres close")
	}
	log.Info("shutdown complete")
}
