package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ZondaOne/rhivo-app-sub003/config"
	"github.com/ZondaOne/rhivo-app-sub003/internal/bootstrap"
	"github.com/ZondaOne/rhivo-app-sub003/internal/clock"
	"github.com/ZondaOne/rhivo-app-sub003/internal/email"
	"github.com/ZondaOne/rhivo-app-sub003/internal/kafka"
	"github.com/ZondaOne/rhivo-app-sub003/internal/logger"
	"github.com/ZondaOne/rhivo-app-sub003/internal/repository"
	"github.com/ZondaOne/rhivo-app-sub003/internal/service/capacity"
	"github.com/ZondaOne/rhivo-app-sub003/internal/service/reservation"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zl, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		zl.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	clk := clock.NewSystem()
	reservationService := reservation.NewReservationService(
		repository.NewTransactor(pool),
		repository.NewReservationRepository(pool),
		capacity.NewGuard(repository.NewCapacityRepository(pool)),
		clk,
		reservation.WithLogger(zl.Named("reservation")),
	)

	sweep := bootstrap.NewSweeper(cfg, reservationService, clk, zl.Named("sweeper"))
	defer func() { _ = sweep.Close() }()
	sweep.Sweeper.Start(ctx)
	defer sweep.Sweeper.Stop()

	if len(cfg.Kafka.Brokers) > 0 {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.BookingEventsTopic, zl.Named("kafka"))
		defer consumer.Close()

		sender := email.NewSender(zl.Named("email"))
		go func() {
			if err := consumer.Consume(ctx, sender.Send); err != nil {
				zl.Error("consumer stopped", zap.Error(err))
			}
		}()
	} else {
		zl.Info("kafka brokers not configured, notifications disabled")
	}

	<-ctx.Done()
	zl.Info("shutting down worker")
}
