package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ZondaOne/rhivo-app-sub003/api"
	"github.com/ZondaOne/rhivo-app-sub003/config"
	"github.com/ZondaOne/rhivo-app-sub003/internal/bootstrap"
	"github.com/ZondaOne/rhivo-app-sub003/internal/clock"
	"github.com/ZondaOne/rhivo-app-sub003/internal/kafka"
	"github.com/ZondaOne/rhivo-app-sub003/internal/logger"
	"github.com/ZondaOne/rhivo-app-sub003/internal/repository"
	"github.com/ZondaOne/rhivo-app-sub003/internal/service/appointment"
	"github.com/ZondaOne/rhivo-app-sub003/internal/service/capacity"
	"github.com/ZondaOne/rhivo-app-sub003/internal/service/reservation"
	"github.com/ZondaOne/rhivo-app-sub003/migrations"
	"github.com/gin-gonic/gin"
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

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN())
	if err != nil {
		zl.Fatal("parse database config", zap.Error(err))
	}
	poolCfg.MaxConns = cfg.Database.MaxConns
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		zl.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := migrations.Apply(ctx, pool); err != nil {
		zl.Fatal("migrate", zap.Error(err))
	}

	clk := clock.NewSystem()
	tx := repository.NewTransactor(pool)
	guard := capacity.NewGuard(repository.NewCapacityRepository(pool))
	reservationRepo := repository.NewReservationRepository(pool)
	appointmentRepo := repository.NewAppointmentRepository(pool)

	reservationOpts := []reservation.ReservationServiceOption{
		reservation.WithLogger(zl.Named("reservation")),
		reservation.WithTTL(cfg.Booking.DefaultHoldTTL, cfg.Booking.MinHoldTTL, cfg.Booking.MaxHoldTTL),
		reservation.WithCommittedKeys(appointmentRepo),
	}
	appointmentOpts := []appointment.AppointmentServiceOption{
		appointment.WithLogger(zl.Named("appointment")),
	}
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, zl.Named("kafka"))
		defer producer.Close()
		if err := producer.CheckConnection(ctx); err != nil {
			zl.Warn("kafka unreachable at startup, booking events may be dropped", zap.Error(err))
		}
		reservationOpts = append(reservationOpts, reservation.WithPublisher(producer, cfg.Kafka.BookingEventsTopic))
		appointmentOpts = append(appointmentOpts, appointment.WithPublisher(producer, cfg.Kafka.BookingEventsTopic))
	} else {
		zl.Info("kafka brokers not configured, booking events disabled")
	}

	reservationService := reservation.NewReservationService(tx, reservationRepo, guard, clk, reservationOpts...)
	appointmentService := appointment.NewAppointmentService(
		tx,
		appointmentRepo,
		reservationRepo,
		repository.NewAuditRepository(pool),
		guard,
		clk,
		appointmentOpts...,
	)

	sweep := bootstrap.NewSweeper(cfg, reservationService, clk, zl.Named("sweeper"))
	defer func() { _ = sweep.Close() }()
	if sweep.Local {
		// Without shared stats this process only sees its own runs.
		zl.Info("redis not configured, running the reservation sweeper in-process")
		sweep.Sweeper.Start(ctx)
		defer sweep.Sweeper.Stop()
	} else if err := sweep.Redis.Ping(ctx).Err(); err != nil {
		zl.Warn("redis unreachable at startup", zap.Error(err))
	}
	sweeper := sweep.Sweeper

	router := api.NewRouter(zl.Named("http"), reservationService, appointmentService, sweeper)

	if err := bootstrap.Run(ctx, cfg, zl, router, sweeper); err != nil {
		zl.Fatal("server error", zap.Error(err))
	}
}
