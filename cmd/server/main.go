package main // Entry point package

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/venuehub/venue-booking/internal/clock"
	"github.com/venuehub/venue-booking/internal/config"
	"github.com/venuehub/venue-booking/internal/database"
	"github.com/venuehub/venue-booking/internal/handler"
	"github.com/venuehub/venue-booking/internal/notifier"
	"github.com/venuehub/venue-booking/internal/queue"
	"github.com/venuehub/venue-booking/internal/repository"
	"github.com/venuehub/venue-booking/internal/router"
	"github.com/venuehub/venue-booking/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := database.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("database: %v", err)
	}

	// Notifications flow through RabbitMQ; the consumer writes them to
	// logs/notifications.log. Delivery is fire-and-forget, so the service
	// keeps working when the broker is down. Setting NOTIFY_BROKER=off
	// routes events to the process log instead, for broker-less setups.
	var sink notifier.Sink = notifier.NewRabbitSink("")
	if os.Getenv("NOTIFY_BROKER") == "off" {
		sink = notifier.LogSink{}
	} else {
		go func() {
			if err := queue.StartNotificationConsumer(); err != nil {
				log.Printf("notification consumer stopped: %v", err)
			}
		}()
	}

	clk := clock.Real{}
	locks := service.NewSlotLocks()
	sched := service.NewScheduler(
		repository.NewScheduleRepo(db),
		clk,
		time.Duration(cfg.SweepInterval)*time.Second,
	)

	bookingSvc := service.NewBookingService(repository.NewBookingRepo(db), sched, sink, clk, locks)
	waitlistSvc := service.NewWaitlistService(repository.NewWaitlistRepo(db), repository.NewBookingRepo(db), sched, sink, clk, locks)
	bookingSvc.BindWaitlist(waitlistSvc)

	// Deadlines armed before a restart are rows in scheduled_jobs; the
	// sweep picks them up as soon as it starts.
	go sched.Run(ctx)

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable: rate limiting disabled")
	}
	rlCfg := config.LoadRateLimitConfig()

	e := echo.New()
	bh := handler.NewBookingHandler(bookingSvc)
	wh := handler.NewWaitlistHandler(waitlistSvc)
	router.RegisterRoutes(e, bh)
	router.RegisterBooking(e, bh, wh, cfg.JWTSecret, rlCfg, rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
