package main // Entry point package

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/experience-booking/internal/config"
	"github.com/iliyamo/experience-booking/internal/database"
	"github.com/iliyamo/experience-booking/internal/handler"
	"github.com/iliyamo/experience-booking/internal/metrics"
	appmw "github.com/iliyamo/experience-booking/internal/middleware"
	"github.com/iliyamo/experience-booking/internal/queue"
	"github.com/iliyamo/experience-booking/internal/repository"
	"github.com/iliyamo/experience-booking/internal/router"
	"github.com/iliyamo/experience-booking/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments set the vars directly
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer func() { _ = db.Close() }()

	metrics.Register()

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	experiences := repository.NewExperienceRepo(db)
	slots := repository.NewSlotRepo(db)
	bookings := repository.NewBookingRepo(db)
	bookingSvc := service.NewBookingService(db, slots, bookings, experiences)

	authHandler := handler.NewAuthHandler(cfg, users, tokens)
	expHandler := handler.NewExperienceHandler(experiences)
	slotHandler := handler.NewSlotHandler(slots, experiences)
	bookingHandler := handler.NewBookingHandler(bookingSvc, bookings, slots, experiences, users)

	// The limiter needs Redis; without it the booking routes still work,
	// just without throttling.
	var limiter echo.MiddlewareFunc
	rlCfg := config.LoadRateLimitConfig()
	if rlCfg.Enabled {
		if rdb := config.NewRedisClient(); rdb != nil {
			limiter = appmw.NewTokenBucket(rlCfg, rdb)
		} else {
			log.Printf("rate limit: redis unavailable, throttling disabled")
		}
	}

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, authHandler, cfg.JWTSecret)
	router.RegisterPublic(e, expHandler, slotHandler)
	router.RegisterGuide(e, expHandler, slotHandler, cfg.JWTSecret)
	router.RegisterBookings(e, bookingHandler, cfg.JWTSecret, limiter)

	// Notification consumer runs for the life of the process and
	// reconnects on its own; a missing broker only disables
	// notifications.
	go func() {
		if err := queue.StartNotificationConsumer(); err != nil {
			log.Printf("notification consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
