package main

import (
	"log"

	"github.com/labstack/echo/v4"
	echoMw "github.com/labstack/echo/v4/middleware"

	"github.com/communitycal/bookingcore/config"
	"github.com/communitycal/bookingcore/internal/handler"
	"github.com/communitycal/bookingcore/internal/middleware"
	"github.com/communitycal/bookingcore/internal/repository"
	"github.com/communitycal/bookingcore/internal/service"
	"github.com/communitycal/bookingcore/internal/sweeper"
	"github.com/communitycal/bookingcore/pkg/database"
	"github.com/communitycal/bookingcore/pkg/rabbitmq"
)

func main() {
	cfg := config.Load()

	db := database.NewPostgresDB(cfg.DSN())

	// Publisher is optional: without a broker the engine still works, it just
	// emits no lifecycle events.
	var publisher *rabbitmq.Publisher
	if cfg.RabbitURL != "" {
		p, err := rabbitmq.NewPublisher(cfg.RabbitURL)
		if err != nil {
			log.Fatalf("failed to connect to RabbitMQ: %v", err)
		}
		defer p.Close()
		publisher = p
	}

	// Repositories
	eventRepo := repository.NewEventRepository(db)
	overrideRepo := repository.NewOverrideRepository(db)
	unitRepo := repository.NewUnitRepository(db)
	claimRepo := repository.NewClaimRepository(db)

	// Services
	scheduleSvc := service.NewScheduleService(eventRepo, overrideRepo, unitRepo, claimRepo)
	bookingSvc := service.NewBookingService(claimRepo, unitRepo, eventRepo, publisher)
	waitlistSvc := service.NewWaitlistService(claimRepo, unitRepo, eventRepo, publisher)

	// Background sweep of expired offers
	sw := sweeper.New(cfg.SweepCron, waitlistSvc)
	if err := sw.Start(); err != nil {
		log.Fatalf("failed to start sweeper: %v", err)
	}
	defer sw.Stop()

	// Echo
	e := echo.New()
	e.HTTPErrorHandler = middleware.ErrorHandler
	e.Use(echoMw.RequestLoggerWithConfig(echoMw.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v echoMw.RequestLoggerValues) error {
			log.Printf("%s %s %d", v.Method, v.URI, v.Status)
			return nil
		},
	}))
	e.Use(echoMw.Recover())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok", "service": "bookingcore"})
	})

	handler.NewScheduleHandler(scheduleSvc).RegisterRoutes(e)
	handler.NewBookingHandler(bookingSvc, waitlistSvc).RegisterRoutes(e)

	log.Printf("Booking engine starting on :%s", cfg.ServerPort)
	e.Logger.Fatal(e.Start(":" + cfg.ServerPort))
}
