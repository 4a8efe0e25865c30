package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	warden "go-warden"
	"go-warden/memstore"
	"go-warden/mongostore"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sirupsen/logrus"
)

func main() {
	base := logrus.New()
	base.SetFormatter(&logrus.JSONFormatter{})
	log := warden.NewLogrusLogger(base, "warden")

	if err := run(log); err != nil {
		log.Error("fatal: %v", err)
		os.Exit(1)
	}
}

func run(log warden.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := warden.LoadConfig()
	if err != nil {
		return err
	}

	var store warden.Store
	if cfg.MongoURI != "" {
		mongo, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return err
		}
		defer func() {
			if err := mongo.Close(context.Background()); err != nil {
				log.Warn("mongo disconnect error: %v", err)
			}
		}()
		store = mongo
	} else {
		log.Warn("WARDEN_MONGO_URI not set, using in-memory store; data will not survive restarts")
		store = memstore.New()
	}

	if err := warden.NewSeeder(store, cfg).WithLogger(log).Run(ctx); err != nil {
		return err
	}

	auth := warden.NewAuthService(store, cfg).
		WithLogger(log).
		WithMailer(mailer(cfg, log)).
		WithActivitySink(activityLog(log))

	roles := warden.NewRoleService(store).WithLogger(log)
	permissions := warden.NewPermissionService(store).WithLogger(log)

	controller := warden.NewHTTPController(auth, roles, permissions).WithLogger(log)

	app := fiber.New(fiber.Config{
		AppName:               "warden",
		DisableStartupMessage: true,
		ErrorHandler:          warden.HTTPErrorHandler(log),
	})
	app.Use(requestid.New())
	app.Use(recover.New())
	controller.RegisterRoutes(app)

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening on %s", cfg.HTTPAddr)
		errCh <- app.Listen(cfg.HTTPAddr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("shutting down")
		return app.Shutdown()
	}
}

func mailer(cfg *warden.Config, log warden.Logger) warden.Mailer {
	if cfg.SMTPHost == "" {
		log.Warn("WARDEN_SMTP_HOST not set, tokens will be logged instead of mailed")
		return warden.LogMailer{Logger: log}
	}
	return &warden.SMTPMailer{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPass,
		From:     cfg.MailFrom,
	}
}

func activityLog(log warden.Logger) warden.ActivitySink {
	return warden.ActivitySinkFunc(func(_ context.Context, event warden.ActivityEvent) error {
		log.Info("activity %s account=%s", event.EventType, event.AccountID)
		return nil
	})
}
