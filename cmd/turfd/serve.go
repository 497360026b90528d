package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarkoPoloResearchLab/turf/internal/auth"
	"github.com/MarkoPoloResearchLab/turf/internal/config"
	"github.com/MarkoPoloResearchLab/turf/internal/events"
	"github.com/MarkoPoloResearchLab/turf/internal/gateway"
	"github.com/MarkoPoloResearchLab/turf/internal/httpapi"
	"github.com/MarkoPoloResearchLab/turf/internal/idempotency"
	"github.com/MarkoPoloResearchLab/turf/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/turf/internal/telemetry"
	"github.com/MarkoPoloResearchLab/turf/pkg/booking"
	"github.com/MarkoPoloResearchLab/turf/pkg/ledger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	tracingShutdownTimeout = 5 * time.Second
	defaultAdminName       = "Administrator"
)

// application holds the wired services and the resources they own.
type application struct {
	store    *gormstore.Store
	bookings *booking.Service
	ledger   *ledger.Service
	auth     *auth.Service
	closers  []func() error
}

func (app *application) Close() error {
	var errs []error
	for index := len(app.closers) - 1; index >= 0; index-- {
		errs = append(errs, app.closers[index]())
	}
	return errors.Join(errs...)
}

func runServer(ctx context.Context, cfg config.Config) error {
	decimal.MarshalJSONWithoutQuotes = true

	logger, err := telemetry.NewLogger(cfg.IsProduction())
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TracingConfig{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Insecure:    cfg.OTLPInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("tracing init: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), tracingShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	location, err := cfg.LoadLocation()
	if err != nil {
		return fmt.Errorf("location: %w", err)
	}

	app, err := newApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("close resources", zap.Error(err))
		}
	}()

	if err := seedDefaults(ctx, cfg, app, logger); err != nil {
		return err
	}

	server, err := httpapi.NewServer(httpapi.Config{
		AllowedOrigins: cfg.AllowedOrigins,
		RequestTimeout: cfg.RequestTimeout,
		Production:     cfg.IsProduction(),
		ServiceName:    cfg.ServiceName,
		Location:       location,
		GatewayKeyID:   cfg.GatewayKeyID,
	}, httpapi.Dependencies{
		Bookings: app.bookings,
		Ledger:   app.ledger,
		Auth:     app.auth,
		Health:   app.store,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("http server init: %w", err)
	}
	return httpapi.Run(ctx, cfg.ListenAddr, server.Router(), logger)
}

// newApplication opens the database and assembles the services with their
// optional adapters. Callers must Close the result.
func newApplication(ctx context.Context, cfg config.Config, logger *zap.Logger) (*application, error) {
	app := &application{}
	succeeded := false
	defer func() {
		if !succeeded {
			_ = app.Close()
		}
	}()

	location, err := cfg.LoadLocation()
	if err != nil {
		return nil, fmt.Errorf("location: %w", err)
	}
	clock := func() time.Time { return time.Now().In(location) }

	target, err := parseDatabaseURL(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	db, closeDatabase, err := target.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("database open: %w", err)
	}
	app.closers = append(app.closers, closeDatabase)
	if err := telemetry.InstrumentDatabase(db, target.driver); err != nil {
		return nil, err
	}
	if err := target.syncSchema(db); err != nil {
		return nil, err
	}
	app.store = gormstore.New(db)

	var claimer booking.PaymentClaimer
	if cfg.RedisURL != "" {
		redisClaimer, err := idempotency.NewRedisClaimerFromURL(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis claimer: %w", err)
		}
		app.closers = append(app.closers, redisClaimer.Close)
		claimer = redisClaimer
	} else {
		logger.Info("payment claims kept in memory; run a single replica")
		claimer = idempotency.NewMemoryClaimer(clock)
	}

	publishers := events.Fanout{events.NewLogPublisher(logger)}
	if cfg.AMQPURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return nil, fmt.Errorf("amqp publisher: %w", err)
		}
		app.closers = append(app.closers, amqpPublisher.Close)
		publishers = append(publishers, amqpPublisher)
	}

	verifier, err := booking.NewVerifier(cfg.GatewayKeySecret)
	if err != nil {
		return nil, err
	}
	bookingOptions := []booking.ServiceOption{
		booking.WithLocation(location),
		booking.WithOperationLogger(telemetry.NewBookingLogger(logger)),
		booking.WithPaymentClaimer(claimer, cfg.ClaimTTL),
		booking.WithEventPublisher(publishers),
	}
	if cfg.GatewayKeyID != "" {
		client, err := gateway.NewClient(gateway.Config{
			BaseURL:   cfg.GatewayBaseURL,
			KeyID:     cfg.GatewayKeyID,
			KeySecret: cfg.GatewayKeySecret,
			Timeout:   cfg.GatewayTimeout,
		}, nil)
		if err != nil {
			return nil, fmt.Errorf("gateway client: %w", err)
		}
		bookingOptions = append(bookingOptions, booking.WithOrderGateway(client))
	} else {
		logger.Warn("gateway key id not set; order creation is disabled")
	}
	if app.bookings, err = booking.NewService(app.store.Bookings(), verifier, clock, bookingOptions...); err != nil {
		return nil, fmt.Errorf("booking service init: %w", err)
	}

	if app.ledger, err = ledger.NewService(app.store.Ledger(), clock, ledger.WithOperationLogger(telemetry.NewLedgerLogger(logger))); err != nil {
		return nil, fmt.Errorf("ledger service init: %w", err)
	}

	issuer, err := auth.NewTokenIssuer(auth.TokenConfig{
		Secret:     cfg.JWTSecret,
		Issuer:     cfg.JWTIssuer,
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
	}, clock)
	if err != nil {
		return nil, fmt.Errorf("token issuer init: %w", err)
	}
	if app.auth, err = auth.NewService(app.store.Users(), issuer, clock); err != nil {
		return nil, fmt.Errorf("auth service init: %w", err)
	}

	succeeded = true
	return app, nil
}

// seedDefaults stores the configured turf settings on first start and
// creates the admin account when one is configured.
func seedDefaults(ctx context.Context, cfg config.Config, app *application, logger *zap.Logger) error {
	defaults, err := cfg.Turf.Settings(cfg.GatewayVendor)
	if err != nil {
		return fmt.Errorf("turf defaults: %w", err)
	}
	settings, err := app.bookings.EnsureSettings(ctx, defaults)
	if err != nil {
		return fmt.Errorf("seed settings: %w", err)
	}
	logger.Info("turf settings loaded",
		zap.String("turf", settings.TurfName),
		zap.String("initials", settings.Initials.String()),
		zap.Int64("version", settings.Version),
	)
	if cfg.AdminEmail == "" {
		return nil
	}
	return seedAdmin(ctx, cfg, app, logger)
}

func seedAdmin(ctx context.Context, cfg config.Config, app *application, logger *zap.Logger) error {
	name := cfg.AdminName
	if name == "" {
		name = defaultAdminName
	}
	user, created, err := app.auth.SeedAdmin(ctx, auth.NewUserInput{
		Name:     name,
		Email:    cfg.AdminEmail,
		Password: cfg.AdminPassword,
	})
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	logger.Info("admin account", zap.String("email", user.Email), zap.Bool("created", created))
	return nil
}
