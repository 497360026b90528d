// Package config holds the runtime settings of turfd.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/MarkoPoloResearchLab/turf/pkg/booking"
	"github.com/shopspring/decimal"
)

const (
	EnvironmentDevelopment = "development"
	EnvironmentProduction  = "production"

	defaultListenAddr        = ":8080"
	defaultDatabaseURL       = "sqlite:///tmp/turf.db"
	defaultAllowedOrigin     = "http://localhost:3000"
	defaultJWTIssuer         = "turfd"
	defaultAccessTTL         = 72 * time.Hour
	defaultRefreshTTL        = 168 * time.Hour
	defaultGatewayBaseURL    = "https://api.razorpay.com/v1"
	defaultGatewayVendor     = "Razorpay"
	defaultGatewayTimeout    = 10 * time.Second
	defaultClaimTTL          = 15 * time.Minute
	defaultAMQPExchange      = "turf.events"
	defaultServiceName       = "turfd"
	defaultRequestTimeout    = 10 * time.Second
	defaultLocation          = "Asia/Kolkata"
	defaultTurfName          = "Turf"
	defaultBookingInitials   = "ZT"
	defaultHourlyRate        = "600"
	defaultBookingFeePerHour = "100"
	defaultGatewayFeeRate    = "0.02"
	defaultGSTRate           = "0.18"
	defaultOpenHour          = 6
	defaultCloseHour         = 23
)

// ErrInvalidConfig reports a missing or malformed setting.
var ErrInvalidConfig = errors.New("invalid config")

// Config aggregates runtime settings for turfd.
type Config struct {
	Environment    string
	ListenAddr     string
	DatabaseURL    string
	AllowedOrigins []string
	RequestTimeout time.Duration
	Location       string

	JWTSecret  string
	JWTIssuer  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	GatewayKeyID     string
	GatewayKeySecret string
	GatewayBaseURL   string
	GatewayVendor    string
	GatewayTimeout   time.Duration

	RedisURL     string
	ClaimTTL     time.Duration
	AMQPURL      string
	AMQPExchange string

	OTLPEndpoint string
	OTLPInsecure bool
	ServiceName  string

	Turf TurfDefaults

	AdminName     string
	AdminEmail    string
	AdminPassword string
}

// TurfDefaults seeds the settings record on first start. Later changes go
// through the versioned settings API.
type TurfDefaults struct {
	Name              string
	Initials          string
	HourlyRate        string
	BookingFeePerHour string
	GatewayFeeRate    string
	GSTRate           string
	OpenHour          int
	CloseHour         int
}

// Validate fills defaults and ensures the configuration contains sane values.
func (cfg *Config) Validate() error {
	cfg.Environment = strings.ToLower(defaultIfEmpty(cfg.Environment, EnvironmentDevelopment))
	cfg.ListenAddr = defaultIfEmpty(cfg.ListenAddr, defaultListenAddr)
	cfg.DatabaseURL = defaultIfEmpty(cfg.DatabaseURL, defaultDatabaseURL)
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{defaultAllowedOrigin}
	}
	cfg.RequestTimeout = defaultIfZero(cfg.RequestTimeout, defaultRequestTimeout)
	cfg.Location = defaultIfEmpty(cfg.Location, defaultLocation)
	cfg.JWTIssuer = defaultIfEmpty(cfg.JWTIssuer, defaultJWTIssuer)
	cfg.AccessTTL = defaultIfZero(cfg.AccessTTL, defaultAccessTTL)
	cfg.RefreshTTL = defaultIfZero(cfg.RefreshTTL, defaultRefreshTTL)
	cfg.GatewayBaseURL = strings.TrimRight(defaultIfEmpty(cfg.GatewayBaseURL, defaultGatewayBaseURL), "/")
	cfg.GatewayVendor = defaultIfEmpty(cfg.GatewayVendor, defaultGatewayVendor)
	cfg.GatewayTimeout = defaultIfZero(cfg.GatewayTimeout, defaultGatewayTimeout)
	cfg.ClaimTTL = defaultIfZero(cfg.ClaimTTL, defaultClaimTTL)
	cfg.AMQPExchange = defaultIfEmpty(cfg.AMQPExchange, defaultAMQPExchange)
	cfg.ServiceName = defaultIfEmpty(cfg.ServiceName, defaultServiceName)
	cfg.Turf.applyDefaults()

	if cfg.Environment != EnvironmentDevelopment && cfg.Environment != EnvironmentProduction {
		return fmt.Errorf("%w: environment must be %s or %s", ErrInvalidConfig, EnvironmentDevelopment, EnvironmentProduction)
	}
	if cfg.RequestTimeout < 0 || cfg.AccessTTL < 0 || cfg.RefreshTTL < 0 || cfg.GatewayTimeout < 0 || cfg.ClaimTTL < 0 {
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidConfig)
	}
	if _, err := time.LoadLocation(cfg.Location); err != nil {
		return fmt.Errorf("%w: location %q: %v", ErrInvalidConfig, cfg.Location, err)
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return fmt.Errorf("%w: jwt secret is required", ErrInvalidConfig)
	}
	if strings.TrimSpace(cfg.GatewayKeySecret) == "" {
		return fmt.Errorf("%w: gateway key secret is required", ErrInvalidConfig)
	}
	if (cfg.AdminEmail == "") != (cfg.AdminPassword == "") {
		return fmt.Errorf("%w: admin email and password must be set together", ErrInvalidConfig)
	}
	if _, err := cfg.Turf.Settings(cfg.GatewayVendor); err != nil {
		return fmt.Errorf("%w: turf defaults: %v", ErrInvalidConfig, err)
	}
	return nil
}

// IsProduction reports whether the service runs in production mode.
func (cfg Config) IsProduction() bool {
	return cfg.Environment == EnvironmentProduction
}

// LoadLocation returns the time zone that defines the booking calendar.
func (cfg Config) LoadLocation() (*time.Location, error) {
	return time.LoadLocation(cfg.Location)
}

func (defaults *TurfDefaults) applyDefaults() {
	defaults.Name = defaultIfEmpty(defaults.Name, defaultTurfName)
	defaults.Initials = defaultIfEmpty(defaults.Initials, defaultBookingInitials)
	defaults.HourlyRate = defaultIfEmpty(defaults.HourlyRate, defaultHourlyRate)
	defaults.BookingFeePerHour = defaultIfEmpty(defaults.BookingFeePerHour, defaultBookingFeePerHour)
	defaults.GatewayFeeRate = defaultIfEmpty(defaults.GatewayFeeRate, defaultGatewayFeeRate)
	defaults.GSTRate = defaultIfEmpty(defaults.GSTRate, defaultGSTRate)
	if defaults.OpenHour == 0 && defaults.CloseHour == 0 {
		defaults.OpenHour = defaultOpenHour
		defaults.CloseHour = defaultCloseHour
	}
}

// Settings converts the defaults into booking settings.
func (defaults TurfDefaults) Settings(gatewayVendor string) (booking.Settings, error) {
	initials, err := booking.NewInitials(defaults.Initials)
	if err != nil {
		return booking.Settings{}, err
	}
	rates := make([]decimal.Decimal, 0, 4)
	for _, raw := range []string{defaults.HourlyRate, defaults.BookingFeePerHour, defaults.GatewayFeeRate, defaults.GSTRate} {
		rate, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return booking.Settings{}, fmt.Errorf("rate %q: %w", raw, err)
		}
		rates = append(rates, rate)
	}
	fees, err := booking.NewFeeSchedule(rates[0], rates[1], rates[2], rates[3])
	if err != nil {
		return booking.Settings{}, err
	}
	hours, err := booking.NewOperatingHours(defaults.OpenHour, defaults.CloseHour)
	if err != nil {
		return booking.Settings{}, err
	}
	settings := booking.Settings{
		TurfName:      strings.TrimSpace(defaults.Name),
		Initials:      initials,
		Fees:          fees,
		Hours:         hours,
		GatewayVendor: gatewayVendor,
	}
	return settings, settings.Validate()
}

// ParseAllowedOrigins splits comma-delimited origins into a slice.
func ParseAllowedOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return normalized
}

func defaultIfEmpty(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}

func defaultIfZero(value time.Duration, fallback time.Duration) time.Duration {
	if value == 0 {
		return fallback
	}
	return value
}
