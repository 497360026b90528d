package config

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{JWTSecret: "jwt-secret-0123456789", GatewayKeySecret: "gateway-secret"}
}

func TestValidateAppliesDefaults(test *testing.T) {
	test.Parallel()

	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		test.Fatalf("validate: %v", err)
	}
	if cfg.ListenAddr != ":8080" || cfg.DatabaseURL != "sqlite:///tmp/turf.db" {
		test.Fatalf("unexpected defaults %q %q", cfg.ListenAddr, cfg.DatabaseURL)
	}
	if cfg.AccessTTL != 72*time.Hour || cfg.RefreshTTL != 168*time.Hour {
		test.Fatalf("unexpected token lifetimes %s %s", cfg.AccessTTL, cfg.RefreshTTL)
	}
	if cfg.IsProduction() {
		test.Fatalf("expected development by default")
	}
	settings, err := cfg.Turf.Settings(cfg.GatewayVendor)
	if err != nil {
		test.Fatalf("settings: %v", err)
	}
	if settings.Initials.String() != "ZT" || settings.Hours.Open != 6 || settings.Hours.Close != 23 {
		test.Fatalf("unexpected settings %+v", settings)
	}
	if settings.GatewayVendor != "Razorpay" || settings.Fees.HourlyRate.String() != "600" {
		test.Fatalf("unexpected fee defaults %+v", settings.Fees)
	}
	location, err := cfg.LoadLocation()
	if err != nil || location.String() != "Asia/Kolkata" {
		test.Fatalf("expected Asia/Kolkata, got %v (%v)", location, err)
	}
}

func TestValidateRejects(test *testing.T) {
	test.Parallel()

	testCases := []struct {
		name   string
		mutate func(cfg *Config)
	}{
		{name: "missing jwt secret", mutate: func(cfg *Config) { cfg.JWTSecret = " " }},
		{name: "missing gateway secret", mutate: func(cfg *Config) { cfg.GatewayKeySecret = "" }},
		{name: "unknown environment", mutate: func(cfg *Config) { cfg.Environment = "staging" }},
		{name: "negative timeout", mutate: func(cfg *Config) { cfg.RequestTimeout = -time.Second }},
		{name: "unknown location", mutate: func(cfg *Config) { cfg.Location = "Mars/Olympus" }},
		{name: "admin email without password", mutate: func(cfg *Config) { cfg.AdminEmail = "admin@turf.test" }},
		{name: "bad initials", mutate: func(cfg *Config) { cfg.Turf.Initials = "Z1" }},
		{name: "bad rate", mutate: func(cfg *Config) { cfg.Turf.HourlyRate = "six hundred" }},
		{name: "booking fee above rate", mutate: func(cfg *Config) { cfg.Turf.BookingFeePerHour = "700" }},
		{name: "inverted hours", mutate: func(cfg *Config) { cfg.Turf.OpenHour, cfg.Turf.CloseHour = 20, 8 }},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			cfg := validConfig()
			testCase.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				test.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestParseAllowedOrigins(test *testing.T) {
	test.Parallel()

	got := ParseAllowedOrigins(" https://a.test, ,https://b.test ")
	expected := []string{"https://a.test", "https://b.test"}
	if !reflect.DeepEqual(got, expected) {
		test.Fatalf("expected %v, got %v", expected, got)
	}
	if len(ParseAllowedOrigins("")) != 0 {
		test.Fatalf("expected empty slice")
	}
}
