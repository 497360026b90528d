package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/MarkoPoloResearchLab/turf/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	flagEnvironment       = "environment"
	flagListenAddr        = "listen-addr"
	flagDatabaseURL       = "database-url"
	flagAllowedOrigins    = "allowed-origins"
	flagRequestTimeout    = "request-timeout"
	flagLocation          = "location"
	flagJWTSecret         = "jwt-secret"
	flagJWTIssuer         = "jwt-issuer"
	flagAccessTTL         = "access-ttl"
	flagRefreshTTL        = "refresh-ttl"
	flagGatewayKeyID      = "gateway-key-id"
	flagGatewayKeySecret  = "gateway-key-secret"
	flagGatewayBaseURL    = "gateway-base-url"
	flagGatewayVendor     = "gateway-vendor"
	flagGatewayTimeout    = "gateway-timeout"
	flagRedisURL          = "redis-url"
	flagClaimTTL          = "claim-ttl"
	flagAMQPURL           = "amqp-url"
	flagAMQPExchange      = "amqp-exchange"
	flagOTLPEndpoint      = "otlp-endpoint"
	flagOTLPInsecure      = "otlp-insecure"
	flagServiceName       = "service-name"
	flagTurfName          = "turf-name"
	flagBookingInitials   = "booking-initials"
	flagHourlyRate        = "hourly-rate"
	flagBookingFeePerHour = "booking-fee-per-hour"
	flagGatewayFeeRate    = "gateway-fee-rate"
	flagGSTRate           = "gst-rate"
	flagOpenHour          = "open-hour"
	flagCloseHour         = "close-hour"
	flagAdminName         = "admin-name"
	flagAdminEmail        = "admin-email"
	flagAdminPassword     = "admin-password"
	envPrefix             = "TURFD"
)

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "turfd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &config.Config{}
	cmd := &cobra.Command{
		Use:           "turfd",
		Short:         "Turf booking and ledger HTTP server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, *cfg)
		},
	}

	flags := cmd.PersistentFlags()
	flags.String(flagEnvironment, "", "development or production")
	flags.String(flagListenAddr, "", "HTTP listen address")
	flags.String(flagDatabaseURL, "", "postgres:// or sqlite:// connection string")
	flags.String(flagAllowedOrigins, "", "comma-separated list of allowed CORS origins")
	flags.Duration(flagRequestTimeout, 0, "per-request deadline (e.g. 10s)")
	flags.String(flagLocation, "", "IANA time zone of the booking calendar")
	flags.String(flagJWTSecret, "", "HMAC secret for access and refresh tokens")
	flags.String(flagJWTIssuer, "", "issuer claim of minted tokens")
	flags.Duration(flagAccessTTL, 0, "access token lifetime")
	flags.Duration(flagRefreshTTL, 0, "refresh token lifetime")
	flags.String(flagGatewayKeyID, "", "payment gateway key id; empty disables order creation")
	flags.String(flagGatewayKeySecret, "", "payment gateway key secret used to verify signatures")
	flags.String(flagGatewayBaseURL, "", "payment gateway API base URL")
	flags.String(flagGatewayVendor, "", "vendor recorded on gateway fee expenses")
	flags.Duration(flagGatewayTimeout, 0, "payment gateway request timeout")
	flags.String(flagRedisURL, "", "redis URL for payment claims; empty keeps claims in memory")
	flags.Duration(flagClaimTTL, 0, "lifetime of an in-flight payment claim")
	flags.String(flagAMQPURL, "", "AMQP broker URL for booking events; empty logs events only")
	flags.String(flagAMQPExchange, "", "AMQP topic exchange for booking events")
	flags.String(flagOTLPEndpoint, "", "OTLP gRPC collector endpoint; empty disables tracing")
	flags.Bool(flagOTLPInsecure, false, "dial the OTLP collector without TLS")
	flags.String(flagServiceName, "", "service name reported in traces")
	flags.String(flagTurfName, "", "turf name seeded into settings")
	flags.String(flagBookingInitials, "", "booking id prefix seeded into settings")
	flags.String(flagHourlyRate, "", "hourly rate seeded into settings")
	flags.String(flagBookingFeePerHour, "", "online booking fee per hour seeded into settings")
	flags.String(flagGatewayFeeRate, "", "gateway fee rate seeded into settings (e.g. 0.02)")
	flags.String(flagGSTRate, "", "tax rate on the gateway fee seeded into settings (e.g. 0.18)")
	flags.Int(flagOpenHour, 0, "first bookable hour seeded into settings")
	flags.Int(flagCloseHour, 0, "closing hour seeded into settings")
	flags.String(flagAdminName, "", "name of the seeded admin account")
	flags.String(flagAdminEmail, "", "email of the seeded admin account")
	flags.String(flagAdminPassword, "", "password of the seeded admin account")

	cmd.AddCommand(newMigrateCommand(cfg), newSeedAdminCommand(cfg))
	return cmd
}

// loadConfig reads flags, falling back to TURFD_* environment variables.
// Defaults are applied by config.Validate.
func loadConfig(cmd *cobra.Command, cfg *config.Config) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	cfg.Environment = strings.TrimSpace(v.GetString(flagEnvironment))
	cfg.ListenAddr = strings.TrimSpace(v.GetString(flagListenAddr))
	cfg.DatabaseURL = strings.TrimSpace(v.GetString(flagDatabaseURL))
	cfg.AllowedOrigins = config.ParseAllowedOrigins(v.GetString(flagAllowedOrigins))
	cfg.RequestTimeout = v.GetDuration(flagRequestTimeout)
	cfg.Location = strings.TrimSpace(v.GetString(flagLocation))
	cfg.JWTSecret = v.GetString(flagJWTSecret)
	cfg.JWTIssuer = strings.TrimSpace(v.GetString(flagJWTIssuer))
	cfg.AccessTTL = v.GetDuration(flagAccessTTL)
	cfg.RefreshTTL = v.GetDuration(flagRefreshTTL)
	cfg.GatewayKeyID = strings.TrimSpace(v.GetString(flagGatewayKeyID))
	cfg.GatewayKeySecret = v.GetString(flagGatewayKeySecret)
	cfg.GatewayBaseURL = strings.TrimSpace(v.GetString(flagGatewayBaseURL))
	cfg.GatewayVendor = strings.TrimSpace(v.GetString(flagGatewayVendor))
	cfg.GatewayTimeout = v.GetDuration(flagGatewayTimeout)
	cfg.RedisURL = strings.TrimSpace(v.GetString(flagRedisURL))
	cfg.ClaimTTL = v.GetDuration(flagClaimTTL)
	cfg.AMQPURL = strings.TrimSpace(v.GetString(flagAMQPURL))
	cfg.AMQPExchange = strings.TrimSpace(v.GetString(flagAMQPExchange))
	cfg.OTLPEndpoint = strings.TrimSpace(v.GetString(flagOTLPEndpoint))
	cfg.OTLPInsecure = v.GetBool(flagOTLPInsecure)
	cfg.ServiceName = strings.TrimSpace(v.GetString(flagServiceName))
	cfg.Turf = config.TurfDefaults{
		Name:              strings.TrimSpace(v.GetString(flagTurfName)),
		Initials:          strings.TrimSpace(v.GetString(flagBookingInitials)),
		HourlyRate:        strings.TrimSpace(v.GetString(flagHourlyRate)),
		BookingFeePerHour: strings.TrimSpace(v.GetString(flagBookingFeePerHour)),
		GatewayFeeRate:    strings.TrimSpace(v.GetString(flagGatewayFeeRate)),
		GSTRate:           strings.TrimSpace(v.GetString(flagGSTRate)),
		OpenHour:          v.GetInt(flagOpenHour),
		CloseHour:         v.GetInt(flagCloseHour),
	}
	cfg.AdminName = strings.TrimSpace(v.GetString(flagAdminName))
	cfg.AdminEmail = strings.TrimSpace(v.GetString(flagAdminEmail))
	cfg.AdminPassword = v.GetString(flagAdminPassword)
	return nil
}
