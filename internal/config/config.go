package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds environment-driven configuration. It is read once at start
// and never reloaded.
type Config struct {
	AppEnv   string
	LogLevel string
	Addr     string

	StoreDriver   string
	DatabaseURL   string
	MongoURI      string
	MongoDatabase string
	RedisAddr     string

	KafkaBrokers []string
	KafkaTopic   string

	JWTSecret string

	NativeCurrency     string
	CurrencyRate       float64
	PlatformFeePercent float64
	GatewayTimeout     time.Duration

	PayPal   PayPalConfig
	Razorpay RazorpayConfig
}

type PayPalConfig struct {
	ClientID     string
	ClientSecret string
	Mode         string
	Currency     string
}

type RazorpayConfig struct {
	KeyID     string
	KeySecret string
}

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// DefaultCurrencyRate is the sandbox conversion rate, in native currency units
// per one unit of the PayPal charge currency.
const DefaultCurrencyRate = 83.0

func Load() Config {
	return Config{
		AppEnv:   getEnv("APP_ENV", "dev"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Addr:     getEnv("HTTP_ADDR", getEnv("PET_SHOP_ADDR", ":8080")),

		StoreDriver:   strings.ToLower(getEnv("STORE_DRIVER", DriverPostgres)),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGO_DATABASE", "petshop"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),

		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "orders.paid"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		NativeCurrency:     strings.ToUpper(getEnv("NATIVE_CURRENCY", "INR")),
		CurrencyRate:       getEnvFloat("CURRENCY_RATE", DefaultCurrencyRate),
		PlatformFeePercent: getEnvFloat("PLATFORM_FEE_PERCENT", 0),
		GatewayTimeout:     getEnvDuration("GATEWAY_TIMEOUT", 15*time.Second),

		PayPal: PayPalConfig{
			ClientID:     os.Getenv("PAYPAL_CLIENT_ID"),
			ClientSecret: os.Getenv("PAYPAL_CLIENT_SECRET"),
			Mode:         strings.ToLower(getEnv("PAYPAL_MODE", "sandbox")),
			Currency:     strings.ToUpper(getEnv("PAYPAL_CURRENCY", "USD")),
		},
		Razorpay: RazorpayConfig{
			KeyID:     os.Getenv("RAZORPAY_KEY_ID"),
			KeySecret: os.Getenv("RAZORPAY_KEY_SECRET"),
		},
	}
}

// Validate reports configuration that would make the server misbehave at
// runtime rather than fail at start.
func (c Config) Validate() error {
	var errs []error
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is not set"))
		}
	case DriverMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is not set"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is not set"))
	}
	if c.PayPal.Mode != "sandbox" && c.PayPal.Mode != "live" {
		errs = append(errs, fmt.Errorf("PAYPAL_MODE must be sandbox or live, got %q", c.PayPal.Mode))
	}
	if c.CurrencyRate <= 0 {
		errs = append(errs, errors.New("CURRENCY_RATE must be positive"))
	}
	if c.PlatformFeePercent < 0 || c.PlatformFeePercent >= 100 {
		errs = append(errs, errors.New("PLATFORM_FEE_PERCENT must be in [0, 100)"))
	}
	return errors.Join(errs...)
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func splitList(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
