package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/wichananm65/pet-shop-storefront/internal/address"
	"github.com/wichananm65/pet-shop-storefront/internal/cart"
	"github.com/wichananm65/pet-shop-storefront/internal/checkout"
	"github.com/wichananm65/pet-shop-storefront/internal/config"
	"github.com/wichananm65/pet-shop-storefront/internal/database"
	"github.com/wichananm65/pet-shop-storefront/internal/events"
	"github.com/wichananm65/pet-shop-storefront/internal/gateway"
	"github.com/wichananm65/pet-shop-storefront/internal/gateway/paypal"
	"github.com/wichananm65/pet-shop-storefront/internal/gateway/razorpay"
	"github.com/wichananm65/pet-shop-storefront/internal/logger"
	"github.com/wichananm65/pet-shop-storefront/internal/metrics"
	"github.com/wichananm65/pet-shop-storefront/internal/order"
	"github.com/wichananm65/pet-shop-storefront/internal/pricing"
	"github.com/wichananm65/pet-shop-storefront/internal/product"
	"github.com/wichananm65/pet-shop-storefront/internal/user"
	"github.com/wichananm65/pet-shop-storefront/internal/webhook"
)

const (
	shutdownTimeout = 10 * time.Second
	pricingWorkers  = 8
)

func serveCmd() *cobra.Command {
	var skipMigrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			log := logger.New(logger.Options{
				Service: "storefront",
				Env:     cfg.AppEnv,
				Level:   cfg.LogLevel,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log, !skipMigrate)
		},
	}
	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not apply postgres migrations at start")
	return cmd
}

// stores groups the repositories of one STORE_DRIVER.
type stores struct {
	products  product.Repository
	carts     cart.Repository
	orders    order.Repository
	addresses address.Repository
	ping      func(ctx context.Context) error
	close     func(ctx context.Context) error
}

func openStores(ctx context.Context, cfg config.Config, migrate bool) (*stores, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		db, err := database.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		carts := cart.NewMongoRepository(db)
		orders := order.NewMongoRepository(db)
		addresses := address.NewMongoRepository(db)
		for _, idx := range []interface {
			CreateIndexes(context.Context) error
		}{carts, orders, addresses} {
			if err := idx.CreateIndexes(ctx); err != nil {
				_ = db.Client().Disconnect(ctx)
				return nil, err
			}
		}
		return &stores{
			products:  product.NewMongoRepository(db),
			carts:     carts,
			orders:    orders,
			addresses: addresses,
			ping:      func(ctx context.Context) error { return db.Client().Ping(ctx, nil) },
			close:     func(ctx context.Context) error { return db.Client().Disconnect(ctx) },
		}, nil

	default:
		db, err := database.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if migrate {
			if err := database.MigrateUp(db); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		return &stores{
			products:  product.NewPostgresRepository(db),
			carts:     cart.NewPostgresRepository(db),
			orders:    order.NewPostgresRepository(db),
			addresses: address.NewPostgresRepository(db),
			ping:      db.PingContext,
			close:     func(context.Context) error { return db.Close() },
		}, nil
	}
}

func serve(ctx context.Context, cfg config.Config, log *slog.Logger, migrate bool) error {
	st, err := openStores(ctx, cfg, migrate)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := st.close(context.Background()); err != nil {
			log.Error("close store", "error", err)
		}
	}()

	carts := st.carts
	var dedupe webhook.Deduper = webhook.NewMemoryDeduper()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		carts = cart.NewCachedRepository(st.carts, cart.NewRedisCache(rdb), log)
		dedupe = webhook.NewRedisDeduper(rdb)
	} else {
		log.Warn("REDIS_ADDR not set: cart cache disabled, webhook dedupe is per process")
	}

	var publisher events.Publisher = events.Noop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error("close event publisher", "error", err)
		}
	}()

	httpClient := gateway.NewHTTPClient(cfg.GatewayTimeout)
	pp := paypal.New(paypal.Config{
		ClientID:     cfg.PayPal.ClientID,
		ClientSecret: cfg.PayPal.ClientSecret,
		Mode:         cfg.PayPal.Mode,
		Currency:     cfg.PayPal.Currency,
	}, httpClient)
	rp := razorpay.New(razorpay.Config{
		KeyID:     cfg.Razorpay.KeyID,
		KeySecret: cfg.Razorpay.KeySecret,
		Currency:  cfg.NativeCurrency,
	}, httpClient)
	gateways := gateway.NewRegistry(gateway.WithBreaker(pp, log), gateway.WithBreaker(rp, log))
	log.Warn("webhook signatures are not verified; webhook events are trusted as delivered",
		"gateway", paypal.Name)

	m := metrics.New()
	products := product.NewService(st.products)
	orders := order.NewService(st.orders, cfg.PlatformFeePercent)
	addresses := address.NewService(st.addresses)
	cartService := cart.NewService(carts, products)
	checkoutService := checkout.NewService(checkout.Deps{
		Carts:     cartService,
		Quoter:    pricing.NewResolver(products, pricingWorkers),
		Converter: pricing.NewConverter(cfg.NativeCurrency, map[string]float64{cfg.PayPal.Currency: cfg.CurrencyRate}),
		Gateways:  gateways,
		Orders:    orders,
		Addresses: addresses,
		Events:    publisher,
		Metrics:   m,
		Log:       log,
	})

	app := fiber.New(fiber.Config{
		AppName:      "storefront",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.Middleware(log))
	app.Use(m.Middleware())
	setupCORS(app)

	app.Get("/health", func(c *fiber.Ctx) error {
		pingCtx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := st.ping(pingCtx); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", m.Handler())

	// Webhooks carry no user identity and are mounted before the JWT check.
	webhook.NewHandler(checkoutService, paypal.Name, dedupe, m, log).RegisterRoutes(app)

	app.Use(user.Middleware(cfg.JWTSecret))
	product.NewHandler(products).RegisterPublicRoutes(app)
	cart.NewHandler(cartService).RegisterRoutes(app)
	order.NewHandler(orders).RegisterRoutes(app)
	address.NewHandler(addresses).RegisterProtectedRoutes(app)
	checkout.NewHandler(checkoutService, paypal.Name, razorpay.Name).RegisterRoutes(app)

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.Addr, "store", cfg.StoreDriver, "gateways", gateways.Names())
		errCh <- app.Listen(cfg.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

func setupCORS(app *fiber.App) {
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, " + user.GuestTokenHeader,
	}))
}
