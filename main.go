package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/namprobe/NekoViBE-sub001/internal/application/checkout"
	"github.com/namprobe/NekoViBE-sub001/internal/application/reconcile"
	"github.com/namprobe/NekoViBE-sub001/internal/application/shipment"
	domcart "github.com/namprobe/NekoViBE-sub001/internal/domain/cart"
	domcoupon "github.com/namprobe/NekoViBE-sub001/internal/domain/coupon"
	dompayment "github.com/namprobe/NekoViBE-sub001/internal/domain/payment"
	domproduct "github.com/namprobe/NekoViBE-sub001/internal/domain/product"
	domshipping "github.com/namprobe/NekoViBE-sub001/internal/domain/shipping"
	domuser "github.com/namprobe/NekoViBE-sub001/internal/domain/user"
	"github.com/namprobe/NekoViBE-sub001/internal/infrastructure/audit"
	"github.com/namprobe/NekoViBE-sub001/internal/infrastructure/carrier/ghn"
	"github.com/namprobe/NekoViBE-sub001/internal/infrastructure/gateway/momo"
	"github.com/namprobe/NekoViBE-sub001/internal/infrastructure/gateway/vnpay"
	"github.com/namprobe/NekoViBE-sub001/internal/infrastructure/id"
	"github.com/namprobe/NekoViBE-sub001/internal/infrastructure/memory"
	obsprovider "github.com/namprobe/NekoViBE-sub001/internal/infrastructure/observability"
	"github.com/namprobe/NekoViBE-sub001/internal/infrastructure/observability/oteltrace"
	"github.com/namprobe/NekoViBE-sub001/internal/infrastructure/observability/prometrics"
	"github.com/namprobe/NekoViBE-sub001/internal/infrastructure/observability/zaplogger"
	"github.com/namprobe/NekoViBE-sub001/internal/infrastructure/outbox"
	kafkaoutbox "github.com/namprobe/NekoViBE-sub001/internal/infrastructure/outbox/kafka"
	"github.com/namprobe/NekoViBE-sub001/internal/infrastructure/postgres"
	"github.com/namprobe/NekoViBE-sub001/internal/infrastructure/redisrepo"
	"github.com/namprobe/NekoViBE-sub001/internal/observability"
	"github.com/namprobe/NekoViBE-sub001/internal/pkg/config"
	httppresentation "github.com/namprobe/NekoViBE-sub001/internal/presentation/http"
	"github.com/namprobe/NekoViBE-sub001/internal/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	loader, err := config.Load(".env")
	if err != nil {
		panic(err)
	}
	cfg := loader.Current()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "storefront"
	}

	logger := zaplogger.New(observability.F("service", serviceName))
	defer func() {
		if s, ok := logger.(interface{ Sync() error }); ok {
			_ = s.Sync()
		}
	}()

	loader.Watch(func(updated *config.Config) {
		logger.Info("config_reloaded", observability.F("server_port", updated.ServerPort))
	})

	tel := obsprovider.New(
		oteltrace.New(serviceName),
		logger,
		buildCounters(),
		buildHistograms(),
	)

	// Authoritative storage. Postgres when configured, an in-process
	// transactional store otherwise (demo mode gets a seeded catalog).
	var (
		uow   storage.UnitOfWork
		carts domcart.Repository
	)
	if cfg.DBHost != "" {
		db, err := postgres.Open(cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)
		if err != nil {
			logger.Error("postgres_open_failed", observability.F("error", err.Error()))
			os.Exit(1)
		}
		uow = postgres.NewUnitOfWork(db)
	} else {
		uow = newMemoryStorage()
	}
	if cfg.RedisAddr != "" {
		carts = redisrepo.NewCartRepository(redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}))
	} else {
		carts = memory.NewCartRepository()
	}

	// In-process event bus: the audit trail always listens, and when Kafka
	// brokers are configured every event is relayed to the topic as well.
	bus := outbox.NewBus(logger)
	auditWorker := audit.New(bus, logger)
	auditWorker.Start()

	var kafkaPub *kafkaoutbox.Publisher
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		topic := cfg.KafkaTopic
		if topic == "" {
			topic = "storefront.orders"
		}
		kafkaPub = kafkaoutbox.NewPublisher(brokers, topic, logger)
		for _, name := range eventNames() {
			bus.Subscribe(name, kafkaPub.Publish)
		}
	}
	bus.Start(context.Background())
	defer bus.Stop(context.Background())
	if kafkaPub != nil {
		defer func() { _ = kafkaPub.Close() }()
	}

	vnpayGW := vnpay.New(vnpay.Config{
		TmnCode:    cfg.VNPayTmnCode,
		HashSecret: cfg.VNPayHashSecret,
		PayURL:     cfg.VNPayPayURL,
		ReturnURL:  cfg.VNPayReturnURL,
	})
	momoGW, err := momo.New(momo.Config{
		PartnerCode: cfg.MoMoPartnerCode,
		AccessKey:   cfg.MoMoAccessKey,
		SecretKey:   cfg.MoMoSecretKey,
		Endpoint:    cfg.MoMoEndpoint,
		RedirectURL: cfg.MoMoRedirectURL,
		IPNURL:      cfg.MoMoIPNURL,
		AllowedIPs:  cfg.MoMoAllowList(),
	}, nil)
	if err != nil {
		logger.Error("momo_config_invalid", observability.F("error", err.Error()))
		os.Exit(1)
	}
	carrier := ghn.New(ghn.Config{
		Token:        cfg.GHNToken,
		ShopID:       cfg.GHNShopID,
		BaseURL:      cfg.GHNBaseURL,
		FromDistrict: cfg.GHNFromDistrict,
	}, nil)

	gateways := dompayment.Registry{
		dompayment.MethodVNPay: vnpayGW,
		dompayment.MethodMoMo:  momoGW,
	}
	providers := domshipping.Registry{
		ghn.ProviderCode: carrier,
	}

	placeUC := checkout.NewPlaceOrderUseCase(uow, carts, gateways, id.NewUUIDGenerator(), bus, tel)
	compensator := reconcile.NewCompensator(providers, tel)
	reconcileUC := reconcile.NewPaymentCallbackUseCase(uow, compensator, providers, bus, tel)
	shipmentUC := shipment.NewCarrierCallbackUseCase(uow, bus, tel)

	handler := httppresentation.NewHandler(placeUC, reconcileUC, shipmentUC, vnpayGW, momoGW, carrier, tel)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router())

	port := cfg.ServerPort
	if port == "" {
		port = "8080"
	}
	server := &http.Server{
		Addr:    ":" + port,
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("http_server_start", observability.F("addr", server.Addr))
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_server_error", observability.F("error", err.Error()))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_server_shutdown_error", observability.F("error", err.Error()))
	} else {
		logger.Info("http_server_stopped")
	}
}

func buildCounters() map[observability.MetricKey]observability.Counter {
	reg := prometrics.New("", "")
	return map[observability.MetricKey]observability.Counter{
		observability.MUsecaseRequests: reg.Counter(
			string(observability.MUsecaseRequests),
			"Total number of use case invocations.",
			"use_case", "outcome",
		),
		observability.MHTTPRequests: reg.Counter(
			string(observability.MHTTPRequests),
			"Total number of HTTP requests handled.",
			"method", "route", "status",
		),
		observability.MExternalRequests: reg.Counter(
			string(observability.MExternalRequests),
			"Total number of calls to external providers.",
			"peer", "endpoint", "outcome",
		),
	}
}

func buildHistograms() map[observability.MetricKey]observability.Histogram {
	reg := prometrics.New("", "")
	return map[observability.MetricKey]observability.Histogram{
		observability.MUsecaseDuration: reg.Histogram(
			string(observability.MUsecaseDuration),
			"Duration of use case execution in seconds.",
			prometheus.DefBuckets,
			"use_case",
		),
		observability.MHTTPRequestDuration: reg.Histogram(
			string(observability.MHTTPRequestDuration),
			"Duration of HTTP request handling in seconds.",
			prometheus.DefBuckets,
			"method", "route", "status",
		),
		observability.MExternalRequestDuration: reg.Histogram(
			string(observability.MExternalRequestDuration),
			"Duration of external provider calls in seconds.",
			prometheus.DefBuckets,
			"peer", "endpoint",
		),
	}
}

func eventNames() []string {
	return []string{
		"order.placed",
		"order.payment_reconciled",
		"order.shipment_updated",
	}
}

// newMemoryStorage wires the in-process store with a small demo catalog so
// the API is exercisable without Postgres.
func newMemoryStorage() storage.UnitOfWork {
	orders := memory.NewOrderRepository()
	payments := memory.NewPaymentRepository()
	products := memory.NewProductRepository()
	coupons := memory.NewCouponRepository()
	shipments := memory.NewShippingRepository()
	users := memory.NewUserRepository()

	now := time.Now().UTC()
	users.Seed(&domuser.User{
		ID:      "demo-user",
		Name:    "Demo User",
		Email:   "demo@example.com",
		Phone:   "0900000000",
		Address: "1 Demo Street",
		Active:  true,
	})
	products.Seed(
		&domproduct.Product{
			ID:            "demo-product",
			Name:          "Demo Product",
			Price:         decimal.NewFromInt(100),
			StockQuantity: 50,
			Active:        true,
			UpdatedAt:     now,
		},
	)
	coupons.Seed(
		[]*domcoupon.Coupon{{
			Code:           "WELCOME10",
			DiscountType:   domcoupon.DiscountPercentage,
			DiscountValue:  decimal.NewFromInt(10),
			MinOrderAmount: decimal.NewFromInt(150),
			ValidFrom:      now.AddDate(0, -1, 0),
			ValidTo:        now.AddDate(0, 1, 0),
			UsageLimit:     100,
			Active:         true,
			UpdatedAt:      now,
		}},
		[]*domcoupon.UserCoupon{{
			ID:         "demo-grant",
			UserID:     "demo-user",
			CouponCode: "WELCOME10",
			UpdatedAt:  now,
		}},
	)
	shipments.SeedMethods(&domshipping.Method{
		ID:           "ghn-standard",
		Name:         "GHN Standard",
		ProviderCode: ghn.ProviderCode,
		Active:       true,
	})

	return memory.NewUnitOfWork(orders, payments, products, coupons, shipments, users)
}
