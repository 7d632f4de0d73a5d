package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/openbill/openbill/internal/audit"
	auditStore "github.com/openbill/openbill/internal/audit/store"
	"github.com/openbill/openbill/internal/auth"
	"github.com/openbill/openbill/internal/config"
	"github.com/openbill/openbill/internal/customer"
	customerStore "github.com/openbill/openbill/internal/customer/store"
	"github.com/openbill/openbill/internal/database"
	openbillHttp "github.com/openbill/openbill/internal/http"
	authHandler "github.com/openbill/openbill/internal/http/auth"
	customerHandler "github.com/openbill/openbill/internal/http/customer"
	invoiceHandler "github.com/openbill/openbill/internal/http/invoice"
	"github.com/openbill/openbill/internal/http/middleware"
	publicHandler "github.com/openbill/openbill/internal/http/public"
	templateHandler "github.com/openbill/openbill/internal/http/template"
	"github.com/openbill/openbill/internal/invoice"
	invoiceStore "github.com/openbill/openbill/internal/invoice/store"
	"github.com/openbill/openbill/internal/mailer"
	"github.com/openbill/openbill/internal/payment"
	"github.com/openbill/openbill/internal/ratelimit"
	ratelimitStore "github.com/openbill/openbill/internal/ratelimit/store"
	"github.com/openbill/openbill/internal/template"
	templateStore "github.com/openbill/openbill/internal/template/store"
	"github.com/openbill/openbill/internal/user"
	userStore "github.com/openbill/openbill/internal/user/store"
)

const (
	sendLimit  = 10
	sendWindow = time.Hour
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if cfg.Auth.JWTSecret == "" {
		slog.Error("JWT_SECRET is required")
		os.Exit(1)
	}

	db, err := database.New(cfg.ConnectionString())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var invoiceMailer invoice.Mailer = mailer.Discard{}

	if cfg.SMTP.Host != "" {
		smtp, err := mailer.NewSMTP(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Password, cfg.SMTP.From)
		if err != nil {
			slog.Error("failed to set up mailer", "error", err)
			os.Exit(1)
		}

		invoiceMailer = smtp
	}

	var invoiceOpts []invoice.Option

	var stripeWebhook *payment.Webhook

	if cfg.Stripe.SecretKey != "" {
		provider := payment.NewStripe(cfg.Stripe.SecretKey, cfg.Stripe.Currency, cfg.App.BaseURL)
		invoiceOpts = append(invoiceOpts, invoice.WithCheckout(provider))
		stripeWebhook = payment.NewWebhook(cfg.Stripe.WebhookSecret)
	} else {
		slog.Info("online payments disabled, STRIPE_SECRET_KEY not set")
	}

	var (
		tokens   = auth.New(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
		recorder = audit.NewRecorder(auditStore.New(db))
		limiter  = ratelimit.NewLimiter(ratelimitStore.New(db))

		userService     = user.NewService(userStore.New(db))
		customerService = customer.NewService(customerStore.New(db))
		templateService = template.NewService(templateStore.New(db))
		invoiceService  = invoice.NewService(
			invoiceStore.New(db), invoiceMailer, cfg.App.BaseURL, cfg.App.InvoicePrefix, invoiceOpts...)
	)

	var (
		authH     = authHandler.NewHandler(userService, tokens, recorder)
		invoiceH  = invoiceHandler.NewHandler(invoiceService, recorder, middleware.RateLimit(limiter, "send", sendLimit, sendWindow))
		customerH = customerHandler.NewHandler(customerService)
		templateH = templateHandler.NewHandler(templateService)
		publicH   = publicHandler.NewHandler(invoiceService, stripeWebhook)
	)

	router := openbillHttp.New(authH, invoiceH, customerH, templateH, publicH, tokens, limiter, cfg.Origins())

	addr := fmt.Sprintf(":%d", cfg.App.Port)
	slog.Info("starting server", "addr", addr, "app", cfg.App.Name)

	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	if err := server.ListenAndServe(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
