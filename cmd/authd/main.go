package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/keelhq/authd/pkg/config"
	"github.com/keelhq/authd/pkg/directory"
	"github.com/keelhq/authd/pkg/events"
	"github.com/keelhq/authd/pkg/exttoken"
	"github.com/keelhq/authd/pkg/invite"
	"github.com/keelhq/authd/pkg/login"
	"github.com/keelhq/authd/pkg/loginflow"
	loginflowapi "github.com/keelhq/authd/pkg/loginflow/api"
	"github.com/keelhq/authd/pkg/notification"
	"github.com/keelhq/authd/pkg/quota"
	"github.com/keelhq/authd/pkg/ratelimit"
	"github.com/keelhq/authd/pkg/session"
	"github.com/keelhq/authd/pkg/twofa"
	"github.com/keelhq/authd/pkg/user"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(".env")
	if err != nil {
		slog.Error("Failed to load configuration", "err", err)
		os.Exit(-1)
	}

	// User repository
	var repo user.Repository
	if cfg.Database.InMemory {
		slog.Info("Using in-memory user repository")
		repo = user.NewInMemoryRepository()
	} else {
		pool, err := pgxpool.New(context.Background(), cfg.Database.ToDatabaseURL())
		if err != nil {
			slog.Error("Failed creating dbpool",
				"db", cfg.Database.Database, "host", cfg.Database.Host,
				"port", cfg.Database.Port, "user", cfg.Database.User)
			os.Exit(-1)
		}
		repo = user.NewPostgresRepository(pool)
	}

	// Credential verifier
	loginOpts := []login.Option{
		login.WithPasswordHasher(&login.BcryptHasher{Cost: cfg.Login.BcryptCost}),
	}
	if cfg.Login.AuthMethod == string(login.AuthMethodLdap) {
		ldapClient := directory.NewLDAPClient(directory.LDAPConfig{
			URL:          cfg.Directory.URL,
			BindDN:       cfg.Directory.BindDN,
			BindPassword: cfg.Directory.BindPassword,
			BaseDN:       cfg.Directory.BaseDN,
			LoginFilter:  cfg.Directory.LoginFilter,
			SkipVerify:   cfg.Directory.SkipVerify,
		})
		loginOpts = append(loginOpts,
			login.WithAuthMethod(login.AuthMethodLdap),
			login.WithDirectoryClient(ldapClient))
		slog.Info("Directory authentication enabled", "url", cfg.Directory.URL)
	}
	loginService := login.NewLoginService(repo, loginOpts...)

	// External token verifier
	keyStore, err := buildKeyStore(cfg.External)
	if err != nil {
		slog.Error("Failed to configure external issuer", "err", err)
		os.Exit(-1)
	}
	tokenVerifier := exttoken.NewVerifier(keyStore)

	// Session manager with revocation
	revocations := session.NewRevocationList(time.Hour)
	sessionOpts := []session.Option{
		session.WithExpiry(cfg.Session.Expiry),
		session.WithRevocationList(revocations),
	}
	if cfg.Session.PreviousSecret != "" {
		sessionOpts = append(sessionOpts, session.WithPreviousSecret(cfg.Session.PreviousSecret))
	}
	sessionManager := session.NewManager(cfg.Session.Secret, cfg.Session.Issuer, cfg.Session.Audience, repo, sessionOpts...)
	defer sessionManager.Close()

	// Events and notices
	emitter := events.NewAsyncEmitter(256, events.LogHandler(logger))
	defer emitter.Close()

	notices := notification.NewManager()
	if cfg.SMTP.Host != "" {
		emailNotifier, err := notification.NewEmailNotifier(notification.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			TLS:      cfg.SMTP.TLS,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
		if err != nil {
			slog.Error("Failed to initialize email notifier", "err", err)
			os.Exit(-1)
		}
		notices.RegisterNotifier(notification.EmailSystem, emailNotifier)
		for noticeType, tmpl := range notification.DefaultTemplates() {
			if err := notices.RegisterNotice(noticeType, notification.EmailSystem, tmpl); err != nil {
				slog.Error("Failed to register notice template", "type", noticeType, "err", err)
			}
		}
		slog.Info("Email notices enabled", "host", cfg.SMTP.Host)
	}

	// Login flow
	flow := loginflow.NewService(&loginflow.ServiceDependencies{
		LoginService:     loginService,
		TwoFactorService: twofa.NewService(repo),
		TokenVerifier:    tokenVerifier,
		SessionManager:   sessionManager,
		UserRepository:   repo,
		Emitter:          emitter,
		Notices:          notices,
		Logger:           logger,
		Policy: loginflow.Policy{
			ExternalBypassMFA: cfg.Login.ExternalBypassMFA,
			DefaultRole:       user.Role(cfg.Login.DefaultRole),
		},
	})

	// Invite resolution
	seatChecker := quota.NewSeatChecker(repo, cfg.Quota.UserLimit)
	resolver := invite.NewResolver(repo, seatChecker, emitter, logger)

	// Rate limiting
	var limiter *ratelimit.Middleware
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.NewMiddleware(&ratelimit.Config{
			PerIPEnabled: true,
			PerIPLimit:   cfg.RateLimit.PerIPLimit,
			PerIPWindow:  time.Duration(cfg.RateLimit.PerIPWindowSeconds) * time.Second,

			PerIdentifierEnabled: true,
			PerIdentifierLimit:   cfg.RateLimit.PerIDLimit,
			PerIdentifierWindow:  time.Duration(cfg.RateLimit.PerIDWindowSeconds) * time.Second,

			EvictInterval:  time.Duration(cfg.RateLimit.EvictIntervalMinute) * time.Minute,
			IncludeHeaders: true,
		})
		defer limiter.Close()
	}

	cookies := session.NewCookieSetter(cfg.Session.CookieHttpOnly, cfg.Session.CookieSecure)
	handler := loginflowapi.NewHandler(flow, resolver, cookies, limiter)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Route("/auth", func(r chi.Router) {
		handler.Routes(r)
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	slog.Info("Starting authentication service", "addr", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		slog.Error("Server stopped", "err", err)
		os.Exit(-1)
	}
}

// buildKeyStore turns the issuer config into a key store for the token
// verifier. HMAC methods take the shared secret directly; RSA/ECDSA
// methods expect a PEM public key.
func buildKeyStore(cfg config.ExternalIssuerConfig) (*exttoken.StaticKeyStore, error) {
	issuers := make(map[string]exttoken.IssuerKey)
	if cfg.Issuer != "" {
		methods := strings.Split(cfg.Methods, ",")
		for i := range methods {
			methods[i] = strings.TrimSpace(methods[i])
		}

		var key interface{}
		switch {
		case strings.HasPrefix(methods[0], "HS"):
			key = []byte(cfg.Secret)
		case strings.HasPrefix(methods[0], "RS"), strings.HasPrefix(methods[0], "PS"):
			parsed, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.Secret))
			if err != nil {
				return nil, fmt.Errorf("failed to parse issuer public key: %w", err)
			}
			key = parsed
		case strings.HasPrefix(methods[0], "ES"):
			parsed, err := jwt.ParseECPublicKeyFromPEM([]byte(cfg.Secret))
			if err != nil {
				return nil, fmt.Errorf("failed to parse issuer public key: %w", err)
			}
			key = parsed
		default:
			return nil, fmt.Errorf("unsupported signing method: %s", methods[0])
		}

		issuers[cfg.Issuer] = exttoken.IssuerKey{Key: key, Methods: methods}
		slog.Info("Trusted external issuer configured", "issuer", cfg.Issuer, "methods", methods)
	}
	return exttoken.NewStaticKeyStore(issuers), nil
}
