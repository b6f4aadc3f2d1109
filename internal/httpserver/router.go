package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/Skotchmaster/shopcart/internal/logging"
	authmw "github.com/Skotchmaster/shopcart/internal/middleware/auth"
	loggingmw "github.com/Skotchmaster/shopcart/internal/middleware/logging"
	"github.com/Skotchmaster/shopcart/internal/middleware/metrics"
	"github.com/Skotchmaster/shopcart/internal/session"
)

const (
	CSRFCookie = "XSRF-TOKEN"
	CSRFHeader = "X-CSRF-Token"
)

type ReadyCheck func(ctx context.Context) error

type Deps struct {
	AuthHandler    *AuthHTTP
	CatalogHandler *CatalogHTTP
	CartHandler    *CartHTTP
	UserHandler    *UserHTTP

	Sessions *session.Manager
	Metrics  *metrics.Metrics

	ReadyChecks     []ReadyCheck
	LoginRatePerMin int

	CSRF         bool
	CookieSecure bool
}

// New builds an echo instance with the shared middleware chain.
func New(base *slog.Logger, m *metrics.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewValidator()
	e.IPExtractor = echo.ExtractIPDirect()

	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(loggingmw.RequestLogger(base, "/health/live", "/health/ready", "/metrics"))
	if m != nil {
		e.Use(m.Middleware)
	}
	e.Use(middleware.CORS())
	return e
}

// IPExtractor returns the peer address unless the peer is one of the trusted
// proxy ranges, in which case the client address comes from X-Forwarded-For.
func IPExtractor(trustedCIDRs []string) (echo.IPExtractor, error) {
	if len(trustedCIDRs) == 0 {
		return echo.ExtractIPDirect(), nil
	}
	opts := make([]echo.TrustOption, 0, len(trustedCIDRs))
	for _, cidr := range trustedCIDRs {
		_, ipNet, err := net.ParseCIDR(strings.TrimSpace(cidr))
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", cidr, err)
		}
		opts = append(opts, echo.TrustIPRange(ipNet))
	}
	return echo.ExtractIPFromXFFHeader(opts...), nil
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", ready(d.ReadyChecks))
	if d.Metrics != nil {
		e.GET("/metrics", d.Metrics.Handler())
	}

	if d.CSRF {
		e.Use(csrfGuard(d.CookieSecure))
	}

	sessionMW := authmw.NewSessionMiddleware(d.Sessions)
	private := sessionMW.RequireSession

	e.POST("/login", d.AuthHandler.Login, loginLimiter(d.LoginRatePerMin))
	e.POST("/logout", d.AuthHandler.LogOut, private)

	api := e.Group("/api")

	users := api.Group("/users")
	users.POST("/add", d.UserHandler.Register)
	users.PUT("/update", d.UserHandler.Update, private)
	users.DELETE("/delete", d.UserHandler.Delete, private)

	products := api.Group("/products")
	products.GET("", d.CatalogHandler.GetProducts)
	products.GET("/:id", d.CatalogHandler.GetProduct)
	products.POST("/add", d.CatalogHandler.CreateProduct, private)
	products.PUT("/update/:id", d.CatalogHandler.PatchProduct, private)
	products.DELETE("/delete/:id", d.CatalogHandler.DeleteProduct, private)

	cart := api.Group("/cart", private)
	cart.GET("", d.CartHandler.GetCart)
	cart.POST("/add/:id", d.CartHandler.AddToCart)
	cart.DELETE("/remove/:id", d.CartHandler.DeleteFromCart)
	cart.POST("/checkout", d.CartHandler.Checkout)
}

func ready(checks []ReadyCheck) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		for _, check := range checks {
			if err := check(ctx); err != nil {
				logging.FromContext(ctx).Error("readiness_failed", "status", 503, "error", err)
				return c.JSON(http.StatusServiceUnavailable, echo.Map{"message": "not ready"})
			}
		}
		return c.NoContent(http.StatusOK)
	}
}

// loginLimiter allows perMin attempts per client IP per minute.
func loginLimiter(perMin int) echo.MiddlewareFunc {
	if perMin <= 0 {
		perMin = 30
	}
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(float64(perMin) / 60),
		Burst:     perMin,
		ExpiresIn: 3 * time.Minute,
	})
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			logging.FromContext(c.Request().Context()).Warn("login_rate_limited", "status", 429, "remote_ip", identifier)
			return echo.NewHTTPError(http.StatusTooManyRequests, "too many login attempts")
		},
	})
}

// csrfGuard applies double-submit CSRF checks to cookie-authenticated
// requests. Requests without a session cookie carry no ambient credential
// and are skipped.
func csrfGuard(secure bool) echo.MiddlewareFunc {
	return middleware.CSRFWithConfig(middleware.CSRFConfig{
		Skipper: func(c echo.Context) bool {
			ck, err := c.Cookie(authmw.CookieName)
			return err != nil || ck.Value == ""
		},
		TokenLookup:    "header:" + CSRFHeader,
		CookieName:     CSRFCookie,
		CookiePath:     "/",
		CookieSecure:   secure,
		CookieSameSite: http.SameSiteLaxMode,
		CookieMaxAge:   86400,
	})
}
