package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/escrow/internal/apperr"
	"github.com/congo-pay/escrow/internal/auth"
	"github.com/congo-pay/escrow/internal/logging"
	"github.com/congo-pay/escrow/internal/metrics"
)

const testSecret = "test-secret"

func newApp() *fiber.App {
	return fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logging.Discard())})
}

func whoami(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"holder": auth.Holder(c)})
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestHolderAuthBearerToken(t *testing.T) {
	verifier, err := auth.NewVerifier(testSecret)
	require.NoError(t, err)

	app := newApp()
	app.Use(HolderAuth(verifier, false))
	app.Get("/me", whoami)

	token, err := auth.SignHS256("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", []byte(testSecret), "test", time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", decode(t, resp)["holder"])

	req = httptest.NewRequest(fiber.MethodGet, "/me", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer not-a-token")
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest(fiber.MethodGet, "/me", nil)
	req.Header.Set(HolderHeader, "H1")
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "header must be ignored unless trusted")
}

func TestHolderAuthTrustedHeader(t *testing.T) {
	app := newApp()
	app.Use(HolderAuth(nil, true))
	app.Get("/me", whoami)

	req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
	req.Header.Set(HolderHeader, " H1 ")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "H1", decode(t, resp)["holder"])

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/me", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHolderAuthHeaderValueOwnsItsBytes(t *testing.T) {
	app := newApp()
	app.Use(HolderAuth(nil, true))
	var seen []string
	app.Get("/me", func(c *fiber.Ctx) error {
		seen = append(seen, auth.Holder(c))
		return c.SendStatus(http.StatusNoContent)
	})

	for _, h := range []string{"H1", "Q7"} {
		req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
		req.Header.Set(HolderHeader, h)
		resp, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)
	}
	require.Equal(t, []string{"H1", "Q7"}, seen)
}

func TestSubmitRateLimit(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	app := newApp()
	app.Use(HolderAuth(nil, true))
	app.Post("/identities", SubmitRateLimit(cache, 2), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusCreated)
	})

	send := func(h string) int {
		req := httptest.NewRequest(fiber.MethodPost, "/identities", nil)
		req.Header.Set(HolderHeader, h)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	require.Equal(t, http.StatusCreated, send("H1"))
	require.Equal(t, http.StatusCreated, send("H1"))
	require.Equal(t, http.StatusTooManyRequests, send("H1"))
	require.Equal(t, http.StatusCreated, send("H2"), "limits are per holder")

	mr.FastForward(time.Minute + time.Second)
	require.Equal(t, http.StatusCreated, send("H1"), "window should reset")
}

func TestErrorHandlerRendersDomainErrors(t *testing.T) {
	app := newApp()
	app.Get("/validation", func(*fiber.Ctx) error {
		return apperr.Validation("test", "amount", "amount must be positive")
	})
	app.Get("/state", func(*fiber.Ctx) error {
		return apperr.InvalidState("test", "funds were already withdrawn")
	})
	app.Get("/boom", func(*fiber.Ctx) error {
		return errors.New("connection reset by peer")
	})
	app.Get("/fiber", func(*fiber.Ctx) error {
		return fiber.NewError(http.StatusTooManyRequests, "slow down")
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/validation", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode(t, resp)["error"].(map[string]any)
	require.Equal(t, "validation_error", body["code"])
	require.Equal(t, "amount", body["field"])

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/state", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, "invalid_state", decode(t, resp)["error"].(map[string]any)["code"])

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/boom", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body = decode(t, resp)["error"].(map[string]any)
	require.Equal(t, "internal_error", body["code"])
	require.Equal(t, "internal error", body["message"], "infrastructure details must not leak")

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/fiber", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.Equal(t, "rate_limited", decode(t, resp)["error"].(map[string]any)["code"])
}

func TestAccessLogCountsRenderedStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	app := newApp()
	app.Use(RequestID())
	app.Use(AccessLog(logging.Discard(), m))
	app.Get("/missing", func(*fiber.Ctx) error {
		return apperr.NotFound("test", "campaign 9 not found")
	})
	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) })

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/missing", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get(requestIDHeader))

	_, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/ok", nil))
	require.NoError(t, err)

	require.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("GET", "404")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("GET", "200")))
}
