// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/warden-auth/warden/internal/auth"
	authpg "github.com/warden-auth/warden/internal/auth/postgres"
	"github.com/warden-auth/warden/internal/config"
	"github.com/warden-auth/warden/internal/observability"
	"github.com/warden-auth/warden/internal/store"
	"github.com/warden-auth/warden/internal/web"
)

const cookieName = "warden_sid"

// testEnv holds the database and a running API server.
type testEnv struct {
	ctx       context.Context
	cancel    context.CancelFunc
	container *postgres.PostgresContainer
	pool      *pgxpool.Pool
	server    *web.Server
	metrics   *observability.Metrics
	baseURL   string
}

func setupTestEnv() *testEnv {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	env := &testEnv{ctx: ctx, cancel: cancel}

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("warden_test"),
		postgres.WithUsername("warden"),
		postgres.WithPassword("warden"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	Expect(err).NotTo(HaveOccurred())
	env.container = container

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	Expect(err).NotTo(HaveOccurred())

	migrator, err := store.NewMigrator(connStr)
	Expect(err).NotTo(HaveOccurred())
	Expect(migrator.Up()).To(Succeed())
	Expect(migrator.Close()).To(Succeed())

	env.pool, err = store.Connect(ctx, connStr, store.ConnectOptions{})
	Expect(err).NotTo(HaveOccurred())

	logger := slog.New(slog.NewTextHandler(GinkgoWriter, nil))
	env.metrics = observability.NewMetrics(prometheus.NewRegistry())

	users := authpg.NewUserRepository(env.pool)
	sessions := authpg.NewSessionStore(env.pool, authpg.WithSessionTTL(time.Hour))
	hasher := auth.NewArgon2idHasher()

	authn, err := auth.NewAuthenticator(auth.AuthenticatorConfig{
		Strategy:      auth.StrategySession,
		ExcludedPaths: config.DefaultExcludedPaths,
		CookieName:    cookieName,
		Users:         users,
		Hasher:        hasher,
		Sessions:      sessions,
		Options: []auth.StrategyOption{
			auth.WithStrategyRecorder(env.metrics),
			auth.WithStrategyLogger(logger),
		},
	})
	Expect(err).NotTo(HaveOccurred())

	resets, err := auth.NewResetTokenManager(users, hasher, auth.WithResetRecorder(env.metrics))
	Expect(err).NotTo(HaveOccurred())

	svc, err := auth.NewService(auth.ServiceConfig{
		Authenticator: authn,
		Users:         users,
		Sessions:      sessions,
		Hasher:        hasher,
		Resets:        resets,
		Recorder:      env.metrics,
		Logger:        logger,
	})
	Expect(err).NotTo(HaveOccurred())

	handler := web.NewHandler(svc, web.Options{
		CookieName: cookieName,
		SessionTTL: time.Hour,
		Logger:     logger,
		Metrics:    env.metrics,
	})
	env.server = web.NewServer("127.0.0.1:0", handler, logger)
	_, err = env.server.Start()
	Expect(err).NotTo(HaveOccurred())
	env.baseURL = "http://" + env.server.Addr()

	return env
}

func (e *testEnv) teardown() {
	if e.server != nil {
		_ = e.server.Stop(context.Background())
	}
	if e.pool != nil {
		e.pool.Close()
	}
	if e.container != nil {
		_ = e.container.Terminate(context.Background())
	}
	e.cancel()
}

// client is an HTTP client with its own cookie jar.
type client struct {
	http    *http.Client
	baseURL string
}

func newClient(baseURL string) *client {
	jar, err := cookiejar.New(nil)
	Expect(err).NotTo(HaveOccurred())
	return &client{
		http:    &http.Client{Jar: jar, Timeout: 10 * time.Second},
		baseURL: baseURL,
	}
}

func (c *client) do(method, path string, form url.Values) (int, map[string]any) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequest(method, c.baseURL+path, body)
	Expect(err).NotTo(HaveOccurred())
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	Expect(err).NotTo(HaveOccurred())
	defer func() { _ = resp.Body.Close() }()

	var out map[string]any
	Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
	return resp.StatusCode, out
}

var _ = Describe("Session authentication against PostgreSQL", Ordered, func() {
	var env *testEnv

	BeforeAll(func() {
		env = setupTestEnv()
	})

	AfterAll(func() {
		if env != nil {
			env.teardown()
		}
	})

	It("registers, logs in, resets the password and logs out", func() {
		c := newClient(env.baseURL)

		status, _ := c.do(http.MethodGet, "/api/v1/users/me", nil)
		Expect(status).To(Equal(http.StatusUnauthorized))

		status, body := c.do(http.MethodPost, "/api/v1/users", url.Values{
			"email": {"frank@example.com"}, "password": {"first"},
		})
		Expect(status).To(Equal(http.StatusCreated))
		Expect(body["email"]).To(Equal("frank@example.com"))

		status, _ = c.do(http.MethodPost, "/api/v1/auth_session/login", url.Values{
			"email": {"frank@example.com"}, "password": {"first"},
		})
		Expect(status).To(Equal(http.StatusOK))

		status, body = c.do(http.MethodGet, "/api/v1/users/me", nil)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body["email"]).To(Equal("frank@example.com"))

		status, body = c.do(http.MethodPost, "/api/v1/reset_password", url.Values{
			"email": {"frank@example.com"},
		})
		Expect(status).To(Equal(http.StatusOK))
		token, _ := body["reset_token"].(string)
		Expect(token).NotTo(BeEmpty())

		status, _ = c.do(http.MethodPut, "/api/v1/reset_password", url.Values{
			"reset_token": {token}, "new_password": {"second"},
		})
		Expect(status).To(Equal(http.StatusOK))

		status, _ = c.do(http.MethodPut, "/api/v1/reset_password", url.Values{
			"reset_token": {token}, "new_password": {"third"},
		})
		Expect(status).To(Equal(http.StatusForbidden), "reset tokens are single use")

		status, _ = c.do(http.MethodDelete, "/api/v1/auth_session/logout", nil)
		Expect(status).To(Equal(http.StatusOK))

		status, _ = c.do(http.MethodGet, "/api/v1/users/me", nil)
		Expect(status).To(Equal(http.StatusUnauthorized))

		other := newClient(env.baseURL)
		status, _ = other.do(http.MethodPost, "/api/v1/auth_session/login", url.Values{
			"email": {"frank@example.com"}, "password": {"first"},
		})
		Expect(status).To(Equal(http.StatusUnauthorized))
		status, _ = other.do(http.MethodPost, "/api/v1/auth_session/login", url.Values{
			"email": {"frank@example.com"}, "password": {"second"},
		})
		Expect(status).To(Equal(http.StatusOK))
	})

	It("keeps sessions isolated between clients", func() {
		alice := newClient(env.baseURL)
		bob := newClient(env.baseURL)

		for _, email := range []string{"grace@example.com", "heidi@example.com"} {
			status, _ := alice.do(http.MethodPost, "/api/v1/users", url.Values{
				"email": {email}, "password": {"pw"},
			})
			Expect(status).To(Equal(http.StatusCreated))
		}

		status, _ := alice.do(http.MethodPost, "/api/v1/auth_session/login", url.Values{
			"email": {"grace@example.com"}, "password": {"pw"},
		})
		Expect(status).To(Equal(http.StatusOK))
		status, _ = bob.do(http.MethodPost, "/api/v1/auth_session/login", url.Values{
			"email": {"heidi@example.com"}, "password": {"pw"},
		})
		Expect(status).To(Equal(http.StatusOK))

		_, body := alice.do(http.MethodGet, "/api/v1/users/me", nil)
		Expect(body["email"]).To(Equal("grace@example.com"))
		_, body = bob.do(http.MethodGet, "/api/v1/users/me", nil)
		Expect(body["email"]).To(Equal("heidi@example.com"))

		status, _ = alice.do(http.MethodDelete, "/api/v1/auth_session/logout", nil)
		Expect(status).To(Equal(http.StatusOK))
		status, _ = bob.do(http.MethodGet, "/api/v1/users/me", nil)
		Expect(status).To(Equal(http.StatusOK))
	})

	It("records metrics for the traffic", func() {
		Expect(testutil.ToFloat64(env.metrics.Sessions.WithLabelValues(auth.EventSessionCreated))).
			To(BeNumerically(">=", 3))
		Expect(testutil.ToFloat64(env.metrics.HTTPRequests.WithLabelValues("register", "201"))).
			To(BeNumerically(">=", 3))
	})
})
