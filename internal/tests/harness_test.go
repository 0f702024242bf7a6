package tests

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/maksimzayats/fastdjango/internal/auth"
	"github.com/maksimzayats/fastdjango/internal/db"
	httphandler "github.com/maksimzayats/fastdjango/internal/http"
	"github.com/maksimzayats/fastdjango/internal/http/handlers"
	"github.com/maksimzayats/fastdjango/internal/middleware"
	"github.com/maksimzayats/fastdjango/internal/ratelimit"
	"github.com/maksimzayats/fastdjango/internal/repo"
	"github.com/maksimzayats/fastdjango/internal/request"
	_ "github.com/lib/pq"
)

// testServer holds the full stack for integration tests: Postgres from
// DATABASE_URL, Redis from an in-process miniredis.
type testServer struct {
	Server      *httptest.Server
	DB          *sql.DB
	Redis       *miniredis.Miniredis
	RefreshRepo repo.RefreshRepo
	UserRepo    repo.UserRepo
}

// newTestServer wires the application against the test database and an
// in-process Redis. quotaPerMin keeps the throttle quota small so limit
// tests stay fast.
func newTestServer(t *testing.T, quotaPerMin int) *testServer {
	t.Helper()

	ctx := context.Background()
	database, err := db.Open(ctx, os.Getenv("DATABASE_URL"))
	require.NoError(t, err, "database open must succeed; check DATABASE_URL and that the test DB exists")
	t.Cleanup(func() { database.Close() })

	require.NoError(t, RunMigrations(database), "migrations must run successfully")

	mr, err := miniredis.Run()
	require.NoError(t, err, "miniredis must start")
	t.Cleanup(mr.Close)

	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	userRepo := repo.NewUserRepo(database)
	refreshRepo := repo.NewRefreshRepo(database)

	jwtService := auth.NewJWTService(os.Getenv("JWT_SECRET"), 15*time.Minute)
	userService := auth.NewUserService(userRepo)
	sessionService := auth.NewRefreshSessionService(refreshRepo, 30*24*time.Hour)

	requestInfo := request.NewInfo(0)
	limiter := ratelimit.NewRedisLimiter(redisClient, ratelimit.PerMinute(quotaPerMin))
	throttler := middleware.NewThrottler(limiter, requestInfo, false)

	userHandler := handlers.NewUserHandler(userService, sessionService, jwtService, requestInfo)
	router := httphandler.NewRouter(userHandler, jwtService, userRepo, throttler)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testServer{
		Server:      server,
		DB:          database,
		Redis:       mr,
		RefreshRepo: refreshRepo,
		UserRepo:    userRepo,
	}
}

func (s *testServer) BaseURL() string { return s.Server.URL }

func (s *testServer) Truncate(t *testing.T) {
	t.Helper()
	require.NoError(t, TruncateTables(context.Background(), s.DB), "truncate tables")
	s.Redis.FlushAll()
}

// readBody drains and returns the response body as a string.
func readBody(resp *http.Response) string {
	b, _ := io.ReadAll(resp.Body)
	return string(b)
}

// jsonBody marshals body into a reader for request construction.
func jsonBody(t *testing.T, body any) *bytes.Reader {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	return bytes.NewReader(b)
}
