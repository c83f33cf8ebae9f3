package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/criske/my-git-feed-server/internal/config"
	"github.com/criske/my-git-feed-server/internal/provider"
	"github.com/criske/my-git-feed-server/internal/server"
	"github.com/criske/my-git-feed-server/internal/testutil"
	"github.com/criske/my-git-feed-server/pkg/cache"
	"github.com/criske/my-git-feed-server/pkg/client"
	"github.com/criske/my-git-feed-server/pkg/pagination"
	"github.com/criske/my-git-feed-server/pkg/ratelimit"
)

func setupTestRedis(t *testing.T) (string, func()) {
	if testing.Short() {
		t.Skip("Skipping Redis container test in short mode")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cleanup := func() {
		_ = redisC.Terminate(ctx)
	}

	return host + ":" + port.Port(), cleanup
}

func testConfig(t *testing.T, vars map[string]string) config.Config {
	t.Helper()
	cfg, err := config.LoadFrom(vars)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	return cfg
}

func TestRedisOptions(t *testing.T) {
	tests := []struct {
		name         string
		vars         map[string]string
		wantAddr     string
		wantPassword string
		wantDB       int
		wantErr      bool
	}{
		{
			name:     "plain address",
			vars:     map[string]string{"REDIS_URL": "cache:6380", "REDIS_DB": "2"},
			wantAddr: "cache:6380",
			wantDB:   2,
		},
		{
			name:         "url",
			vars:         map[string]string{"REDIS_URL": "redis://:secret@cache:6379/3"},
			wantAddr:     "cache:6379",
			wantPassword: "secret",
			wantDB:       3,
		},
		{
			name:         "password override",
			vars:         map[string]string{"REDIS_URL": "redis://:secret@cache:6379/0", "REDIS_PASSWORD": "other"},
			wantAddr:     "cache:6379",
			wantPassword: "other",
		},
		{
			name:    "bad scheme",
			vars:    map[string]string{"REDIS_URL": "http://cache:6379"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := redisOptions(testConfig(t, tt.vars))
			if (err != nil) != tt.wantErr {
				t.Fatalf("redisOptions() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if opts.Addr != tt.wantAddr {
				t.Errorf("Addr = %q, want %q", opts.Addr, tt.wantAddr)
			}
			if opts.Password != tt.wantPassword {
				t.Errorf("Password = %q, want %q", opts.Password, tt.wantPassword)
			}
			if opts.DB != tt.wantDB {
				t.Errorf("DB = %d, want %d", opts.DB, tt.wantDB)
			}
		})
	}
}

func TestNewStore_Memory(t *testing.T) {
	cfg := testConfig(t, map[string]string{"CACHE_BACKEND": "memory"})

	store, ready, err := newStore(context.Background(), cfg)
	if err != nil {
		t.Fatalf("newStore() error = %v", err)
	}
	defer store.Close()

	if _, ok := store.(*cache.MemoryStore); !ok {
		t.Errorf("store = %T, want *cache.MemoryStore", store)
	}
	if ready != nil {
		t.Error("memory backend should not have a ready check")
	}
}

func TestNewStore_RedisUnreachable(t *testing.T) {
	cfg := testConfig(t, map[string]string{"REDIS_URL": "127.0.0.1:1"})

	if _, _, err := newStore(context.Background(), cfg); err == nil {
		t.Fatal("expected connection error")
	}
}

func TestNewStore_Redis(t *testing.T) {
	addr, cleanup := setupTestRedis(t)
	defer cleanup()

	cfg := testConfig(t, map[string]string{"REDIS_URL": addr})
	store, ready, err := newStore(context.Background(), cfg)
	if err != nil {
		t.Fatalf("newStore() error = %v", err)
	}
	defer store.Close()

	if ready == nil {
		t.Fatal("redis backend should have a ready check")
	}
	if err := ready(context.Background()); err != nil {
		t.Errorf("ready() error = %v", err)
	}
}

func TestNewCommand_Chain(t *testing.T) {
	store, err := cache.NewMemoryStore(100, 0)
	if err != nil {
		t.Fatalf("NewMemoryStore() error = %v", err)
	}

	tests := []struct {
		name string
		vars map[string]string
		want string
	}{
		{"defaults", map[string]string{}, "*ratelimit.Command"},
		{"no rate limit", map[string]string{"RATE_LIMIT": "false"}, "*client.RetryCommand"},
		{"bare", map[string]string{"RATE_LIMIT": "false", "RETRY_ATTEMPTS": "1"}, "*client.HTTPCommand"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newCommand(testConfig(t, tt.vars), store, nil)
			var got string
			switch cmd.(type) {
			case *ratelimit.Command:
				got = "*ratelimit.Command"
			case *client.RetryCommand:
				got = "*client.RetryCommand"
			case *client.HTTPCommand:
				got = "*client.HTTPCommand"
			}
			if got != tt.want {
				t.Errorf("newCommand() = %T, want %s", cmd, tt.want)
			}
		})
	}
}

func TestProxy_EndToEnd(t *testing.T) {
	addr, cleanup := setupTestRedis(t)
	defer cleanup()

	upstream := testutil.NewMockUpstream()
	defer upstream.Close()

	cfg := testConfig(t, map[string]string{"REDIS_URL": addr, "GRACE_PERIOD": "1m"})
	store, ready, err := newStore(context.Background(), cfg)
	if err != nil {
		t.Fatalf("newStore() error = %v", err)
	}
	defer store.Close()

	requestClient, err := client.New(client.Config{
		Store:       store,
		Command:     newCommand(cfg, store, nil),
		GracePeriod: cfg.GracePeriod,
	})
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}

	handler := server.New(server.Deps{
		Client:     requestClient,
		Tokens:     provider.Tokens{GitHub: "ghp_test"},
		Pagination: pagination.DefaultConfig(),
		BaseURL:    func(provider.Provider) string { return upstream.URL() },
		ReadyCheck: ready,
	})

	t.Run("health", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		if w.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", w.Code)
		}
	})

	t.Run("proxy is cached in redis", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/github/repos/criske/feed", nil))
			body, _ := io.ReadAll(w.Result().Body)
			if w.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d: %s", w.Code, body)
			}
			if !strings.Contains(string(body), `"path":"/repos/criske/feed"`) {
				t.Errorf("unexpected body %s", body)
			}
		}
		if got := upstream.RequestCount(); got != 1 {
			t.Errorf("upstream requests = %d, want 1", got)
		}

		raw := redis.NewClient(&redis.Options{Addr: addr})
		defer raw.Close()
		key := cache.NewKey(cache.KindETag, upstream.URL()+"/repos/criske/feed").Raw()
		if n, err := raw.Exists(context.Background(), key).Result(); err != nil || n != 1 {
			t.Errorf("etag key in redis: n=%d err=%v", n, err)
		}
	})
}
