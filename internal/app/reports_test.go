package app

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jopa/salestracker/internal/config"
	"github.com/jopa/salestracker/internal/observability"
	"github.com/jopa/salestracker/internal/repository/postgres"
	"github.com/jopa/salestracker/internal/testutil"
)

func testConfig() *config.Config {
	return &config.Config{
		Reporting: config.ReportingConfig{
			CronSchedule:  "0 0 * * *",
			Timezone:      "Africa/Nairobi",
			Recipients:    []string{"owner@example.com"},
			SystemUserID:  1,
			RunTimeout:    time.Minute,
			RenderTimeout: time.Second,
			MailTimeout:   time.Second,
			LockTTL:       time.Minute,
		},
		Mail:     config.MailConfig{Host: "127.0.0.1", Port: 1, FromName: "Test"},
		Renderer: config.RendererConfig{GotenbergURL: "http://127.0.0.1:1"},
	}
}

func TestNewReportStack_Minimal(t *testing.T) {
	store := postgres.NewStore(testutil.NewDB(t))

	stack, err := NewReportStack(context.Background(), testConfig(), store, observability.NewMetrics(prometheus.NewRegistry()), zap.NewNop())
	require.NoError(t, err)
	defer stack.Close(context.Background())

	assert.NotNil(t, stack.Pipeline)
	assert.NotNil(t, stack.Scheduler)
	assert.Nil(t, stack.Archive)
	assert.False(t, stack.WhatsApp.Configured())
}

func TestNewReportStack_RedisLock(t *testing.T) {
	srv := miniredis.RunT(t)
	cfg := testConfig()
	cfg.Redis.Addr = srv.Addr()

	stack, err := NewReportStack(context.Background(), cfg, postgres.NewStore(testutil.NewDB(t)), nil, zap.NewNop())
	require.NoError(t, err)
	stack.Close(context.Background())

	cfg.Redis.Addr = "127.0.0.1:1"
	_, err = NewReportStack(context.Background(), cfg, postgres.NewStore(testutil.NewDB(t)), nil, zap.NewNop())
	assert.Error(t, err)
}
