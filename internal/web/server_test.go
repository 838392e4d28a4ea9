package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/channelpass/channelpass/internal/config"
	"github.com/channelpass/channelpass/internal/database/repository"
	"github.com/channelpass/channelpass/internal/service"
)

type fakeStats struct {
	err error
}

func (f fakeStats) Collect() (*service.SystemStats, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &service.SystemStats{
		Subscribers:    repository.SubscriberStats{Active: 3, Total: 5},
		Codes:          repository.CodeStats{Available: 7},
		ActiveChannels: 2,
		GeneratedAt:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}, nil
}

type fakePinger struct{ err error }

func (f fakePinger) Ping() error { return f.err }

func testConfig() *config.Config {
	return &config.Config{
		BotName:     "Test Bot",
		BotToken:    "token",
		Environment: "test",
		Database:    config.DatabaseConfig{Driver: "sqlite"},
		API:         config.APIConfig{AllowOrigins: []string{"*"}},
	}
}

func TestHealth(t *testing.T) {
	s := New(testConfig(), fakeStats{}, fakePinger{})

	resp, err := s.App().Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var body HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, serviceName, body.Service)
	assert.Equal(t, "test", body.Environment)
}

func TestStatus(t *testing.T) {
	s := New(testConfig(), fakeStats{}, fakePinger{err: errors.New("down")})

	resp, err := s.App().Test(httptest.NewRequest("GET", "/status", nil))
	require.NoError(t, err)

	assert.Equal(t, 503, resp.StatusCode)

	var body StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "degraded", body.Status)
	assert.False(t, body.Database.Connected)
	assert.True(t, body.Bot.TokenSet)
	assert.Nil(t, body.Subscriptions)
}

func TestStatus_Healthy(t *testing.T) {
	s := New(testConfig(), fakeStats{}, fakePinger{})

	resp, err := s.App().Test(httptest.NewRequest("GET", "/status", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var body StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	require.NotNil(t, body.Subscriptions)
	assert.Equal(t, int64(3), body.Subscriptions.ActiveSubscribers)
	assert.Equal(t, int64(7), body.Subscriptions.AvailableCodes)
}

func TestStatsAPI(t *testing.T) {
	s := New(testConfig(), fakeStats{}, fakePinger{})

	resp, err := s.App().Test(httptest.NewRequest("GET", "/api/v1/stats", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var body service.SystemStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, int64(3), body.Subscribers.Active)
	assert.Equal(t, int64(2), body.ActiveChannels)

	s = New(testConfig(), fakeStats{err: errors.New("boom")}, fakePinger{})
	resp, err = s.App().Test(httptest.NewRequest("GET", "/api/v1/stats", nil))
	require.NoError(t, err)
	assert.Equal(t, 500, resp.StatusCode)
}

func TestMetricsAndIndex(t *testing.T) {
	s := New(testConfig(), fakeStats{}, fakePinger{})

	resp, err := s.App().Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = s.App().Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	page, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(page), "Test Bot")
	assert.Contains(t, string(page), "3 active subscribers")
}
