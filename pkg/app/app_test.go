package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nergy-se/ratecontroller/pkg/api/v1/config"
	"github.com/nergy-se/ratecontroller/pkg/state"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeServices struct {
	calls   []string
	fail    error
	onStart func()
	sync.Mutex
}

func (f *fakeServices) Start(ctx context.Context, service string) error {
	f.Lock()
	defer f.Unlock()
	f.calls = append(f.calls, "start "+service)
	if f.onStart != nil {
		f.onStart()
	}
	return f.fail
}

func (f *fakeServices) Stop(ctx context.Context, service string) error {
	f.Lock()
	defer f.Unlock()
	f.calls = append(f.calls, "stop "+service)
	return f.fail
}

func (f *fakeServices) Calls() []string {
	f.Lock()
	defer f.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeFeed struct {
	price string
	sync.Mutex
}

func (f *fakeFeed) set(p string) {
	f.Lock()
	f.price = p
	f.Unlock()
}

func (f *fakeFeed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.Lock()
	p := f.price
	f.Unlock()
	entries := make([]string, 12)
	for i := range entries {
		entries[i] = fmt.Sprintf(`{"millisUTC":"%d","price":"%s"}`, 1700000000000-int64(i)*300000, p)
	}
	fmt.Fprint(w, "["+strings.Join(entries, ",")+"]")
}

type fakePublisher struct {
	snapshots []state.Snapshot
}

func (f *fakePublisher) Publish(s state.Snapshot) error {
	f.snapshots = append(f.snapshots, s)
	return nil
}

type testEnv struct {
	app      *App
	services *fakeServices
	feed     *fakeFeed
	url      string
	path     string
}

func newTestEnv(t *testing.T) *testEnv {
	feed := &fakeFeed{price: "10"}
	srv := httptest.NewServer(feed)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	env := &testEnv{
		services: &fakeServices{},
		feed:     feed,
		url:      srv.URL,
		path:     filepath.Join(dir, "config.json"),
	}
	env.writeConfig(t, 12, srv.URL)
	env.app = New(&config.CliConfig{
		ConfigFile: env.path,
		RepoPath:   dir,
	}, env.services)
	return env
}

func (e *testEnv) writeConfig(t *testing.T, limit float64, url string) {
	c := fmt.Sprintf(`{"services":["a.service","b.service"],"rate_limit":%g,"loop_seconds":300,"comed_api_url":%q,"git_pull":false}`, limit, url)
	require.NoError(t, os.WriteFile(e.path, []byte(c), 0644))
}

func TestLowPriceEnablesOnce(t *testing.T) {
	env := newTestEnv(t)

	delay := env.app.tick(context.Background())
	assert.Equal(t, 300*time.Second, delay)
	assert.Equal(t, state.Enabled, env.app.state)
	assert.Equal(t, []string{"start a.service", "start b.service"}, env.services.Calls())

	env.app.tick(context.Background())
	env.app.tick(context.Background())
	assert.Len(t, env.services.Calls(), 2)
	assert.Equal(t, 10.0, testutil.ToFloat64(env.app.metrics.Price))
	assert.Equal(t, 1.0, testutil.ToFloat64(env.app.metrics.Transitions.WithLabelValues("enabled")))
}

func TestHighPriceDisablesOnce(t *testing.T) {
	env := newTestEnv(t)
	env.feed.set("15")

	env.app.tick(context.Background())
	env.app.tick(context.Background())
	assert.Equal(t, state.Disabled, env.app.state)
	assert.Equal(t, []string{"stop a.service", "stop b.service"}, env.services.Calls())
}

func TestPriceEqualToLimitEnables(t *testing.T) {
	env := newTestEnv(t)
	env.feed.set("12")
	env.app.state = state.Disabled

	env.app.tick(context.Background())
	assert.Equal(t, state.Enabled, env.app.state)
	assert.Equal(t, []string{"start a.service", "start b.service"}, env.services.Calls())
}

func TestHysteresisSequence(t *testing.T) {
	env := newTestEnv(t)

	for _, p := range []string{"10", "11", "15", "16", "12", "9"} {
		env.feed.set(p)
		env.app.tick(context.Background())
	}
	assert.Equal(t, []string{
		"start a.service", "start b.service",
		"stop a.service", "stop b.service",
		"start a.service", "start b.service",
	}, env.services.Calls())
}

func TestRateLimitReloadedEveryLoop(t *testing.T) {
	env := newTestEnv(t)
	env.feed.set("10")
	env.app.tick(context.Background())
	assert.Equal(t, state.Enabled, env.app.state)

	env.writeConfig(t, 5, env.url)
	env.app.tick(context.Background())
	assert.Equal(t, state.Disabled, env.app.state)
	assert.Equal(t, 5.0, testutil.ToFloat64(env.app.metrics.RateLimit))
}

func TestFeedUnreachable(t *testing.T) {
	env := newTestEnv(t)
	env.app.state = state.Enabled

	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()
	env.writeConfig(t, 1, dead.URL)

	delay := env.app.tick(context.Background())
	assert.Equal(t, 300*time.Second, delay)
	assert.Equal(t, state.Enabled, env.app.state)
	assert.Empty(t, env.services.Calls())
	assert.Equal(t, 1.0, testutil.ToFloat64(env.app.metrics.FeedErrors))
	assert.Equal(t, []string{"feed"}, env.app.alarms.Active())

	env.writeConfig(t, 1, env.url)
	env.app.tick(context.Background())
	assert.Empty(t, env.app.alarms.Active())
	assert.Equal(t, state.Disabled, env.app.state)
}

func TestConfigErrorIsRetried(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.WriteFile(env.path, []byte(`{"services": [`), 0644))

	delay := env.app.tick(context.Background())
	assert.Equal(t, defaultRetryDelay, delay)
	assert.Equal(t, state.Unknown, env.app.state)
	assert.Equal(t, []string{"config"}, env.app.alarms.Active())

	env.writeConfig(t, 12, env.url)
	env.app.tick(context.Background())
	assert.Equal(t, state.Enabled, env.app.state)

	require.NoError(t, os.Remove(env.path))
	delay = env.app.tick(context.Background())
	assert.Equal(t, 300*time.Second, delay)
	assert.Equal(t, 2.0, testutil.ToFloat64(env.app.metrics.ConfigErrors))
}

func TestServiceFailureStillTransitions(t *testing.T) {
	env := newTestEnv(t)
	env.services.fail = errors.New("Unit a.service not found.")

	env.app.tick(context.Background())
	assert.Equal(t, state.Enabled, env.app.state)
	assert.Len(t, env.services.Calls(), 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.app.metrics.ServiceErrors.WithLabelValues("start")))
	assert.Equal(t, []string{"services"}, env.app.alarms.Active())
}

func TestShutdownDuringControlIsNotAServiceError(t *testing.T) {
	env := newTestEnv(t)
	env.app.config.ServiceDelay = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.services.onStart = cancel

	env.app.tick(ctx)
	assert.Equal(t, []string{"start a.service"}, env.services.Calls())
	assert.Equal(t, 0.0, testutil.ToFloat64(env.app.metrics.ServiceErrors.WithLabelValues("start")))
	assert.Empty(t, env.app.alarms.Active())
}

func TestSnapshotPublished(t *testing.T) {
	env := newTestEnv(t)
	pub := &fakePublisher{}
	env.app.publisher = pub
	env.feed.set("15")

	env.app.tick(context.Background())
	require.Len(t, pub.snapshots, 1)
	assert.Equal(t, 15.0, pub.snapshots[0].Price)
	assert.Equal(t, 12.0, pub.snapshots[0].RateLimit)
	assert.Equal(t, state.Disabled, pub.snapshots[0].State)
	assert.Equal(t, []string{"a.service", "b.service"}, pub.snapshots[0].Services)
}

func TestStartStopsOnCancel(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, env.app.Start(ctx))

	assert.Eventually(t, func() bool {
		return len(env.services.Calls()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	done := make(chan struct{})
	go func() {
		env.app.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("app did not stop")
	}
}
