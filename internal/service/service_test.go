package service

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lineage-agent/forensics/internal/httpshell"
	"github.com/lineage-agent/forensics/internal/models"
	"github.com/lineage-agent/forensics/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.New(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	st := newTestStore(t)
	return New(st, nil, nil, nil, nil, nil, nil, nil, DefaultConfig())
}

func TestFloatOrZero(t *testing.T) {
	assert.Equal(t, 0.0, floatOrZero(nil))
	v := 3.5
	assert.Equal(t, 3.5, floatOrZero(&v))
}

func TestGetCachedBundleReportMiss(t *testing.T) {
	svc := newTestService(t)
	report, ok, err := svc.GetCachedBundleReport("Mint111")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, report)
}

func TestGetCachedBundleReportHit(t *testing.T) {
	svc := newTestService(t)
	want := models.BundleExtractionReport{Mint: "Mint111", OverallVerdict: models.OverallConfirmedTeamExtraction}
	require.NoError(t, svc.store.BundleReportPut(want))

	got, ok, err := svc.GetCachedBundleReport("Mint111")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.OverallConfirmedTeamExtraction, got.OverallVerdict)
}

func TestSubscribeUnsubscribeListRoundTrip(t *testing.T) {
	svc := newTestService(t)
	require.NoError(t, svc.Subscribe(42, "mint", "Mint111"))
	require.NoError(t, svc.Subscribe(42, "narrative", "dog"))
	require.NoError(t, svc.Subscribe(7, "mint", "Mint222"))

	subs, err := svc.ListSubscriptions(42)
	require.NoError(t, err)
	require.Len(t, subs, 2)

	require.NoError(t, svc.Unsubscribe(42, "mint", "Mint111"))
	subs, err = svc.ListSubscriptions(42)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "narrative", subs[0].SubType)
}

func TestHealthSkipsNilClients(t *testing.T) {
	svc := newTestService(t)
	c := httpshell.NewClient(httpshell.Settings{Name: "test_backend"})
	report := svc.Health(c, nil)
	require.Len(t, report.Breakers, 1)
	assert.Equal(t, "test_backend", report.Breakers[0].Name)
}
