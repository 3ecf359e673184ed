package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelbrown/marketbrief/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return New(st, 0), st
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	decode(t, rec, &resp)
	assert.Equal(t, "ok", resp["status"])
}

func TestRegister(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s, http.MethodPost, "/api/users/register", map[string]string{
		"userId":    "u1",
		"name":      "Alice",
		"pushToken": "tok",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var u store.User
	decode(t, rec, &u)
	assert.Equal(t, "u1", u.UserID)
	assert.Equal(t, "smart", u.Mode)
	assert.Equal(t, 5, u.MaxDailyPushes)
}

func TestRegisterRequiresUserID(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s, http.MethodPost, "/api/users/register", map[string]string{"name": "Alice"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]string
	decode(t, rec, &resp)
	assert.Contains(t, resp["error"], "userId")
}

func TestCreateSettingsImplicitlyRegisters(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s, http.MethodPost, "/api/users/settings", map[string]interface{}{
		"userId":                  "u1",
		"notificationSensitivity": "alert",
		"mode":                    "focus",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var u store.User
	decode(t, rec, &u)
	assert.Equal(t, "alert", u.Sensitivity)
	assert.Equal(t, "focus", u.Mode)
	assert.Equal(t, "balanced", u.Frequency)
}

func TestUpdateSettings(t *testing.T) {
	s, st := newTestServer(t)
	_, err := st.CreateUser("u1", "", "")
	require.NoError(t, err)

	rec := doJSON(t, s, http.MethodPut, "/api/users/u1/settings", map[string]interface{}{
		"weeklySummary": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var u store.User
	decode(t, rec, &u)
	assert.True(t, u.WeeklySummary)

	rec = doJSON(t, s, http.MethodPut, "/api/users/nobody/settings", map[string]interface{}{"mode": "smart"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPushToken(t *testing.T) {
	s, st := newTestServer(t)
	_, err := st.CreateUser("u1", "", "")
	require.NoError(t, err)

	rec := doJSON(t, s, http.MethodPut, "/api/users/u1/push-token", map[string]string{"pushToken": "tok-xyz"})
	require.Equal(t, http.StatusOK, rec.Code)

	u, err := st.GetUser("u1")
	require.NoError(t, err)
	assert.Equal(t, "tok-xyz", u.PushToken)

	rec = doJSON(t, s, http.MethodPut, "/api/users/u1/push-token", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetUserNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/api/users/nobody", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHoldingsLifecycle(t *testing.T) {
	s, st := newTestServer(t)
	_, err := st.CreateUser("u1", "", "")
	require.NoError(t, err)

	rec := doJSON(t, s, http.MethodPost, "/api/holdings/", map[string]interface{}{
		"userId":     "u1",
		"symbol":     "aapl",
		"allocation": 0.4,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var h store.Holding
	decode(t, rec, &h)
	assert.Equal(t, "AAPL", h.Symbol)

	rec = doJSON(t, s, http.MethodGet, "/api/holdings/u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []store.Holding
	decode(t, rec, &list)
	require.Len(t, list, 1)

	rec = doJSON(t, s, http.MethodDelete, "/api/holdings/u1/AAPL", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/holdings/u1", nil)
	decode(t, rec, &list)
	assert.Empty(t, list)
	// Empty list serializes as [], not null.
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestHoldingRequiresSymbol(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s, http.MethodPost, "/api/holdings/", map[string]string{"userId": "u1", "symbol": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAllSymbols(t *testing.T) {
	s, st := newTestServer(t)
	for _, id := range []string{"u1", "u2"} {
		_, err := st.CreateUser(id, "", "")
		require.NoError(t, err)
	}
	for _, h := range []store.Holding{
		{UserID: "u1", Symbol: "TSLA"},
		{UserID: "u2", Symbol: "AAPL"},
		{UserID: "u2", Symbol: "tsla"},
	} {
		_, err := st.UpsertHolding(h)
		require.NoError(t, err)
	}

	rec := doJSON(t, s, http.MethodGet, "/api/holdings/symbols/all", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var symbols []string
	decode(t, rec, &symbols)
	assert.Equal(t, []string{"AAPL", "TSLA"}, symbols)
}

func TestAlertsEndpoint(t *testing.T) {
	s, st := newTestServer(t)
	now := time.Now()
	for i, hash := range []string{"h1", "h2", "h3"} {
		_, err := st.InsertAlert(store.AlertLog{
			UserID:      "u1",
			AlertType:   "price",
			Symbol:      "AAPL",
			ContentHash: hash,
			Title:       "AAPL moved",
			Message:     "details",
			SentAt:      now.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	rec := doJSON(t, s, http.MethodGet, "/api/alerts/u1?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var alerts []store.AlertLog
	decode(t, rec, &alerts)
	assert.Len(t, alerts, 2)

	rec = doJSON(t, s, http.MethodGet, "/api/alerts/u1/count/today", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var count map[string]int
	decode(t, rec, &count)
	assert.Equal(t, 3, count["count"])
}

func TestAlertsRejectsBadLimit(t *testing.T) {
	s, _ := newTestServer(t)
	for _, limit := range []string{"0", "-1", "abc"} {
		rec := doJSON(t, s, http.MethodGet, "/api/alerts/u1?limit="+limit, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", limit)
	}
}
