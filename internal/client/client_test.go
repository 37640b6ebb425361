package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/lifeaxes/internal/store"
)

func TestNewFallsBackToEnv(t *testing.T) {
	t.Setenv("LIFEAXES_URL", "http://example.test:9999")
	assert.Equal(t, "http://example.test:9999", New("").URL())
	assert.Equal(t, "http://other:1", New("http://other:1").URL())

	t.Setenv("LIFEAXES_URL", "")
	assert.Equal(t, defaultServerURL, New("").URL())
}

func TestHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	assert.True(t, New(srv.URL).Healthy(context.Background()))

	srv.Close()
	assert.False(t, New(srv.URL).Healthy(context.Background()))
}

func TestLogActivities(t *testing.T) {
	var gotPath, gotType string
	var gotBody []store.Activity
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotType = r.Header.Get("Content-Type")
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"inserted":1,"skipped":0}`))
	}))
	defer srv.Close()

	n, err := New(srv.URL).LogActivities(context.Background(), "ana maria", []store.Activity{
		{Type: "habit", Subtype: "corrida", Timestamp: "2024-05-01"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "/api/users/ana%20maria/activities", gotPath)
	assert.Equal(t, "application/json", gotType)
	require.Len(t, gotBody, 1)
	assert.Equal(t, "corrida", gotBody[0].Subtype)
}

func TestErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"unknown window"}`))
	}))
	defer srv.Close()

	data, err := New(srv.URL).Run(context.Background(), "ana", "2w")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Nil(t, data)
}
