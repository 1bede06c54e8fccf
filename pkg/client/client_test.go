package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-image-handler/pkg/pipeline"
)

func TestClient_Image(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/image", r.URL.Path)
		assert.Equal(t, "a.jpg", r.URL.Query().Get("src"))
		assert.Equal(t, "10", r.URL.Query().Get("width"))
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("ETag", `"abc123"`)
		w.Header().Set(pipeline.HeaderCache, pipeline.CacheHit)
		w.Header().Set(pipeline.HeaderRunID, "run-1")
		w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	c := New(srv.URL + "/")
	img, err := c.Image(context.Background(), url.Values{"src": {"a.jpg"}, "width": {"10"}})
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), img.Data)
	assert.Equal(t, "image/png", img.ContentType)
	assert.Equal(t, "abc123", img.Key)
	assert.Equal(t, "run-1", img.RunID)
	assert.True(t, img.Hit)
}

func TestClient_ImageError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(pipeline.ErrorResponse{Error: "source not found", Status: 404})
	}))
	defer srv.Close()

	_, err := New(srv.URL).Image(context.Background(), url.Values{"src": {"missing.jpg"}})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "source not found", se.Message)
}

func TestClient_WarmQueued(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/warm", r.URL.Path)

		var req pipeline.WarmRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "a.jpg", req.Params["src"])

		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(pipeline.WarmResponse{RunID: "warm-1", Key: "abc"})
	}))
	defer srv.Close()

	out, err := New(srv.URL).Warm(context.Background(), pipeline.WarmRequest{Params: map[string]string{"src": "a.jpg"}})
	require.NoError(t, err)
	assert.True(t, out.Queued())
	assert.Equal(t, "warm-1", out.Response.RunID)
	assert.Nil(t, out.Result)
}

func TestClient_WarmInline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(pipeline.WarmResult{Key: "abc", Bytes: 42, ContentType: "image/jpeg"})
	}))
	defer srv.Close()

	out, err := New(srv.URL).Warm(context.Background(), pipeline.WarmRequest{Params: map[string]string{"src": "a.jpg"}})
	require.NoError(t, err)
	assert.False(t, out.Queued())
	assert.Equal(t, 42, out.Result.Bytes)
}

func TestClient_WarmBadRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Warm(context.Background(), pipeline.WarmRequest{})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	assert.Equal(t, "bad", se.Message)
}

func TestClient_WaitForWarm(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/warm/warm-1", r.URL.Path)
		calls++
		state := pipeline.StateEnqueued
		if calls >= 3 {
			state = pipeline.StateSucceeded
		}
		json.NewEncoder(w).Encode(pipeline.WarmStatus{RunID: "warm-1", State: state})
	}))
	defer srv.Close()

	status, err := New(srv.URL).WaitForWarm(context.Background(), "warm-1", time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StateSucceeded, status.State)
	assert.Equal(t, 3, calls)
}
