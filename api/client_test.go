package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvelope(w http.ResponseWriter, status int, success bool, message string, data interface{}) {
	raw, _ := json.Marshal(data)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{Success: success, Message: message, Data: raw})
}

func newTestServer(t *testing.T) *httptest.Server {
	router := mux.NewRouter()
	router.HandleFunc("/api/echo", func(w http.ResponseWriter, r *http.Request) {
		body := map[string]string{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeEnvelope(w, http.StatusOK, true, "", map[string]string{
			"authorization": r.Header.Get("Authorization"),
			"request_id":    r.Header.Get("X-Request-ID"),
			"name":          body["name"],
		})
	}).Methods(http.MethodPost)
	router.HandleFunc("/api/denied", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusUnauthorized, false, "token expired", nil)
	})
	router.HandleFunc("/api/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	})
	router.HandleFunc("/api/soft-fail", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, false, "nope", nil)
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func TestDoSuccess(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(srv.URL+"/api/", nil)
	env, err := c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/echo", Body: map[string]string{"name": "apophis"}, Token: "T1"})
	require.NoError(t, err)
	out := map[string]string{}
	require.NoError(t, env.Decode(&out))
	assert.Equal(t, "Bearer T1", out["authorization"])
	assert.Equal(t, "apophis", out["name"])
	assert.Len(t, out["request_id"], 36)
}

func TestDoAuthFailure(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(srv.URL+"/api", nil)
	_, err := c.Do(context.Background(), Request{Path: "/denied"})
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.True(t, statusErr.IsAuthFailure())
	assert.Equal(t, "token expired", statusErr.Message)
}

func TestDoNonJSONFailure(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(srv.URL+"/api", nil)
	_, err := c.Do(context.Background(), Request{Path: "/broken"})
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.False(t, statusErr.IsAuthFailure())
	assert.Equal(t, http.StatusBadGateway, statusErr.Status)
	assert.Empty(t, statusErr.Message)
	assert.Contains(t, statusErr.Error(), "Bad Gateway")
}

func TestDoUnsuccessfulEnvelope(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(srv.URL+"/api", nil)
	_, err := c.Do(context.Background(), Request{Path: "/soft-fail"})
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, "nope", statusErr.Message)
}

func TestDoTransportFailure(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(srv.URL, nil)
	srv.Close()
	_, err := c.Do(context.Background(), Request{Path: "/echo"})
	require.Error(t, err)
	var statusErr *StatusError
	assert.False(t, errors.As(err, &statusErr))
}
