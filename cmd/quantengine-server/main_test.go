package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantengine/pkg/compute"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestAddThenGetKeyRoundTrips(t *testing.T) {
	srv := NewServer(compute.NewComputer())
	router := srv.Routes()

	body, err := json.Marshal(putKeyRequest{
		Key:   "energy:x",
		Dims:  []string{"x"},
		Units: "MJ",
		Rows: []putKeyRowJSON{
			{Coords: map[string]string{"x": "a"}, Value: 5},
			{Coords: map[string]string{"x": "b"}, Value: 7},
		},
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/keys", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/keys/energy:x", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "MJ", resp["units"])
}

func TestGetUnknownKeyReturnsNotFound(t *testing.T) {
	srv := NewServer(compute.NewComputer())
	router := srv.Routes()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/keys/nope", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDescribeRendersTaskTree(t *testing.T) {
	srv := NewServer(compute.NewComputer())
	router := srv.Routes()

	body, err := json.Marshal(putKeyRequest{
		Key:   "x",
		Units: "",
		Rows:  []putKeyRowJSON{{Coords: map[string]string{}, Value: 1}},
	})
	require.NoError(t, err)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/keys", bytes.NewReader(body))
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/keys/x/describe", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Body.String())
}
