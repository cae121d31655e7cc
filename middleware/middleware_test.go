package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/require"
)

func okHandle(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	w.WriteHeader(http.StatusNoContent)
}

func TestIsAuthorized(t *testing.T) {
	handle := IsAuthorized("secret", okHandle)

	req := httptest.NewRequest("POST", "/x", nil)
	rr := httptest.NewRecorder()
	handle(rr, req, nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	req = httptest.NewRequest("POST", "/x", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rr = httptest.NewRecorder()
	handle(rr, req, nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	req = httptest.NewRequest("POST", "/x", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rr = httptest.NewRecorder()
	handle(rr, req, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)
}

func TestIsAuthorizedDisabledWithEmptyToken(t *testing.T) {
	handle := IsAuthorized("", okHandle)
	rr := httptest.NewRecorder()
	handle(rr, httptest.NewRequest("POST", "/x", nil), nil)
	require.Equal(t, http.StatusNoContent, rr.Code)
}

func TestLogRequestRecoversPanics(t *testing.T) {
	handle := LogRequest()(func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		panic("handler exploded")
	})

	rr := httptest.NewRecorder()
	require.NotPanics(t, func() {
		handle(rr, httptest.NewRequest("GET", "/x", nil), nil)
	})
	require.Equal(t, http.StatusInternalServerError, rr.Code)
}
