package otp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newVerifyServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *TwilioGateway) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	gw, err := NewTwilio(TwilioConfig{
		AccountSID: "AC-test",
		AuthToken:  "token",
		ServiceSID: "VA-test",
		BaseURL:    srv.URL,
	})
	require.NoError(t, err)
	return srv, gw
}

func TestTwilioSend(t *testing.T) {
	_, gw := newVerifyServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/VA-test/Verifications", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "AC-test", user)
		require.Equal(t, "token", pass)

		require.NoError(t, r.ParseForm())
		require.Equal(t, "+15551230001", r.PostForm.Get("To"))
		require.Equal(t, "sms", r.PostForm.Get("Channel"))

		json.NewEncoder(w).Encode(map[string]string{"status": "pending"})
	})

	status, err := gw.Send(context.Background(), "+15551230001")
	require.NoError(t, err)
	require.Equal(t, StatusPending, status)
}

func TestTwilioCheckApproved(t *testing.T) {
	_, gw := newVerifyServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/VA-test/VerificationCheck", r.URL.Path)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "424242", r.PostForm.Get("Code"))

		json.NewEncoder(w).Encode(map[string]string{"status": "approved"})
	})

	status, err := gw.Check(context.Background(), "+15551230001", "424242")
	require.NoError(t, err)
	require.Equal(t, StatusApproved, status)
}

func TestTwilioCheckExpiredVerification(t *testing.T) {
	_, gw := newVerifyServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	status, err := gw.Check(context.Background(), "+15551230001", "424242")
	require.NoError(t, err)
	require.Equal(t, StatusExpired, status)
}

func TestTwilioSendServerError(t *testing.T) {
	_, gw := newVerifyServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := gw.Send(context.Background(), "+15551230001")
	require.ErrorIs(t, err, ErrSendFailed)
}

func TestTwilioConfigValidation(t *testing.T) {
	_, err := NewTwilio(TwilioConfig{AccountSID: "AC-test"})
	require.Error(t, err)
}
