package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/aimlabs/eduauth"
	"github.com/aimlabs/eduauth/internal/notify"
	"github.com/aimlabs/eduauth/internal/otp"
	"github.com/aimlabs/eduauth/internal/store/memory"
)

type testServer struct {
	srv  *httptest.Server
	otp  *otp.Fake
	mail *notify.Recorder
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := eduauth.DefaultConfig()
	cfg.JWT.Secret = "0123456789abcdef0123456789abcdef"

	fake := otp.NewFake()
	mail := &notify.Recorder{}
	engine, err := eduauth.New(cfg, eduauth.Deps{
		Redis:       client,
		Users:       memory.NewUserStore(),
		Revocations: memory.NewRevocationStore(),
		OTP:         fake,
		Mailer:      mail,
	})
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	srv := httptest.NewServer(New(engine, client, nil).Handler())
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, otp: fake, mail: mail}
}

// registerUser drives registration through the API and returns the
// session payload.
func (ts *testServer) registerUser(t *testing.T) map[string]any {
	t.Helper()

	resp := ts.post(t, "/auth/register", "10.0.0.1", registerPayload())
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	regToken := decodeBody(t, resp)["registration_token"].(string)

	ts.otp.SetCode("+15551230001", "424242")
	resp = ts.post(t, "/auth/verify-otp", "10.0.0.1", map[string]string{
		"registration_token": regToken,
		"code":               "424242",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decodeBody(t, resp)
}

func (ts *testServer) do(t *testing.T, method, path, bearer string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(method, ts.srv.URL+path, bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func (ts *testServer) post(t *testing.T, path, ip string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, ts.srv.URL+path, bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if ip != "" {
		req.Header.Set("X-Forwarded-For", ip)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var m map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
	return m
}

func registerPayload() map[string]string {
	return map[string]string{
		"email":      "learner@example.com",
		"password":   "Sup3rSecret!",
		"first_name": "Ada",
		"last_name":  "Lovelace",
		"phone":      "+15551230001",
		"role":       "student",
	}
}

func TestRegisterVerifyLoginEndToEnd(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.post(t, "/auth/register", "10.0.0.1", registerPayload())
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	regToken := decodeBody(t, resp)["registration_token"].(string)
	require.NotEmpty(t, regToken)

	ts.otp.SetCode("+15551230001", "424242")
	resp = ts.post(t, "/auth/verify-otp", "10.0.0.1", map[string]string{
		"registration_token": regToken,
		"code":               "424242",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody(t, resp)
	require.NotEmpty(t, created["access_token"])
	require.NotEmpty(t, created["refresh_token"])

	resp = ts.post(t, "/auth/login", "10.0.0.1", map[string]string{
		"email":    "learner@example.com",
		"password": "Sup3rSecret!",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	session := decodeBody(t, resp)
	access := session["access_token"].(string)

	req, err := http.NewRequest(http.MethodGet, ts.srv.URL+"/auth/me", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+access)
	meResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, meResp.StatusCode)
	me := decodeBody(t, meResp)
	require.Equal(t, "learner@example.com", me["email"])
}

func TestWrongCodeReturns400(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.post(t, "/auth/register", "10.0.0.1", registerPayload())
	regToken := decodeBody(t, resp)["registration_token"].(string)

	ts.otp.SetCode("+15551230001", "424242")
	resp = ts.post(t, "/auth/verify-otp", "10.0.0.1", map[string]string{
		"registration_token": regToken,
		"code":               "000000",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestDuplicateEmailReturns409(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.post(t, "/auth/register", "10.0.0.1", registerPayload())
	regToken := decodeBody(t, resp)["registration_token"].(string)
	ts.otp.SetCode("+15551230001", "424242")
	ts.post(t, "/auth/verify-otp", "10.0.0.1", map[string]string{
		"registration_token": regToken, "code": "424242",
	}).Body.Close()

	payload := registerPayload()
	payload["phone"] = "+15551230002"
	resp = ts.post(t, "/auth/register", "10.0.0.2", payload)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestLoginQuotaReturns429(t *testing.T) {
	ts := newTestServer(t)

	// Rotate target addresses so the per-account lockout never trips;
	// only the route quota for this client is exercised.
	for i := 0; i < 10; i++ {
		body := map[string]string{
			"email":    fmt.Sprintf("nobody%d@example.com", i),
			"password": "WrongPass1!",
		}
		resp := ts.post(t, "/auth/login", "203.0.113.5", body)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "attempt %d", i+1)
		resp.Body.Close()
	}

	body := map[string]string{"email": "nobody@example.com", "password": "WrongPass1!"}
	resp := ts.post(t, "/auth/login", "203.0.113.5", body)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("Retry-After"))
	payload := decodeBody(t, resp)
	require.Greater(t, payload["retry_after"].(float64), 0.0)

	// A different client is unaffected.
	resp = ts.post(t, "/auth/login", "198.51.100.9", body)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// The rejection shows up in the counters.
	metricsResp, err := http.Get(ts.srv.URL + "/internal/metrics")
	require.NoError(t, err)
	counters := decodeBody(t, metricsResp)
	require.GreaterOrEqual(t, counters["rate_limited"].(float64), 1.0)
}

func TestResendQuotaKeyedOnRegistration(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.post(t, "/auth/register", "10.0.0.1", registerPayload())
	regToken := decodeBody(t, resp)["registration_token"].(string)

	body := map[string]string{"registration_token": regToken}
	for i := 0; i < 3; i++ {
		// Rotating addresses must not stretch the quota.
		resp := ts.post(t, "/auth/resend-otp", fmt.Sprintf("10.0.0.%d", i+10), body)
		require.Equal(t, http.StatusOK, resp.StatusCode, "resend %d", i+1)
		resp.Body.Close()
	}

	resp = ts.post(t, "/auth/resend-otp", "10.0.0.99", body)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	resp.Body.Close()
}

func TestChangePasswordRoute(t *testing.T) {
	ts := newTestServer(t)
	session := ts.registerUser(t)
	access := session["access_token"].(string)

	body := map[string]string{
		"old_password": "Sup3rSecret!",
		"new_password": "N3wSecret!!",
	}
	resp := ts.do(t, http.MethodPut, "/auth/change-password", access, body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// The route is PUT only.
	resp = ts.do(t, http.MethodPost, "/auth/change-password", access, body)
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	resp.Body.Close()

	resp = ts.post(t, "/auth/login", "10.0.0.1", map[string]string{
		"email":    "learner@example.com",
		"password": "N3wSecret!!",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestResetPasswordTokenQueryParam(t *testing.T) {
	ts := newTestServer(t)
	ts.registerUser(t)

	resp := ts.post(t, "/auth/send-token", "10.0.0.1", map[string]string{
		"email": "learner@example.com",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Mail dispatch is asynchronous.
	var resetToken string
	require.Eventually(t, func() bool {
		for _, sent := range ts.mail.All() {
			if sent.Kind == "password_reset" {
				resetToken = sent.Token
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)

	resp = ts.post(t, "/auth/reset-password?token="+resetToken, "10.0.0.1", map[string]string{
		"new_password": "N3wSecret!!",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = ts.post(t, "/auth/login", "10.0.0.1", map[string]string{
		"email":    "learner@example.com",
		"password": "N3wSecret!!",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestProtectedRouteWithoutToken(t *testing.T) {
	ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, ts.srv.URL+"/auth/me", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestMalformedBodyReturns400(t *testing.T) {
	ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodPost, ts.srv.URL+"/auth/login", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.srv.URL + "/healthz")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}
