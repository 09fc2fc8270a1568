package httpapi

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	goSecure "github.com/MrEthical07/goSecure"
	"github.com/MrEthical07/goSecure/account"
	"github.com/MrEthical07/goSecure/accountstore/redisstore"
	"github.com/MrEthical07/goSecure/otp"
	"github.com/MrEthical07/goSecure/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testPassword = "correct-horse-9"

type harness struct {
	t      *testing.T
	srv    *httptest.Server
	mr     *miniredis.Miniredis
	engine *goSecure.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("ed25519: %v", err)
	}
	cfg := goSecure.DefaultConfig()
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.BackupCodes.Cost = 4
	cfg.TOTP.QRCodeSize = 0
	cfg.Bearer.PrivateKey = priv
	cfg.Bearer.PublicKey = pub

	hasher, err := password.NewArgon2(password.Config{
		Memory: cfg.Password.Memory, Time: cfg.Password.Time, Parallelism: cfg.Password.Parallelism,
		SaltLength: cfg.Password.SaltLength, KeyLength: cfg.Password.KeyLength,
	})
	if err != nil {
		t.Fatalf("argon2: %v", err)
	}
	hash, err := hasher.Hash(testPassword)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	store := redisstore.New(rdb, "test")
	if _, err := store.Create(context.Background(), account.Profile{
		AccountID: "acc-1", Identifier: "alice@example.com", PasswordHash: hash,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	engine, err := goSecure.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAccountStore(store).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	srv := httptest.NewServer(New(engine, Config{}, nil).Router())
	t.Cleanup(func() {
		srv.Close()
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	})
	return &harness{t: t, srv: srv, mr: mr, engine: engine}
}

func (h *harness) do(method, path, bearer string, body any, out any) int {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			h.t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, h.srv.URL+path, &buf)
	if err != nil {
		h.t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_0) AppleWebKit/605.1.15 Version/17.0 Safari/605.1.15")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		h.t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			h.t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (h *harness) login() goSecure.LoginResult {
	h.t.Helper()
	var res goSecure.LoginResult
	if code := h.do(http.MethodPost, "/v1/auth/login", "", loginRequest{AccountID: "acc-1", Password: testPassword}, &res); code != http.StatusOK {
		h.t.Fatalf("login status %d", code)
	}
	return res
}

func TestLoginAndErrors(t *testing.T) {
	h := newHarness(t)

	var eb errorBody
	if code := h.do(http.MethodPost, "/v1/auth/login", "", loginRequest{AccountID: "acc-1", Password: "nope"}, &eb); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
	if eb.Kind != "unauthorized" || eb.Error != "invalid credentials" {
		t.Fatalf("unexpected error body %+v", eb)
	}

	if code := h.do(http.MethodPost, "/v1/auth/login", "", map[string]string{"user": "x"}, &eb); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", code)
	}

	res := h.login()
	if res.BearerToken == "" || res.TwoFactorRequired {
		t.Fatalf("unexpected login result %+v", res)
	}

	if code := h.do(http.MethodGet, "/v1/security/2fa", "", nil, &eb); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without bearer, got %d", code)
	}
}

func TestTwoFactorOverHTTP(t *testing.T) {
	h := newHarness(t)
	bearer := h.login().BearerToken

	var setup goSecure.TwoFactorSetup
	if code := h.do(http.MethodPost, "/v1/security/2fa/setup", bearer, nil, &setup); code != http.StatusOK {
		t.Fatalf("setup status %d", code)
	}
	if setup.Secret == "" || len(setup.BackupCodes) != 8 {
		t.Fatalf("unexpected setup %+v", setup)
	}

	var eb errorBody
	if code := h.do(http.MethodPost, "/v1/security/2fa/enable", bearer, codeRequest{Code: "12ab56"}, &eb); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed code, got %d", code)
	}

	code, err := otp.Engine{}.Generate(setup.Secret, 0)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	var enabled enableResponse
	if status := h.do(http.MethodPost, "/v1/security/2fa/enable", bearer, codeRequest{Code: code}, &enabled); status != http.StatusOK {
		t.Fatalf("enable status %d", status)
	}
	if !enabled.Enabled || enabled.EnabledAt.IsZero() {
		t.Fatalf("expected enabled with a timestamp, got %+v", enabled)
	}
	if status := h.do(http.MethodPost, "/v1/security/2fa/enable", bearer, codeRequest{Code: code}, &eb); status != http.StatusConflict {
		t.Fatalf("expected 409 on second enable, got %d", status)
	}

	var verified map[string]bool
	if status := h.do(http.MethodPost, "/v1/security/2fa/verify", bearer, codeRequest{Code: setup.BackupCodes[0], UseBackupCode: true}, &verified); status != http.StatusOK || !verified["verified"] {
		t.Fatalf("expected backup code accepted, got %d %v", status, verified)
	}
	verified = nil
	if status := h.do(http.MethodPost, "/v1/security/2fa/verify", bearer, codeRequest{Code: setup.BackupCodes[0], UseBackupCode: true}, &verified); status != http.StatusOK || verified["verified"] {
		t.Fatalf("expected reused backup code rejected, got %d %v", status, verified)
	}

	var st goSecure.TwoFactorStatus
	h.do(http.MethodGet, "/v1/security/2fa", bearer, nil, &st)
	if !st.Enabled || st.BackupCodesCount != 7 || st.EnabledAt == nil || !st.EnabledAt.Equal(enabled.EnabledAt) {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestSessionsOverHTTP(t *testing.T) {
	h := newHarness(t)
	a := h.login()
	b := h.login()

	var list struct {
		Sessions []goSecure.SessionSummary `json:"sessions"`
	}
	if code := h.do(http.MethodGet, "/v1/security/sessions", b.BearerToken, nil, &list); code != http.StatusOK {
		t.Fatalf("list status %d", code)
	}
	if len(list.Sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(list.Sessions))
	}
	for _, s := range list.Sessions {
		if s.IsCurrent != (s.ID == b.SessionID) {
			t.Fatalf("wrong current flag on %+v", s)
		}
		if s.IPAddress != "127.0.0.1" {
			t.Fatalf("expected client ip recorded, got %q", s.IPAddress)
		}
	}

	var revoked map[string]int
	h.do(http.MethodPost, "/v1/security/sessions/revoke-others", b.BearerToken, nil, &revoked)
	if revoked["revoked"] != 1 {
		t.Fatalf("expected 1 revoked, got %v", revoked)
	}

	var eb errorBody
	if code := h.do(http.MethodGet, "/v1/security/sessions", a.BearerToken, nil, &eb); code != http.StatusUnauthorized {
		t.Fatalf("expected revoked bearer rejected, got %d", code)
	}
	if code := h.do(http.MethodDelete, "/v1/security/sessions/"+a.SessionID, b.BearerToken, nil, &eb); code != http.StatusNotFound {
		t.Fatalf("expected 404 for revoked session, got %d", code)
	}
	if code := h.do(http.MethodPost, "/v1/security/sessions/touch", b.BearerToken, nil, nil); code != http.StatusOK {
		t.Fatalf("touch status %d", code)
	}
	if code := h.do(http.MethodDelete, "/v1/security/sessions/"+b.SessionID, b.BearerToken, nil, nil); code != http.StatusNoContent {
		t.Fatalf("expected 204 on self revoke, got %d", code)
	}
}

func TestPasswordOverHTTP(t *testing.T) {
	h := newHarness(t)
	bearer := h.login().BearerToken

	var eb errorBody
	bad := changePasswordRequest{CurrentPassword: testPassword, NewPassword: "abcdef", ConfirmPassword: "abcdeg"}
	if code := h.do(http.MethodPost, "/v1/security/password", bearer, bad, &eb); code != http.StatusBadRequest || eb.Kind != "invalid_input" {
		t.Fatalf("expected 400 invalid_input, got %d %+v", code, eb)
	}

	good := changePasswordRequest{CurrentPassword: testPassword, NewPassword: "new-secret-42", ConfirmPassword: "new-secret-42"}
	var res goSecure.ChangePasswordResult
	if code := h.do(http.MethodPost, "/v1/security/password", bearer, good, &res); code != http.StatusOK {
		t.Fatalf("change status %d", code)
	}
	if time.Since(res.ChangedAt) > time.Minute {
		t.Fatalf("unexpected changedAt %v", res.ChangedAt)
	}

	var info goSecure.PasswordInfo
	h.do(http.MethodGet, "/v1/security/password", bearer, nil, &info)
	if info.DaysSinceChange != 0 || info.LastChanged.IsZero() {
		t.Fatalf("unexpected info %+v", info)
	}
}

func TestStoreOutageIs503(t *testing.T) {
	h := newHarness(t)
	bearer := h.login().BearerToken
	h.mr.Close()

	var eb errorBody
	if code := h.do(http.MethodGet, "/v1/security/sessions", bearer, nil, &eb); code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", code)
	}
	if eb.Kind != "unavailable" {
		t.Fatalf("unexpected body %+v", eb)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{goSecure.ErrUnauthorized, http.StatusUnauthorized},
		{goSecure.ErrSessionNotFound, http.StatusNotFound},
		{goSecure.ErrInvalidTokenFormat, http.StatusBadRequest},
		{goSecure.ErrTwoFactorAlreadyEnabled, http.StatusConflict},
		{goSecure.ErrInvalidCode, http.StatusUnprocessableEntity},
		{goSecure.ErrRateLimited, http.StatusTooManyRequests},
		{fmt.Errorf("%w: dial tcp", goSecure.ErrUnavailable), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got := StatusFor(tc.err); got != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, got)
		}
	}
	if publicMessage(fmt.Errorf("%w: secret detail", goSecure.ErrUnavailable)) == "secret detail" {
		t.Fatal("storage detail must not leak")
	}
}
