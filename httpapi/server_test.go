package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	auth "github.com/memoria-app/auth"
)

type memoryProvider struct {
	mu      sync.Mutex
	users   map[string]auth.UserRecord
	byEmail map[string]string
}

func newMemoryProvider() *memoryProvider {
	return &memoryProvider{
		users:   map[string]auth.UserRecord{},
		byEmail: map[string]string{},
	}
}

func (p *memoryProvider) GetUserByEmail(email string) (auth.UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id, ok := p.byEmail[email]
	if !ok {
		return auth.UserRecord{}, auth.ErrUserNotFound
	}
	return p.users[id], nil
}

func (p *memoryProvider) GetUserByID(userID string) (auth.UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	user, ok := p.users[userID]
	if !ok {
		return auth.UserRecord{}, auth.ErrUserNotFound
	}
	return user, nil
}

func (p *memoryProvider) CreateUser(_ context.Context, input auth.CreateUserInput) (auth.UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.byEmail[input.Email]; exists {
		return auth.UserRecord{}, auth.ErrProviderDuplicateEmail
	}

	user := auth.UserRecord{
		UserID:       uuid.NewString(),
		Email:        input.Email,
		PasswordHash: input.PasswordHash,
		Name:         input.Name,
		Nickname:     input.Nickname,
	}
	p.users[user.UserID] = user
	p.byEmail[user.Email] = user.UserID
	return user, nil
}

func (p *memoryProvider) UpdatePasswordHash(userID, newHash string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	user, ok := p.users[userID]
	if !ok {
		return auth.ErrUserNotFound
	}
	user.PasswordHash = newHash
	p.users[userID] = user
	return nil
}

func (p *memoryProvider) UpdateProfile(_ context.Context, userID string, input auth.ProfileUpdate) (auth.UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	user, ok := p.users[userID]
	if !ok {
		return auth.UserRecord{}, auth.ErrUserNotFound
	}
	if input.Name != nil {
		user.Name = *input.Name
	}
	if input.Nickname != nil {
		user.Nickname = *input.Nickname
	}
	if input.AvatarURL != nil {
		user.AvatarURL = *input.AvatarURL
	}
	p.users[userID] = user
	return user, nil
}

func (p *memoryProvider) DeleteUser(_ context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	user, ok := p.users[userID]
	if !ok {
		return auth.ErrUserNotFound
	}
	delete(p.byEmail, user.Email)
	delete(p.users, userID)
	return nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	ts, _ := newTestServerWithRedis(t)
	return ts
}

func newTestServerWithRedis(t *testing.T) (*httptest.Server, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := auth.DefaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("test-secret-test-secret-test-sec")
	cfg.Account.AutoLogin = true
	// Argon2 tuned down to keep the suite fast.
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1

	engine, err := auth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(newMemoryProvider()).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	ts := httptest.NewServer(NewServer(engine, cfg))
	t.Cleanup(ts.Close)
	return ts, mr
}

func postJSON(t *testing.T, url string, body any, cookies ...*http.Cookie) *http.Response {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func decodeTokens(t *testing.T, resp *http.Response) tokenResponse {
	t.Helper()
	defer resp.Body.Close()

	var body tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func refreshCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()

	for _, c := range resp.Cookies() {
		if c.Name == RefreshCookieName {
			return c
		}
	}
	t.Fatal("response carries no refresh cookie")
	return nil
}

func signupUser(t *testing.T, ts *httptest.Server, email string) (tokenResponse, *http.Cookie) {
	t.Helper()

	resp := postJSON(t, ts.URL+"/auth/signup", map[string]string{
		"email":    email,
		"password": "correct-horse",
		"name":     "Bob Tester",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup returned %d", resp.StatusCode)
	}
	cookie := refreshCookie(t, resp)
	return decodeTokens(t, resp), cookie
}

func TestSignupLoginAndMe(t *testing.T) {
	ts := newTestServer(t)
	signupUser(t, ts, "bob@example.com")

	resp := postJSON(t, ts.URL+"/auth/login", map[string]string{
		"email":    "bob@example.com",
		"password": "correct-horse",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login returned %d", resp.StatusCode)
	}
	cookie := refreshCookie(t, resp)
	if !cookie.HttpOnly || cookie.Path != "/" {
		t.Fatalf("refresh cookie misconfigured: %+v", cookie)
	}
	tokens := decodeTokens(t, resp)
	if tokens.AccessToken == "" {
		t.Fatal("login returned no access token")
	}
	if tokens.User == nil || tokens.User.Email != "bob@example.com" {
		t.Fatalf("login returned wrong identity: %+v", tokens.User)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	meResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("me request failed: %v", err)
	}
	defer meResp.Body.Close()
	if meResp.StatusCode != http.StatusOK {
		t.Fatalf("/auth/me returned %d", meResp.StatusCode)
	}

	var identity auth.Identity
	if err := json.NewDecoder(meResp.Body).Decode(&identity); err != nil {
		t.Fatalf("decode identity: %v", err)
	}
	if identity.Email != "bob@example.com" {
		t.Fatalf("unexpected identity email %q", identity.Email)
	}
}

func TestSignupDuplicateConflict(t *testing.T) {
	ts := newTestServer(t)
	signupUser(t, ts, "bob@example.com")

	resp := postJSON(t, ts.URL+"/auth/signup", map[string]string{
		"email":    "bob@example.com",
		"password": "another-pass",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	ts := newTestServer(t)
	signupUser(t, ts, "bob@example.com")

	resp := postJSON(t, ts.URL+"/auth/login", map[string]string{
		"email":    "bob@example.com",
		"password": "wrong",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestMeWithoutToken(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/auth/me")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestRefreshRotatesCookie(t *testing.T) {
	ts := newTestServer(t)
	_, cookie := signupUser(t, ts, "bob@example.com")

	resp := postJSON(t, ts.URL+"/auth/refresh", nil, cookie)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh returned %d", resp.StatusCode)
	}
	rotated := refreshCookie(t, resp)
	if rotated.Value == cookie.Value {
		t.Fatal("refresh must rotate the credential")
	}
	tokens := decodeTokens(t, resp)
	if tokens.AccessToken == "" {
		t.Fatal("refresh returned no access token")
	}

	// The pre-rotation credential is now a replay.
	replay := postJSON(t, ts.URL+"/auth/refresh", nil, cookie)
	defer replay.Body.Close()
	if replay.StatusCode != http.StatusUnauthorized {
		t.Fatalf("replayed credential got %d, want 401", replay.StatusCode)
	}
	cleared := refreshCookie(t, replay)
	if cleared.MaxAge >= 0 {
		t.Fatal("rejected refresh should clear the cookie")
	}

	// Reuse detection killed the lineage, so the rotated credential dies too.
	after := postJSON(t, ts.URL+"/auth/refresh", nil, rotated)
	defer after.Body.Close()
	if after.StatusCode != http.StatusUnauthorized {
		t.Fatalf("post-reuse refresh got %d, want 401", after.StatusCode)
	}
}

func TestBackendOutageKeepsRefreshCookie(t *testing.T) {
	ts, mr := newTestServerWithRedis(t)
	_, cookie := signupUser(t, ts, "bob@example.com")

	mr.Close()

	resp := postJSON(t, ts.URL+"/auth/refresh", nil, cookie)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 with redis down, got %d", resp.StatusCode)
	}
	for _, c := range resp.Cookies() {
		if c.Name == RefreshCookieName {
			t.Fatal("an outage must not destroy the client's refresh credential")
		}
	}
}

func TestRefreshWithoutCookie(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/auth/refresh", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestLogoutRevokesAndClearsCookie(t *testing.T) {
	ts := newTestServer(t)
	tokens, cookie := signupUser(t, ts, "bob@example.com")

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout returned %d", resp.StatusCode)
	}
	if cleared := refreshCookie(t, resp); cleared.MaxAge >= 0 {
		t.Fatal("logout should clear the refresh cookie")
	}

	after := postJSON(t, ts.URL+"/auth/refresh", nil, cookie)
	defer after.Body.Close()
	if after.StatusCode != http.StatusUnauthorized {
		t.Fatalf("refresh after logout got %d, want 401", after.StatusCode)
	}
}

func TestLogoutWithOnlyCookie(t *testing.T) {
	ts := newTestServer(t)
	_, cookie := signupUser(t, ts, "bob@example.com")

	// No bearer token: the handler falls back to the refresh credential.
	resp := postJSON(t, ts.URL+"/auth/logout", nil, cookie)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout returned %d", resp.StatusCode)
	}

	after := postJSON(t, ts.URL+"/auth/refresh", nil, cookie)
	defer after.Body.Close()
	if after.StatusCode != http.StatusUnauthorized {
		t.Fatalf("refresh after logout got %d, want 401", after.StatusCode)
	}
}

func TestChangePasswordOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	tokens, _ := signupUser(t, ts, "bob@example.com")

	payload, _ := json.Marshal(map[string]string{
		"oldPassword": "correct-horse",
		"newPassword": "battery-staple",
	})
	req, _ := http.NewRequest(http.MethodPatch, ts.URL+"/users/me/password", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("change password failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("change password returned %d", resp.StatusCode)
	}

	old := postJSON(t, ts.URL+"/auth/login", map[string]string{
		"email":    "bob@example.com",
		"password": "correct-horse",
	})
	defer old.Body.Close()
	if old.StatusCode != http.StatusUnauthorized {
		t.Fatalf("old password still accepted: %d", old.StatusCode)
	}

	fresh := postJSON(t, ts.URL+"/auth/login", map[string]string{
		"email":    "bob@example.com",
		"password": "battery-staple",
	})
	defer fresh.Body.Close()
	if fresh.StatusCode != http.StatusOK {
		t.Fatalf("new password rejected: %d", fresh.StatusCode)
	}
}

func TestUpdateProfileOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	tokens, _ := signupUser(t, ts, "bob@example.com")

	payload, _ := json.Marshal(map[string]string{"nickname": "bobby"})
	req, _ := http.NewRequest(http.MethodPatch, ts.URL+"/users/me", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("profile patch failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("profile patch returned %d", resp.StatusCode)
	}

	var identity auth.Identity
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		t.Fatalf("decode identity: %v", err)
	}
	if identity.Nickname != "bobby" {
		t.Fatalf("nickname not updated: %+v", identity)
	}
}

func TestDeleteAccountOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	tokens, cookie := signupUser(t, ts, "bob@example.com")

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete returned %d", resp.StatusCode)
	}

	login := postJSON(t, ts.URL+"/auth/login", map[string]string{
		"email":    "bob@example.com",
		"password": "correct-horse",
	})
	defer login.Body.Close()
	if login.StatusCode != http.StatusUnauthorized {
		t.Fatalf("deleted account still logs in: %d", login.StatusCode)
	}

	after := postJSON(t, ts.URL+"/auth/refresh", nil, cookie)
	defer after.Body.Close()
	if after.StatusCode != http.StatusUnauthorized {
		t.Fatalf("refresh after delete got %d, want 401", after.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	signupUser(t, ts, "bob@example.com")

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics returned %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	body := string(raw)
	if !strings.Contains(body, "memauth_signup_success_total 1") {
		t.Fatalf("metrics missing signup counter:\n%s", body)
	}
	if !strings.Contains(body, "memauth_audit_dropped_total") {
		t.Fatal("metrics missing audit dropped counter")
	}
}
