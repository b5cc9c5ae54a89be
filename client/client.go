package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	auth "github.com/memoria-app/auth"
	"github.com/memoria-app/auth/client/tabsync"
)

// logoutMarker is implemented by stores that can flag a locally initiated
// logout for the file transport.
type logoutMarker interface {
	SetLogoutMarker() error
	ClearLogoutMarker() error
}

// Config wires a Client.
type Config struct {
	// BaseURL of the auth server, e.g. "https://api.example.com".
	BaseURL string
	// Store holds the access credential. Defaults to an in-memory store.
	Store TokenStore
	// Bus is the optional cross-instance channel.
	Bus tabsync.Bus
	// BaseTransport underlies both channels; http.DefaultTransport when nil.
	BaseTransport http.RoundTripper
}

// Client bundles the full client subsystem: token storage, session flags,
// single-flight refresh, the intercepting transport, identity restoration,
// and cross-instance synchronization.
type Client struct {
	baseURL string
	store   TokenStore
	session *Session
	events  *EventBus

	coordinator *RefreshCoordinator
	restorer    *Restorer

	// authed carries the intercepting transport; plain is the
	// unauthenticated channel whose cookie jar holds the refresh cookie.
	authed *http.Client
	plain  *http.Client

	bus         tabsync.Bus
	unsubscribe func()
}

// New builds a Client. The refresh credential lives exclusively in the
// unauthenticated channel's cookie jar.
func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		return nil, fmt.Errorf("client: BaseURL required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("client: invalid BaseURL: %w", err)
	}

	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	c := &Client{
		baseURL: baseURL,
		store:   store,
		session: NewSession(),
		events:  NewEventBus(),
		plain: &http.Client{
			Transport: cfg.BaseTransport,
			Jar:       jar,
		},
		bus: cfg.Bus,
	}

	c.coordinator = NewRefreshCoordinator(c.session, store)
	c.authed = &http.Client{
		Transport: NewTransport(
			cfg.BaseTransport,
			store,
			c.session,
			c.coordinator,
			c.events,
			c.performRefresh,
		),
	}
	c.restorer = NewRestorer(store, c.fetchIdentity)

	if c.bus != nil {
		c.unsubscribe = c.bus.Subscribe(c.handleBusMessage)
	}

	return c, nil
}

// HTTPClient returns the authenticated channel for application requests.
func (c *Client) HTTPClient() *http.Client {
	return c.authed
}

// Session exposes the process-wide flags.
func (c *Client) Session() *Session {
	return c.session
}

// SubscribeSessionExpired registers fn for the terminal refresh-failed
// event.
func (c *Client) SubscribeSessionExpired(fn func()) func() {
	return c.events.Subscribe(fn)
}

// Restore resolves the current identity, see [Restorer.Restore].
func (c *Client) Restore(ctx context.Context) (auth.Identity, bool, error) {
	return c.restorer.Restore(ctx)
}

// NotifyCredentialRemoved routes an external credential removal into the
// terminal session-expired event. It is the hook for the tabsync file
// transport's OnCredentialRemoved callback: a vanished credential that this
// instance did not remove itself ends the session the same way a rejected
// refresh does, through the same at-most-once gate.
func (c *Client) NotifyCredentialRemoved() {
	if c.session.LoggingOut() {
		// Our own logout is mid-flight; its cleanup already covers this.
		return
	}
	c.restorer.ClearIdentity()
	if c.session.MarkRefreshFailed() {
		c.events.emit()
	}
}

// Close detaches from the bus.
func (c *Client) Close() error {
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	return nil
}

// Login authenticates on the unauthenticated channel. A 401 here means
// wrong credentials, not an expired session.
func (c *Client) Login(ctx context.Context, email, password string) (auth.Identity, error) {
	body := map[string]string{"email": email, "password": password}

	var out struct {
		AccessToken string        `json:"accessToken"`
		User        auth.Identity `json:"user"`
	}
	status, err := c.plainJSON(ctx, http.MethodPost, "/auth/login", body, &out)
	if err != nil {
		return auth.Identity{}, err
	}
	switch {
	case status == http.StatusUnauthorized:
		return auth.Identity{}, auth.ErrInvalidCredentials
	case status != http.StatusOK:
		return auth.Identity{}, fmt.Errorf("client: login status %d", status)
	}

	if err := c.store.Save(out.AccessToken); err != nil {
		return auth.Identity{}, err
	}
	c.session.ResetRefreshFailed()
	c.restorer.SetIdentity(out.User)

	if c.bus != nil {
		c.bus.Send(tabsync.Message{Kind: tabsync.KindLogin})
	}
	return out.User, nil
}

// Signup creates an account. With server-side auto-login enabled the
// returned credential pair is adopted exactly like a login.
func (c *Client) Signup(ctx context.Context, email, password, name, nickname string) (auth.Identity, error) {
	body := map[string]string{
		"email":    email,
		"password": password,
		"name":     name,
		"nickname": nickname,
	}

	var out struct {
		AccessToken string        `json:"accessToken"`
		User        auth.Identity `json:"user"`
	}
	status, err := c.plainJSON(ctx, http.MethodPost, "/auth/signup", body, &out)
	if err != nil {
		return auth.Identity{}, err
	}
	switch {
	case status == http.StatusConflict:
		return auth.Identity{}, auth.ErrAccountExists
	case status != http.StatusCreated:
		return auth.Identity{}, fmt.Errorf("client: signup status %d", status)
	}

	if out.AccessToken != "" {
		if err := c.store.Save(out.AccessToken); err != nil {
			return auth.Identity{}, err
		}
		c.session.ResetRefreshFailed()
		c.restorer.SetIdentity(out.User)
		if c.bus != nil {
			c.bus.Send(tabsync.Message{Kind: tabsync.KindLogin})
		}
	}
	return out.User, nil
}

// Logout tears the session down in a fixed order: flag first, marker second,
// server call third, local cleanup fourth, broadcast fifth. The server call
// is best-effort; local state is cleared no matter what the network does.
func (c *Client) Logout(ctx context.Context) error {
	c.session.StartLogout()
	defer c.session.EndLogout()

	marker, hasMarker := c.store.(logoutMarker)
	if hasMarker {
		_ = marker.SetLogoutMarker()
	}

	if token, ok := c.store.Load(); ok {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/logout", nil)
		if err == nil {
			req.Header.Set("Authorization", "Bearer "+token)
			if resp, err := c.plain.Do(req); err == nil {
				drain(resp)
			}
		}
	}

	err := c.store.Clear()
	c.restorer.ClearIdentity()

	if c.bus != nil {
		c.bus.Send(tabsync.Message{Kind: tabsync.KindLogout})
	}
	if hasMarker {
		_ = marker.ClearLogoutMarker()
	}
	return err
}

// UpdateProfile patches the profile over the authenticated channel and
// broadcasts the new identity.
func (c *Client) UpdateProfile(ctx context.Context, patch auth.ProfileUpdate) (auth.Identity, error) {
	body := map[string]*string{
		"name":      patch.Name,
		"nickname":  patch.Nickname,
		"avatarUrl": patch.AvatarURL,
	}

	var identity auth.Identity
	status, err := c.authedJSON(ctx, http.MethodPatch, "/users/me", body, &identity)
	if err != nil {
		return auth.Identity{}, err
	}
	if status != http.StatusOK {
		return auth.Identity{}, fmt.Errorf("client: profile update status %d", status)
	}

	c.restorer.SetIdentity(identity)
	if c.bus != nil {
		c.bus.Send(tabsync.Message{Kind: tabsync.KindProfileUpdated, Identity: &identity})
	}
	return identity, nil
}

// ChangePassword changes the password. The server revokes the refresh
// lineage; the next expiry on this instance ends the session.
func (c *Client) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	body := map[string]string{
		"oldPassword": oldPassword,
		"newPassword": newPassword,
	}

	status, err := c.authedJSON(ctx, http.MethodPatch, "/users/me/password", body, nil)
	if err != nil {
		return err
	}
	switch status {
	case http.StatusNoContent:
		return nil
	case http.StatusUnauthorized:
		return auth.ErrInvalidCredentials
	default:
		return fmt.Errorf("client: password change status %d", status)
	}
}

// DeleteAccount removes the account server-side and then runs the local
// logout cleanup.
func (c *Client) DeleteAccount(ctx context.Context) error {
	status, err := c.authedJSON(ctx, http.MethodDelete, "/users/me", nil, nil)
	if err != nil {
		return err
	}
	if status != http.StatusNoContent {
		return fmt.Errorf("client: account deletion status %d", status)
	}
	return c.Logout(ctx)
}

// performRefresh is the one network call the coordinator drives. It runs on
// the unauthenticated channel; the cookie jar supplies the refresh cookie.
func (c *Client) performRefresh(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/refresh", nil)
	if err != nil {
		return "", err
	}

	resp, err := c.plain.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrRefreshRejected, resp.StatusCode)
	}

	var out struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRefreshRejected, err)
	}
	if out.AccessToken == "" {
		return "", ErrRefreshRejected
	}
	return out.AccessToken, nil
}

func (c *Client) fetchIdentity(ctx context.Context) (auth.Identity, error) {
	var identity auth.Identity
	status, err := c.authedJSON(ctx, http.MethodGet, "/auth/me", nil, &identity)
	if err != nil {
		return auth.Identity{}, err
	}
	if status != http.StatusOK {
		return auth.Identity{}, fmt.Errorf("client: identity status %d", status)
	}
	return identity, nil
}

// handleBusMessage applies remote state changes locally with zero network
// calls.
func (c *Client) handleBusMessage(msg tabsync.Message) {
	switch msg.Kind {
	case tabsync.KindLogout:
		_ = c.store.Clear()
		c.restorer.ClearIdentity()
	case tabsync.KindLogin:
		// Another instance logged in; our cached identity may be stale.
		c.restorer.ClearIdentity()
	case tabsync.KindProfileUpdated:
		if msg.Identity != nil {
			c.restorer.SetIdentity(*msg.Identity)
		}
	}
}

func (c *Client) plainJSON(ctx context.Context, method, path string, body, out any) (int, error) {
	return c.doJSON(ctx, c.plain, method, path, body, out)
}

func (c *Client) authedJSON(ctx context.Context, method, path string, body, out any) (int, error) {
	return c.doJSON(ctx, c.authed, method, path, body, out)
}

func (c *Client) doJSON(ctx context.Context, hc *http.Client, method, path string, body, out any) (int, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}
