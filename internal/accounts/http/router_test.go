package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/clipshare/internal/accounts/assets"
	httpapi "github.com/aussiebroadwan/clipshare/internal/accounts/http"
	"github.com/aussiebroadwan/clipshare/internal/accounts/service"
	"github.com/aussiebroadwan/clipshare/internal/accounts/store/drivers/sqlite"
	"github.com/aussiebroadwan/clipshare/pkg/accountsdk"
	"github.com/aussiebroadwan/clipshare/pkg/cryptox"
	"github.com/aussiebroadwan/clipshare/pkg/httpx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "accounts-http-test")
	if err != nil {
		panic(err)
	}
	if err := cryptox.LoadPepper(filepath.Join(dir, "pepper")); err != nil {
		panic(err)
	}
	if err := cryptox.SetParams(cryptox.Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1}); err != nil {
		panic(err)
	}

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

const mediaBase = "http://accounts.test/media"

func newRouter(t *testing.T, opts ...func(*httpapi.Router)) *httpapi.Router {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations(context.Background()))

	tokens, err := service.NewTokenIssuer(service.TokenConfig{
		Issuer:        "clipshare-test",
		AccessSecret:  []byte("access-secret-for-tests-0123456789"),
		RefreshSecret: []byte("refresh-secret-for-tests-0123456789"),
	})
	require.NoError(t, err)

	host, err := assets.NewLocalHost(t.TempDir(), mediaBase)
	require.NoError(t, err)

	r := httpapi.NewRouter(tokens, "test", st, slog.New(slog.DiscardHandler), prometheus.NewRegistry())
	r.AuthService = &service.AuthService{Store: st, Tokens: tokens, Assets: host}
	r.ProfileService = &service.ProfileService{Store: st, Assets: host}
	r.Media = host.Handler()
	r.Limits = relaxedLimits()
	for _, opt := range opts {
		opt(r)
	}
	r.ApplyRoutes()
	return r
}

// relaxedLimits keeps the route budgets out of the way; every test request
// comes from the same address.
func relaxedLimits() httpx.RateLimits {
	wide := httpx.RateLimit{Requests: 1000, Window: time.Minute, Burst: 1000}
	return httpx.RateLimits{Credentials: wide, Writes: wide, Reads: wide, Public: wide}
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// pngSignature is enough for content sniffing to see a PNG.
const pngSignature = "\x89PNG\r\n\x1a\n"

type formFile struct {
	name, content string
}

// multipartRequest uploads each file as "<field>.png" with a PNG signature
// in front of the given content.
func multipartRequest(t *testing.T, method, path string, fields map[string]string, files map[string]string) *http.Request {
	t.Helper()

	named := make(map[string]formFile, len(files))
	for field, body := range files {
		named[field] = formFile{name: field + ".png", content: pngSignature + body}
	}
	return multipartFiles(t, method, path, fields, named)
}

func multipartFiles(t *testing.T, method, path string, fields map[string]string, files map[string]formFile) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for field, f := range files {
		part, err := mw.CreateFormFile(field, f.name)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()

	var r io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) accountsdk.Response[T] {
	t.Helper()
	var env accountsdk.Response[T]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func requireError(t *testing.T, rec *httptest.ResponseRecorder, status int, msg string) {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())

	var env accountsdk.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.False(t, env.Success)
	require.Equal(t, status, env.StatusCode)
	if msg != "" {
		require.Equal(t, msg, env.Message)
	}
}

func register(t *testing.T, h http.Handler, username string) accountsdk.User {
	t.Helper()
	rec := serve(h, multipartRequest(t, http.MethodPost, "/api/v1/users/register", map[string]string{
		"fullName": "User " + username,
		"email":    username + "@example.com",
		"username": username,
		"password": "pw-" + username,
	}, map[string]string{"avatar": "avatar-" + username}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[accountsdk.User](t, rec).Data
}

func login(t *testing.T, h http.Handler, username string) (accountsdk.LoginData, []*http.Cookie) {
	t.Helper()
	rec := serve(h, jsonRequest(t, http.MethodPost, "/api/v1/users/login",
		accountsdk.LoginRequest{Username: username, Password: "pw-" + username}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[accountsdk.LoginData](t, rec).Data, rec.Result().Cookies()
}

func cookieNamed(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func bearer(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

// requireNoSecrets asserts that no key anywhere in the JSON body names a
// credential field.
func requireNoSecrets(t *testing.T, body []byte) {
	t.Helper()

	var walk func(v any)
	walk = func(v any) {
		switch v := v.(type) {
		case map[string]any:
			for k, child := range v {
				require.NotContains(t, []string{"password", "passwordHash", "refreshTokenHash"}, k)
				walk(child)
			}
		case []any:
			for _, child := range v {
				walk(child)
			}
		}
	}

	var v any
	require.NoError(t, json.Unmarshal(body, &v))
	walk(v)
}

func TestRegister(t *testing.T) {
	h := newRouter(t)

	rec := serve(h, multipartRequest(t, http.MethodPost, "/api/v1/users/register", map[string]string{
		"fullName": "Alice Liddell",
		"email":    "Alice@Example.com",
		"username": "Alice",
		"password": "wonderland",
	}, map[string]string{"avatar": "avatar-bytes", "coverImage": "cover-bytes"}))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	requireNoSecrets(t, rec.Body.Bytes())
	require.NotContains(t, rec.Body.String(), "refreshToken")

	env := decode[accountsdk.User](t, rec)
	require.True(t, env.Success)
	require.Equal(t, "User registered successfully", env.Message)
	require.Equal(t, "alice", env.Data.Username)
	require.Equal(t, "alice@example.com", env.Data.Email)
	require.Contains(t, env.Data.Avatar, mediaBase+"/avatars/")
	require.Contains(t, env.Data.CoverImage, mediaBase+"/covers/")

	// The uploaded avatar is served back
	u, err := url.Parse(env.Data.Avatar)
	require.NoError(t, err)
	media := serve(h, httptest.NewRequest(http.MethodGet, u.Path, nil))
	require.Equal(t, http.StatusOK, media.Code)
	require.Equal(t, pngSignature+"avatar-bytes", media.Body.String())
	require.Equal(t, "image/png", media.Header().Get("Content-Type"))
	require.Equal(t, "nosniff", media.Header().Get("X-Content-Type-Options"))
	require.True(t, strings.HasSuffix(u.Path, ".png"))
}

func TestRegister_RejectsScriptUploads(t *testing.T) {
	h := newRouter(t)
	fields := map[string]string{
		"fullName": "Mallory", "email": "mallory@example.com", "username": "mallory", "password": "pw",
	}
	const script = "<html><script>fetch('/api/v1/users/refresh-token',{method:'POST'})</script></html>"

	for name, files := range map[string]map[string]formFile{
		"html avatar":           {"avatar": {name: "evil.html", content: script}},
		"html disguised as png": {"avatar": {name: "avatar.png", content: script}},
		"html cover": {
			"avatar":     {name: "avatar.png", content: pngSignature + "ok"},
			"coverImage": {name: "cover.html", content: script},
		},
	} {
		t.Run(name, func(t *testing.T) {
			rec := serve(h, multipartFiles(t, http.MethodPost, "/api/v1/users/register", fields, files))
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			require.Contains(t, rec.Body.String(), "must be a PNG, JPEG, GIF or WebP image")
		})
	}

	// No account was created
	rec := serve(h, jsonRequest(t, http.MethodPost, "/api/v1/users/login",
		accountsdk.LoginRequest{Username: "mallory", Password: "pw"}))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateAvatar_RejectsScriptUploads(t *testing.T) {
	h := newRouter(t)
	u := register(t, h, "oscar")
	data, _ := login(t, h, "oscar")

	rec := serve(h, bearer(multipartFiles(t, http.MethodPatch, "/api/v1/users/avatar", nil,
		map[string]formFile{"avatar": {name: "evil.html", content: "<script>alert(1)</script>"}}), data.AccessToken))
	requireError(t, rec, http.StatusBadRequest, "avatar must be a PNG, JPEG, GIF or WebP image")

	rec = serve(h, bearer(jsonRequest(t, http.MethodGet, "/api/v1/users/current-user", nil), data.AccessToken))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, u.Avatar, decode[accountsdk.User](t, rec).Data.Avatar)
}

func TestRegister_Failures(t *testing.T) {
	h := newRouter(t)
	register(t, h, "bob")

	t.Run("missing avatar", func(t *testing.T) {
		rec := serve(h, multipartRequest(t, http.MethodPost, "/api/v1/users/register", map[string]string{
			"fullName": "Carol", "email": "carol@example.com", "username": "carol", "password": "pw",
		}, nil))
		requireError(t, rec, http.StatusBadRequest, "avatar file is required")
	})

	t.Run("missing field", func(t *testing.T) {
		rec := serve(h, multipartRequest(t, http.MethodPost, "/api/v1/users/register", map[string]string{
			"fullName": "Carol", "email": "carol@example.com", "username": "carol",
		}, map[string]string{"avatar": "x"}))
		requireError(t, rec, http.StatusBadRequest, "all fields are required")
	})

	t.Run("duplicate", func(t *testing.T) {
		rec := serve(h, multipartRequest(t, http.MethodPost, "/api/v1/users/register", map[string]string{
			"fullName": "Bob", "email": "other@example.com", "username": "BOB", "password": "pw",
		}, map[string]string{"avatar": "x"}))
		requireError(t, rec, http.StatusConflict, "user with email or username already exists")
	})

	t.Run("not multipart", func(t *testing.T) {
		rec := serve(h, jsonRequest(t, http.MethodPost, "/api/v1/users/register", map[string]string{"username": "x"}))
		requireError(t, rec, http.StatusBadRequest, "invalid multipart form")
	})
}

func TestLogin(t *testing.T) {
	h := newRouter(t)
	u := register(t, h, "dave")

	rec := serve(h, jsonRequest(t, http.MethodPost, "/api/v1/users/login",
		accountsdk.LoginRequest{Email: "dave@example.com", Password: "pw-dave"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	env := decode[accountsdk.LoginData](t, rec)
	require.Equal(t, "User logged in successfully", env.Message)
	require.Equal(t, u.ID, env.Data.User.ID)
	require.NotEmpty(t, env.Data.AccessToken)
	require.NotEmpty(t, env.Data.RefreshToken)
	require.False(t, env.Data.AccessTokenExpiresAt.IsZero())

	cookies := rec.Result().Cookies()
	for name, value := range map[string]string{
		"accessToken":  env.Data.AccessToken,
		"refreshToken": env.Data.RefreshToken,
	} {
		c := cookieNamed(cookies, name)
		require.NotNil(t, c, name)
		require.Equal(t, value, c.Value)
		require.True(t, c.HttpOnly)
		require.Equal(t, http.SameSiteLaxMode, c.SameSite)
		require.Equal(t, "/", c.Path)
	}
}

func TestLogin_Failures(t *testing.T) {
	h := newRouter(t)
	register(t, h, "erin")

	rec := serve(h, jsonRequest(t, http.MethodPost, "/api/v1/users/login",
		accountsdk.LoginRequest{Username: "nobody", Password: "pw"}))
	requireError(t, rec, http.StatusNotFound, "user does not exist")

	rec = serve(h, jsonRequest(t, http.MethodPost, "/api/v1/users/login",
		accountsdk.LoginRequest{Username: "erin", Password: "wrong"}))
	requireError(t, rec, http.StatusUnauthorized, "invalid user credentials")
	require.Nil(t, cookieNamed(rec.Result().Cookies(), "accessToken"))

	rec = serve(h, jsonRequest(t, http.MethodPost, "/api/v1/users/login",
		accountsdk.LoginRequest{Password: "pw"}))
	requireError(t, rec, http.StatusBadRequest, "username or email is required")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", bytes.NewBufferString("username=erin"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	requireError(t, serve(h, req), http.StatusUnsupportedMediaType, "")

	req = httptest.NewRequest(http.MethodPost, "/api/v1/users/login", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	requireError(t, serve(h, req), http.StatusBadRequest, "invalid request body")
}

func TestCurrentUser(t *testing.T) {
	h := newRouter(t)
	u := register(t, h, "frank")
	data, cookies := login(t, h, "frank")

	t.Run("bearer", func(t *testing.T) {
		rec := serve(h, bearer(httptest.NewRequest(http.MethodGet, "/api/v1/users/current-user", nil), data.AccessToken))
		require.Equal(t, http.StatusOK, rec.Code)
		requireNoSecrets(t, rec.Body.Bytes())

		env := decode[accountsdk.User](t, rec)
		require.Equal(t, "User fetched successfully", env.Message)
		require.Equal(t, u, env.Data)
	})

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/users/current-user", nil)
		req.AddCookie(cookieNamed(cookies, "accessToken"))
		require.Equal(t, http.StatusOK, serve(h, req).Code)
	})

	t.Run("missing token", func(t *testing.T) {
		rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/users/current-user", nil))
		requireError(t, rec, http.StatusUnauthorized, "unauthorized request")
	})

	t.Run("refresh token is not an access token", func(t *testing.T) {
		rec := serve(h, bearer(httptest.NewRequest(http.MethodGet, "/api/v1/users/current-user", nil), data.RefreshToken))
		requireError(t, rec, http.StatusUnauthorized, "invalid access token")
	})
}

func TestRefreshToken(t *testing.T) {
	h := newRouter(t)
	register(t, h, "grace")
	data, cookies := login(t, h, "grace")

	refresh := func(cookie string, body any) *httptest.ResponseRecorder {
		req := jsonRequest(t, http.MethodPost, "/api/v1/users/refresh-token", body)
		if cookie != "" {
			req.AddCookie(&http.Cookie{Name: "refreshToken", Value: cookie})
		}
		return serve(h, req)
	}

	// Cookie wins over a bogus body value
	rec := refresh(cookieNamed(cookies, "refreshToken").Value, accountsdk.RefreshRequest{RefreshToken: "bogus"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	env := decode[accountsdk.TokenData](t, rec)
	require.Equal(t, "Access token refreshed", env.Message)
	require.NotEqual(t, data.RefreshToken, env.Data.RefreshToken)
	require.Equal(t, env.Data.RefreshToken, cookieNamed(rec.Result().Cookies(), "refreshToken").Value)

	// The old token is spent
	requireError(t, refresh(data.RefreshToken, nil), http.StatusUnauthorized, "refresh token is expired or used")

	// Body only
	rec = refresh("", accountsdk.RefreshRequest{RefreshToken: env.Data.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	requireError(t, refresh("", nil), http.StatusUnauthorized, "unauthorized request")
	requireError(t, refresh("garbage", nil), http.StatusUnauthorized, "invalid refresh token")
}

func TestRefreshToken_UnreadableBody(t *testing.T) {
	h := newRouter(t)

	tests := []struct {
		name        string
		contentType string
		body        string
	}{
		{"form body", "application/x-www-form-urlencoded", "refreshToken=abc"},
		{"text body", "text/plain", "abc"},
		{"malformed json", "application/json", `{"refreshToken":`},
		{"wrong json type", "application/json", `{"refreshToken":42}`},
		{"bad content type", "application/json; charset", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			requireError(t, serve(h, req), http.StatusUnauthorized, "unauthorized request")
		})
	}
}

func TestLogout(t *testing.T) {
	h := newRouter(t)
	register(t, h, "heidi")
	data, _ := login(t, h, "heidi")

	rec := serve(h, bearer(jsonRequest(t, http.MethodPost, "/api/v1/users/logout", nil), data.AccessToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "User logged out", decode[accountsdk.Empty](t, rec).Message)

	for _, name := range []string{"accessToken", "refreshToken"} {
		c := cookieNamed(rec.Result().Cookies(), name)
		require.NotNil(t, c, name)
		require.Empty(t, c.Value)
		require.Negative(t, c.MaxAge)
	}

	req := jsonRequest(t, http.MethodPost, "/api/v1/users/refresh-token", accountsdk.RefreshRequest{RefreshToken: data.RefreshToken})
	requireError(t, serve(h, req), http.StatusUnauthorized, "refresh token is expired or used")

	requireError(t, serve(h, jsonRequest(t, http.MethodPost, "/api/v1/users/logout", nil)), http.StatusUnauthorized, "")
}

func TestChangePassword(t *testing.T) {
	h := newRouter(t)
	register(t, h, "ivan")
	data, _ := login(t, h, "ivan")

	change := func(old, next string) *httptest.ResponseRecorder {
		return serve(h, bearer(jsonRequest(t, http.MethodPost, "/api/v1/users/change-password",
			accountsdk.ChangePasswordRequest{OldPassword: old, NewPassword: next}), data.AccessToken))
	}

	requireError(t, change("wrong", "new-pw"), http.StatusUnauthorized, "invalid old password")
	requireError(t, change("pw-ivan", ""), http.StatusBadRequest, "new password is required")

	rec := change("pw-ivan", "new-pw")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "Password changed successfully", decode[accountsdk.Empty](t, rec).Message)

	rec = serve(h, jsonRequest(t, http.MethodPost, "/api/v1/users/login",
		accountsdk.LoginRequest{Username: "ivan", Password: "new-pw"}))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdateAccount(t *testing.T) {
	h := newRouter(t)
	register(t, h, "judy")
	register(t, h, "ken")
	data, _ := login(t, h, "judy")

	update := func(body accountsdk.UpdateAccountRequest) *httptest.ResponseRecorder {
		return serve(h, bearer(jsonRequest(t, http.MethodPatch, "/api/v1/users/update-account", body), data.AccessToken))
	}

	rec := update(accountsdk.UpdateAccountRequest{FullName: "Judith", Email: "Judith@Example.com"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	env := decode[accountsdk.User](t, rec)
	require.Equal(t, "Account details updated successfully", env.Message)
	require.Equal(t, "Judith", env.Data.FullName)
	require.Equal(t, "judith@example.com", env.Data.Email)

	requireError(t, update(accountsdk.UpdateAccountRequest{FullName: "Judith"}), http.StatusBadRequest, "all fields are required")
	requireError(t, update(accountsdk.UpdateAccountRequest{FullName: "Judith", Email: "ken@example.com"}),
		http.StatusConflict, "email is already in use")
}

func TestUpdateImages(t *testing.T) {
	h := newRouter(t)
	u := register(t, h, "liam")
	data, _ := login(t, h, "liam")

	rec := serve(h, bearer(multipartRequest(t, http.MethodPatch, "/api/v1/users/avatar", nil,
		map[string]string{"avatar": "new-avatar"}), data.AccessToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	env := decode[accountsdk.User](t, rec)
	require.Equal(t, "Avatar image updated successfully", env.Message)
	require.NotEqual(t, u.Avatar, env.Data.Avatar)

	// The replaced avatar is gone
	old, err := url.Parse(u.Avatar)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, serve(h, httptest.NewRequest(http.MethodGet, old.Path, nil)).Code)

	rec = serve(h, bearer(multipartRequest(t, http.MethodPatch, "/api/v1/users/cover-image", nil,
		map[string]string{"coverImage": "wide"}), data.AccessToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "Cover image updated successfully", decode[accountsdk.User](t, rec).Message)

	rec = serve(h, bearer(multipartRequest(t, http.MethodPatch, "/api/v1/users/avatar", map[string]string{"x": "y"}, nil), data.AccessToken))
	requireError(t, rec, http.StatusBadRequest, "avatar file is missing")

	rec = serve(h, bearer(multipartRequest(t, http.MethodPatch, "/api/v1/users/cover-image", map[string]string{"x": "y"}, nil), data.AccessToken))
	requireError(t, rec, http.StatusBadRequest, "cover image file is missing")
}

func TestUpload_TooLarge(t *testing.T) {
	h := newRouter(t, func(r *httpapi.Router) { r.MaxUploadBytes = 1 << 10 })

	big := string(bytes.Repeat([]byte("x"), 4<<10))
	rec := serve(h, multipartRequest(t, http.MethodPost, "/api/v1/users/register", map[string]string{
		"fullName": "Big", "email": "big@example.com", "username": "big", "password": "pw",
	}, map[string]string{"avatar": big}))
	requireError(t, rec, http.StatusRequestEntityTooLarge, "request body is too large")
}

func TestSystemEndpoints(t *testing.T) {
	h := newRouter(t)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/livez", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var live accountsdk.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &live))
	require.Equal(t, "ok", live.Status)
	require.Equal(t, "test", live.Version)

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var ready accountsdk.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ready))
	require.NotNil(t, ready.Checks)
	require.Equal(t, "ok", ready.Checks.Database)

	register(t, h, "mia")
	rec = serve(h, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `clipshare_accounts_http_requests_total{code="201",handler="register",method="post"} 1`)

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/users/nope", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
