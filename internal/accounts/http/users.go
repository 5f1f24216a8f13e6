package http

import (
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/aussiebroadwan/clipshare/internal/accounts/domain"
	"github.com/aussiebroadwan/clipshare/internal/accounts/service"
	"github.com/aussiebroadwan/clipshare/pkg/accountsdk"
	"github.com/aussiebroadwan/clipshare/pkg/httpx"
	"github.com/aussiebroadwan/clipshare/pkg/slogx"
)

// DefaultMaxUploadBytes caps a multipart request when none is configured.
const DefaultMaxUploadBytes = 10 << 20

// UsersHandler serves the /api/v1/users endpoints.
type UsersHandler struct {
	Auth           *service.AuthService
	Profile        *service.ProfileService
	Cookies        CookieConfig
	MaxUploadBytes int64
}

// Register godoc
//
//	@Summary		Register
//	@Description	Create an account. The avatar is required, the cover image is optional.
//	@Tags			Users
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			fullName	formData	string								true	"Full name"
//	@Param			email		formData	string								true	"Email address"
//	@Param			username	formData	string								true	"Username"
//	@Param			password	formData	string								true	"Password"
//	@Param			avatar		formData	file								true	"Avatar image"
//	@Param			coverImage	formData	file								false	"Cover image"
//	@Success		201			{object}	accountsdk.Response[accountsdk.User]
//	@Failure		400			{object}	accountsdk.ErrorResponse
//	@Failure		409			{object}	accountsdk.ErrorResponse
//	@Failure		500			{object}	accountsdk.ErrorResponse
//	@Router			/api/v1/users/register [post].
func (h *UsersHandler) Register(w http.ResponseWriter, r *http.Request) {
	if !h.parseMultipart(w, r) {
		return
	}

	avatar, closeAvatar := formAsset(r, "avatar")
	defer closeAvatar()
	cover, closeCover := formAsset(r, "coverImage")
	defer closeCover()

	u, err := h.Auth.Register(r.Context(), service.RegisterInput{
		FullName:   r.FormValue("fullName"),
		Email:      r.FormValue("email"),
		Username:   r.FormValue("username"),
		Password:   r.FormValue("password"),
		Avatar:     avatar,
		CoverImage: cover,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteSuccess(w, http.StatusCreated, toUser(u), "User registered successfully")
}

// Login godoc
//
//	@Summary		Log in
//	@Description	Authenticate with username or email. Tokens are returned in the body and set as HttpOnly cookies.
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			body	body		accountsdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	accountsdk.Response[accountsdk.LoginData]
//	@Failure		400		{object}	accountsdk.ErrorResponse
//	@Failure		401		{object}	accountsdk.ErrorResponse
//	@Failure		404		{object}	accountsdk.ErrorResponse
//	@Failure		429		{object}	accountsdk.ErrorResponse
//	@Router			/api/v1/users/login [post].
func (h *UsersHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req accountsdk.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	res, err := h.Auth.Login(r.Context(), service.LoginInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		ClientIP: httpx.ClientIP(r),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.Cookies.setSession(w, res.Tokens)
	httpx.WriteSuccess(w, http.StatusOK, accountsdk.LoginData{
		User:                 toUser(res.User),
		AccessToken:          res.Tokens.AccessToken,
		RefreshToken:         res.Tokens.RefreshToken,
		AccessTokenExpiresAt: res.Tokens.AccessExpiresAt,
	}, "User logged in successfully")
}

// Logout godoc
//
//	@Summary		Log out
//	@Description	End the current session and clear the session cookies.
//	@Tags			Users
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	accountsdk.Response[accountsdk.Empty]
//	@Failure		401	{object}	accountsdk.ErrorResponse
//	@Router			/api/v1/users/logout [post].
func (h *UsersHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, _ := httpx.UserIDFromContext(r.Context())

	if err := h.Auth.Logout(r.Context(), userID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.Cookies.clearSession(w)
	httpx.WriteSuccess(w, http.StatusOK, nil, "User logged out")
}

// RefreshToken godoc
//
//	@Summary		Refresh access token
//	@Description	Exchange the refresh token for a new pair. The refreshToken cookie takes precedence over the body.
//	@Description	A refresh token can be used once.
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			body	body		accountsdk.RefreshRequest	false	"Refresh token, when not sent as a cookie"
//	@Success		200		{object}	accountsdk.Response[accountsdk.TokenData]
//	@Failure		401		{object}	accountsdk.ErrorResponse
//	@Router			/api/v1/users/refresh-token [post].
func (h *UsersHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var cookie string
	if c, err := r.Cookie(refreshCookieName); err == nil {
		cookie = c.Value
	}

	// A body that does not decode carries no token, which the service
	// rejects as unauthorized
	var req accountsdk.RefreshRequest
	if cookie == "" {
		if err := decodeJSON(r, &req); err != nil {
			slogx.FromContext(r.Context()).Debug("unreadable refresh body", slog.Any("error", err))
			req = accountsdk.RefreshRequest{}
		}
	}

	pair, err := h.Auth.Refresh(r.Context(), domain.ResolvePresentedToken(cookie, req.RefreshToken))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.Cookies.setSession(w, pair)
	httpx.WriteSuccess(w, http.StatusOK, accountsdk.TokenData{
		AccessToken:          pair.AccessToken,
		RefreshToken:         pair.RefreshToken,
		AccessTokenExpiresAt: pair.AccessExpiresAt,
	}, "Access token refreshed")
}

// ChangePassword godoc
//
//	@Summary		Change password
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			body	body		accountsdk.ChangePasswordRequest	true	"Old and new password"
//	@Success		200		{object}	accountsdk.Response[accountsdk.Empty]
//	@Failure		400		{object}	accountsdk.ErrorResponse
//	@Failure		401		{object}	accountsdk.ErrorResponse
//	@Router			/api/v1/users/change-password [post].
func (h *UsersHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req accountsdk.ChangePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	userID, _ := httpx.UserIDFromContext(r.Context())
	if err := h.Auth.ChangePassword(r.Context(), userID, req.OldPassword, req.NewPassword); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteSuccess(w, http.StatusOK, nil, "Password changed successfully")
}

// CurrentUser godoc
//
//	@Summary	Current user
//	@Tags		Users
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	accountsdk.Response[accountsdk.User]
//	@Failure	401	{object}	accountsdk.ErrorResponse
//	@Failure	404	{object}	accountsdk.ErrorResponse
//	@Router		/api/v1/users/current-user [get].
func (h *UsersHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	userID, _ := httpx.UserIDFromContext(r.Context())

	u, err := h.Profile.GetCurrentUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteSuccess(w, http.StatusOK, toUser(u), "User fetched successfully")
}

// UpdateAccount godoc
//
//	@Summary	Update account details
//	@Tags		Users
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		body	body		accountsdk.UpdateAccountRequest	true	"Full name and email"
//	@Success	200		{object}	accountsdk.Response[accountsdk.User]
//	@Failure	400		{object}	accountsdk.ErrorResponse
//	@Failure	409		{object}	accountsdk.ErrorResponse
//	@Router		/api/v1/users/update-account [patch].
func (h *UsersHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountsdk.UpdateAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	userID, _ := httpx.UserIDFromContext(r.Context())
	u, err := h.Profile.UpdateProfile(r.Context(), userID, req.FullName, req.Email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteSuccess(w, http.StatusOK, toUser(u), "Account details updated successfully")
}

// UpdateAvatar godoc
//
//	@Summary	Replace avatar
//	@Tags		Users
//	@Accept		multipart/form-data
//	@Produce	json
//	@Security	BearerAuth
//	@Param		avatar	formData	file	true	"Avatar image"
//	@Success	200		{object}	accountsdk.Response[accountsdk.User]
//	@Failure	400		{object}	accountsdk.ErrorResponse
//	@Failure	500		{object}	accountsdk.ErrorResponse
//	@Router		/api/v1/users/avatar [patch].
func (h *UsersHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	if !h.parseMultipart(w, r) {
		return
	}
	avatar, closeAvatar := formAsset(r, "avatar")
	defer closeAvatar()

	userID, _ := httpx.UserIDFromContext(r.Context())
	u, err := h.Profile.UpdateAvatar(r.Context(), userID, avatar)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteSuccess(w, http.StatusOK, toUser(u), "Avatar image updated successfully")
}

// UpdateCoverImage godoc
//
//	@Summary	Replace cover image
//	@Tags		Users
//	@Accept		multipart/form-data
//	@Produce	json
//	@Security	BearerAuth
//	@Param		coverImage	formData	file	true	"Cover image"
//	@Success	200			{object}	accountsdk.Response[accountsdk.User]
//	@Failure	400			{object}	accountsdk.ErrorResponse
//	@Failure	500			{object}	accountsdk.ErrorResponse
//	@Router		/api/v1/users/cover-image [patch].
func (h *UsersHandler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	if !h.parseMultipart(w, r) {
		return
	}
	cover, closeCover := formAsset(r, "coverImage")
	defer closeCover()

	userID, _ := httpx.UserIDFromContext(r.Context())
	u, err := h.Profile.UpdateCoverImage(r.Context(), userID, cover)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteSuccess(w, http.StatusOK, toUser(u), "Cover image updated successfully")
}

func (h *UsersHandler) parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	limit := h.MaxUploadBytes
	if limit <= 0 {
		limit = DefaultMaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.WriteError(w, http.StatusRequestEntityTooLarge, "request body is too large")
			return false
		}
		httpx.WriteError(w, http.StatusBadRequest, "invalid multipart form")
		return false
	}
	return true
}

// formAsset opens the named file part. A missing part yields a nil asset,
// which the services report as a validation error.
func formAsset(r *http.Request, field string) (*domain.Asset, func()) {
	f, hdr, err := r.FormFile(field)
	if err != nil {
		return nil, func() {}
	}
	return assetFromPart(f, hdr), func() { _ = f.Close() }
}

func assetFromPart(f multipart.File, hdr *multipart.FileHeader) *domain.Asset {
	return &domain.Asset{
		Filename:    hdr.Filename,
		ContentType: hdr.Header.Get("Content-Type"),
		Size:        hdr.Size,
		Body:        f,
	}
}

func toUser(u domain.PublicUser) accountsdk.User {
	return accountsdk.User{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		FullName:   u.FullName,
		Avatar:     u.AvatarURL,
		CoverImage: u.CoverImageURL,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}
