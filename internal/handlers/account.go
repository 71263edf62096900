package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/typoreporter/apiserver/internal/account"
	"github.com/typoreporter/apiserver/internal/logging"
	"github.com/typoreporter/apiserver/internal/services"
	"github.com/typoreporter/apiserver/internal/storage"
)

const (
	formFieldAvatar    = "avatar"
	maxMultipartMemory = 4 << 20
)

// AccountHandler serves the signed-in account's pages.
type AccountHandler struct {
	accounts *services.AccountService
	logger   logging.Logger
}

func NewAccountHandler(accounts *services.AccountService, logger logging.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, logger: logger}
}

// AccountRouter registers account routes. Every route requires auth.
func AccountRouter(
	r chi.Router,
	accounts *services.AccountService,
	logger logging.Logger,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewAccountHandler(accounts, logger)

	r.Use(authMiddleware)
	r.Get("/", handler.Info)
	r.Get("/update", handler.ProfileForm)
	r.Put("/update", handler.UpdateProfile)
	r.Post("/update", handler.UpdateProfile)
	r.Get("/password", handler.PasswordForm)
	r.Put("/password", handler.ChangePassword)
	r.Get("/avatar", handler.Avatar)
	r.Put("/avatar", handler.UploadAvatar)
}

// Info returns the account and its workspace roles.
func (h *AccountHandler) Info(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.subject(w, r)
	if !ok {
		return
	}

	info, err := h.accounts.Info(r.Context(), accountID)
	if err != nil {
		writeAccountError(w, r, h.logger, err, "failed to load account")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// ProfileForm returns the profile form prefilled with the stored values.
func (h *AccountHandler) ProfileForm(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.subject(w, r)
	if !ok {
		return
	}

	form, err := h.accounts.ProfileForm(r.Context(), accountID)
	if err != nil {
		writeAccountError(w, r, h.logger, err, "failed to load account")
		return
	}
	writeJSON(w, http.StatusOK, ProfileFormResponse{
		Form: ProfileRequest{
			Username:  form.Username,
			Email:     form.Email,
			FirstName: form.FirstName,
			LastName:  form.LastName,
		},
		FormModified: false,
	})
}

// UpdateProfile applies a profile update.
func (h *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.subject(w, r)
	if !ok {
		return
	}

	var req ProfileRequest
	if err := decodeForm(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	acc, err := h.accounts.UpdateProfile(r.Context(), accountID, account.ProfileUpdate{
		Username:  strings.TrimSpace(req.Username),
		Email:     req.Email,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
	})
	if err != nil {
		writeAccountError(w, r, h.logger, err, "failed to update account")
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

// PasswordForm returns an empty password form.
func (h *AccountHandler) PasswordForm(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.subject(w, r); !ok {
		return
	}
	writeJSON(w, http.StatusOK, PasswordFormResponse{Form: PasswordRequest{}, FormModified: false})
}

// ChangePassword stores a new password and redirects to the account page.
func (h *AccountHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.subject(w, r)
	if !ok {
		return
	}

	var req PasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	err := h.accounts.ChangePassword(r.Context(), accountID, account.PasswordChange{
		OldPassword:        req.OldPassword,
		NewPassword:        req.NewPassword,
		ConfirmNewPassword: req.ConfirmNewPassword,
	})
	if err != nil {
		writeAccountError(w, r, h.logger, err, "failed to change password")
		return
	}
	http.Redirect(w, r, "/account", http.StatusSeeOther)
}

// UploadAvatar replaces the account's avatar.
func (h *AccountHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.subject(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxAvatarSize+maxMultipartMemory)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, _, err := r.FormFile(formFieldAvatar)
	if err != nil {
		writeError(w, http.StatusBadRequest, "avatar file is required")
		return
	}
	data, err := readFileLimited(file, storage.MaxAvatarSize)
	_ = file.Close()
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}

	acc, err := h.accounts.SetAvatar(r.Context(), accountID, data)
	if err != nil {
		h.writeAvatarError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

// Avatar streams the account's avatar.
func (h *AccountHandler) Avatar(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.subject(w, r)
	if !ok {
		return
	}

	data, contentType, err := h.accounts.Avatar(r.Context(), accountID)
	if err != nil {
		h.writeAvatarError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *AccountHandler) writeAvatarError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrAvatarsDisabled):
		writeError(w, http.StatusServiceUnavailable, "avatar storage is not configured")
	case errors.Is(err, services.ErrNoAvatar):
		writeError(w, http.StatusNotFound, "avatar not found")
	case errors.Is(err, storage.ErrAvatarTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, storage.ErrAvatarUnsupported):
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, storage.ErrAvatarEmpty):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeAccountError(w, r, h.logger, err, "failed to process avatar")
	}
}

func (h *AccountHandler) subject(w http.ResponseWriter, r *http.Request) (string, bool) {
	accountID, err := accountIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return "", false
	}
	return accountID, true
}

type ProfileRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type ProfileFormResponse struct {
	Form         ProfileRequest `json:"form"`
	FormModified bool           `json:"formModified"`
}

type PasswordRequest struct {
	OldPassword        string `json:"oldPassword"`
	NewPassword        string `json:"newPassword"`
	ConfirmNewPassword string `json:"confirmNewPassword"`
}

type PasswordFormResponse struct {
	Form         PasswordRequest `json:"form"`
	FormModified bool            `json:"formModified"`
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("uploaded file exceeds %d bytes", limit)
	}
	return data, nil
}
