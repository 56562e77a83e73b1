package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/shipfast-storefront/internal/middleware"
	"github.com/mmeshcher/shipfast-storefront/internal/service"
)

// Health отвечает на проверку живости.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Plans возвращает каталог тарифов.
func (h *Handler) Plans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"plans": h.service.Plans()})
}

// Releases возвращает каталог сборок.
func (h *Handler) Releases(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"releases": h.service.Releases()})
}

// PreviewDiscount рассчитывает цену с промокодом до оформления заказа.
func (h *Handler) PreviewDiscount(w http.ResponseWriter, r *http.Request) {
	var req service.DiscountPreviewRequest
	if !h.decode(w, r, &req) {
		return
	}

	q, err := h.service.PreviewDiscount(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// Checkout оформляет покупку тарифа.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req service.CheckoutRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.service.Checkout(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Download выдаёт подписанную ссылку на архив сборки по лицензионному ключу.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	res, err := h.service.Download(r.Context(), service.DownloadRequest{
		LicenseKey: q.Get("licenseKey"),
		Version:    q.Get("version"),
		IP:         middleware.ClientIP(r),
		UserAgent:  r.UserAgent(),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Artifact отдаёт архив сборки по подписанной ссылке.
func (h *Handler) Artifact(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	file := chi.URLParam(r, "file")

	path, err := h.service.ResolveArtifact(r.Context(), service.ArtifactRequest{
		File:      file,
		LicenseID: q.Get("license"),
		Expires:   q.Get("expires"),
		Token:     q.Get("token"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+file+`"`)
	w.Header().Set("Cache-Control", "private, no-store")
	http.ServeFile(w, r, path)
}

type sessionRequest struct {
	Email      string `json:"email"`
	LicenseKey string `json:"licenseKey"`
}

// SignIn открывает сессию личного кабинета по адресу и принадлежащему ему ключу.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !h.decode(w, r, &req) {
		return
	}

	email, err := h.service.SignIn(r.Context(), req.Email, req.LicenseKey)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.authMiddleware.SetAuthCookie(w, email)
	writeJSON(w, http.StatusOK, map[string]string{"email": email})
}

// SignOut закрывает сессию.
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	h.authMiddleware.ClearAuthCookie(w)
	w.WriteHeader(http.StatusNoContent)
}
