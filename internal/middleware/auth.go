// Package middleware содержит HTTP middleware витрины.
package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"strings"
	"time"
)

type contextKey string

const emailKey contextKey = "email"

const (
	authCookieName = "shipfast_session"
	authCookieTTL  = 30 * 24 * time.Hour
)

// AuthMiddleware проверяет сессию личного кабинета по подписанному cookie.
type AuthMiddleware struct {
	secretKey []byte
}

// NewAuthMiddleware создаёт новый экземпляр AuthMiddleware с указанным секретным ключом.
// Пустой секрет заменяется случайным: сессии тогда живут до перезапуска процесса.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}

	return &AuthMiddleware{
		secretKey: key,
	}
}

// Middleware проверяет cookie сессии и добавляет адрес покупателя в контекст запроса.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(authCookieName)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
			return
		}

		email, ok := a.parseCookie(cookie.Value)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
			return
		}

		ctx := context.WithValue(r.Context(), emailKey, email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SetAuthCookie устанавливает cookie сессии для указанного покупателя.
func (a *AuthMiddleware) SetAuthCookie(w http.ResponseWriter, email string) {
	cookie := &http.Cookie{
		Name:     authCookieName,
		Value:    a.sign(email),
		Path:     "/",
		Expires:  time.Now().Add(authCookieTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	http.SetCookie(w, cookie)
}

// ClearAuthCookie завершает сессию.
func (a *AuthMiddleware) ClearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// адрес кодируется в base64, потому что сам содержит точки
func (a *AuthMiddleware) sign(email string) string {
	encoded := base64.RawURLEncoding.EncodeToString([]byte(email))
	return encoded + "." + a.signature(encoded)
}

func (a *AuthMiddleware) signature(encoded string) string {
	mac := hmac.New(sha256.New, a.secretKey)
	mac.Write([]byte(encoded))
	return hex.EncodeToString(mac.Sum(nil))
}

func (a *AuthMiddleware) parseCookie(cookieValue string) (string, bool) {
	encoded, signature, found := strings.Cut(cookieValue, ".")
	if !found || encoded == "" {
		return "", false
	}

	if !hmac.Equal([]byte(signature), []byte(a.signature(encoded))) {
		return "", false
	}

	email, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil || len(email) == 0 {
		return "", false
	}

	return string(email), true
}

// GetEmailFromContext извлекает адрес покупателя из контекста запроса.
func GetEmailFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(emailKey).(string)
	return email, ok
}

// WithEmail кладёт адрес покупателя в контекст. Используется в тестах обработчиков.
func WithEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, emailKey, email)
}
