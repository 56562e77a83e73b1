package licensing

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// LinkTTL задаёт время жизни подписанной ссылки.
const LinkTTL = 15 * time.Minute

var (
	// ErrInvalidSignature возвращается, если подпись ссылки не совпала.
	ErrInvalidSignature = errors.New("invalid download signature")
	// ErrLinkExpired возвращается для просроченной ссылки.
	ErrLinkExpired = errors.New("download link expired")
)

// SignedURL описывает подписанную ссылку на архив сборки.
type SignedURL struct {
	Path      string
	Filename  string
	Token     string
	ExpiresAt time.Time
}

// URLSigner подписывает и проверяет ссылки на скачивание ключом сервера.
type URLSigner struct {
	secret []byte
	now    func() time.Time
}

// NewURLSigner создаёт подписывающий объект с указанным секретом.
// Пустой секрет заменяется случайным, выданные ссылки тогда не переживают перезапуск.
func NewURLSigner(secret string) *URLSigner {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			key = []byte("shipfast-download-secret")
		}
	}
	return &URLSigner{secret: key, now: time.Now}
}

// Sign выдаёт ссылку на artifact для лицензии licenseID, действующую LinkTTL.
func (s *URLSigner) Sign(licenseID, artifact string) SignedURL {
	expires := s.now().Add(LinkTTL)
	expiresMs := expires.UnixMilli()
	token := s.sign(licenseID, artifact, expiresMs)

	q := url.Values{}
	q.Set("license", licenseID)
	q.Set("expires", strconv.FormatInt(expiresMs, 10))
	q.Set("token", token)

	filename := artifact + ".zip"
	return SignedURL{
		Path:      "/downloads/" + filename + "?" + q.Encode(),
		Filename:  filename,
		Token:     token,
		ExpiresAt: time.UnixMilli(expiresMs),
	}
}

// Verify проверяет подпись и срок действия ссылки.
func (s *URLSigner) Verify(licenseID, artifact, expires, token string) error {
	expiresMs, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad expires value", ErrInvalidSignature)
	}

	expected := s.sign(licenseID, artifact, expiresMs)
	if !hmac.Equal([]byte(expected), []byte(token)) {
		return ErrInvalidSignature
	}

	if s.now().UnixMilli() > expiresMs {
		return ErrLinkExpired
	}
	return nil
}

func (s *URLSigner) sign(licenseID, artifact string, expiresMs int64) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(licenseID + ":" + artifact + ":" + strconv.FormatInt(expiresMs, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}
