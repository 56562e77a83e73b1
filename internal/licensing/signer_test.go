package licensing

import (
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func newTestSigner(clock *fakeClock) *URLSigner {
	s := NewURLSigner("test-secret")
	s.now = clock.Now
	return s
}

func parseSigned(t *testing.T, s SignedURL) url.Values {
	t.Helper()
	u, err := url.Parse(s.Path)
	require.NoError(t, err)
	return u.Query()
}

func TestSign_PathShape(t *testing.T) {
	clock := &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
	s := newTestSigner(clock)

	signed := s.Sign("lic_1", "shipfast-boilerplate-personal-v1.2.0")

	assert.True(t, strings.HasPrefix(signed.Path, "/downloads/shipfast-boilerplate-personal-v1.2.0.zip?"))
	assert.Equal(t, "shipfast-boilerplate-personal-v1.2.0.zip", signed.Filename)
	assert.Equal(t, clock.t.Add(LinkTTL).UnixMilli(), signed.ExpiresAt.UnixMilli())

	q := parseSigned(t, signed)
	assert.Equal(t, "lic_1", q.Get("license"))
	assert.Equal(t, signed.Token, q.Get("token"))
}

func TestSign_DifferentTimestampsDifferentSignatures(t *testing.T) {
	clock := &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
	s := newTestSigner(clock)

	first := s.Sign("lic_1", "artifact")
	clock.t = clock.t.Add(time.Millisecond)
	second := s.Sign("lic_1", "artifact")

	assert.NotEqual(t, first.Token, second.Token)
}

func TestVerify(t *testing.T) {
	clock := &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
	s := newTestSigner(clock)

	signed := s.Sign("lic_1", "artifact")
	q := parseSigned(t, signed)
	expires := q.Get("expires")

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, s.Verify("lic_1", "artifact", expires, signed.Token))
	})

	t.Run("tampered expiry", func(t *testing.T) {
		tampered := time.UnixMilli(1_700_000_000_000).Add(time.Hour).UnixMilli()
		err := s.Verify("lic_1", "artifact", strconv.FormatInt(tampered, 10), signed.Token)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("tampered license", func(t *testing.T) {
		assert.ErrorIs(t, s.Verify("lic_2", "artifact", expires, signed.Token), ErrInvalidSignature)
	})

	t.Run("other artifact", func(t *testing.T) {
		assert.ErrorIs(t, s.Verify("lic_1", "other", expires, signed.Token), ErrInvalidSignature)
	})

	t.Run("garbage expires", func(t *testing.T) {
		assert.ErrorIs(t, s.Verify("lic_1", "artifact", "soon", signed.Token), ErrInvalidSignature)
	})

	t.Run("other secret", func(t *testing.T) {
		other := NewURLSigner("another-secret")
		other.now = clock.Now
		assert.ErrorIs(t, other.Verify("lic_1", "artifact", expires, signed.Token), ErrInvalidSignature)
	})

	t.Run("expired", func(t *testing.T) {
		clock.t = clock.t.Add(LinkTTL + time.Millisecond)
		assert.ErrorIs(t, s.Verify("lic_1", "artifact", expires, signed.Token), ErrLinkExpired)
	})
}
