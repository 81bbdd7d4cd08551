package web

import (
	"crypto/rand"
	"fmt"
	"net/http"

	"github.com/fxamacker/cbor/v2"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwe"
	"github.com/lestrrat-go/jwx/v2/jws"
)

// CryptoFunc transforms a cookie payload one way.
type CryptoFunc func([]byte) ([]byte, error)

// CookieCodec seals session state into browser cookies: CBOR-encoded,
// JWS-signed, then JWE-encrypted with a direct symmetric key. The ticket
// and the pending handshake live in two separate cookies so consuming one
// slot never rewrites the other.
type CookieCodec struct {
	ticketTemplate  *http.Cookie
	pendingTemplate *http.Cookie
	encrypt         CryptoFunc
	decrypt         CryptoFunc
	sign            CryptoFunc
	verify          CryptoFunc
}

// NewCookieCodec builds a codec from raw symmetric keys. With secure set,
// cookies get the __Host- prefix and the Secure attribute.
func NewCookieCodec(encryptKey, signKey []byte, secure bool) *CookieCodec {
	template := func(name string) *http.Cookie {
		if secure {
			name = "__Host-" + name
		}
		return &http.Cookie{
			Name:     name,
			Path:     "/",
			Secure:   secure,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		}
	}
	return &CookieCodec{
		ticketTemplate:  template("ozgate"),
		pendingTemplate: template("ozgate-flow"),
		encrypt: func(payload []byte) ([]byte, error) {
			return jwe.Encrypt(payload, jwe.WithContentEncryption(jwa.A256GCM), jwe.WithKey(jwa.DIRECT, encryptKey))
		},
		decrypt: func(payload []byte) ([]byte, error) {
			return jwe.Decrypt(payload, jwe.WithKey(jwa.DIRECT, encryptKey))
		},
		sign: func(payload []byte) ([]byte, error) {
			return jws.Sign(payload, jws.WithKey(jwa.HS256, signKey))
		},
		verify: func(payload []byte) ([]byte, error) {
			return jws.Verify(payload, jws.WithKey(jwa.HS256, signKey))
		},
	}
}

func (c *CookieCodec) seal(v any) (string, error) {
	plain, err := cbor.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode cookie payload: %w", err)
	}
	signed, err := c.sign(plain)
	if err != nil {
		return "", fmt.Errorf("sign cookie payload: %w", err)
	}
	sealed, err := c.encrypt(signed)
	if err != nil {
		return "", fmt.Errorf("encrypt cookie payload: %w", err)
	}
	return string(sealed), nil
}

func (c *CookieCodec) open(value string, v any) error {
	signed, err := c.decrypt([]byte(value))
	if err != nil {
		return fmt.Errorf("decrypt cookie payload: %w", err)
	}
	plain, err := c.verify(signed)
	if err != nil {
		return fmt.Errorf("verify cookie payload: %w", err)
	}
	if err := cbor.Unmarshal(plain, v); err != nil {
		return fmt.Errorf("decode cookie payload: %w", err)
	}
	return nil
}

// GenerateRandomKey returns a fresh symmetric key of the given bit length.
func GenerateRandomKey(bits int) []byte {
	key := make([]byte, bits/8)
	if _, err := rand.Read(key); err != nil {
		// if random does not work, we have a big problem
		panic(err)
	}
	return key
}
