package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the algorithm a [Signer] uses.
type SigningMethod string

const (
	// MethodEd25519 signs with EdDSA over Ed25519 keys.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 signs with HMAC-SHA256.
	MethodHS256 SigningMethod = "hs256"
)

// SignerConfig configures a [Signer].
type SignerConfig struct {
	AccessTTL     time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	KeyID         string
}

// Signer mints and verifies access tokens. It backs development servers, the CLI, and
// tests; production clients only decode tokens through [Policy].
type Signer struct {
	config SignerConfig
	now    func() time.Time
}

// NewSigner validates cfg and returns a Signer.
func NewSigner(cfg SignerConfig) (*Signer, error) {
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("hs256 requires private key")
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires public key")
		}
		if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("unsupported signing method")
	}
	return &Signer{config: cfg, now: time.Now}, nil
}

// WithClock returns a copy of s that stamps tokens using now.
func (s *Signer) WithClock(now func() time.Time) *Signer {
	cp := *s
	if now != nil {
		cp.now = now
	}
	return &cp
}

// Issue mints an access token for the given identity valid for the configured TTL.
func (s *Signer) Issue(userID, email, role string) (string, error) {
	issuedAt := s.now()
	return s.Sign(Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.config.AccessTTL)),
		},
	})
}

// Sign signs arbitrary claims as given. Callers own the temporal claims.
func (s *Signer) Sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(s.method(), claims)
	if s.config.KeyID != "" {
		token.Header["kid"] = s.config.KeyID
	}
	key, err := s.signKey()
	if err != nil {
		return "", err
	}
	return token.SignedString(key)
}

// Verify checks the signature and expiry of token and returns its claims.
func (s *Signer) Verify(token string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{s.method().Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if s.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(s.config.Issuer))
	}
	parsed, err := jwt.NewParser(options...).ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != s.method().Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		if s.config.KeyID != "" {
			kid, _ := t.Header["kid"].(string)
			if kid != s.config.KeyID {
				return nil, errors.New("unknown kid")
			}
		}
		return s.verifyKey()
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

func (s *Signer) method() jwt.SigningMethod {
	if s.config.SigningMethod == MethodHS256 {
		return jwt.SigningMethodHS256
	}
	return jwt.SigningMethodEdDSA
}

func (s *Signer) signKey() (interface{}, error) {
	if s.config.SigningMethod == MethodHS256 {
		return s.config.PrivateKey, nil
	}
	if len(s.config.PrivateKey) == 0 {
		return nil, errors.New("signer has no private key")
	}
	return parseEdPrivateKey(s.config.PrivateKey)
}

func (s *Signer) verifyKey() (interface{}, error) {
	if s.config.SigningMethod == MethodHS256 {
		return s.config.PrivateKey, nil
	}
	return parseEdPublicKey(s.config.PublicKey)
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
