package services

import (
  "context"
  "crypto/rsa"
  "encoding/base64"
  "encoding/json"
  "errors"
  "fmt"
  "math/big"
  "net/http"
  "strconv"
  "strings"
  "sync"
  "time"

  "github.com/golang-jwt/jwt/v5"

  "github.com/gakusta-org/gakusta-backend/internal/apperrors"
  "github.com/gakusta-org/gakusta-backend/internal/logger"
)

const (
  FirebaseJWKSURL     = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"
  firebaseIssuerBase  = "https://securetoken.google.com/"
  defaultJWKSLifetime = time.Hour
)

// Principal is what a verified identity token tells us about the caller.
type Principal struct {
  UID   string
  Email string
}

// IdentityVerifier turns a bearer token into a Principal. Implementations
// report every failure as an UNAUTHENTICATED apperror.
type IdentityVerifier interface {
  Verify(ctx context.Context, token string) (*Principal, error)
}

type IdentityClaims struct {
  jwt.RegisteredClaims
  Email string `json:"email,omitempty"`
}

//----------------------------------------------------------------------------------------------------------------------
// Firebase (RS256 against Google's published keys)
//----------------------------------------------------------------------------------------------------------------------

type jwk struct {
  Kty string `json:"kty"`
  Kid string `json:"kid"`
  Alg string `json:"alg"`
  N   string `json:"n"`
  E   string `json:"e"`
}

type jwksCache struct {
  mu         sync.RWMutex
  keys       map[string]*rsa.PublicKey
  expiresAt  time.Time
  url        string
  httpClient *http.Client
  now        func() time.Time
}

func newJWKSCache(url string, httpClient *http.Client) *jwksCache {
  if httpClient == nil {
    httpClient = &http.Client{Timeout: 10 * time.Second}
  }
  return &jwksCache{
    keys:       make(map[string]*rsa.PublicKey),
    url:        url,
    httpClient: httpClient,
    now:        time.Now,
  }
}

func (c *jwksCache) get(ctx context.Context, kid string) (*rsa.PublicKey, error) {
  c.mu.RLock()
  key, ok := c.keys[kid]
  fresh := c.now().Before(c.expiresAt)
  c.mu.RUnlock()
  if ok && fresh {
    return key, nil
  }

  if err := c.refresh(ctx); err != nil {
    return nil, err
  }

  c.mu.RLock()
  defer c.mu.RUnlock()
  if key, ok := c.keys[kid]; ok {
    return key, nil
  }
  return nil, fmt.Errorf("public key with kid %s not found", kid)
}

func (c *jwksCache) refresh(ctx context.Context) error {
  req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
  if err != nil {
    return err
  }
  resp, err := c.httpClient.Do(req)
  if err != nil {
    return fmt.Errorf("failed to fetch JWKS: %w", err)
  }
  defer resp.Body.Close()
  if resp.StatusCode != http.StatusOK {
    return fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
  }

  var body struct {
    Keys []jwk `json:"keys"`
  }
  if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
    return fmt.Errorf("failed to decode JWKS: %w", err)
  }

  keys := make(map[string]*rsa.PublicKey, len(body.Keys))
  for _, k := range body.Keys {
    if k.Kty != "RSA" {
      continue
    }
    pub, err := parseRSAPublicKey(k.N, k.E)
    if err != nil {
      continue
    }
    keys[k.Kid] = pub
  }

  c.mu.Lock()
  defer c.mu.Unlock()
  c.keys = keys
  c.expiresAt = c.now().Add(maxAge(resp.Header.Get("Cache-Control")))
  return nil
}

func maxAge(cacheControl string) time.Duration {
  for _, part := range strings.Split(cacheControl, ",") {
    part = strings.TrimSpace(part)
    if v, ok := strings.CutPrefix(part, "max-age="); ok {
      if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
        return time.Duration(secs) * time.Second
      }
    }
  }
  return defaultJWKSLifetime
}

func parseRSAPublicKey(nStr, eStr string) (*rsa.PublicKey, error) {
  nBytes, err := base64.RawURLEncoding.DecodeString(nStr)
  if err != nil {
    return nil, fmt.Errorf("failed to decode modulus: %w", err)
  }
  eBytes, err := base64.RawURLEncoding.DecodeString(eStr)
  if err != nil {
    return nil, fmt.Errorf("failed to decode exponent: %w", err)
  }
  var e int
  for _, b := range eBytes {
    e = e<<8 | int(b)
  }
  return &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: e}, nil
}

type firebaseVerifier struct {
  projectID string
  jwks      *jwksCache
  log       *logger.Logger
}

func NewFirebaseVerifier(projectID string, httpClient *http.Client, log *logger.Logger) IdentityVerifier {
  return newFirebaseVerifier(projectID, FirebaseJWKSURL, httpClient, log)
}

func newFirebaseVerifier(projectID, jwksURL string, httpClient *http.Client, log *logger.Logger) *firebaseVerifier {
  return &firebaseVerifier{
    projectID: projectID,
    jwks:      newJWKSCache(jwksURL, httpClient),
    log:       log.With("service", "FirebaseVerifier"),
  }
}

func (v *firebaseVerifier) Verify(ctx context.Context, tokenString string) (*Principal, error) {
  if tokenString == "" {
    return nil, apperrors.Unauthenticated("Missing identity token")
  }
  claims := &IdentityClaims{}
  _, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
    kid, _ := token.Header["kid"].(string)
    if kid == "" {
      return nil, errors.New("token header has no kid")
    }
    return v.jwks.get(ctx, kid)
  },
    jwt.WithValidMethods([]string{"RS256"}),
    jwt.WithIssuer(firebaseIssuerBase+v.projectID),
    jwt.WithAudience(v.projectID),
    jwt.WithExpirationRequired(),
    jwt.WithLeeway(30*time.Second),
  )
  if err != nil {
    v.log.Debug("Identity token rejected", "error", err)
    return nil, apperrors.Wrap(apperrors.KindAuth, apperrors.CodeUnauthenticated, "Invalid identity token", err)
  }
  if claims.Subject == "" {
    return nil, apperrors.Unauthenticated("Identity token has no subject")
  }
  return &Principal{UID: claims.Subject, Email: claims.Email}, nil
}

//----------------------------------------------------------------------------------------------------------------------
// HMAC (shared secret, for local development and tests)
//----------------------------------------------------------------------------------------------------------------------

type hmacVerifier struct {
  secret []byte
  log    *logger.Logger
}

func NewHMACVerifier(secret string, log *logger.Logger) IdentityVerifier {
  return &hmacVerifier{secret: []byte(secret), log: log.With("service", "HMACVerifier")}
}

func (v *hmacVerifier) Verify(ctx context.Context, tokenString string) (*Principal, error) {
  if tokenString == "" {
    return nil, apperrors.Unauthenticated("Missing identity token")
  }
  claims := &IdentityClaims{}
  parsed, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
    return v.secret, nil
  }, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
  if err != nil || !parsed.Valid {
    v.log.Debug("Identity token rejected", "error", err)
    return nil, apperrors.Wrap(apperrors.KindAuth, apperrors.CodeUnauthenticated, "Invalid identity token", err)
  }
  if claims.Subject == "" {
    return nil, apperrors.Unauthenticated("Identity token has no subject")
  }
  return &Principal{UID: claims.Subject, Email: claims.Email}, nil
}

// MintHMACToken signs an HS256 identity token. Used by the demo seed and tests.
func MintHMACToken(secret, uid, email string, ttl time.Duration) (string, error) {
  now := time.Now()
  claims := IdentityClaims{
    RegisteredClaims: jwt.RegisteredClaims{
      Subject:   uid,
      IssuedAt:  jwt.NewNumericDate(now),
      ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
    },
    Email: email,
  }
  return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
