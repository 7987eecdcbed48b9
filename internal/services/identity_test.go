package services

import (
  "context"
  "crypto/rand"
  "crypto/rsa"
  "encoding/base64"
  "encoding/json"
  "errors"
  "math/big"
  "net/http"
  "net/http/httptest"
  "testing"
  "time"

  "github.com/golang-jwt/jwt/v5"

  "github.com/gakusta-org/gakusta-backend/internal/apperrors"
  "github.com/gakusta-org/gakusta-backend/internal/logger"
)

func TestHMACVerifier(t *testing.T) {
  v := NewHMACVerifier("s3cret", logger.NewNop())
  ctx := context.Background()

  tok, err := MintHMACToken("s3cret", "uid-1", "a@example.edu", time.Minute)
  if err != nil {
    t.Fatalf("mint: %v", err)
  }
  p, err := v.Verify(ctx, tok)
  if err != nil {
    t.Fatalf("verify: %v", err)
  }
  if p.UID != "uid-1" || p.Email != "a@example.edu" {
    t.Fatalf("unexpected principal %+v", p)
  }

  bad, _ := MintHMACToken("other", "uid-1", "", time.Minute)
  if _, err := v.Verify(ctx, bad); !errors.Is(err, apperrors.Unauthenticated("")) {
    t.Fatalf("expected UNAUTHENTICATED for wrong secret, got %v", err)
  }
  expired, _ := MintHMACToken("s3cret", "uid-1", "", -time.Minute)
  if _, err := v.Verify(ctx, expired); apperrors.HTTPStatus(err) != http.StatusUnauthorized {
    t.Fatalf("expected 401 for expired token, got %v", err)
  }
  if _, err := v.Verify(ctx, ""); apperrors.HTTPStatus(err) != http.StatusUnauthorized {
    t.Fatalf("expected 401 for empty token, got %v", err)
  }
}

func TestFirebaseVerifierUsesPublishedKeys(t *testing.T) {
  key, err := rsa.GenerateKey(rand.Reader, 2048)
  if err != nil {
    t.Fatalf("keygen: %v", err)
  }
  hits := 0
  srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
    hits++
    w.Header().Set("Cache-Control", "public, max-age=600")
    _ = json.NewEncoder(w).Encode(map[string]interface{}{
      "keys": []map[string]string{{
        "kty": "RSA",
        "kid": "k1",
        "alg": "RS256",
        "n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
        "e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
      }},
    })
  }))
  defer srv.Close()

  v := newFirebaseVerifier("campus-app", srv.URL, srv.Client(), logger.NewNop())
  sign := func(issuer, audience string) string {
    claims := IdentityClaims{
      RegisteredClaims: jwt.RegisteredClaims{
        Subject:   "firebase-uid",
        Issuer:    issuer,
        Audience:  jwt.ClaimStrings{audience},
        ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
      },
      Email: "s@example.edu",
    }
    tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
    tok.Header["kid"] = "k1"
    s, err := tok.SignedString(key)
    if err != nil {
      t.Fatalf("sign: %v", err)
    }
    return s
  }

  ctx := context.Background()
  p, err := v.Verify(ctx, sign("https://securetoken.google.com/campus-app", "campus-app"))
  if err != nil {
    t.Fatalf("verify: %v", err)
  }
  if p.UID != "firebase-uid" {
    t.Fatalf("unexpected uid %q", p.UID)
  }
  if _, err := v.Verify(ctx, sign("https://securetoken.google.com/other", "other")); err == nil {
    t.Fatalf("expected wrong project to be rejected")
  }
  if hits != 1 {
    t.Fatalf("expected keys to be cached, fetched %d times", hits)
  }
}

func TestMaxAge(t *testing.T) {
  if got := maxAge("public, max-age=19800, must-revalidate"); got != 19800*time.Second {
    t.Fatalf("got %v", got)
  }
  if got := maxAge(""); got != defaultJWKSLifetime {
    t.Fatalf("got %v", got)
  }
}
