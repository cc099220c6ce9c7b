package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/pbkdf2"
	"net/http"
	"time"
)

const (
	authCookie = "localstoreSecret"
	sessionTTL = time.Hour * 24 * 30

	pbkdf2Iterations = 1000
	pbkdf2KeyLen     = 32
)

var pbkdf2Salt = []byte("localstore")

type (
	secret []byte

	// Authorizer checks a shared secret once and then trusts a session cookie
	// holding the derived key.
	Authorizer struct {
		secret secret
	}

	Login struct {
		Secret string `form:"secretKey" json:"secretKey" xml:"secretKey" binding:"required"`
	}
)

func New(sharedSecret string) (Authorizer, error) {
	ss, err := parseSecret([]byte(sharedSecret))
	if err != nil {
		return Authorizer{}, err
	}
	return Authorizer{
		secret: ss,
	}, nil
}

func (a *Authorizer) StartSession(c *gin.Context) {
	var login Login

	if err := c.ShouldBindJSON(&login); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s, err := parseSecret([]byte(login.Secret))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid secret"})
		return
	}

	if !isSecretsEqual(s, a.secret) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Incorrect secret"})
		return
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     authCookie,
		Value:    base64.StdEncoding.EncodeToString(a.secret),
		Path:     "/",
		HttpOnly: true,
		Secure:   c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Now().Add(sessionTTL),
	})
	c.Status(http.StatusOK)
}

func (a *Authorizer) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

func (a *Authorizer) Authenticate(r *http.Request) bool {
	cookie, err := r.Cookie(authCookie)
	if err != nil {
		return false
	}
	s, err := getSecretFromBase64(cookie.Value)
	if err != nil {
		return false
	}

	return isSecretsEqual(s, a.secret)
}

func getSecretFromBase64(b64encoded string) (secret, error) {
	if len(b64encoded) == 0 {
		return secret{}, errors.New("invalid secret")
	}

	decoded, err := base64.StdEncoding.DecodeString(b64encoded)
	if err != nil {
		return secret{}, err
	}

	return secret(decoded), nil
}

func parseSecret(key []byte) (secret, error) {
	if len(key) == 0 {
		return secret{}, errors.New("secret key is empty")
	}

	return secret(pbkdf2.Key(key, pbkdf2Salt, pbkdf2Iterations, pbkdf2KeyLen, sha256.New)), nil
}

func isSecretsEqual(a, b secret) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
