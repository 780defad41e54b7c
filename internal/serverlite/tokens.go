package serverlite

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
)

const authTokenLifetime = time.Hour

func (s *Server) createToken(username string, expiresAt time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   username,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
}

func (s *Server) verifyToken(tokenString string) error {
	_, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		return s.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	return err
}

func (s *Server) authenticate(c *gin.Context) {
	if c.PostForm("username") != s.account || c.PostForm("password") != s.password {
		failure(c, http.StatusUnauthorized, 4031, "Authentication failure. Wrong credentials")
		return
	}
	token, err := s.createToken(s.account, time.Now().Add(authTokenLifetime))
	if err != nil {
		failure(c, http.StatusInternalServerError, 500, err.Error())
		return
	}
	result(c, gin.H{"token": token}, nil)
}

func (s *Server) requireAuth(c *gin.Context) {
	if err := s.verifyToken(c.GetHeader("Authorization")); err != nil {
		failure(c, http.StatusUnauthorized, 4033, "Authentication failure. Missing or invalid token")
	}
}

func (s *Server) listTokens(c *gin.Context) {
	username := c.Query("user")

	s.mu.Lock()
	defer s.mu.Unlock()
	tokens := make([]gin.H, 0)
	if u, ok := s.users[username]; ok {
		for _, t := range u.tokens {
			tokens = append(tokens, gin.H{"serial": t.Serial, "tokentype": t.Type})
		}
	}
	result(c, gin.H{"count": len(tokens), "tokens": tokens}, nil)
}

func (s *Server) initToken(c *gin.Context) {
	username := c.PostForm("user")
	tokenType := c.PostForm("type")
	if username == "" || tokenType == "" {
		failure(c, http.StatusBadRequest, 905, "Missing parameter")
		return
	}

	raw := make([]byte, 20)
	if _, err := rand.Read(raw); err != nil {
		failure(c, http.StatusInternalServerError, 500, err.Error())
		return
	}
	key := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw)
	t := s.addToken(username, tokenType, key)

	result(c, true, gin.H{
		"serial": t.Serial,
		"otpkey": gin.H{"value": "otpauth://totp/" + t.Serial + "?secret=" + key, "value_b32": key},
	})
}

func (s *Server) validateCheck(c *gin.Context) {
	username := c.PostForm("user")
	pass := c.PostForm("pass")

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		result(c, false, gin.H{"message": "The user has no tokens assigned"})
		return
	}

	if pass == "" {
		for _, t := range u.tokens {
			if t.Type != "push" {
				continue
			}
			tx := &transaction{ID: strings.ReplaceAll(uuid.NewString(), "-", ""), Username: username}
			s.transactions[tx.ID] = tx
			result(c, false, gin.H{
				"transaction_id":  tx.ID,
				"message":         "please confirm the login on your smartphone",
				"multi_challenge": []gin.H{{"type": "push", "transaction_id": tx.ID, "serial": t.Serial}},
			})
			return
		}
		result(c, false, gin.H{"message": "wrong otp pin"})
		return
	}

	for _, t := range u.tokens {
		if t.Type == "totp" && totp.Validate(pass, t.Key) {
			result(c, true, gin.H{"type": t.Type, "serial": t.Serial, "message": "matching 1 tokens"})
			return
		}
	}
	result(c, false, gin.H{"message": "wrong otp value"})
}

func (s *Server) pollTransaction(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[c.Query("transaction_id")]
	result(c, ok && tx.Approved, nil)
}

func (s *Server) addToken(username, tokenType, key string) *token {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.serial++
	t := &token{Serial: fmt.Sprintf("%s%08d", strings.ToUpper(tokenType), s.serial), Type: tokenType, Key: key}
	u, ok := s.users[username]
	if !ok {
		u = &user{}
		s.users[username] = u
	}
	u.tokens = append(u.tokens, t)
	return t
}

// EnrollTOTP assigns a TOTP token with the given base32 key to username.
func (s *Server) EnrollTOTP(username, key string) string {
	return s.addToken(username, "totp", key).Serial
}

// EnrollPush assigns a push token to username.
func (s *Server) EnrollPush(username string) string {
	return s.addToken(username, "push", "").Serial
}

// TokenKey returns the key of the first token of tokenType held by username.
func (s *Server) TokenKey(username, tokenType string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return "", false
	}
	for _, t := range u.tokens {
		if t.Type == tokenType {
			return t.Key, true
		}
	}
	return "", false
}

// PendingTransaction returns an unapproved transaction of username.
func (s *Server) PendingTransaction(username string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, tx := range s.transactions {
		if tx.Username == username && !tx.Approved {
			return id, true
		}
	}
	return "", false
}

// Approve marks a push transaction as confirmed on the device.
func (s *Server) Approve(transactionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[transactionID]
	if ok {
		tx.Approved = true
	}
	return ok
}

//Personal.AI order the ending
