// Package serverlite is a lightweight, in-memory privacyIDEA emulator for end-to-end testing.
// It speaks the subset of the REST API the remote verifier uses and lets tests approve push
// transactions by hand.
package serverlite

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Server emulates one privacyIDEA instance.
type Server struct {
	HttpServer *http.Server
	signingKey []byte
	account    string
	password   string

	mu           sync.Mutex
	users        map[string]*user
	transactions map[string]*transaction
	serial       int
	down         bool
}

type token struct {
	Serial string
	Type   string
	Key    string
}

type user struct {
	tokens []*token
}

type transaction struct {
	ID       string
	Username string
	Approved bool
}

// NewServer creates and configures a new server accepting the given service account.
func NewServer(addr string, signingKey []byte, account, password string) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	s := &Server{
		signingKey:   signingKey,
		account:      account,
		password:     password,
		users:        make(map[string]*user),
		transactions: make(map[string]*transaction),
	}

	router.Use(s.availability)
	router.GET("/health", s.healthCheck)
	router.POST("/auth", s.authenticate)
	router.GET("/token/", s.requireAuth, s.listTokens)
	router.POST("/token/init", s.requireAuth, s.initToken)
	router.POST("/validate/check", s.validateCheck)
	router.GET("/validate/polltransaction", s.pollTransaction)

	s.HttpServer = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the router so tests can mount it on httptest.Server.
func (s *Server) Handler() http.Handler {
	return s.HttpServer.Handler
}

// Start runs the server in a goroutine.
func (s *Server) Start() {
	go func() {
		if err := s.HttpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			panic(err)
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.HttpServer.Shutdown(ctx)
}

// SetDown makes every endpoint answer 503 until called again with false.
func (s *Server) SetDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = down
}

func (s *Server) availability(c *gin.Context) {
	s.mu.Lock()
	down := s.down
	s.mu.Unlock()
	if down {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.Next()
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// result writes the privacyIDEA response envelope.
func result(c *gin.Context, value interface{}, detail interface{}) {
	body := gin.H{"result": gin.H{"status": true, "value": value}}
	if detail != nil {
		body["detail"] = detail
	}
	c.JSON(http.StatusOK, body)
}

func failure(c *gin.Context, status, code int, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"result": gin.H{"status": false, "error": gin.H{"code": code, "message": message}},
	})
}

//Personal.AI order the ending
