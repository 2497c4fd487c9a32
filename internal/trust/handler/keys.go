package handler

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"
)

// KeysHandler publishes the service verification key.
type KeysHandler struct {
	pub ed25519.PublicKey
}

// NewKeysHandler creates a new KeysHandler.
func NewKeysHandler(pub ed25519.PublicKey) *KeysHandler {
	return &KeysHandler{pub: pub}
}

// Register mounts GET /keys/service.
func (h *KeysHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/keys/service", h.ServiceKey)
}

// ServiceKey returns the key that verifies declarations, audit entries and tokens.
func (h *KeysHandler) ServiceKey(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"algorithm":  "Ed25519",
		"public_key": hex.EncodeToString(h.pub),
		"base64":     base64.StdEncoding.EncodeToString(h.pub),
	})
}
