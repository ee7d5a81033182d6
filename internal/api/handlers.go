package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tera-bt/teraland-gateway/internal/audit"
	"github.com/tera-bt/teraland-gateway/internal/fabric"
	"github.com/tera-bt/teraland-gateway/internal/land"
)

// LandService is satisfied by *land.Controller.
type LandService interface {
	List(ctx context.Context, r land.ListRequest) ([]byte, error)
	Sell(ctx context.Context, r land.SellRequest) ([]byte, error)
	Buy(ctx context.Context, r land.BuyRequest) ([]byte, error)
	Transfer(ctx context.Context, r land.TransferRequest) ([]byte, error)
	Read(ctx context.Context, r land.ReadRequest) (land.Record, error)
}

// IdentityLister is satisfied by *wallet.Wallet.
type IdentityLister interface {
	List(ctx context.Context) ([]string, error)
}

// Server holds the collaborators the HTTP handlers call.
type Server struct {
	Lands   LandService
	Wallet  IdentityLister
	Audit   audit.Verifier
	Channel string
	// ProfilePath is checked by /readyz.
	ProfilePath string
}

const healthText = "TeraLand Fabric API is running"

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// CreateLand handles POST /lands.
func (s *Server) CreateLand(c *gin.Context) {
	var req land.ListRequest
	if !bindJSON(c, &req) {
		return
	}
	out, err := s.Lands.List(c.Request.Context(), req)
	if err != nil {
		fail(c, "Failed to list land", err)
		return
	}
	c.String(http.StatusCreated, string(out))
}

// GetLand handles GET /lands/:id and passes the ledger JSON through.
func (s *Server) GetLand(c *gin.Context) {
	rec, err := s.Lands.Read(c.Request.Context(), land.ReadRequest{ID: c.Param("id")})
	if err != nil {
		fail(c, "Failed to read land", err)
		return
	}
	if !json.Valid(rec.Payload) {
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "Failed to read land: ledger returned a malformed record"})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", rec.Payload)
}

// SellLand handles PUT /lands/:id/sell.
func (s *Server) SellLand(c *gin.Context) {
	var req land.SellRequest
	if !bindJSON(c, &req) {
		return
	}
	req.ID = c.Param("id")
	out, err := s.Lands.Sell(c.Request.Context(), req)
	if err != nil {
		fail(c, "Failed to mark land for sale", err)
		return
	}
	c.String(http.StatusOK, string(out))
}

// BuyLand handles POST /lands/:id/buy.
func (s *Server) BuyLand(c *gin.Context) {
	var req land.BuyRequest
	if !bindJSON(c, &req) {
		return
	}
	req.ID = c.Param("id")
	out, err := s.Lands.Buy(c.Request.Context(), req)
	if err != nil {
		fail(c, "Failed to buy land", err)
		return
	}
	c.String(http.StatusOK, string(out))
}

// TransferLand handles PUT /lands/:id/transfer.
func (s *Server) TransferLand(c *gin.Context) {
	var req land.TransferRequest
	if !bindJSON(c, &req) {
		return
	}
	req.ID = c.Param("id")
	out, err := s.Lands.Transfer(c.Request.Context(), req)
	if err != nil {
		fail(c, "Failed to transfer land ownership", err)
		return
	}
	c.String(http.StatusOK, string(out))
}

// FabricHealth is a liveness probe that never touches the ledger.
func (s *Server) FabricHealth(c *gin.Context) {
	c.String(http.StatusOK, healthText)
}

// Readyz reports whether the wallet is readable and the connection profile
// parses.
func (s *Server) Readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 500*time.Millisecond)
	defer cancel()
	if s.Wallet != nil {
		if _, err := s.Wallet.List(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": "wallet: " + err.Error()})
			return
		}
	}
	if s.ProfilePath != "" {
		if _, err := fabric.LoadProfile(s.ProfilePath); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// ListIdentities returns wallet labels only.
func (s *Server) ListIdentities(c *gin.Context) {
	labels, err := s.Wallet.List(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to list identities"})
		return
	}
	if labels == nil {
		labels = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"identities": labels})
}

// VerifyAudit walks the audit chain for the ledger channel.
func (s *Server) VerifyAudit(c *gin.Context) {
	if s.Audit == nil {
		c.AbortWithStatusJSON(http.StatusNotImplemented, gin.H{"error": "audit ledger not configured"})
		return
	}
	seq, err := s.Audit.Verify(c.Request.Context(), s.Channel, 0)
	if seq > 0 {
		c.JSON(http.StatusOK, gin.H{"ok": false, "broken_at": seq, "error": err.Error()})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "audit verify failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
