package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pawpal/composite-service/internal/http/response"
	"github.com/pawpal/composite-service/internal/platform/apierr"
	"github.com/pawpal/composite-service/internal/platform/logger"
	"github.com/pawpal/composite-service/internal/upstream"
)

// Context keys set by the guard for downstream handlers.
const (
	ContextKeyPayload            = "dependent_payload"
	ContextKeyValidatedOwner     = "validated_owner"
	ContextKeyValidatedPrincipal = "validated_principal"
)

// ForeignKeyGuard enforces the logical foreign key between dependents and
// principals before any mutation reaches the dependent service. There is
// no database constraint behind it; validation happens only here, at
// create/update time.
type ForeignKeyGuard struct {
	principals upstream.Client
	ownerRole  string
	log        *logger.Logger
}

func NewForeignKeyGuard(log *logger.Logger, principals upstream.Client, ownerRole string) *ForeignKeyGuard {
	if ownerRole == "" {
		ownerRole = "owner"
	}
	return &ForeignKeyGuard{
		principals: principals,
		ownerRole:  ownerRole,
		log:        log.With("component", "foreign_key_guard"),
	}
}

// ValidateOwner guards dependent creation: the payload must carry an
// ownerId that resolves to an existing principal with the expected role.
// On pass the parsed payload and resolved owner are attached to the
// request; on reject the create is never attempted.
func (g *ForeignKeyGuard) ValidateOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, ok := g.bindPayload(c)
		if !ok {
			return
		}
		ownerID := payload.StringField("ownerId")
		if ownerID == "" {
			g.reject(c, apierr.Validation("ownerId is required"))
			return
		}
		g.resolveOwner(c, ownerID)
	}
}

// ValidateOwnerIfPresent guards dependent updates: the owner reference is
// re-validated only when the body carries one.
func (g *ForeignKeyGuard) ValidateOwnerIfPresent() gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, ok := g.bindPayload(c)
		if !ok {
			return
		}
		if _, present := payload["ownerId"]; !present {
			c.Next()
			return
		}
		ownerID := payload.StringField("ownerId")
		if ownerID == "" {
			g.reject(c, apierr.Validation("ownerId is required"))
			return
		}
		g.resolveOwner(c, ownerID)
	}
}

// ValidatePrincipalExists guards the cascade delete: the principal must
// resolve before any dependent delete is issued.
func (g *ForeignKeyGuard) ValidatePrincipalExists() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if id == "" {
			g.reject(c, apierr.Validation("id is required"))
			return
		}
		principal, err := g.principals.Get(c.Request.Context(), id)
		if err != nil {
			if apierr.StatusOf(err) == http.StatusNotFound {
				err = apierr.NotFound(fmt.Sprintf("Principal with id %s not found", id))
			}
			g.reject(c, err)
			return
		}
		c.Set(ContextKeyValidatedPrincipal, principal)
		c.Next()
	}
}

func (g *ForeignKeyGuard) bindPayload(c *gin.Context) (upstream.Record, bool) {
	var payload upstream.Record
	if err := c.ShouldBindJSON(&payload); err != nil {
		g.reject(c, apierr.Validation("invalid JSON body"))
		return nil, false
	}
	c.Set(ContextKeyPayload, payload)
	return payload, true
}

func (g *ForeignKeyGuard) resolveOwner(c *gin.Context, ownerID string) {
	owner, err := g.principals.Get(c.Request.Context(), ownerID)
	if err != nil {
		if apierr.StatusOf(err) == http.StatusNotFound {
			err = apierr.NotFound(fmt.Sprintf("Owner with id %s not found", ownerID))
		}
		g.reject(c, err)
		return
	}
	if role := owner.StringField("role"); role != "" && role != g.ownerRole {
		g.reject(c, apierr.Validation(fmt.Sprintf("Owner with id %s has role %q, expected %q", ownerID, role, g.ownerRole)))
		return
	}
	// resolved owner rides along so handlers skip a second fetch
	c.Set(ContextKeyValidatedOwner, owner)
	c.Next()
}

func (g *ForeignKeyGuard) reject(c *gin.Context, err error) {
	g.log.Warn("foreign key validation rejected",
		"path", c.FullPath(),
		"status", apierr.StatusOf(err),
		"reason", err.Error(),
	)
	response.Err(c, err)
	c.Abort()
}
