package httpkit

import (
	"strings"

	"leadflow_backend/platform/apperr"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// SystemActor is recorded when a request was admitted without a token.
	SystemActor = "system"
	// RoleAdmin may define sequences and force reassignments.
	RoleAdmin = "admin"
	// HeaderOrganizationID selects the organization when the token has none.
	HeaderOrganizationID = "X-Organization-ID"
)

// Actor returns the authenticated subject for audit columns such as
// criado_por, or SystemActor for open requests.
func Actor(c *gin.Context) string {
	if v, ok := c.Get(ContextSubjectKey); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return SystemActor
}

// Authenticated reports whether the request carried a verified token.
func Authenticated(c *gin.Context) bool {
	_, ok := c.Get(ContextRolesKey)
	return ok
}

// HasRole reports whether the caller carries role.
func HasRole(c *gin.Context, role string) bool {
	v, ok := c.Get(ContextRolesKey)
	if !ok {
		return false
	}
	roles, _ := v.([]string)
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// OrganizationID resolves the organization for the request: the token's
// tenant claim wins, then the X-Organization-ID header, then the
// organization_id query parameter.
func OrganizationID(c *gin.Context) (uuid.UUID, error) {
	if v, ok := c.Get(ContextTenantIDKey); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id, nil
		}
	}

	raw := strings.TrimSpace(c.GetHeader(HeaderOrganizationID))
	if raw == "" {
		raw = strings.TrimSpace(c.Query("organization_id"))
	}
	if raw == "" {
		return uuid.Nil, apperr.BadRequest("organization is required")
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.BadRequest("invalid organization id")
	}
	return id, nil
}

// OptionalOrganizationID is OrganizationID for endpoints that aggregate across
// organizations when none is given.
func OptionalOrganizationID(c *gin.Context) (*uuid.UUID, error) {
	id, err := OrganizationID(c)
	if err != nil {
		if apperr.Is(err, apperr.KindBadRequest) && c.GetHeader(HeaderOrganizationID) == "" && c.Query("organization_id") == "" {
			return nil, nil
		}
		return nil, err
	}
	return &id, nil
}

// ParamUUID parses a path parameter as a UUID.
func ParamUUID(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperr.BadRequest("invalid " + name)
	}
	return id, nil
}
