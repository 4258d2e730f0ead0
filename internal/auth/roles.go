package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/domain"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

const permissionDenied = "You do not have permission to use this command."

// Authorizer answers who may do what inside the guild.
type Authorizer struct {
	adminRoles    map[string]struct{}
	supportRoleID string
	priceRoles    map[string]struct{}
}

// NewAuthorizer builds the role sets from the guild layout.
func NewAuthorizer(guild *config.GuildConfig) *Authorizer {
	a := &Authorizer{
		adminRoles:    make(map[string]struct{}, len(guild.AdminRoleIDs)),
		supportRoleID: guild.SupportRoleID,
		priceRoles:    make(map[string]struct{}, len(guild.PriceManagerRoleIDs)),
	}
	for _, id := range guild.AdminRoleIDs {
		a.adminRoles[id] = struct{}{}
	}
	for _, id := range guild.PriceManagerRoleIDs {
		a.priceRoles[id] = struct{}{}
	}
	return a
}

// IsAdmin reports whether actor holds an admin role. The bot itself counts
// as an admin.
func (a *Authorizer) IsAdmin(actor domain.Actor) bool {
	if actor.System {
		return true
	}
	return hasAny(actor, a.adminRoles)
}

// IsStaff is the ticket-management predicate: admin or support.
func (a *Authorizer) IsStaff(actor domain.Actor) bool {
	return a.IsAdmin(actor) || actor.HasRole(a.supportRoleID)
}

// CanManagePrices reports whether actor may view or change unit prices.
// Without configured price-manager roles the admins manage prices.
func (a *Authorizer) CanManagePrices(actor domain.Actor) bool {
	if len(a.priceRoles) == 0 {
		return a.IsAdmin(actor)
	}
	return actor.System || hasAny(actor, a.priceRoles)
}

// CanClose reports whether actor may close a ticket owned by ownerID.
// Owners may only close through the confirm-before-close button.
func (a *Authorizer) CanClose(actor domain.Actor, ownerID string, allowOwner bool) bool {
	if a.IsStaff(actor) {
		return true
	}
	return allowOwner && ownerID != "" && actor.ID == ownerID
}

// RequireStaff returns a forbidden error unless actor is staff.
func (a *Authorizer) RequireStaff(actor domain.Actor) error {
	if !a.IsStaff(actor) {
		return apperrors.NewForbidden(permissionDenied)
	}
	return nil
}

// RequireAdmin returns a forbidden error unless actor is an admin.
func (a *Authorizer) RequireAdmin(actor domain.Actor) error {
	if !a.IsAdmin(actor) {
		return apperrors.NewForbidden(permissionDenied)
	}
	return nil
}

// RequirePriceManager returns a forbidden error unless actor manages prices.
func (a *Authorizer) RequirePriceManager(actor domain.Actor) error {
	if !a.CanManagePrices(actor) {
		return apperrors.NewForbidden(permissionDenied)
	}
	return nil
}

func hasAny(actor domain.Actor, roles map[string]struct{}) bool {
	for _, id := range actor.RoleIDs {
		if _, ok := roles[id]; ok {
			return true
		}
	}
	return false
}

// RequireOperator ensures an operator token was presented.
func RequireOperator() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthorized("operator token required")
		}
		return c.Next()
	}
}
