package auth

import (
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/domain"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

func testAuthorizer(priceRoles ...string) *Authorizer {
	return NewAuthorizer(&config.GuildConfig{
		AdminRoleIDs:        []string{"admin"},
		SupportRoleID:       "support",
		PriceManagerRoleIDs: priceRoles,
	})
}

func TestStaffPredicate(t *testing.T) {
	a := testAuthorizer()
	cases := []struct {
		name  string
		actor domain.Actor
		staff bool
	}{
		{"admin", domain.Actor{ID: "1", RoleIDs: []string{"admin"}}, true},
		{"support", domain.Actor{ID: "2", RoleIDs: []string{"x", "support"}}, true},
		{"member", domain.Actor{ID: "3", RoleIDs: []string{"x"}}, false},
		{"system", domain.SystemActor("bot", "bot"), true},
	}
	for _, tc := range cases {
		if got := a.IsStaff(tc.actor); got != tc.staff {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.staff, got)
		}
	}
	if err := a.RequireStaff(domain.Actor{ID: "3"}); !apperrors.IsCode(err, apperrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestOwnerCloseOnlyOnButtonPath(t *testing.T) {
	a := testAuthorizer()
	owner := domain.Actor{ID: "42"}
	if a.CanClose(owner, "42", false) {
		t.Fatalf("owner must not close through commands")
	}
	if !a.CanClose(owner, "42", true) {
		t.Fatalf("owner should close through the button")
	}
	if a.CanClose(domain.Actor{ID: "43"}, "42", true) {
		t.Fatalf("stranger closed someone else's ticket")
	}
}

func TestPriceManagers(t *testing.T) {
	withRoles := testAuthorizer("pricing")
	if withRoles.CanManagePrices(domain.Actor{RoleIDs: []string{"support"}}) {
		t.Fatalf("support should not manage prices")
	}
	if !withRoles.CanManagePrices(domain.Actor{RoleIDs: []string{"pricing"}}) {
		t.Fatalf("price manager rejected")
	}
	if !testAuthorizer().CanManagePrices(domain.Actor{RoleIDs: []string{"admin"}}) {
		t.Fatalf("admins manage prices when no price roles are configured")
	}
}

func TestOperatorLoginIssuesParsableToken(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	tokens := NewTokenManager("secret", 5)
	login := NewOperatorLogin(string(hash), tokens)

	if _, _, err := login.Login("ops", "wrong"); !apperrors.IsCode(err, apperrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	token, _, err := login.Login("ops", "hunter2")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := tokens.ParseToken(token)
	if err != nil || claims.OperatorID != "ops" {
		t.Fatalf("unexpected claims %+v %v", claims, err)
	}
	if _, err := NewTokenManager("other", 5).ParseToken(token); err == nil {
		t.Fatalf("token accepted with the wrong secret")
	}
}

func TestOperatorLoginDisabledWithoutHash(t *testing.T) {
	login := NewOperatorLogin("  ", NewTokenManager("secret", 5))
	if login.Enabled() {
		t.Fatalf("expected disabled login")
	}
	if _, _, err := login.Login("ops", "x"); !apperrors.IsCode(err, apperrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}
