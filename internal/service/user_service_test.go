package service

import (
	"context"
	"errors"
	"testing"

	"cora-trainer-go/internal/config"
	"cora-trainer-go/internal/model"
	"cora-trainer-go/internal/repository"
	"cora-trainer-go/pkg/token"
)

func newUserService(t *testing.T) UserService {
	t.Helper()
	repo, err := repository.NewUserRepository([]config.LocalUserConfig{
		{Username: "admin", Password: "admin123", Role: "ADMIN"},
		{Username: "user", Password: "user123"},
	})
	if err != nil {
		t.Fatalf("NewUserRepository: %v", err)
	}
	return NewUserService(repo, token.NewJWTManager("test-secret", 1), nil)
}

func TestLogin(t *testing.T) {
	svc := newUserService(t)
	tok, user, err := svc.Login("admin", "admin123")
	if err != nil || tok == "" {
		t.Fatalf("Login: %v", err)
	}
	if user.Role != model.RoleAdminAccount {
		t.Errorf("unexpected role %q", user.Role)
	}
	for _, creds := range [][2]string{{"admin", "wrong"}, {"ghost", "admin123"}} {
		if _, _, err := svc.Login(creds[0], creds[1]); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Login(%q) expected ErrInvalidCredentials, got %v", creds[0], err)
		}
	}
}

func TestResolvePrincipal(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()
	tok, _, _ := svc.Login("user", "user123")

	p := svc.ResolvePrincipal(ctx, "Jane.Doe@Contoso.com", tok)
	if p.AuthMethod != model.AuthFederated || p.Identity != "Jane.Doe@Contoso.com" || p.Display != "Jane.Doe (Jane.Doe@Contoso.com)" {
		t.Errorf("federated header should win, got %+v", p)
	}

	p = svc.ResolvePrincipal(ctx, "", tok)
	if p.AuthMethod != model.AuthLocal || p.Identity != "user" || !p.Authenticated() || p.IsAdmin() {
		t.Errorf("unexpected local principal %+v", p)
	}

	p = svc.ResolvePrincipal(ctx, "", "garbage")
	if p.AuthMethod != model.AuthAnonymous || p.Identity != model.AnonymousIdentity || p.Authenticated() {
		t.Errorf("invalid token should resolve to anonymous, got %+v", p)
	}

	adminTok, _, _ := svc.Login("admin", "admin123")
	if p := svc.ResolvePrincipal(ctx, "", adminTok); !p.IsAdmin() {
		t.Errorf("admin token should resolve to admin, got %+v", p)
	}
}

func TestLogoutWithoutRedisIsNoop(t *testing.T) {
	svc := newUserService(t)
	tok, _, _ := svc.Login("user", "user123")
	if err := svc.Logout(context.Background(), tok); err != nil {
		t.Fatalf("Logout: %v", err)
	}
}
