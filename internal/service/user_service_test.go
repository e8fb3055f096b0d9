package service

import (
	"context"
	"errors"
	"testing"

	"github.com/drugorders/identity-service/internal/domain"
)

func TestUserServiceUpdateProfile(t *testing.T) {
	ctx := context.Background()
	stack := newStackForTest(t)
	auth := stack.authService(nil)
	users := NewUserService(stack.users)

	res, err := auth.Register(ctx, RegisterInput{Username: "bob", Password: "s3cret1", FirstName: "Bob"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	email := "bob@pharmacy.example"
	updated, err := users.UpdateProfile(ctx, res.User.ID, domain.ProfileUpdate{Email: &email})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Email != email || updated.FirstName != "Bob" {
		t.Fatalf("unexpected profile after update: %+v", updated)
	}

	got, err := users.GetByID(ctx, res.User.ID)
	if err != nil || got.Email != email {
		t.Fatalf("expected persisted email, got %+v %v", got, err)
	}

	if _, err := users.UpdateProfile(ctx, 99, domain.ProfileUpdate{Email: &email}); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := users.UpdateProfile(ctx, res.User.ID, domain.ProfileUpdate{}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUserServiceList(t *testing.T) {
	ctx := context.Background()
	stack := newStackForTest(t)
	auth := stack.authService(nil)
	users := NewUserService(stack.users)

	for _, name := range []string{"bob", "carol"} {
		if _, err := auth.Register(ctx, RegisterInput{Username: name, Password: "s3cret1"}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	all, err := users.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 || all[0].Username != "bob" || all[1].Username != "carol" {
		t.Fatalf("unexpected list: %+v", all)
	}
}
