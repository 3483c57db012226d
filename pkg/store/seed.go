package store

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"crowdtrack-backend/pkg/models"
)

// SeedSampleData loads the development fixture: one owner ("admin"), one
// contributor ("user") already enrolled in the "pizza" project, and a ticket
// asking for eight observations. Safe to call repeatedly; it backs off as
// soon as the owner account already exists.
func SeedSampleData(ctx context.Context, s Store) error {
	adminDigest, err := bcrypt.GenerateFromPassword([]byte("admin"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("seed: hash admin password: %w", err)
	}
	err = s.CreateAccount(ctx, &models.Account{
		LoginName: "admin",
		Password:  string(adminDigest),
		FirstName: "Ad",
		LastName:  "Min",
		Role:      models.RoleOwner,
	})
	if errors.Is(err, ErrDuplicate) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("seed: create owner: %w", err)
	}

	userDigest, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("seed: hash user password: %w", err)
	}
	if err := s.CreateAccount(ctx, &models.Account{
		LoginName: "user",
		Password:  string(userDigest),
		FirstName: "Regular",
		LastName:  "User",
		Role:      models.RoleContributor,
		Phone:     "+49 123 4567890",
	}); err != nil {
		return fmt.Errorf("seed: create contributor: %w", err)
	}

	if err := s.CreateProject(ctx, &models.Project{
		EntryKey: "pizza",
		Name:     "Pizza Delivery Study",
		Owner:    "admin",
	}); err != nil {
		return fmt.Errorf("seed: create project: %w", err)
	}
	if err := s.AddMember(ctx, "pizza", "user"); err != nil {
		return fmt.Errorf("seed: enroll contributor: %w", err)
	}

	ticket := &models.Ticket{
		EntryKey:             "pizza",
		Name:                 "Order a pizza",
		Summary:              "Walk through a delivery order end to end",
		Description:          "Place an order in the app and record how the checkout behaves.",
		Category:             models.CategoryBehavior,
		RequiredObservations: 8,
	}
	if err := s.CreateTicket(ctx, ticket); err != nil {
		return fmt.Errorf("seed: create ticket: %w", err)
	}
	return nil
}
