package storefront

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// EnsureUser records an identity the first time it is seen. New users get
// the user role regardless of the claim; roles are changed by an admin.
func (s *service) EnsureUser(ctx context.Context, id Identity) (*User, error) {
	if err := requireIdentity(id); err != nil {
		return nil, err
	}

	user, err := s.repository.GetUser(ctx, id.Subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get user %s: %w", id.Subject, Classify(err))
	}

	now := s.now()
	user = &User{
		Identity:  id.Subject,
		Email:     id.Email,
		Role:      RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repository.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicate) {
			// Signed in from two places at once.
			return s.GetUser(ctx, id.Subject)
		}
		return nil, fmt.Errorf("create user %s: %w", id.Subject, Classify(err))
	}

	s.logger.InfoContext(ctx, "user registered", "user", id.Subject, "email", id.Email)
	return user, nil
}

func (s *service) GetUser(ctx context.Context, identity string) (*User, error) {
	user, err := s.repository.GetUser(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", identity, Classify(err))
	}
	return user, nil
}

func (s *service) ListUsers(ctx context.Context, id Identity) ([]*User, error) {
	if err := canManageUsers(id, "list users"); err != nil {
		return nil, err
	}
	users, err := s.repository.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", Classify(err))
	}
	sort.SliceStable(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return users, nil
}

func (s *service) ChangeUserRole(ctx context.Context, id Identity, target string, role Role) (*User, error) {
	if err := canManageUsers(id, "change role"); err != nil {
		return nil, err
	}
	if !role.IsValid() {
		return nil, invalid("role", fmt.Sprintf("%q is not a known role", role))
	}

	now := s.now()
	if err := s.repository.UpdateUserRole(ctx, target, role, now); err != nil {
		return nil, fmt.Errorf("change role of %s: %w", target, Classify(err))
	}

	s.logger.InfoContext(ctx, "user role changed", "user", target, "role", role, "by", id.Subject)
	return s.GetUser(ctx, target)
}
