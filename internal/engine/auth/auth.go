package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"nexus/internal/domain"
	"nexus/internal/repo"
)

// ForbiddenError indicates the caller lacks the required role.
type ForbiddenError struct {
	Role domain.Role
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("requires %s role", e.Role)
}

func (e ForbiddenError) Unwrap() error {
	return domain.ErrUnauthorized
}

// Satisfies reports whether a holder of held passes a check for required.
// Zoe covers Admin, Admin covers Zeno, and Zeno is granted to everyone.
func Satisfies(held, required domain.Role) bool {
	switch required {
	case domain.RoleZeno:
		return true
	case domain.RoleAdmin:
		return held == domain.RoleAdmin || held == domain.RoleZoe
	case domain.RoleZoe:
		return held == domain.RoleZoe
	}
	return false
}

// Service resolves identity roles from the store. Operators is the
// deployment's allow-list of identities cleared for Zoe/Admin.
type Service struct {
	Repo      repo.Repo
	Operators map[string]struct{}
	Now       func() time.Time
}

func NewService(r repo.Repo, operators []string) Service {
	ops := make(map[string]struct{}, len(operators))
	for _, id := range operators {
		if id = strings.TrimSpace(id); id != "" {
			ops[id] = struct{}{}
		}
	}
	return Service{Repo: r, Operators: ops, Now: time.Now}
}

func (s Service) now() string {
	if s.Now != nil {
		return s.Now().UTC().Format(time.RFC3339)
	}
	return time.Now().UTC().Format(time.RFC3339)
}

func (s Service) IsOperator(identity string) bool {
	_, ok := s.Operators[identity]
	return ok
}

// RoleOf returns the stored role for identity; ok is false when none is bound.
func (s Service) RoleOf(ctx context.Context, tx *sql.Tx, identity string) (domain.Role, bool, error) {
	ir, err := s.Repo.GetIdentityRole(ctx, tx, identity)
	if errors.Is(err, repo.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return ir.Role, true, nil
}

func (s Service) HasRole(ctx context.Context, tx *sql.Tx, identity string, required domain.Role) (bool, error) {
	if required == domain.RoleZeno {
		return true, nil
	}
	held, ok, err := s.RoleOf(ctx, tx, identity)
	if err != nil || !ok {
		return false, err
	}
	return Satisfies(held, required), nil
}

func (s Service) RequireRole(ctx context.Context, tx *sql.Tx, identity string, required domain.Role) error {
	ok, err := s.HasRole(ctx, tx, identity, required)
	if err != nil {
		return err
	}
	if !ok {
		return ForbiddenError{Role: required}
	}
	return nil
}

// CanRequest reports whether identity may self-register with role.
func (s Service) CanRequest(identity string, role domain.Role) bool {
	if role == domain.RoleZoe || role == domain.RoleAdmin {
		return s.IsOperator(identity)
	}
	return true
}

// AssignRole binds identity to role once. A second assignment is a conflict.
func (s Service) AssignRole(ctx context.Context, tx *sql.Tx, identity string, role domain.Role) error {
	if identity == "" {
		return domain.Errorf(domain.ErrValidation, "identity required")
	}
	_, ok, err := s.RoleOf(ctx, tx, identity)
	if err != nil {
		return err
	}
	if ok {
		return domain.Errorf(domain.ErrConflict, "identity %s already has a role", identity)
	}
	return s.Repo.InsertIdentityRole(ctx, tx, domain.IdentityRole{Identity: identity, Role: role, AssignedAt: s.now()})
}

// SeedOperators grants Zoe to every operator identity that has no role yet.
func (s Service) SeedOperators(ctx context.Context, tx *sql.Tx) (int, error) {
	seeded := 0
	for identity := range s.Operators {
		_, ok, err := s.RoleOf(ctx, tx, identity)
		if err != nil {
			return seeded, err
		}
		if ok {
			continue
		}
		if err := s.AssignRole(ctx, tx, identity, domain.RoleZoe); err != nil {
			return seeded, err
		}
		seeded++
	}
	return seeded, nil
}
