package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"nexus/internal/domain"
	"nexus/internal/repo"
)

func (e Engine) ListEvents(ctx context.Context, f repo.EventFilters) ([]domain.Event, error) {
	return e.Repo.LatestEvents(ctx, f)
}

// CreatedAPIKey carries the plaintext secret, which is only returned once.
type CreatedAPIKey struct {
	domain.APIKey
	Key string `json:"key"`
}

// CreateAPIKey issues a key bound to identity. Callers may mint keys for
// themselves; minting for another identity requires Zoe.
func (e Engine) CreateAPIKey(ctx context.Context, identity, name, caller string) (CreatedAPIKey, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return CreatedAPIKey{}, domain.Errorf(domain.ErrValidation, "identity required")
	}
	if identity != caller {
		if err := e.authority().RequireRole(ctx, nil, caller, domain.RoleZoe); err != nil {
			return CreatedAPIKey{}, err
		}
	}
	secret := "nx_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	key := domain.APIKey{
		ID:        uuid.NewString(),
		Identity:  identity,
		Name:      strings.TrimSpace(name),
		KeyHash:   repo.HashAPIKey(secret),
		CreatedAt: e.stamp(),
	}
	if err := e.Repo.InsertAPIKey(ctx, nil, key); err != nil {
		return CreatedAPIKey{}, fmt.Errorf("insert api key: %w", err)
	}
	return CreatedAPIKey{APIKey: key, Key: secret}, nil
}

func (e Engine) ListAPIKeys(ctx context.Context, identity string) ([]domain.APIKey, error) {
	return e.Repo.ListAPIKeys(ctx, identity)
}

// RevokeAPIKey deletes a key. Only its owner or Zoe may revoke it.
func (e Engine) RevokeAPIKey(ctx context.Context, id, caller string) error {
	keys, err := e.Repo.ListAPIKeys(ctx, caller)
	if err != nil {
		return err
	}
	owned := false
	for _, k := range keys {
		if k.ID == id {
			owned = true
			break
		}
	}
	if !owned {
		if err := e.authority().RequireRole(ctx, nil, caller, domain.RoleZoe); err != nil {
			return err
		}
	}
	if err := e.Repo.DeleteAPIKey(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("api key %s: %w", id, repo.ErrNotFound)
		}
		return err
	}
	return nil
}

// IdentityForAPIKey resolves a plaintext key to the identity it was issued to.
func (e Engine) IdentityForAPIKey(ctx context.Context, secret string) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", domain.Errorf(domain.ErrUnauthorized, "api key required")
	}
	key, err := e.Repo.GetAPIKeyByHash(ctx, repo.HashAPIKey(secret))
	if errors.Is(err, repo.ErrNotFound) {
		return "", domain.Errorf(domain.ErrUnauthorized, "invalid api key")
	}
	if err != nil {
		return "", err
	}
	return key.Identity, nil
}
