package service

import (
	"context"
	"errors"
	"strings"

	"github.com/aussiebroadwan/toupiao/internal/toupiao/domain"
	"github.com/aussiebroadwan/toupiao/internal/toupiao/store"
	"github.com/aussiebroadwan/toupiao/pkg/idx"
)

type RoleManager struct {
	Store store.Store
	Clock Clock
}

func (m *RoleManager) WithStore(st store.Store) *RoleManager {
	c := *m
	c.Store = st
	return &c
}

func (m *RoleManager) RoleExists(ctx context.Context, name string) (bool, error) {
	_, err := m.FindByName(ctx, name)
	switch {
	case errors.Is(err, ErrRoleNotFound):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

func (m *RoleManager) FindByName(ctx context.Context, name string) (domain.Role, error) {
	r, err := m.Store.Roles().GetRoleByNormalizedName(ctx, domain.Normalize(name))
	if errors.Is(err, store.ErrNotFound) {
		return domain.Role{}, ErrRoleNotFound
	}
	return r, err
}

func (m *RoleManager) Create(ctx context.Context, name string) (domain.Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Role{}, errors.New("role name is required")
	}
	now := m.Clock.now()
	r := domain.Role{
		ID:               idx.NewAt(now).String(),
		Name:             name,
		NormalizedName:   domain.Normalize(name),
		ConcurrencyStamp: newStamp(),
		CreatedAt:        now,
	}
	if err := m.Store.Roles().CreateRole(ctx, r); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Role{}, ErrDuplicateRole
		}
		return domain.Role{}, err
	}
	return r, nil
}

func (m *RoleManager) List(ctx context.Context) ([]domain.Role, error) {
	return m.Store.Roles().ListRoles(ctx)
}
