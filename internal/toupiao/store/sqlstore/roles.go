package sqlstore

import (
	"context"

	"github.com/aussiebroadwan/toupiao/internal/toupiao/domain"
)

type rolesRepo struct {
	q querier
}

func (r *rolesRepo) GetRoleByNormalizedName(ctx context.Context, normalizedName string) (domain.Role, error) {
	var role domain.Role
	err := r.q.queryRow(ctx, `SELECT id, name, normalized_name, concurrency_stamp, created_at
		FROM roles WHERE normalized_name = ?`, normalizedName).
		Scan(&role.ID, &role.Name, &role.NormalizedName, &role.ConcurrencyStamp, &role.CreatedAt)
	if err != nil {
		return domain.Role{}, mapNotFound(err)
	}
	role.CreatedAt = role.CreatedAt.UTC()
	return role, nil
}

func (r *rolesRepo) CreateRole(ctx context.Context, role domain.Role) error {
	_, err := r.q.exec(ctx, `INSERT INTO roles (id, name, normalized_name, concurrency_stamp, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		role.ID, role.Name, role.NormalizedName, role.ConcurrencyStamp, ts(role.CreatedAt))
	return err
}

func (r *rolesRepo) ListRoles(ctx context.Context) ([]domain.Role, error) {
	rows, err := r.q.query(ctx, `SELECT id, name, normalized_name, concurrency_stamp, created_at
		FROM roles ORDER BY normalized_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []domain.Role
	for rows.Next() {
		var role domain.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.NormalizedName, &role.ConcurrencyStamp, &role.CreatedAt); err != nil {
			return nil, err
		}
		role.CreatedAt = role.CreatedAt.UTC()
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (r *rolesRepo) AddUserToRole(ctx context.Context, userID, roleID string) error {
	_, err := r.q.exec(ctx, `INSERT INTO user_roles (user_id, role_id) VALUES (?, ?)
		ON CONFLICT (user_id, role_id) DO NOTHING`, userID, roleID)
	return err
}

func (r *rolesRepo) RemoveUserFromRole(ctx context.Context, userID, roleID string) error {
	_, err := r.q.exec(ctx, `DELETE FROM user_roles WHERE user_id = ? AND role_id = ?`, userID, roleID)
	return err
}

func (r *rolesRepo) IsUserInRole(ctx context.Context, userID, normalizedRoleName string) (bool, error) {
	var n int
	err := r.q.queryRow(ctx, `SELECT COUNT(*) FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = ? AND r.normalized_name = ?`, userID, normalizedRoleName).Scan(&n)
	return n > 0, err
}

func (r *rolesRepo) ListRolesForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.q.query(ctx, `SELECT r.name FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = ? ORDER BY r.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *rolesRepo) ListUsersInRole(ctx context.Context, normalizedRoleName string) ([]domain.User, error) {
	rows, err := r.q.query(ctx, `SELECT `+prefixed("u", userColumns)+` FROM users u
		JOIN user_roles ur ON ur.user_id = u.id
		JOIN roles r ON r.id = ur.role_id
		WHERE r.normalized_name = ? ORDER BY u.created_at, u.id`, normalizedRoleName)
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}
