package store

import (
	"database/sql"
	"fmt"

	"github.com/tillgrange/choreboard/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var active int

	err := scanner.Scan(&u.ID, &u.Name, &u.Role, &u.Points, &active, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}

	u.Active = active != 0
	return &u, nil
}

const userCols = `id, name, role, points, active, created_at, updated_at`

func (s *UserStore) Create(name string, role model.Role) (*model.User, error) {
	result, err := s.db.Exec(
		`INSERT INTO users (name, role) VALUES (?, ?)`,
		name, string(role),
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetSystem returns the reserved system actor seeded by migration.
func (s *UserStore) GetSystem() (*model.User, error) {
	row := s.db.QueryRow(`SELECT ` + userCols + ` FROM users WHERE role = 'system' LIMIT 1`)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("system user missing")
	}
	if err != nil {
		return nil, fmt.Errorf("get system user: %w", err)
	}
	return u, nil
}

func (s *UserStore) List() ([]model.User, error) {
	rows, err := s.db.Query(`SELECT ` + userCols + ` FROM users WHERE role != 'system' ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// ListIDs returns the ids of all non-system users, for the audit sweep.
func (s *UserStore) ListIDs() ([]int64, error) {
	rows, err := s.db.Query(`SELECT id FROM users WHERE role != 'system' ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Deactivate soft-disables a user. Users are never hard-deleted; their
// ledger history must survive them.
func (s *UserStore) Deactivate(id int64) error {
	_, err := s.db.Exec(`UPDATE users SET active = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}
	return nil
}
