package sqlite

import (
	"context"

	"gorm.io/gorm/clause"

	"github.com/and161185/danaom/internal/model"
)

type userRow struct {
	ID               int64   `gorm:"column:id;primaryKey;autoIncrement"`
	Name             string  `gorm:"column:name"`
	Email            string  `gorm:"column:email"`
	Phone            *string `gorm:"column:phone"`
	Address          *string `gorm:"column:address"`
	RegistrationDate *string `gorm:"column:registration_date"`
}

func (userRow) TableName() string { return "users" }

func toUserRow(u *model.User) userRow {
	return userRow{
		ID: u.ID, Name: u.Name, Email: u.Email,
		Phone: u.Phone, Address: u.Address, RegistrationDate: u.RegistrationDate,
	}
}

func (r userRow) toModel() model.User {
	return model.User{
		ID: r.ID, Name: r.Name, Email: r.Email,
		Phone: r.Phone, Address: r.Address, RegistrationDate: r.RegistrationDate,
	}
}

// InsertUser inserts u; a duplicate (email, address) is dropped without error.
func (s *Store) InsertUser(ctx context.Context, u *model.User) error {
	row := toUserRow(u)
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}, {Name: "address"}}, DoNothing: true}).
		Create(&row)
	if res.Error != nil {
		return mapErr("insert user", res.Error)
	}
	if res.RowsAffected > 0 {
		u.ID = row.ID
	}
	return nil
}

// GetUserByEmail loads the first user registered with email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var row userRow
	if err := s.db.WithContext(ctx).Where("email = ?", email).Order("id").Take(&row).Error; err != nil {
		return nil, mapErr("get user by email", err)
	}
	u := row.toModel()
	return &u, nil
}

// GetUserByID loads a user by primary key.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	var row userRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return nil, mapErr("get user by id", err)
	}
	u := row.toModel()
	return &u, nil
}

// LastUser loads the user with the highest ID.
func (s *Store) LastUser(ctx context.Context) (*model.User, error) {
	var row userRow
	if err := s.db.WithContext(ctx).Order("id DESC").Take(&row).Error; err != nil {
		return nil, mapErr("get last user", err)
	}
	u := row.toModel()
	return &u, nil
}

// ListUsers returns all users ordered by name.
func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	var rows []userRow
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, mapErr("list users", err)
	}
	users := make([]model.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toModel())
	}
	return users, nil
}

// UpdateUser overwrites every column of the row with u.ID; no row, no change.
func (s *Store) UpdateUser(ctx context.Context, u *model.User) error {
	row := toUserRow(u)
	err := s.db.WithContext(ctx).
		Model(&userRow{}).
		Where("id = ?", u.ID).
		Select("name", "email", "phone", "address", "registration_date").
		Updates(&row).Error
	return mapErr("update user", err)
}

// UpsertUser inserts u or overwrites the row with u.ID in place.
func (s *Store) UpsertUser(ctx context.Context, u *model.User) error {
	row := toUserRow(u)
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "email", "phone", "address", "registration_date"}),
		}).
		Create(&row).Error
	if err != nil {
		return mapErr("upsert user", err)
	}
	u.ID = row.ID
	return nil
}

// DeleteUser removes u and, through the foreign key, its wishlist.
func (s *Store) DeleteUser(ctx context.Context, u *model.User) error {
	return s.DeleteUserByID(ctx, u.ID)
}

// DeleteUserByID removes the user with id.
func (s *Store) DeleteUserByID(ctx context.Context, id int64) error {
	return mapErr("delete user", s.db.WithContext(ctx).Where("id = ?", id).Delete(&userRow{}).Error)
}
