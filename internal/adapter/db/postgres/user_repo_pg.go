package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"user-settings-api/internal/domain/user"
	pkgerrors "user-settings-api/pkg/errors"
)

// UserRepoPG implements the Repository interface using GORM.
// The same code runs against PostgreSQL in production and SQLite in tests.
type UserRepoPG struct {
	db  *gorm.DB    // GORM database connection
	log *zap.Logger // Structured logger for database operations
}

// NewUserRepoPG creates a new instance of UserRepoPG.
func NewUserRepoPG(db *gorm.DB, log *zap.Logger) *UserRepoPG {
	return &UserRepoPG{db: db, log: log}
}

// UserSchema represents the database schema for the user table.
type UserSchema struct {
	ID           int64           `gorm:"primaryKey;autoIncrement"`
	Name         string          `gorm:"size:255;not null"`
	Email        string          `gorm:"size:255;not null"`
	ActiveStatus string          `gorm:"size:32;not null"`
	CreatedAt    time.Time       `gorm:"not null;autoCreateTime:false"`
	UpdatedAt    time.Time       `gorm:"not null;autoUpdateTime:false"`
	Settings     []SettingSchema `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the UserSchema model.
func (UserSchema) TableName() string {
	return "user"
}

// SettingSchema represents the database schema for the user_settings table.
type SettingSchema struct {
	ID     int64  `gorm:"primaryKey;autoIncrement"`
	UserID int64  `gorm:"not null;index:idx_user_settings_user_id"`
	Name   string `gorm:"size:255;not null"`
	Value  string `gorm:"not null;default:''"`
}

// TableName specifies the table name for the SettingSchema model.
func (SettingSchema) TableName() string {
	return "user_settings"
}

// Create inserts a user and its settings in a single transaction.
// Generated ids are written back into u.
func (r *UserRepoPG) Create(ctx context.Context, u *user.User) (int64, error) {
	if u == nil {
		return 0, pkgerrors.NewInternalError("user cannot be nil", nil)
	}

	model := toSchema(u)
	settings := model.Settings
	model.Settings = nil

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&model).Error; err != nil {
			return fmt.Errorf("insert user: %w", err)
		}

		if len(settings) == 0 {
			return nil
		}
		for i := range settings {
			settings[i].UserID = model.ID
		}
		if err := tx.Create(&settings).Error; err != nil {
			return fmt.Errorf("insert user settings: %w", err)
		}
		return nil
	})
	if err != nil {
		r.log.Error("failed to create user in db", zap.Error(err), zap.String("email", u.Email))
		return 0, pkgerrors.NewPersistenceError("failed to create user", err)
	}

	model.Settings = settings
	*u = toDomain(model)

	r.log.Info("user created in db", zap.Int64("id", model.ID), zap.Int("settings", len(settings)))
	return model.ID, nil
}

// Update overwrites the mutable columns of an existing user.
// created_at is never part of the statement.
func (r *UserRepoPG) Update(ctx context.Context, u *user.User) (int64, error) {
	if u == nil {
		return 0, pkgerrors.NewInternalError("user cannot be nil", nil)
	}

	res := r.db.WithContext(ctx).
		Model(&UserSchema{ID: u.ID}).
		Select("name", "email", "active_status", "updated_at").
		Updates(map[string]interface{}{
			"name":          u.Name,
			"email":         u.Email,
			"active_status": string(u.ActiveStatus),
			"updated_at":    u.UpdatedAt,
		})
	if res.Error != nil {
		r.log.Error("failed to update user in db", zap.Error(res.Error), zap.Int64("id", u.ID))
		return 0, pkgerrors.NewPersistenceError("failed to update user", res.Error)
	}
	if res.RowsAffected == 0 {
		r.log.Warn("user not found for update", zap.Int64("id", u.ID))
		return 0, notFound(u.ID)
	}

	r.log.Info("user updated in db", zap.Int64("id", u.ID))
	return u.ID, nil
}

// Delete removes a user and every setting it owns in one transaction.
func (r *UserRepoPG) Delete(ctx context.Context, id int64) (int64, error) {
	if id <= 0 {
		return 0, pkgerrors.NewValidationError("id", "must be a positive integer")
	}

	var removed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		settingsRes := tx.Where("user_id = ?", id).Delete(&SettingSchema{})
		if settingsRes.Error != nil {
			return fmt.Errorf("delete user settings: %w", settingsRes.Error)
		}

		userRes := tx.Delete(&UserSchema{}, id)
		if userRes.Error != nil {
			return fmt.Errorf("delete user: %w", userRes.Error)
		}
		if userRes.RowsAffected == 0 {
			// Rolls back the settings delete as well.
			return notFound(id)
		}
		removed = settingsRes.RowsAffected
		return nil
	})
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			r.log.Warn("user not found for delete", zap.Int64("id", id))
			return 0, err
		}
		r.log.Error("failed to delete user in db", zap.Error(err), zap.Int64("id", id))
		return 0, pkgerrors.NewPersistenceError("failed to delete user", err)
	}

	r.log.Info("user deleted in db", zap.Int64("id", id), zap.Int64("settings_removed", removed))
	return id, nil
}

// GetByID retrieves a user and its settings by their unique ID.
func (r *UserRepoPG) GetByID(ctx context.Context, id int64) (*user.User, error) {
	var model UserSchema
	err := r.db.WithContext(ctx).
		Preload("Settings", orderByID).
		First(&model, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.log.Warn("user not found", zap.Int64("id", id))
			return nil, notFound(id)
		}
		r.log.Error("failed to get user from db", zap.Error(err), zap.Int64("id", id))
		return nil, pkgerrors.NewPersistenceError("failed to get user", err)
	}

	u, err := r.loadUser(model)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// List returns one page of the unfiltered user set ordered by id, together
// with the total number of users.
func (r *UserRepoPG) List(ctx context.Context, page, limit int64) ([]user.User, int64, error) {
	db := r.db.WithContext(ctx)

	var total int64
	if err := db.Model(&UserSchema{}).Count(&total).Error; err != nil {
		r.log.Error("failed to count users in db", zap.Error(err))
		return nil, 0, pkgerrors.NewPersistenceError("failed to count users", err)
	}

	offset, ok := user.Offset(page, limit)
	if !ok || offset >= total {
		return []user.User{}, total, nil
	}

	var models []UserSchema
	err := db.Preload("Settings", orderByID).
		Order("id").
		Offset(int(offset)).
		Limit(int(limit)).
		Find(&models).Error
	if err != nil {
		r.log.Error("failed to list users from db", zap.Error(err), zap.Int64("page", page), zap.Int64("limit", limit))
		return nil, 0, pkgerrors.NewPersistenceError("failed to list users", err)
	}

	users := make([]user.User, len(models))
	for i, model := range models {
		if users[i], err = r.loadUser(model); err != nil {
			return nil, 0, err
		}
	}

	return users, total, nil
}

func orderByID(db *gorm.DB) *gorm.DB {
	return db.Order("id")
}

func notFound(id int64) error {
	return pkgerrors.NewNotFoundError("user", fmt.Sprintf("user not found: id=%d", id))
}

func toSchema(u *user.User) UserSchema {
	settings := make([]SettingSchema, len(u.Settings))
	for i, s := range u.Settings {
		settings[i] = SettingSchema{
			ID:     s.ID,
			UserID: u.ID,
			Name:   s.Name,
			Value:  s.Value,
		}
	}

	return UserSchema{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		ActiveStatus: string(u.ActiveStatus),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
		Settings:     settings,
	}
}

// loadUser maps a stored row to the domain, rejecting a status the domain
// does not know.
func (r *UserRepoPG) loadUser(m UserSchema) (user.User, error) {
	u := toDomain(m)
	if !u.ActiveStatus.Valid() {
		r.log.Error("stored user has unknown active status",
			zap.Int64("id", m.ID), zap.String("active_status", m.ActiveStatus))
		return user.User{}, pkgerrors.NewInternalError(
			fmt.Sprintf("user %d has unknown active status %q", m.ID, m.ActiveStatus), nil)
	}
	return u, nil
}

func toDomain(m UserSchema) user.User {
	settings := make([]user.Setting, len(m.Settings))
	for i, s := range m.Settings {
		settings[i] = user.Setting{
			ID:     s.ID,
			UserID: s.UserID,
			Name:   s.Name,
			Value:  s.Value,
		}
	}

	return user.User{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		ActiveStatus: user.ActiveStatus(m.ActiveStatus),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
		Settings:     settings,
	}
}
