package postgres

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc/codes"
	"gorm.io/gorm"

	"user-settings-api/internal/adapter/db/migrations"
	"user-settings-api/internal/domain/user"
	pkgerrors "user-settings-api/pkg/errors"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "users.db")), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	// Migrate the schema
	err = migrations.Up(context.Background(), sqlDB, migrations.DialectSQLite, zaptest.NewLogger(t))
	require.NoError(t, err)

	return db
}

func newUser(name, email string, settings ...user.Setting) *user.User {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	return &user.User{
		Name:         name,
		Email:        email,
		ActiveStatus: user.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
		Settings:     settings,
	}
}

func countSettings(t *testing.T, db *gorm.DB, userID int64) int64 {
	var n int64
	require.NoError(t, db.Model(&SettingSchema{}).Where("user_id = ?", userID).Count(&n).Error)
	return n
}

func TestUserRepoPG_Create_WithSettings(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepoPG(db, zaptest.NewLogger(t))
	ctx := context.Background()

	u := newUser("Alice", "a@x.com", user.Setting{Name: "theme", Value: "dark"})
	id, err := repo.Create(ctx, u)
	require.NoError(t, err)
	assert.Positive(t, id)
	assert.Equal(t, id, u.ID)
	require.Len(t, u.Settings, 1)
	assert.Positive(t, u.Settings[0].ID)
	assert.Equal(t, id, u.Settings[0].UserID)

	assert.Equal(t, int64(1), countSettings(t, db, id))

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name)
	assert.Equal(t, user.StatusActive, got.ActiveStatus)
	assert.True(t, got.CreatedAt.Equal(got.UpdatedAt))
	require.Len(t, got.Settings, 1)
	assert.Equal(t, "theme", got.Settings[0].Name)
	assert.Equal(t, "dark", got.Settings[0].Value)
}

func TestUserRepoPG_Create_MultipleSettings(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepoPG(db, zaptest.NewLogger(t))
	ctx := context.Background()

	u := newUser("Carol", "c@x.com",
		user.Setting{Name: "theme", Value: "dark"},
		user.Setting{Name: "lang", Value: "en"},
	)
	id, err := repo.Create(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, int64(2), countSettings(t, db, id))

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.Len(t, got.Settings, 2)
	assert.Equal(t, "theme", got.Settings[0].Name)
	assert.Equal(t, "lang", got.Settings[1].Name)
}

func TestUserRepoPG_Create_NoSettings(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepoPG(db, zaptest.NewLogger(t))

	id, err := repo.Create(context.Background(), newUser("Dave", "d@x.com"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), countSettings(t, db, id))
}

func TestUserRepoPG_Create_Nil(t *testing.T) {
	repo := NewUserRepoPG(setupTestDB(t), zaptest.NewLogger(t))

	_, err := repo.Create(context.Background(), nil)
	assert.Equal(t, codes.Internal, pkgerrors.Code(err))

	_, err = repo.Update(context.Background(), nil)
	assert.Equal(t, codes.Internal, pkgerrors.Code(err))
}

func TestUserRepoPG_UnknownStoredStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepoPG(db, zaptest.NewLogger(t))
	ctx := context.Background()

	id, err := repo.Create(ctx, newUser("Eve", "e@x.com"))
	require.NoError(t, err)
	require.NoError(t, db.Model(&UserSchema{}).Where("id = ?", id).Update("active_status", "suspended").Error)

	got, err := repo.GetByID(ctx, id)
	assert.Nil(t, got)
	var ie *pkgerrors.InternalError
	require.ErrorAs(t, err, &ie)
	assert.Contains(t, ie.Message, `"suspended"`)

	_, _, err = repo.List(ctx, 1, 10)
	assert.Equal(t, codes.Internal, pkgerrors.Code(err))
}

func TestUserRepoPG_GetByID_NotFound(t *testing.T) {
	repo := NewUserRepoPG(setupTestDB(t), zaptest.NewLogger(t))

	got, err := repo.GetByID(context.Background(), 42)
	assert.Nil(t, got)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestUserRepoPG_Update(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepoPG(db, zaptest.NewLogger(t))
	ctx := context.Background()

	u := newUser("Alice", "a@x.com")
	id, err := repo.Create(ctx, u)
	require.NoError(t, err)
	createdAt := u.CreatedAt

	u.Name = "Bob"
	u.Email = "b@x.com"
	u.ActiveStatus = user.StatusInactive
	u.UpdatedAt = u.UpdatedAt.Add(time.Minute)
	// A stray CreatedAt must not be persisted.
	u.CreatedAt = createdAt.Add(time.Hour)

	_, err = repo.Update(ctx, u)
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Bob", got.Name)
	assert.Equal(t, "b@x.com", got.Email)
	assert.Equal(t, user.StatusInactive, got.ActiveStatus)
	assert.True(t, got.CreatedAt.Equal(createdAt))
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))
}

func TestUserRepoPG_Update_NotFound(t *testing.T) {
	repo := NewUserRepoPG(setupTestDB(t), zaptest.NewLogger(t))

	u := newUser("Ghost", "g@x.com")
	u.ID = 99
	_, err := repo.Update(context.Background(), u)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestUserRepoPG_Delete_CascadesSettings(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepoPG(db, zaptest.NewLogger(t))
	ctx := context.Background()

	keep := newUser("Keep", "k@x.com", user.Setting{Name: "theme", Value: "light"})
	_, err := repo.Create(ctx, keep)
	require.NoError(t, err)

	u := newUser("Alice", "a@x.com",
		user.Setting{Name: "theme", Value: "dark"},
		user.Setting{Name: "lang", Value: "en"},
	)
	id, err := repo.Create(ctx, u)
	require.NoError(t, err)

	deleted, err := repo.Delete(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, deleted)

	_, err = repo.GetByID(ctx, id)
	assert.True(t, pkgerrors.IsNotFound(err))
	assert.Equal(t, int64(0), countSettings(t, db, id))

	// Other users' settings are untouched.
	assert.Equal(t, int64(1), countSettings(t, db, keep.ID))
}

func TestUserRepoPG_Delete_NotFound(t *testing.T) {
	repo := NewUserRepoPG(setupTestDB(t), zaptest.NewLogger(t))

	_, err := repo.Delete(context.Background(), 7)
	assert.True(t, pkgerrors.IsNotFound(err))

	_, err = repo.Delete(context.Background(), 0)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestUserRepoPG_List_Pagination(t *testing.T) {
	repo := NewUserRepoPG(setupTestDB(t), zaptest.NewLogger(t))
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		_, err := repo.Create(ctx, newUser("user", "u@x.com", user.Setting{Name: "n", Value: "v"}))
		require.NoError(t, err)
	}

	seen := make(map[int64]bool)
	for page := int64(1); page <= 3; page++ {
		users, total, err := repo.List(ctx, page, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(25), total)
		assert.LessOrEqual(t, len(users), 10)

		for _, u := range users {
			assert.False(t, seen[u.ID], "user %d returned on more than one page", u.ID)
			seen[u.ID] = true
			assert.Len(t, u.Settings, 1)
		}
	}
	assert.Len(t, seen, 25)

	users, total, err := repo.List(ctx, 4, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(25), total)
	assert.Empty(t, users)

	users, total, err = repo.List(ctx, 288230376151711744, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(25), total)
	assert.Empty(t, users)
}

func TestUserRepoPG_PersistenceError(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepoPG(db, zaptest.NewLogger(t))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = repo.GetByID(context.Background(), 1)
	assert.True(t, pkgerrors.IsPersistence(err))

	_, _, err = repo.List(context.Background(), 1, 10)
	assert.True(t, pkgerrors.IsPersistence(err))

	_, err = repo.Create(context.Background(), newUser("A", "a@x.com"))
	assert.True(t, pkgerrors.IsPersistence(err))
}
