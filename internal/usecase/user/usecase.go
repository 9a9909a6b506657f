package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	domain "user-settings-api/internal/domain/user"
	pkgerrors "user-settings-api/pkg/errors"
	"user-settings-api/pkg/logger"
)

// Repository defines the interface for user data access operations.
// Implementations report missing rows as *errors.NotFoundError and store
// failures as *errors.PersistenceError.
type Repository interface {
	Create(ctx context.Context, u *domain.User) (int64, error)                 // Insert user and settings atomically
	GetByID(ctx context.Context, id int64) (*domain.User, error)               // Retrieve user with settings
	Update(ctx context.Context, u *domain.User) (int64, error)                 // Overwrite mutable columns
	Delete(ctx context.Context, id int64) (int64, error)                       // Delete user and its settings
	List(ctx context.Context, page, limit int64) ([]domain.User, int64, error) // One page plus total count
}

// EventPublisher emits user lifecycle events once a write is committed.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// Service implements Usecase on top of a Repository.
// It provides a clean separation between the transport layer and data layer.
type Service struct {
	repo     Repository          // Repository for data access
	events   EventPublisher      // Optional lifecycle event sink
	log      *zap.Logger         // Logger for structured logging
	validate *validator.Validate // Validator for request validation
	now      func() time.Time
}

var _ Usecase = (*Service)(nil)

// Option customises a Service.
type Option func(*Service)

// WithEventPublisher enables lifecycle events.
func WithEventPublisher(p EventPublisher) Option {
	return func(uc *Service) { uc.events = p }
}

// WithClock replaces the wall clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(uc *Service) { uc.now = now }
}

// New creates a new instance of Service with the provided repository and logger.
func New(r Repository, log *zap.Logger, opts ...Option) *Service {
	uc := &Service{
		repo:     r,
		log:      log,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// formatValidationError converts validator.ValidationErrors into a ValidationError.
func formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return pkgerrors.NewValidationError("", err.Error())
	}

	var messages []string
	for _, e := range validationErrors {
		switch e.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", e.Field()))
		case "max":
			messages = append(messages, fmt.Sprintf("%s must be at most %s characters", e.Field(), e.Param()))
		case "gt":
			messages = append(messages, fmt.Sprintf("%s must be greater than %s", e.Field(), e.Param()))
		default:
			messages = append(messages, fmt.Sprintf("%s is invalid", e.Field()))
		}
	}
	return pkgerrors.NewValidationError("", strings.Join(messages, ", "))
}

func parseStatus(raw string) (domain.ActiveStatus, error) {
	st, err := domain.ParseActiveStatus(raw)
	if err != nil {
		return "", pkgerrors.NewValidationError("active_status", fmt.Sprintf("must be one of %q or %q", domain.StatusActive, domain.StatusInactive))
	}
	return st, nil
}

func invalidID(id int64) error {
	return pkgerrors.NewValidationError("id", fmt.Sprintf("must be a positive integer, got %d", id))
}

// ListUsers returns one page of all users. The limit is capped at domain.MaxPageLimit.
func (uc *Service) ListUsers(ctx context.Context, in ListUsersRequest) (*ListUsersResponse, error) {
	log := logger.WithContext(ctx, uc.log)

	if in.Page < 1 {
		log.Warn("list users validation failed", zap.Int64("page", in.Page))
		return nil, pkgerrors.NewValidationError("page", "must be a positive integer")
	}
	if in.Limit < 1 {
		log.Warn("list users validation failed", zap.Int64("limit", in.Limit))
		return nil, pkgerrors.NewValidationError("limit", "must be a positive integer")
	}
	limit := domain.ClampLimit(in.Limit)

	log.Info("listing users", zap.Int64("page", in.Page), zap.Int64("limit", limit))

	domainUsers, total, err := uc.repo.List(ctx, in.Page, limit)
	if err != nil {
		log.Error("failed to list users", zap.Int64("page", in.Page), zap.Int64("limit", limit), zap.Error(err))
		return nil, err
	}

	users := make([]User, len(domainUsers))
	for i := range domainUsers {
		users[i] = toDTO(&domainUsers[i])
	}

	p := domain.NewPagination(total, in.Page, limit)
	return &ListUsersResponse{
		Users: users,
		Pagination: &Pagination{
			Total:      p.Total,
			Page:       p.Page,
			Limit:      p.Limit,
			TotalPages: p.TotalPages,
		},
	}, nil
}

// GetUser retrieves a user and its settings by ID.
func (uc *Service) GetUser(ctx context.Context, in GetUserRequest) (*User, error) {
	log := logger.WithContext(ctx, uc.log)

	if in.ID <= 0 {
		log.Warn("get user validation failed", zap.Int64("id", in.ID), zap.String("reason", "invalid id"))
		return nil, invalidID(in.ID)
	}

	u, err := uc.repo.GetByID(ctx, in.ID)
	if err != nil {
		log.Warn("failed to get user", zap.Int64("id", in.ID), zap.Error(err))
		return nil, err
	}

	out := toDTO(u)
	return &out, nil
}

// CreateUser validates the request and persists the user together with all
// supplied settings. The returned user carries generated ids and timestamps.
func (uc *Service) CreateUser(ctx context.Context, in CreateUserRequest) (*User, error) {
	log := logger.WithContext(ctx, uc.log)
	log.Info("creating user", zap.String("name", in.Name), zap.String("email", in.Email), zap.Int("settings", len(in.Settings)))

	if err := uc.validate.Struct(in); err != nil {
		log.Warn("validate failed", zap.Error(err))
		return nil, formatValidationError(err)
	}
	status, err := parseStatus(in.ActiveStatus)
	if err != nil {
		log.Warn("validate failed", zap.Error(err))
		return nil, err
	}

	now := uc.now()
	u := &domain.User{
		Name:         in.Name,
		Email:        in.Email,
		ActiveStatus: status,
		CreatedAt:    now,
		UpdatedAt:    now,
		Settings:     make([]domain.Setting, len(in.Settings)),
	}
	for i, s := range in.Settings {
		u.Settings[i] = domain.Setting{Name: s.Name, Value: s.Value}
	}

	if _, err := uc.repo.Create(ctx, u); err != nil {
		log.Error("failed to create user", zap.Error(err))
		return nil, err
	}

	uc.publish(ctx, domain.EventCreated, u.ID)

	out := toDTO(u)
	return &out, nil
}

// UpdateUser overwrites name, email and status of an existing user and
// refreshes UpdatedAt. CreatedAt is left as stored.
func (uc *Service) UpdateUser(ctx context.Context, in UpdateUserRequest) (*User, error) {
	log := logger.WithContext(ctx, uc.log)
	log.Info("updating user", zap.Int64("id", in.ID), zap.String("name", in.Name), zap.String("email", in.Email))

	if err := uc.validate.Struct(in); err != nil {
		log.Warn("validate failed", zap.Error(err))
		return nil, formatValidationError(err)
	}
	status, err := parseStatus(in.ActiveStatus)
	if err != nil {
		log.Warn("validate failed", zap.Error(err))
		return nil, err
	}

	u, err := uc.repo.GetByID(ctx, in.ID)
	if err != nil {
		log.Warn("failed to load user for update", zap.Int64("id", in.ID), zap.Error(err))
		return nil, err
	}

	u.Name = in.Name
	u.Email = in.Email
	u.ActiveStatus = status
	u.Touch(uc.now())

	if _, err := uc.repo.Update(ctx, u); err != nil {
		log.Error("failed to update user", zap.Int64("id", in.ID), zap.Error(err))
		return nil, err
	}

	uc.publish(ctx, domain.EventUpdated, u.ID)

	out := toDTO(u)
	return &out, nil
}

// DeleteUser deletes a user and every setting it owns.
func (uc *Service) DeleteUser(ctx context.Context, in DeleteUserRequest) (*DeleteUserResponse, error) {
	log := logger.WithContext(ctx, uc.log)
	log.Info("deleting user", zap.Int64("id", in.ID))

	if in.ID <= 0 {
		log.Warn("delete user validation failed", zap.Int64("id", in.ID), zap.String("reason", "invalid id"))
		return nil, invalidID(in.ID)
	}

	if _, err := uc.repo.GetByID(ctx, in.ID); err != nil {
		log.Warn("failed to load user for delete", zap.Int64("id", in.ID), zap.Error(err))
		return nil, err
	}

	id, err := uc.repo.Delete(ctx, in.ID)
	if err != nil {
		log.Error("failed to delete user", zap.Int64("id", in.ID), zap.Error(err))
		return nil, err
	}

	uc.publish(ctx, domain.EventDeleted, id)

	return &DeleteUserResponse{ID: id}, nil
}

// publish emits an event without affecting the outcome of the request.
func (uc *Service) publish(ctx context.Context, typ domain.EventType, id int64) {
	if uc.events == nil {
		return
	}
	ev := domain.Event{Type: typ, UserID: id, OccurredAt: uc.now()}
	if err := uc.events.Publish(ctx, ev); err != nil {
		logger.WithContext(ctx, uc.log).Warn("failed to publish user event",
			zap.String("type", string(typ)), zap.Int64("id", id), zap.Error(err))
	}
}

func toDTO(u *domain.User) User {
	settings := make([]Setting, len(u.Settings))
	for i, s := range u.Settings {
		settings[i] = Setting{ID: s.ID, UserID: s.UserID, Name: s.Name, Value: s.Value}
	}
	return User{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		ActiveStatus: string(u.ActiveStatus),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
		Settings:     settings,
	}
}
