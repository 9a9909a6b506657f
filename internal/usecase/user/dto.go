package user

import "time"

// SettingInput is a single name/value pair supplied on create.
type SettingInput struct {
	Name  string `validate:"required,max=255"`
	Value string
}

// CreateUserRequest represents the request payload for creating a new user.
// Any number of settings may be supplied; each becomes its own row.
type CreateUserRequest struct {
	Name         string         `validate:"required,max=255"`
	Email        string         `validate:"required,max=255"`
	ActiveStatus string         `validate:"required"`
	Settings     []SettingInput `validate:"dive"`
}

// UpdateUserRequest represents the request payload for updating an existing user.
// All mutable fields are replaced.
type UpdateUserRequest struct {
	ID           int64  `validate:"required,gt=0"`
	Name         string `validate:"required,max=255"`
	Email        string `validate:"required,max=255"`
	ActiveStatus string `validate:"required"`
}

// DeleteUserRequest represents the request payload for deleting a user.
type DeleteUserRequest struct {
	ID int64
}

// DeleteUserResponse represents the response payload after deleting a user.
type DeleteUserResponse struct {
	ID int64
}

// GetUserRequest represents the request payload for retrieving a user.
type GetUserRequest struct {
	ID int64
}

// ListUsersRequest represents the request payload for listing users.
// Limit above the page maximum is clamped rather than rejected.
type ListUsersRequest struct {
	Page  int64
	Limit int64
}

// ListUsersResponse represents the response payload for user listing.
type ListUsersResponse struct {
	Users      []User
	Pagination *Pagination
}

// Pagination represents pagination information for list responses.
type Pagination struct {
	Total      int64
	Page       int64
	Limit      int64
	TotalPages int64
}

// User represents a user DTO (Data Transfer Object) for API responses.
type User struct {
	ID           int64
	Name         string
	Email        string
	ActiveStatus string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Settings     []Setting
}

// Setting represents a persisted user setting.
type Setting struct {
	ID     int64
	UserID int64
	Name   string
	Value  string
}
