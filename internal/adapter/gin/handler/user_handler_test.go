package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	usecase "user-settings-api/internal/usecase/user"
	pkgerrors "user-settings-api/pkg/errors"
)

// MockUserUsecase is a mock implementation of user.Usecase
type MockUserUsecase struct {
	mock.Mock
}

func (m *MockUserUsecase) CreateUser(ctx context.Context, req usecase.CreateUserRequest) (*usecase.User, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.User), args.Error(1)
}

func (m *MockUserUsecase) GetUser(ctx context.Context, req usecase.GetUserRequest) (*usecase.User, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.User), args.Error(1)
}

func (m *MockUserUsecase) UpdateUser(ctx context.Context, req usecase.UpdateUserRequest) (*usecase.User, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.User), args.Error(1)
}

func (m *MockUserUsecase) DeleteUser(ctx context.Context, req usecase.DeleteUserRequest) (*usecase.DeleteUserResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.DeleteUserResponse), args.Error(1)
}

func (m *MockUserUsecase) ListUsers(ctx context.Context, req usecase.ListUsersRequest) (*usecase.ListUsersResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.ListUsersResponse), args.Error(1)
}

func setupTest(t *testing.T) (*gin.Engine, *MockUserUsecase) {
	gin.SetMode(gin.TestMode)
	mockUsecase := new(MockUserUsecase)
	h := NewUserHandler(mockUsecase, zaptest.NewLogger(t))

	r := gin.New()
	r.GET("/users/:limit/:page", h.ListUsers)
	r.GET("/user/:id", h.GetUser)
	r.POST("/user", h.CreateUser)
	r.PUT("/user/:id", h.UpdateUser)
	r.DELETE("/user/:id", h.DeleteUser)
	return r, mockUsecase
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

var ts = time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)

func alice() *usecase.User {
	return &usecase.User{
		ID: 1, Name: "Alice", Email: "a@x.com", ActiveStatus: "active",
		CreatedAt: ts, UpdatedAt: ts,
		Settings: []usecase.Setting{{ID: 1, UserID: 1, Name: "theme", Value: "dark"}},
	}
}

func TestCreateUser(t *testing.T) {
	t.Run("Success With Settings Object", func(t *testing.T) {
		r, mockUsecase := setupTest(t)

		mockUsecase.On("CreateUser", mock.Anything, usecase.CreateUserRequest{
			Name: "Alice", Email: "a@x.com", ActiveStatus: "active",
			Settings: []usecase.SettingInput{{Name: "theme", Value: "dark"}},
		}).Return(alice(), nil)

		w := do(r, http.MethodPost, "/user",
			`{"name":"Alice","email":"a@x.com","active_status":"active","settings":{"name":"theme","value":"dark"}}`)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp UserResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, int64(1), resp.ID)
		assert.Equal(t, "active", resp.ActiveStatus)
		require.Len(t, resp.Settings, 1)
		assert.Equal(t, int64(1), resp.Settings[0].UserID)
		mockUsecase.AssertExpectations(t)
	})

	t.Run("Success With Settings Array", func(t *testing.T) {
		r, mockUsecase := setupTest(t)

		mockUsecase.On("CreateUser", mock.Anything, mock.MatchedBy(func(req usecase.CreateUserRequest) bool {
			return len(req.Settings) == 2 && req.Settings[1].Name == "lang"
		})).Return(alice(), nil)

		w := do(r, http.MethodPost, "/user",
			`{"name":"Alice","email":"a@x.com","active_status":"active","settings":[{"name":"theme","value":"dark"},{"name":"lang","value":"en"}]}`)

		assert.Equal(t, http.StatusOK, w.Code)
		mockUsecase.AssertExpectations(t)
	})

	t.Run("Null Settings", func(t *testing.T) {
		r, mockUsecase := setupTest(t)

		mockUsecase.On("CreateUser", mock.Anything, mock.MatchedBy(func(req usecase.CreateUserRequest) bool {
			return len(req.Settings) == 0
		})).Return(alice(), nil)

		w := do(r, http.MethodPost, "/user", `{"name":"Alice","email":"a@x.com","active_status":"active","settings":null}`)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Invalid Request Body", func(t *testing.T) {
		r, mockUsecase := setupTest(t)

		w := do(r, http.MethodPost, "/user", "invalid json")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "validation_error", decodeError(t, w).Error)
		mockUsecase.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
	})

	t.Run("Missing Required Field", func(t *testing.T) {
		r, mockUsecase := setupTest(t)

		w := do(r, http.MethodPost, "/user", `{"name":"Alice","active_status":"active"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockUsecase.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
	})

	t.Run("Setting Without Name", func(t *testing.T) {
		r, mockUsecase := setupTest(t)

		w := do(r, http.MethodPost, "/user", `{"name":"Alice","email":"a@x.com","active_status":"active","settings":{"value":"dark"}}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockUsecase.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
	})

	t.Run("Usecase Validation Error", func(t *testing.T) {
		r, mockUsecase := setupTest(t)

		mockUsecase.On("CreateUser", mock.Anything, mock.Anything).
			Return(nil, pkgerrors.NewValidationError("active_status", "must be one of \"active\" or \"inactive\""))

		w := do(r, http.MethodPost, "/user", `{"name":"Alice","email":"a@x.com","active_status":"banned"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "validation_error", decodeError(t, w).Error)
	})

	t.Run("Persistence Error Hides Cause", func(t *testing.T) {
		r, mockUsecase := setupTest(t)

		mockUsecase.On("CreateUser", mock.Anything, mock.Anything).
			Return(nil, pkgerrors.NewPersistenceError("failed to create user", errors.New("password=secret")))

		w := do(r, http.MethodPost, "/user", `{"name":"Alice","email":"a@x.com","active_status":"active"}`)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		resp := decodeError(t, w)
		assert.Equal(t, "internal_error", resp.Error)
		assert.NotContains(t, w.Body.String(), "secret")
	})
}

func TestGetUser(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		r, mockUsecase := setupTest(t)

		mockUsecase.On("GetUser", mock.Anything, usecase.GetUserRequest{ID: 1}).Return(alice(), nil)

		w := do(r, http.MethodGet, "/user/1", "")

		assert.Equal(t, http.StatusOK, w.Code)
		var resp UserResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Alice", resp.Name)
		assert.True(t, ts.Equal(resp.CreatedAt))
	})

	t.Run("Not Found", func(t *testing.T) {
		r, mockUsecase := setupTest(t)

		mockUsecase.On("GetUser", mock.Anything, usecase.GetUserRequest{ID: 99}).
			Return(nil, pkgerrors.NewNotFoundError("user", "user not found: id=99"))

		w := do(r, http.MethodGet, "/user/99", "")

		assert.Equal(t, http.StatusNotFound, w.Code)
		resp := decodeError(t, w)
		assert.Equal(t, "not_found", resp.Error)
		assert.Equal(t, "user not found: id=99", resp.Message)
	})

	t.Run("Invalid ID", func(t *testing.T) {
		r, mockUsecase := setupTest(t)

		w := do(r, http.MethodGet, "/user/abc", "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockUsecase.AssertNotCalled(t, "GetUser", mock.Anything, mock.Anything)
	})

	t.Run("Untyped Error", func(t *testing.T) {
		r, mockUsecase := setupTest(t)

		mockUsecase.On("GetUser", mock.Anything, mock.Anything).Return(nil, errors.New("boom"))

		w := do(r, http.MethodGet, "/user/1", "")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestUpdateUser(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		r, mockUsecase := setupTest(t)

		updated := alice()
		updated.Name = "Bob"
		updated.Email = "b@x.com"
		updated.ActiveStatus = "inactive"
		updated.UpdatedAt = ts.Add(time.Minute)

		mockUsecase.On("UpdateUser", mock.Anything, usecase.UpdateUserRequest{
			ID: 1, Name: "Bob", Email: "b@x.com", ActiveStatus: "inactive",
		}).Return(updated, nil)

		w := do(r, http.MethodPut, "/user/1", `{"name":"Bob","email":"b@x.com","active_status":"inactive"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp UserResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Bob", resp.Name)
		assert.True(t, resp.UpdatedAt.After(resp.CreatedAt))
	})

	t.Run("Not Found", func(t *testing.T) {
		r, mockUsecase := setupTest(t)

		mockUsecase.On("UpdateUser", mock.Anything, mock.Anything).
			Return(nil, pkgerrors.NewNotFoundError("user", "user not found: id=5"))

		w := do(r, http.MethodPut, "/user/5", `{"name":"Bob","email":"b@x.com","active_status":"inactive"}`)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Missing Field", func(t *testing.T) {
		r, mockUsecase := setupTest(t)

		w := do(r, http.MethodPut, "/user/1", `{"name":"Bob","email":"b@x.com"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockUsecase.AssertNotCalled(t, "UpdateUser", mock.Anything, mock.Anything)
	})

	t.Run("Invalid ID", func(t *testing.T) {
		r, _ := setupTest(t)

		w := do(r, http.MethodPut, "/user/x", `{"name":"Bob","email":"b@x.com","active_status":"active"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDeleteUser(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		r, mockUsecase := setupTest(t)

		mockUsecase.On("DeleteUser", mock.Anything, usecase.DeleteUserRequest{ID: 1}).
			Return(&usecase.DeleteUserResponse{ID: 1}, nil)

		w := do(r, http.MethodDelete, "/user/1", "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"id":1}`, w.Body.String())
	})

	t.Run("Not Found", func(t *testing.T) {
		r, mockUsecase := setupTest(t)

		mockUsecase.On("DeleteUser", mock.Anything, mock.Anything).
			Return(nil, pkgerrors.NewNotFoundError("user", "user not found: id=2"))

		w := do(r, http.MethodDelete, "/user/2", "")

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "not_found", decodeError(t, w).Error)
	})
}

func TestListUsers(t *testing.T) {
	t.Run("Success With Headers", func(t *testing.T) {
		r, mockUsecase := setupTest(t)

		mockUsecase.On("ListUsers", mock.Anything, usecase.ListUsersRequest{Page: 2, Limit: 10}).
			Return(&usecase.ListUsersResponse{
				Users:      []usecase.User{*alice()},
				Pagination: &usecase.Pagination{Total: 11, Page: 2, Limit: 10, TotalPages: 2},
			}, nil)

		w := do(r, http.MethodGet, "/users/10/2", "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "11", w.Header().Get(HeaderTotalCount))
		assert.Equal(t, "2", w.Header().Get(HeaderPage))
		assert.Equal(t, "10", w.Header().Get(HeaderLimit))
		assert.Equal(t, "2", w.Header().Get(HeaderTotalPages))

		var users []UserResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &users))
		assert.Len(t, users, 1)
	})

	t.Run("Query Page Overrides Path", func(t *testing.T) {
		r, mockUsecase := setupTest(t)

		mockUsecase.On("ListUsers", mock.Anything, usecase.ListUsersRequest{Page: 3, Limit: 10}).
			Return(&usecase.ListUsersResponse{Users: []usecase.User{}}, nil)

		w := do(r, http.MethodGet, "/users/10/1?page=3", "")
		assert.Equal(t, http.StatusOK, w.Code)
		mockUsecase.AssertExpectations(t)
	})

	t.Run("Non Numeric Query Page", func(t *testing.T) {
		r, mockUsecase := setupTest(t)

		w := do(r, http.MethodGet, "/users/10/1?page=abc", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "validation_error", resp.Error)
		assert.Equal(t, "page must be an integer", resp.Message)
		mockUsecase.AssertNotCalled(t, "ListUsers", mock.Anything, mock.Anything)
	})

	t.Run("Empty Page Is Empty Array", func(t *testing.T) {
		r, mockUsecase := setupTest(t)

		mockUsecase.On("ListUsers", mock.Anything, mock.Anything).
			Return(&usecase.ListUsersResponse{Users: nil}, nil)

		w := do(r, http.MethodGet, "/users/10/9", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, w.Body.String())
	})

	t.Run("Invalid Limit", func(t *testing.T) {
		r, mockUsecase := setupTest(t)

		w := do(r, http.MethodGet, "/users/ten/1", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockUsecase.AssertNotCalled(t, "ListUsers", mock.Anything, mock.Anything)
	})
}

func TestSettingList_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  SettingList
	}{
		{"object", `{"name":"theme","value":"dark"}`, SettingList{{Name: "theme", Value: "dark"}}},
		{"array", `[{"name":"a","value":"1"},{"name":"b","value":"2"}]`, SettingList{{Name: "a", Value: "1"}, {Name: "b", Value: "2"}}},
		{"null", `null`, nil},
		{"empty array", `[]`, SettingList{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got SettingList
			require.NoError(t, json.Unmarshal([]byte(tt.input), &got))
			assert.Equal(t, tt.want, got)
		})
	}

	var got SettingList
	assert.Error(t, json.Unmarshal([]byte(`"theme"`), &got))
}
