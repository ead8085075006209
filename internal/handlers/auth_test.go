package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/ajali/internal/models"
	"github.com/BradenHooton/ajali/internal/services"
	pkghttp "github.com/BradenHooton/ajali/pkg/http"
)

func TestAuthHandler_Register(t *testing.T) {
	tests := []struct {
		name         string
		body         interface{}
		registerFunc func(ctx context.Context, input services.RegisterInput) (*services.UserResponse, error)
		wantStatus   int
		wantError    string
	}{
		{
			name: "created",
			body: RegisterRequest{Name: "Alice", Email: "alice@x.com", Password: "secret1"},
			registerFunc: func(ctx context.Context, input services.RegisterInput) (*services.UserResponse, error) {
				return &services.UserResponse{ID: "user-1", Name: input.Name, Email: input.Email, Role: models.RoleUser}, nil
			},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "missing name",
			body:       RegisterRequest{Email: "alice@x.com", Password: "secret1"},
			wantStatus: http.StatusBadRequest,
			wantError:  "validation_error",
		},
		{
			name:       "bad email",
			body:       RegisterRequest{Name: "Alice", Email: "not-an-email", Password: "secret1"},
			wantStatus: http.StatusBadRequest,
			wantError:  "validation_error",
		},
		{
			name: "short password from service",
			body: RegisterRequest{Name: "Alice", Email: "alice@x.com", Password: "abc"},
			registerFunc: func(ctx context.Context, input services.RegisterInput) (*services.UserResponse, error) {
				return nil, models.NewValidationError("password must be at least 6 characters")
			},
			wantStatus: http.StatusBadRequest,
			wantError:  "validation_error",
		},
		{
			name:       "email longer than the column",
			body:       RegisterRequest{Name: "Alice", Email: strings.Repeat("a", 250) + "@x.com", Password: "secret1"},
			wantStatus: http.StatusBadRequest,
			wantError:  "validation_error",
		},
		{
			name: "duplicate email",
			body: RegisterRequest{Name: "Alice", Email: "alice@x.com", Password: "secret1"},
			registerFunc: func(ctx context.Context, input services.RegisterInput) (*services.UserResponse, error) {
				return nil, models.ErrConflict
			},
			wantStatus: http.StatusConflict,
			wantError:  "conflict",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAuthHandler(&MockAuthService{RegisterFunc: tt.registerFunc})
			w := httptest.NewRecorder()
			h.Register(w, NewTestRequest(t, http.MethodPost, "/api/v1/auth/signup", tt.body))

			if tt.wantError != "" {
				AssertErrorResponse(t, w, tt.wantStatus, tt.wantError)
				return
			}
			var resp services.UserResponse
			AssertJSONResponse(t, w, tt.wantStatus, &resp)
			assert.Equal(t, "user-1", resp.ID)
		})
	}
}

func TestAuthHandler_Register_ConflictMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantMessage string
	}{
		{name: "email taken", err: models.ErrConflict, wantMessage: "Email is already registered"},
		{name: "phone taken", err: models.ErrPhoneTaken, wantMessage: "Phone number is already registered"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAuthHandler(&MockAuthService{
				RegisterFunc: func(ctx context.Context, input services.RegisterInput) (*services.UserResponse, error) {
					return nil, tt.err
				},
			})
			w := httptest.NewRecorder()
			h.Register(w, NewTestRequest(t, http.MethodPost, "/api/v1/auth/signup",
				RegisterRequest{Name: "Alice", Email: "alice@x.com", Phone: "0712345678", Password: "secret1"}))

			var resp pkghttp.ErrorResponse
			AssertJSONResponse(t, w, http.StatusConflict, &resp)
			assert.Equal(t, "conflict", resp.Error)
			assert.Equal(t, tt.wantMessage, resp.Message)
		})
	}
}

func TestAuthHandler_Register_MalformedBody(t *testing.T) {
	h := NewAuthHandler(&MockAuthService{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", strings.NewReader("{not json"))
	w := httptest.NewRecorder()

	h.Register(w, req)

	AssertErrorResponse(t, w, http.StatusBadRequest, "validation_error")
}

func TestAuthHandler_Login(t *testing.T) {
	tests := []struct {
		name       string
		loginErr   error
		wantStatus int
		wantError  string
	}{
		{name: "success", wantStatus: http.StatusOK},
		{name: "wrong password", loginErr: models.ErrUnauthorized, wantStatus: http.StatusUnauthorized, wantError: "unauthorized"},
		{name: "suspended", loginErr: models.ErrAccountSuspended, wantStatus: http.StatusForbidden, wantError: "account_suspended"},
		{name: "store failure", loginErr: models.ErrInternalServer, wantStatus: http.StatusInternalServerError, wantError: "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotEmail string
			h := NewAuthHandler(&MockAuthService{
				LoginFunc: func(ctx context.Context, email, password string) (*services.AuthResponse, error) {
					gotEmail = email
					if tt.loginErr != nil {
						return nil, tt.loginErr
					}
					return &services.AuthResponse{AccessToken: "a", RefreshToken: "r", User: &services.UserResponse{ID: "user-1"}}, nil
				},
			})

			w := httptest.NewRecorder()
			h.Login(w, NewTestRequest(t, http.MethodPost, "/api/v1/auth/login", LoginRequest{Email: "alice@x.com", Password: "secret1"}))

			assert.Equal(t, "alice@x.com", gotEmail)
			if tt.wantError != "" {
				AssertErrorResponse(t, w, tt.wantStatus, tt.wantError)
				return
			}
			var resp services.AuthResponse
			AssertJSONResponse(t, w, tt.wantStatus, &resp)
			assert.Equal(t, "a", resp.AccessToken)
			assert.Equal(t, "r", resp.RefreshToken)
		})
	}
}

func TestAuthHandler_Me(t *testing.T) {
	h := NewAuthHandler(&MockAuthService{
		MeFunc: func(ctx context.Context, userID string) (*services.UserResponse, error) {
			return &services.UserResponse{ID: userID}, nil
		},
	})

	t.Run("authenticated", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Me(w, WithAuthContext(NewTestRequest(t, http.MethodGet, "/api/v1/auth/me", nil), "user-1", "alice@x.com"))

		var resp services.UserResponse
		AssertJSONResponse(t, w, http.StatusOK, &resp)
		assert.Equal(t, "user-1", resp.ID)
	})

	t.Run("anonymous", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Me(w, NewTestRequest(t, http.MethodGet, "/api/v1/auth/me", nil))
		AssertErrorResponse(t, w, http.StatusUnauthorized, "unauthorized")
	})
}

func TestAuthHandler_RefreshToken(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		body       interface{}
		serviceErr error
		wantToken  string
		wantStatus int
		wantError  string
	}{
		{name: "bearer header", header: "Bearer refresh-1", wantToken: "refresh-1", wantStatus: http.StatusOK},
		{name: "json body", body: RefreshTokenRequest{RefreshToken: "refresh-2"}, wantToken: "refresh-2", wantStatus: http.StatusOK},
		{name: "header wins over body", header: "Bearer refresh-1", body: RefreshTokenRequest{RefreshToken: "refresh-2"}, wantToken: "refresh-1", wantStatus: http.StatusOK},
		{name: "expired", header: "Bearer old", wantToken: "old", serviceErr: models.ErrTokenExpired, wantStatus: http.StatusUnauthorized, wantError: "token_expired"},
		{name: "access token presented", header: "Bearer access", wantToken: "access", serviceErr: models.ErrTokenInvalid, wantStatus: http.StatusUnauthorized, wantError: "unauthorized"},
		{name: "no token", wantToken: "", serviceErr: models.ErrUnauthorized, wantStatus: http.StatusUnauthorized, wantError: "unauthorized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := NewAuthHandler(&MockAuthService{
				RefreshTokenFunc: func(ctx context.Context, refreshToken string) (*services.RefreshResponse, error) {
					got = refreshToken
					if tt.serviceErr != nil {
						return nil, tt.serviceErr
					}
					return &services.RefreshResponse{AccessToken: "new-access"}, nil
				},
			})

			req := NewTestRequest(t, http.MethodPost, "/api/v1/auth/refresh", tt.body)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.RefreshToken(w, req)

			assert.Equal(t, tt.wantToken, got)
			if tt.wantError != "" {
				AssertErrorResponse(t, w, tt.wantStatus, tt.wantError)
				return
			}
			var resp services.RefreshResponse
			AssertJSONResponse(t, w, tt.wantStatus, &resp)
			assert.Equal(t, "new-access", resp.AccessToken)
		})
	}
}

func TestAuthHandler_ForgotPassword_AlwaysGeneric(t *testing.T) {
	var requested []string
	h := NewAuthHandler(&MockAuthService{
		RequestPasswordResetFunc: func(ctx context.Context, email string) {
			requested = append(requested, email)
		},
	})

	var bodies []string
	for _, email := range []string{"alice@x.com", "nobody@x.com"} {
		w := httptest.NewRecorder()
		h.ForgotPassword(w, NewTestRequest(t, http.MethodPost, "/api/v1/auth/forgot-password", ForgotPasswordRequest{Email: email}))

		var resp pkghttp.MessageResponse
		AssertJSONResponse(t, w, http.StatusOK, &resp)
		bodies = append(bodies, resp.Message)
	}

	assert.Equal(t, []string{"alice@x.com", "nobody@x.com"}, requested)
	assert.Equal(t, bodies[0], bodies[1])
	assert.Equal(t, resetRequestedMessage, bodies[0])
}

func TestAuthHandler_ResetPassword(t *testing.T) {
	tests := []struct {
		name       string
		pathToken  string
		body       ResetPasswordRequest
		serviceErr error
		wantToken  string
		wantPass   string
		wantStatus int
		wantError  string
	}{
		{name: "token in path", pathToken: "tok", body: ResetPasswordRequest{NewPassword: "newpass1"}, wantToken: "tok", wantPass: "newpass1", wantStatus: http.StatusOK},
		{name: "token in body, password alias", body: ResetPasswordRequest{Token: "tok2", Password: "newpass1"}, wantToken: "tok2", wantPass: "newpass1", wantStatus: http.StatusOK},
		{name: "missing token", body: ResetPasswordRequest{NewPassword: "newpass1"}, wantStatus: http.StatusBadRequest, wantError: "invalid_token"},
		{name: "expired", pathToken: "tok", body: ResetPasswordRequest{NewPassword: "newpass1"}, serviceErr: models.ErrTokenExpired, wantToken: "tok", wantPass: "newpass1", wantStatus: http.StatusBadRequest, wantError: "token_expired"},
		{name: "replayed", pathToken: "tok", body: ResetPasswordRequest{NewPassword: "newpass1"}, serviceErr: models.ErrTokenInvalid, wantToken: "tok", wantPass: "newpass1", wantStatus: http.StatusBadRequest, wantError: "invalid_token"},
		{name: "short password", pathToken: "tok", body: ResetPasswordRequest{NewPassword: "abc"}, serviceErr: models.NewValidationError("password must be at least 6 characters"), wantToken: "tok", wantPass: "abc", wantStatus: http.StatusBadRequest, wantError: "validation_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotToken, gotPass string
			h := NewAuthHandler(&MockAuthService{
				ResetPasswordFunc: func(ctx context.Context, token, newPassword string) error {
					gotToken, gotPass = token, newPassword
					return tt.serviceErr
				},
			})

			req := NewTestRequest(t, http.MethodPost, "/api/v1/auth/reset-password/"+tt.pathToken, tt.body)
			if tt.pathToken != "" {
				req = WithChiRouteContext(req, map[string]string{"token": tt.pathToken})
			}
			w := httptest.NewRecorder()
			h.ResetPassword(w, req)

			assert.Equal(t, tt.wantToken, gotToken)
			assert.Equal(t, tt.wantPass, gotPass)
			if tt.wantError != "" {
				AssertErrorResponse(t, w, tt.wantStatus, tt.wantError)
				return
			}
			AssertJSONResponse(t, w, tt.wantStatus, nil)
		})
	}
}

func TestAuthHandler_ChangePassword(t *testing.T) {
	body := ChangePasswordRequest{CurrentPassword: "secret1", NewPassword: "secret2", ConfirmNewPassword: "secret2"}

	t.Run("success", func(t *testing.T) {
		var gotUser string
		h := NewAuthHandler(&MockAuthService{
			ChangePasswordFunc: func(ctx context.Context, userID, current, newPassword, confirm string) error {
				gotUser = userID
				return nil
			},
		})
		w := httptest.NewRecorder()
		h.ChangePassword(w, WithAuthContext(NewTestRequest(t, http.MethodPut, "/api/v1/auth/change-password", body), "user-1", "alice@x.com"))

		AssertJSONResponse(t, w, http.StatusOK, nil)
		assert.Equal(t, "user-1", gotUser)
	})

	t.Run("wrong current password", func(t *testing.T) {
		h := NewAuthHandler(&MockAuthService{
			ChangePasswordFunc: func(ctx context.Context, userID, current, newPassword, confirm string) error {
				return models.ErrUnauthorized
			},
		})
		w := httptest.NewRecorder()
		h.ChangePassword(w, WithAuthContext(NewTestRequest(t, http.MethodPut, "/api/v1/auth/change-password", body), "user-1", "alice@x.com"))

		AssertErrorResponse(t, w, http.StatusUnauthorized, "unauthorized")
	})

	t.Run("anonymous", func(t *testing.T) {
		h := NewAuthHandler(&MockAuthService{})
		w := httptest.NewRecorder()
		h.ChangePassword(w, NewTestRequest(t, http.MethodPut, "/api/v1/auth/change-password", body))

		AssertErrorResponse(t, w, http.StatusUnauthorized, "unauthorized")
	})
}

func TestAuthHandler_SecurityQuestion(t *testing.T) {
	t.Run("set requires current password field", func(t *testing.T) {
		h := NewAuthHandler(&MockAuthService{})
		w := httptest.NewRecorder()
		req := NewTestRequest(t, http.MethodPut, "/api/v1/auth/security-question", map[string]string{
			"security_question": "First pet?",
			"security_answer":   "Rex",
		})
		h.SetSecurityQuestion(w, WithAuthContext(req, "user-1", "alice@x.com"))

		AssertErrorResponse(t, w, http.StatusBadRequest, "validation_error")
	})

	t.Run("set", func(t *testing.T) {
		var got [4]string
		h := NewAuthHandler(&MockAuthService{
			SetSecurityQuestionFunc: func(ctx context.Context, userID, question, answer, password string) error {
				got = [4]string{userID, question, answer, password}
				return nil
			},
		})
		w := httptest.NewRecorder()
		req := NewTestRequest(t, http.MethodPut, "/api/v1/auth/security-question", SetSecurityQuestionRequest{
			SecurityQuestion: "First pet?",
			SecurityAnswer:   "Rex",
			CurrentPassword:  "secret1",
		})
		h.SetSecurityQuestion(w, WithAuthContext(req, "user-1", "alice@x.com"))

		AssertJSONResponse(t, w, http.StatusOK, nil)
		assert.Equal(t, [4]string{"user-1", "First pet?", "Rex", "secret1"}, got)
	})

	t.Run("lookup", func(t *testing.T) {
		h := NewAuthHandler(&MockAuthService{
			GetSecurityQuestionFunc: func(ctx context.Context, email string) (string, error) {
				if email == "alice@x.com" {
					return "First pet?", nil
				}
				return "", models.ErrNotFound
			},
		})

		w := httptest.NewRecorder()
		h.GetSecurityQuestion(w, NewTestRequest(t, http.MethodPost, "/api/v1/auth/security-question", SecurityQuestionLookupRequest{Email: "alice@x.com"}))
		var resp SecurityQuestionResponse
		AssertJSONResponse(t, w, http.StatusOK, &resp)
		assert.Equal(t, "First pet?", resp.Question)

		w = httptest.NewRecorder()
		h.GetSecurityQuestion(w, NewTestRequest(t, http.MethodPost, "/api/v1/auth/security-question", SecurityQuestionLookupRequest{Email: "nobody@x.com"}))
		AssertErrorResponse(t, w, http.StatusNotFound, "not_found")
	})

	t.Run("verify issues reset token", func(t *testing.T) {
		h := NewAuthHandler(&MockAuthService{
			IssueResetTokenBySecurityAnswerFunc: func(ctx context.Context, email, answer string) (string, error) {
				if answer == "rex" {
					return "reset-tok", nil
				}
				return "", models.ErrUnauthorized
			},
		})

		w := httptest.NewRecorder()
		h.VerifySecurityAnswer(w, NewTestRequest(t, http.MethodPost, "/api/v1/auth/security-question/verify", SecurityAnswerRequest{Email: "alice@x.com", SecurityAnswer: "rex"}))
		var resp ResetTokenResponse
		AssertJSONResponse(t, w, http.StatusOK, &resp)
		assert.Equal(t, "reset-tok", resp.ResetToken)

		w = httptest.NewRecorder()
		h.VerifySecurityAnswer(w, NewTestRequest(t, http.MethodPost, "/api/v1/auth/security-question/verify", SecurityAnswerRequest{Email: "alice@x.com", SecurityAnswer: "cat"}))
		AssertErrorResponse(t, w, http.StatusUnauthorized, "unauthorized")
	})

	t.Run("one-step reset hides unknown accounts", func(t *testing.T) {
		h := NewAuthHandler(&MockAuthService{
			ResetPasswordBySecurityAnswerFunc: func(ctx context.Context, email, answer, newPassword string) error {
				return models.ErrNotFound
			},
		})
		w := httptest.NewRecorder()
		h.ResetPasswordBySecurityAnswer(w, NewTestRequest(t, http.MethodPost, "/api/v1/auth/reset-password-security", SecurityResetRequest{
			Email: "nobody@x.com", SecurityAnswer: "rex", NewPassword: "newpass1",
		}))

		AssertErrorResponse(t, w, http.StatusUnauthorized, "unauthorized")
	})
}

func TestAuthHandler_ResetPasswordByPhone(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		h := NewAuthHandler(&MockAuthService{})
		w := httptest.NewRecorder()
		h.ResetPasswordByPhone(w, NewTestRequest(t, http.MethodPost, "/api/v1/auth/reset-password-phone", PhoneResetRequest{Phone: "+254712345678", NewPassword: "newpass1"}))

		AssertErrorResponse(t, w, http.StatusForbidden, "recovery_disabled")
	})

	t.Run("enabled", func(t *testing.T) {
		var gotPhone string
		h := NewAuthHandler(&MockAuthService{
			ResetPasswordByPhoneFunc: func(ctx context.Context, phone, newPassword string) error {
				gotPhone = phone
				return nil
			},
		})
		w := httptest.NewRecorder()
		h.ResetPasswordByPhone(w, NewTestRequest(t, http.MethodPost, "/api/v1/auth/reset-password-phone", PhoneResetRequest{Phone: "0712345678", NewPassword: "newpass1"}))

		AssertJSONResponse(t, w, http.StatusOK, nil)
		assert.Equal(t, "0712345678", gotPhone)
	})
}

func TestAuthHandler_PromoteUser(t *testing.T) {
	tests := []struct {
		name       string
		body       interface{}
		serviceErr error
		wantRole   string
		wantStatus int
		wantError  string
	}{
		{name: "empty body defaults in service", wantRole: "", wantStatus: http.StatusOK},
		{name: "explicit role", body: PromoteRequest{Role: models.RoleModerator}, wantRole: models.RoleModerator, wantStatus: http.StatusOK},
		{name: "unknown role", body: PromoteRequest{Role: "owner"}, wantStatus: http.StatusBadRequest, wantError: "validation_error"},
		{name: "not admin", serviceErr: models.ErrForbidden, wantStatus: http.StatusForbidden, wantError: "forbidden"},
		{name: "missing target", serviceErr: models.ErrNotFound, wantStatus: http.StatusNotFound, wantError: "not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotActor, gotTarget, gotRole string
			h := NewAuthHandler(&MockAuthService{
				PromoteUserFunc: func(ctx context.Context, actorID, targetID, role string) (*services.UserResponse, error) {
					gotActor, gotTarget, gotRole = actorID, targetID, role
					if tt.serviceErr != nil {
						return nil, tt.serviceErr
					}
					return &services.UserResponse{ID: targetID, Role: models.RoleAdmin}, nil
				},
			})

			req := NewTestRequest(t, http.MethodPut, "/api/v1/auth/users/user-2/promote", tt.body)
			req = WithChiRouteContext(WithAuthContext(req, "admin-1", "admin@x.com"), map[string]string{"id": "user-2"})
			w := httptest.NewRecorder()
			h.PromoteUser(w, req)

			if tt.wantError != "" {
				AssertErrorResponse(t, w, tt.wantStatus, tt.wantError)
				return
			}
			var resp services.UserResponse
			AssertJSONResponse(t, w, tt.wantStatus, &resp)
			require.Equal(t, "user-2", resp.ID)
			assert.Equal(t, "admin-1", gotActor)
			assert.Equal(t, "user-2", gotTarget)
			assert.Equal(t, tt.wantRole, gotRole)
		})
	}
}
