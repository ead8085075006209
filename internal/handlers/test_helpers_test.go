package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/BradenHooton/ajali/internal/auth"
	"github.com/BradenHooton/ajali/internal/models"
	"github.com/BradenHooton/ajali/internal/services"
	pkghttp "github.com/BradenHooton/ajali/pkg/http"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext adds access-token claims to the request context
func WithAuthContext(req *http.Request, userID, email string) *http.Request {
	claims := &models.TokenClaims{
		UserID: userID,
		Email:  email,
		Type:   models.TokenTypeAccess,
	}
	return req.WithContext(auth.ContextWithClaims(req.Context(), claims))
}

// WithChiRouteContext adds chi URL parameters to request context for testing
func WithChiRouteContext(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	RegisterFunc                        func(ctx context.Context, input services.RegisterInput) (*services.UserResponse, error)
	LoginFunc                           func(ctx context.Context, email, password string) (*services.AuthResponse, error)
	MeFunc                              func(ctx context.Context, userID string) (*services.UserResponse, error)
	RefreshTokenFunc                    func(ctx context.Context, refreshToken string) (*services.RefreshResponse, error)
	ChangePasswordFunc                  func(ctx context.Context, userID, current, newPassword, confirm string) error
	RequestPasswordResetFunc            func(ctx context.Context, email string)
	ResetPasswordFunc                   func(ctx context.Context, token, newPassword string) error
	SetSecurityQuestionFunc             func(ctx context.Context, userID, question, answer, password string) error
	GetSecurityQuestionFunc             func(ctx context.Context, email string) (string, error)
	IssueResetTokenBySecurityAnswerFunc func(ctx context.Context, email, answer string) (string, error)
	ResetPasswordBySecurityAnswerFunc   func(ctx context.Context, email, answer, newPassword string) error
	ResetPasswordByPhoneFunc            func(ctx context.Context, phone, newPassword string) error
	PromoteUserFunc                     func(ctx context.Context, actorID, targetID, role string) (*services.UserResponse, error)
}

func (m *MockAuthService) Register(ctx context.Context, input services.RegisterInput) (*services.UserResponse, error) {
	if m.RegisterFunc == nil {
		return nil, models.ErrConflict
	}
	return m.RegisterFunc(ctx, input)
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (*services.AuthResponse, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.LoginFunc(ctx, email, password)
}

func (m *MockAuthService) Me(ctx context.Context, userID string) (*services.UserResponse, error) {
	if m.MeFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.MeFunc(ctx, userID)
}

func (m *MockAuthService) RefreshToken(ctx context.Context, refreshToken string) (*services.RefreshResponse, error) {
	if m.RefreshTokenFunc == nil {
		return nil, models.ErrTokenInvalid
	}
	return m.RefreshTokenFunc(ctx, refreshToken)
}

func (m *MockAuthService) ChangePassword(ctx context.Context, userID, current, newPassword, confirm string) error {
	if m.ChangePasswordFunc == nil {
		return nil
	}
	return m.ChangePasswordFunc(ctx, userID, current, newPassword, confirm)
}

func (m *MockAuthService) RequestPasswordReset(ctx context.Context, email string) {
	if m.RequestPasswordResetFunc != nil {
		m.RequestPasswordResetFunc(ctx, email)
	}
}

func (m *MockAuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if m.ResetPasswordFunc == nil {
		return nil
	}
	return m.ResetPasswordFunc(ctx, token, newPassword)
}

func (m *MockAuthService) SetSecurityQuestion(ctx context.Context, userID, question, answer, password string) error {
	if m.SetSecurityQuestionFunc == nil {
		return nil
	}
	return m.SetSecurityQuestionFunc(ctx, userID, question, answer, password)
}

func (m *MockAuthService) GetSecurityQuestion(ctx context.Context, email string) (string, error) {
	if m.GetSecurityQuestionFunc == nil {
		return "", models.ErrNotFound
	}
	return m.GetSecurityQuestionFunc(ctx, email)
}

func (m *MockAuthService) IssueResetTokenBySecurityAnswer(ctx context.Context, email, answer string) (string, error) {
	if m.IssueResetTokenBySecurityAnswerFunc == nil {
		return "", models.ErrUnauthorized
	}
	return m.IssueResetTokenBySecurityAnswerFunc(ctx, email, answer)
}

func (m *MockAuthService) ResetPasswordBySecurityAnswer(ctx context.Context, email, answer, newPassword string) error {
	if m.ResetPasswordBySecurityAnswerFunc == nil {
		return models.ErrUnauthorized
	}
	return m.ResetPasswordBySecurityAnswerFunc(ctx, email, answer, newPassword)
}

func (m *MockAuthService) ResetPasswordByPhone(ctx context.Context, phone, newPassword string) error {
	if m.ResetPasswordByPhoneFunc == nil {
		return models.ErrRecoveryDisabled
	}
	return m.ResetPasswordByPhoneFunc(ctx, phone, newPassword)
}

func (m *MockAuthService) PromoteUser(ctx context.Context, actorID, targetID, role string) (*services.UserResponse, error) {
	if m.PromoteUserFunc == nil {
		return nil, models.ErrForbidden
	}
	return m.PromoteUserFunc(ctx, actorID, targetID, role)
}

// MockUserService implements UserService for testing
type MockUserService struct {
	GetUserFunc      func(ctx context.Context, actorID, id string) (*models.User, error)
	ListUsersFunc    func(ctx context.Context, actorID string, limit, offset int) ([]*models.User, error)
	UpdateUserFunc   func(ctx context.Context, actorID, id string, input services.UpdateUserInput) (*models.User, error)
	DeleteUserFunc   func(ctx context.Context, actorID, id string) error
	SetStatusFunc    func(ctx context.Context, actorID, id, status string) (*models.User, error)
	GetPointsFunc    func(ctx context.Context, userID string) (int, error)
	RedeemPointsFunc func(ctx context.Context, userID string, points int) (*services.Redemption, error)
	LeaderboardFunc  func(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
}

func (m *MockUserService) GetUser(ctx context.Context, actorID, id string) (*models.User, error) {
	if m.GetUserFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetUserFunc(ctx, actorID, id)
}

func (m *MockUserService) ListUsers(ctx context.Context, actorID string, limit, offset int) ([]*models.User, error) {
	if m.ListUsersFunc == nil {
		return []*models.User{}, nil
	}
	return m.ListUsersFunc(ctx, actorID, limit, offset)
}

func (m *MockUserService) UpdateUser(ctx context.Context, actorID, id string, input services.UpdateUserInput) (*models.User, error) {
	if m.UpdateUserFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.UpdateUserFunc(ctx, actorID, id, input)
}

func (m *MockUserService) DeleteUser(ctx context.Context, actorID, id string) error {
	if m.DeleteUserFunc == nil {
		return nil
	}
	return m.DeleteUserFunc(ctx, actorID, id)
}

func (m *MockUserService) SetStatus(ctx context.Context, actorID, id, status string) (*models.User, error) {
	if m.SetStatusFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.SetStatusFunc(ctx, actorID, id, status)
}

func (m *MockUserService) GetPoints(ctx context.Context, userID string) (int, error) {
	if m.GetPointsFunc == nil {
		return 0, nil
	}
	return m.GetPointsFunc(ctx, userID)
}

func (m *MockUserService) RedeemPoints(ctx context.Context, userID string, points int) (*services.Redemption, error) {
	if m.RedeemPointsFunc == nil {
		return nil, models.ErrInsufficientPoints
	}
	return m.RedeemPointsFunc(ctx, userID, points)
}

func (m *MockUserService) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if m.LeaderboardFunc == nil {
		return nil, nil
	}
	return m.LeaderboardFunc(ctx, limit)
}

// MockIncidentService implements IncidentServiceInterface for testing
type MockIncidentService struct {
	ListFunc          func(ctx context.Context, status string, limit, offset int) ([]*models.Incident, error)
	ListMineFunc      func(ctx context.Context, userID string, limit, offset int) ([]*models.Incident, error)
	GetFunc           func(ctx context.Context, id string) (*models.Incident, error)
	CreateFunc        func(ctx context.Context, userID string, input services.IncidentInput) (*models.Incident, error)
	UpdateFunc        func(ctx context.Context, actorID, id string, input services.IncidentInput) (*models.Incident, error)
	UpdateStatusFunc  func(ctx context.Context, actorID, id, status string) (*models.Incident, error)
	DeleteFunc        func(ctx context.Context, actorID, id string) error
	AddCommentFunc    func(ctx context.Context, userID, incidentID, content string) (*models.Comment, error)
	ListCommentsFunc  func(ctx context.Context, incidentID string) ([]*models.Comment, error)
	DeleteCommentFunc func(ctx context.Context, actorID, commentID string) error
}

func (m *MockIncidentService) List(ctx context.Context, status string, limit, offset int) ([]*models.Incident, error) {
	if m.ListFunc == nil {
		return nil, nil
	}
	return m.ListFunc(ctx, status, limit, offset)
}

func (m *MockIncidentService) ListMine(ctx context.Context, userID string, limit, offset int) ([]*models.Incident, error) {
	if m.ListMineFunc == nil {
		return nil, nil
	}
	return m.ListMineFunc(ctx, userID, limit, offset)
}

func (m *MockIncidentService) Get(ctx context.Context, id string) (*models.Incident, error) {
	if m.GetFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetFunc(ctx, id)
}

func (m *MockIncidentService) Create(ctx context.Context, userID string, input services.IncidentInput) (*models.Incident, error) {
	if m.CreateFunc == nil {
		return nil, models.ErrInternalServer
	}
	return m.CreateFunc(ctx, userID, input)
}

func (m *MockIncidentService) Update(ctx context.Context, actorID, id string, input services.IncidentInput) (*models.Incident, error) {
	if m.UpdateFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.UpdateFunc(ctx, actorID, id, input)
}

func (m *MockIncidentService) UpdateStatus(ctx context.Context, actorID, id, status string) (*models.Incident, error) {
	if m.UpdateStatusFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.UpdateStatusFunc(ctx, actorID, id, status)
}

func (m *MockIncidentService) Delete(ctx context.Context, actorID, id string) error {
	if m.DeleteFunc == nil {
		return nil
	}
	return m.DeleteFunc(ctx, actorID, id)
}

func (m *MockIncidentService) AddComment(ctx context.Context, userID, incidentID, content string) (*models.Comment, error) {
	if m.AddCommentFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.AddCommentFunc(ctx, userID, incidentID, content)
}

func (m *MockIncidentService) ListComments(ctx context.Context, incidentID string) ([]*models.Comment, error) {
	if m.ListCommentsFunc == nil {
		return nil, nil
	}
	return m.ListCommentsFunc(ctx, incidentID)
}

func (m *MockIncidentService) DeleteComment(ctx context.Context, actorID, commentID string) error {
	if m.DeleteCommentFunc == nil {
		return nil
	}
	return m.DeleteCommentFunc(ctx, actorID, commentID)
}

// MockMediaService implements MediaServiceInterface for testing
type MockMediaService struct {
	UploadFunc          func(ctx context.Context, actorID, incidentID string, input services.UploadInput) (*models.Media, error)
	ListForIncidentFunc func(ctx context.Context, actorID, incidentID string) ([]*models.Media, error)
	DeleteFunc          func(ctx context.Context, actorID, id string) error
}

func (m *MockMediaService) Upload(ctx context.Context, actorID, incidentID string, input services.UploadInput) (*models.Media, error) {
	if m.UploadFunc == nil {
		return nil, models.ErrInternalServer
	}
	return m.UploadFunc(ctx, actorID, incidentID, input)
}

func (m *MockMediaService) ListForIncident(ctx context.Context, actorID, incidentID string) ([]*models.Media, error) {
	if m.ListForIncidentFunc == nil {
		return nil, nil
	}
	return m.ListForIncidentFunc(ctx, actorID, incidentID)
}

func (m *MockMediaService) Delete(ctx context.Context, actorID, id string) error {
	if m.DeleteFunc == nil {
		return nil
	}
	return m.DeleteFunc(ctx, actorID, id)
}

// MockAdminService implements AdminServiceInterface for testing
type MockAdminService struct {
	GetDashboardStatsFunc func(ctx context.Context, actorID string) (*services.DashboardStatsResponse, error)
}

func (m *MockAdminService) GetDashboardStats(ctx context.Context, actorID string) (*services.DashboardStatsResponse, error) {
	if m.GetDashboardStatsFunc == nil {
		return nil, models.ErrForbidden
	}
	return m.GetDashboardStatsFunc(ctx, actorID)
}
