package services

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/BradenHooton/ajali/internal/models"
	pkgauth "github.com/BradenHooton/ajali/pkg/auth"
)

func init() {
	pkgauth.BcryptCost = bcrypt.MinCost
}

// MockUserRepository implements UserRepository for testing. Set a Func field
// to override one method; everything else runs against an in-memory store
// with the same semantics as the Postgres repository.
type MockUserRepository struct {
	GetByIDFunc        func(ctx context.Context, id string) (*models.User, error)
	GetByEmailFunc     func(ctx context.Context, email string) (*models.User, error)
	CreateFunc         func(ctx context.Context, user *models.User) (*models.User, error)
	UpdatePasswordFunc func(ctx context.Context, id, passwordHash string) error
	ListFunc           func(ctx context.Context, limit, offset int) ([]*models.User, error)
	LeaderboardFunc    func(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
	StatsFunc          func(ctx context.Context) (*models.UserStats, error)

	mu    sync.Mutex
	users map[string]*models.User
	seq   int
}

// NewMockUserRepository seeds the store with users
func NewMockUserRepository(users ...*models.User) *MockUserRepository {
	m := &MockUserRepository{users: make(map[string]*models.User)}
	for _, u := range users {
		m.put(u)
	}
	return m
}

func (m *MockUserRepository) put(u *models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.users == nil {
		m.users = make(map[string]*models.User)
	}
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	if u.Status == "" {
		u.Status = models.StatusActive
	}
	cp := *u
	m.users[u.ID] = &cp
}

func (m *MockUserRepository) find(pred func(*models.User) bool) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if pred(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) mutate(id string, fn func(*models.User) error) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if err := fn(u); err != nil {
		return nil, err
	}
	u.UpdatedAt = time.Now()
	cp := *u
	return &cp, nil
}

// Snapshot returns the stored user, or nil
func (m *MockUserRepository) Snapshot(id string) *models.User {
	u, err := m.find(func(u *models.User) bool { return u.ID == id })
	if err != nil {
		return nil
	}
	return u
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return m.find(func(u *models.User) bool { return u.ID == id })
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return m.find(func(u *models.User) bool { return strings.EqualFold(u.Email, email) })
}

func (m *MockUserRepository) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.Phone != nil && *u.Phone == phone })
}

func (m *MockUserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.User, 0, len(m.users))
	for _, u := range m.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset >= len(out) {
		return []*models.User{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	if _, err := m.GetByEmail(ctx, user.Email); err == nil {
		return nil, models.ErrConflict
	}
	if user.Phone != nil {
		if _, err := m.GetByPhone(ctx, *user.Phone); err == nil {
			return nil, models.ErrPhoneTaken
		}
	}
	m.mu.Lock()
	m.seq++
	user.ID = fmt.Sprintf("user-%d", m.seq)
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	m.mu.Unlock()
	m.put(user)
	return m.Snapshot(user.ID), nil
}

func (m *MockUserRepository) Update(ctx context.Context, id string, user *models.User) (*models.User, error) {
	return m.mutate(id, func(u *models.User) error {
		u.Name, u.Email, u.Phone = user.Name, user.Email, user.Phone
		return nil
	})
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if m.UpdatePasswordFunc != nil {
		return m.UpdatePasswordFunc(ctx, id, passwordHash)
	}
	_, err := m.mutate(id, func(u *models.User) error {
		now := time.Now()
		u.PasswordHash = passwordHash
		u.PasswordChangedAt = &now
		return nil
	})
	return err
}

func (m *MockUserRepository) UpdateSecurityQuestion(ctx context.Context, id, question, answerHash string) error {
	_, err := m.mutate(id, func(u *models.User) error {
		u.SecurityQuestion = &question
		u.SecurityAnswerHash = &answerHash
		return nil
	})
	return err
}

func (m *MockUserRepository) UpdateRole(ctx context.Context, id, role string) (*models.User, error) {
	return m.mutate(id, func(u *models.User) error {
		u.Role = role
		return nil
	})
}

func (m *MockUserRepository) UpdateStatus(ctx context.Context, id, status string) (*models.User, error) {
	return m.mutate(id, func(u *models.User) error {
		u.Status = status
		return nil
	})
}

func (m *MockUserRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return models.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

// DebitPoints is a compare-and-set under the store lock, like the conditional UPDATE
func (m *MockUserRepository) DebitPoints(ctx context.Context, id string, amount int) (int, error) {
	u, err := m.mutate(id, func(u *models.User) error {
		if u.Points < amount {
			return models.ErrInsufficientPoints
		}
		u.Points -= amount
		return nil
	})
	if err != nil {
		return 0, err
	}
	return u.Points, nil
}

func (m *MockUserRepository) CreditPoints(ctx context.Context, id string, amount int) (int, error) {
	u, err := m.mutate(id, func(u *models.User) error {
		u.Points += amount
		return nil
	})
	if err != nil {
		return 0, err
	}
	return u.Points, nil
}

func (m *MockUserRepository) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if m.LeaderboardFunc != nil {
		return m.LeaderboardFunc(ctx, limit)
	}
	users, _ := m.List(ctx, 0, 0)
	sort.SliceStable(users, func(i, j int) bool { return users[i].Points > users[j].Points })
	if limit < len(users) {
		users = users[:limit]
	}
	entries := make([]models.LeaderboardEntry, 0, len(users))
	for _, u := range users {
		entries = append(entries, models.LeaderboardEntry{ID: u.ID, Name: u.Name, Points: u.Points})
	}
	return entries, nil
}

func (m *MockUserRepository) Stats(ctx context.Context) (*models.UserStats, error) {
	if m.StatsFunc != nil {
		return m.StatsFunc(ctx)
	}
	users, _ := m.List(ctx, 0, 0)
	stats := &models.UserStats{ByRole: map[string]int{}, ByStatus: map[string]int{}}
	for _, u := range users {
		stats.Total++
		stats.ByRole[u.Role]++
		stats.ByStatus[u.Status]++
		stats.TotalPoints += int64(u.Points)
	}
	return stats, nil
}

// MockResetTokenStore records consumed token IDs in memory
type MockResetTokenStore struct {
	MarkConsumedFunc func(ctx context.Context, jti, email string, expiresAt time.Time) error

	mu       sync.Mutex
	consumed map[string]time.Time
}

func (m *MockResetTokenStore) MarkConsumed(ctx context.Context, jti, email string, expiresAt time.Time) error {
	if m.MarkConsumedFunc != nil {
		return m.MarkConsumedFunc(ctx, jti, email, expiresAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.consumed == nil {
		m.consumed = make(map[string]time.Time)
	}
	if _, ok := m.consumed[jti]; ok {
		return models.ErrConflict
	}
	m.consumed[jti] = expiresAt
	return nil
}

// Snapshot lists the consumed token IDs
func (m *MockResetTokenStore) Snapshot() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.consumed))
	for id := range m.consumed {
		ids = append(ids, id)
	}
	return ids
}

// SentEmail is one captured reset email
type SentEmail struct {
	To    string
	Name  string
	Token string
}

// MockEmailService captures reset emails
type MockEmailService struct {
	SendFunc func(ctx context.Context, email, name, token string, expiresIn time.Duration) error

	mu   sync.Mutex
	Sent []SentEmail
}

func (m *MockEmailService) SendPasswordResetEmail(ctx context.Context, email, name, token string, expiresIn time.Duration) error {
	m.mu.Lock()
	m.Sent = append(m.Sent, SentEmail{To: email, Name: name, Token: token})
	m.mu.Unlock()
	if m.SendFunc != nil {
		return m.SendFunc(ctx, email, name, token, expiresIn)
	}
	return nil
}

// MockIncidentRepository implements IncidentRepository in memory
type MockIncidentRepository struct {
	ListFunc func(ctx context.Context, filter models.IncidentFilter) ([]*models.Incident, error)

	// Users receives reporter rewards when set
	Users *MockUserRepository

	mu        sync.Mutex
	incidents map[string]*models.Incident
	seq       int
}

func NewMockIncidentRepository(users *MockUserRepository, incidents ...*models.Incident) *MockIncidentRepository {
	m := &MockIncidentRepository{Users: users, incidents: make(map[string]*models.Incident)}
	for _, inc := range incidents {
		cp := *inc
		m.incidents[inc.ID] = &cp
	}
	return m
}

func (m *MockIncidentRepository) GetByID(ctx context.Context, id string) (*models.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inc, ok := m.incidents[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *inc
	return &cp, nil
}

func (m *MockIncidentRepository) List(ctx context.Context, filter models.IncidentFilter) ([]*models.Incident, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Incident, 0)
	for _, inc := range m.incidents {
		if filter.Status != "" && inc.Status != filter.Status {
			continue
		}
		if filter.CreatedBy != "" && inc.CreatedBy != filter.CreatedBy {
			continue
		}
		cp := *inc
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *MockIncidentRepository) Create(ctx context.Context, inc *models.Incident) (*models.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	inc.ID = fmt.Sprintf("incident-%d", m.seq)
	inc.CreatedAt = time.Now()
	inc.UpdatedAt = inc.CreatedAt
	cp := *inc
	m.incidents[inc.ID] = &cp
	return inc, nil
}

func (m *MockIncidentRepository) Update(ctx context.Context, id string, inc *models.Incident) (*models.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.incidents[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	existing.Title, existing.Description = inc.Title, inc.Description
	existing.Latitude, existing.Longitude = inc.Latitude, inc.Longitude
	cp := *existing
	return &cp, nil
}

func (m *MockIncidentRepository) UpdateStatus(ctx context.Context, id, status string, reward int) (*models.Incident, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inc, ok := m.incidents[id]
	if !ok {
		return nil, 0, models.ErrNotFound
	}
	pay := status == models.IncidentStatusResolved && !inc.RewardPaid && reward > 0
	inc.Status = status
	credited := 0
	if pay {
		inc.RewardPaid = true
		credited = reward
		if m.Users != nil {
			if _, err := m.Users.CreditPoints(ctx, inc.CreatedBy, reward); err != nil {
				return nil, 0, err
			}
		}
	}
	cp := *inc
	return &cp, credited, nil
}

func (m *MockIncidentRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.incidents[id]; !ok {
		return models.ErrNotFound
	}
	delete(m.incidents, id)
	return nil
}

func (m *MockIncidentRepository) Stats(ctx context.Context) (*models.IncidentStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &models.IncidentStats{ByStatus: map[string]int{}}
	for _, inc := range m.incidents {
		stats.Total++
		stats.ByStatus[inc.Status]++
	}
	return stats, nil
}

// MockCommentRepository implements CommentRepository in memory
type MockCommentRepository struct {
	mu       sync.Mutex
	comments []*models.Comment
	seq      int
}

func (m *MockCommentRepository) Create(ctx context.Context, c *models.Comment) (*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	c.ID = fmt.Sprintf("comment-%d", m.seq)
	c.CreatedAt = time.Now()
	cp := *c
	m.comments = append(m.comments, &cp)
	return c, nil
}

func (m *MockCommentRepository) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.comments {
		if c.ID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *MockCommentRepository) ListByIncident(ctx context.Context, incidentID string) ([]*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Comment, 0)
	for _, c := range m.comments {
		if c.IncidentID == incidentID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockCommentRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.comments {
		if c.ID == id {
			m.comments = append(m.comments[:i], m.comments[i+1:]...)
			return nil
		}
	}
	return models.ErrNotFound
}

// MockMediaRepository implements MediaRepository in memory
type MockMediaRepository struct {
	// Incidents resolves incident reporters for ListByUser when set
	Incidents *MockIncidentRepository

	mu    sync.Mutex
	items []*models.Media
}

func (m *MockMediaRepository) Create(ctx context.Context, media *models.Media) (*models.Media, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	media.CreatedAt = time.Now()
	cp := *media
	m.items = append(m.items, &cp)
	return media, nil
}

func (m *MockMediaRepository) GetByID(ctx context.Context, id string) (*models.Media, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range m.items {
		if item.ID == id {
			cp := *item
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *MockMediaRepository) ListByIncident(ctx context.Context, incidentID string) ([]*models.Media, error) {
	byIncident, err := m.ListByIncidents(ctx, []string{incidentID})
	if err != nil {
		return nil, err
	}
	if items := byIncident[incidentID]; items != nil {
		return items, nil
	}
	return []*models.Media{}, nil
}

func (m *MockMediaRepository) ListByIncidents(ctx context.Context, incidentIDs []string) (map[string][]*models.Media, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wanted := make(map[string]bool, len(incidentIDs))
	for _, id := range incidentIDs {
		wanted[id] = true
	}
	out := make(map[string][]*models.Media)
	for _, item := range m.items {
		if wanted[item.IncidentID] {
			cp := *item
			out[item.IncidentID] = append(out[item.IncidentID], &cp)
		}
	}
	return out, nil
}

func (m *MockMediaRepository) ListByUser(ctx context.Context, userID string) ([]*models.Media, error) {
	m.mu.Lock()
	items := make([]*models.Media, len(m.items))
	copy(items, m.items)
	m.mu.Unlock()

	out := make([]*models.Media, 0)
	for _, item := range items {
		owned := item.UploadedBy == userID
		if !owned && m.Incidents != nil {
			if inc, err := m.Incidents.GetByID(ctx, item.IncidentID); err == nil {
				owned = inc.CreatedBy == userID
			}
		}
		if owned {
			cp := *item
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockMediaRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, item := range m.items {
		if item.ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return models.ErrNotFound
}

// MockObjectStorage keeps object bodies in memory
type MockObjectStorage struct {
	PutFunc func(ctx context.Context, key, contentType string, body io.Reader, size int64) error

	mu      sync.Mutex
	Objects map[string][]byte
}

func (m *MockObjectStorage) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	if m.PutFunc != nil {
		return m.PutFunc(ctx, key, contentType, body, size)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Objects == nil {
		m.Objects = make(map[string][]byte)
	}
	m.Objects[key] = data
	return nil
}

func (m *MockObjectStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Objects, key)
	return nil
}

func (m *MockObjectStorage) PresignGet(ctx context.Context, key string) (string, error) {
	return "https://storage.test/" + key + "?sig=1", nil
}

// Has reports whether an object is stored under key
func (m *MockObjectStorage) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.Objects[key]
	return ok
}
