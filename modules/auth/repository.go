package auth

import (
	"errors"
	"time"

	domain "github.com/wordtrail/wordtrail/domain/user"
	"gorm.io/gorm"
)

var (
	// ErrUserNotFound is returned when a user is not found.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when a user already exists.
	ErrUserExists = errors.New("user with this email already exists")
	// ErrSessionNotFound is returned when no session matches a refresh token.
	ErrSessionNotFound = errors.New("session not found")
)

// UserRepository handles user persistence using GORM.
// GORM's soft-delete scope hides deleted users from every lookup, so a
// soft-deleted account behaves exactly like a missing one.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{
		db: db,
	}
}

// Create creates a new user in the database.
func (r *UserRepository) Create(user *domain.User) error {
	result := r.db.Create(user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return ErrUserExists
		}
		return result.Error
	}
	return nil
}

// FindByID finds a user by ID.
func (r *UserRepository) FindByID(id string) (*domain.User, error) {
	var user domain.User
	result := r.db.First(&user, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, result.Error
	}
	return &user, nil
}

// FindByEmail finds a user by normalized email.
func (r *UserRepository) FindByEmail(email string) (*domain.User, error) {
	var user domain.User
	result := r.db.First(&user, "email = ?", email)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, result.Error
	}
	return &user, nil
}

// Delete soft-deletes a user. The row keeps its email claim (re-registering
// the same address stays blocked) but every lookup stops seeing it.
func (r *UserRepository) Delete(id string) error {
	result := r.db.Delete(&domain.User{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// EmailExists checks if a user with the given email exists.
func (r *UserRepository) EmailExists(email string) (bool, error) {
	var count int64
	result := r.db.Model(&domain.User{}).Where("email = ?", email).Count(&count)
	if result.Error != nil {
		return false, result.Error
	}
	return count > 0, nil
}

// SessionRepository handles refresh-token session persistence using GORM.
type SessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{
		db: db,
	}
}

// Create persists a new session row.
func (r *SessionRepository) Create(session *domain.Session) error {
	return r.db.Create(session).Error
}

// FindByToken finds a session by its refresh-token value.
func (r *SessionRepository) FindByToken(token string) (*domain.Session, error) {
	var session domain.Session
	result := r.db.First(&session, "token = ?", token)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, result.Error
	}
	return &session, nil
}

// DeleteByToken deletes the session holding the given refresh token and
// reports how many rows were removed. Zero rows is a normal outcome: a
// concurrent rotation or an earlier logout may have removed the row first.
func (r *SessionRepository) DeleteByToken(token string) (int64, error) {
	result := r.db.Delete(&domain.Session{}, "token = ?", token)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// DeleteByUser removes every session owned by the given user.
func (r *SessionRepository) DeleteByUser(userID string) (int64, error) {
	result := r.db.Delete(&domain.Session{}, "user_id = ?", userID)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// DeleteExpired reaps sessions whose expiry is before the given time.
// Expiry is checked at lookup time regardless; this only keeps the table
// from growing unbounded.
func (r *SessionRepository) DeleteExpired(before time.Time) (int64, error) {
	result := r.db.Delete(&domain.Session{}, "expires_at < ?", before)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
