package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"tracesim/pkg/faults"
	"tracesim/pkg/model"
)

// Directory verifies credentials.
type Directory interface {
	Verify(ctx context.Context, username, password string) (model.User, error)
}

// MemoryDirectory is a fixed set of users held in memory.
type MemoryDirectory struct {
	mu    sync.RWMutex
	users map[string]model.User
	next  uint
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{users: map[string]model.User{}}
}

// Add registers a user with a bcrypt hash of password.
func (d *MemoryDirectory) Add(username, password string, admin bool) (model.User, error) {
	if username == "" || password == "" {
		return model.User{}, faults.InvalidRequest("username", "username and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return model.User{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.next++
	u := model.User{ID: d.next, Username: username, PasswordHash: string(hash), IsAdmin: admin, CreatedAt: time.Now()}
	d.users[strings.ToLower(username)] = u
	return u, nil
}

func (d *MemoryDirectory) Verify(_ context.Context, username, password string) (model.User, error) {
	d.mu.RLock()
	u, ok := d.users[strings.ToLower(username)]
	d.mu.RUnlock()
	if !ok || username == "" {
		return model.User{}, faults.AuthFailure("incorrect username or password")
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return model.User{}, faults.AuthFailure("incorrect username or password")
	}
	return u, nil
}

// GormDirectory reads users from a gorm-managed table.
type GormDirectory struct {
	DB *gorm.DB
}

func (g *GormDirectory) Verify(ctx context.Context, username, password string) (model.User, error) {
	if username == "" {
		return model.User{}, faults.AuthFailure("incorrect username or password")
	}
	var user model.User
	if err := g.DB.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.User{}, faults.AuthFailure("incorrect username or password")
		}
		return model.User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return model.User{}, faults.AuthFailure("incorrect username or password")
	}
	return user, nil
}

// EnsureUser creates username with password when no such user exists yet.
// The first user created is an admin.
func (g *GormDirectory) EnsureUser(ctx context.Context, username, password string) error {
	db := g.DB.WithContext(ctx)
	var count int64
	if err := db.Model(&model.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	var total int64
	if err := db.Model(&model.User{}).Count(&total).Error; err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return db.Create(&model.User{Username: username, PasswordHash: string(hash), IsAdmin: total == 0}).Error
}
