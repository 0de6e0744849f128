package repository

import (
	"errors"
	"fmt"
	"strings"

	"cora-trainer-go/internal/config"
	"cora-trainer-go/internal/model"
	"cora-trainer-go/pkg/hash"
)

// ErrUserNotFound 表示本地账户不存在。
var ErrUserNotFound = errors.New("user not found")

// UserRepository 接口定义了本地账户的查询操作。账户来自配置，不支持注册。
type UserRepository interface {
	FindByUsername(username string) (*model.LocalUser, error)
	Count() int
}

type configUserRepository struct {
	users map[string]model.LocalUser
}

// NewUserRepository 从配置构建本地账户表。明文密码在此处做 bcrypt 哈希，password_hash 优先。
func NewUserRepository(cfgUsers []config.LocalUserConfig) (UserRepository, error) {
	r := &configUserRepository{users: make(map[string]model.LocalUser, len(cfgUsers))}
	for _, u := range cfgUsers {
		name := strings.ToLower(strings.TrimSpace(u.Username))
		if name == "" {
			return nil, errors.New("local user without username")
		}
		if _, dup := r.users[name]; dup {
			return nil, fmt.Errorf("duplicate local user %q", name)
		}
		pwHash := u.PasswordHash
		if pwHash == "" {
			if u.Password == "" {
				return nil, fmt.Errorf("local user %q has no password", name)
			}
			var err error
			if pwHash, err = hash.HashPassword(u.Password); err != nil {
				return nil, fmt.Errorf("hash password for %q: %w", name, err)
			}
		}
		role := strings.ToUpper(strings.TrimSpace(u.Role))
		if role == "" {
			role = model.RoleUserAccount
		}
		r.users[name] = model.LocalUser{Username: name, PasswordHash: pwHash, Role: role}
	}
	return r, nil
}

// FindByUsername 按用户名（不区分大小写）查找账户。
func (r *configUserRepository) FindByUsername(username string) (*model.LocalUser, error) {
	u, ok := r.users[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (r *configUserRepository) Count() int {
	return len(r.users)
}
