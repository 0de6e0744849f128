package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"cora-trainer-go/internal/model"
	"cora-trainer-go/internal/repository"
	"cora-trainer-go/pkg/hash"
	"cora-trainer-go/pkg/log"
	"cora-trainer-go/pkg/token"

	"github.com/go-redis/redis/v8"
)

// ErrInvalidCredentials 表示用户名或密码错误。
var ErrInvalidCredentials = errors.New("invalid credentials")

// UserService 接口定义了本地账户登录与请求身份解析。
type UserService interface {
	Login(username, password string) (accessToken string, user *model.LocalUser, err error)
	Logout(ctx context.Context, tokenString string) error
	ResolvePrincipal(ctx context.Context, federatedName, tokenString string) model.Principal
	TokenTTL() time.Duration
}

// userService 是 UserService 接口的实现。
type userService struct {
	userRepo   repository.UserRepository
	jwtManager *token.JWTManager
	rdb        *redis.Client
}

// NewUserService 创建一个新的 UserService 实例。rdb 可为 nil，此时登出只清除客户端 cookie。
func NewUserService(userRepo repository.UserRepository, jwtManager *token.JWTManager, rdb *redis.Client) UserService {
	return &userService{
		userRepo:   userRepo,
		jwtManager: jwtManager,
		rdb:        rdb,
	}
}

// Login 处理本地账户登录的业务逻辑。
func (s *userService) Login(username, password string) (string, *model.LocalUser, error) {
	// 1. 查找用户
	user, err := s.userRepo.FindByUsername(username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}

	// 2. 验证密码
	if !hash.CheckPasswordHash(password, user.PasswordHash) {
		return "", nil, ErrInvalidCredentials
	}

	// 3. 生成 access token
	accessToken, err := s.jwtManager.GenerateToken(user.Username, user.Role)
	if err != nil {
		return "", nil, err
	}
	return accessToken, user, nil
}

// Logout 将 token 加入 Redis 黑名单，剩余有效期作为 key 的过期时间。
func (s *userService) Logout(ctx context.Context, tokenString string) error {
	if s.rdb == nil || tokenString == "" {
		return nil
	}
	claims, err := s.jwtManager.VerifyToken(tokenString)
	if err != nil {
		return err
	}
	expiration := time.Until(claims.ExpiresAt.Time)
	if expiration <= 0 {
		return nil
	}
	return s.rdb.Set(ctx, blacklistKey(tokenString), "true", expiration).Err()
}

// ResolvePrincipal 依次尝试联合身份请求头、本地会话 token，最后回落到匿名身份。
func (s *userService) ResolvePrincipal(ctx context.Context, federatedName, tokenString string) model.Principal {
	if name := strings.TrimSpace(federatedName); name != "" {
		return model.Principal{
			Identity:   name,
			Display:    federatedDisplay(name),
			AuthMethod: model.AuthFederated,
			Role:       model.RoleUserAccount,
		}
	}
	if tokenString != "" {
		if p, ok := s.localPrincipal(ctx, tokenString); ok {
			return p
		}
	}
	return model.Principal{Identity: model.AnonymousIdentity, AuthMethod: model.AuthAnonymous}
}

func (s *userService) localPrincipal(ctx context.Context, tokenString string) (model.Principal, bool) {
	claims, err := s.jwtManager.VerifyToken(tokenString)
	if err != nil {
		log.Debugf("[UserService] 本地会话 token 无效: %v", err)
		return model.Principal{}, false
	}
	if s.isBlacklisted(ctx, tokenString) {
		return model.Principal{}, false
	}
	// 账户从配置中移除后，旧 token 随之失效
	user, err := s.userRepo.FindByUsername(claims.Username)
	if err != nil {
		return model.Principal{}, false
	}
	return model.Principal{
		Identity:   user.Username,
		Display:    user.Username,
		AuthMethod: model.AuthLocal,
		Role:       user.Role,
	}, true
}

func (s *userService) isBlacklisted(ctx context.Context, tokenString string) bool {
	if s.rdb == nil {
		return false
	}
	n, err := s.rdb.Exists(ctx, blacklistKey(tokenString)).Result()
	if err != nil {
		log.Warnf("[UserService] 查询 token 黑名单失败: %v", err)
		return false
	}
	return n > 0
}

func (s *userService) TokenTTL() time.Duration {
	return s.jwtManager.TTL()
}

func blacklistKey(tokenString string) string {
	return "blacklist:" + tokenString
}

// federatedDisplay 把 "alias@domain" 显示为 "alias (alias@domain)"。
func federatedDisplay(upn string) string {
	if i := strings.Index(upn, "@"); i > 0 {
		return upn[:i] + " (" + upn + ")"
	}
	return upn
}
