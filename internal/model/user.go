package model

// 用户角色。
const (
	RoleUserAccount  = "USER"
	RoleAdminAccount = "ADMIN"
)

// AnonymousIdentity 是未认证请求使用的身份字符串。
const AnonymousIdentity = "anonymous"

// Principal 是一次请求解析出的调用者身份。
type Principal struct {
	Identity   string     `json:"identity"`
	Display    string     `json:"display"`
	AuthMethod AuthMethod `json:"auth_method"`
	Role       string     `json:"role,omitempty"`
}

// Authenticated 报告调用者是否通过了联合身份或本地账户认证。
func (p *Principal) Authenticated() bool {
	return p != nil && p.AuthMethod != AuthAnonymous
}

// IsAdmin 报告调用者是否为管理员。
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdminAccount
}

// LocalUser 是配置文件中定义的本地账户，密码已经过 bcrypt 哈希。
type LocalUser struct {
	Username     string
	PasswordHash string
	Role         string
}
