package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	userDatamodel "github.com/wardenhq/warden/internal/core/datamodel/user"
)

type ServiceAPI interface {
	Authenticate(dto LoginDTO) (*AuthResult, error)
	ValidateAccessToken(tokenString string) (*Claims, error)
	Logout(jti string) error
	LogoutAll(userID int64) (int64, error)
	HashPassword(password string) (string, error)
}

type RepositoryAPI interface {
	GetCredentials(email string) (*Credentials, error)
	CreateToken(token *userDatamodel.Token) error
	FindTokenByJTI(jti string) (*userDatamodel.Token, error)
	TouchToken(id int64, usedAt time.Time) error
	DeleteTokenByJTI(jti string) error
	DeleteTokensForUser(userID int64) (int64, error)
}

type TokenGeneratorAPI interface {
	GenerateAccessToken(userID int64, jti string) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
}

// Credentials is the minimal projection needed to authenticate a login.
type Credentials struct {
	UserID       int64
	PasswordHash string
	Suspended    bool
}

type LoginDTO struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	TokenName string `json:"token_name,omitempty"`
}

type AuthResult struct {
	UserID      int64  `json:"id"`
	AccessToken string `json:"token"`
}

type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// JTI returns the token identifier persisted alongside the issued token.
func (c *Claims) JTI() string {
	return c.ID
}

type JWTTokenGenerator struct {
	Secret         []byte
	AccessTokenTTL time.Duration
}

func VerifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
