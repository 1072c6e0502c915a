package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/wardenhq/warden/internal"
	userDatamodel "github.com/wardenhq/warden/internal/core/datamodel/user"
)

// Service issues and validates revocable access tokens. Every issued JWT
// carries a jti persisted in the tokens table; deleting the row revokes
// the token even before its expiry.
type Service struct {
	repo           RepositoryAPI
	tokenGenerator TokenGeneratorAPI
	bcryptCost     int
}

func NewService(repo RepositoryAPI, tokenGen TokenGeneratorAPI, bcryptCost int) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		repo:           repo,
		tokenGenerator: tokenGen,
		bcryptCost:     bcryptCost,
	}
}

func NewJWTTokenGenerator(secret string, ttl time.Duration) *JWTTokenGenerator {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWTTokenGenerator{
		Secret:         []byte(secret),
		AccessTokenTTL: ttl,
	}
}

func (dto LoginDTO) Validate() error {
	if dto.Email == "" || dto.Password == "" {
		return internal.ErrInvalidCredentials
	}
	return nil
}

// Authenticate validates credentials and returns a freshly issued token.
// Suspended accounts cannot log in.
func (s *Service) Authenticate(dto LoginDTO) (*AuthResult, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	creds, err := s.repo.GetCredentials(dto.Email)
	if err != nil {
		return nil, internal.ErrInvalidCredentials
	}

	if err := VerifyPassword(creds.PasswordHash, dto.Password); err != nil {
		return nil, internal.ErrInvalidCredentials
	}

	if creds.Suspended {
		return nil, internal.ErrUserSuspended
	}

	jti := uuid.NewString()
	name := dto.TokenName
	if name == "" {
		name = "api-token"
	}

	if err := s.repo.CreateToken(&userDatamodel.Token{
		UserID:    creds.UserID,
		Name:      name,
		JTI:       jti,
		CreatedAt: time.Now(),
	}); err != nil {
		return nil, internal.NewInternalError("failed to persist token", err)
	}

	accessToken, err := s.tokenGenerator.GenerateAccessToken(creds.UserID, jti)
	if err != nil {
		return nil, internal.NewInternalError("failed to sign token", err)
	}

	return &AuthResult{
		UserID:      creds.UserID,
		AccessToken: accessToken,
	}, nil
}

// ValidateAccessToken checks signature, expiry, and that the jti still
// maps to a live token row. Revoked tokens fail here.
func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	claims, err := s.tokenGenerator.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	token, err := s.repo.FindTokenByJTI(claims.JTI())
	if err != nil || token == nil {
		return nil, internal.ErrInvalidToken
	}

	// best effort, a failed touch must not reject the request
	_ = s.repo.TouchToken(token.ID, time.Now())

	return claims, nil
}

func (s *Service) Logout(jti string) error {
	return s.repo.DeleteTokenByJTI(jti)
}

// LogoutAll revokes every token issued to the user and reports how many
// were deleted.
func (s *Service) LogoutAll(userID int64) (int64, error) {
	return s.repo.DeleteTokensForUser(userID)
}

func (s *Service) HashPassword(password string) (string, error) {
	return HashPassword(password, s.bcryptCost)
}

// GenerateAccessToken signs a JWT whose ID claim is the persisted jti.
func (j *JWTTokenGenerator) GenerateAccessToken(userID int64, jti string) (string, error) {
	now := time.Now()

	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(now.Add(j.AccessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   fmt.Sprintf("%d", userID),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.Secret)
}

func (j *JWTTokenGenerator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.Secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, internal.ErrTokenExpired
		}
		return nil, internal.ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, internal.ErrInvalidToken
}
