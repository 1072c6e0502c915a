package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"

	"github.com/wardenhq/warden/internal"
	userDatamodel "github.com/wardenhq/warden/internal/core/datamodel/user"
)

func TestAuth(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Auth Module Suite")
}

// Mock token repository for testing
type mockTokenRepository struct {
	credentials   map[string]*Credentials
	tokens        map[string]*userDatamodel.Token // jti -> token row
	nextTokenID   int64
	touched       map[string]time.Time
	returnError   bool
	errorToReturn error
}

func newMockTokenRepository() *mockTokenRepository {
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("correct_password"), bcrypt.DefaultCost)

	return &mockTokenRepository{
		credentials: map[string]*Credentials{
			"user@example.com":      {UserID: 1, PasswordHash: string(hashedPassword)},
			"admin@example.com":     {UserID: 2, PasswordHash: string(hashedPassword)},
			"suspended@example.com": {UserID: 3, PasswordHash: string(hashedPassword), Suspended: true},
		},
		tokens:      map[string]*userDatamodel.Token{},
		touched:     map[string]time.Time{},
		nextTokenID: 1,
	}
}

func (m *mockTokenRepository) GetCredentials(email string) (*Credentials, error) {
	if m.returnError {
		return nil, m.errorToReturn
	}
	if creds, exists := m.credentials[email]; exists {
		return creds, nil
	}
	return nil, errors.New("user not found")
}

func (m *mockTokenRepository) CreateToken(token *userDatamodel.Token) error {
	if m.returnError {
		return m.errorToReturn
	}
	token.ID = m.nextTokenID
	m.nextTokenID++
	m.tokens[token.JTI] = token
	return nil
}

func (m *mockTokenRepository) FindTokenByJTI(jti string) (*userDatamodel.Token, error) {
	if m.returnError {
		return nil, m.errorToReturn
	}
	return m.tokens[jti], nil
}

func (m *mockTokenRepository) TouchToken(id int64, usedAt time.Time) error {
	for jti, token := range m.tokens {
		if token.ID == id {
			m.touched[jti] = usedAt
		}
	}
	return nil
}

func (m *mockTokenRepository) DeleteTokenByJTI(jti string) error {
	delete(m.tokens, jti)
	return nil
}

func (m *mockTokenRepository) DeleteTokensForUser(userID int64) (int64, error) {
	if m.returnError {
		return 0, m.errorToReturn
	}
	var deleted int64
	for jti, token := range m.tokens {
		if token.UserID == userID {
			delete(m.tokens, jti)
			deleted++
		}
	}
	return deleted, nil
}

func (m *mockTokenRepository) setError(err error) {
	m.returnError = true
	m.errorToReturn = err
}

var _ = ginkgo.Describe("AuthService", func() {
	var (
		service      *Service
		mockRepo     *mockTokenRepository
		tokenGen     *JWTTokenGenerator
		accessSecret string        = "test-access-secret"
		accessTTL    time.Duration = 15 * time.Minute
	)

	ginkgo.BeforeEach(func() {
		mockRepo = newMockTokenRepository()
		tokenGen = NewJWTTokenGenerator(accessSecret, accessTTL)
		service = NewService(mockRepo, tokenGen, bcrypt.MinCost)
	})

	ginkgo.Describe("Authenticate", func() {
		ginkgo.Context("when credentials are valid", func() {
			ginkgo.It("should return a token bound to the user", func() {
				dto := LoginDTO{
					Email:    "user@example.com",
					Password: "correct_password",
				}

				result, err := service.Authenticate(dto)

				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(result.UserID).To(gomega.Equal(int64(1)))
				gomega.Expect(result.AccessToken).ToNot(gomega.BeEmpty())
			})

			ginkgo.It("should persist a token row whose jti matches the JWT", func() {
				dto := LoginDTO{
					Email:    "admin@example.com",
					Password: "correct_password",
				}

				result, err := service.Authenticate(dto)
				gomega.Expect(err).ToNot(gomega.HaveOccurred())

				claims, err := tokenGen.ValidateToken(result.AccessToken)
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(claims.UserID).To(gomega.Equal(int64(2)))
				gomega.Expect(mockRepo.tokens).To(gomega.HaveKey(claims.JTI()))
			})

			ginkgo.It("should use the requested token name", func() {
				dto := LoginDTO{
					Email:     "user@example.com",
					Password:  "correct_password",
					TokenName: "mobile",
				}

				result, err := service.Authenticate(dto)
				gomega.Expect(err).ToNot(gomega.HaveOccurred())

				claims, err := tokenGen.ValidateToken(result.AccessToken)
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(mockRepo.tokens[claims.JTI()].Name).To(gomega.Equal("mobile"))
			})
		})

		ginkgo.Context("when credentials are invalid", func() {
			ginkgo.It("should return error for unknown email", func() {
				dto := LoginDTO{
					Email:    "nonexistent@example.com",
					Password: "any_password",
				}

				result, err := service.Authenticate(dto)

				gomega.Expect(err).To(gomega.MatchError(internal.ErrInvalidCredentials))
				gomega.Expect(result).To(gomega.BeNil())
			})

			ginkgo.It("should return error for wrong password", func() {
				dto := LoginDTO{
					Email:    "user@example.com",
					Password: "wrong_password",
				}

				result, err := service.Authenticate(dto)

				gomega.Expect(err).To(gomega.MatchError(internal.ErrInvalidCredentials))
				gomega.Expect(result).To(gomega.BeNil())
			})
		})

		ginkgo.Context("when the account is suspended", func() {
			ginkgo.It("should refuse to issue a token", func() {
				dto := LoginDTO{
					Email:    "suspended@example.com",
					Password: "correct_password",
				}

				result, err := service.Authenticate(dto)

				gomega.Expect(err).To(gomega.MatchError(internal.ErrUserSuspended))
				gomega.Expect(result).To(gomega.BeNil())
				gomega.Expect(mockRepo.tokens).To(gomega.BeEmpty())
			})
		})

		ginkgo.Context("when input validation fails", func() {
			ginkgo.It("should reject an empty email", func() {
				result, err := service.Authenticate(LoginDTO{Password: "password"})

				gomega.Expect(err).To(gomega.HaveOccurred())
				gomega.Expect(result).To(gomega.BeNil())
			})

			ginkgo.It("should reject an empty password", func() {
				result, err := service.Authenticate(LoginDTO{Email: "user@example.com"})

				gomega.Expect(err).To(gomega.HaveOccurred())
				gomega.Expect(result).To(gomega.BeNil())
			})
		})

		ginkgo.Context("when repository returns error", func() {
			ginkgo.It("should return invalid credentials error", func() {
				mockRepo.setError(errors.New("database error"))

				result, err := service.Authenticate(LoginDTO{
					Email:    "user@example.com",
					Password: "correct_password",
				})

				gomega.Expect(err).To(gomega.MatchError(internal.ErrInvalidCredentials))
				gomega.Expect(result).To(gomega.BeNil())
			})
		})
	})

	ginkgo.Describe("ValidateAccessToken", func() {
		var issued *AuthResult

		ginkgo.BeforeEach(func() {
			var err error
			issued, err = service.Authenticate(LoginDTO{
				Email:    "user@example.com",
				Password: "correct_password",
			})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
		})

		ginkgo.Context("when the token is live", func() {
			ginkgo.It("should return claims with the user id", func() {
				claims, err := service.ValidateAccessToken(issued.AccessToken)

				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(claims.UserID).To(gomega.Equal(int64(1)))
				gomega.Expect(claims.JTI()).ToNot(gomega.BeEmpty())
			})

			ginkgo.It("should record last use", func() {
				claims, err := service.ValidateAccessToken(issued.AccessToken)

				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(mockRepo.touched).To(gomega.HaveKey(claims.JTI()))
			})
		})

		ginkgo.Context("when the token has been revoked", func() {
			ginkgo.It("should reject a well-signed token whose row is gone", func() {
				claims, err := tokenGen.ValidateToken(issued.AccessToken)
				gomega.Expect(err).ToNot(gomega.HaveOccurred())

				gomega.Expect(service.Logout(claims.JTI())).To(gomega.Succeed())

				revokedClaims, err := service.ValidateAccessToken(issued.AccessToken)
				gomega.Expect(err).To(gomega.MatchError(internal.ErrInvalidToken))
				gomega.Expect(revokedClaims).To(gomega.BeNil())
			})
		})

		ginkgo.Context("when the token is invalid", func() {
			ginkgo.It("should return error for malformed token", func() {
				claims, err := service.ValidateAccessToken("invalid.token")

				gomega.Expect(err).To(gomega.HaveOccurred())
				gomega.Expect(claims).To(gomega.BeNil())
			})

			ginkgo.It("should return error for empty token", func() {
				claims, err := service.ValidateAccessToken("")

				gomega.Expect(err).To(gomega.HaveOccurred())
				gomega.Expect(claims).To(gomega.BeNil())
			})

			ginkgo.It("should return ErrTokenExpired for expired token", func() {
				expiredGen := &JWTTokenGenerator{
					Secret:         []byte(accessSecret),
					AccessTokenTTL: -1 * time.Hour,
				}
				expiredToken, err := expiredGen.GenerateAccessToken(1, "stale-jti")
				gomega.Expect(err).ToNot(gomega.HaveOccurred())

				claims, err := service.ValidateAccessToken(expiredToken)

				gomega.Expect(err).To(gomega.MatchError(internal.ErrTokenExpired))
				gomega.Expect(claims).To(gomega.BeNil())
			})

			ginkgo.It("should return error for token signed with a different secret", func() {
				otherGen := NewJWTTokenGenerator("other-secret", accessTTL)
				forged, err := otherGen.GenerateAccessToken(1, "forged-jti")
				gomega.Expect(err).ToNot(gomega.HaveOccurred())

				claims, err := service.ValidateAccessToken(forged)

				gomega.Expect(err).To(gomega.MatchError(internal.ErrInvalidToken))
				gomega.Expect(claims).To(gomega.BeNil())
			})
		})
	})

	ginkgo.Describe("LogoutAll", func() {
		ginkgo.It("should delete every token for the user and report the count", func() {
			for i := 0; i < 3; i++ {
				_, err := service.Authenticate(LoginDTO{
					Email:    "user@example.com",
					Password: "correct_password",
				})
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
			}
			other, err := service.Authenticate(LoginDTO{
				Email:    "admin@example.com",
				Password: "correct_password",
			})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			revoked, err := service.LogoutAll(1)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(revoked).To(gomega.Equal(int64(3)))

			// The other user's token stays valid.
			claims, err := service.ValidateAccessToken(other.AccessToken)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(claims.UserID).To(gomega.Equal(int64(2)))
		})

		ginkgo.It("should report zero when the user holds no tokens", func() {
			revoked, err := service.LogoutAll(999)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(revoked).To(gomega.BeZero())
		})
	})

	ginkgo.Describe("HashPassword", func() {
		ginkgo.It("should return a hash that verifies against the password", func() {
			hash, err := service.HashPassword("test_password_123")

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(hash).ToNot(gomega.BeEmpty())
			gomega.Expect(VerifyPassword(hash, "test_password_123")).To(gomega.Succeed())
		})

		ginkgo.It("should generate different hashes for same password", func() {
			hash1, err1 := service.HashPassword("same_password")
			hash2, err2 := service.HashPassword("same_password")

			gomega.Expect(err1).ToNot(gomega.HaveOccurred())
			gomega.Expect(err2).ToNot(gomega.HaveOccurred())
			gomega.Expect(hash1).ToNot(gomega.Equal(hash2))
		})
	})
})

var _ = ginkgo.Describe("JWTTokenGenerator", func() {
	var (
		tokenGen  *JWTTokenGenerator
		secret    string        = "test-secret-key"
		accessTTL time.Duration = 15 * time.Minute
	)

	ginkgo.BeforeEach(func() {
		tokenGen = NewJWTTokenGenerator(secret, accessTTL)
	})

	ginkgo.Describe("GenerateAccessToken", func() {
		ginkgo.It("should embed the user id and jti in the claims", func() {
			token, err := tokenGen.GenerateAccessToken(123, "some-jti")

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(token).ToNot(gomega.BeEmpty())

			claims, err := tokenGen.ValidateToken(token)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(claims.UserID).To(gomega.Equal(int64(123)))
			gomega.Expect(claims.JTI()).To(gomega.Equal("some-jti"))
			gomega.Expect(claims.ExpiresAt.Time).To(gomega.BeTemporally("~", time.Now().Add(accessTTL), time.Minute))
		})
	})

	ginkgo.Describe("ValidateToken", func() {
		ginkgo.It("should return error for malformed token", func() {
			claims, err := tokenGen.ValidateToken("invalid.token.here")

			gomega.Expect(err).To(gomega.HaveOccurred())
			gomega.Expect(claims).To(gomega.BeNil())
		})

		ginkgo.It("should return ErrTokenExpired for expired token", func() {
			expiredGen := &JWTTokenGenerator{
				Secret:         []byte(secret),
				AccessTokenTTL: -1 * time.Hour,
			}
			token, err := expiredGen.GenerateAccessToken(123, "expired-jti")
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			claims, err := tokenGen.ValidateToken(token)

			gomega.Expect(err).To(gomega.MatchError(internal.ErrTokenExpired))
			gomega.Expect(claims).To(gomega.BeNil())
		})
	})
})
