package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"github.com/tinrooster/tedecom-v1/internal/models"
	"gorm.io/gorm"
)

const (
	ContextUserKey   = "user"
	ContextUserIDKey = "user_id"
	ContextRoleKey   = "role"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type Claims struct {
	UserID uint
	Role   models.Role
	jwt.StandardClaims
}

type Authenticator struct {
	db     *gorm.DB
	secret []byte
	ttl    time.Duration
}

func New(db *gorm.DB, secret string, ttl time.Duration) *Authenticator {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Authenticator{db: db, secret: []byte(secret), ttl: ttl}
}

func (a *Authenticator) GenerateToken(user *models.User) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: user.ID,
		Role:   user.Role,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: now.Add(a.ttl).Unix(),
			IssuedAt:  now.Unix(),
			Subject:   user.Username,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Login checks the credentials of an active user and issues a token.
func (a *Authenticator) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	var user models.User
	if err := a.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("failed to find user: %w", err)
	}
	if !user.IsActive || !user.CheckPassword(password) {
		return "", nil, ErrInvalidCredentials
	}

	token, err := a.GenerateToken(&user)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return token, &user, nil
}

func (a *Authenticator) parse(token string) (*Claims, error) {
	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !tkn.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			c.Abort()
			return
		}

		claims, err := a.parse(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		var user models.User
		if err := a.db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			c.Abort()
			return
		}

		if !user.IsActive {
			c.JSON(http.StatusForbidden, gin.H{"error": "user is inactive"})
			c.Abort()
			return
		}

		c.Set(ContextUserKey, user)
		c.Set(ContextUserIDKey, user.ID)
		c.Set(ContextRoleKey, string(user.Role))
		c.Next()
	}
}

func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole := c.GetString(ContextRoleKey)
		for _, role := range roles {
			if string(role) == userRole {
				c.Next()
				return
			}
		}
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
		c.Abort()
	}
}

// RequirePermission allows the request when the authenticated user's role
// grants action.
func RequirePermission(action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := models.User{Role: models.Role(c.GetString(ContextRoleKey))}
		if !user.HasPermission(action) {
			c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// UserID returns the id of the authenticated user.
func UserID(c *gin.Context) uint {
	return c.GetUint(ContextUserIDKey)
}
