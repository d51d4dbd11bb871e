package echoapi

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tayari/core"
	"github.com/trezcool/tayari/core/learner"
)

const (
	contextTokenKey   = "learnerToken"
	contextLearnerKey = "learner"
	bearerPrefix      = "Bearer "
)

// Claims represents the authorization claims transmitted via a JWT. The subject is the learner id.
type Claims struct {
	jwt.RegisteredClaims
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

func GetLearnerClaims(l learner.Learner, conf *core.Config) *Claims {
	now := time.Now()
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    conf.AppName,
			Subject:   l.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(conf.Server.JWTExpirationDelta)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Name:  l.Name,
		Email: l.Email,
		Role:  l.Role,
	}
}

// GenerateToken generates a signed JWT token string representing the learner Claims.
func GenerateToken(claims *Claims, secretKey string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

type LearnerFinder interface {
	GetByID(ctx context.Context, id string) (learner.Learner, error)
}

// newJWTMiddleware verifies the bearer token and stores it under contextTokenKey.
func newJWTMiddleware(secretKey string) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey:    []byte(secretKey),
		ContextKey:    contextTokenKey,
		NewClaimsFunc: func(echo.Context) jwt.Claims { return new(Claims) },
		ErrorHandler: func(ctx echo.Context, err error) error {
			header := ctx.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(header, bearerPrefix) || len(header) == len(bearerPrefix) {
				return errMissingToken
			}
			return errInvalidToken.WithInternal(err)
		},
	})
}

// learnerMiddleware runs after the JWT check and loads the acting learner.
func learnerMiddleware(learners LearnerFinder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil || claims.Subject == "" {
				return errInvalidToken
			}

			lrn, err := learners.GetByID(ctx.Request().Context(), claims.Subject)
			if err != nil {
				if core.IsNotFound(err) {
					return errInvalidToken
				}
				return errors.Wrap(err, "finding learner by ID")
			}
			if !lrn.IsActive {
				return errInactive
			}

			ctx.Set(contextLearnerKey, lrn)
			return next(ctx)
		}
	}
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextLearner(ctx echo.Context) (learner.Learner, error) {
	if lrn, ok := ctx.Get(contextLearnerKey).(learner.Learner); ok {
		return lrn, nil
	}
	return learner.Learner{}, errUnauthorized
}
