package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/nimasrn/ar-collections/internal/repository"
	xhttp "github.com/nimasrn/ar-collections/pkg/http"
	"github.com/nimasrn/ar-collections/pkg/logger"
)

const actorKey = "actor"

var (
	errMissingToken = errors.New("missing bearer token")
	errInvalidToken = errors.New("invalid token")
)

// Claims are the fields read from the identity provider's access token.
type Claims struct {
	Email        string `json:"email"`
	UserMetadata struct {
		FullName string `json:"full_name"`
	} `json:"user_metadata"`
	jwt.RegisteredClaims
}

type ProfileProvisioner interface {
	GetByAuthID(ctx context.Context, authUserID string) (*model.UserProfile, error)
	HandleNewUser(ctx context.Context, u model.NewUser) (*model.UserProfile, error)
}

// Authenticator verifies HS256 bearer tokens and resolves the caller's
// profile, provisioning it on first sight.
type Authenticator struct {
	secret   []byte
	issuer   string
	profiles ProfileProvisioner
}

func NewAuthenticator(secret, issuer string, profiles ProfileProvisioner) (*Authenticator, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &Authenticator{secret: []byte(secret), issuer: issuer, profiles: profiles}, nil
}

func (a *Authenticator) parse(raw string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, errInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, errInvalidToken
	}
	return claims, nil
}

func bearerToken(ctx *xhttp.RequestCtx) (string, error) {
	h := string(ctx.Request.Header.Peek("Authorization"))
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errMissingToken
	}
	return strings.TrimSpace(token), nil
}

func (a *Authenticator) authenticate(ctx *xhttp.RequestCtx) (*model.UserProfile, int, error) {
	raw, err := bearerToken(ctx)
	if err != nil {
		return nil, xhttp.StatusUnauthorized, err
	}
	claims, err := a.parse(raw)
	if err != nil {
		return nil, xhttp.StatusUnauthorized, err
	}

	profile, err := a.profiles.GetByAuthID(ctx, claims.Subject)
	if errors.Is(err, repository.ErrProfileNotFound) {
		profile, err = a.profiles.HandleNewUser(ctx, model.NewUser{
			AuthUserID: claims.Subject,
			Email:      claims.Email,
			FullName:   claims.UserMetadata.FullName,
		})
	}
	if err != nil {
		logger.Error("profile lookup failed", "sub", claims.Subject, "error", err)
		return nil, xhttp.StatusInternalServerError, errors.New(xhttp.StatusText(xhttp.StatusInternalServerError))
	}
	if !profile.IsActive {
		return nil, xhttp.StatusForbidden, errors.New("account is disabled")
	}
	return profile, 0, nil
}

// Authenticated lets any active user through, pending ones included.
func (a *Authenticator) Authenticated(next xhttp.RequestHandler) xhttp.RequestHandler {
	return func(ctx *xhttp.RequestCtx) {
		profile, status, err := a.authenticate(ctx)
		if err != nil {
			xhttp.WriteError(ctx, status, err.Error())
			return
		}
		ctx.SetUserValue(actorKey, profile)
		next(ctx)
	}
}

// Require admits approved users whose role is at least min.
func (a *Authenticator) Require(min model.Role, next xhttp.RequestHandler) xhttp.RequestHandler {
	return a.Authenticated(func(ctx *xhttp.RequestCtx) {
		actor := actorFrom(ctx)
		if actor.Role == model.RolePending {
			xhttp.WriteError(ctx, xhttp.StatusForbidden, "account is awaiting approval")
			return
		}
		if !actor.Role.AtLeast(min) {
			xhttp.WriteError(ctx, xhttp.StatusForbidden, "requires role "+string(min))
			return
		}
		next(ctx)
	})
}

func actorFrom(ctx *xhttp.RequestCtx) *model.UserProfile {
	p, _ := ctx.UserValue(actorKey).(*model.UserProfile)
	return p
}
