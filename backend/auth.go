package backend

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/valyala/fasthttp"

	"cloudmail/utils"
)

// Session is the token pair the provider hands out on sign-in.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// Identity is the authenticated user as read from the access token claims.
// The token is signed with the provider's project secret; the client reads
// the claims without verifying the signature, the provider rejects forged
// tokens on every call anyway.
type Identity struct {
	UserID string
	Email  string
	Expiry time.Time
}

type tokenClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// SignUp registers a new account. The provider sends a verification email;
// the account is pending until the user confirms it.
func (c *Client) SignUp(email, password string) error {
	body, _ := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
	})

	status, resp, err := c.do(fasthttp.MethodPost, c.cfg.URL+"/auth/v1/signup", "", "application/json", body, nil)
	if err != nil {
		return utils.AuthError("Sign up failed", err)
	}
	if status >= 400 {
		return mapAuthError(status, resp)
	}
	return nil
}

// SignIn exchanges credentials for a token pair.
func (c *Client) SignIn(email, password string) (*Session, error) {
	body, _ := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
	})

	status, resp, err := c.do(fasthttp.MethodPost, c.cfg.URL+"/auth/v1/token?grant_type=password", "", "application/json", body, nil)
	if err != nil {
		return nil, utils.AuthError("Sign in failed", err)
	}
	if status >= 400 {
		return nil, mapAuthError(status, resp)
	}

	var session Session
	if err := json.Unmarshal(resp, &session); err != nil {
		return nil, utils.AuthError("Unexpected sign in response", err)
	}
	if session.AccessToken == "" {
		return nil, utils.AuthError("Sign in response carried no token", nil)
	}
	return &session, nil
}

// Refresh trades a refresh token for a fresh token pair.
func (c *Client) Refresh(refreshToken string) (*Session, error) {
	body, _ := json.Marshal(map[string]string{
		"refresh_token": refreshToken,
	})

	status, resp, err := c.do(fasthttp.MethodPost, c.cfg.URL+"/auth/v1/token?grant_type=refresh_token", "", "application/json", body, nil)
	if err != nil {
		return nil, utils.AuthError("Session refresh failed", err)
	}
	if status >= 400 {
		return nil, mapAuthError(status, resp)
	}

	var session Session
	if err := json.Unmarshal(resp, &session); err != nil {
		return nil, utils.AuthError("Unexpected refresh response", err)
	}
	return &session, nil
}

// SignOut revokes the session server-side. Failures are not actionable for
// the caller beyond logging, so only transport errors are returned.
func (c *Client) SignOut(token string) error {
	_, _, err := c.do(fasthttp.MethodPost, c.cfg.URL+"/auth/v1/logout", token, "application/json", nil, nil)
	return err
}

// IdentityFromToken reads the user id, email and expiry out of an access
// token. It fails when the token is malformed or already expired.
func IdentityFromToken(accessToken string) (*Identity, error) {
	if accessToken == "" {
		return nil, utils.AuthError("Not signed in", nil)
	}

	claims := &tokenClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(accessToken, claims)
	if err != nil {
		return nil, utils.AuthError("Invalid session token", err)
	}

	identity := &Identity{
		UserID: claims.Subject,
		Email:  claims.Email,
	}
	if claims.ExpiresAt != nil {
		identity.Expiry = claims.ExpiresAt.Time
		if time.Now().After(identity.Expiry) {
			return nil, utils.AuthError("Session expired", nil)
		}
	}
	if identity.UserID == "" {
		return nil, utils.AuthError("Session token carries no user", nil)
	}
	return identity, nil
}

// mapAuthError translates the provider's auth failure bodies into the
// user-facing messages the login screens show.
func mapAuthError(status int, body []byte) error {
	msg := apiMessage(body)
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "already registered"):
		return utils.AuthError("This email is already registered. Please sign in instead.", nil)
	case strings.Contains(lower, "invalid login credentials"):
		return utils.AuthError("Invalid email or password. Please try again.", nil)
	}
	if msg == "" {
		msg = fmt.Sprintf("Authentication failed (status %d)", status)
	}
	return utils.AuthError(msg, nil)
}
