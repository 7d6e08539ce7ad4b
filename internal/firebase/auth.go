package firebase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"firebase.google.com/go/v4/auth"
	lagauth "github.com/npezzotti/go-lag/internal/auth"
	"github.com/npezzotti/go-lag/internal/types"
)

const signInEndpoint = "https://identitytoolkit.googleapis.com/v1/accounts:signInWithPassword"

// Auth authenticates against Firebase Authentication. The Admin SDK has no
// password sign-in, so SignIn uses the Identity Toolkit REST API.
type Auth struct {
	client     *auth.Client
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

var _ lagauth.Authenticator = (*Auth)(nil)

type signInRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type signInResponse struct {
	LocalId   string `json:"localId"`
	IdToken   string `json:"idToken"`
	ExpiresIn string `json:"expiresIn"`
}

type identityError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *Auth) SignUp(ctx context.Context, email, password string) (types.Session, error) {
	params := (&auth.UserToCreate{}).Email(email).Password(password)
	if _, err := a.client.CreateUser(ctx, params); err != nil {
		if auth.IsEmailAlreadyExists(err) {
			return types.Session{}, lagauth.ErrEmailTaken
		}
		return types.Session{}, fmt.Errorf("create user: %w", err)
	}

	return a.SignIn(ctx, email, password)
}

func (a *Auth) SignIn(ctx context.Context, email, password string) (types.Session, error) {
	body, err := json.Marshal(signInRequest{Email: email, Password: password, ReturnSecureToken: true})
	if err != nil {
		return types.Session{}, err
	}

	u := a.endpoint + "?key=" + url.QueryEscape(a.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return types.Session{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return types.Session{}, fmt.Errorf("sign in: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var ie identityError
		if err := json.NewDecoder(resp.Body).Decode(&ie); err == nil && isCredentialError(ie.Error.Message) {
			return types.Session{}, lagauth.ErrInvalidCredentials
		}
		return types.Session{}, fmt.Errorf("sign in: unexpected status %d: %s", resp.StatusCode, ie.Error.Message)
	}

	var sr signInResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return types.Session{}, fmt.Errorf("decode sign in response: %w", err)
	}

	session := types.Session{UserId: sr.LocalId, Token: sr.IdToken}
	if secs, err := strconv.Atoi(sr.ExpiresIn); err == nil {
		session.ExpiresAt = time.Now().Add(time.Duration(secs) * time.Second)
	}

	return session, nil
}

func (a *Auth) Verify(ctx context.Context, token string) (string, error) {
	t, err := a.client.VerifyIDToken(ctx, token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", lagauth.ErrInvalidToken, err)
	}
	return t.UID, nil
}

func isCredentialError(msg string) bool {
	switch msg {
	case "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS", "INVALID_EMAIL", "MISSING_PASSWORD", "USER_DISABLED":
		return true
	}
	return false
}
