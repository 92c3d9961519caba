package api

import (
	"context"
	"net/http"

	"waxtrade/internal/app/dto"
	"waxtrade/internal/infra/security"
)

// Login exchanges credentials for a bearer token and installs it on the client.
func (c *Client) Login(ctx context.Context, email, password string) (dto.UserProfile, error) {
	var resp dto.AuthResponse
	err := c.do(ctx, "login", http.MethodPost, "/users/login", dto.LoginRequest{
		Email:    email,
		Password: password,
	}, &resp)
	if err != nil {
		return dto.UserProfile{}, err
	}
	return c.installToken(resp)
}

// Register creates an account and installs the issued token.
func (c *Client) Register(ctx context.Context, req dto.RegisterRequest) (dto.UserProfile, error) {
	var resp dto.AuthResponse
	if err := c.do(ctx, "register", http.MethodPost, "/users/register", req, &resp); err != nil {
		return dto.UserProfile{}, err
	}
	return c.installToken(resp)
}

// User fetches a public profile by id.
func (c *Client) User(ctx context.Context, id string) (dto.UserProfile, error) {
	var profile dto.UserProfile
	if err := c.do(ctx, "get user", http.MethodGet, "/users/"+id, nil, &profile); err != nil {
		return dto.UserProfile{}, err
	}
	return profile, nil
}

func (c *Client) installToken(resp dto.AuthResponse) (dto.UserProfile, error) {
	cred, err := security.ParseCredential(resp.Token)
	if err != nil {
		return dto.UserProfile{}, &Error{Op: "parse token", Err: err}
	}
	c.UseCredential(cred)
	return resp.User, nil
}
