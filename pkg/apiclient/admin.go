package apiclient

import (
	"context"
	"fmt"
	"net/http"
)

// Login exchanges credentials for a bearer token and keeps it on the client.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/admin/login", body, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", &MalformedResponseError{Status: http.StatusOK, Err: fmt.Errorf("no token in login response")}
	}
	c.SetToken(out.Token)
	return out.Token, nil
}

// Verify succeeds only for a 2xx answer carrying {"valid": true}.
func (c *Client) Verify(ctx context.Context) error {
	var out struct {
		Valid bool `json:"valid"`
	}
	if err := c.do(ctx, http.MethodGet, "/admin/verify", nil, &out); err != nil {
		return err
	}
	if !out.Valid {
		return &MalformedResponseError{Status: http.StatusOK, Err: fmt.Errorf("verify response is not valid:true")}
	}
	return nil
}

// Logout revokes the current token server side and forgets it locally, even
// when the request fails.
func (c *Client) Logout(ctx context.Context) error {
	defer c.SetToken("")
	return c.do(ctx, http.MethodPost, "/admin/logout", nil, nil)
}
