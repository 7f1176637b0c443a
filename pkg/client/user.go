package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"settlement-engine/pkg/config"
	"settlement-engine/pkg/errutil"
)

// User is the identity collaborator's projection of a platform user.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Role        string `json:"role"`
}

// UserClient reaches the user/identity collaborator service.
type UserClient interface {
	GetUser(ctx context.Context, userID string) (*User, error)
}

type userClient struct {
	baseURL string
	http    *http.Client
}

func NewUserClient(cfg *config.Config) UserClient {
	return &userClient{
		baseURL: cfg.Collaborators.UserURL,
		http:    &http.Client{Timeout: cfg.Collaborators.Timeout},
	}
}

func (c *userClient) GetUser(ctx context.Context, userID string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+fmt.Sprintf("/api/v1/users/%s", userID), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errutil.BadGateway("user service unreachable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errutil.NotFound("user not found", nil)
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, errutil.BadGateway(fmt.Sprintf("user service returned %d", resp.StatusCode), nil)
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}
