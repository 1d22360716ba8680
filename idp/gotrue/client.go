package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/turuturustars/turuturustars-sub001/idp"
)

// Client talks to a GoTrue-compatible auth server using its admin API
type Client struct {
	BaseURL    string
	ServiceKey string
	Client     *http.Client
}

func NewClient(baseUrl string, serviceKey string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseUrl, "/"),
		ServiceKey: serviceKey,
		Client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type userResponseBody struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	UserMetadata struct {
		FullName string `json:"full_name"`
	} `json:"user_metadata"`
}

type deleteUserRequestBody struct {
	ShouldSoftDelete bool `json:"should_soft_delete"`
}

func (c *Client) newRequest(ctx context.Context, method, path string, body interface{}, bearer string) (*http.Request, error) {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", c.ServiceKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func toUserInfo(body userResponseBody) *idp.UserInfo {
	info := &idp.UserInfo{
		Id:          body.ID,
		Email:       body.Email,
		PhoneNumber: body.Phone,
	}
	if name := strings.TrimSpace(body.UserMetadata.FullName); name != "" {
		first, last, _ := strings.Cut(name, " ")
		info.FirstName = first
		info.LastName = last
	}
	return info
}

func (c *Client) GetUser(ctx context.Context, userId string) (*idp.UserInfo, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/auth/v1/admin/users/"+url.PathEscape(userId), nil, c.ServiceKey)
	if err != nil {
		return nil, err
	}

	res, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, idp.ErrUserNotFound
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get user, status code: %d", res.StatusCode)
	}

	var body userResponseBody
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return toUserInfo(body), nil
}

// DeleteUser hard-deletes the user; soft delete is explicitly disabled
func (c *Client) DeleteUser(ctx context.Context, userId string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/auth/v1/admin/users/"+url.PathEscape(userId),
		deleteUserRequestBody{ShouldSoftDelete: false}, c.ServiceKey)
	if err != nil {
		return err
	}

	res, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return idp.ErrUserNotFound
	default:
		return fmt.Errorf("failed to delete user, status code: %d", res.StatusCode)
	}
}

func (c *Client) VerifyToken(ctx context.Context, token string) (*idp.UserInfo, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/auth/v1/user", nil, token)
	if err != nil {
		return nil, err
	}

	res, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
		return nil, idp.ErrInvalidToken
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to verify token, status code: %d", res.StatusCode)
	}

	var body userResponseBody
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if body.ID == "" {
		return nil, idp.ErrInvalidToken
	}
	return toUserInfo(body), nil
}
