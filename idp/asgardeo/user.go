package asgardeo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/turuturustars/turuturustars-sub001/idp"
)

type GetUserResponseBody struct {
	ID           string   `json:"id"`
	UserName     string   `json:"userName"`
	Email        []string `json:"emails"`
	PhoneNumbers []struct {
		Value string `json:"value"`
		Type  string `json:"type"`
	} `json:"phoneNumbers"`
	Name struct {
		FamilyName string `json:"familyName"`
		GivenName  string `json:"givenName"`
	} `json:"name"`
}

type UserInfoResponseBody struct {
	Sub         string `json:"sub"`
	Email       string `json:"email"`
	GivenName   string `json:"given_name"`
	FamilyName  string `json:"family_name"`
	PhoneNumber string `json:"phone_number"`
}

func (a *Client) GetUser(ctx context.Context, userId string) (*idp.UserInfo, error) {
	url := fmt.Sprintf("%s/scim2/Users/%s", a.BaseURL, userId)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	res, err := a.Client.Do(req)
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

	var response GetUserResponseBody
	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	userInfo := &idp.UserInfo{
		Id:        response.ID,
		FirstName: response.Name.GivenName,
		LastName:  response.Name.FamilyName,
	}

	if len(response.Email) > 0 {
		userInfo.Email = response.Email[0]
	}

	if len(response.PhoneNumbers) > 0 {
		userInfo.PhoneNumber = response.PhoneNumbers[0].Value
	}

	return userInfo, nil
}

// DeleteUser removes the SCIM user. SCIM deletes are always hard deletes.
func (a *Client) DeleteUser(ctx context.Context, userId string) error {
	url := fmt.Sprintf("%s/scim2/Users/%s", a.BaseURL, userId)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	res, err := a.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusNoContent, http.StatusOK:
		return nil
	case http.StatusNotFound:
		return idp.ErrUserNotFound
	default:
		return fmt.Errorf("failed to delete user, status code: %d", res.StatusCode)
	}
}

// VerifyToken resolves an end-user access token through the OIDC userinfo endpoint
func (a *Client) VerifyToken(ctx context.Context, token string) (*idp.UserInfo, error) {
	url := fmt.Sprintf("%s/oauth2/userinfo", a.BaseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	res, err := a.UserClient.Do(req)
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

	var response UserInfoResponseBody
	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if response.Sub == "" {
		return nil, idp.ErrInvalidToken
	}

	return &idp.UserInfo{
		Id:          response.Sub,
		Email:       response.Email,
		FirstName:   response.GivenName,
		LastName:    response.FamilyName,
		PhoneNumber: response.PhoneNumber,
	}, nil
}
