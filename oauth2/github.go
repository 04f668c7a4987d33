package oauth2

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const githubUserInfoURL = "https://api.github.com/user"

// GithubOAuth2 authenticates users against GitHub. Empty credentials
// fall back to the OAUTH2_GITHUB_* environment variables.
type GithubOAuth2 struct {
	*Provider

	// UserInfoURL is where user info is fetched from after the code
	// exchange. Overridable for tests.
	UserInfoURL string
}

func NewGithubOAuth2(clientID, clientSecret, callbackURL string, handleUser HandleUserFunc) *GithubOAuth2 {
	if clientID == "" {
		clientID = strings.TrimSpace(os.Getenv("OAUTH2_GITHUB_CLIENT_ID"))
	}
	if clientSecret == "" {
		clientSecret = strings.TrimSpace(os.Getenv("OAUTH2_GITHUB_CLIENT_SECRET"))
	}
	if callbackURL == "" {
		callbackURL = strings.TrimSpace(os.Getenv("OAUTH2_GITHUB_CALLBACK_URL"))
	}

	out := &GithubOAuth2{UserInfoURL: githubUserInfoURL}
	out.Provider = newProvider("github", oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  callbackURL,
		Scopes:       []string{"read:user", "user:email"},
		Endpoint:     github.Endpoint,
	}, handleUser)
	out.Provider.fetchUser = out.fetchUser
	return out
}

func (g *GithubOAuth2) fetchUser(ctx context.Context, client *http.Client, token *oauth2.Token) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Accept", "application/json")

	response, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching user info from github: %w", err)
	}
	defer response.Body.Close()

	contents, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("reading userinfo response: %w", err)
	}
	var userInfo map[string]any
	if err := json.Unmarshal(contents, &userInfo); err != nil {
		return nil, fmt.Errorf("parsing userinfo response: %w", err)
	}
	return userInfo, nil
}
