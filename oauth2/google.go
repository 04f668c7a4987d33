package oauth2

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleOAuth2 authenticates users against Google. Empty credentials
// fall back to the OAUTH2_GOOGLE_* environment variables.
type GoogleOAuth2 struct {
	*Provider

	// UserInfoURL is where user info is fetched from after the code
	// exchange. Overridable for tests.
	UserInfoURL string
}

func NewGoogleOAuth2(clientID, clientSecret, callbackURL string, handleUser HandleUserFunc) *GoogleOAuth2 {
	if clientID == "" {
		clientID = os.Getenv("OAUTH2_GOOGLE_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("OAUTH2_GOOGLE_CLIENT_SECRET")
	}
	if callbackURL == "" {
		callbackURL = os.Getenv("OAUTH2_GOOGLE_CALLBACK_URL")
	}

	out := &GoogleOAuth2{UserInfoURL: googleUserInfoURL}
	out.Provider = newProvider("google", oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  callbackURL,
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}, handleUser)
	out.Provider.fetchUser = out.fetchUser
	return out
}

func (g *GoogleOAuth2) fetchUser(ctx context.Context, client *http.Client, token *oauth2.Token) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.UserInfoURL+"?access_token="+token.AccessToken, nil)
	if err != nil {
		return nil, fmt.Errorf("creating userinfo request: %w", err)
	}
	response, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching user info from google: %w", err)
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
