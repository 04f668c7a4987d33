// Command authbase-demo runs a standalone auth server backed by the
// filesystem store. Reset emails are printed to the log instead of
// sent, which makes the full register/login/reset loop exercisable
// from curl alone.
package main

import (
	"flag"
	"log/slog"
	"net/http"
	"os"
	"time"

	auth "github.com/srijanm/authbase"
	"github.com/srijanm/authbase/oauth2"
	fsstore "github.com/srijanm/authbase/stores/fs"
	oauth2lib "golang.org/x/oauth2"
)

type options struct {
	Addr        string
	DataDir     string
	BaseURL     string
	JWTSecret   string
	CookieName  string
	GoogleAuth  bool
	GithubAuth  bool
	SessionTTL  time.Duration
	ResetWindow time.Duration
}

func parseOptions() options {
	var opts options
	flag.StringVar(&opts.Addr, "addr", ":8080", "address to listen on")
	flag.StringVar(&opts.DataDir, "data", "./data", "directory for the filesystem store")
	flag.StringVar(&opts.BaseURL, "base-url", "http://localhost:8080", "public URL used in reset links")
	flag.StringVar(&opts.JWTSecret, "jwt-secret", "", "JWT signing key (falls back to AUTHBASE_JWT_SECRET)")
	flag.StringVar(&opts.CookieName, "cookie", "authToken", "session cookie name")
	flag.BoolVar(&opts.GoogleAuth, "google", false, "enable Google login (needs OAUTH2_GOOGLE_* env vars)")
	flag.BoolVar(&opts.GithubAuth, "github", false, "enable GitHub login (needs OAUTH2_GITHUB_* env vars)")
	flag.DurationVar(&opts.SessionTTL, "session-ttl", auth.TokenExpirySession, "session token lifetime")
	flag.DurationVar(&opts.ResetWindow, "reset-window", auth.TokenExpiryReset, "password reset token lifetime")
	flag.Parse()

	// Env vars override flag defaults but not explicit flags.
	if addr := os.Getenv("AUTHBASE_ADDR"); addr != "" && opts.Addr == ":8080" {
		opts.Addr = addr
	}
	if dataDir := os.Getenv("AUTHBASE_DATA_DIR"); dataDir != "" && opts.DataDir == "./data" {
		opts.DataDir = dataDir
	}
	return opts
}

func main() {
	opts := parseOptions()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	store := fsstore.NewFSUserStore(opts.DataDir)
	service := auth.NewService(store, auth.ServiceConfig{
		JWTSecretKey:  opts.JWTSecret,
		JWTIssuer:     "authbase-demo",
		SessionExpiry: opts.SessionTTL,
		ResetExpiry:   opts.ResetWindow,
		BaseURL:       opts.BaseURL,
		Mailer:        &auth.ConsoleMailer{},
		Logger:        logger,
	})

	router := auth.NewRouter(service, auth.RouterConfig{CookieName: opts.CookieName})

	handleOAuthUser := func(provider string, token *oauth2lib.Token, userInfo map[string]any, w http.ResponseWriter, r *http.Request) {
		email, _ := userInfo["email"].(string)
		name, _ := userInfo["name"].(string)
		router.CompleteOAuth(w, r, provider, email, name, oauth2.CallbackTarget(r))
	}
	if opts.GoogleAuth {
		router.AddProvider("google", oauth2.NewGoogleOAuth2("", "", opts.BaseURL+"/auth/google/callback/", handleOAuthUser))
	}
	if opts.GithubAuth {
		router.AddProvider("github", oauth2.NewGithubOAuth2("", "", opts.BaseURL+"/auth/github/callback/", handleOAuthUser))
	}

	logger.Info("starting auth server", "addr", opts.Addr, "data", opts.DataDir)
	server := &http.Server{
		Addr:         opts.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}
