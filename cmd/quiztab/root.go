package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mind-engage/quiztab/internal/client"
	"github.com/mind-engage/quiztab/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:           "quiztab",
	Short:         "Practice question packs against a quiztab server or offline",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("server", envOr("QUIZTAB_SERVER", "http://localhost:8080"), "server base URL")
	pf.String("token", os.Getenv("QUIZTAB_TOKEN"), "bearer token (default: saved by login)")
	pf.String("user", "", "user name for login")
	pf.String("password", "", "password for login")
	pf.Bool("verbose", false, "log session events to stderr")

	rootCmd.AddCommand(loginCmd, playCmd, importCmd, exportCmd, attemptsCmd, validateCmd)
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// tokenPath is where login keeps the token between runs.
func tokenPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "quiztab", "token"), nil
}

func saveToken(tok string) error {
	p, err := tokenPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return err
	}
	return os.WriteFile(p, []byte(tok+"\n"), 0o600)
}

func loadToken() string {
	p, err := tokenPath()
	if err != nil {
		return ""
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

// newClient builds a client from the flags. A --user/--password pair logs in
// first; otherwise --token or the saved token is used.
func newClient(cmd *cobra.Command) (*client.Client, error) {
	server, _ := cmd.Flags().GetString("server")
	tok, _ := cmd.Flags().GetString("token")
	user, _ := cmd.Flags().GetString("user")
	pw, _ := cmd.Flags().GetString("password")

	c := client.New(server)
	if user != "" {
		if _, err := c.Login(cmd.Context(), user, pw); err != nil {
			return nil, err
		}
		return c, nil
	}
	if tok == "" {
		tok = loadToken()
	}
	if tok == "" {
		return nil, errors.New("not logged in: run `quiztab login` or pass --token")
	}
	c.Token = tok
	return c, nil
}

func newLogger(cmd *cobra.Command) *logger.Logger {
	if v, _ := cmd.Flags().GetBool("verbose"); !v {
		return logger.Nop()
	}
	l, err := logger.New("dev")
	if err != nil {
		return logger.Nop()
	}
	return l
}
