package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/loykin/prokill/internal/auth"
	"github.com/loykin/prokill/pkg/client"
)

// createTokenCommand creates the token subcommand
func createTokenCommand(c *command) *cobra.Command {
	f := &TokenFlags{}
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token",
		Long: `Sign a bearer token with server.jwt_secret.

Roles: admin (everything), operator (read and kill), viewer (read only).

Examples:
  prokill token --subject=alice --roles=operator
  prokill token --subject=grafana --roles=viewer --ttl=720h --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.Token(*f)
		},
	}
	cmd.Flags().StringVar(&f.Subject, "subject", "", "token subject (user or client name)")
	cmd.Flags().StringSliceVar(&f.Roles, "roles", []string{auth.RoleViewer}, "comma separated roles")
	cmd.Flags().DurationVar(&f.TTL, "ttl", 0, "token lifetime (default server.token_ttl)")
	cmd.Flags().BoolVar(&f.JSON, "json", false, "print JSON")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

// createLoginCommand creates the login subcommand
func createLoginCommand(c *command) *cobra.Command {
	f := &LoginFlags{}
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save a token for a remote API",
		Long: `Check a bearer token against a remote API and save it, so later
commands use that API without --api-url and --token.
The token is read from stdin when --token is omitted.

Examples:
  prokill login --api-url=http://remote:8080/api --token=$TOKEN`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.Login(cmd.Context(), *f)
		},
	}
	cmd.Flags().StringVar(&f.APIUrl, "api-url", "", "remote API URL")
	cmd.Flags().StringVar(&f.Token, "token", "", "bearer token")
	_ = cmd.MarkFlagRequired("api-url")
	return cmd
}

// createLogoutCommand creates the logout subcommand
func createLogoutCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved remote API session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.Logout()
		},
	}
}

func validRole(r string) bool {
	switch r {
	case auth.RoleAdmin, auth.RoleOperator, auth.RoleViewer:
		return true
	}
	return false
}

// Token signs a token with the configured secret.
func (c *command) Token(f TokenFlags) error {
	srv := c.config().Server
	if srv.JWTSecret == "" {
		return errors.New("server.jwt_secret is not set")
	}
	for _, r := range f.Roles {
		if !validRole(r) {
			return fmt.Errorf("unknown role %q", r)
		}
	}
	ttl := f.TTL
	if ttl <= 0 {
		ttl = srv.TokenTTL
	}

	svc, err := auth.NewService(srv.JWTSecret, ttl)
	if err != nil {
		return err
	}
	tok, err := svc.Issue(f.Subject, f.Roles)
	if err != nil {
		return err
	}
	if f.JSON {
		printJSON(c.out, tok)
		return nil
	}
	_, _ = fmt.Fprintln(c.out, tok.Value)
	return nil
}

// tokenClaims reads subject, roles and expiry without checking the
// signature; the server does that when the token is used.
func tokenClaims(token string) (*auth.Claims, error) {
	claims := &auth.Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("malformed token: %w", err)
	}
	return claims, nil
}

// Login verifies the token against the API and saves the session.
func (c *command) Login(ctx context.Context, f LoginFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	token := strings.TrimSpace(f.Token)
	if token == "" {
		_, _ = fmt.Fprint(c.out, "Token: ")
		line, err := bufio.NewReader(c.in).ReadString('\n')
		if err != nil && line == "" {
			return errors.New("no token given")
		}
		token = strings.TrimSpace(line)
	}
	claims, err := tokenClaims(token)
	if err != nil {
		return err
	}

	api := client.New(client.Config{BaseURL: f.APIUrl, Token: token, Timeout: 10 * time.Second})
	if _, err := api.List(ctx, client.ListOptions{Limit: 1}); err != nil {
		if client.IsUnauthorized(err) {
			return fmt.Errorf("login failed: %w", err)
		}
		return err
	}

	s := &Session{
		Token:     token,
		TokenType: "Bearer",
		Subject:   claims.Subject,
		Roles:     claims.Roles,
		ServerURL: f.APIUrl,
	}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	if err := c.sessions.SaveSession(s); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	_, _ = fmt.Fprintf(c.out, "Logged in to %s as %s %v\n", f.APIUrl, s.Subject, s.Roles)
	return nil
}

// Logout removes the saved session.
func (c *command) Logout() error {
	if err := c.sessions.ClearSession(); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(c.out, "Logged out")
	return nil
}
