package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/tmmerge/internal/client/auth"
)

func newRegisterCmd(run runner) *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account on the server",
		Long:  `Create an account. The first account registered on a server becomes its administrator.`,
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, c *Cli, _ []string) error {
			return c.runRegister(ctx, username)
		}),
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username (prompted when empty)")
	return cmd
}

func (c *Cli) runRegister(ctx context.Context, username string) error {
	username, password, err := c.readCredentials(username, true)
	if err != nil {
		return err
	}

	res, err := c.sessions.Register(ctx, username, password)
	if err != nil {
		return err
	}

	c.io.Println("✓ Registration successful!")
	c.io.Printf("Username: %s\n", res.Username)
	c.io.Printf("User ID:  %s\n", res.UserID)
	if res.Admin {
		c.io.Println("This account is the server administrator.")
	}
	c.io.Println("Run 'tmmerge login' to start a session.")
	return nil
}

func newLoginCmd(run runner) *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session locally",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, c *Cli, _ []string) error {
			return c.runLogin(ctx, username)
		}),
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username (prompted when empty)")
	return cmd
}

func (c *Cli) runLogin(ctx context.Context, username string) error {
	username, password, err := c.readCredentials(username, false)
	if err != nil {
		return err
	}

	data, err := c.sessions.Login(ctx, username, password)
	if err != nil {
		return err
	}

	c.io.Println("✓ Login successful!")
	c.io.Printf("Username: %s\n", data.Username)
	c.io.Printf("Access token expires: %s\n", time.Unix(data.ExpiresAt, 0).Format(time.RFC3339))
	return nil
}

func newLogoutCmd(run runner) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the local session",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, c *Cli, _ []string) error {
			return c.runLogout(ctx)
		}),
	}
}

func (c *Cli) runLogout(ctx context.Context) error {
	err := c.sessions.Logout(ctx)
	if errors.Is(err, auth.ErrNotAuthenticated) {
		c.io.Println("Not logged in.")
		return nil
	}
	if err != nil {
		return err
	}
	c.io.Println("✓ Logged out.")
	return nil
}

func newStatusCmd(run runner) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the local session",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, c *Cli, _ []string) error {
			return c.runStatus(ctx, time.Now())
		}),
	}
}

func (c *Cli) runStatus(ctx context.Context, now time.Time) error {
	data, err := c.sessions.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to check authentication: %w", err)
	}
	if data == nil {
		c.io.Println("Status: Not authenticated")
		c.io.Println("Run 'tmmerge login' to authenticate.")
		return nil
	}

	expiresAt := time.Unix(data.ExpiresAt, 0)
	c.io.Println("Status: Authenticated")
	c.io.Printf("Username: %s\n", data.Username)
	c.io.Printf("Client ID: %s\n", data.ClientID)
	c.io.Printf("Token expires: %s\n", expiresAt.Format(time.RFC3339))
	if remaining := expiresAt.Sub(now); remaining > 0 {
		c.io.Printf("Time remaining: %s\n", remaining.Round(time.Second))
	} else {
		// обновится при следующей команде по refresh token
		c.io.Println("Access token expired, it is refreshed on the next request.")
	}
	return nil
}

func (c *Cli) readCredentials(username string, confirm bool) (string, string, error) {
	var err error
	if username == "" {
		username, err = c.io.ReadInput("Username: ")
		if err != nil {
			return "", "", fmt.Errorf("failed to read username: %w", err)
		}
	}

	password, err := c.io.ReadPassword("Password: ")
	if err != nil {
		return "", "", fmt.Errorf("failed to read password: %w", err)
	}
	if password == "" {
		return "", "", errors.New("password cannot be empty")
	}

	if confirm {
		again, err := c.io.ReadPassword("Confirm password: ")
		if err != nil {
			return "", "", fmt.Errorf("failed to read password: %w", err)
		}
		if again != password {
			return "", "", errors.New("passwords do not match")
		}
	}
	return username, password, nil
}
