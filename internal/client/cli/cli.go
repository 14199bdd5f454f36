// Package cli implements the tmmerge command-line client.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iudanet/tmmerge/internal/client/auth"
	"github.com/iudanet/tmmerge/internal/client/iocli"
	"github.com/iudanet/tmmerge/internal/client/storage"
	"github.com/iudanet/tmmerge/internal/models"
	"github.com/iudanet/tmmerge/internal/validation"
	"github.com/iudanet/tmmerge/pkg/api"
)

const (
	defaultServer = "http://localhost:8080"
	defaultDB     = "tmmerge-client.db"
)

// Sessions управляет локальной сессией, реализуется auth.Service
type Sessions interface {
	Register(ctx context.Context, username, password string) (*auth.RegisterResult, error)
	Login(ctx context.Context, username, password string) (*storage.AuthData, error)
	Session(ctx context.Context) (*storage.AuthData, error)
	Status(ctx context.Context) (*storage.AuthData, error)
	Logout(ctx context.Context) error
}

// Workspaces is the workspace part of the server API, implemented by api.Client.
type Workspaces interface {
	ListUnits(ctx context.Context, token string, ws models.WorkspaceID, docID string) ([]api.TextUnit, error)
	Merge(ctx context.Context, token string, ws models.WorkspaceID, req api.MergeRequest) (*api.TranslationResultsResponse, error)
	Events(ctx context.Context, token string, ws models.WorkspaceID, fn func(api.Event) error) error
}

type Cli struct {
	io         iocli.IO
	workspaces Workspaces
	sessions   Sessions
	history    storage.HistoryStorage
}

func New(io iocli.IO, workspaces Workspaces, sessions Sessions, history storage.HistoryStorage) *Cli {
	return &Cli{
		io:         io,
		workspaces: workspaces,
		sessions:   sessions,
		history:    history,
	}
}

// Options are the global flags every command shares.
type Options struct {
	ServerURL string
	DBPath    string
}

// Builder opens the client dependencies for one command run.
// The returned func releases them.
type Builder func(opts Options) (*Cli, func() error, error)

// NewRootCmd собирает дерево команд
func NewRootCmd(version string, build Builder) *cobra.Command {
	var opts Options

	root := &cobra.Command{
		Use:   "tmmerge",
		Short: "Translation memory merge client",
		Long: `tmmerge is the command-line client of the tmmerge server.

Workspaces are addressed as project/version/locale, for example guide/1.0/de.

Commands:
  register    Create an account
  login       Log in and store the session locally
  logout      End the local session
  status      Show the local session
  units       List the text units of a workspace
  merge       Fill untranslated units from translation memory
  history     Show past merges run from this client
  watch       Stream workspace events`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.ServerURL, "server", envOr("TMMERGE_SERVER", defaultServer), "Server base URL")
	root.PersistentFlags().StringVar(&opts.DBPath, "db", envOr("TMMERGE_CLIENT_DB", defaultDB), "Path to the local session database")

	// run откладывает открытие БД до запуска конкретной команды
	run := func(fn func(ctx context.Context, c *Cli, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			c, release, err := build(opts)
			if err != nil {
				return err
			}
			defer func() { _ = release() }()
			return fn(cmd.Context(), c, args)
		}
	}

	root.AddCommand(
		newRegisterCmd(run),
		newLoginCmd(run),
		newLogoutCmd(run),
		newStatusCmd(run),
		newUnitsCmd(run),
		newMergeCmd(run),
		newHistoryCmd(run),
		newWatchCmd(run),
		newVersionCmd(version),
	)

	return root
}

type runner func(fn func(ctx context.Context, c *Cli, args []string) error) func(*cobra.Command, []string) error

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "tmmerge client %s\n", version)
		},
	}
}

// parseWorkspace разбирает project/version/locale
func parseWorkspace(s string) (models.WorkspaceID, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return models.WorkspaceID{}, fmt.Errorf("workspace must be project/version/locale, got %q", s)
	}
	ws := models.WorkspaceID{ProjectSlug: parts[0], VersionSlug: parts[1], LocaleID: parts[2]}
	if err := validation.ValidateSlug("project", ws.ProjectSlug); err != nil {
		return models.WorkspaceID{}, err
	}
	if err := validation.ValidateSlug("version", ws.VersionSlug); err != nil {
		return models.WorkspaceID{}, err
	}
	if err := validation.ValidateLocaleID(ws.LocaleID); err != nil {
		return models.WorkspaceID{}, err
	}
	return ws, nil
}

// session возвращает действующую сессию или понятную ошибку
func (c *Cli) session(ctx context.Context) (*storage.AuthData, error) {
	data, err := c.sessions.Session(ctx)
	if errors.Is(err, auth.ErrNotAuthenticated) {
		return nil, errors.New("not authenticated. Please run 'tmmerge login' first")
	}
	return data, err
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
