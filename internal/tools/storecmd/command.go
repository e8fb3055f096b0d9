package storecmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/drugorders/identity-service/internal/config"
	"github.com/drugorders/identity-service/internal/di"
	"github.com/drugorders/identity-service/internal/domain"
	"github.com/drugorders/identity-service/internal/service"
	"github.com/drugorders/identity-service/internal/store"
	"github.com/drugorders/identity-service/internal/tools/common"
	"github.com/drugorders/identity-service/internal/tools/loadgen"
	"github.com/drugorders/identity-service/internal/tools/ui"
)

// AdminPasswordEnv supplies the admin password when --password is omitted.
const AdminPasswordEnv = "IDENTITY_ADMIN_PASSWORD"

type options struct {
	envFile string
	ci      bool
}

// ToolsFactory builds the store-facing part of the object graph.
type ToolsFactory func(ctx context.Context, cfg *config.Config) (*di.StoreTools, func(), error)

func NewStoreCommand() *cobra.Command {
	return newStoreCommand(di.InitializeStoreTools)
}

func newStoreCommand(factory ToolsFactory) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{Use: "store", Short: "Inspect and administer the identity store"}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "optional env file applied before loading config")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")
	cmd.AddCommand(newCheckCommand(opts, factory))
	cmd.AddCommand(newCreateAdminCommand(opts, factory))
	cmd.AddCommand(newRevokeTokensCommand(opts, factory))
	return cmd
}

func newCheckCommand(opts *options, factory ToolsFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify connectivity, script support and counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, factory, "store check", func(ctx context.Context, tools *di.StoreTools) ([]string, error) {
				details := []string{"redis ping: ok", fmt.Sprintf("scripts loaded: %d", len(store.AllScripts()))}
				users, err := tools.Users.Count(ctx)
				if err != nil {
					return details, err
				}
				lastID, err := tools.Users.CounterValue(ctx)
				if err != nil {
					return details, err
				}
				return append(details, fmt.Sprintf("users=%d last_id=%d", users, lastID)), nil
			})
		},
	}
}

func newCreateAdminCommand(opts *options, factory ToolsFactory) *cobra.Command {
	var (
		username  string
		password  string
		email     string
		staffOnly bool
	)
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Provision a privileged account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv(AdminPasswordEnv)
			}
			if password == "" {
				return fmt.Errorf("password is required: pass --password or set %s", AdminPasswordEnv)
			}
			priv := domain.Privileges{IsStaff: true, IsSuperuser: !staffOnly}
			return run(cmd, opts, factory, "store create-admin", func(ctx context.Context, tools *di.StoreTools) ([]string, error) {
				user, err := tools.Auth.Provision(ctx, service.RegisterInput{Username: username, Password: password, Email: email}, priv)
				if errors.Is(err, domain.ErrUserAlreadyExists) {
					return []string{"username " + username + " is taken"}, err
				}
				if err != nil {
					return nil, err
				}
				return []string{fmt.Sprintf("created id=%d username=%s staff=%t superuser=%t", user.ID, user.Username, user.IsStaff, user.IsSuperuser)}, nil
			})
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "account username")
	cmd.Flags().StringVar(&password, "password", "", "account password (defaults to $"+AdminPasswordEnv+")")
	cmd.Flags().StringVar(&email, "email", "", "optional email")
	cmd.Flags().BoolVar(&staffOnly, "staff-only", false, "grant staff without superuser")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newRevokeTokensCommand(opts *options, factory ToolsFactory) *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "revoke-tokens",
		Short: "Revoke every bearer token issued to a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, factory, "store revoke-tokens", func(ctx context.Context, tools *di.StoreTools) ([]string, error) {
				n, err := tools.Tokens.RevokeAll(ctx, username)
				if err != nil {
					return nil, err
				}
				return []string{fmt.Sprintf("revoked %d token(s) for %s", n, username)}, nil
			})
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "account username")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func run(cmd *cobra.Command, opts *options, factory ToolsFactory, title string, fn func(context.Context, *di.StoreTools) ([]string, error)) error {
	if err := common.LoadEnvFile(opts.envFile); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	work := func(ctx context.Context) ([]string, error) {
		tools, cleanup, err := factory(ctx, cfg)
		if err != nil {
			return nil, err
		}
		defer cleanup()
		return fn(ctx, tools)
	}

	var details []string
	if opts.ci {
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()
		details, err = work(ctx)
		common.WriteCIResult(cmd.OutOrStdout(), err == nil, title, details, err)
	} else {
		details, err = ui.RunTo(cmd.OutOrStdout(), title, time.Minute, work)
	}
	if err != nil {
		cmd.SilenceUsage = true
		return err
	}
	return nil
}

func NewLoadgenCommand() *cobra.Command {
	cfg := loadgen.Config{}
	var ci bool
	cmd := &cobra.Command{
		Use:   "loadgen",
		Short: "Generate register, login and resolve traffic against a running service",
		RunE: func(cmd *cobra.Command, args []string) error {
			work := func(ctx context.Context) ([]string, error) {
				res, err := loadgen.Run(ctx, cfg)
				details := []string{fmt.Sprintf("total=%d failures=%d", res.TotalRequests, res.Failures)}
				for _, class := range []string{"2xx", "3xx", "4xx", "5xx", "other", "error"} {
					if n := res.StatusClasses[class]; n > 0 {
						details = append(details, fmt.Sprintf("%s=%d", class, n))
					}
				}
				if err == nil && res.Failures > 0 {
					err = fmt.Errorf("%d request(s) failed", res.Failures)
				}
				return details, err
			}
			title := "loadgen " + strings.ToLower(cfg.Profile)
			var err error
			if ci {
				var details []string
				details, err = work(cmd.Context())
				common.WriteCIResult(cmd.OutOrStdout(), err == nil, title, details, err)
			} else {
				_, err = ui.RunTo(cmd.OutOrStdout(), title, cfg.Duration+30*time.Second, work)
			}
			if err != nil {
				cmd.SilenceUsage = true
			}
			return err
		},
	}
	cmd.Flags().StringVar(&cfg.BaseURL, "base-url", "http://localhost:8080", "API base URL")
	cmd.Flags().StringVar(&cfg.Profile, "profile", "mixed", "traffic profile: mixed, auth or resolve")
	cmd.Flags().DurationVar(&cfg.Duration, "duration", 10*time.Second, "how long to generate traffic")
	cmd.Flags().IntVar(&cfg.RPS, "rps", 20, "requests per second across workers")
	cmd.Flags().IntVar(&cfg.Concurrency, "concurrency", 4, "concurrent workers, one registered user each")
	cmd.Flags().Int64Var(&cfg.Seed, "seed", 42, "seed for generated credentials")
	cmd.Flags().BoolVar(&ci, "ci", false, "non-interactive machine-readable output")
	return cmd
}
