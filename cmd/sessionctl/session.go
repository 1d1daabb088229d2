package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// storageFlags select where the engine keeps its session between runs.
type storageFlags struct {
	baseURL   string
	redisAddr string
	redisMem  bool
	timeout   time.Duration
}

func (f *storageFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.baseURL, "base-url", "", "auth API base URL (overrides the environment)")
	cmd.Flags().StringVar(&f.redisAddr, "redis-addr", "", "redis address; if empty, REDIS_ADDR env or in-memory storage is used")
	cmd.Flags().BoolVar(&f.redisMem, "redis-mem", false, "run against an embedded miniredis")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 10*time.Second, "overall command timeout")
}

// buildEngine assembles an engine from the environment and flags. The returned cleanup
// closes the engine and any redis resources.
func (f *storageFlags) buildEngine(g *globals) (*goSession.Engine, func(), error) {
	cfg, err := goSession.ConfigFromEnv(g.envPrefix)
	if err != nil {
		return nil, nil, err
	}
	if f.baseURL != "" {
		cfg.Auth.BaseURL = f.baseURL
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	b := goSession.New().WithConfig(cfg).WithLogger(g.log())

	addr := f.redisAddr
	if addr == "" && !f.redisMem {
		addr = os.Getenv("REDIS_ADDR")
	}
	if f.redisMem {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		closers = append(closers, mr.Close)
		addr = mr.Addr()
	}
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		closers = append(closers, func() { _ = client.Close() })
		b = b.WithRedis(client)
	}

	e, err := b.Build()
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	closers = append(closers, e.Close)
	return e, cleanup, nil
}

func newLoginCmd(g *globals) *cobra.Command {
	var (
		sf       storageFlags
		email    string
		password string
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		Long: `Sign in against the configured auth API. With --redis-addr the session is
written to redis and later commands pick it up.

The password is read from --password or SESSIONCTL_PASSWORD.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				password = os.Getenv("SESSIONCTL_PASSWORD")
			}
			if email == "" || password == "" {
				return errors.New("email and password are required")
			}

			e, cleanup, err := sf.buildEngine(g)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, cancel := context.WithTimeout(cmd.Context(), sf.timeout)
			defer cancel()
			if _, err := e.Start(ctx, goSession.StartOptions{}); err != nil {
				return err
			}
			res, err := e.Login(ctx, email, password)
			if err != nil {
				return err
			}
			if g.jsonOut {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s (%s), role %s\n", res.User.Email, res.User.ID, res.Role)
			return nil
		},
	}
	sf.register(cmd)
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}

type statusReport struct {
	State         string                  `json:"state"`
	Authenticated bool                    `json:"authenticated"`
	Role          string                  `json:"role,omitempty"`
	Error         string                  `json:"error,omitempty"`
	Session       *goSession.SessionInfo  `json:"session,omitempty"`
	Health        *goSession.HealthStatus `json:"health"`
}

func newStatusCmd(g *globals) *cobra.Command {
	var (
		sf      storageFlags
		refresh bool
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the stored session and storage health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, cleanup, err := sf.buildEngine(g)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, cancel := context.WithTimeout(cmd.Context(), sf.timeout)
			defer cancel()
			if _, err := e.Start(ctx, goSession.StartOptions{}); err != nil {
				return err
			}
			if refresh {
				if r := e.Refresh(ctx); !r.Success {
					g.log().Warn("sessionctl: renewal failed", "error_type", string(r.ErrorType), "error", r.Err)
				}
			}

			st := e.Status()
			health := e.Health(ctx)
			report := statusReport{
				State:         st.State.String(),
				Authenticated: st.IsAuthenticated,
				Role:          st.Role.String(),
				Error:         st.Error,
				Session:       e.SessionInfo(),
				Health:        &health,
			}
			if g.jsonOut {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "state:   %s\n", report.State)
			if report.Session != nil {
				fmt.Fprintf(out, "user:    %s (%s)\n", report.Session.Email, report.Session.UserID)
				fmt.Fprintf(out, "role:    %s\n", report.Role)
				fmt.Fprintf(out, "expires: %s\n", report.Session.ExpiresAt.Format(time.RFC3339))
			}
			if report.Error != "" {
				fmt.Fprintf(out, "error:   %s\n", report.Error)
			}
			fmt.Fprintf(out, "storage: available=%t latency=%s\n", health.StorageAvailable, health.StorageLatency.Round(time.Microsecond))
			return nil
		},
	}
	sf.register(cmd)
	cmd.Flags().BoolVar(&refresh, "refresh", false, "renew the access token before reporting")
	return cmd
}
