package main

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/goSession/permission"
	"github.com/MrEthical07/goSession/route"
	"github.com/spf13/cobra"
)

func newRoutesCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Validate and query YAML route tables",
	}
	cmd.AddCommand(newRoutesValidateCmd(g), newRoutesCheckCmd(g))
	return cmd
}

func newRoutesValidateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Report every problem in a route table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := route.LoadFile(args[0], route.Options{})
			if err != nil {
				var cfgErr *route.ConfigError
				if errors.As(err, &cfgErr) {
					for _, p := range cfgErr.Problems {
						fmt.Fprintln(cmd.OutOrStdout(), "problem:", p.String())
					}
					return fmt.Errorf("%s: %d problems", args[0], len(cfgErr.Problems))
				}
				return err
			}
			if g.jsonOut {
				return writeJSON(cmd.OutOrStdout(), table.Entries())
			}
			opts := table.Options()
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d routes, login %s, default %s, unknown routes %s\n",
				len(table.Entries()), opts.LoginRoute, opts.AuthenticatedDefaultRoute, opts.UnknownRoutePolicy)
			return nil
		},
	}
}

func newRoutesCheckCmd(g *globals) *cobra.Command {
	var (
		authenticated bool
		role          string
	)
	cmd := &cobra.Command{
		Use:   "check FILE PATH",
		Short: "Evaluate a path against a route table",
		Long: `Evaluate PATH as an anonymous visitor, or as an authenticated user when
--authenticated or --role is given.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := route.LoadFile(args[0], route.Options{})
			if err != nil {
				return err
			}
			r := permission.ParseRole(role)
			d := table.Evaluate(args[1], authenticated || r.IsSet(), r)
			if g.jsonOut {
				return writeJSON(cmd.OutOrStdout(), d)
			}
			out := cmd.OutOrStdout()
			switch {
			case d.IsAllowed:
				fmt.Fprintf(out, "allow %s", args[1])
			case d.ShouldRedirect:
				fmt.Fprintf(out, "redirect %s -> %s (%s)", args[1], d.RedirectTo, d.Reason)
			default:
				fmt.Fprintf(out, "deny %s (%s)", args[1], d.Reason)
			}
			if d.Matched != "" {
				fmt.Fprintf(out, " matched %s", d.Matched)
			}
			fmt.Fprintln(out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&authenticated, "authenticated", false, "evaluate as a signed-in user")
	cmd.Flags().StringVar(&role, "role", "", "role of the signed-in user")
	return cmd
}
