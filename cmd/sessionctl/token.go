package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/jwt"
	"github.com/spf13/cobra"
)

func newTokenCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Decode and mint access tokens",
	}
	cmd.AddCommand(newTokenInspectCmd(g), newTokenIssueCmd())
	return cmd
}

type tokenReport struct {
	Valid          bool      `json:"valid"`
	Expired        bool      `json:"expired"`
	Verified       *bool     `json:"verified,omitempty"`
	UserID         string    `json:"userId,omitempty"`
	Email          string    `json:"email,omitempty"`
	Role           string    `json:"role,omitempty"`
	IssuedAt       time.Time `json:"issuedAt,omitzero"`
	ExpiresAt      time.Time `json:"expiresAt,omitzero"`
	ExpiresIn      string    `json:"expiresIn,omitempty"`
	WillExpireSoon bool      `json:"willExpireSoon"`
}

func newTokenInspectCmd(g *globals) *cobra.Command {
	var (
		threshold time.Duration
		secret    string
	)
	cmd := &cobra.Command{
		Use:   "inspect [TOKEN]",
		Short: "Decode a token's claims",
		Long: `Decode TOKEN, or a token read from stdin, the way the engine does: the
signature is not checked unless --secret is given for an HS256 token.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := readToken(cmd, args)
			if err != nil {
				return err
			}
			policy := jwt.NewPolicy(jwt.WithExpiryThreshold(threshold))
			v := policy.Validate(token)
			report := tokenReport{Valid: v.IsValid, Expired: v.IsExpired}
			if v.Payload != nil {
				report.UserID = v.Payload.UserID
				report.Email = v.Payload.Email
				report.Role = v.Payload.Role
			}
			if info := policy.Info(token); info != nil {
				report.IssuedAt = info.IssuedAt
				report.ExpiresAt = info.ExpiresAt
				report.ExpiresIn = info.ExpiresIn.Round(time.Second).String()
				report.WillExpireSoon = info.WillExpireSoon
			}
			if secret != "" {
				verified := verifyHS256(token, secret) == nil
				report.Verified = &verified
			}

			if g.jsonOut {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			out := cmd.OutOrStdout()
			if !report.Valid {
				fmt.Fprintln(out, "invalid: token cannot be decoded or has no expiry")
				return errors.New("invalid token")
			}
			fmt.Fprintf(out, "user:       %s\n", report.UserID)
			fmt.Fprintf(out, "email:      %s\n", report.Email)
			fmt.Fprintf(out, "role:       %s\n", report.Role)
			if !report.IssuedAt.IsZero() {
				fmt.Fprintf(out, "issued at:  %s\n", report.IssuedAt.Format(time.RFC3339))
			}
			fmt.Fprintf(out, "expires at: %s (in %s)\n", report.ExpiresAt.Format(time.RFC3339), report.ExpiresIn)
			fmt.Fprintf(out, "expired:    %t\n", report.Expired)
			fmt.Fprintf(out, "renew soon: %t\n", report.WillExpireSoon)
			if report.Verified != nil {
				fmt.Fprintf(out, "verified:   %t\n", *report.Verified)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&threshold, "threshold", 5*time.Minute, "expiry threshold for the renew-soon check")
	cmd.Flags().StringVar(&secret, "secret", "", "HS256 secret to verify the signature with")
	return cmd
}

func newTokenIssueCmd() *cobra.Command {
	var (
		secret string
		userID string
		email  string
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Mint an HS256 token for a development auth server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			signer, err := jwt.NewSigner(jwt.SignerConfig{
				AccessTTL:     ttl,
				SigningMethod: jwt.MethodHS256,
				PrivateKey:    []byte(secret),
			})
			if err != nil {
				return fmt.Errorf("signer: %w", err)
			}
			token, err := signer.Issue(userID, email, strings.ToUpper(role))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "HS256 signing secret")
	cmd.Flags().StringVar(&userID, "user", "", "user id claim")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().StringVar(&role, "role", "", "role claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 15*time.Minute, "token lifetime")
	_ = cmd.MarkFlagRequired("secret")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func readToken(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return strings.TrimSpace(args[0]), nil
	}
	sc := bufio.NewScanner(cmd.InOrStdin())
	sc.Buffer(make([]byte, 0, 4096), 64*1024)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", err
		}
		return "", errors.New("no token given")
	}
	return strings.TrimSpace(sc.Text()), nil
}

func verifyHS256(token, secret string) error {
	signer, err := jwt.NewSigner(jwt.SignerConfig{
		AccessTTL:     time.Minute,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte(secret),
	})
	if err != nil {
		return err
	}
	_, err = signer.Verify(token)
	return err
}
