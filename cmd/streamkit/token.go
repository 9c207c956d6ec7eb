package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/streamkit/errors"
	"github.com/kbukum/streamkit/mockserver"
)

func newTokenCommand(a *app) *cobra.Command {
	var (
		secret  string
		subject string
		user    string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token accepted by the mock server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("secret") {
				secret = a.cfg.Mock.TokenSecret
			}
			if !cmd.Flags().Changed("ttl") {
				ttl = a.cfg.Mock.TokenTTL
			}
			if secret == "" {
				return errors.InvalidConfig("token_secret", "pass --secret or set mock.token_secret")
			}
			tokens, err := mockserver.NewTokens(secret, ttl)
			if err != nil {
				return err
			}
			token, err := tokens.Issue(subject, user)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&secret, "secret", "", "signing secret (defaults to mock.token_secret)")
	f.StringVar(&subject, "subject", "streamkit", "token subject")
	f.StringVar(&user, "user", "", "workflow user carried by the token")
	f.DurationVar(&ttl, "ttl", 0, "token lifetime")
	return cmd
}
