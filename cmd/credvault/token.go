package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	httphandler "github.com/ericfisherdev/credvault/internal/adapter/driving/http"
	"github.com/ericfisherdev/credvault/internal/config"
	"github.com/ericfisherdev/credvault/internal/domain/model"
)

const tokenCmdExample = `# Issue a one-hour token for user-1
credvault token user-1 --ttl 1h`

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:     "token <user-id>",
	Short:   "Sign a bearer token for a user with CREDVAULT_JWT_SECRET",
	Example: tokenCmdExample,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := model.ValidateUserID(args[0]); err != nil {
			return err
		}

		auth, err := config.LoadAuth()
		if err != nil {
			return err
		}

		tok, err := httphandler.GenerateToken(args[0], auth.JWTSecret, auth.JWTIssuer, tokenTTL)
		if err != nil {
			return fmt.Errorf("sign token: %w", err)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
		return err
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "token lifetime; 0 issues a token without expiry")
}
