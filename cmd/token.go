package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/theapemachine/docprovider/pkg/auth"
	"github.com/theapemachine/docprovider/pkg/client"
)

var (
	tokenRootsFlag   []string
	tokenRevokeFlag  bool
	tokenRefreshFlag string

	tokenCmd = &cobra.Command{
		Use:   "token [SUBJECT]",
		Short: "Issue, refresh or revoke a bearer token for the HTTP and MCP endpoints",
		Long:  longToken,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if tokenRevokeFlag || tokenRefreshFlag != "" {
				return remoteTokenOp(cmd)
			}

			if len(args) != 1 {
				return fmt.Errorf("a subject is required to issue a token")
			}

			if !cfg.Auth.Enabled {
				return fmt.Errorf("auth is disabled in the config; tokens would be ignored")
			}

			svc := auth.NewService(cfg.Auth.SigningKey, cfg.Auth.RateLimit)

			tok, err := svc.IssueToken(args[0], tokenRootsFlag...)
			if err != nil {
				return err
			}

			return printToken(cmd, tok)
		},
	}
)

// remoteTokenOp refreshes or revokes against --remote, which holds the revocations.
func remoteTokenOp(cmd *cobra.Command) error {
	if remoteFlag == "" {
		return fmt.Errorf("--refresh and --revoke need --remote")
	}

	c := client.NewDocumentClient(remoteFlag, remoteToken())

	if tokenRefreshFlag != "" {
		tok, err := c.Refresh(cmd.Context(), tokenRefreshFlag)
		if err != nil {
			return err
		}
		return printToken(cmd, tok)
	}

	if remoteToken() == "" {
		return fmt.Errorf("--revoke needs the token in --token or $DOCPROVIDER_TOKEN")
	}

	if err := c.Revoke(cmd.Context()); err != nil {
		return err
	}

	fmt.Fprintln(cmd.ErrOrStderr(), "revoked")
	return nil
}

func printToken(cmd *cobra.Command, tok *auth.TokenInfo) error {
	if jsonFlag {
		return printJSON(cmd.OutOrStdout(), tok)
	}

	fmt.Fprintln(cmd.OutOrStdout(), tok.Token)
	fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", tok.ExpiresAt.Format(time.RFC3339))
	return nil
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().StringSliceVarP(&tokenRootsFlag, "root", "r", nil, "limit the token to these roots (repeatable)")
	tokenCmd.Flags().BoolVar(&jsonFlag, "json", false, "print the token with its refresh token as JSON")
	tokenCmd.Flags().BoolVar(&tokenRevokeFlag, "revoke", false, "revoke the --token on the --remote server")
	tokenCmd.Flags().StringVar(&tokenRefreshFlag, "refresh", "", "trade this refresh token for a new pair on the --remote server")
	tokenCmd.Flags().StringVar(&remoteFlag, "remote", "", "docprovider server URL for --refresh and --revoke")
	tokenCmd.Flags().StringVar(&tokenFlag, "token", "", "bearer token to revoke (default $DOCPROVIDER_TOKEN)")
	tokenCmd.MarkFlagsMutuallyExclusive("revoke", "refresh")
}

var longToken = `
Sign a token with auth.signing_key. Without --root the token sees every
root; with it, only the roots named.

Refreshing and revoking happen on a running server, which keeps the list of
revoked tokens until they expire.

Examples:
  docprovider token alice --root home
  curl -H "Authorization: Bearer $(docprovider token alice)" localhost:3210/.well-known/roots.json
  docprovider token --remote http://localhost:3210 --refresh "$REFRESH_TOKEN"
  docprovider token --remote http://localhost:3210 --token "$TOKEN" --revoke
`
