package cmd

import (
	"fmt"

	"github.com/jmehdipour/linkdb/internal/config"
	"github.com/jmehdipour/linkdb/internal/db"
	"github.com/jmehdipour/linkdb/internal/repository"
	"github.com/jmehdipour/linkdb/internal/service/credential"
	"github.com/spf13/cobra"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Operator credential tooling",
}

var keysIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue new API keys",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		count, _ := cmd.Flags().GetInt("count")
		if count <= 0 {
			return fmt.Errorf("--count must be positive")
		}
		return withCredentials(func(svc *credential.Service) error {
			for i := 0; i < count; i++ {
				c, err := svc.Issue(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), c.APIKey)
			}
			return nil
		})
	},
}

var keysRevokeCmd = &cobra.Command{
	Use:   "revoke <api-key>...",
	Short: "Revoke API keys; tables of their namespaces are kept",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCredentials(func(svc *credential.Service) error {
			for _, key := range args {
				ok, err := svc.Revoke(cmd.Context(), key)
				if err != nil {
					return fmt.Errorf("revoke %s: %w", key, err)
				}
				if ok {
					fmt.Fprintf(cmd.OutOrStdout(), "revoked %s\n", key)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "unknown %s\n", key)
				}
			}
			return nil
		})
	},
}

func init() {
	keysIssueCmd.Flags().Int("count", 1, "number of keys to issue")
	keysCmd.AddCommand(keysIssueCmd)
	keysCmd.AddCommand(keysRevokeCmd)
}

func withCredentials(fn func(*credential.Service) error) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(credential.New(store, repository.NewCredentialsRepository(store.DB, db.IsDuplicateKey)))
}
