package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"specsharp/internal/auth"
	"specsharp/internal/db"
)

var (
	keyOrg   string
	keyEmail string
	keyRole  string
)

var apikeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage organization API keys",
}

var apikeyIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue an API key; the key is printed once and never stored",
	RunE:  runAPIKeyIssue,
}

func init() {
	f := apikeyIssueCmd.Flags()
	f.StringVar(&keyOrg, "org", "", "organization id")
	f.StringVar(&keyEmail, "email", "", "owner email")
	f.StringVar(&keyRole, "role", auth.RoleMember, "MEMBER or ADMIN")
	_ = apikeyIssueCmd.MarkFlagRequired("org")
	_ = apikeyIssueCmd.MarkFlagRequired("email")

	apikeyCmd.AddCommand(apikeyIssueCmd)
}

func runAPIKeyIssue(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	pool, err := db.Connect(ctx, cfg.Database.URL, db.PoolConfig{
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
	}, logger.Named("db"))
	if err != nil {
		return err
	}
	defer pool.Close()

	return issueKey(ctx, cmd, auth.NewPostgresKeyRepository(pool))
}

func issueKey(ctx context.Context, cmd *cobra.Command, repo auth.KeyRepository) error {
	// Issuing needs no token issuer.
	svc := auth.NewService(repo, nil)
	plain, key, err := svc.IssueKey(ctx, keyOrg, keyEmail, keyRole)
	if err != nil {
		return err
	}
	logger.Info("api key issued",
		zap.String("id", key.ID),
		zap.String("org_id", key.OrgID),
		zap.String("email", key.Email),
		zap.String("role", key.Role),
	)
	fmt.Fprintln(cmd.OutOrStdout(), plain)
	return nil
}
