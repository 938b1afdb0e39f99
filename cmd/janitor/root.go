// Package main provides the entry point for the janitor CLI.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/inconshreveable/log15"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for janitor.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "janitor",
		Short: "Cleanup tools for AWS accounts",
		Long: `janitor bundles a few small operator tools for AWS accounts:
bulk S3 object deletion, orphaned security group auditing, and
tag-driven EBS snapshot backups.

Credentials are resolved the usual way (environment, shared config,
instance role); use --profile and --region to override.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("profile", "", "AWS shared config profile to use")
	cmd.PersistentFlags().String("region", "", "AWS region override")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(NewPurgeCmd())
	cmd.AddCommand(NewSgAuditCmd())
	cmd.AddCommand(NewEbsBackupCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newSession builds the shared AWS session from the global flags.
func newSession(cmd *cobra.Command) (*session.Session, error) {
	profile, _ := cmd.Flags().GetString("profile")
	region, _ := cmd.Flags().GetString("region")
	opts := session.Options{
		Profile:           profile,
		SharedConfigState: session.SharedConfigEnable,
	}
	if region != "" {
		opts.Config = aws.Config{Region: aws.String(region)}
	}
	sess, err := session.NewSessionWithOptions(opts)
	if err != nil {
		return nil, fmt.Errorf("building AWS session: %w", err)
	}
	return sess, nil
}

// newLogger builds the log15 logger handed to the library packages,
// Info by default and Debug with --verbose.
func newLogger(cmd *cobra.Command) log15.Logger {
	lvl := log15.LvlInfo
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		lvl = log15.LvlDebug
	}
	logger := log15.New()
	logger.SetHandler(
		log15.LvlFilterHandler(
			lvl,
			log15.StreamHandler(os.Stdout, log15.LogfmtFormat()),
		),
	)
	return logger
}

// printJSON renders a command's findings to stdout.
func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
