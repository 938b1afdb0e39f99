package main

import (
	"github.com/angrychimp/janitor/sgaudit"
	"github.com/spf13/cobra"
)

// NewSgAuditCmd creates the sg-audit command.
func NewSgAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sg-audit",
		Short: "Find (and optionally delete) orphaned security groups",
		Long: `Sg-audit lists every security group in a VPC and checks EC2,
classic and v2 load balancers, EFS, RDS, ElastiCache, Lambda, and
Redshift for references to them. Groups nothing references are
reported as orphans.

With --delete the orphans are removed; a group that is already gone
counts as deleted.

Examples:
  # report orphaned groups
  janitor sg-audit --vpc-id vpc-0abc123

  # remove them
  janitor sg-audit --vpc-id vpc-0abc123 --delete`,
		RunE: runSgAuditCmd,
	}

	cmd.Flags().String("vpc-id", "", "VPC to scan for security groups (required)")
	cmd.Flags().Bool("delete", false, "Delete the orphaned groups instead of just reporting them")
	cmd.MarkFlagRequired("vpc-id")

	return cmd
}

func runSgAuditCmd(cmd *cobra.Command, args []string) error {
	sess, err := newSession(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd)

	vpcID, _ := cmd.Flags().GetString("vpc-id")
	del, _ := cmd.Flags().GetBool("delete")

	audit, err := sgaudit.New(&sgaudit.AuditInput{
		Session: sess,
		VpcID:   &vpcID,
		Logger:  &logger,
	})
	if err != nil {
		return err
	}
	if err = audit.Start(); err != nil {
		return err
	}

	if del {
		deleted, derr := audit.DeleteOrphans()
		logger.Info("deleted orphaned security groups", "deleted", deleted)
		return derr
	}
	return printJSON(struct {
		VpcID   string   `json:"vpc_id"`
		Orphans []string `json:"orphans"`
	}{vpcID, audit.Orphans()})
}
