package main

import (
	"github.com/angrychimp/janitor/ebsbackup"
	"github.com/spf13/cobra"
)

// NewEbsBackupCmd creates the ebs-backup command.
func NewEbsBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ebs-backup",
		Short: "Snapshot backup-tagged EBS volumes and prune old snapshots",
		Long: `Ebs-backup snapshots every EBS volume carrying a backup tag,
copies the volume's tags onto the snapshot, and removes snapshots
older than the volume's BackupRetentionDays tag.

Examples:
  # snapshot every backup-tagged volume
  janitor ebs-backup

  # snapshot one volume
  janitor ebs-backup --volume-id vol-0abc123

  # only prune expired snapshots, using the tag or default retention
  janitor ebs-backup --cleanup`,
		RunE: runEbsBackupCmd,
	}

	cmd.Flags().String("volume-id", "", "Back up a single volume instead of all tagged volumes")
	cmd.Flags().Bool("cleanup", false, "Only prune expired snapshots, create nothing")
	cmd.Flags().Int("retention-days", 21, "Retention for volumes without a BackupRetentionDays tag")
	cmd.MarkFlagsMutuallyExclusive("volume-id", "cleanup")

	return cmd
}

func runEbsBackupCmd(cmd *cobra.Command, args []string) error {
	sess, err := newSession(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd)

	volID, _ := cmd.Flags().GetString("volume-id")
	cleanup, _ := cmd.Flags().GetBool("cleanup")
	retention, _ := cmd.Flags().GetInt("retention-days")

	worker, err := ebsbackup.New(&ebsbackup.WorkerInput{
		Session:              sess,
		DefaultRetentionDays: &retention,
		Logger:               &logger,
	})
	if err != nil {
		return err
	}

	switch {
	case volID != "":
		report, rerr := worker.SnapshotVolume(volID)
		if rerr != nil {
			return rerr
		}
		return printJSON(map[string]ebsbackup.VolumeReport{volID: report})
	case cleanup:
		reports, rerr := worker.CleanupAll()
		if rerr != nil {
			return rerr
		}
		return printJSON(reports)
	default:
		reports, rerr := worker.SnapshotAll()
		if rerr != nil {
			return rerr
		}
		return printJSON(reports)
	}
}
