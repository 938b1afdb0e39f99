package main

import (
	"github.com/angrychimp/janitor/purge"
	"github.com/spf13/cobra"
)

// NewPurgeCmd creates the purge command.
func NewPurgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Bulk-delete every object under an S3 prefix",
		Long: `Purge lists an S3 bucket (optionally under a prefix) and deletes
every object it finds using a pool of concurrent workers.

Objects that fail to delete are reported in the summary but never
stop the run. A failure of the listing itself stops the run; whatever
was already deleted is still reported.

Examples:
  # delete everything under tmp/ with the default 8 workers
  janitor purge --bucket my-bucket --prefix tmp/

  # crank up concurrency and fail the command if anything couldn't be deleted
  janitor purge --bucket my-bucket --prefix logs/2019/ --workers 32 --fail-on-errors`,
		RunE: runPurgeCmd,
	}

	cmd.Flags().StringP("bucket", "b", "", "Bucket holding the objects to delete (required)")
	cmd.Flags().StringP("prefix", "p", "", "Only delete keys beginning with this prefix")
	cmd.Flags().IntP("workers", "w", 8, "Number of concurrent delete workers")
	cmd.Flags().Bool("fail-on-errors", false, "Exit non-zero when any object fails to delete")
	cmd.MarkFlagRequired("bucket")

	return cmd
}

func runPurgeCmd(cmd *cobra.Command, args []string) error {
	sess, err := newSession(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd)

	bucket, _ := cmd.Flags().GetString("bucket")
	prefix, _ := cmd.Flags().GetString("prefix")
	workers, _ := cmd.Flags().GetInt("workers")
	failOnErrors, _ := cmd.Flags().GetBool("fail-on-errors")

	p, err := purge.New(&purge.PurgeInput{
		Session:         sess,
		Bucket:          &bucket,
		Prefix:          &prefix,
		Workers:         &workers,
		ErrorOnFailures: &failOnErrors,
		Logger:          &logger,
	})
	if err != nil {
		return err
	}

	runErr := p.Start()
	if err = printJSON(p.Result()); err != nil {
		return err
	}
	return runErr
}
