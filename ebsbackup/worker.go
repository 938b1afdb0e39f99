// Package ebsbackup manages snapshots for EBS volumes based on a
// "backup" tag. Volumes carrying the tag get a fresh snapshot with
// the volume's tags copied over, and snapshots older than the
// volume's retention window (the BackupRetentionDays tag, or a
// default) are removed.
package ebsbackup

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/inconshreveable/log15"
)

const (
	snapshotDescription = "Auto-generated snapshot via janitor:ebs-backup"
	retentionTagKey     = "BackupRetentionDays"
)

// CleanupReport summarizes one retention sweep over a volume's
// snapshots. Errors holds per-snapshot delete failures; they never
// stop the sweep.
type CleanupReport struct {
	Removed  int      `json:"removed"`
	Retained int      `json:"retained"`
	Errors   []string `json:"errors,omitempty"`
}

// VolumeReport summarizes one backup pass over a volume.
type VolumeReport struct {
	SnapshotID string         `json:"snapshot"`
	Cleanup    *CleanupReport `json:"cleanup,omitempty"`
}

// A Worker contains the properties and methods necessary to snapshot
// backup-tagged volumes and prune expired snapshots. Create a
// WorkerInput object and pass it to this package's New method.
type Worker struct {
	retentionDays int
	session       *session.Session
	log           log15.Logger
}

// WorkerInput provides configuration inputs for a new Worker.
type WorkerInput struct {
	// AWS Session to use for credentials for this worker.
	//
	// Session is a required field
	Session *session.Session

	// Retention window applied to volumes that carry the backup tag
	// but no BackupRetentionDays tag.
	// Default: 21
	DefaultRetentionDays *int

	// Worker uses log15 (https://github.com/inconshreveable/log15)
	// as an opinioned logging framework. A logger must be provided.
	Logger *log15.Logger
}

// New returns a Worker object with defaults applied for any property
// that was not specified in the WorkerInput object.
func New(input *WorkerInput) (w *Worker, err error) {
	var wk Worker

	if input.Session == nil {
		err = errors.New("Session is required")
		return &wk, err
	}
	wk.session = input.Session

	DefaultRetentionDays := 21
	if input.DefaultRetentionDays == nil {
		input.DefaultRetentionDays = &DefaultRetentionDays
	}
	wk.retentionDays = *input.DefaultRetentionDays

	if input.Logger == nil {
		err = errors.New("log15 logger is required")
		return &wk, err
	}
	wk.log = *input.Logger
	return &wk, err
}

// SnapshotVolume creates a snapshot of one volume, copies its
// non-backup tags to the snapshot, and runs retention cleanup if the
// volume carries a BackupRetentionDays tag.
func (w *Worker) SnapshotVolume(volID string) (report VolumeReport, err error) {
	svc := ec2.New(w.session)
	dvi := ec2.DescribeVolumesInput{
		VolumeIds: []*string{&volID},
	}
	volumes, err := svc.DescribeVolumes(&dvi)
	if err != nil {
		return report, err
	}
	if len(volumes.Volumes) == 0 {
		err = fmt.Errorf("volume %s not found", volID)
		return report, err
	}
	volume := volumes.Volumes[0]

	csi := ec2.CreateSnapshotInput{
		VolumeId:    volume.VolumeId,
		Description: aws.String(snapshotDescription),
	}
	snap, err := svc.CreateSnapshot(&csi)
	if err != nil {
		return report, err
	}
	report.SnapshotID = *snap.SnapshotId
	w.log.Info("created snapshot", "snapshot", report.SnapshotID, "volume", volID)

	tags := backupTags(volume.Tags)
	if len(tags) > 0 {
		cti := ec2.CreateTagsInput{
			Resources: []*string{snap.SnapshotId},
			Tags:      tags,
		}
		_, err = svc.CreateTags(&cti)
		if err != nil {
			return report, err
		}
	}

	retention := retentionFromTags(volume.Tags)
	if retention > 0 {
		cleanup, cerr := w.cleanupSnapshots(volID, retention)
		if cerr != nil {
			return report, cerr
		}
		report.Cleanup = &cleanup
	}
	return report, err
}

// SnapshotAll runs SnapshotVolume for every volume that carries the
// backup tag. The first fatal error stops the pass; results already
// collected are returned with it.
func (w *Worker) SnapshotAll() (reports map[string]VolumeReport, err error) {
	reports = make(map[string]VolumeReport)
	volumes, err := w.backupVolumes()
	if err != nil {
		return reports, err
	}
	for _, volume := range volumes {
		report, serr := w.SnapshotVolume(*volume.VolumeId)
		if serr != nil {
			return reports, serr
		}
		reports[*volume.VolumeId] = report
	}
	return reports, err
}

// CleanupAll runs only the retention sweep for every backup-tagged
// volume, at the tag's retention or the worker default.
func (w *Worker) CleanupAll() (reports map[string]CleanupReport, err error) {
	reports = make(map[string]CleanupReport)
	volumes, err := w.backupVolumes()
	if err != nil {
		return reports, err
	}
	for _, volume := range volumes {
		retention := retentionFromTags(volume.Tags)
		if retention <= 0 {
			retention = w.retentionDays
		}
		report, cerr := w.cleanupSnapshots(*volume.VolumeId, retention)
		if cerr != nil {
			return reports, cerr
		}
		reports[*volume.VolumeId] = report
	}
	return reports, err
}

// backupVolumes lists every volume tagged with a backup tag key,
// handling pagination.
func (w *Worker) backupVolumes() (volumes []*ec2.Volume, err error) {
	svc := ec2.New(w.session)
	tagFilterName := "tag-key"
	input := ec2.DescribeVolumesInput{
		Filters: []*ec2.Filter{
			{
				Name:   &tagFilterName,
				Values: []*string{aws.String("backup"), aws.String("Backup")},
			},
		},
	}
	results, err := svc.DescribeVolumes(&input)
	if err != nil {
		return volumes, err
	}
	volumes = results.Volumes
	i := 2
	max := 50
	for i < max {
		if results.NextToken != nil {
			w.log.Debug("handling volume results", "page", i)
			input.NextToken = results.NextToken
			results, err = svc.DescribeVolumes(&input)
			if err != nil {
				return volumes, err
			}
			volumes = append(volumes, results.Volumes...)
		} else {
			break
		}
		i += 1
	}
	return volumes, err
}

// cleanupSnapshots removes the volume's snapshots that are past the
// retention window. A delete failure is recorded in the report and
// the sweep continues; only a listing failure is fatal.
func (w *Worker) cleanupSnapshots(volID string, retentionDays int) (report CleanupReport, err error) {
	svc := ec2.New(w.session)
	volFilterName := "volume-id"
	input := ec2.DescribeSnapshotsInput{
		Filters: []*ec2.Filter{
			{
				Name:   &volFilterName,
				Values: []*string{&volID},
			},
		},
	}
	now := time.Now().UTC()
	i := 1
	max := 50
	for i < max {
		results, derr := svc.DescribeSnapshots(&input)
		if derr != nil {
			return report, derr
		}
		for _, snap := range results.Snapshots {
			if !expired(*snap.StartTime, retentionDays, now) {
				report.Retained++
				continue
			}
			w.log.Info("removing expired snapshot",
				"volume", volID, "snapshot", *snap.SnapshotId,
				"started", snap.StartTime.Format("2006-01-02"),
			)
			dsi := ec2.DeleteSnapshotInput{
				SnapshotId: snap.SnapshotId,
			}
			_, derr = svc.DeleteSnapshot(&dsi)
			if derr != nil {
				w.log.Error("failed to delete snapshot", "snapshot", *snap.SnapshotId, "error", derr.Error())
				report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", *snap.SnapshotId, derr))
				continue
			}
			report.Removed++
		}
		if results.NextToken != nil {
			input.NextToken = results.NextToken
		} else {
			break
		}
		i += 1
	}
	return report, err
}

// expired reports whether a snapshot started more than retentionDays
// full days before now.
func expired(start time.Time, retentionDays int, now time.Time) bool {
	days := int(now.Sub(start) / (24 * time.Hour))
	return days > retentionDays
}

// retentionFromTags returns the volume's BackupRetentionDays tag
// value, or 0 when the tag is missing or unparseable.
func retentionFromTags(tags []*ec2.Tag) int {
	for _, tag := range tags {
		if *tag.Key == retentionTagKey {
			days, err := strconv.Atoi(*tag.Value)
			if err != nil {
				return 0
			}
			return days
		}
	}
	return 0
}

// backupTags filters out the backup control tags so they don't get
// copied onto snapshots.
func backupTags(tags []*ec2.Tag) (kept []*ec2.Tag) {
	for _, tag := range tags {
		if strings.HasPrefix(strings.ToLower(*tag.Key), "backup") {
			continue
		}
		kept = append(kept, tag)
	}
	return kept
}
