package ebsbackup

import (
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/inconshreveable/log15"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() log15.Logger {
	logger := log15.New()
	logger.SetHandler(log15.DiscardHandler())
	return logger
}

func tag(key, value string) *ec2.Tag {
	return &ec2.Tag{Key: aws.String(key), Value: aws.String(value)}
}

func TestNewDefaults(t *testing.T) {
	sess := session.Must(session.NewSession(&aws.Config{Region: aws.String("us-east-1")}))
	logger := testLogger()

	w, err := New(&WorkerInput{Session: sess, Logger: &logger})
	require.NoError(t, err)
	assert.Equal(t, 21, w.retentionDays)

	days := 7
	w, err = New(&WorkerInput{Session: sess, Logger: &logger, DefaultRetentionDays: &days})
	require.NoError(t, err)
	assert.Equal(t, 7, w.retentionDays)

	_, err = New(&WorkerInput{Logger: &logger})
	assert.EqualError(t, err, "Session is required")

	_, err = New(&WorkerInput{Session: sess})
	assert.EqualError(t, err, "log15 logger is required")
}

func TestExpired(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		start     time.Time
		retention int
		want      bool
	}{
		{"well past retention", now.AddDate(0, 0, -30), 21, true},
		{"one day past", now.Add(-22*24*time.Hour - time.Minute), 21, true},
		{"exactly at boundary", now.Add(-21 * 24 * time.Hour), 21, false},
		{"within retention", now.AddDate(0, 0, -5), 21, false},
		{"brand new", now.Add(-time.Hour), 21, false},
		{"short retention", now.AddDate(0, 0, -2), 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, expired(tt.start, tt.retention, now))
		})
	}
}

func TestRetentionFromTags(t *testing.T) {
	assert.Equal(t, 14, retentionFromTags([]*ec2.Tag{
		tag("Name", "data-vol"),
		tag("BackupRetentionDays", "14"),
	}))
	assert.Equal(t, 0, retentionFromTags([]*ec2.Tag{
		tag("BackupRetentionDays", "two weeks"),
	}))
	assert.Equal(t, 0, retentionFromTags([]*ec2.Tag{
		tag("Name", "data-vol"),
	}))
	assert.Equal(t, 0, retentionFromTags(nil))
}

func TestBackupTagsStripped(t *testing.T) {
	kept := backupTags([]*ec2.Tag{
		tag("Name", "data-vol"),
		tag("backup", "true"),
		tag("Backup", "true"),
		tag("BackupRetentionDays", "14"),
		tag("team", "infra"),
	})
	var keys []string
	for _, kt := range kept {
		keys = append(keys, *kt.Key)
	}
	assert.Equal(t, []string{"Name", "team"}, keys)

	assert.Empty(t, backupTags([]*ec2.Tag{tag("backup", "true")}))
	assert.Empty(t, backupTags(nil))
}
