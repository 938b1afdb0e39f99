package purge

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/inconshreveable/log15"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLister serves canned listing pages with continuation tokens the
// way S3 does, optionally failing on a given page or pausing between
// pages to simulate a slow listing.
type fakeLister struct {
	pages     [][]string
	failOn    int // 1-based page number to fail on, 0 for never
	pageDelay time.Duration
	calls     int
}

func (f *fakeLister) ListObjectsV2(input *s3.ListObjectsV2Input) (*s3.ListObjectsV2Output, error) {
	if f.pageDelay > 0 {
		time.Sleep(f.pageDelay)
	}
	f.calls++
	if f.failOn != 0 && f.calls == f.failOn {
		return nil, errors.New("RequestLimitExceeded")
	}
	idx := f.calls - 1
	out := &s3.ListObjectsV2Output{}
	for _, key := range f.pages[idx] {
		out.Contents = append(out.Contents, &s3.Object{Key: aws.String(key)})
	}
	if idx < len(f.pages)-1 {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(fmt.Sprintf("token-%d", f.calls))
	} else {
		out.IsTruncated = aws.Bool(false)
	}
	return out, nil
}

// fakeDeleter records every delete attempt and can be told to fail or
// panic for specific keys, with an optional random per-call delay.
type fakeDeleter struct {
	mu        sync.Mutex
	attempts  []string
	failKeys  map[string]bool
	panicKeys map[string]bool
	maxDelay  time.Duration
}

func (f *fakeDeleter) DeleteObject(input *s3.DeleteObjectInput) (*s3.DeleteObjectOutput, error) {
	key := aws.StringValue(input.Key)
	f.mu.Lock()
	f.attempts = append(f.attempts, key)
	f.mu.Unlock()
	if f.maxDelay > 0 {
		time.Sleep(time.Duration(rand.Int63n(int64(f.maxDelay))))
	}
	if f.panicKeys[key] {
		panic("client blew up on " + key)
	}
	if f.failKeys[key] {
		return nil, errors.New("AccessDenied")
	}
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeDeleter) attempted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.attempts...)
}

func keys(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s/object-%04d", prefix, i)
	}
	return out
}

func testLogger() log15.Logger {
	logger := log15.New()
	logger.SetHandler(log15.DiscardHandler())
	return logger
}

func newTestPurge(lister objectLister, deleter objectDeleter, workers int) *Purge {
	return &Purge{
		bucket:   "test-bucket",
		workers:  workers,
		depth:    256,
		maxPages: 100,
		lister:   lister,
		deleter:  deleter,
		log:      testLogger(),
	}
}

func TestNewDefaults(t *testing.T) {
	sess := session.Must(session.NewSession(&aws.Config{Region: aws.String("us-east-1")}))
	logger := testLogger()
	p, err := New(&PurgeInput{
		Session: sess,
		Bucket:  aws.String("some-bucket"),
		Logger:  &logger,
	})
	require.NoError(t, err)
	assert.Equal(t, 8, p.workers)
	assert.Equal(t, 256, p.depth)
	assert.Equal(t, 100, p.maxPages)
	assert.False(t, p.errorOnFailures)
	assert.Equal(t, "some-bucket", p.bucket)
}

func TestNewRequiredFields(t *testing.T) {
	sess := session.Must(session.NewSession(&aws.Config{Region: aws.String("us-east-1")}))
	logger := testLogger()

	_, err := New(&PurgeInput{Bucket: aws.String("b"), Logger: &logger})
	assert.EqualError(t, err, "Session is required")

	_, err = New(&PurgeInput{Session: sess, Logger: &logger})
	assert.EqualError(t, err, "Bucket is required")

	_, err = New(&PurgeInput{Session: sess, Bucket: aws.String("b")})
	assert.EqualError(t, err, "log15 logger is required")

	zero := 0
	_, err = New(&PurgeInput{Session: sess, Bucket: aws.String("b"), Logger: &logger, Workers: &zero})
	assert.EqualError(t, err, "Workers must be at least 1")
}

// Pages of 10/10/5 must yield exactly 25 distinct keys through the
// pool, all deleted.
func TestPaginatedRunAllSucceed(t *testing.T) {
	all := keys("logs", 25)
	lister := &fakeLister{pages: [][]string{all[:10], all[10:20], all[20:]}}
	deleter := &fakeDeleter{}
	p := newTestPurge(lister, deleter, 4)

	require.NoError(t, p.Start())

	res := p.Result()
	assert.Equal(t, 25, res.Submitted)
	assert.Equal(t, 25, res.Succeeded)
	assert.Equal(t, 0, res.Failed)
	assert.Empty(t, res.Failures)
	assert.Equal(t, 3, lister.calls)
	assert.ElementsMatch(t, all, deleter.attempted())
}

// Two induced failures out of ten: both must land in the failures
// list, nothing else, and the run still completes.
func TestInducedFailuresAreRecorded(t *testing.T) {
	all := keys("stale", 10)
	lister := &fakeLister{pages: [][]string{all[:5], all[5:]}}
	deleter := &fakeDeleter{failKeys: map[string]bool{all[2]: true, all[7]: true}}
	p := newTestPurge(lister, deleter, 4)

	require.NoError(t, p.Start())

	res := p.Result()
	assert.Equal(t, 10, res.Submitted)
	assert.Equal(t, 8, res.Succeeded)
	assert.Equal(t, 2, res.Failed)
	var failed []string
	for _, f := range res.Failures {
		failed = append(failed, f.Key)
		assert.Equal(t, "AccessDenied", f.Reason)
	}
	assert.ElementsMatch(t, []string{all[2], all[7]}, failed)
}

// A listing failure on the second page aborts the run but keeps the
// first page's outcomes.
func TestEnumerationFailureKeepsPartialResult(t *testing.T) {
	all := keys("partial", 20)
	lister := &fakeLister{pages: [][]string{all[:10], all[10:]}, failOn: 2}
	deleter := &fakeDeleter{}
	p := newTestPurge(lister, deleter, 4)

	err := p.Start()
	require.Error(t, err)
	var enumErr *EnumerationError
	require.True(t, errors.As(err, &enumErr))
	assert.Equal(t, 2, enumErr.Page)
	assert.EqualError(t, errors.Unwrap(err), "RequestLimitExceeded")

	res := p.Result()
	assert.Equal(t, 10, res.Submitted)
	assert.Equal(t, res.Submitted, res.Succeeded+res.Failed)
	assert.ElementsMatch(t, all[:10], deleter.attempted())
}

// Failures and even panics inside the delete step must never kill a
// worker: every enumerated key still gets processed and acknowledged.
func TestFaultIsolation(t *testing.T) {
	all := keys("hostile", 40)
	lister := &fakeLister{pages: [][]string{all[:20], all[20:]}}
	deleter := &fakeDeleter{
		failKeys:  map[string]bool{all[3]: true, all[11]: true, all[25]: true},
		panicKeys: map[string]bool{all[0]: true, all[19]: true, all[39]: true},
	}
	p := newTestPurge(lister, deleter, 4)

	require.NoError(t, p.Start())

	res := p.Result()
	assert.Equal(t, 40, res.Submitted)
	assert.Equal(t, 34, res.Succeeded)
	assert.Equal(t, 6, res.Failed)
	assert.Equal(t, res.Submitted, res.Succeeded+res.Failed)
	// every key was attempted exactly once despite the panics
	assert.ElementsMatch(t, all, deleter.attempted())
	for _, f := range res.Failures {
		if deleter.panicKeys[f.Key] {
			assert.Contains(t, f.Reason, "delete panicked")
		}
	}
}

// Concurrent stress: a slow lister and random worker delays must not
// let the barrier release early or any key be acknowledged twice.
func TestBarrierUnderStress(t *testing.T) {
	const total = 1000
	all := keys("stress", total)
	var pages [][]string
	for i := 0; i < total; i += 50 {
		pages = append(pages, all[i:i+50])
	}
	lister := &fakeLister{pages: pages, pageDelay: time.Millisecond}
	deleter := &fakeDeleter{maxDelay: 5 * time.Millisecond, failKeys: map[string]bool{}}
	for i := 0; i < total; i += 97 {
		deleter.failKeys[all[i]] = true
	}
	p := newTestPurge(lister, deleter, 16)

	require.NoError(t, p.Start())

	res := p.Result()
	assert.Equal(t, total, res.Submitted)
	assert.Equal(t, res.Submitted, res.Succeeded+res.Failed)
	assert.Equal(t, len(deleter.failKeys), res.Failed)

	attempted := deleter.attempted()
	require.Len(t, attempted, total)
	seen := make(map[string]bool, total)
	for _, key := range attempted {
		assert.False(t, seen[key], "key attempted twice: %s", key)
		seen[key] = true
	}
	assert.ElementsMatch(t, all, attempted)
}

func TestErrorOnFailuresPolicy(t *testing.T) {
	all := keys("policy", 6)
	lister := &fakeLister{pages: [][]string{all}}
	deleter := &fakeDeleter{failKeys: map[string]bool{all[1]: true}}
	p := newTestPurge(lister, deleter, 2)
	p.errorOnFailures = true

	err := p.Start()
	require.Error(t, err)
	assert.EqualError(t, err, "1 of 6 objects failed to delete")
	assert.Equal(t, 6, p.Result().Submitted)
}

func TestEmptyBucket(t *testing.T) {
	lister := &fakeLister{pages: [][]string{{}}}
	deleter := &fakeDeleter{}
	p := newTestPurge(lister, deleter, 4)

	require.NoError(t, p.Start())
	res := p.Result()
	assert.Zero(t, res.Submitted)
	assert.Zero(t, res.Succeeded)
	assert.Zero(t, res.Failed)
	assert.Empty(t, deleter.attempted())
}
