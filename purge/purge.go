package purge

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/inconshreveable/log15"
)

// Failure records one object the pipeline could not delete.
type Failure struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// Result summarizes one purge run. Submitted counts every key handed
// to the pool; Succeeded and Failed always sum to Submitted once
// Start has returned.
type Result struct {
	Submitted int       `json:"submitted"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Failures  []Failure `json:"failures"`
}

// A Purge contains the properties and methods necessary to delete
// every object under a bucket prefix at bounded concurrency. Create a
// PurgeInput object and pass it to this package's New method to get a
// new Purge. From there call the Start method and collect the outcome
// with Result.
type Purge struct {
	bucket          string
	prefix          string
	workers         int
	depth           int
	maxPages        int
	errorOnFailures bool

	session  *session.Session
	lister   objectLister
	deleter  objectDeleter
	dispatch *dispatcher
	wg       sync.WaitGroup
	log      log15.Logger

	submitted int
	result    Result
}

// Start runs the pipeline to completion: workers come up first, then
// the bucket listing is walked with every key handed to the pool, and
// the call blocks on the completion barrier before shutting the pool
// down. Objects that fail to delete never abort the run; a listing
// failure does, though whatever was already acknowledged stays
// counted in Result.
func (p *Purge) Start() (err error) {
	p.dispatch = newDispatcher(p.depth)
	p.startWorkers()
	p.log.Info("starting purge", "bucket", p.bucket, "prefix", p.prefix, "workers", p.workers)
	submitted, enumErr := p.enumerate()
	p.submitted = submitted
	p.dispatch.trk.finish()
	p.dispatch.trk.wait()
	p.dispatch.close()
	p.wg.Wait()
	p.assembleResult()
	p.log.Info("purge complete",
		"submitted", p.result.Submitted,
		"succeeded", p.result.Succeeded,
		"failed", p.result.Failed,
	)
	if enumErr != nil {
		return enumErr
	}
	if p.errorOnFailures && p.result.Failed > 0 {
		err = fmt.Errorf("%d of %d objects failed to delete", p.result.Failed, p.result.Submitted)
	}
	return err
}

func (p *Purge) assembleResult() {
	d := p.dispatch
	d.mu.Lock()
	p.result = Result{
		Submitted: p.submitted,
		Succeeded: d.succeeded,
		Failed:    len(d.failures),
		Failures:  append([]Failure(nil), d.failures...),
	}
	d.mu.Unlock()
}

// Result returns the outcome of the most recent Start call.
func (p *Purge) Result() Result {
	return p.result
}

// PurgeInput provides configuration inputs for starting a new Purge.
type PurgeInput struct {
	// AWS Session to use for credentials for this purge.
	//
	// Session is a required field
	Session *session.Session

	// Bucket holding the objects to delete.
	//
	// Bucket is a required field
	Bucket *string

	// Only objects whose keys begin with Prefix are deleted. An
	// empty prefix targets the whole bucket.
	Prefix *string

	// Number of concurrent delete workers.
	// Default: 8
	Workers *int

	// Capacity of the hand-off buffer between the listing and the
	// workers. The listing blocks when the buffer is full.
	// Default: 256
	QueueDepth *int

	// Maximum number of listing pages to process.
	// Default: 100
	MaxPages *int

	// When true, Start returns an error if any object failed to
	// delete. When false (the default) failures are only reported
	// through Result.
	ErrorOnFailures *bool

	// Purge uses log15 (https://github.com/inconshreveable/log15)
	// as an opinioned logging framework. A logger must be provided.
	Logger *log15.Logger
}

// New returns a Purge object whose Start method runs the bulk delete.
// This method accepts a PurgeInput struct which can be used to set up
// the Purge inputs. It will set default values for any property that
// was not specified in the PurgeInput object.
func New(input *PurgeInput) (p *Purge, err error) {
	var pg Purge

	if input.Session == nil {
		err = errors.New("Session is required")
		return &pg, err
	}
	pg.session = input.Session

	if input.Bucket == nil || *input.Bucket == "" {
		err = errors.New("Bucket is required")
		return &pg, err
	}
	pg.bucket = *input.Bucket

	if input.Prefix != nil {
		pg.prefix = *input.Prefix
	}

	DefaultWorkers := 8
	if input.Workers == nil {
		input.Workers = &DefaultWorkers
	}
	if *input.Workers < 1 {
		err = errors.New("Workers must be at least 1")
		return &pg, err
	}
	pg.workers = *input.Workers

	DefaultQueueDepth := 256
	if input.QueueDepth == nil {
		input.QueueDepth = &DefaultQueueDepth
	}
	pg.depth = *input.QueueDepth

	DefaultMaxPages := 100
	if input.MaxPages == nil {
		input.MaxPages = &DefaultMaxPages
	}
	pg.maxPages = *input.MaxPages

	DefaultErrorOnFailures := false
	if input.ErrorOnFailures == nil {
		input.ErrorOnFailures = &DefaultErrorOnFailures
	}
	pg.errorOnFailures = *input.ErrorOnFailures

	if input.Logger == nil {
		err = errors.New("log15 logger is required")
		return &pg, err
	}
	pg.log = *input.Logger

	svc := s3.New(pg.session)
	pg.lister = svc
	pg.deleter = svc
	return &pg, err
}
