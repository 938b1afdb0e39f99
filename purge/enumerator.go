package purge

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
)

// objectLister is the slice of the S3 API the enumerator needs.
// Satisfied by *s3.S3.
type objectLister interface {
	ListObjectsV2(*s3.ListObjectsV2Input) (*s3.ListObjectsV2Output, error)
}

// EnumerationError reports a fatal listing failure. The run stops
// producing new work when one occurs, but deletions already
// acknowledged before the failure are kept in the Result.
type EnumerationError struct {
	Page int
	Err  error
}

func (e *EnumerationError) Error() string {
	return fmt.Sprintf("listing objects failed on page %d: %v", e.Page, e.Err)
}

func (e *EnumerationError) Unwrap() error { return e.Err }

// enumerate walks the bucket listing page by page following
// continuation tokens and hands every key to the dispatcher. It
// returns the number of keys submitted and any fatal listing error.
func (p *Purge) enumerate() (submitted int, err error) {
	input := s3.ListObjectsV2Input{
		Bucket: aws.String(p.bucket),
	}
	if p.prefix != "" {
		input.Prefix = aws.String(p.prefix)
	}
	page := 0
	for {
		page++
		p.log.Debug("listing objects", "page", page)
		results, lerr := p.lister.ListObjectsV2(&input)
		if lerr != nil {
			return submitted, &EnumerationError{Page: page, Err: lerr}
		}
		for _, obj := range results.Contents {
			o := object{bucket: p.bucket, key: aws.StringValue(obj.Key)}
			p.log.Debug("queuing object", "bucket", o.bucket, "key", o.key)
			p.dispatch.put(o)
			submitted++
		}
		if aws.BoolValue(results.IsTruncated) && results.NextContinuationToken != nil {
			input.ContinuationToken = results.NextContinuationToken
		} else {
			break
		}
		if page >= p.maxPages {
			p.log.Warn("stopping before listing was exhausted", "maxPages", p.maxPages)
			break
		}
	}
	return submitted, nil
}
