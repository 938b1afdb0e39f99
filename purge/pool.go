package purge

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
)

// objectDeleter is the slice of the S3 API the workers need.
// Satisfied by *s3.S3.
type objectDeleter interface {
	DeleteObject(*s3.DeleteObjectInput) (*s3.DeleteObjectOutput, error)
}

// startWorkers launches the fixed pool. Each worker loops until the
// dispatcher is closed; a bad item never ends the loop early.
func (p *Purge) startWorkers() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

func (p *Purge) worker(id int) {
	defer p.wg.Done()
	log := p.log.New("worker", id)
	for {
		obj, ok := p.dispatch.get()
		if !ok {
			log.Debug("worker stopping")
			return
		}
		err := p.deleteObject(obj)
		p.dispatch.acknowledge(obj, err)
		if err != nil {
			log.Error("failed to remove object", "bucket", obj.bucket, "key", obj.key, "error", err.Error())
		} else {
			log.Debug("removed object", "bucket", obj.bucket, "key", obj.key)
		}
	}
}

// deleteObject performs the remote delete for one task. A panic out
// of the client is converted to an error so it gets recorded as a
// failure for that key instead of killing the worker.
func (p *Purge) deleteObject(obj object) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("delete panicked: %v", r)
		}
	}()
	input := s3.DeleteObjectInput{
		Bucket: aws.String(obj.bucket),
		Key:    aws.String(obj.key),
	}
	_, err = p.deleter.DeleteObject(&input)
	return err
}
