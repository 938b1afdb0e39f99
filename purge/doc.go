// Package purge deletes every object under an S3 bucket prefix using
// a fixed pool of concurrent workers.
//
// Buckets that accumulate build artifacts, logs, or abandoned data
// sets can hold millions of objects, and S3 only deletes objects one
// key at a time from the API consumer's point of view. Deleting them
// serially can take hours. This package lists the bucket page by page
// and fans the keys out to a pool of workers so the deletes overlap,
// while still giving you an exact accounting of what happened.
//
// Accounting
//
// Every key handed to the pool is acknowledged exactly once, as a
// success or as a recorded failure. A failed delete never stops the
// run and never takes a worker down with it; the key simply lands in
// the Failures list of the Result. A failure of the listing call
// itself is fatal and ends the run, but everything already deleted
// before the failure stays counted.
//
// Usage
//
// Create a purge.Purge via New and call the Start() method on it.
// After the run is complete collect the outcome with Result().
//
//   package main
//
//   import (
//   	"fmt"
//   	"os"
//
//   	"github.com/angrychimp/janitor/purge"
//   	"github.com/aws/aws-sdk-go/aws"
//   	"github.com/aws/aws-sdk-go/aws/session"
//   	"github.com/inconshreveable/log15"
//   )
//
//   func main() {
//   	sess := session.Must(session.NewSession())
//   	logger := log15.New()
//   	input := purge.PurgeInput{
//   		Session: sess,
//   		Bucket:  aws.String("my-bucket"),
//   		Prefix:  aws.String("tmp/"),
//   		Logger:  &logger,
//   	}
//   	p, err := purge.New(&input)
//   	if err != nil {
//   		panic(err)
//   	}
//   	if err = p.Start(); err != nil {
//   		fmt.Fprintln(os.Stderr, err)
//   	}
//   	fmt.Printf("%+v\n", p.Result())
//   }
package purge
