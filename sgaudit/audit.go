// Package sgaudit finds security groups in a VPC that are not
// referenced by any EC2 instance, load balancer, EFS mount target,
// RDS instance, ElastiCache cluster, Lambda function, or Redshift
// cluster, and can optionally delete them.
//
// Groups tend to pile up as infrastructure is created and torn down;
// an unused group costs nothing but clutters reviews and eventually
// bumps into the per-VPC group limit. The audit walks every service
// that can hold a group reference and subtracts what it finds from
// the full group listing for the VPC. Whatever is left is orphaned.
package sgaudit

import (
	"errors"
	"sort"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/inconshreveable/log15"
)

// An Audit contains the properties and methods necessary to find
// orphaned security groups in a VPC. Create an AuditInput object and
// pass it to this package's New method to get a new Audit. From there
// call the Start method; afterwards Orphans returns the findings and
// DeleteOrphans can remove them.
type Audit struct {
	vpcID      string
	session    *session.Session
	log        log15.Logger
	candidates map[string]*ec2.SecurityGroup
}

// AuditInput provides configuration inputs for starting a new Audit.
type AuditInput struct {
	// AWS Session to use for credentials for this audit.
	//
	// Session is a required field
	Session *session.Session

	// VpcID scopes the audit to a single VPC.
	//
	// VpcID is a required field
	VpcID *string

	// Audit uses log15 (https://github.com/inconshreveable/log15)
	// as an opinioned logging framework. A logger must be provided.
	Logger *log15.Logger
}

// New returns an Audit object whose Start method runs the orphan
// analysis for the configured VPC.
func New(input *AuditInput) (a *Audit, err error) {
	var aud Audit

	if input.Session == nil {
		err = errors.New("Session is required")
		return &aud, err
	}
	aud.session = input.Session

	if input.VpcID == nil || *input.VpcID == "" {
		err = errors.New("VpcID is required")
		return &aud, err
	}
	aud.vpcID = *input.VpcID

	if input.Logger == nil {
		err = errors.New("log15 logger is required")
		return &aud, err
	}
	aud.log = *input.Logger

	aud.candidates = make(map[string]*ec2.SecurityGroup)
	return &aud, err
}

// Start lists every security group in the VPC and then walks each
// service that can reference one, removing in-use groups from the
// candidate set. Any listing failure aborts the audit.
func (a *Audit) Start() (err error) {
	err = a.getSecurityGroups()
	if err != nil {
		return err
	}
	a.log.Info("loaded security groups for vpc", "vpc", a.vpcID, "groups", len(a.candidates))
	checks := []func() error{
		a.checkEC2,
		a.checkELB,
		a.checkELBv2,
		a.checkEFS,
		a.checkRDS,
		a.checkElastiCache,
		a.checkLambda,
		a.checkRedshift,
	}
	for _, check := range checks {
		if err = check(); err != nil {
			return err
		}
	}
	a.log.Info("audit complete", "orphans", len(a.candidates))
	return err
}

// markInUse removes a group from the orphan candidates if it is still
// present, logging which service referenced it.
func (a *Audit) markInUse(groupID, service string) {
	if _, ok := a.candidates[groupID]; ok {
		delete(a.candidates, groupID)
		a.log.Warn("found security group in use", "group", groupID, "service", service)
	}
}

// Orphans returns the IDs of the groups nothing referenced, sorted
// for stable output. Only meaningful after Start has completed.
func (a *Audit) Orphans() (ids []string) {
	for id := range a.candidates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DeleteOrphans removes every orphaned group. A group that is already
// gone counts as deleted. The first unexpected failure stops the
// sweep and is returned along with the count so far.
func (a *Audit) DeleteOrphans() (deleted int, err error) {
	svc := ec2.New(a.session)
	for _, id := range a.Orphans() {
		input := ec2.DeleteSecurityGroupInput{
			GroupId: aws.String(id),
		}
		_, err = svc.DeleteSecurityGroup(&input)
		if err != nil {
			if isGroupNotFound(err) {
				a.log.Debug("security group already gone", "group", id)
				err = nil
			} else {
				a.log.Error("failed to delete security group", "group", id, "error", err.Error())
				return deleted, err
			}
		} else {
			a.log.Info("deleted security group", "group", id)
		}
		deleted++
	}
	return deleted, err
}

// isGroupNotFound reports whether err is AWS telling us the group no
// longer exists, which the sweep treats as success.
func isGroupNotFound(err error) bool {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		return aerr.Code() == "InvalidGroup.NotFound"
	}
	return false
}

func (a *Audit) getSecurityGroups() (err error) {
	svc := ec2.New(a.session)
	vpcFilterName := "vpc-id"
	input := ec2.DescribeSecurityGroupsInput{
		Filters: []*ec2.Filter{
			{
				Name:   &vpcFilterName,
				Values: []*string{&a.vpcID},
			},
		},
	}
	results, err := svc.DescribeSecurityGroups(&input)
	if err != nil {
		return err
	}
	for _, sg := range results.SecurityGroups {
		a.candidates[*sg.GroupId] = sg
	}
	i := 2
	max := 50
	for i < max {
		if results.NextToken != nil {
			a.log.Debug("handling security group results", "page", i)
			input.NextToken = results.NextToken
			results, err = svc.DescribeSecurityGroups(&input)
			if err != nil {
				return err
			}
			for _, sg := range results.SecurityGroups {
				a.candidates[*sg.GroupId] = sg
			}
		} else {
			break
		}
		i += 1
	}
	return err
}
