package sgaudit

import (
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/aws/aws-sdk-go/service/efs"
	"github.com/aws/aws-sdk-go/service/elasticache"
	"github.com/aws/aws-sdk-go/service/elb"
	"github.com/aws/aws-sdk-go/service/elbv2"
	"github.com/aws/aws-sdk-go/service/lambda"
	"github.com/aws/aws-sdk-go/service/rds"
	"github.com/aws/aws-sdk-go/service/redshift"
)

// Each check walks one service's listing including pagination and
// marks every referenced security group as in use. The walks cap out
// at 50 pages like the group listing does.

func (a *Audit) checkEC2() (err error) {
	a.log.Debug("checking EC2 instances for group references")
	svc := ec2.New(a.session)
	input := ec2.DescribeInstancesInput{}
	i := 1
	max := 50
	for i < max {
		results, derr := svc.DescribeInstances(&input)
		if derr != nil {
			return derr
		}
		for _, reservation := range results.Reservations {
			for _, instance := range reservation.Instances {
				for _, sg := range instance.SecurityGroups {
					a.markInUse(*sg.GroupId, "EC2")
				}
			}
		}
		if results.NextToken != nil {
			input.NextToken = results.NextToken
		} else {
			break
		}
		i += 1
	}
	return err
}

func (a *Audit) checkELB() (err error) {
	a.log.Debug("checking classic load balancers for group references")
	svc := elb.New(a.session)
	input := elb.DescribeLoadBalancersInput{}
	i := 1
	max := 50
	for i < max {
		results, derr := svc.DescribeLoadBalancers(&input)
		if derr != nil {
			return derr
		}
		for _, lb := range results.LoadBalancerDescriptions {
			for _, sg := range lb.SecurityGroups {
				a.markInUse(*sg, "ELBv1")
			}
		}
		if results.NextMarker != nil && *results.NextMarker != "" {
			input.Marker = results.NextMarker
		} else {
			break
		}
		i += 1
	}
	return err
}

func (a *Audit) checkELBv2() (err error) {
	a.log.Debug("checking v2 load balancers for group references")
	svc := elbv2.New(a.session)
	input := elbv2.DescribeLoadBalancersInput{}
	i := 1
	max := 50
	for i < max {
		results, derr := svc.DescribeLoadBalancers(&input)
		if derr != nil {
			return derr
		}
		for _, lb := range results.LoadBalancers {
			for _, sg := range lb.SecurityGroups {
				a.markInUse(*sg, "ELBv2")
			}
		}
		if results.NextMarker != nil && *results.NextMarker != "" {
			input.Marker = results.NextMarker
		} else {
			break
		}
		i += 1
	}
	return err
}

func (a *Audit) checkEFS() (err error) {
	a.log.Debug("checking EFS mount targets for group references")
	svc := efs.New(a.session)
	input := efs.DescribeFileSystemsInput{}
	i := 1
	max := 50
	for i < max {
		results, derr := svc.DescribeFileSystems(&input)
		if derr != nil {
			return derr
		}
		for _, fs := range results.FileSystems {
			mtInput := efs.DescribeMountTargetsInput{
				FileSystemId: fs.FileSystemId,
			}
			targets, derr := svc.DescribeMountTargets(&mtInput)
			if derr != nil {
				return derr
			}
			for _, target := range targets.MountTargets {
				sgInput := efs.DescribeMountTargetSecurityGroupsInput{
					MountTargetId: target.MountTargetId,
				}
				groups, derr := svc.DescribeMountTargetSecurityGroups(&sgInput)
				if derr != nil {
					return derr
				}
				for _, sg := range groups.SecurityGroups {
					a.markInUse(*sg, "EFS")
				}
			}
		}
		if results.NextMarker != nil && *results.NextMarker != "" {
			input.Marker = results.NextMarker
		} else {
			break
		}
		i += 1
	}
	return err
}

func (a *Audit) checkRDS() (err error) {
	a.log.Debug("checking RDS instances for group references")
	svc := rds.New(a.session)
	input := rds.DescribeDBInstancesInput{}
	i := 1
	max := 50
	for i < max {
		results, derr := svc.DescribeDBInstances(&input)
		if derr != nil {
			return derr
		}
		for _, db := range results.DBInstances {
			for _, sg := range db.VpcSecurityGroups {
				a.markInUse(*sg.VpcSecurityGroupId, "RDS")
			}
		}
		if results.Marker != nil && *results.Marker != "" {
			input.Marker = results.Marker
		} else {
			break
		}
		i += 1
	}
	return err
}

func (a *Audit) checkElastiCache() (err error) {
	a.log.Debug("checking ElastiCache clusters for group references")
	svc := elasticache.New(a.session)
	input := elasticache.DescribeCacheClustersInput{}
	i := 1
	max := 50
	for i < max {
		results, derr := svc.DescribeCacheClusters(&input)
		if derr != nil {
			return derr
		}
		for _, cluster := range results.CacheClusters {
			for _, sg := range cluster.SecurityGroups {
				a.markInUse(*sg.SecurityGroupId, "ElastiCache")
			}
		}
		if results.Marker != nil && *results.Marker != "" {
			input.Marker = results.Marker
		} else {
			break
		}
		i += 1
	}
	return err
}

func (a *Audit) checkLambda() (err error) {
	a.log.Debug("checking Lambda functions for group references")
	svc := lambda.New(a.session)
	input := lambda.ListFunctionsInput{}
	i := 1
	max := 50
	for i < max {
		results, derr := svc.ListFunctions(&input)
		if derr != nil {
			return derr
		}
		for _, function := range results.Functions {
			if function.VpcConfig == nil {
				continue
			}
			for _, sg := range function.VpcConfig.SecurityGroupIds {
				a.markInUse(*sg, "Lambda")
			}
		}
		if results.NextMarker != nil && *results.NextMarker != "" {
			input.Marker = results.NextMarker
		} else {
			break
		}
		i += 1
	}
	return err
}

func (a *Audit) checkRedshift() (err error) {
	a.log.Debug("checking Redshift clusters for group references")
	svc := redshift.New(a.session)
	input := redshift.DescribeClustersInput{}
	i := 1
	max := 50
	for i < max {
		results, derr := svc.DescribeClusters(&input)
		if derr != nil {
			return derr
		}
		for _, cluster := range results.Clusters {
			for _, sg := range cluster.VpcSecurityGroups {
				a.markInUse(*sg.VpcSecurityGroupId, "RedShift")
			}
		}
		if results.Marker != nil && *results.Marker != "" {
			input.Marker = results.Marker
		} else {
			break
		}
		i += 1
	}
	return err
}
