package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmdSubcommands(t *testing.T) {
	cmd := NewRootCmd()
	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Contains(t, names, "purge")
	assert.Contains(t, names, "sg-audit")
	assert.Contains(t, names, "ebs-backup")
	assert.Contains(t, names, "version")
}

func TestVersionCmd(t *testing.T) {
	cmd := NewRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "janitor")
}

func TestPurgeCmdRequiresBucket(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"purge"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket")
}

func TestSgAuditCmdRequiresVpcID(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"sg-audit"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vpc-id")
}
