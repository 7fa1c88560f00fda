package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		stdin string
	}{
		{name: "argument", args: []string{"hunter2"}},
		{name: "stdin", stdin: "hunter2\n"},
		{name: "stdin without newline", stdin: "hunter2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			cmd := &cobra.Command{}
			cmd.SetOut(&out)
			cmd.SetIn(strings.NewReader(tt.stdin))

			require.NoError(t, runHashPassword(cmd, tt.args))
			hash := strings.TrimSpace(out.String())
			assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("hunter2")))
		})
	}
}

func TestHashPasswordEmpty(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetIn(strings.NewReader("\n"))
	assert.Error(t, runHashPassword(cmd, nil))
}

func TestRunServeRejectsBadConfig(t *testing.T) {
	err := runServe(&cobra.Command{}, []string{"config.yaml"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JSON")
}
