package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAttachCmd_DefaultsShellAndRequiresOneArg(t *testing.T) {
	cmd := newAttachCmd()

	shellFlag := cmd.Flags().Lookup("shell")
	if assert.NotNil(t, shellFlag) {
		assert.Equal(t, "/bin/bash", shellFlag.DefValue)
	}

	assert.Error(t, cmd.Args(cmd, nil))
	assert.Error(t, cmd.Args(cmd, []string{"a", "b"}))
	assert.NoError(t, cmd.Args(cmd, []string{"container-id"}))
}
