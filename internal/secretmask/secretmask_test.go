package secretmask

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsSensitiveKeyCaseInsensitive(t *testing.T) {
	require.True(t, IsSensitiveKey("DB_PASSWORD"))
	require.True(t, IsSensitiveKey("api_token"))
	require.True(t, IsSensitiveKey("SshKey"))
	require.False(t, IsSensitiveKey("CONTAINAI_SSH_PORT"))
}

func TestMaskArgvSplitForm(t *testing.T) {
	args := []string{"docker", "run", "-e", "DB_PASSWORD=hunter2", "-e", "PORT=8080", "image"}
	masked := MaskArgv(args)
	require.Equal(t, "DB_PASSWORD=********", masked[3])
	require.Equal(t, "PORT=8080", masked[5])
}

func TestMaskArgvCombinedForm(t *testing.T) {
	args := []string{"docker", "run", "--env=API_TOKEN=abc123", "image"}
	masked := MaskArgv(args)
	require.Equal(t, "--env=API_TOKEN=********", masked[2])
}

func TestMaskArgvDoesNotMutateInput(t *testing.T) {
	args := []string{"-e", "SECRET=x"}
	_ = MaskArgv(args)
	require.Equal(t, "SECRET=x", args[1])
}

func TestMaskArgvLeavesNonEnvTokensAlone(t *testing.T) {
	args := []string{"docker", "run", "--runtime=sysbox-runc"}
	masked := MaskArgv(args)
	require.Equal(t, args, masked)
}
