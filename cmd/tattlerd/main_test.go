package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunFailsOnInvalidVectorConfiguration(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "mybook", "signup", "email")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for part, content := range map[string]string{"subject.txt": "s", "body.txt": "b"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, part), []byte(content), 0o644))
	}

	t.Setenv("TATTLER_CONFIG", "")
	t.Setenv("TATTLER_TEMPLATE_BASE", base)
	t.Setenv("TATTLER_EMAIL_SENDER", "not an address")

	err := run()
	require.Error(t, err, "a misconfigured vector must abort startup")
	assert.Contains(t, err.Error(), "email")
}
