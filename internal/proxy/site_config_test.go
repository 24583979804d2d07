package proxy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeSite(t *testing.T, dir, host, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, host+".json"), []byte(body), 0o644))
}
