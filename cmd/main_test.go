package cmd

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMain(m *testing.M) {
	logDir, err := os.MkdirTemp("", "hydra-cmd-test")
	if err != nil {
		panic(err)
	}

	_ = os.Setenv("HYDRA_LOG_FILENAME", filepath.Join(logDir, "hydra.log"))

	code := m.Run()

	_ = os.RemoveAll(logDir)
	os.Exit(code)
}
