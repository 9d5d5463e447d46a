package serving_test

import (
	"os"
	"testing"
)

var tempRoot string

func tempDir() (string, error) {
	return os.MkdirTemp(tempRoot, "artifacts-*")
}

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "serving-test-*")
	if err != nil {
		panic(err)
	}
	tempRoot = dir
	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}
