package runcmd_test

import (
	"bytes"
	"context"
	"flag"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mna/mainer"

	"github.com/ffwff/hana-sub000/internal/filetest"
	"github.com/ffwff/hana-sub000/internal/runcmd"
)

var testUpdateRunTests = flag.Bool("test.update-run-tests", false, "If set, replace expected run test results with actual results.")

func TestRunFile(t *testing.T) {
	srcDir, resultDir := filepath.Join("testdata", "in"), filepath.Join("testdata", "out")

	for _, fi := range filetest.SourceFiles(t, srcDir, ".json") {
		t.Run(fi.Name(), func(t *testing.T) {
			var buf, ebuf bytes.Buffer
			stdio := mainer.Stdio{Stdout: &buf, Stderr: &ebuf}

			_ = runcmd.RunFile(context.Background(), stdio, filepath.Join(srcDir, fi.Name()))
			filetest.DiffOutput(t, fi, buf.String(), resultDir, testUpdateRunTests)
		})
	}
}

func TestRunFileMissingPathErrors(t *testing.T) {
	var buf, ebuf bytes.Buffer
	stdio := mainer.Stdio{Stdout: &buf, Stderr: &ebuf}

	err := runcmd.RunFile(context.Background(), stdio, filepath.Join("testdata", "in", "does-not-exist.json"))
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if !strings.Contains(ebuf.String(), "run:") {
		t.Fatalf("expected stderr to carry a run: prefixed message, got %q", ebuf.String())
	}
}
