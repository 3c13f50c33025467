package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSubmissionObject(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{name: "007a_paper.pdf", want: true},
		{name: "uploads/2024/012a_Main Paper.PDF", want: true},
		{name: "1234a_long.pdf", want: true},
		{name: "007b_appendix.pdf", want: false},
		{name: "07a_short.pdf", want: false},
		{name: "007a_paper.docx", want: false},
		{name: "paper.pdf", want: false},
		{name: "007a_paper.pdf.json", want: false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsSubmissionObject(tt.name), tt.name)
	}
}

func TestResultObjectName(t *testing.T) {
	assert.Equal(t, "batch/007a_paper.pdf.json", ResultObjectName("batch/007a_paper.pdf"))
}

func TestReportObjectKey(t *testing.T) {
	assert.Equal(t, "reports/run-1/Research_Papers_Metadata.xlsx",
		ReportObjectKey("run-1", "/tmp/out/Research_Papers_Metadata.xlsx"))
}

func TestCalculateFileHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "007a_paper.pdf")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))

	hash, err := calculateFileHash(path)
	require.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", hash)

	_, err = calculateFileHash(filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
}
