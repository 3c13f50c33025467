package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
)

const (
	SubmissionFolder    = "Submission"
	SupplementaryFolder = "Supplementary"

	submissionMarker    = "a"
	supplementaryMarker = "b"
)

// Reorganizer flattens per-submission folders into one destination directory.
type Reorganizer struct {
	copyLimit int
}

func NewReorganizer(copyLimit int) *Reorganizer {
	if copyLimit <= 0 {
		copyLimit = 8
	}
	return &Reorganizer{copyLimit: copyLimit}
}

// Reorganize copies every Submission and Supplementary file of the numeric folders
// under source into dest as <id><a|b>_<name>, and returns the copied submission PDFs
// in folder then file order.
func (r *Reorganizer) Reorganize(ctx context.Context, source, dest string) ([]string, error) {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, fmt.Errorf("create destination folder: %w", err)
	}

	entries, err := os.ReadDir(source)
	if err != nil {
		return nil, fmt.Errorf("read source folder: %w", err)
	}

	var totalFiles int
	var submissionPDFs []string
	for _, entry := range entries {
		if !entry.IsDir() || !isDigits(entry.Name()) {
			continue
		}
		folderName := entry.Name()
		folderID := PadFolderID(folderName)
		logCtx := slog.With("folder", folderName)

		submissionDir := filepath.Join(source, folderName, SubmissionFolder)
		if isDir(submissionDir) {
			n, pdfs, err := r.copyFolder(ctx, submissionDir, dest, folderID, submissionMarker)
			if err != nil {
				return nil, err
			}
			submissionPDFs = append(submissionPDFs, pdfs...)
			totalFiles += n
			logCtx.Info("Processed submission files.", "files", n)
		} else {
			logCtx.Warn("Submission folder not found.")
		}

		supplementaryDir := filepath.Join(source, folderName, SupplementaryFolder)
		if isDir(supplementaryDir) {
			n, _, err := r.copyFolder(ctx, supplementaryDir, dest, folderID, supplementaryMarker)
			if err != nil {
				return nil, err
			}
			totalFiles += n
			logCtx.Info("Processed supplementary files.", "files", n)
		}
	}

	slog.Info("Reorganization complete.", "totalFiles", totalFiles, "submissionPDFs", len(submissionPDFs))
	return submissionPDFs, nil
}

// copyFolder copies the regular files of src into dest with the renamed prefix.
func (r *Reorganizer) copyFolder(ctx context.Context, src, dest, folderID, marker string) (int, []string, error) {
	entries, err := os.ReadDir(src)
	if err != nil {
		return 0, nil, fmt.Errorf("read %s: %w", src, err)
	}

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(r.copyLimit)

	var copied int
	var pdfs []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		srcPath := filepath.Join(src, name)
		destPath := filepath.Join(dest, RenamedFilename(folderID, marker, name))
		copied++
		if marker == submissionMarker && strings.HasSuffix(strings.ToLower(name), ".pdf") {
			pdfs = append(pdfs, destPath)
		}

		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := copyFilePreservingTimes(srcPath, destPath); err != nil {
				return fmt.Errorf("copy %s: %w", srcPath, err)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return 0, nil, err
	}
	return copied, pdfs, nil
}

// RenamedFilename builds the flattened name of a copied file.
func RenamedFilename(folderID, marker, name string) string {
	return folderID + marker + "_" + name
}

// PadFolderID left-pads a numeric folder name with zeros to three digits.
func PadFolderID(name string) string {
	if len(name) >= 3 {
		return name
	}
	return strings.Repeat("0", 3-len(name)) + name
}

func copyFilePreservingTimes(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dest, info.ModTime(), info.ModTime())
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
