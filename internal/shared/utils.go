package shared

import (
	"appupdate-go/internal/cstmerr"
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

func CheckAndCreateDir(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Errorf("failed to create directory %s: %v", dir, err)
			return cstmerr.NewFileSystemError(fmt.Sprintf("failed to create directory %s: %v", dir, err))
		}
	} else if err != nil {
		log.Errorf("failed to check directory %s: %v", dir, err)
		return cstmerr.NewFileSystemError(fmt.Sprintf("failed to check directory %s: %v", dir, err))
	}
	return nil
}

// CalculateSHA256 returns the hex digest of a file.
func CalculateSHA256(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", cstmerr.NewFileIOError(fmt.Sprintf("failed to open %s", filePath), err)
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", cstmerr.NewFileIOError(fmt.Sprintf("failed to hash %s", filePath), err)
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// UnzipFile extracts a ZIP archive into outputDir, rejecting entries that escape it.
func UnzipFile(zipFilePath string, outputDir string) error {
	log.Debugf("Unzipping %s to %s", zipFilePath, outputDir)

	r, err := zip.OpenReader(zipFilePath)
	if err != nil {
		return cstmerr.NewArchiveError(fmt.Sprintf("failed to open zip file %s", zipFilePath), err)
	}
	defer r.Close()

	log.Debugf("Archive contains %d files", len(r.File))

	for _, f := range r.File {
		outPath := filepath.Join(outputDir, f.Name)

		if !strings.HasPrefix(outPath, filepath.Clean(outputDir)+string(os.PathSeparator)) {
			return cstmerr.NewArchiveError(fmt.Sprintf("illegal file path in archive: %s", f.Name), nil)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(outPath, 0755); err != nil {
				return cstmerr.NewFileSystemError(fmt.Sprintf("failed to create directory %s: %v", outPath, err))
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
			return cstmerr.NewFileSystemError(fmt.Sprintf("failed to create parent directory for %s: %v", outPath, err))
		}

		if err := extractEntry(f, outPath); err != nil {
			return err
		}
	}
	log.Debug("Unzipping done.")
	return nil
}

func extractEntry(f *zip.File, outPath string) error {
	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0644
	}
	outFile, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return cstmerr.NewFileIOError(fmt.Sprintf("failed to create output file %s", outPath), err)
	}

	rc, err := f.Open()
	if err != nil {
		outFile.Close()
		return cstmerr.NewArchiveError(fmt.Sprintf("failed to open file in archive %s", f.Name), err)
	}

	_, err = io.Copy(outFile, rc)

	closeErr1 := rc.Close()
	closeErr2 := outFile.Close()

	if err != nil {
		return cstmerr.NewFileIOError(fmt.Sprintf("failed to copy content to %s", outPath), err)
	}
	if closeErr1 != nil {
		return cstmerr.NewArchiveError(fmt.Sprintf("failed to close archive file entry %s", f.Name), closeErr1)
	}
	if closeErr2 != nil {
		return cstmerr.NewFileIOError(fmt.Sprintf("failed to close output file %s", outPath), closeErr2)
	}
	return nil
}

// ZipDir writes every regular file under srcDir into zipFilePath.
// Entry names are relative to baseDir so the archive keeps the "output/..." prefix the bundler expects.
func ZipDir(zipFilePath, baseDir, srcDir string) error {
	out, err := os.Create(zipFilePath)
	if err != nil {
		return cstmerr.NewFileIOError(fmt.Sprintf("failed to create archive %s", zipFilePath), err)
	}

	zw := zip.NewWriter(out)
	walkErr := filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		name, err := filepath.Rel(baseDir, path)
		if err != nil {
			return err
		}
		return addZipEntry(zw, path, filepath.ToSlash(name), info)
	})

	closeErr := zw.Close()
	fileErr := out.Close()
	if walkErr != nil {
		return cstmerr.NewArchiveError(fmt.Sprintf("failed to archive %s", srcDir), walkErr)
	}
	if closeErr != nil {
		return cstmerr.NewArchiveError(fmt.Sprintf("failed to finalize archive %s", zipFilePath), closeErr)
	}
	if fileErr != nil {
		return cstmerr.NewFileIOError(fmt.Sprintf("failed to close archive %s", zipFilePath), fileErr)
	}
	return nil
}

// ZipFile writes a single file into zipFilePath under its base name.
func ZipFile(zipFilePath, filePath string) error {
	info, err := os.Stat(filePath)
	if err != nil {
		return cstmerr.NewFileIOError(fmt.Sprintf("failed to stat %s", filePath), err)
	}
	out, err := os.Create(zipFilePath)
	if err != nil {
		return cstmerr.NewFileIOError(fmt.Sprintf("failed to create archive %s", zipFilePath), err)
	}
	zw := zip.NewWriter(out)
	addErr := addZipEntry(zw, filePath, filepath.Base(filePath), info)
	closeErr := zw.Close()
	fileErr := out.Close()
	if addErr != nil {
		return cstmerr.NewArchiveError(fmt.Sprintf("failed to archive %s", filePath), addErr)
	}
	if closeErr != nil {
		return cstmerr.NewArchiveError(fmt.Sprintf("failed to finalize archive %s", zipFilePath), closeErr)
	}
	if fileErr != nil {
		return cstmerr.NewFileIOError(fmt.Sprintf("failed to close archive %s", zipFilePath), fileErr)
	}
	return nil
}

func addZipEntry(zw *zip.Writer, path, name string, info os.FileInfo) error {
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()
	_, err = io.Copy(w, src)
	return err
}
