package fmu

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// maxDescriptionSize bounds how much of modelDescription.xml is read.
const maxDescriptionSize = 64 << 20

// ReadModelDescription loads the model description of the FMU at p. The path
// may name an .fmu archive, an extracted FMU directory, or a bare
// modelDescription.xml file. No model binary is touched.
func ReadModelDescription(p string) (*ModelDescription, error) {
	data, err := readDescriptionBytes(p)
	if err != nil {
		return nil, err
	}
	md, err := ParseModelDescription(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	return md, nil
}

func readDescriptionBytes(p string) ([]byte, error) {
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArchive, p, err)
	}

	if info.IsDir() {
		return readLimited(filepath.Join(p, DescriptionFile))
	}
	if strings.EqualFold(filepath.Ext(p), ".xml") {
		return readLimited(p)
	}

	zr, err := zip.OpenReader(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArchive, p, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if path.Clean(f.Name) != DescriptionFile {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArchive, p, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(io.LimitReader(rc, maxDescriptionSize))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArchive, p, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%w: %s: no %s at archive root", ErrInvalidArchive, p, DescriptionFile)
}

func readLimited(name string) ([]byte, error) {
	f, err := os.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArchive, name, err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxDescriptionSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArchive, name, err)
	}
	return data, nil
}
