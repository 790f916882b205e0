package fmu

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"os"
)

// MarshalDescription renders md as modelDescription.xml content.
func MarshalDescription(md *ModelDescription) ([]byte, error) {
	body, err := xml.MarshalIndent(toXML(md), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal model description: %w", err)
	}
	out := make([]byte, 0, len(xml.Header)+len(body)+1)
	out = append(out, xml.Header...)
	out = append(out, body...)
	out = append(out, '\n')
	return out, nil
}

// WriteArchive writes a minimal FMU archive holding only the model
// description. Executable bindings are resolved by model identifier at run
// time, so no binaries are packed.
func WriteArchive(path string, md *ModelDescription) error {
	data, err := MarshalDescription(md)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	zw := zip.NewWriter(f)
	w, err := zw.Create(DescriptionFile)
	if err != nil {
		zw.Close()
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if _, err := w.Write(data); err != nil {
		zw.Close()
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
