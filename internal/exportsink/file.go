package exportsink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"crewsheet/internal/csvexport"
)

// File writes the timesheet export to SavePath and the labor and material
// exports to "<base>_labor<ext>" and "<base>_materials<ext>" next to it.
type File struct {
	SavePath string
}

func NewFile(savePath string) *File {
	return &File{SavePath: strings.TrimSpace(savePath)}
}

// Path returns the file an export of kind is written to.
func (f *File) Path(kind csvexport.Kind) string {
	if kind == csvexport.Timesheet {
		return f.SavePath
	}
	ext := filepath.Ext(f.SavePath)
	base := strings.TrimSuffix(f.SavePath, ext)
	return base + "_" + string(kind) + ext
}

func (f *File) Write(_ context.Context, _ string, doc csvexport.Document) (string, error) {
	if f == nil || f.SavePath == "" {
		return "", &IOError{Sink: "file", Kind: doc.Kind, Err: fmt.Errorf("save path is empty")}
	}
	path := f.Path(doc.Kind)
	if err := writeFileAtomic(path, []byte(doc.Text)); err != nil {
		return "", &IOError{Sink: "file", Kind: doc.Kind, Err: err}
	}
	return path, nil
}

// writeFileAtomic replaces path only after the new content is fully written.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
