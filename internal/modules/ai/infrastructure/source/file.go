package source

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"unicode/utf8"

	"koo/internal/modules/ai/domain/rag"
)

// File 本地 UTF-8 文本文件，source id 为清理后的路径
type File struct {
	domain rag.Domain
	path   string
}

func NewFile(domain rag.Domain, path string) *File {
	return &File{domain: domain, path: path}
}

func (f *File) Kind() rag.SourceType { return rag.SourceFile }

func (f *File) BuildDocument(_ context.Context) (rag.SourceDocument, error) {
	if f.path == "" {
		return rag.SourceDocument{}, rag.MalformedSourcef("file path is empty")
	}
	path := filepath.Clean(f.path)

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return rag.SourceDocument{}, rag.MalformedSourcef("file not found: %s", path)
		}
		return rag.SourceDocument{}, rag.MalformedSourcef("stat %s: %v", path, err)
	}
	if !info.Mode().IsRegular() {
		return rag.SourceDocument{}, rag.MalformedSourcef("not a file: %s", path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return rag.SourceDocument{}, rag.MalformedSourcef("read %s: %v", path, err)
	}
	if !utf8.Valid(raw) {
		return rag.SourceDocument{}, rag.MalformedSourcef("file is not valid utf-8: %s", path)
	}

	title := filepath.Base(path)
	return rag.SourceDocument{
		Domain:     f.domain,
		SourceType: rag.SourceFile,
		SourceID:   path,
		Title:      &title,
		Content:    string(raw),
	}, nil
}
