package gzipx

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"
)

// DefaultLevel 与原始内容落库时使用的压缩等级一致
const DefaultLevel = 6

// CompressText 以指定等级压缩 UTF-8 文本
func CompressText(text string, level int) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write([]byte(text)); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecompressText 解压 CompressText 的输出
func DecompressText(blob []byte) (string, error) {
	if len(blob) == 0 {
		return "", nil
	}
	r, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return "", err
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
