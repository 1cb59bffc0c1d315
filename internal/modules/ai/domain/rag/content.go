package rag

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var spaceRun = regexp.MustCompile(`[ \t]+`)

// NormalizeContent 统一换行、去掉首尾空白并压缩连续空格/制表符
func NormalizeContent(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.TrimSpace(s)
	return spaceRun.ReplaceAllString(s, " ")
}

// ContentHash 归一化内容的 sha256 十六进制摘要
func ContentHash(s string) string {
	sum := sha256.Sum256([]byte(NormalizeContent(s)))
	return hex.EncodeToString(sum[:])
}
