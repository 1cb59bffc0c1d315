package rag

import "strings"

// SourceDocument 来源适配器产出的待摄取文档
type SourceDocument struct {
	Domain     Domain
	SourceType SourceType
	SourceID   string
	Title      *string
	Content    string
}

// Validate 检查必填字段
func (s SourceDocument) Validate() error {
	if _, err := ParseDomain(string(s.Domain)); err != nil {
		return err
	}
	if _, err := ParseSourceType(string(s.SourceType)); err != nil {
		return err
	}
	if strings.TrimSpace(s.SourceID) == "" {
		return Validationf("source id is required")
	}
	return nil
}
