package rag

import (
	"strings"
)

// Domain 语料的逻辑分区，每个分区对应一个向量集合
type Domain string

const (
	DomainCS  Domain = "CS"
	DomainDEV Domain = "DEV"
)

// AllDomains 按固定顺序返回全部分区
func AllDomains() []Domain { return []Domain{DomainCS, DomainDEV} }

func (d Domain) String() string { return string(d) }

// Lower 集合名使用的小写形式
func (d Domain) Lower() string { return strings.ToLower(string(d)) }

// ParseDomain 大小写不敏感地解析分区
func ParseDomain(s string) (Domain, error) {
	switch Domain(strings.ToUpper(strings.TrimSpace(s))) {
	case DomainCS:
		return DomainCS, nil
	case DomainDEV:
		return DomainDEV, nil
	}
	return "", Validationf("unknown domain %q", s)
}

// ParseDomains 解析配置中的分区列表，重复项只保留第一次出现
func ParseDomains(items []string) ([]Domain, error) {
	out := make([]Domain, 0, len(items))
	seen := make(map[Domain]struct{}, len(items))
	for _, s := range items {
		d, err := ParseDomain(s)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out, nil
}

// SourceType 内容来源
type SourceType string

const (
	SourceGithub  SourceType = "GITHUB"
	SourceSlack   SourceType = "SLACK"
	SourceNotion  SourceType = "NOTION"
	SourceRawText SourceType = "RAW_TEXT"
	SourceFile    SourceType = "FILE"
)

func (s SourceType) String() string { return string(s) }

// ParseSourceType 大小写不敏感，接受 raw-text 这类写法
func ParseSourceType(s string) (SourceType, error) {
	v := SourceType(strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), "-", "_"))
	switch v {
	case SourceGithub, SourceSlack, SourceNotion, SourceRawText, SourceFile:
		return v, nil
	}
	return "", Validationf("unknown source type %q", s)
}
