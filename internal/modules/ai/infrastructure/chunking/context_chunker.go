package chunking

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxChars 单个 chunk 的默认字符预算（含换行）
const DefaultMaxChars = 900

var headingLine = regexp.MustCompile(`^#{1,3}\s+`)

// Piece 切分结果，ContextID 为所属结构块序号，Index 为全文档内的连续序号
type Piece struct {
	ContextID int
	Index     int
	Text      string
}

// ContextChunker 先按 1~3 级标题划分结构块，再在块内按字符预算贪心装行。
// 单行超出预算时独立成块，不在行内截断；结构块之间从不合并。
type ContextChunker struct {
	MaxChars int
}

// NewContextChunker 创建切片器，maxChars<=0 时使用默认预算
func NewContextChunker(maxChars int) *ContextChunker {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &ContextChunker{MaxChars: maxChars}
}

// Chunk 纯函数，相同输入总是得到相同输出
func (c *ContextChunker) Chunk(text string) []Piece {
	blocks := splitBlocks(text)
	out := make([]Piece, 0, len(blocks))
	idx := 0
	for ctxID, lines := range blocks {
		for _, body := range packLines(lines, c.maxChars()) {
			out = append(out, Piece{ContextID: ctxID, Index: idx, Text: body})
			idx++
		}
	}
	return out
}

func (c *ContextChunker) maxChars() int {
	if c == nil || c.MaxChars <= 0 {
		return DefaultMaxChars
	}
	return c.MaxChars
}

// splitBlocks 统一换行、去掉行尾空白与空行，并在标题行处开启新块
func splitBlocks(text string) [][]string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var blocks [][]string
	var cur []string
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimRightFunc(raw, unicode.IsSpace)
		if strings.TrimSpace(line) == "" {
			continue
		}
		if headingLine.MatchString(strings.TrimSpace(line)) && len(cur) > 0 {
			blocks = append(blocks, cur)
			cur = nil
		}
		cur = append(cur, line)
	}
	if len(cur) > 0 {
		blocks = append(blocks, cur)
	}
	return blocks
}

// packLines 贪心装行：加入下一行（含换行符）会超出预算时先落盘
func packLines(lines []string, maxChars int) []string {
	var out []string
	var buf []string
	size := 0
	for _, ln := range lines {
		n := utf8.RuneCountInString(ln)
		if len(buf) > 0 && size+n+1 > maxChars {
			out = append(out, strings.Join(buf, "\n"))
			buf = nil
			size = 0
		}
		buf = append(buf, ln)
		size += n + 1
	}
	if len(buf) > 0 {
		out = append(out, strings.Join(buf, "\n"))
	}
	return out
}
