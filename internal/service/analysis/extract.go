package analysis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/cloudwego/eino-ext/components/document/parser/docx"
	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	"github.com/cloudwego/eino-ext/components/document/transformer/splitter/recursive"
	einoparser "github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"
)

// DefaultMaxDocumentChars 送入模型的文档文本上限
const DefaultMaxDocumentChars = 12000

// ErrUnsupportedDocument 不支持提取文本的文档类型
var ErrUnsupportedDocument = errors.New("unsupported document type")

// TextExtractor 从文档二进制中提取文本
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, fileName, contentType string) (string, error)
}

// DocumentExtractor 基于 eino-ext 解析器的文本提取，并用递归分块器控制长度
type DocumentExtractor struct {
	maxChars int
}

// NewDocumentExtractor 创建文本提取器
func NewDocumentExtractor(maxChars int) *DocumentExtractor {
	if maxChars <= 0 {
		maxChars = DefaultMaxDocumentChars
	}
	return &DocumentExtractor{maxChars: maxChars}
}

// Extract 解析文档并返回不超过上限的文本
func (e *DocumentExtractor) Extract(ctx context.Context, data []byte, fileName, contentType string) (string, error) {
	p, err := newParser(ctx, fileName, contentType)
	if err != nil {
		return "", err
	}

	docs, err := p.Parse(ctx, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parser failed: %w", err)
	}

	text, err := e.bound(ctx, docs)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("no text extracted from %s", fileName)
	}
	return text, nil
}

// bound 按段落切分后拼接，直到达到字符上限
func (e *DocumentExtractor) bound(ctx context.Context, docs []*schema.Document) (string, error) {
	total := 0
	for _, d := range docs {
		total += utf8.RuneCountInString(d.Content)
	}
	if total <= e.maxChars {
		parts := make([]string, 0, len(docs))
		for _, d := range docs {
			parts = append(parts, d.Content)
		}
		return strings.Join(parts, "\n\n"), nil
	}

	splitter, err := recursive.NewSplitter(ctx, &recursive.Config{
		ChunkSize:   2000,
		OverlapSize: 0,
		Separators:  []string{"\n\n", "\n", ". ", " ", ""},
		KeepType:    recursive.KeepTypeNone,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create splitter: %w", err)
	}

	chunks, err := splitter.Transform(ctx, docs)
	if err != nil {
		return "", fmt.Errorf("splitter failed: %w", err)
	}

	var sb strings.Builder
	used := 0
	for _, c := range chunks {
		n := utf8.RuneCountInString(c.Content)
		if used+n > e.maxChars {
			break
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(c.Content)
		used += n
	}
	if sb.Len() == 0 && len(chunks) > 0 {
		return truncateRunes(chunks[0].Content, e.maxChars), nil
	}
	return sb.String(), nil
}

// newParser 按扩展名或内容类型选择解析器
func newParser(ctx context.Context, fileName, contentType string) (einoparser.Parser, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch {
	case ext == ".pdf" || contentType == "application/pdf":
		return pdf.NewPDFParser(ctx, &pdf.Config{ToPages: false})
	case ext == ".docx" || contentType == "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return docx.NewDocxParser(ctx, &docx.Config{
			ToSections:      false,
			IncludeComments: false,
			IncludeHeaders:  true,
			IncludeFooters:  false,
			IncludeTables:   true,
		})
	case ext == ".txt" || strings.HasPrefix(contentType, "text/"):
		return &textParser{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDocument, ext)
	}
}

// textParser 纯文本解析器
type textParser struct{}

func (p *textParser) Parse(_ context.Context, reader io.Reader, opts ...einoparser.Option) ([]*schema.Document, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read: %w", err)
	}
	if len(content) == 0 {
		return []*schema.Document{}, nil
	}
	return []*schema.Document{{Content: string(content), MetaData: map[string]any{}}}, nil
}
