package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestDocumentExtractor_PlainText(t *testing.T) {
	e := NewDocumentExtractor(0)
	got, err := e.Extract(context.Background(), []byte("Glucose 142 mg/dL\nHbA1c 7.1 %"), "notes.txt", "text/plain")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !strings.Contains(got, "HbA1c") {
		t.Errorf("Extract() = %q", got)
	}
}

func TestDocumentExtractor_BoundsLength(t *testing.T) {
	para := strings.Repeat("word ", 200) // 1000 字符
	text := strings.Repeat(para+"\n\n", 20)

	got, err := NewDocumentExtractor(3000).Extract(context.Background(), []byte(text), "long.txt", "")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if n := utf8.RuneCountInString(got); n == 0 || n > 3000+10 {
		t.Errorf("extracted %d runes, want at most ~3000", n)
	}
}

func TestDocumentExtractor_Unsupported(t *testing.T) {
	_, err := NewDocumentExtractor(0).Extract(context.Background(), []byte{0x00}, "scan.tiff", "image/tiff")
	if !errors.Is(err, ErrUnsupportedDocument) {
		t.Errorf("Extract() error = %v, want ErrUnsupportedDocument", err)
	}
}

func TestDocumentExtractor_EmptyText(t *testing.T) {
	if _, err := NewDocumentExtractor(0).Extract(context.Background(), nil, "empty.txt", "text/plain"); err == nil {
		t.Error("Extract() should fail when no text is found")
	}
}
