package file

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestLocalStorage_SaveGetDelete(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir(), "/files/")
	if err != nil {
		t.Fatalf("NewLocalStorage() error = %v", err)
	}

	key, err := s.Save(ctx, &SaveRequest{
		FileName:    "cbc",
		ContentType: "application/pdf",
		Reader:      strings.NewReader("%PDF-1.4"),
		UserID:      "user-1",
	})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !strings.HasPrefix(key, "user-1/") || !strings.HasSuffix(key, ".pdf") {
		t.Errorf("Save() key = %q, want user-1/<uuid>.pdf", key)
	}
	if got := s.GetURL(key); got != "/files/"+key {
		t.Errorf("GetURL() = %q", got)
	}

	rc, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "%PDF-1.4" {
		t.Errorf("Get() content = %q", data)
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	// 重复删除不报错
	if err := s.Delete(ctx, key); err != nil {
		t.Errorf("second Delete() error = %v", err)
	}
	if _, err := s.Get(ctx, key); err == nil {
		t.Error("Get() after delete should fail")
	}
}

func TestLocalStorage_RejectsEscapingKey(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir(), "/files")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(context.Background(), "../../etc/passwd"); err == nil {
		t.Error("Get() should reject keys outside the base path")
	}
}

func TestExtensionByContentType(t *testing.T) {
	tests := map[string]string{
		"application/pdf": ".pdf",
		"image/png":       ".png",
		"image/jpeg":      ".jpg",
		"unknown/type":    ".bin",
	}
	for ct, want := range tests {
		if got := extensionByContentType(ct); got != want {
			t.Errorf("extensionByContentType(%q) = %q, want %q", ct, got, want)
		}
	}
}
