package webui

import (
	"io"
	"strings"
	"testing"
)

func TestIndex(t *testing.T) {
	t.Parallel()

	page, err := Index()
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if !strings.Contains(string(page), "<title>truecase</title>") {
		t.Fatal("unexpected index page")
	}
}

func TestStaticFS(t *testing.T) {
	t.Parallel()

	f, err := StaticFS().Open("index.html")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = f.Close() }()
	data, err := io.ReadAll(f)
	if err != nil || len(data) == 0 {
		t.Fatalf("read index.html: %v (%d bytes)", err, len(data))
	}
}
