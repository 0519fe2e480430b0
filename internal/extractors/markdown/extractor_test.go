package markdown

import (
	"context"
	"strings"
	"testing"

	"github.com/custodia-labs/docquery/internal/core/domain"
)

func extract(t *testing.T, src string) []domain.Block {
	t.Helper()
	blocks, err := New().Extract(context.Background(), []byte(src))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	return blocks
}

func TestExtract_HeadingsStartSections(t *testing.T) {
	src := "# Title\n\nIntro paragraph.\n\n## Details\n\nDetail paragraph.\n"
	blocks := extract(t, src)

	if len(blocks) != 4 {
		t.Fatalf("expected 4 blocks, got %d", len(blocks))
	}
	if blocks[0].Kind != domain.BlockSectionHead || blocks[0].Text != "Title" {
		t.Errorf("unexpected first block: %+v", blocks[0])
	}
	if blocks[1].Kind != domain.BlockParagraph || blocks[1].SectionIndex != blocks[0].SectionIndex {
		t.Errorf("intro paragraph should sit in the title section: %+v", blocks[1])
	}
	if blocks[2].SectionIndex <= blocks[0].SectionIndex {
		t.Error("second heading must start a new section")
	}
	if blocks[3].SectionHeading != "Details" {
		t.Errorf("detail paragraph carries wrong heading: %q", blocks[3].SectionHeading)
	}
}

func TestExtract_ListItems(t *testing.T) {
	src := "Preamble.\n\n- alpha item\n- beta item\n"
	blocks := extract(t, src)

	var items []domain.Block
	for _, b := range blocks {
		if b.Kind == domain.BlockListItem {
			items = append(items, b)
		}
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 list items, got %d", len(items))
	}
	if items[0].Text != "alpha item" || items[1].Text != "beta item" {
		t.Errorf("unexpected item texts: %q, %q", items[0].Text, items[1].Text)
	}
}

func TestExtract_CodeBlockIsUnknown(t *testing.T) {
	src := "Text before.\n\n```go\nfunc main() {}\n```\n"
	blocks := extract(t, src)

	var code *domain.Block
	for i := range blocks {
		if blocks[i].Kind == domain.BlockUnknown {
			code = &blocks[i]
		}
	}
	if code == nil {
		t.Fatal("expected a code block classified as unknown")
	}
	if !strings.Contains(code.Text, "func main()") {
		t.Errorf("code text lost: %q", code.Text)
	}
}

func TestExtract_InlineFormattingFlattened(t *testing.T) {
	src := "Some **bold** and *italic* and `code` text.\n"
	blocks := extract(t, src)

	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(blocks))
	}
	if blocks[0].Text != "Some bold and italic and code text." {
		t.Errorf("inline markup not flattened: %q", blocks[0].Text)
	}
}

func TestExtract_SoftWrapJoined(t *testing.T) {
	src := "A sentence wrapped\nacross two source lines.\n"
	blocks := extract(t, src)

	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(blocks))
	}
	if blocks[0].Text != "A sentence wrapped across two source lines." {
		t.Errorf("soft wrap not joined: %q", blocks[0].Text)
	}
}

func TestExtract_Empty(t *testing.T) {
	blocks := extract(t, "")
	if len(blocks) != 0 {
		t.Errorf("expected no blocks, got %d", len(blocks))
	}
}

func TestSupportedExtensions(t *testing.T) {
	e := New()
	exts := e.SupportedExtensions()
	if len(exts) != 2 || exts[0] != ".md" {
		t.Errorf("unexpected extensions: %v", exts)
	}
	if e.Name() != "markdown" {
		t.Errorf("unexpected name: %s", e.Name())
	}
}
