package pdf

import (
	"testing"

	"github.com/custodia-labs/docquery/internal/core/domain"
)

func kinds(blocks []domain.Block) []domain.BlockKind {
	out := make([]domain.BlockKind, len(blocks))
	for i, b := range blocks {
		out[i] = b.Kind
	}
	return out
}

func TestClassify_Headings(t *testing.T) {
	blocks := Classify("1. Introduction\n\nThis paper describes the system in detail and motivates the design.\n")
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d: %v", len(blocks), kinds(blocks))
	}
	if blocks[0].Kind != domain.BlockSectionHead {
		t.Errorf("expected section_head, got %s", blocks[0].Kind)
	}
	if blocks[1].Kind != domain.BlockParagraph {
		t.Errorf("expected paragraph, got %s", blocks[1].Kind)
	}
	if blocks[1].SectionIndex != blocks[0].SectionIndex {
		t.Error("paragraph should share its heading's section index")
	}
	if blocks[1].SectionHeading != "1. Introduction" {
		t.Errorf("paragraph carries wrong heading: %q", blocks[1].SectionHeading)
	}
}

func TestClassify_SectionIndexIncrements(t *testing.T) {
	text := "INTRODUCTION\n\nBody one that is long enough to read like prose, with an ending.\n\nMETHODS\n\nBody two, also looking like an ordinary sentence of text.\n"
	blocks := Classify(text)

	var sections []int
	for _, b := range blocks {
		if b.Kind == domain.BlockSectionHead {
			sections = append(sections, b.SectionIndex)
		}
	}
	if len(sections) != 2 {
		t.Fatalf("expected 2 headings, got %d", len(sections))
	}
	if sections[0] == sections[1] {
		t.Error("each heading must start a new section")
	}
}

func TestClassify_ListItems(t *testing.T) {
	blocks := Classify("- first item in the list\n\n- second item in the list\n")
	for _, b := range blocks {
		if b.Kind != domain.BlockListItem {
			t.Errorf("expected list_item, got %s for %q", b.Kind, b.Text)
		}
	}
}

func TestClassify_Captions(t *testing.T) {
	blocks := Classify("Figure 3 shows the throughput across all configurations measured.\n")
	if len(blocks) != 1 || blocks[0].Kind != domain.BlockFigureCaption {
		t.Fatalf("expected figure_caption, got %v", kinds(blocks))
	}
	if len(blocks[0].RefTargets) == 0 {
		t.Error("caption should carry its own figure label as a ref target")
	}
}

func TestClassify_ReferencesSection(t *testing.T) {
	text := "REFERENCES\n\n[1] A. Author. Some paper title. Conf, 2020.\n\nSmith et al. Another work without bracket numbering, 2019.\n"
	blocks := Classify(text)

	if blocks[0].Kind != domain.BlockSectionHead {
		t.Fatalf("expected references heading, got %s", blocks[0].Kind)
	}
	for _, b := range blocks[1:] {
		if b.Kind != domain.BlockReference {
			t.Errorf("inside references section expected reference, got %s for %q", b.Kind, b.Text)
		}
	}
}

func TestClassify_Equation(t *testing.T) {
	blocks := Classify("y = a*x + b*(x^2) + c\n")
	if len(blocks) != 1 || blocks[0].Kind != domain.BlockEquation {
		t.Fatalf("expected equation, got %v", kinds(blocks))
	}
}

func TestClassify_Table(t *testing.T) {
	blocks := Classify("name\tcount\tshare\nalpha\t10\t0.5\nbeta\t10\t0.5\n")
	if len(blocks) != 1 || blocks[0].Kind != domain.BlockTable {
		t.Fatalf("expected table, got %v", kinds(blocks))
	}
}

func TestClassify_SoftWrappedParagraph(t *testing.T) {
	text := "This sentence was wrapped\nacross two lines by the layout engine.\n\nNext paragraph follows here with enough words.\n"
	blocks := Classify(text)
	if len(blocks) != 2 {
		t.Fatalf("expected 2 paragraphs, got %d: %v", len(blocks), kinds(blocks))
	}
	if blocks[0].Text != "This sentence was wrapped across two lines by the layout engine." {
		t.Errorf("soft wrap not joined: %q", blocks[0].Text)
	}
}

func TestSupportedExtensions(t *testing.T) {
	e := New()
	exts := e.SupportedExtensions()
	if len(exts) != 1 || exts[0] != ".pdf" {
		t.Errorf("unexpected extensions: %v", exts)
	}
	if e.Name() != "pdf" {
		t.Errorf("unexpected name: %s", e.Name())
	}
}
