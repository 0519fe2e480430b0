package docx

import (
	"testing"

	"github.com/custodia-labs/docquery/internal/core/domain"
)

const sampleDocumentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p>
      <w:pPr><w:pStyle w:val="Heading1"/></w:pPr>
      <w:r><w:t>Overview</w:t></w:r>
    </w:p>
    <w:p>
      <w:r><w:t>First part of the paragraph </w:t></w:r>
      <w:r><w:t>split across runs.</w:t></w:r>
    </w:p>
    <w:p>
      <w:pPr><w:pStyle w:val="ListParagraph"/><w:numPr><w:ilvl w:val="0"/></w:numPr></w:pPr>
      <w:r><w:t>bullet item</w:t></w:r>
    </w:p>
    <w:p>
      <w:r><w:t>   </w:t></w:r>
    </w:p>
    <w:p>
      <w:pPr><w:pStyle w:val="Heading2"/></w:pPr>
      <w:r><w:t>Details</w:t></w:r>
    </w:p>
    <w:p>
      <w:r><w:t>Closing text.</w:t></w:r>
    </w:p>
  </w:body>
</w:document>`

func TestParseDocumentXML(t *testing.T) {
	blocks, err := parseDocumentXML([]byte(sampleDocumentXML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(blocks) != 5 {
		t.Fatalf("expected 5 blocks, got %d", len(blocks))
	}

	if blocks[0].Kind != domain.BlockSectionHead || blocks[0].Text != "Overview" {
		t.Errorf("unexpected heading block: %+v", blocks[0])
	}
	if blocks[1].Text != "First part of the paragraph split across runs." {
		t.Errorf("runs not joined: %q", blocks[1].Text)
	}
	if blocks[1].SectionHeading != "Overview" {
		t.Errorf("paragraph carries wrong heading: %q", blocks[1].SectionHeading)
	}
	if blocks[2].Kind != domain.BlockListItem {
		t.Errorf("expected list_item, got %s", blocks[2].Kind)
	}
	if blocks[3].Kind != domain.BlockSectionHead || blocks[3].SectionIndex != blocks[0].SectionIndex+1 {
		t.Errorf("second heading should start a new section: %+v", blocks[3])
	}
	if blocks[4].SectionHeading != "Details" {
		t.Errorf("closing text carries wrong heading: %q", blocks[4].SectionHeading)
	}
}

func TestParseDocumentXML_Invalid(t *testing.T) {
	if _, err := parseDocumentXML([]byte("not xml at all <")); err == nil {
		t.Error("expected error for malformed document xml")
	}
}

func TestSupportedExtensions(t *testing.T) {
	e := New()
	exts := e.SupportedExtensions()
	if len(exts) != 1 || exts[0] != ".docx" {
		t.Errorf("unexpected extensions: %v", exts)
	}
	if e.Name() != "docx" {
		t.Errorf("unexpected name: %s", e.Name())
	}
}
