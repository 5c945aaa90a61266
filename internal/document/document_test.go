package document

import (
	"testing"

	"github.com/mehmetkoksal-w/lingua/internal/protocol"
)

func TestOpenGetClose(t *testing.T) {
	s := NewStore()
	s.Open(protocol.TextDocumentItem{URI: "file:///a.x", LanguageID: "alpha", Version: 1, Text: "one"})

	doc, ok := s.Get("file:///a.x")
	if !ok {
		t.Fatal("document should be open")
	}
	if doc.Content != "one" || doc.Version != 1 || doc.LanguageID != "alpha" {
		t.Errorf("doc = %+v", doc)
	}

	s.Close("file:///a.x")
	if _, ok := s.Get("file:///a.x"); ok {
		t.Error("document should be forgotten after close")
	}
}

func TestApplyReplacesContent(t *testing.T) {
	s := NewStore()
	s.Open(protocol.TextDocumentItem{URI: "file:///a.x", Version: 1, Text: "one"})

	applied, err := s.Apply("file:///a.x", 2, "two")
	if err != nil {
		t.Fatal(err)
	}
	if !applied {
		t.Error("newer version must be applied")
	}
	doc, _ := s.Get("file:///a.x")
	if doc.Content != "two" || doc.Version != 2 {
		t.Errorf("doc = %+v", doc)
	}
}

func TestApplyDropsStaleVersions(t *testing.T) {
	s := NewStore()
	s.Open(protocol.TextDocumentItem{URI: "file:///a.x", Version: 5, Text: "five"})

	applied, err := s.Apply("file:///a.x", 3, "three")
	if err != nil {
		t.Fatal(err)
	}
	if applied {
		t.Error("stale version must report applied=false")
	}
	doc, _ := s.Get("file:///a.x")
	if doc.Content != "five" || doc.Version != 5 {
		t.Errorf("stale change applied: %+v", doc)
	}
}

func TestApplyUnopenedDocumentFails(t *testing.T) {
	s := NewStore()
	if _, err := s.Apply("file:///missing.x", 1, "x"); err == nil {
		t.Error("applying to an unopened document should fail")
	}
}

func TestAllAndLen(t *testing.T) {
	s := NewStore()
	s.Open(protocol.TextDocumentItem{URI: "file:///a.x", Version: 1})
	s.Open(protocol.TextDocumentItem{URI: "file:///b.x", Version: 1})

	if s.Len() != 2 {
		t.Errorf("Len = %d, want 2", s.Len())
	}
	if got := len(s.All()); got != 2 {
		t.Errorf("All = %d entries, want 2", got)
	}
}
