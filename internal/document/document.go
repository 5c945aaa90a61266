// Package document tracks the open text documents synced by the client. The
// server consults it to build the snapshots handed to handlers; handlers never
// read files the client has open.
package document

import (
	"fmt"
	"sync"

	"github.com/mehmetkoksal-w/lingua/internal/protocol"
	"github.com/mehmetkoksal-w/lingua/internal/provider"
)

// Store holds full-text snapshots of open documents keyed by URI. Full sync
// only: each change replaces the whole content.
type Store struct {
	mu   sync.RWMutex
	docs map[string]provider.Document
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{docs: make(map[string]provider.Document)}
}

// Open records a newly opened document.
func (s *Store) Open(item protocol.TextDocumentItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[item.URI] = provider.Document{
		URI:        item.URI,
		LanguageID: item.LanguageID,
		Version:    item.Version,
		Content:    item.Text,
	}
}

// Apply replaces the content of an open document. A stale version is dropped
// and reported as applied=false so callers can skip downstream notification;
// the client is the source of truth and never rewinds versions.
func (s *Store) Apply(uri string, version int, text string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[uri]
	if !ok {
		return false, fmt.Errorf("document not open: %s", uri)
	}
	if version < doc.Version {
		return false, nil
	}
	doc.Version = version
	doc.Content = text
	s.docs[uri] = doc
	return true, nil
}

// Close forgets a document.
func (s *Store) Close(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, uri)
}

// Get returns the current snapshot of an open document.
func (s *Store) Get(uri string) (provider.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[uri]
	return doc, ok
}

// All returns a snapshot of every open document.
func (s *Store) All() []provider.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]provider.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		out = append(out, doc)
	}
	return out
}

// Len returns the number of open documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
