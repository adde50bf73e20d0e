package lsp

import (
	"net/url"
	"path"
	"path/filepath"
	"sync"
)

// document is an open buffer. dir is empty unless the URI names a file on
// disk.
type document struct {
	uri     string
	dir     string
	name    string
	content string
}

// DocumentStore holds open documents keyed by URI.
type DocumentStore struct {
	mu   sync.RWMutex
	docs map[string]document
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[string]document)}
}

func (s *DocumentStore) Open(uri, content string) document {
	dir, name := splitURI(uri)
	doc := document{uri: uri, dir: dir, name: name, content: content}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[uri] = doc
	return doc
}

// Update replaces the content of an open document.
func (s *DocumentStore) Update(uri, content string) (document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[uri]
	if !ok {
		return document{}, false
	}
	doc.content = content
	s.docs[uri] = doc
	return doc, true
}

func (s *DocumentStore) Close(uri string) (document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[uri]
	delete(s.docs, uri)
	return doc, ok
}

func (s *DocumentStore) Get(uri string) (document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[uri]
	return doc, ok
}

// splitURI returns the directory and base name a URI refers to.
func splitURI(uri string) (dir, name string) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", path.Base(uri)
	}
	if u.Scheme != "file" {
		p := u.Path
		if p == "" {
			p = u.Opaque
		}
		return "", path.Base(p)
	}
	p := filepath.FromSlash(u.Path)
	return filepath.Dir(p), filepath.Base(p)
}
