package lsp

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jsvensson/dirfmt/internal/driver"
	"github.com/jsvensson/dirfmt/internal/policy"
)

const formatTimeout = 30 * time.Second

// textDocumentFormatting replaces the whole document with the formatter's
// output. Documents a batch run would skip get no edits.
func (s *Server) textDocumentFormatting(_ *glsp.Context, params *protocol.DocumentFormattingParams) ([]protocol.TextEdit, error) {
	uri := string(params.TextDocument.URI)
	doc, ok := s.docs.Get(uri)
	if !ok {
		return nil, fmt.Errorf("document not open: %s", uri)
	}

	var formatted string
	switch {
	case doc.name == policy.FileName:
		formatted = string(policy.FormatHCL([]byte(doc.content)))
	case !s.policy.Eligible(doc.name):
		s.log.Debugf("not formatting %s", doc.name)
		return nil, nil
	default:
		ctx, cancel := context.WithTimeout(context.Background(), formatTimeout)
		defer cancel()
		out, err := s.formatBuffer(ctx, doc)
		if err != nil {
			s.log.Errorf("formatting %s: %s", uri, err.Error())
			return nil, err
		}
		formatted = out
	}

	if formatted == doc.content {
		return nil, nil
	}
	return []protocol.TextEdit{{
		Range:   fullRange(doc.content),
		NewText: formatted,
	}}, nil
}

// formatBuffer runs the formatter over a copy of the buffer written next to
// the document, so the formatter finds the same style files it would in a
// batch run. Buffers without a directory are copied to the temp dir.
func (s *Server) formatBuffer(ctx context.Context, doc document) (string, error) {
	dir := doc.dir
	if dir == "" {
		dir = os.TempDir()
	}

	tmp, err := os.CreateTemp(dir, policy.TempPrefix+"*-"+doc.name)
	if err != nil {
		return "", fmt.Errorf("creating buffer copy: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(doc.content); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing buffer copy: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing buffer copy: %w", err)
	}

	out, err := s.formatter.Format(ctx, tmp.Name())
	if err != nil {
		return "", err
	}
	if len(out) == 0 && strings.TrimSpace(doc.content) != "" {
		return "", driver.ErrEmptyOutput
	}
	return string(out), nil
}

// fullRange spans all of content. Characters on the last line are counted
// in UTF-16 code units.
func fullRange(content string) protocol.Range {
	lines := strings.Count(content, "\n")
	last := content[strings.LastIndex(content, "\n")+1:]
	return protocol.Range{
		Start: protocol.Position{Line: 0, Character: 0},
		End: protocol.Position{
			Line:      uint32(lines),
			Character: uint32(len(utf16.Encode([]rune(last)))),
		},
	}
}
