// Package lsp serves document formatting for the policy directories over
// the Language Server Protocol.
package lsp

import (
	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	_ "github.com/tliron/commonlog/simple"

	"github.com/jsvensson/dirfmt/internal/format"
	"github.com/jsvensson/dirfmt/internal/policy"
)

const serverName = "dirfmt-lsp"

type Server struct {
	handler   protocol.Handler
	docs      *DocumentStore
	version   string
	policy    policy.Policy
	formatter format.Formatter
	log       commonlog.Logger
}

// NewServer returns a server that formats eligible buffers with f and
// leaves the rest alone, as a batch run under p would.
func NewServer(version string, p policy.Policy, f format.Formatter) *Server {
	s := &Server{
		docs:      NewDocumentStore(),
		version:   version,
		policy:    p,
		formatter: f,
		log:       commonlog.GetLogger("dirfmt.lsp"),
	}

	s.handler = protocol.Handler{
		Initialize:             s.initialize,
		Initialized:            s.initialized,
		Shutdown:               s.shutdown,
		SetTrace:               s.setTrace,
		TextDocumentDidOpen:    s.textDocumentDidOpen,
		TextDocumentDidChange:  s.textDocumentDidChange,
		TextDocumentDidClose:   s.textDocumentDidClose,
		TextDocumentFormatting: s.textDocumentFormatting,
	}

	return s
}

// Run serves requests on stdin and stdout until the client exits.
func (s *Server) Run(verbosity int) error {
	commonlog.Configure(verbosity, nil)
	srv := server.NewServer(&s.handler, serverName, false)
	return srv.RunStdio()
}

func (s *Server) initialize(_ *glsp.Context, params *protocol.InitializeParams) (any, error) {
	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: &protocol.True,
		Change:    &syncKind,
	}

	if params.ClientInfo != nil {
		s.log.Infof("client: %s", params.ClientInfo.Name)
	}
	s.log.Infof("formatter: %v", s.formatter)

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    serverName,
			Version: &s.version,
		},
	}, nil
}

func (s *Server) initialized(_ *glsp.Context, _ *protocol.InitializedParams) error {
	return nil
}

func (s *Server) shutdown(_ *glsp.Context) error {
	protocol.SetTraceValue(protocol.TraceValueOff)
	return nil
}

func (s *Server) setTrace(_ *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

func (s *Server) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	doc := s.docs.Open(string(params.TextDocument.URI), params.TextDocument.Text)
	s.publishDiagnostics(ctx, doc)
	return nil
}

func (s *Server) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	for _, change := range params.ContentChanges {
		if c, ok := change.(protocol.TextDocumentContentChangeEventWhole); ok {
			if doc, ok := s.docs.Update(string(params.TextDocument.URI), c.Text); ok {
				s.publishDiagnostics(ctx, doc)
			}
		}
	}
	return nil
}

func (s *Server) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	if doc, ok := s.docs.Close(string(params.TextDocument.URI)); ok {
		s.clearDiagnostics(ctx, doc)
	}
	return nil
}
