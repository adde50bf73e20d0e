package lsp

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jsvensson/dirfmt/internal/policy"
)

var (
	diagError   = protocol.DiagnosticSeverityError
	diagWarning = protocol.DiagnosticSeverityWarning
)

// publishDiagnostics reports policy file problems to the client. Other
// documents have nothing to report.
func (s *Server) publishDiagnostics(ctx *glsp.Context, doc document) {
	if doc.name != policy.FileName || ctx == nil {
		return
	}
	diags := policyDiagnostics(doc)
	s.log.Debugf("%s: %d diagnostics", doc.uri, len(diags))
	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         protocol.DocumentUri(doc.uri),
		Diagnostics: diags,
	})
}

func (s *Server) clearDiagnostics(ctx *glsp.Context, doc document) {
	if doc.name != policy.FileName || ctx == nil {
		return
	}
	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         protocol.DocumentUri(doc.uri),
		Diagnostics: []protocol.Diagnostic{},
	})
}

func policyDiagnostics(doc document) []protocol.Diagnostic {
	// Never nil: an empty list clears earlier diagnostics in the client.
	out := []protocol.Diagnostic{}
	for _, d := range policy.Diagnose([]byte(doc.content), doc.name) {
		out = append(out, hclDiagToLSP(d))
	}
	return out
}

// hclPosToLSP converts an HCL position to an LSP position.
// HCL positions are 1-based; LSP positions are 0-based.
func hclPosToLSP(pos hcl.Pos) protocol.Position {
	return protocol.Position{
		Line:      uint32(max(pos.Line-1, 0)),
		Character: uint32(max(pos.Column-1, 0)),
	}
}

func hclRangeToLSP(r hcl.Range) protocol.Range {
	return protocol.Range{
		Start: hclPosToLSP(r.Start),
		End:   hclPosToLSP(r.End),
	}
}

func hclDiagToLSP(d *hcl.Diagnostic) protocol.Diagnostic {
	sev := diagError
	if d.Severity == hcl.DiagWarning {
		sev = diagWarning
	}

	diag := protocol.Diagnostic{
		Severity: &sev,
		Message:  d.Summary,
		Source:   strPtr("dirfmt"),
	}
	if d.Detail != "" {
		diag.Message = d.Summary + ": " + d.Detail
	}
	if d.Subject != nil {
		diag.Range = hclRangeToLSP(*d.Subject)
	}
	return diag
}

func strPtr(s string) *string {
	return &s
}
