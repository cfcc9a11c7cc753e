// Package server implements a language server for garden source files.
package server

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/purplegarden/compiler"
	"github.com/chazu/purplegarden/vm"
)

const lspName = "purplegarden-lsp"

var log = commonlog.GetLogger("purplegarden.lsp")

var keywords = []string{"fn", "let", "match", "std", "true", "false"}

// LspServer serves diagnostics, completion, hover, definition and references
// for garden documents. Every request re-analyzes the document text.
type LspServer struct {
	builtins *vm.Registry

	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a language server resolving std paths through builtins; nil
// selects vm.StdBuiltins().
func NewLSP(builtins *vm.Registry) *LspServer {
	if builtins == nil {
		builtins = vm.StdBuiltins()
	}
	s := &LspServer{
		builtins: builtins,
		docs:     make(map[string]string),
		version:  "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
		TextDocumentReferences: s.textDocumentReferences,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Info("initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{":"},
	}

	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true
	capabilities.ReferencesProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.mu.Lock()
			s.docs[string(uri)] = whole.Text
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func (s *LspServer) document(uri protocol.DocumentUri) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.docs[string(uri)]
	return text, ok
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	prefix := extractPrefix(text, params.Position)
	if prefix == "" {
		return nil, nil
	}
	return s.complete(text, prefix), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	return s.hover(text, params.Position), nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}
	locs := definition(params.TextDocument.URI, text, word)
	if len(locs) == 0 {
		return nil, nil
	}
	return locs, nil
}

func (s *LspServer) textDocumentReferences(ctx *glsp.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}
	return references(params.TextDocument.URI, text, word), nil
}

// --- Analysis ---

func (s *LspServer) complete(text, prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	add := func(label string, kind protocol.CompletionItemKind, detail string) {
		items = append(items, protocol.CompletionItem{
			Label:      label,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &label,
		})
	}

	// Builtin paths complete from the full path typed so far.
	if strings.Contains(prefix, ":") {
		for _, name := range s.builtins.Names() {
			if strings.HasPrefix(name, prefix) {
				b, _ := s.builtins.Resolve(name)
				add(name, protocol.CompletionItemKindFunction, signature(b))
			}
		}
		return items
	}

	seen := make(map[string]bool)
	for _, sym := range indexSymbols(text) {
		if seen[sym.name] || !strings.HasPrefix(sym.name, prefix) {
			continue
		}
		seen[sym.name] = true
		switch sym.kind {
		case symbolFn:
			add(sym.name, protocol.CompletionItemKindFunction, fnSignature(sym))
		case symbolLet:
			add(sym.name, protocol.CompletionItemKindVariable, "let")
		default:
			add(sym.name, protocol.CompletionItemKindVariable, "parameter")
		}
	}
	for _, kw := range keywords {
		if strings.HasPrefix(kw, prefix) && !seen[kw] {
			add(kw, protocol.CompletionItemKindKeyword, "keyword")
		}
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Label < items[j].Label })

	const maxItems = 100
	if len(items) > maxItems {
		items = items[:maxItems]
	}
	return items
}

func (s *LspServer) hover(text string, pos protocol.Position) *protocol.Hover {
	var body string
	if path := extractPath(text, pos); strings.Contains(path, "::") {
		b, ok := s.builtins.Resolve(path)
		if !ok {
			return nil
		}
		body = fmt.Sprintf("```\n%s\n```\nbuiltin", signature(b))
	} else {
		word := extractWord(text, pos)
		if word == "" {
			return nil
		}
		sym, ok := lookupSymbol(text, word)
		if !ok {
			return nil
		}
		switch sym.kind {
		case symbolFn:
			body = fmt.Sprintf("```\n%s\n```\ndefined at line %d", fnSignature(sym), sym.tok.Line)
		case symbolLet:
			body = fmt.Sprintf("```\nlet %s\n```\nbound at line %d", sym.name, sym.tok.Line)
		default:
			body = fmt.Sprintf("```\n%s\n```\nparameter", sym.name)
		}
	}
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: body,
		},
	}
}

func definition(uri protocol.DocumentUri, text, word string) []protocol.Location {
	var locs []protocol.Location
	for _, sym := range indexSymbols(text) {
		if sym.name == word {
			locs = append(locs, protocol.Location{URI: uri, Range: tokenRange(sym.tok)})
		}
	}
	return locs
}

func references(uri protocol.DocumentUri, text, word string) []protocol.Location {
	var locs []protocol.Location
	for _, tok := range identTokens(text, word) {
		locs = append(locs, protocol.Location{URI: uri, Range: tokenRange(tok)})
	}
	return locs
}

func signature(b vm.Builtin) string {
	if b.Arity == vm.Variadic {
		return b.Name + "(...)"
	}
	args := make([]string, b.Arity)
	for i := range args {
		args[i] = fmt.Sprintf("a%d", i)
	}
	return fmt.Sprintf("%s(%s)", b.Name, strings.Join(args, " "))
}

func fnSignature(sym symbol) string {
	return fmt.Sprintf("fn %s(%s)", sym.name, strings.Join(sym.params, " "))
}

// --- Diagnostics ---

// diagnose compiles text and converts the first error into a diagnostic.
func (s *LspServer) diagnose(text string) []protocol.Diagnostic {
	c := compiler.NewCompiler(s.builtins)
	err := func() error {
		nodes, err := compiler.Parse(text)
		if err != nil {
			return err
		}
		for _, n := range nodes {
			if err := c.Compile(n); err != nil {
				return err
			}
		}
		_, err = c.Finalize()
		return err
	}()
	if err == nil {
		return []protocol.Diagnostic{}
	}

	severity := protocol.DiagnosticSeverityError
	source := lspName
	d := protocol.Diagnostic{Severity: &severity, Source: &source, Message: err.Error()}
	var cerr *compiler.Error
	if errors.As(err, &cerr) {
		d.Message = cerr.Msg
		d.Range = errorRange(cerr)
	}
	return []protocol.Diagnostic{d}
}

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	diagnostics := s.diagnose(text)
	log.Debugf("%s: %d diagnostics", uri, len(diagnostics))
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// --- Positions ---

// Compiler positions are 1-based; LSP positions are 0-based.

func tokenRange(tok compiler.Token) protocol.Range {
	return span(tok.Line, tok.Col, tok.Col+tok.Len())
}

func errorRange(e *compiler.Error) protocol.Range {
	return span(e.Line, e.Start, e.End)
}

func span(line, start, end int) protocol.Range {
	l := protocol.UInteger(max(line-1, 0))
	return protocol.Range{
		Start: protocol.Position{Line: l, Character: protocol.UInteger(max(start-1, 0))},
		End:   protocol.Position{Line: l, Character: protocol.UInteger(max(end-1, 0))},
	}
}

// --- Text extraction helpers ---

func isIdentChar(ch byte) bool {
	return unicode.IsLetter(rune(ch)) || unicode.IsDigit(rune(ch)) || ch == '_'
}

func lineAt(text string, pos protocol.Position) (string, int, bool) {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return "", 0, false
	}
	line := lines[pos.Line]
	return line, min(int(pos.Character), len(line)), true
}

// extractPrefix returns the word fragment before the cursor for completion,
// including a std path typed so far.
func extractPrefix(text string, pos protocol.Position) string {
	line, col, ok := lineAt(text, pos)
	if !ok {
		return ""
	}
	start := col
	for start > 0 && (isIdentChar(line[start-1]) || line[start-1] == ':') {
		start--
	}
	return line[start:col]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	return extractAround(text, pos, isIdentChar)
}

// extractPath returns the identifier under the cursor extended over "::"
// separators, so hovering any segment of std::a::b yields the whole path.
func extractPath(text string, pos protocol.Position) string {
	return extractAround(text, pos, func(ch byte) bool { return isIdentChar(ch) || ch == ':' })
}

func extractAround(text string, pos protocol.Position, in func(byte) bool) string {
	line, col, ok := lineAt(text, pos)
	if !ok {
		return ""
	}
	start := col
	for start > 0 && in(line[start-1]) {
		start--
	}
	end := col
	for end < len(line) && in(line[end]) {
		end++
	}
	return line[start:end]
}

func boolPtr(b bool) *bool {
	return &b
}
