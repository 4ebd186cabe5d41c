// Package lsp serves RedPRL diagnostics, obligation lenses, and document
// symbols to editors over the Language Server Protocol on stdio.
package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/sanjit/redprl-mcp/internal/redprl"
)

var (
	// ErrExit signals a graceful shutdown after receiving "exit".
	ErrExit = errors.New("lsp exit")
	// ErrExitWithoutShutdown signals an "exit" without a preceding "shutdown".
	ErrExitWithoutShutdown = errors.New("lsp exit without shutdown")
)

// languageID is the only language the server checks.
const languageID = "redprl"

// Commands the server executes on behalf of the client.
const (
	CommandRefreshDiagnostics = "redprl.refreshDiagnostics"
	CommandShowObligations    = "redprl.showObligations"
)

// Options configures the server.
type Options struct {
	Session *redprl.Session
	// Runner is the base for binary settings pushed by the client through
	// workspace/didChangeConfiguration. Those settings are ignored when nil.
	Runner              *redprl.ProcessRunner
	Debounce            time.Duration
	DiagnosticsOnSave   bool
	DiagnosticsOnChange bool
	Logger              zerolog.Logger
	Version             string
}

// Server handles stdio JSON-RPC for the RedPRL language server.
type Server struct {
	codec    *codec
	session  *redprl.Session
	debounce *redprl.Debouncer
	logger   zerolog.Logger
	version  string
	baseCtx  context.Context

	mu                sync.Mutex
	docs              map[string]redprl.Document
	runner            *redprl.ProcessRunner
	onSave            bool
	onChange          bool
	shutdownRequested bool
	closed            bool

	publishMu sync.Mutex // orders diagnostics notifications after session updates

	wg                sync.WaitGroup // background refreshes and deferred replies
	warnedUnavailable atomic.Bool
}

func NewServer(in io.Reader, out io.Writer, opts Options) *Server {
	session := opts.Session
	if session == nil {
		var runner redprl.Runner
		if opts.Runner != nil {
			runner = opts.Runner
		}
		session = redprl.NewSession(runner, redprl.WithLogger(opts.Logger))
	}
	return &Server{
		codec:    newCodec(in, out),
		session:  session,
		debounce: redprl.NewDebouncer(opts.Debounce),
		logger:   opts.Logger,
		version:  opts.Version,
		baseCtx:  context.Background(),
		docs:     make(map[string]redprl.Document),
		runner:   opts.Runner,
		onSave:   opts.DiagnosticsOnSave,
		onChange: opts.DiagnosticsOnChange,
	}
}

// Run serves requests until the client exits or closes the stream.
// Pending refreshes finish before it returns.
func (s *Server) Run(ctx context.Context) error {
	s.baseCtx = ctx
	defer s.close()
	for {
		msg, err := s.codec.decode()
		if err != nil {
			if errors.Is(err, errMalformed) {
				s.logger.Warn().Err(err).Msg("skipping message")
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if msg.Method == "" {
			continue
		}
		if err := s.handle(msg); err != nil {
			return err
		}
	}
}

func (s *Server) close() {
	s.debounce.Stop()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
}

// spawn runs fn in the background unless the server is closing.
func (s *Server) spawn(fn func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

func (s *Server) handle(msg *rpcMessage) error {
	s.logger.Trace().Str("method", msg.Method).Msg("lsp message")
	switch msg.Method {
	case "initialize":
		return s.handleInitialize(msg)
	case "initialized", "$/cancelRequest", "$/setTrace":
		return nil
	case "shutdown":
		return s.handleShutdown(msg)
	case "exit":
		s.mu.Lock()
		requested := s.shutdownRequested
		s.mu.Unlock()
		if requested {
			return ErrExit
		}
		return ErrExitWithoutShutdown
	case "workspace/didChangeConfiguration":
		return s.handleDidChangeConfiguration(msg)
	case "workspace/executeCommand":
		return s.handleExecuteCommand(msg)
	case "textDocument/didOpen":
		return s.handleDidOpen(msg)
	case "textDocument/didChange":
		return s.handleDidChange(msg)
	case "textDocument/didSave":
		return s.handleDidSave(msg)
	case "textDocument/didClose":
		return s.handleDidClose(msg)
	case "textDocument/codeLens":
		return s.handleCodeLens(msg)
	case "textDocument/documentSymbol":
		return s.handleDocumentSymbol(msg)
	default:
		if len(msg.ID) > 0 {
			return s.codec.replyError(msg.ID, codeMethodNotFound, "method not found: "+msg.Method)
		}
		return nil
	}
}

func (s *Server) handleInitialize(msg *rpcMessage) error {
	var params initializeParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return s.codec.replyError(msg.ID, codeInvalidParams, "invalid params")
		}
	}
	if len(params.InitializationOptions) > 0 {
		var settings lspSettings
		if err := json.Unmarshal(params.InitializationOptions, &settings); err == nil {
			s.applySettings(settings.RedPRL)
		}
	}
	return s.codec.reply(msg.ID, initializeResult{
		Capabilities: serverCapabilities{
			TextDocumentSync: textDocumentSyncOptions{
				OpenClose: true,
				Change:    1, // full
				Save:      saveOptions{IncludeText: true},
			},
			CodeLensProvider:       &codeLensOptions{},
			DocumentSymbolProvider: true,
			ExecuteCommandProvider: &executeCommandOptions{
				Commands: []string{CommandRefreshDiagnostics, CommandShowObligations},
			},
		},
		ServerInfo: serverInfo{Name: "redprl-lsp", Version: s.version},
	})
}

func (s *Server) handleShutdown(msg *rpcMessage) error {
	s.mu.Lock()
	s.shutdownRequested = true
	s.mu.Unlock()
	s.debounce.Stop()
	return s.codec.reply(msg.ID, nil)
}

func (s *Server) handleDidChangeConfiguration(msg *rpcMessage) error {
	var params didChangeConfigurationParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.logger.Warn().Err(err).Msg("didChangeConfiguration: invalid params")
		return nil
	}
	var settings lspSettings
	if len(params.Settings) > 0 {
		if err := json.Unmarshal(params.Settings, &settings); err != nil {
			s.logger.Warn().Err(err).Msg("didChangeConfiguration: invalid settings")
			return nil
		}
	}
	s.applySettings(settings.RedPRL)
	return nil
}

// applySettings updates the triggers and, when the binary changed, swaps
// the session's runner.
func (s *Server) applySettings(st redprlSettings) {
	s.mu.Lock()
	if st.EnableDiagnosticsOnSave != nil {
		s.onSave = *st.EnableDiagnosticsOnSave
	}
	if st.EnableDiagnosticsOnChange != nil {
		s.onChange = *st.EnableDiagnosticsOnChange
	}
	var next *redprl.ProcessRunner
	if s.runner != nil && ((st.Path != nil && *st.Path != "") || st.Args != nil) {
		r := *s.runner
		if st.Path != nil && *st.Path != "" {
			r.Binary = *st.Path
		}
		if st.Args != nil {
			r.Args = slices.Clone(st.Args)
		}
		s.runner = &r
		next = &r
	}
	s.mu.Unlock()

	if next != nil {
		s.session.SetRunner(next)
		s.warnedUnavailable.Store(false)
		s.logger.Info().Str("binary", next.Binary).Strs("args", next.Args).Msg("redprl runner updated")
	}
}

func (s *Server) handleDidOpen(msg *rpcMessage) error {
	var params didOpenTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.logger.Warn().Err(err).Msg("didOpen: invalid params")
		return nil
	}
	item := params.TextDocument
	if item.LanguageID != "" && item.LanguageID != languageID {
		s.logger.Debug().Str("uri", item.URI).Str("language", item.LanguageID).Msg("ignoring document")
		return nil
	}
	s.mu.Lock()
	s.docs[item.URI] = redprl.Document{
		URI:     item.URI,
		Path:    uriToPath(item.URI),
		Text:    item.Text,
		Version: item.Version,
	}
	s.mu.Unlock()
	s.scheduleRefresh(item.URI)
	return nil
}

func (s *Server) handleDidChange(msg *rpcMessage) error {
	var params didChangeTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.logger.Warn().Err(err).Msg("didChange: invalid params")
		return nil
	}
	uri := params.TextDocument.URI
	s.mu.Lock()
	doc, ok := s.docs[uri]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	doc.Text = applyChanges(doc.Text, params.ContentChanges)
	doc.Version = params.TextDocument.Version
	s.docs[uri] = doc
	onChange := s.onChange
	s.mu.Unlock()

	if onChange {
		s.debounce.Trigger(uri, func() { s.scheduleRefresh(uri) })
	}
	return nil
}

func (s *Server) handleDidSave(msg *rpcMessage) error {
	var params didSaveTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.logger.Warn().Err(err).Msg("didSave: invalid params")
		return nil
	}
	uri := params.TextDocument.URI
	s.mu.Lock()
	doc, open := s.docs[uri]
	if open && params.Text != nil {
		doc.Text = *params.Text
		s.docs[uri] = doc
	}
	onSave := s.onSave
	s.mu.Unlock()

	if onSave && open {
		s.debounce.Cancel(uri)
		s.scheduleRefresh(uri)
	}
	return nil
}

func (s *Server) handleDidClose(msg *rpcMessage) error {
	var params didCloseTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.logger.Warn().Err(err).Msg("didClose: invalid params")
		return nil
	}
	uri := params.TextDocument.URI
	s.mu.Lock()
	delete(s.docs, uri)
	s.mu.Unlock()
	s.debounce.Cancel(uri)

	cleared := s.session.Forget(uri)
	if !slices.Contains(cleared, uri) {
		cleared = append(cleared, uri)
	}
	s.publishCurrent(cleared)
	return nil
}

func (s *Server) handleCodeLens(msg *rpcMessage) error {
	var params documentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.codec.replyError(msg.ID, codeInvalidParams, "invalid params")
	}
	uri := params.TextDocument.URI
	s.spawn(func() {
		s.ensureRefreshed(uri)
		lenses, _ := s.session.Lenses(uri)
		s.sendReply(msg.ID, toCodeLenses(uri, lenses))
	})
	return nil
}

func (s *Server) handleDocumentSymbol(msg *rpcMessage) error {
	var params documentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.codec.replyError(msg.ID, codeInvalidParams, "invalid params")
	}
	uri := params.TextDocument.URI
	s.spawn(func() {
		s.ensureRefreshed(uri)
		symbols, _ := s.session.Symbols(uri)
		s.sendReply(msg.ID, toSymbols(symbols))
	})
	return nil
}

func (s *Server) handleExecuteCommand(msg *rpcMessage) error {
	var params executeCommandParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.codec.replyError(msg.ID, codeInvalidParams, "invalid params")
	}
	switch params.Command {
	case CommandRefreshDiagnostics:
		var uris []string
		if len(params.Arguments) > 0 {
			var uri string
			if err := json.Unmarshal(params.Arguments[0], &uri); err != nil || uri == "" {
				return s.codec.replyError(msg.ID, codeInvalidParams, "expected a document URI")
			}
			uris = []string{uri}
		} else {
			s.mu.Lock()
			uris = slices.Sorted(maps.Keys(s.docs))
			s.mu.Unlock()
		}
		for _, uri := range uris {
			s.debounce.Cancel(uri)
			s.scheduleRefresh(uri)
		}
		return s.codec.reply(msg.ID, nil)

	case CommandShowObligations:
		var uri string
		var index int
		if len(params.Arguments) < 2 ||
			json.Unmarshal(params.Arguments[0], &uri) != nil ||
			json.Unmarshal(params.Arguments[1], &index) != nil {
			return s.codec.replyError(msg.ID, codeInvalidParams, "expected a document URI and lens index")
		}
		lenses, _ := s.session.Lenses(uri)
		if index < 0 || index >= len(lenses) {
			return s.codec.replyError(msg.ID, codeRequestFailed, "no such obligation; refresh the document")
		}
		l := lenses[index]
		var sb strings.Builder
		fmt.Fprintf(&sb, "%s (line %d)\n", l.Title, l.Range.Start.Line+1)
		redprl.WriteGoals(&sb, l.Goals)
		s.showMessage(messageInfo, strings.TrimRight(sb.String(), "\n"))
		return s.codec.reply(msg.ID, nil)

	default:
		return s.codec.replyError(msg.ID, codeInvalidParams, "unknown command: "+params.Command)
	}
}

func (s *Server) scheduleRefresh(uri string) {
	s.spawn(func() { _ = s.refresh(uri) })
}

// ensureRefreshed refreshes uri unless the session already has results for it.
func (s *Server) ensureRefreshed(uri string) {
	if s.session.Has(uri) {
		return
	}
	_ = s.refresh(uri)
}

// refresh runs the binary on the open text of uri, or on the file on disk
// when the document is not open, and publishes the outcome.
func (s *Server) refresh(uri string) error {
	doc, err := s.documentFor(uri)
	if err != nil {
		s.logger.Warn().Err(err).Str("uri", uri).Msg("refresh skipped")
		return err
	}
	upd, err := s.session.Refresh(s.baseCtx, doc)
	if err != nil {
		if errors.Is(err, redprl.ErrSuperseded) {
			return nil
		}
		s.reportFailure(uri, err)
		return err
	}
	s.publish(upd)
	return nil
}

func (s *Server) documentFor(uri string) (redprl.Document, error) {
	s.mu.Lock()
	doc, ok := s.docs[uri]
	s.mu.Unlock()
	if ok {
		return doc, nil
	}
	path := uriToPath(uri)
	if path == "" {
		return redprl.Document{}, fmt.Errorf("unsupported document URI %q", uri)
	}
	doc, err := redprl.LoadDocument(path)
	if err != nil {
		return redprl.Document{}, err
	}
	doc.URI = uri
	return doc, nil
}

func (s *Server) publish(upd *redprl.Update) {
	uris := slices.Sorted(maps.Keys(upd.Result.Diagnostics))
	s.publishCurrent(append(uris, upd.Cleared...))
}

// publishCurrent sends what the session holds for each URI now, not what a
// particular update carried. A refresh that publishes late therefore cannot
// overwrite a newer refresh's diagnostics on the client.
func (s *Server) publishCurrent(uris []string) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()
	for _, uri := range uris {
		s.publishDiagnostics(uri, s.session.Diagnostics(uri))
	}
}

func (s *Server) publishDiagnostics(uri string, diags []redprl.Diagnostic) {
	params := publishDiagnosticsParams{URI: uri, Diagnostics: toDiagnostics(diags)}
	s.mu.Lock()
	if doc, ok := s.docs[uri]; ok {
		v := doc.Version
		params.Version = &v
	}
	s.mu.Unlock()
	if err := s.codec.notify("textDocument/publishDiagnostics", params); err != nil {
		s.logger.Error().Err(err).Str("uri", uri).Msg("publish diagnostics")
	}
}

// reportFailure tells the user why a refresh produced nothing. A missing
// binary is reported once until the runner changes.
func (s *Server) reportFailure(uri string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	s.logger.Warn().Err(err).Str("uri", uri).Msg("refresh failed")
	if errors.Is(err, redprl.ErrProcessUnavailable) {
		if s.warnedUnavailable.CompareAndSwap(false, true) {
			s.showMessage(messageWarning, "RedPRL binary not found; set redprl.path in the editor settings or redprl.toml.")
		}
		return
	}
	var perr *redprl.ProcessError
	if errors.As(err, &perr) {
		s.showMessage(messageError, "RedPRL failed: "+perr.Error())
		return
	}
	s.showMessage(messageError, "RedPRL: "+err.Error())
}

func (s *Server) showMessage(kind int, text string) {
	if err := s.codec.notify("window/showMessage", showMessageParams{Type: kind, Message: text}); err != nil {
		s.logger.Error().Err(err).Msg("show message")
	}
}

func (s *Server) sendReply(id json.RawMessage, result any) {
	if err := s.codec.reply(id, result); err != nil {
		s.logger.Error().Err(err).Msg("reply")
	}
}
