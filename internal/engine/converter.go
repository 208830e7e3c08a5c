package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	nurl "net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/go-shiori/go-readability"
	"github.com/yangwenmai/formconv/internal/model"
)

const (
	// DefaultConverterURL is the public XLSForm-to-JSON conversion service.
	DefaultConverterURL = "https://formconv.herokuapp.com/result.json"

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	// maxResponseSize is the largest conversion response accepted (32MB).
	// Longer bodies fail rather than being truncated.
	maxResponseSize = 32 * 1024 * 1024
	// maxCauseLength bounds the human-readable cause built from a response body.
	maxCauseLength = 300
)

// ConversionClient uploads XLSForm workbooks to the conversion service.
type ConversionClient struct {
	endpoint       string
	field          string
	diagnosticPath string
	maxBody        int64
	httpClient     *http.Client
}

// ConverterOption configures the conversion client.
type ConverterOption func(*ConversionClient)

// WithFormField sets the multipart field name (default: excelFile).
func WithFormField(name string) ConverterOption {
	return func(c *ConversionClient) { c.field = name }
}

// WithConvertTimeout bounds the whole request, including reading the body (default: 30s).
func WithConvertTimeout(d time.Duration) ConverterOption {
	return func(c *ConversionClient) { c.httpClient.Timeout = d }
}

// WithDiagnosticPath sets where failure diagnostics are written. Empty disables them.
func WithDiagnosticPath(path string) ConverterOption {
	return func(c *ConversionClient) { c.diagnosticPath = path }
}

// NewConversionClient creates a client for the given endpoint.
func NewConversionClient(endpoint string, opts ...ConverterOption) *ConversionClient {
	if endpoint == "" {
		endpoint = DefaultConverterURL
	}
	c := &ConversionClient{
		endpoint:       endpoint,
		field:          "excelFile",
		diagnosticPath: filepath.Join("output_files", "conversion_error.txt"),
		maxBody:        maxResponseSize,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Convert streams the artifact as a multipart upload. Success requires HTTP
// 200 and a body whose first non-whitespace byte is '{' or '['; the payload is
// then the raw body, unmodified. Every failure writes a diagnostic file.
func (c *ConversionClient) Convert(ctx context.Context, artifactPath string) model.ConversionOutcome {
	f, err := os.Open(artifactPath)
	if err != nil {
		return c.fail(model.ReasonServerError, 0, nil, nil, fmt.Errorf("open artifact: %w", err))
	}
	var size uint64
	if info, err := f.Stat(); err == nil {
		size = uint64(info.Size())
	}

	pr, pw := io.Pipe()
	defer pr.Close()
	mw := multipart.NewWriter(pw)
	go func() {
		defer f.Close()
		pw.CloseWithError(writeFilePart(mw, c.field, filepath.Base(artifactPath), f))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, pr)
	if err != nil {
		return c.fail(model.ReasonServerError, 0, nil, nil, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	slog.Info("sending workbook to conversion service", "endpoint", c.endpoint, "artifact", artifactPath, "size", humanize.Bytes(size))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.fail(classifyTransport(err), 0, nil, nil, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return c.fail(classifyTransport(err), resp.StatusCode, body, resp.Header, fmt.Errorf("read response: %w", err))
	}
	if int64(len(body)) > c.maxBody {
		return c.fail(model.ReasonInvalidResponse, resp.StatusCode, body[:c.maxBody], resp.Header,
			fmt.Errorf("conversion response exceeds %s", humanize.IBytes(uint64(c.maxBody))))
	}

	if resp.StatusCode != http.StatusOK {
		return c.fail(model.ReasonServerError, resp.StatusCode, body, resp.Header,
			fmt.Errorf("conversion service returned HTTP %d: %s", resp.StatusCode, c.summarizeBody(body, resp.Header)))
	}
	if !looksLikeJSON(body) {
		return c.fail(model.ReasonInvalidResponse, resp.StatusCode, body, resp.Header,
			fmt.Errorf("conversion service returned non-JSON body (HTTP %d): %s", resp.StatusCode, c.summarizeBody(body, resp.Header)))
	}

	slog.Info("workbook converted", "size", humanize.Bytes(uint64(len(body))))
	return model.ConversionOutcome{
		Succeeded:  true,
		Payload:    body,
		StatusCode: resp.StatusCode,
	}
}

func writeFilePart(mw *multipart.Writer, field, filename string, r io.Reader) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", xlsxContentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, r); err != nil {
		return err
	}
	return mw.Close()
}

// fail builds a failed outcome and writes the diagnostic file.
func (c *ConversionClient) fail(reason model.FailureReason, status int, body []byte, header http.Header, cause error) model.ConversionOutcome {
	out := model.ConversionOutcome{
		Reason:     reason,
		StatusCode: status,
		Diagnostic: cause.Error(),
	}
	slog.Error("conversion failed", "reason", reason, "status", status, "error", cause)

	if c.diagnosticPath == "" {
		return out
	}
	if err := writeDiagnostic(c.diagnosticPath, reason, status, body, header, cause); err != nil {
		slog.Warn("could not write conversion diagnostic", "path", c.diagnosticPath, "error", err)
	}
	return out
}

func writeDiagnostic(path string, reason model.FailureReason, status int, body []byte, header http.Header, cause error) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Time: %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Reason: %s\n", reason)
	fmt.Fprintf(&b, "Status Code: %d\n", status)
	fmt.Fprintf(&b, "Error: %v\n", cause)
	fmt.Fprintf(&b, "Response: %s\n", body)
	b.WriteString("Headers:\n")
	keys := make([]string, 0, len(header))
	for k := range header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "  %s: %s\n", k, strings.Join(header[k], ", "))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func classifyTransport(err error) model.FailureReason {
	if errors.Is(err, context.DeadlineExceeded) {
		return model.ReasonTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return model.ReasonTimeout
	}
	return model.ReasonServerError
}

// looksLikeJSON sniffs the body since the service does not reliably set a
// JSON content type.
func looksLikeJSON(body []byte) bool {
	trimmed := bytes.TrimLeftFunc(body, unicode.IsSpace)
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}

var (
	htmlMarker = regexp.MustCompile(`(?i)<\s*(html|body|head|!doctype)`)
	htmlTag    = regexp.MustCompile(`<[^>]*>`)
	whitespace = regexp.MustCompile(`\s+`)
)

// summarizeBody turns a response body into a short cause string. HTML error
// pages are reduced to their readable text.
func (c *ConversionClient) summarizeBody(body []byte, header http.Header) string {
	text := string(body)
	isHTML := htmlMarker.Match(body) || strings.Contains(header.Get("Content-Type"), "text/html")
	if isHTML {
		text = htmlTag.ReplaceAllString(text, " ")
		pageURL, _ := nurl.Parse(c.endpoint)
		if article, err := readability.FromReader(bytes.NewReader(body), pageURL); err == nil {
			readable := strings.TrimSpace(article.TextContent)
			if article.Title != "" && !strings.Contains(readable, article.Title) {
				readable = strings.TrimSpace(article.Title + " " + readable)
			}
			if readable != "" {
				text = readable
			}
		}
	}
	text = strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
	if text == "" {
		return "(empty body)"
	}
	if utf8.RuneCountInString(text) > maxCauseLength {
		text = string([]rune(text)[:maxCauseLength]) + "..."
	}
	return text
}
