package workspace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/agentrt/runtime/internal/convo"
)

// ToolFetch is the workspace's HTTP(S) fetch tool, grounded on
// internal/tool/webfetch.go.
const ToolFetch = "fetch"

const (
	maxFetchResponseSize = 5 * 1024 * 1024
	defaultFetchTimeout  = 30 * time.Second
	maxFetchTimeout      = 120 * time.Second
)

// FetchExecutor fetches a URL and optionally converts HTML to Markdown
// or plain text.
type FetchExecutor struct {
	Client *http.Client
}

// NewFetchExecutor builds a FetchExecutor with the teacher's default
// per-request timeout.
func NewFetchExecutor() FetchExecutor {
	return FetchExecutor{Client: &http.Client{Timeout: defaultFetchTimeout}}
}

type fetchParams struct {
	URL     string `json:"url"`
	Format  string `json:"format"`
	Timeout int    `json:"timeout,omitempty"`
}

func (e FetchExecutor) Execute(ctx context.Context, call convo.ToolCall) (convo.ToolResult, error) {
	var p fetchParams
	if err := json.Unmarshal(call.Parameters, &p); err != nil {
		return convo.ToolResult{}, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if !strings.HasPrefix(p.URL, "http://") && !strings.HasPrefix(p.URL, "https://") {
		return convo.ToolResult{}, fmt.Errorf("%w: url must start with http:// or https://", ErrInvalidParams)
	}
	switch p.Format {
	case "", "text", "markdown", "html":
	default:
		return convo.ToolResult{}, fmt.Errorf("%w: format must be text, markdown, or html", ErrInvalidParams)
	}

	timeout := defaultFetchTimeout
	if p.Timeout > 0 {
		timeout = time.Duration(p.Timeout) * time.Second
		if timeout > maxFetchTimeout {
			timeout = maxFetchTimeout
		}
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, p.URL, nil)
	if err != nil {
		return convo.ToolResult{}, fmt.Errorf("%w: %v", ErrHTTP, err)
	}
	req.Header.Set("User-Agent", "agentrt/1.0")

	resp, err := e.Client.Do(req)
	if err != nil {
		return convo.ToolResult{}, fmt.Errorf("%w: %v", ErrHTTP, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return convo.ToolResult{}, fmt.Errorf("%w: status %d", ErrHTTP, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchResponseSize+1))
	if err != nil {
		return convo.ToolResult{}, fmt.Errorf("%w: %v", ErrHTTP, err)
	}
	if len(body) > maxFetchResponseSize {
		return convo.ToolResult{}, fmt.Errorf("%w: response exceeds 5MB limit", ErrHTTP)
	}

	content := string(body)
	contentType := resp.Header.Get("Content-Type")
	isHTML := strings.Contains(contentType, "text/html")

	var output string
	switch p.Format {
	case "markdown":
		if isHTML {
			if output, err = convertHTMLToMarkdown(content); err != nil {
				return convo.ToolResult{}, fmt.Errorf("%w: %v", ErrHTTP, err)
			}
		} else {
			output = content
		}
	case "text":
		if isHTML {
			if output, err = extractTextFromHTML(content); err != nil {
				return convo.ToolResult{}, fmt.Errorf("%w: %v", ErrHTTP, err)
			}
		} else {
			output = content
		}
	default:
		output = content
	}

	return convo.ToolResult{
		Kind:  convo.ResultFetch,
		Fetch: &convo.FetchResult{URL: p.URL, StatusCode: resp.StatusCode, Body: output},
	}, nil
}

func extractTextFromHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript, iframe, object, embed").Remove()
	return strings.TrimSpace(doc.Text()), nil
}

func convertHTMLToMarkdown(html string) (string, error) {
	converter := md.NewConverter("", true, &md.Options{
		HeadingStyle:     "atx",
		HorizontalRule:   "---",
		BulletListMarker: "-",
		CodeBlockStyle:   "fenced",
		EmDelimiter:      "*",
	})
	converter.Remove("script", "style", "meta", "link")
	return converter.ConvertString(html)
}
