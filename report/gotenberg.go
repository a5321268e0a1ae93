// Package report renders customer facing documents: locale aware formatting and
// HTML to PDF conversion through Gotenberg.
package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// PageLayout sets the Chromium paper size and margins, in inches.
type PageLayout struct {
	PaperWidth  string
	PaperHeight string
	Margin      string
}

// A4 is the layout used for invoices.
var A4 = PageLayout{PaperWidth: "8.27", PaperHeight: "11.7", Margin: "0.4"}

// UpstreamError is returned when Gotenberg answers with a non-2xx status.
type UpstreamError struct {
	Op     string
	Status int
	Trace  string
	Detail string
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("gotenberg %s: status %d", e.Op, e.Status)
	if e.Trace != "" {
		msg += " trace=" + e.Trace
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Client converts HTML documents to PDF through a Gotenberg instance.
type Client struct {
	endpoint string
	layout   PageLayout
	http     *http.Client
}

// NewClient constructs a new client. A zero timeout defaults to 30 seconds.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint: strings.TrimRight(baseURL, "/"),
		layout:   A4,
		http:     &http.Client{Timeout: timeout},
	}
}

// Ping checks the Gotenberg health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/health", nil)
	if err != nil {
		return err
	}
	_, err = c.send(req, "health")
	return err
}

// RenderHTML converts an HTML document into a PDF. Chromium conversion reads the
// entry file from the upload named index.html.
func (c *Client) RenderHTML(ctx context.Context, html string) ([]byte, error) {
	form, contentType, err := c.buildForm(html)
	if err != nil {
		return nil, fmt.Errorf("gotenberg render: build form: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/forms/chromium/convert/html", form)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	return c.send(req, "render")
}

func (c *Client) buildForm(html string) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	file, err := mw.CreateFormFile("files", "index.html")
	if err != nil {
		return nil, "", err
	}
	if _, err := io.WriteString(file, html); err != nil {
		return nil, "", err
	}
	fields := [][2]string{
		{"printBackground", "true"},
		{"paperWidth", c.layout.PaperWidth},
		{"paperHeight", c.layout.PaperHeight},
		{"marginTop", c.layout.Margin},
		{"marginBottom", c.layout.Margin},
		{"marginLeft", c.layout.Margin},
		{"marginRight", c.layout.Margin},
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf, mw.FormDataContentType(), nil
}

func (c *Client) send(req *http.Request, op string) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gotenberg %s: %w", op, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode/100 != 2 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &UpstreamError{
			Op:     op,
			Status: resp.StatusCode,
			Trace:  resp.Header.Get("Gotenberg-Trace"),
			Detail: strings.TrimSpace(string(detail)),
		}
	}
	return io.ReadAll(resp.Body)
}
