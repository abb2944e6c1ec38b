package gotenberg

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const convertHTMLPath = "/forms/chromium/convert/html"

// PageOptions controls the printed page layout.
type PageOptions struct {
	PaperWidth      string
	PaperHeight     string
	MarginTop       string
	MarginBottom    string
	MarginLeft      string
	MarginRight     string
	PrintBackground bool
}

// A4 is the default layout used for sales reports.
var A4 = PageOptions{
	PaperWidth:      "8.27",
	PaperHeight:     "11.7",
	MarginTop:       "1mm",
	MarginBottom:    "0mm",
	MarginLeft:      "1mm",
	MarginRight:     "1mm",
	PrintBackground: true,
}

// Client talks to a Gotenberg instance's Chromium HTML route.
type Client struct {
	httpClient *resty.Client
	page       PageOptions
}

// NewClient builds a Gotenberg client. timeout caps each request independently
// of any context deadline.
func NewClient(baseURL string, timeout time.Duration) *Client {
	restyClient := resty.New()
	restyClient.
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(timeout)

	return &Client{httpClient: restyClient, page: A4}
}

// WithPage returns a copy of the client that prints with page.
func (c *Client) WithPage(page PageOptions) *Client {
	clone := *c
	clone.page = page
	return &clone
}

// ConvertHTML uploads html as index.html and returns the rendered PDF.
func (c *Client) ConvertHTML(ctx context.Context, html []byte) ([]byte, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetFileReader("files", "index.html", bytes.NewReader(html)).
		SetFormData(map[string]string{
			"paperWidth":      c.page.PaperWidth,
			"paperHeight":     c.page.PaperHeight,
			"marginTop":       c.page.MarginTop,
			"marginBottom":    c.page.MarginBottom,
			"marginLeft":      c.page.MarginLeft,
			"marginRight":     c.page.MarginRight,
			"printBackground": fmt.Sprint(c.page.PrintBackground),
		}).
		Post(convertHTMLPath)
	if err != nil {
		return nil, fmt.Errorf("gotenberg convert html: %w", err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		return nil, fmt.Errorf("gotenberg api error: status=%d, body=%s", resp.StatusCode(), truncate(resp.String(), 256))
	}

	return resp.Body(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
