package reporting

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jopa/salestracker/internal/domain/models"
)

//go:embed templates/*.html
var templateFS embed.FS

const currency = "KES"

// HTMLConverter turns a self-contained HTML page into PDF bytes.
type HTMLConverter interface {
	ConvertHTML(ctx context.Context, html []byte) ([]byte, error)
}

// PDFRenderer renders report documents to PDF through an external converter.
type PDFRenderer struct {
	converter HTMLConverter
	tmpl      *template.Template
	loc       *time.Location
	now       func() time.Time
}

type reportView struct {
	models.ReportDocument
	GeneratedAt time.Time
}

// NewPDFRenderer parses the embedded report template.
func NewPDFRenderer(converter HTMLConverter, loc *time.Location) (*PDFRenderer, error) {
	if loc == nil {
		loc = time.UTC
	}

	printer := message.NewPrinter(language.English)
	funcs := template.FuncMap{
		"money": func(v float64) string {
			return printer.Sprintf("%s %.2f", currency, v)
		},
		"percent": func(v float64) string {
			return printer.Sprintf("%.2f%%", v)
		},
		"date": func(t time.Time) string {
			return t.In(loc).Format("02 Jan 2006")
		},
		"month": func(t time.Time) string {
			return t.In(loc).Format("Jan 2006")
		},
		"timestamp": func(t time.Time) string {
			return t.In(loc).Format("02 Jan 2006 15:04 MST")
		},
	}

	tmpl, err := template.New("daily_report.html").Funcs(funcs).ParseFS(templateFS, "templates/daily_report.html")
	if err != nil {
		return nil, fmt.Errorf("parse report template: %w", err)
	}

	return &PDFRenderer{converter: converter, tmpl: tmpl, loc: loc, now: time.Now}, nil
}

// RenderHTML executes the report template for doc.
func (r *PDFRenderer) RenderHTML(doc models.ReportDocument) ([]byte, error) {
	var buf bytes.Buffer
	view := reportView{ReportDocument: doc, GeneratedAt: r.now()}
	if err := r.tmpl.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("execute report template: %w", err)
	}
	return buf.Bytes(), nil
}

// Render produces the PDF for doc. The converter call honours ctx.
func (r *PDFRenderer) Render(ctx context.Context, doc models.ReportDocument) ([]byte, error) {
	html, err := r.RenderHTML(doc)
	if err != nil {
		return nil, err
	}

	pdf, err := r.converter.ConvertHTML(ctx, html)
	if err != nil {
		return nil, fmt.Errorf("convert report to pdf: %w", err)
	}
	if len(pdf) == 0 {
		return nil, fmt.Errorf("convert report to pdf: empty document")
	}
	return pdf, nil
}
