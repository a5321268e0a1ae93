package invoices

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/aquabill/aquabill/internal/customers"
	"github.com/aquabill/aquabill/report"
)

// PDFConverter turns an HTML document into PDF bytes.
type PDFConverter interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// Documents renders invoices for customers.
type Documents struct {
	repo      Repository
	formatter *report.Formatter
	pdf       PDFConverter
	tmpl      *template.Template
}

// NewDocuments constructs the document renderer. pdf may be nil, in which case
// PDF rendering is unavailable.
func NewDocuments(repo Repository, formatter *report.Formatter, pdf PDFConverter) *Documents {
	if formatter == nil {
		formatter = report.NewFormatter("en", "")
	}
	tmpl := template.Must(template.New("invoice").Funcs(template.FuncMap{
		"amount":   formatter.Amount,
		"quantity": formatter.Quantity,
		"price":    formatter.Price,
		"date":     formatter.Date,
	}).Parse(invoiceTemplate))
	return &Documents{repo: repo, formatter: formatter, pdf: pdf, tmpl: tmpl}
}

type documentData struct {
	Lang     string
	Invoice  Invoice
	Customer customers.Customer
}

// HTML renders the invoice as a standalone HTML page.
func (d *Documents) HTML(ctx context.Context, id int64) ([]byte, error) {
	var data documentData
	err := d.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		inv, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}
		customer, err := repo.Customer(ctx, inv.CustomerID)
		if err != nil {
			return err
		}
		data = documentData{Lang: d.formatter.Locale(), Invoice: *inv, Customer: *customer}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load invoice document: %w", err)
	}
	var buf bytes.Buffer
	if err := d.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render invoice %d: %w", id, err)
	}
	return buf.Bytes(), nil
}

// PDF renders the invoice and converts it to PDF.
func (d *Documents) PDF(ctx context.Context, id int64) ([]byte, error) {
	if d.pdf == nil {
		return nil, fmt.Errorf("pdf rendering is not configured")
	}
	html, err := d.HTML(ctx, id)
	if err != nil {
		return nil, err
	}
	pdf, err := d.pdf.RenderHTML(ctx, string(html))
	if err != nil {
		return nil, fmt.Errorf("convert invoice %d to pdf: %w", id, err)
	}
	return pdf, nil
}

const invoiceTemplate = `<!DOCTYPE html>
<html lang="{{.Lang}}">
<head>
<meta charset="utf-8">
<title>Invoice #{{.Invoice.ID}}</title>
<style>
body { font-family: sans-serif; margin: 2rem; color: #1f2933; }
table { border-collapse: collapse; width: 100%; margin-top: 1.5rem; }
th, td { text-align: left; padding: .4rem .6rem; border-bottom: 1px solid #d9e2ec; }
td.num { text-align: right; }
.status { text-transform: uppercase; font-weight: bold; }
</style>
</head>
<body>
<h1>Water Invoice #{{.Invoice.ID}}</h1>
<p>
<strong>{{.Customer.Name}}</strong><br>
{{.Customer.Address}}<br>
WhatsApp: {{.Customer.WhatsAppNumber}}
</p>
<p>Billing period: {{.Invoice.BillingPeriod}}<br>
Issued: {{date .Invoice.CreatedAt}}<br>
Due: {{date .Invoice.DueDate}}<br>
Status: <span class="status">{{.Invoice.Status}}</span></p>
<table>
<tr><th>Meter reading</th><th>Usage</th><th>Price per unit</th><th>Amount due</th></tr>
<tr>
<td>#{{.Invoice.MeterReadingID}}</td>
<td class="num">{{quantity .Invoice.TotalUsage}}</td>
<td class="num">{{price .Invoice.PricePerUnit}}</td>
<td class="num">{{amount .Invoice.AmountDue}}</td>
</tr>
</table>
</body>
</html>
`
