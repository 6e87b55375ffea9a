package parser

import (
	"fmt"
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractTables returns the outer HTML of every top-level table in doc.
func ExtractTables(doc string) ([]string, error) {
	d, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}

	var tables []string
	d.Find("table").Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered("table").Length() > 0 {
			return
		}
		s.SetAttr("class", "extracted-table")
		out, err := goquery.OuterHtml(s)
		if err != nil {
			return
		}
		tables = append(tables, out)
	})
	return tables, nil
}

const tablesStyle = `table {border-collapse: collapse; width: 100%; margin-bottom: 20px;}` +
	`th, td {border: 1px solid #ddd; padding: 8px; text-align: left;}` +
	`th {background-color: #f2f2f2;}`

// TablesDocument wraps extracted tables in a standalone HTML page.
func TablesDocument(title string, tables []string) string {
	var b strings.Builder
	b.WriteString("<html><head><meta charset=\"utf-8\"><title>Extracted Tables</title>")
	b.WriteString("<style>" + tablesStyle + "</style></head><body>")
	b.WriteString("<h1>Tables Extracted from " + html.EscapeString(title) + "</h1>")
	for i, t := range tables {
		fmt.Fprintf(&b, "<h2>Table %d</h2>", i+1)
		b.WriteString(t)
	}
	b.WriteString("</body></html>")
	return b.String()
}
