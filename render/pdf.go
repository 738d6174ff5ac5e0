package render

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
)

// ErrEmptyDocument signals the renderer produced no bytes.
var ErrEmptyDocument = errors.New("render: empty document")

const fontFamily = "DejaVu"

// DejaVu Sans covers Latin, Greek and Cyrillic. Indic scripts need a font
// with those glyphs and a shaping engine, which fpdf does not have.
var (
	//go:embed fonts/DejaVuSansCondensed.ttf
	regularFont []byte
	//go:embed fonts/DejaVuSansCondensed-Bold.ttf
	boldFont []byte
)

// PDFRenderer lays agreements out as A4 PDFs with an embedded UTF-8 font.
type PDFRenderer struct {
	title string
}

func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{title: "Rental Agreement"}
}

// Render produces the agreement document for data.
func (r *PDFRenderer) Render(ctx context.Context, data TemplateData) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	data = Prepare(data)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetTitle(r.documentTitle(data), true)
	pdf.SetCreator("rentfit", true)
	pdf.AddUTF8FontFromBytes(fontFamily, "", regularFont)
	pdf.AddUTF8FontFromBytes(fontFamily, "B", boldFont)

	pdf.AddPage()
	pdf.SetFont(fontFamily, "B", 16)
	pdf.CellFormat(0, 10, r.documentTitle(data), "", 1, "C", false, 0, "")

	pdf.SetFont(fontFamily, "", 9)
	sub := fmt.Sprintf("Version %d", data.Version)
	if data.StateCode != "" {
		sub += " | State " + data.StateCode
	}
	if data.CreatedAt != "" {
		sub += " | Dated " + data.CreatedAt
	}
	pdf.CellFormat(0, 6, sub, "", 1, "C", false, 0, "")
	pdf.Ln(4)

	heading := func(text string) {
		pdf.Ln(2)
		pdf.SetFont(fontFamily, "B", 12)
		pdf.CellFormat(0, 8, text, "B", 1, "L", false, 0, "")
		pdf.SetFont(fontFamily, "", 10)
		pdf.Ln(1)
	}
	para := func(text string) {
		pdf.MultiCell(0, 5.5, text, "", "L", false)
	}

	heading("Parties")
	para(fmt.Sprintf("Owner (Lessor): %s <%s>", data.Owner.Name(), data.Owner.Email))
	para(fmt.Sprintf("Tenant (Lessee): %s <%s>", data.Tenant.Name(), data.Tenant.Email))

	heading("Premises")
	if data.Unit.Title != "" {
		para(data.Unit.Title)
	}
	if addr := formatAddress(data.Unit.Address); addr != "" {
		para(addr)
	}

	heading("Rent")
	para(fmt.Sprintf("Rs. %s (Rupees %s Only), payable %s.",
		formatAmount(data.Rent.Amount), data.Rent.AmountInWords, data.Rent.Cycle))
	if data.Rent.DueDateDay > 0 {
		para(fmt.Sprintf("Rent falls due on day %d of each period.", data.Rent.DueDateDay))
	}
	if data.Rent.UtilitiesIncluded {
		para("Utilities are included in the rent.")
	} else {
		para("Utilities are payable by the tenant in addition to the rent.")
	}

	if data.Deposit != nil {
		heading("Security Deposit")
		line := fmt.Sprintf("Rs. %s", formatAmount(data.Deposit.Amount))
		if data.Deposit.AmountInWords != "" {
			line += fmt.Sprintf(" (Rupees %s Only)", data.Deposit.AmountInWords)
		}
		if data.Deposit.Status != "" {
			line += ", status: " + data.Deposit.Status
		}
		para(line + ".")
	}

	if len(data.Clauses) > 0 {
		heading("Terms and Conditions")
		for i, c := range data.Clauses {
			text := c.Text
			if c.Key != "" {
				text = c.Key + ": " + text
			}
			para(fmt.Sprintf("%d. %s", i+1, text))
			pdf.Ln(1)
		}
	}

	heading("Signatures")
	if len(data.Signers) == 0 {
		for _, p := range []Party{data.Owner, data.Tenant} {
			pdf.Ln(8)
			para("______________________________")
			para(p.Name())
		}
	}
	for _, s := range data.Signers {
		line := s.Name
		if line == "" {
			line = s.UserID
		}
		if s.Method != "" {
			line += " (" + s.Method + ")"
		}
		if s.SignedAt != "" {
			line += ", signed " + s.SignedAt
		}
		para(line)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("render: layout: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render: output: %w", err)
	}
	if buf.Len() == 0 {
		return nil, ErrEmptyDocument
	}
	return buf.Bytes(), nil
}

func (r *PDFRenderer) documentTitle(d TemplateData) string {
	if d.TemplateName != "" {
		return d.TemplateName
	}
	return r.title
}

func formatAddress(a Address) string {
	var parts []string
	for _, p := range []string{a.Line1, a.Line2, a.City, a.State} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}
	out := strings.Join(parts, ", ")
	if a.Pincode != "" {
		out += " - " + a.Pincode
	}
	return out
}

// formatAmount groups digits the Indian way: 1,50,000.
func formatAmount(v float64) string {
	whole := int64(v)
	neg := whole < 0
	if neg {
		whole = -whole
	}
	s := fmt.Sprintf("%d", whole)
	if len(s) > 3 {
		head, tail := s[:len(s)-3], s[len(s)-3:]
		var groups []string
		for len(head) > 2 {
			groups = append([]string{head[len(head)-2:]}, groups...)
			head = head[:len(head)-2]
		}
		groups = append([]string{head}, groups...)
		s = strings.Join(groups, ",") + "," + tail
	}
	if paise := int64((v-float64(int64(v)))*100 + 0.5); paise > 0 && !neg {
		s += fmt.Sprintf(".%02d", paise)
	}
	if neg {
		s = "-" + s
	}
	return s
}
