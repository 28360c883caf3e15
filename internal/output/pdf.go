package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"codeberg.org/go-pdf/fpdf"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/qgenlab/qgen/internal/config"
	"github.com/qgenlab/qgen/internal/model"
)

const (
	lineHeight = 6.0
	bandWidth  = 45.0 // rubric table: level column
)

// PDFRenderer writes printable question sheets, answer keys and rubrics.
type PDFRenderer struct {
	cfg   config.PDFConfig
	title cases.Caser
}

// NewPDFRenderer creates a renderer with the given page settings.
func NewPDFRenderer(cfg config.PDFConfig) *PDFRenderer {
	return &PDFRenderer{cfg: cfg, title: cases.Title(language.English)}
}

// document wraps an fpdf document with the helpers shared by both layouts.
type document struct {
	pdf    *fpdf.Fpdf
	tr     func(string) string
	family string
	width  float64 // printable width
}

func (r *PDFRenderer) newDocument(title string) *document {
	pdf := fpdf.New("P", "mm", r.cfg.PageSize, "")
	pdf.SetMargins(r.cfg.MarginMM, r.cfg.MarginMM, r.cfg.MarginMM)
	pdf.SetAutoPageBreak(true, r.cfg.MarginMM)
	pdf.SetTitle(title, true)

	pageW, _ := pdf.GetPageSize()
	return &document{
		pdf: pdf,
		// Core fonts are cp1252; translate so accents survive.
		tr:     pdf.UnicodeTranslatorFromDescriptor(""),
		family: r.cfg.FontFamily,
		width:  pageW - 2*r.cfg.MarginMM,
	}
}

func (d *document) heading(text string, size float64) {
	d.pdf.SetFont(d.family, "B", size)
	d.pdf.CellFormat(0, size*0.7, d.tr(text), "", 1, "C", false, 0, "")
	d.pdf.Ln(4)
}

func (d *document) section(text string) {
	d.pdf.Ln(2)
	d.pdf.SetFont(d.family, "B", 14)
	d.pdf.MultiCell(0, lineHeight+2, d.tr(text), "", "L", false)
	d.pdf.Ln(1)
}

func (d *document) para(style, text string) {
	d.pdf.SetFont(d.family, style, 11)
	d.pdf.MultiCell(0, lineHeight, d.tr(text), "", "L", false)
}

// bandRow draws one rubric band as a bordered two-column row.
func (d *document) bandRow(level, description string) {
	d.pdf.SetFont(d.family, "", 10)
	descWidth := d.width - bandWidth
	lines := d.pdf.SplitText(d.tr(description), descWidth)
	h := lineHeight * float64(max(len(lines), 1))

	_, pageH := d.pdf.GetPageSize()
	_, _, _, bottom := d.pdf.GetMargins()
	if d.pdf.GetY()+h > pageH-bottom {
		d.pdf.AddPage()
	}

	x, y := d.pdf.GetXY()
	d.pdf.SetFont(d.family, "B", 10)
	d.pdf.CellFormat(bandWidth, h, d.tr(level), "1", 0, "L", false, 0, "")
	d.pdf.SetFont(d.family, "", 10)
	d.pdf.SetXY(x+bandWidth, y)
	d.pdf.MultiCell(descWidth, lineHeight, d.tr(description), "1", "L", false)
	d.pdf.SetX(x)
}

func (d *document) save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}
	if err := d.pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("write pdf %s: %w", path, err)
	}
	return nil
}

func (r *PDFRenderer) docTitle(p model.GenerationParams, suffix string) string {
	parts := make([]string, 0, 3)
	for _, s := range []string{p.Subject, p.Subtopic} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	parts = append(parts, suffix)
	return r.title.String(strings.Join(parts, " "))
}

// RenderQA writes a question sheet followed by an answer key with rubrics.
func (r *PDFRenderer) RenderQA(path string, p model.GenerationParams, groups model.QAGroups) error {
	d := r.newDocument(r.docTitle(p, "questions"))

	// ---------- questions ----------
	d.pdf.AddPage()
	d.heading(r.docTitle(p, "questions"), 20)
	if p.GradeLevel != "" {
		d.para("I", "Grade "+p.GradeLevel)
	}
	n := 0
	for _, g := range groups {
		if len(g.Items) == 0 {
			continue
		}
		d.section(r.title.String(g.Level))
		for _, it := range g.Items {
			n++
			d.para("", fmt.Sprintf("%d. %s", n, it.Question))
			d.pdf.Ln(lineHeight)
		}
	}

	// ---------- answer key ----------
	d.pdf.AddPage()
	d.heading(r.docTitle(p, "answer key"), 20)
	n = 0
	for _, g := range groups {
		if len(g.Items) == 0 {
			continue
		}
		d.section(r.title.String(g.Level))
		for _, it := range g.Items {
			n++
			d.para("B", fmt.Sprintf("%d. %s", n, it.Question))
			d.para("", "Answer: "+it.Answer)
			if it.Rubric != nil {
				if len(it.Rubric.Levels) > 0 {
					d.pdf.Ln(1)
					for _, band := range it.Rubric.Levels {
						d.bandRow(band.Level, band.Description)
					}
				} else if it.Rubric.Text != "" {
					d.para("I", "Rubric: "+it.Rubric.Text)
				}
			}
			d.pdf.Ln(lineHeight)
		}
	}

	return d.save(path)
}

// RenderRubric writes markdown rubric questions, one section per question.
func (r *PDFRenderer) RenderRubric(path string, p model.GenerationParams, questions []model.RubricQuestion) error {
	d := r.newDocument(r.docTitle(p, "rubric"))
	d.pdf.AddPage()
	d.heading(r.docTitle(p, "rubric"), 20)

	for _, q := range questions {
		d.section(fmt.Sprintf("Question %d (%s)", q.Number, r.title.String(q.Level)))
		for _, line := range strings.Split(q.Body, "\n") {
			line = strings.TrimSpace(strings.ReplaceAll(line, "**", ""))
			if line == "" || isTableRule(line) {
				continue
			}
			d.para("", line)
		}
	}
	return d.save(path)
}

// isTableRule reports whether line is a markdown table separator like |---|---|.
func isTableRule(line string) bool {
	return strings.Trim(line, "|-: ") == "" && strings.Contains(line, "-")
}
