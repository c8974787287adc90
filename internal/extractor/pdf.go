package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"sort"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"
)

// ErrUnreadable is returned when no method produced statement-like text.
var ErrUnreadable = errors.New("no readable text could be extracted from PDF")

// Extractor turns PDF files into page text. It tries the ledongthuc/pdf
// library first and falls back to pdftotext (poppler-utils) when present.
type Extractor struct {
	log       zerolog.Logger
	pdftotext string // empty disables the fallback
}

// New returns an extractor; the pdftotext fallback is enabled when the
// binary is on PATH.
func New(log zerolog.Logger) *Extractor {
	e := &Extractor{log: log}
	if path, err := exec.LookPath("pdftotext"); err == nil {
		e.pdftotext = path
	}
	return e
}

// ExtractFile reads a PDF file and returns the text content of each page.
func (e *Extractor) ExtractFile(ctx context.Context, filePath string) ([]string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filePath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", filePath, err)
	}

	pages, libErr := extractWithLibrary(f, info.Size())
	if libErr == nil && isReadableText(pages) {
		return pages, nil
	}
	e.log.Debug().Err(libErr).Str("file", filePath).Msg("pdf library extraction unusable, trying pdftotext")

	if e.pdftotext != "" {
		popplerPages, err := e.extractWithPdftotext(ctx, filePath)
		if err == nil && isReadableText(popplerPages) {
			return popplerPages, nil
		}
		if err != nil {
			e.log.Debug().Err(err).Str("file", filePath).Msg("pdftotext failed")
		}
	}

	if libErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, libErr)
	}
	return nil, ErrUnreadable
}

// ExtractBytes extracts an in-memory PDF, such as an upload. The pdftotext
// fallback needs a file, so the data is spilled to a temp file only when
// the library fails.
func (e *Extractor) ExtractBytes(ctx context.Context, data []byte) ([]string, error) {
	pages, libErr := extractWithLibrary(bytes.NewReader(data), int64(len(data)))
	if libErr == nil && isReadableText(pages) {
		return pages, nil
	}
	if e.pdftotext == "" {
		if libErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnreadable, libErr)
		}
		return nil, ErrUnreadable
	}

	tmp, err := os.CreateTemp("", "statement-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	return e.ExtractFile(ctx, tmp.Name())
}

// ReadTextFile loads pre-extracted statement text, splitting pages on
// form feeds the way pdftotext writes them.
func ReadTextFile(filePath string) ([]string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filePath, err)
	}
	return SplitPages(string(data)), nil
}

// SplitPages splits text on form feeds, dropping empty pages.
func SplitPages(text string) []string {
	var pages []string
	for _, p := range strings.Split(text, "\f") {
		if strings.TrimSpace(p) != "" {
			pages = append(pages, p)
		}
	}
	return pages
}

// textQuality returns the share of runes that are letters, digits,
// whitespace or common statement punctuation. Binary garbage from
// identity-encoded fonts scores low.
func textQuality(pages []string) float64 {
	total := 0
	readable := 0
	for _, page := range pages {
		for _, r := range page {
			total++
			switch {
			case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r)):
				readable++
			case unicode.In(r, unicode.Latin) && unicode.IsLetter(r):
				readable++
			case strings.ContainsRune(".,-/:;()'\"$%&@#!?+=*", r):
				readable++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(readable) / float64(total)
}

// commonWords appear in virtually every Chase statement, English or Spanish.
var commonWords = []string{
	"bank", "account", "balance", "date", "deposit", "withdrawal",
	"statement", "total", "amount", "transaction", "page",
	"cuenta", "saldo", "fecha", "depósito", "retiro", "página",
}

func containsCommonWords(pages []string) bool {
	combined := strings.ToLower(strings.Join(pages, " "))
	for _, word := range commonWords {
		if strings.Contains(combined, word) {
			return true
		}
	}
	return false
}

// isReadableText requires more than 50 characters, more than 60% readable
// runes and at least one statement word.
func isReadableText(pages []string) bool {
	if totalTextLen(pages) <= 50 {
		return false
	}
	if textQuality(pages) <= 0.6 {
		return false
	}
	return containsCommonWords(pages)
}

// IsReadableText is the exported version for use by other packages.
func IsReadableText(pages []string) bool {
	return isReadableText(pages)
}

// extractWithPdftotext runs pdftotext over the whole document and splits
// pages on the form feeds it emits.
func (e *Extractor) extractWithPdftotext(ctx context.Context, filePath string) ([]string, error) {
	out, err := exec.CommandContext(ctx, e.pdftotext, "-layout", "-enc", "UTF-8", filePath, "-").Output()
	if err != nil {
		return nil, fmt.Errorf("pdftotext failed: %w", err)
	}
	pages := SplitPages(string(out))
	if len(pages) == 0 {
		return nil, errors.New("pdftotext produced no output")
	}
	return pages, nil
}

// extractWithLibrary uses ledongthuc/pdf, first by rows and then by
// coordinates. The library panics on some malformed files.
func extractWithLibrary(ra io.ReaderAt, size int64) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("PDF library crashed: %v", r)
		}
	}()

	r, err := pdf.NewReader(ra, size)
	if err != nil {
		return nil, err
	}
	numPages := r.NumPage()
	if numPages == 0 {
		return nil, errors.New("PDF has no pages")
	}

	pages = extractByRow(r, numPages)
	if isReadableText(pages) {
		return pages, nil
	}
	return extractByContent(r, numPages), nil
}

func extractByRow(r *pdf.Reader, numPages int) []string {
	var pages []string
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}
		var lines []string
		for _, row := range rows {
			parts := make([]string, 0, len(row.Content))
			for _, word := range row.Content {
				parts = append(parts, word.S)
			}
			if line := strings.TrimSpace(strings.Join(parts, " ")); line != "" {
				lines = append(lines, line)
			}
		}
		pages = append(pages, strings.Join(lines, "\n"))
	}
	return pages
}

// extractByContent rebuilds rows from text object coordinates: items are
// grouped by rounded Y (top of page first) and ordered by X.
func extractByContent(r *pdf.Reader, numPages int) []string {
	type textItem struct {
		x float64
		s string
	}
	var pages []string
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content := page.Content()
		rowMap := make(map[int][]textItem)
		for _, t := range content.Text {
			if strings.TrimSpace(t.S) == "" {
				continue
			}
			y := int(math.Round(t.Y))
			rowMap[y] = append(rowMap[y], textItem{x: t.X, s: t.S})
		}
		if len(rowMap) == 0 {
			continue
		}

		yKeys := make([]int, 0, len(rowMap))
		for y := range rowMap {
			yKeys = append(yKeys, y)
		}
		sort.Sort(sort.Reverse(sort.IntSlice(yKeys)))

		var lines []string
		for _, y := range yKeys {
			items := rowMap[y]
			sort.Slice(items, func(a, b int) bool { return items[a].x < items[b].x })

			var b strings.Builder
			for j, item := range items {
				if j > 0 && item.x-items[j-1].x > 15 {
					b.WriteByte(' ')
				}
				b.WriteString(item.s)
			}
			if line := strings.TrimSpace(b.String()); line != "" {
				lines = append(lines, line)
			}
		}
		pages = append(pages, strings.Join(lines, "\n"))
	}
	return pages
}

func totalTextLen(pages []string) int {
	n := 0
	for _, p := range pages {
		n += len(strings.TrimSpace(p))
	}
	return n
}
