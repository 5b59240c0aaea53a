package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aluiziolira/go-scrape-1688/models"
)

var csvHeader = []string{
	"url", "product_id", "title", "price", "images", "description",
	"specifications", "scraped_at", "quality_score", "extraction_method",
}

// outputFile is the file handle shared by the concrete writers. kind labels
// errors ("csv", "json"). preamble is the size of any fixed leading content
// such as a header row.
type outputFile struct {
	kind     string
	file     *os.File
	buf      *bufio.Writer
	preamble int64
	mu       sync.Mutex
}

// ensureDir creates the parent directory of filename.
func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}

func openOutput(kind, filename string) (*outputFile, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}
	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create %s file: %w", kind, err)
	}
	return &outputFile{kind: kind, file: f, buf: bufio.NewWriter(f)}, nil
}

func (o *outputFile) flush() error {
	if err := o.buf.Flush(); err != nil {
		return fmt.Errorf("flush %s writer: %w", o.kind, err)
	}
	return nil
}

func (o *outputFile) close() error {
	if err := o.flush(); err != nil {
		o.file.Close()
		return err
	}
	return o.file.Close()
}

// Validate ensures at least one record reached the file.
func (o *outputFile) Validate() error {
	info, err := o.file.Stat()
	if err != nil {
		return fmt.Errorf("stat %s file: %w", o.kind, err)
	}
	if info.Size() <= o.preamble {
		return fmt.Errorf("%s file has no records", o.kind)
	}
	return nil
}

// CSVWriter writes one row per record under a fixed header.
type CSVWriter struct {
	*outputFile
	rows *csv.Writer
}

// NewCSVWriter creates filename and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	out, err := openOutput("csv", filename)
	if err != nil {
		return nil, err
	}
	cw := &CSVWriter{outputFile: out, rows: csv.NewWriter(out.buf)}
	if err := cw.writeRows([][]string{csvHeader}); err != nil {
		out.file.Close()
		return nil, err
	}
	info, err := out.file.Stat()
	if err != nil {
		out.file.Close()
		return nil, fmt.Errorf("stat csv file: %w", err)
	}
	out.preamble = info.Size()
	return cw, nil
}

// Write appends records. Images are joined with "|" and specifications
// flattened to sorted "key: value" lines.
func (cw *CSVWriter) Write(records []*models.ProductRecord) error {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, csvRow(rec))
	}

	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.writeRows(rows)
}

func (cw *CSVWriter) writeRows(rows [][]string) error {
	if err := cw.rows.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv rows: %w", err)
	}
	return cw.flush()
}

// Close flushes and closes the file.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.close()
}

func csvRow(rec *models.ProductRecord) []string {
	return []string{
		rec.SourceURL,
		rec.ID(),
		rec.Title,
		rec.Price,
		strings.Join(rec.Images, "|"),
		rec.Description,
		flattenSpecs(rec.Specifications),
		rec.ScrapedAt,
		strconv.Itoa(rec.Quality.Score),
		rec.Quality.ExtractionMethod,
	}
}

// JSONWriter writes newline-delimited JSON records.
type JSONWriter struct {
	*outputFile
	encoder *json.Encoder
}

// NewJSONWriter creates filename.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	out, err := openOutput("json", filename)
	if err != nil {
		return nil, err
	}
	enc := json.NewEncoder(out.buf)
	enc.SetEscapeHTML(false)
	return &JSONWriter{outputFile: out, encoder: enc}, nil
}

// Write appends one line per record.
func (jw *JSONWriter) Write(records []*models.ProductRecord) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	for _, rec := range records {
		if err := jw.encoder.Encode(rec); err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
	}
	return jw.flush()
}

// Close flushes and closes the file.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	return jw.close()
}

func flattenSpecs(specs map[string]string) string {
	keys := make([]string, 0, len(specs))
	for k := range specs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+": "+specs[k])
	}
	return strings.Join(lines, "\n")
}
