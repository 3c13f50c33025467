package services

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/tsawler/tabula/layout"
	"github.com/tsawler/tabula/reader"
	"github.com/tsawler/tabula/text"

	"github.com/Lllllllleong/submissionmetadata/internal/models"
)

// ErrLayoutPanic wraps a panic raised by a PDF parser during layout analysis.
var ErrLayoutPanic = errors.New("pdf parser panicked")

// LayoutConfig holds the column-detection thresholds.
type LayoutConfig struct {
	// MaxPages is how many leading pages are inspected.
	MaxPages int
	// MinBlocks is the block count below which a page casts no vote.
	MinBlocks int
	// MinSpansPerHalf must be exceeded on both halves for a Double vote.
	MinSpansPerHalf int
}

func DefaultLayoutConfig() LayoutConfig {
	return LayoutConfig{
		MaxPages:        3,
		MinBlocks:       5,
		MinSpansPerHalf: 10,
	}
}

// PageGeometry is the text-block structure of one page.
type PageGeometry struct {
	Left   float64
	Width  float64
	Blocks []layout.Block
}

// Midpoint is the x coordinate splitting the page into halves.
func (p PageGeometry) Midpoint() float64 {
	return p.Left + p.Width/2
}

// PageCounter reports the total number of pages of a PDF file.
type PageCounter interface {
	PageCount(path string) (int, error)
}

// GeometrySource opens PDFs for span-level inspection.
type GeometrySource interface {
	Open(path string) (GeometryDocument, error)
}

// GeometryDocument exposes per-page block geometry.
type GeometryDocument interface {
	NumPages() (int, error)
	Page(index int) (PageGeometry, error)
	Close() error
}

// LayoutAnalyzer classifies a PDF as single or double column.
type LayoutAnalyzer struct {
	counter PageCounter
	source  GeometrySource
	config  LayoutConfig
}

// NewLayoutAnalyzer uses pdfcpu for the page count and tabula for span geometry.
func NewLayoutAnalyzer() *LayoutAnalyzer {
	return NewLayoutAnalyzerWithSources(PdfcpuPageCounter{}, NewTabulaGeometrySource(), DefaultLayoutConfig())
}

func NewLayoutAnalyzerWithSources(counter PageCounter, source GeometrySource, config LayoutConfig) *LayoutAnalyzer {
	return &LayoutAnalyzer{counter: counter, source: source, config: config}
}

// Analyze returns the page count and column format of the PDF at path.
// Failures are logged and leave the affected fields at their defaults.
func (a *LayoutAnalyzer) Analyze(path string) models.LayoutInfo {
	info := models.DefaultLayoutInfo()
	logCtx := slog.With("filename", filepath.Base(path))

	count, err := a.pageCount(path)
	if err != nil {
		logCtx.Error("Error extracting additional metadata.", "stage", "page_count", "error", err)
		return info
	}
	info.PageCount = count

	format, err := a.detectColumnFormat(path)
	if err != nil {
		logCtx.Error("Error extracting additional metadata.", "stage", "column_format", "error", err)
		return info
	}
	info.ColumnFormat = format
	return info
}

func (a *LayoutAnalyzer) pageCount(path string) (count int, err error) {
	defer recoverInto(&err)
	return a.counter.PageCount(path)
}

func (a *LayoutAnalyzer) detectColumnFormat(path string) (format models.ColumnFormat, err error) {
	format = models.UnknownFormat
	defer recoverInto(&err)

	doc, err := a.source.Open(path)
	if err != nil {
		return models.UnknownFormat, fmt.Errorf("open for layout: %w", err)
	}
	defer doc.Close()

	total, err := doc.NumPages()
	if err != nil {
		return models.UnknownFormat, fmt.Errorf("count pages: %w", err)
	}

	pagesToCheck := min(a.config.MaxPages, total)
	var votes []models.ColumnVote
	for i := 0; i < pagesToCheck; i++ {
		page, err := doc.Page(i)
		if err != nil {
			return models.UnknownFormat, fmt.Errorf("page %d: %w", i+1, err)
		}
		if vote, ok := a.VotePage(page); ok {
			votes = append(votes, vote)
		}
	}
	return AggregateVotes(votes), nil
}

// VotePage classifies one page. ok is false when the page has too little text to vote.
func (a *LayoutAnalyzer) VotePage(page PageGeometry) (vote models.ColumnVote, ok bool) {
	if len(page.Blocks) < a.config.MinBlocks {
		return models.VoteSingle, false
	}

	mid := page.Midpoint()
	var left, right, spans int
	for _, block := range page.Blocks {
		for _, line := range block.Lines {
			for _, span := range line {
				spans++
				if span.X < mid {
					left++
				} else {
					right++
				}
			}
		}
	}
	if spans == 0 {
		return models.VoteSingle, false
	}

	if left > a.config.MinSpansPerHalf && right > a.config.MinSpansPerHalf {
		return models.VoteDouble, true
	}
	return models.VoteSingle, true
}

// AggregateVotes applies the majority rule: Double Column only when strictly more
// than half of the votes are Double.
func AggregateVotes(votes []models.ColumnVote) models.ColumnFormat {
	if len(votes) == 0 {
		return models.UnknownFormat
	}
	var double int
	for _, v := range votes {
		if v == models.VoteDouble {
			double++
		}
	}
	if double*2 > len(votes) {
		return models.DoubleColumn
	}
	return models.SingleColumn
}

func recoverInto(errp *error) {
	if r := recover(); r != nil {
		*errp = fmt.Errorf("%w: %v", ErrLayoutPanic, r)
	}
}

// PdfcpuPageCounter counts pages with pdfcpu.
type PdfcpuPageCounter struct{}

func (PdfcpuPageCounter) PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("pdfcpu page count: %w", err)
	}
	return n, nil
}

// TabulaGeometrySource reads span positions with tabula, splits each page into
// columns and groups each column into blocks.
type TabulaGeometrySource struct {
	columns layout.ColumnConfig
	blocks  layout.BlockConfig
}

func NewTabulaGeometrySource() *TabulaGeometrySource {
	return &TabulaGeometrySource{columns: layout.DefaultColumnConfig(), blocks: layout.DefaultBlockConfig()}
}

func (s *TabulaGeometrySource) Open(path string) (GeometryDocument, error) {
	r, err := reader.Open(path)
	if err != nil {
		return nil, err
	}
	return &tabulaDocument{
		r:        r,
		columns:  layout.NewColumnDetectorWithConfig(s.columns),
		detector: layout.NewBlockDetectorWithConfig(s.blocks),
	}, nil
}

type tabulaDocument struct {
	r        *reader.Reader
	columns  *layout.ColumnDetector
	detector *layout.BlockDetector
}

func (d *tabulaDocument) NumPages() (int, error) {
	return d.r.PageCount()
}

func (d *tabulaDocument) Page(index int) (PageGeometry, error) {
	page, err := d.r.GetPage(index)
	if err != nil {
		return PageGeometry{}, err
	}
	box, err := page.CropBox()
	if err != nil {
		return PageGeometry{}, fmt.Errorf("crop box: %w", err)
	}
	if len(box) < 4 {
		return PageGeometry{}, fmt.Errorf("crop box has %d entries", len(box))
	}
	width, height := box[2]-box[0], box[3]-box[1]

	fragments, err := d.r.ExtractTextFragments(page)
	if err != nil {
		return PageGeometry{}, fmt.Errorf("extract fragments: %w", err)
	}
	return PageGeometry{
		Left:   box[0],
		Width:  width,
		Blocks: columnBlocks(d.columns, d.detector, fragments, width, height),
	}, nil
}

func (d *tabulaDocument) Close() error {
	return d.r.Close()
}

// columnBlocks detects blocks column by column. Lines sharing a baseline across the
// column gap would otherwise be merged into one block spanning both columns.
func columnBlocks(columns *layout.ColumnDetector, detector *layout.BlockDetector, fragments []text.TextFragment, width, height float64) []layout.Block {
	var blocks []layout.Block
	for _, col := range columns.Detect(fragments, width, height).Columns {
		blocks = append(blocks, detector.Detect(col.Fragments, width, height).Blocks...)
	}
	return blocks
}
