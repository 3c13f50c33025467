package models

// ColumnFormat is the page-layout classification of a submission PDF.
type ColumnFormat string

const (
	SingleColumn  ColumnFormat = "Single Column"
	DoubleColumn  ColumnFormat = "Double Column"
	UnknownFormat ColumnFormat = "Unknown"
)

// ColumnVote is a single inspected page's classification.
type ColumnVote int

const (
	VoteSingle ColumnVote = iota
	VoteDouble
)

// ProcessingFailedTitle marks a record whose enrichment could not be trusted.
const ProcessingFailedTitle = "Error - Processing failed"

// LayoutInfo is what the layout analyzer contributes to a record.
type LayoutInfo struct {
	PageCount    int
	ColumnFormat ColumnFormat
}

// DefaultLayoutInfo is used whenever a document cannot be analyzed.
func DefaultLayoutInfo() LayoutInfo {
	return LayoutInfo{PageCount: 0, ColumnFormat: UnknownFormat}
}

// ExtraField is a field the enrichment service returned beyond the fixed schema,
// kept in the order it was discovered.
type ExtraField struct {
	Name  string
	Multi bool
	Text  string
	List  []string
}

// DocumentMetadata is the working record for one submission PDF.
// It is created at pipeline entry, filled in by each stage and finalized with Flatten.
type DocumentMetadata struct {
	Filename     string
	ID           string
	Title        string
	Authors      []string
	AuthorCount  string
	Keywords     []string
	Affiliations []string
	PageCount    int
	ColumnFormat ColumnFormat
	Extra        []ExtraField
}

// NewDocumentMetadata starts a record for filename with layout defaults.
func NewDocumentMetadata(filename string) DocumentMetadata {
	return DocumentMetadata{
		Filename:     filename,
		ID:           DeriveID(filename),
		ColumnFormat: UnknownFormat,
	}
}

// DeriveID returns the folder id prefix of a reorganized filename: its first three characters.
func DeriveID(filename string) string {
	r := []rune(filename)
	if len(r) <= 3 {
		return filename
	}
	return string(r[:3])
}

// ApplyLayout merges the analyzer's fields into the record.
func (m *DocumentMetadata) ApplyLayout(info LayoutInfo) {
	m.PageCount = info.PageCount
	m.ColumnFormat = info.ColumnFormat
}

// IsFallback reports whether the record carries the enrichment failure sentinel.
func (m DocumentMetadata) IsFallback() bool {
	return m.Title == ProcessingFailedTitle
}
