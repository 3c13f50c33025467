package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/tsawler/tabula/layout"
	"github.com/tsawler/tabula/text"
)

// span builds a text fragment whose left edge is x.
func span(x float64) text.TextFragment {
	return text.TextFragment{Text: "word", X: x, Y: 700, Width: 20, Height: 10, FontSize: 10}
}

// block builds a block with one line per x position.
func block(xs ...float64) layout.Block {
	var b layout.Block
	for _, x := range xs {
		frag := span(x)
		b.Fragments = append(b.Fragments, frag)
		b.Lines = append(b.Lines, []text.TextFragment{frag})
	}
	return b
}

// twoColumnPage has 6 blocks with 12 spans on each half of a 600pt page.
func twoColumnPage() PageGeometry {
	var blocks []layout.Block
	for i := 0; i < 6; i++ {
		blocks = append(blocks, block(50, 60, 350, 360))
	}
	return PageGeometry{Width: 600, Blocks: blocks}
}

// singleColumnPage has 6 blocks with every span on the left half.
func singleColumnPage() PageGeometry {
	var blocks []layout.Block
	for i := 0; i < 6; i++ {
		blocks = append(blocks, block(72, 72, 90, 120))
	}
	return PageGeometry{Width: 600, Blocks: blocks}
}

// sparsePage has too few blocks to vote.
func sparsePage() PageGeometry {
	return PageGeometry{Width: 600, Blocks: []layout.Block{block(50, 350), block(50, 350)}}
}

type fakeCounter struct {
	counts map[string]int
	err    error
}

func (c fakeCounter) PageCount(path string) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	n, ok := c.counts[path]
	if !ok {
		return 0, errors.New("no such document")
	}
	return n, nil
}

type fakeSource struct {
	docs    map[string][]PageGeometry
	openErr error
	pageErr error
	panicOn int
	opened  []string
}

func newFakeSource(docs map[string][]PageGeometry) *fakeSource {
	return &fakeSource{docs: docs, panicOn: -1}
}

func (s *fakeSource) Open(path string) (GeometryDocument, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	pages, ok := s.docs[path]
	if !ok {
		return nil, errors.New("cannot open")
	}
	s.opened = append(s.opened, path)
	return &fakeDocument{src: s, pages: pages}, nil
}

type fakeDocument struct {
	src       *fakeSource
	pages     []PageGeometry
	requested []int
}

func (d *fakeDocument) NumPages() (int, error) { return len(d.pages), nil }

func (d *fakeDocument) Page(index int) (PageGeometry, error) {
	d.requested = append(d.requested, index)
	if index == d.src.panicOn {
		panic("corrupt content stream")
	}
	if d.src.pageErr != nil {
		return PageGeometry{}, d.src.pageErr
	}
	return d.pages[index], nil
}

func (d *fakeDocument) Close() error { return nil }

// fakeLLM answers prompts containing a marker with the scripted result and
// everything else with response/err.
type fakeLLM struct {
	mu        sync.Mutex
	response  string
	err       error
	block     bool
	delay     time.Duration
	responses map[string]string
	errs      map[string]error
	prompts   []string
}

func (f *fakeLLM) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, userPrompt)
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	for marker, err := range f.errs {
		if strings.Contains(userPrompt, marker) {
			return "", err
		}
	}
	for marker, resp := range f.responses {
		if strings.Contains(userPrompt, marker) {
			return resp, nil
		}
	}
	return f.response, f.err
}

// fakeExtractor returns canned text per path.
type fakeExtractor map[string]string

func (f fakeExtractor) Extract(ctx context.Context, path string) string {
	return f[path]
}

const validResponse = `{
  "Title": "Attention Is All You Need",
  "Authors": ["Ashish Vaswani", "Noam Shazeer", "Niki Parmar"],
  "No of Authors": 3,
  "Keywords": ["transformers", "attention"],
  "Affiliations": ["Google Brain", "Google Research"]
}`
