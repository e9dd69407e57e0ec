// Package dataset streams benchmark samples from a JSON file.
//
// The file holds either a list of records or an object whose "data" key is
// that list. Each record may carry markdown_content (preferred) or content,
// plus url, title and a baseline summary.
package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/localrivet/summbench/internal/schema"
)

// ErrNoDataList is returned when an object-shaped file has no "data" list.
var ErrNoDataList = errors.New(`dataset object has no "data" list`)

// record is the on-disk shape of one sample.
type record struct {
	MarkdownContent string `json:"markdown_content"`
	Content         string `json:"content"`
	URL             string `json:"url"`
	Title           string `json:"title"`
	Summary         string `json:"summary"`
}

// Loader reads samples from Path.
type Loader struct {
	Path string

	// Limit caps the number of samples. Zero or negative means no limit.
	Limit int

	// StripHTML converts HTML markup in the sample text to plain text.
	StripHTML bool
}

// Samples returns a lazy sequence of samples. Each iteration reopens the
// file, so the sequence can be ranged over more than once. A read or decode
// failure is yielded once and ends the sequence.
func (l Loader) Samples(ctx context.Context) iter.Seq2[schema.RawContent, error] {
	return func(yield func(schema.RawContent, error) bool) {
		f, err := os.Open(l.Path)
		if err != nil {
			yield(schema.RawContent{}, fmt.Errorf("open dataset: %w", err))
			return
		}
		defer f.Close()

		count := 0
		err = decode(f, func(rec record) bool {
			if l.Limit > 0 && count >= l.Limit {
				return false
			}
			if ctx.Err() != nil {
				return false
			}
			count++
			return yield(l.convert(rec), nil)
		})
		if err != nil {
			yield(schema.RawContent{}, err)
		}
	}
}

// Load collects every sample into memory.
func (l Loader) Load(ctx context.Context) ([]schema.RawContent, error) {
	var out []schema.RawContent
	for sample, err := range l.Samples(ctx) {
		if err != nil {
			return out, err
		}
		out = append(out, sample)
	}
	return out, ctx.Err()
}

func (l Loader) convert(rec record) schema.RawContent {
	text := rec.MarkdownContent
	if text == "" {
		text = rec.Content
	}
	if l.StripHTML {
		text = HTMLToText(text)
	}

	meta := make(map[string]string, 2)
	if rec.Title != "" {
		meta[schema.MetaTitle] = rec.Title
	}
	if rec.Summary != "" {
		meta[schema.MetaBaselineSummary] = rec.Summary
	}
	return schema.RawContent{URL: rec.URL, Text: text, Metadata: meta}
}

// decode streams records to fn until fn returns false or input ends.
func decode(r io.Reader, fn func(record) bool) error {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("read dataset: %w", err)
	}

	switch tok {
	case json.Delim('['):
		return decodeList(dec, fn)
	case json.Delim('{'):
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return fmt.Errorf("read dataset: %w", err)
			}
			if key, _ := keyTok.(string); key == "data" {
				open, err := dec.Token()
				if err != nil {
					return fmt.Errorf("read dataset: %w", err)
				}
				if open != json.Delim('[') {
					return ErrNoDataList
				}
				return decodeList(dec, fn)
			}
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return fmt.Errorf("read dataset: %w", err)
			}
		}
		return ErrNoDataList
	default:
		return fmt.Errorf("unexpected dataset structure starting with %v", tok)
	}
}

func decodeList(dec *json.Decoder, fn func(record) bool) error {
	for dec.More() {
		var rec record
		if err := dec.Decode(&rec); err != nil {
			return fmt.Errorf("decode dataset record: %w", err)
		}
		if !fn(rec) {
			return nil
		}
	}
	return nil
}

// HTMLToText returns the visible text of an HTML fragment with whitespace
// collapsed. Text without markup is returned unchanged.
func HTMLToText(text string) string {
	if !strings.Contains(text, "<") || !strings.Contains(text, ">") {
		return text
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return text
	}
	doc.Find("script, style, noscript").Remove()

	var lines []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
