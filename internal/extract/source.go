// Package extract turns a loaded record page into a canonical record. One
// field-rule set serves both extraction paths: the structured parser feeds
// it DOM text, the optical fallback feeds it recognized text with bounding
// boxes.
package extract

import (
	"strings"
)

// BBox is a line's bounding box: left, top, right, bottom in image pixels.
type BBox [4]int

// Height returns the box height, never less than 1.
func (b BBox) Height() int {
	h := b[3] - b[1]
	if h < 1 {
		return 1
	}
	return h
}

// Line is one tokenized text line from either extraction path. OCR lines
// carry bounding boxes; DOM-derived lines do not.
type Line struct {
	Text   string
	Box    BBox
	HasBox bool
}

// Source is the ordered line representation the field rules operate on.
type Source struct {
	Lines []Line
}

// NewTextSource builds a Source from plain text, one line per entry,
// dropping blank lines.
func NewTextSource(text string) *Source {
	var lines []Line
	for _, ln := range strings.Split(text, "\n") {
		ln = strings.TrimSpace(ln)
		if ln == "" {
			continue
		}
		lines = append(lines, Line{Text: ln})
	}
	return &Source{Lines: lines}
}

// Text returns the source as newline-joined text.
func (s *Source) Text() string {
	parts := make([]string, len(s.Lines))
	for i, ln := range s.Lines {
		parts[i] = ln.Text
	}
	return strings.Join(parts, "\n")
}

// Empty reports whether the source holds no text at all.
func (s *Source) Empty() bool {
	return s == nil || len(s.Lines) == 0
}
