package ocr

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/taxlien-works/harvest/internal/errs"
	"github.com/taxlien-works/harvest/internal/extract"
)

// Engine drives an external tesseract binary. Recognition runs on a
// temporary copy of the captured page image and yields positioned lines
// suitable for the shared extraction rules.
type Engine struct {
	binary  string
	timeout time.Duration
}

// NewEngine returns an engine using the given tesseract binary path.
// An empty path falls back to resolving "tesseract" on PATH.
func NewEngine(binary string, timeout time.Duration) *Engine {
	if binary == "" {
		binary = "tesseract"
	}
	return &Engine{binary: binary, timeout: timeout}
}

// Available reports whether the tesseract binary can be resolved.
func (e *Engine) Available() bool {
	_, err := exec.LookPath(e.binary)
	return err == nil
}

// Recognize runs tesseract over the PNG image and returns the recognized
// text as positioned lines. A missing or failing binary is reported as an
// OCR_UNAVAILABLE error so callers can exclude the record rather than
// retry.
func (e *Engine) Recognize(ctx context.Context, image []byte) (*extract.Source, error) {
	if _, err := exec.LookPath(e.binary); err != nil {
		return nil, errs.OcrUnavailable(err)
	}

	tmp, err := os.CreateTemp("", "harvest-ocr-*.png")
	if err != nil {
		return nil, errs.OcrUnavailable(err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(image); err != nil {
		tmp.Close()
		return nil, errs.OcrUnavailable(err)
	}
	tmp.Close()

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, e.binary, tmp.Name(), "stdout", "--psm", "6", "tsv")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		log.Warn().
			Err(err).
			Str("binary", filepath.Base(e.binary)).
			Str("stderr", strings.TrimSpace(stderr.String())).
			Msg("Tesseract invocation failed")
		return nil, errs.OcrUnavailable(err)
	}

	return parseTSV(stdout.String()), nil
}

// parseTSV converts tesseract's TSV output into lines. Words sharing a
// block/paragraph/line triple are joined and their boxes unioned.
func parseTSV(out string) *extract.Source {
	type lineKey struct{ block, par, line int }

	var order []lineKey
	words := make(map[lineKey][]string)
	boxes := make(map[lineKey]extract.BBox)

	rows := strings.Split(out, "\n")
	for i, row := range rows {
		if i == 0 || strings.TrimSpace(row) == "" {
			continue
		}
		cols := strings.Split(row, "\t")
		if len(cols) < 12 {
			continue
		}
		level, _ := strconv.Atoi(cols[0])
		if level != 5 {
			continue
		}
		conf, _ := strconv.ParseFloat(cols[10], 64)
		text := strings.TrimSpace(cols[11])
		if conf < 0 || text == "" {
			continue
		}

		block, _ := strconv.Atoi(cols[2])
		par, _ := strconv.Atoi(cols[3])
		line, _ := strconv.Atoi(cols[4])
		left, _ := strconv.Atoi(cols[6])
		top, _ := strconv.Atoi(cols[7])
		width, _ := strconv.Atoi(cols[8])
		height, _ := strconv.Atoi(cols[9])

		key := lineKey{block, par, line}
		if _, seen := words[key]; !seen {
			order = append(order, key)
			boxes[key] = extract.BBox{left, top, left + width, top + height}
		} else {
			b := boxes[key]
			if left < b[0] {
				b[0] = left
			}
			if top < b[1] {
				b[1] = top
			}
			if left+width > b[2] {
				b[2] = left + width
			}
			if top+height > b[3] {
				b[3] = top + height
			}
			boxes[key] = b
		}
		words[key] = append(words[key], text)
	}

	src := &extract.Source{}
	for _, key := range order {
		src.Lines = append(src.Lines, extract.Line{
			Text:   strings.Join(words[key], " "),
			Box:    boxes[key],
			HasBox: true,
		})
	}
	return src
}
