// Package extractor scrapes synthesis reports into metrics records.
package extractor

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/lirany1/synth-report/pkg/logger"
	"github.com/lirany1/synth-report/pkg/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	// ErrReportNotFound is returned when no candidate report exists.
	ErrReportNotFound = errors.New("report not found")

	// ErrUnparseableField marks a line that matched a trigger but had no
	// usable number. It is reported as a warning only.
	ErrUnparseableField = errors.New("unparseable field")
)

const maxLineSize = 1024 * 1024

// Extractor applies a rule table to report text
type Extractor struct {
	rules []compiledRule
}

// Result is one extraction: the record plus any field-level warnings
type Result struct {
	Record   models.MetricsRecord
	Source   string
	Warnings []error
}

// New compiles a rule table. An empty table selects DefaultRules.
func New(rules []Rule) (*Extractor, error) {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	compiled := make([]compiledRule, 0, len(rules))
	for i, r := range rules {
		cr, err := compileRule(r)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		compiled = append(compiled, cr)
	}
	return &Extractor{rules: compiled}, nil
}

// Default returns an extractor using DefaultRules
func Default() *Extractor {
	e, err := New(nil)
	if err != nil {
		panic(err)
	}
	return e
}

// Parse reads report text line by line and fills a record for module.
// Only read errors are returned; missing or unparseable fields are not errors.
func (e *Extractor) Parse(r io.Reader, module string) (*Result, error) {
	if module == "" {
		return nil, errors.New("module name is required")
	}

	res := &Result{Record: models.NewRecord(module)}

	br := bufio.NewReaderSize(transform.NewReader(r, unicode.UTF8.NewDecoder()), 64*1024)

	for lineNo := 1; ; lineNo++ {
		line, tooLong, err := readLine(br)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read report: %w", err)
		}
		if tooLong {
			logger.Debugf("Skipping line %d of %s report: longer than %d bytes", lineNo, module, maxLineSize)
			continue
		}

		rule, ok := e.claim(line)
		if !ok || res.Record.Has(rule.Field) {
			continue
		}

		raw := rule.value(line)
		if raw == "" {
			res.warn(module, rule.Field, lineNo, fmt.Errorf("%w: %s on line %d", ErrUnparseableField, rule.Field, lineNo))
			continue
		}
		if err := res.Record.SetString(rule.Field, raw); err != nil {
			res.warn(module, rule.Field, lineNo, fmt.Errorf("%w: %v", ErrUnparseableField, err))
		}
	}

	logger.Debugf("Extracted %d/%d metrics for %s", res.Record.Present(), len(models.Metrics), module)
	return res, nil
}

// readLine returns the next line without its line ending. A line longer
// than maxLineSize is consumed but not buffered, and reported as too long.
// io.EOF is returned only when no bytes were left.
func readLine(br *bufio.Reader) (string, bool, error) {
	var (
		buf           []byte
		read, tooLong bool
	)
	for {
		chunk, err := br.ReadSlice('\n')
		read = read || len(chunk) > 0
		if !tooLong {
			buf = append(buf, chunk...)
			if len(buf) > maxLineSize+2 {
				tooLong, buf = true, nil
			}
		}

		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if !read {
				return "", false, io.EOF
			}
		case err != nil:
			return "", false, err
		}
		line := strings.TrimRight(string(buf), "\r\n")
		if tooLong || len(line) > maxLineSize {
			return "", true, nil
		}
		return line, false, nil
	}
}

// ParseFile extracts metrics from the report at path
func (e *Extractor) ParseFile(path, module string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrReportNotFound, path)
		}
		return nil, fmt.Errorf("open report: %w", err)
	}
	defer f.Close()

	res, err := e.Parse(f, module)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	res.Source = path
	return res, nil
}

// ParseFirst locates the first existing candidate and extracts it
func (e *Extractor) ParseFirst(candidates []string, module string) (*Result, error) {
	path, err := Locate(candidates)
	if err != nil {
		return nil, err
	}
	logger.Infof("Reading report %s", path)
	return e.ParseFile(path, module)
}

// Locate returns the first candidate path that exists as a regular file.
func Locate(candidates []string) (string, error) {
	for _, path := range candidates {
		if path == "" {
			continue
		}
		info, err := os.Stat(path)
		if err == nil && info.Mode().IsRegular() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: tried %v", ErrReportNotFound, candidates)
}

// claim returns the first rule triggered by line
func (e *Extractor) claim(line string) (compiledRule, bool) {
	for _, r := range e.rules {
		if r.matches(line) {
			return r, true
		}
	}
	return compiledRule{}, false
}

func (res *Result) warn(module string, field models.MetricName, line int, err error) {
	res.Warnings = append(res.Warnings, err)
	logger.WithFields(logrus.Fields{
		"module": module,
		"metric": field,
		"line":   line,
	}).Warn(err)
}
