// Package importer parses bulk question files for the admin console.
// Supported formats are CSV with a title,link,tags header and YAML with a
// top-level questions list.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/terra-clan/codeladder/internal/models"
)

// Format identifies an import file encoding
type Format string

const (
	FormatCSV  Format = "csv"
	FormatYAML Format = "yaml"
)

// ErrUnsupportedFormat is returned for files that are neither CSV nor YAML
var ErrUnsupportedFormat = errors.New("unsupported import format")

// Row is one parsed question with the line or entry number it came from.
// Err is set when the row is missing a required field.
type Row struct {
	Line     int                `json:"line"`
	Question models.NewQuestion `json:"question"`
	Err      error              `json:"-"`
}

// Batch is the parsed content of one import file
type Batch struct {
	Source string `json:"source"`
	Rows   []Row  `json:"rows"`
}

// Valid returns the questions of rows without errors, in file order
func (b *Batch) Valid() []models.NewQuestion {
	var out []models.NewQuestion
	for _, r := range b.Rows {
		if r.Err == nil {
			out = append(out, r.Question)
		}
	}
	return out
}

// Invalid returns the number of rows with errors
func (b *Batch) Invalid() int {
	n := 0
	for _, r := range b.Rows {
		if r.Err != nil {
			n++
		}
	}
	return n
}

// FormatOf picks the format from a file extension
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// LoadFromFile parses a single import file
func LoadFromFile(path string) (*Batch, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	batch, err := Parse(f, format)
	if err != nil {
		return nil, err
	}
	batch.Source = path

	slog.Info("import file parsed", "file", path, "rows", len(batch.Rows), "invalid", batch.Invalid())
	return batch, nil
}

// LoadFromDir parses every CSV and YAML file in dir. Files that fail to
// parse are logged and skipped.
func LoadFromDir(dir string) ([]*Batch, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var files []string
	for _, pattern := range []string{"*.csv", "*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			continue
		}
		files = append(files, matches...)
	}

	var batches []*Batch
	for _, file := range files {
		batch, err := LoadFromFile(file)
		if err != nil {
			slog.Warn("failed to parse import file", "file", file, "error", err)
			continue
		}
		batches = append(batches, batch)
	}

	slog.Info("import directory parsed", "dir", dir, "files", len(batches), "total_files", len(files))
	return batches, nil
}

// Parse reads an import stream of the given format
func Parse(r io.Reader, format Format) (*Batch, error) {
	switch format {
	case FormatCSV:
		return parseCSV(r)
	case FormatYAML:
		return parseYAML(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

func parseCSV(r io.Reader) (*Batch, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columns := map[string]int{}
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	if _, ok := columns["title"]; !ok {
		return nil, fmt.Errorf("CSV header must contain title, link and tags")
	}
	if _, ok := columns["link"]; !ok {
		return nil, fmt.Errorf("CSV header must contain title, link and tags")
	}

	field := func(record []string, name string) string {
		i, ok := columns[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	batch := &Batch{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse CSV: %w", err)
		}
		if blank(record) {
			continue
		}

		line, _ := reader.FieldPos(0)
		q := models.NewQuestion{
			Title: field(record, "title"),
			Link:  field(record, "link"),
			Tags:  models.ParseTags(field(record, "tags")),
		}
		batch.Rows = append(batch.Rows, Row{Line: line, Question: q, Err: validate(q)})
	}

	return batch, nil
}

func parseYAML(r io.Reader) (*Batch, error) {
	var qf questionsFile
	if err := yaml.NewDecoder(r).Decode(&qf); err != nil {
		if err == io.EOF {
			return &Batch{}, nil
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	batch := &Batch{}
	for i, entry := range qf.Questions {
		q := models.NewQuestion{
			Title: strings.TrimSpace(entry.Title),
			Link:  strings.TrimSpace(entry.Link),
			Tags:  []string(entry.Tags),
		}
		if q.Tags == nil {
			q.Tags = []string{}
		}
		batch.Rows = append(batch.Rows, Row{Line: i + 1, Question: q, Err: validate(q)})
	}

	return batch, nil
}

func validate(q models.NewQuestion) error {
	if q.Title == "" {
		return models.NewValidationError("title", "title is required")
	}
	if q.Link == "" {
		return models.NewValidationError("link", "link is required")
	}
	return nil
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// --- YAML file structs ---

// questionsFile represents the YAML structure of an import file
type questionsFile struct {
	Questions []questionEntry `yaml:"questions"`
}

type questionEntry struct {
	Title string  `yaml:"title"`
	Link  string  `yaml:"link"`
	Tags  tagList `yaml:"tags"`
}

// tagList accepts either a YAML sequence or a comma-separated string
type tagList []string

func (t *tagList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*t = models.ParseTags(node.Value)
		return nil
	case yaml.SequenceNode:
		var raw []string
		if err := node.Decode(&raw); err != nil {
			return err
		}
		tags := []string{}
		for _, tag := range raw {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
		*t = tags
		return nil
	default:
		return fmt.Errorf("tags must be a list or a comma-separated string")
	}
}
