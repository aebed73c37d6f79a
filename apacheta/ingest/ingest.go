package ingest

import (
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/yanantin/apacheta"
	"github.com/teranos/yanantin/contentaddr"
	"github.com/teranos/yanantin/errors"
	"github.com/teranos/yanantin/logger"
	"github.com/teranos/yanantin/sym"
)

// Processor ingests tensor markdown into a store.
type Processor struct {
	store  apacheta.TensorStore
	parser Parser
	dryRun bool
	index  *contentaddr.ContentIndex
	logger *zap.SugaredLogger
}

// FileResult is the outcome for one file.
type FileResult struct {
	Path        string   `json:"path"`
	Name        string   `json:"name,omitempty"`
	TensorID    string   `json:"tensor_id,omitempty"`
	ContentHash string   `json:"content_hash"`
	Strands     int      `json:"strands"`
	Claims      int      `json:"claims"`
	Status      string   `json:"status"`
	Error       string   `json:"error,omitempty"`
	Inferred    []string `json:"inferred,omitempty"`
}

// File statuses.
const (
	StatusStored    = "stored"
	StatusExisting  = "existing"
	StatusDuplicate = "duplicate"
	StatusFailed    = "failed"
	StatusDryRun    = "dry_run"
)

// DirectoryResult summarises one directory ingest.
type DirectoryResult struct {
	Root      string       `json:"root"`
	DryRun    bool         `json:"dry_run"`
	Stored    int          `json:"stored"`
	Existing  int          `json:"existing"`
	Duplicate int          `json:"duplicate"`
	Failed    int          `json:"failed"`
	Files     []FileResult `json:"files"`
	StartTime time.Time    `json:"start_time"`
	EndTime   time.Time    `json:"end_time"`
}

// NewProcessor creates a processor writing to store. With dryRun set,
// files are parsed and reported but nothing is written.
func NewProcessor(store apacheta.TensorStore, dryRun bool, log *zap.SugaredLogger) *Processor {
	return &Processor{
		store:  store,
		dryRun: dryRun,
		index:  contentaddr.NewContentIndex(),
		logger: logger.OrNop(log).Named("ingest"),
	}
}

// WithNow fixes the clock used for files without a dated table entry.
func (p *Processor) WithNow(now func() time.Time) *Processor {
	p.parser.Now = now
	return p
}

// IngestFile parses and stores one file.
func (p *Processor) IngestFile(path string) FileResult {
	res := FileResult{Path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		res.Status, res.Error = StatusFailed, err.Error()
		return res
	}
	text := string(data)

	if p.index.HasContent(text) {
		res.ContentHash = contentaddr.ContentHash(text)
		res.Status = StatusDuplicate
		p.logger.Infow(sym.Tensor+" duplicate content skipped",
			logger.FieldFile, path, "same_as", p.index.Lookup(res.ContentHash))
		p.index.Register(path, text)
		return res
	}
	p.index.Register(path, text)

	parsed := p.parser.Parse(filepath.Base(path), text)
	res.Name = parsed.Name
	res.TensorID = parsed.Tensor.ID.String()
	res.ContentHash = parsed.ContentHash
	res.Strands = len(parsed.Tensor.Strands)
	res.Claims = len(parsed.Tensor.Claims())
	res.Inferred = parsed.Inferred

	if p.dryRun {
		res.Status = StatusDryRun
		return res
	}
	switch err := p.store.StoreTensor(parsed.Tensor); {
	case err == nil:
		res.Status = StatusStored
		p.logger.Infow(sym.Tensor+" stored",
			logger.FieldFile, path,
			logger.FieldTensorID, res.TensorID,
			logger.FieldCount, res.Strands)
	case errors.IsImmutable(err):
		res.Status = StatusExisting
	default:
		res.Status, res.Error = StatusFailed, err.Error()
		p.logger.Warnw(sym.Tensor+" store failed", logger.FieldFile, path, logger.FieldError, err)
	}
	return res
}

// IngestDirectory ingests every markdown file under root. Per-file failures
// are recorded in the result; only an unreadable root is an error.
func (p *Processor) IngestDirectory(root string) (*DirectoryResult, error) {
	result := &DirectoryResult{Root: root, DryRun: p.dryRun, StartTime: time.Now(), Files: []FileResult{}}
	files, err := contentaddr.MarkdownFiles(root)
	if err != nil {
		return nil, errors.Wrapf(err, "list tensors under %s", root)
	}
	for _, path := range files {
		res := p.IngestFile(path)
		switch res.Status {
		case StatusStored, StatusDryRun:
			result.Stored++
		case StatusExisting:
			result.Existing++
		case StatusDuplicate:
			result.Duplicate++
		case StatusFailed:
			result.Failed++
		}
		result.Files = append(result.Files, res)
	}
	result.EndTime = time.Now()
	p.logger.Infow(sym.Tensor+" directory ingested",
		logger.FieldPath, root,
		"stored", result.Stored,
		"existing", result.Existing,
		"duplicate", result.Duplicate,
		"failed", result.Failed)
	return result, nil
}
