// Package dispatch walks a source directory and runs each file through the
// extractor registered for its category, isolating per-file failures.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/domain"
	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/extract"
)

// Router resolves a category to its extractor. Implemented by extract.Registry.
type Router interface {
	Lookup(category domain.Category) (domain.Extractor, bool)
	Names() []string
}

// Deps holds dependencies for Dispatcher.
type Deps struct {
	Router      Router
	Workers     int
	FileTimeout time.Duration
	// MaxBytes returns the size limit for a category; zero disables the check.
	MaxBytes func(domain.Category) int64
	Logger   *slog.Logger
	Now      func() time.Time
}

// Dispatcher fans files out to extractors on a bounded pool.
type Dispatcher struct {
	router   Router
	workers  int
	timeout  time.Duration
	maxBytes func(domain.Category) int64
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Dispatcher. Workers below 1 run files one at a time.
func New(deps Deps) *Dispatcher {
	d := &Dispatcher{
		router:   deps.Router,
		workers:  deps.Workers,
		timeout:  deps.FileTimeout,
		maxBytes: deps.MaxBytes,
		logger:   deps.Logger,
		now:      deps.Now,
	}
	if d.workers < 1 {
		d.workers = 1
	}
	if d.maxBytes == nil {
		d.maxBytes = func(domain.Category) int64 { return 0 }
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d
}

// Extractors lists the registered extractor names.
func (d *Dispatcher) Extractors() []string {
	return d.router.Names()
}

// BatchResult is the report of one Run plus every file outcome, sorted by path.
type BatchResult struct {
	Report   domain.BatchReport
	Outcomes []domain.FileOutcome
}

// Results returns the extraction results of processed files, in path order.
func (b *BatchResult) Results() []*domain.ExtractionResult {
	var out []*domain.ExtractionResult
	for _, o := range b.Outcomes {
		if o.Status == domain.FileProcessed && o.Result != nil {
			out = append(out, o.Result)
		}
	}
	return out
}

// Run processes every regular file under sourceDir. A missing or unreadable
// source directory is the only error; per-file failures land in the report.
func (d *Dispatcher) Run(ctx context.Context, sourceDir string) (*BatchResult, error) {
	started := d.now()
	info, err := os.Stat(sourceDir)
	if err != nil {
		return nil, domain.ErrPath(sourceDir, err, "source directory not found")
	}
	if !info.IsDir() {
		return nil, domain.ErrPath(sourceDir, nil, "source is not a directory")
	}

	listing, err := ListFiles(sourceDir)
	if err != nil {
		return nil, domain.ErrPath(sourceDir, err, "cannot walk source directory")
	}
	paths := listing.Files
	d.logger.Info("batch started", "source_dir", sourceDir, "files", len(paths), "workers", d.workers)

	outcomes := make([]domain.FileOutcome, len(paths), len(paths)+len(listing.Unreadable))
	g := new(errgroup.Group)
	g.SetLimit(d.workers)
	for i, p := range paths {
		if ctx.Err() != nil {
			outcomes[i] = failed(p, extract.Detect(p), ctx.Err(), 0)
			continue
		}
		g.Go(func() error {
			outcomes[i] = d.ProcessOne(ctx, p)
			return nil
		})
	}
	_ = g.Wait()

	for _, u := range listing.Unreadable {
		d.logger.Error("entry not readable", "path", u.Path, "error", u.Err)
		outcomes = append(outcomes, failed(u.Path, extract.Detect(u.Path), domain.ErrPath(u.Path, u.Err, "cannot read"), 0))
	}
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Path < outcomes[j].Path })

	result := &BatchResult{
		Outcomes: outcomes,
		Report: domain.BatchReport{
			SourceDir:  sourceDir,
			StartedAt:  started,
			FinishedAt: d.now(),
			Extractors: d.router.Names(),
		},
	}
	for _, o := range outcomes {
		switch o.Status {
		case domain.FileProcessed:
			result.Report.Processed = append(result.Report.Processed, o.Path)
		case domain.FileUnsupported:
			result.Report.Unsupported = append(result.Report.Unsupported, o.Path)
		default:
			result.Report.Failed = append(result.Report.Failed, o.Path)
		}
	}
	d.logger.Info("batch finished",
		"processed", len(result.Report.Processed),
		"failed", len(result.Report.Failed),
		"unsupported", len(result.Report.Unsupported),
		"elapsed", result.Report.FinishedAt.Sub(started))
	return result, nil
}

// ProcessOne classifies and extracts a single file. It never panics and
// never returns an error: every failure is folded into the outcome.
func (d *Dispatcher) ProcessOne(ctx context.Context, path string) domain.FileOutcome {
	start := time.Now()
	category := extract.Detect(path)
	logger := d.logger.With("path", path, "category", category)

	if category == domain.CategoryUnsupported {
		logger.Info("file skipped: unsupported extension")
		return domain.FileOutcome{
			Path:     path,
			Category: category,
			Status:   domain.FileUnsupported,
			Kind:     domain.KindUnsupportedFormat,
			Error:    "extensão não suportada",
		}
	}
	extractor, ok := d.router.Lookup(category)
	if !ok {
		logger.Warn("no extractor registered")
		return domain.FileOutcome{
			Path:     path,
			Category: category,
			Status:   domain.FileUnsupported,
			Kind:     domain.KindUnsupportedFormat,
			Error:    "nenhum extrator registrado",
		}
	}

	res, err := d.extract(ctx, extractor, category, path)
	elapsed := time.Since(start)
	if err != nil {
		o := failed(path, category, err, elapsed)
		if o.Status == domain.FileUnsupported {
			logger.Info("file rejected", "reason", err)
		} else {
			logger.Error("extraction failed", "error", err, "kind", o.Kind)
		}
		return o
	}
	logger.Info("file processed", "method", res.Method, "elapsed", elapsed)
	return domain.FileOutcome{
		Path:     path,
		Category: category,
		Status:   domain.FileProcessed,
		Method:   res.Method,
		Duration: elapsed,
		Result:   res,
	}
}

type extractReply struct {
	res *domain.ExtractionResult
	err error
}

// extract runs one extractor under the per-file timeout. The extractor runs
// in its own goroutine so a backend that ignores cancellation cannot hold
// the worker past the deadline.
func (d *Dispatcher) extract(ctx context.Context, ex domain.Extractor, category domain.Category, path string) (*domain.ExtractionResult, error) {
	if limit := d.maxBytes(category); limit > 0 {
		info, err := os.Stat(path)
		if err != nil {
			return nil, domain.ErrPath(path, err, "cannot read file")
		}
		if info.Size() > limit {
			return nil, domain.ErrExtraction(path, nil, "file has %d bytes, limit for %s is %d", info.Size(), category, limit)
		}
	}

	fctx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	reply := make(chan extractReply, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				reply <- extractReply{err: domain.ErrExtraction(path, fmt.Errorf("panic: %v", rec), "extractor %s crashed", ex.Name())}
			}
		}()
		res, err := ex.Extract(fctx, path)
		reply <- extractReply{res: res, err: err}
	}()

	select {
	case r := <-reply:
		if r.err != nil {
			if errors.Is(r.err, context.DeadlineExceeded) {
				return nil, domain.ErrExtraction(path, r.err, "timed out after %s", d.timeout)
			}
			return nil, r.err
		}
		if r.res == nil || r.res.IsEmpty() {
			return nil, domain.ErrPartial(path, "no content recovered by primary or fallback strategy")
		}
		return r.res, nil
	case <-fctx.Done():
		if errors.Is(fctx.Err(), context.DeadlineExceeded) {
			return nil, domain.ErrExtraction(path, fctx.Err(), "timed out after %s", d.timeout)
		}
		return nil, fctx.Err()
	}
}

// failed maps err onto an outcome. Unsupported formats get their own bucket.
func failed(path string, category domain.Category, err error, elapsed time.Duration) domain.FileOutcome {
	o := domain.FileOutcome{
		Path:     path,
		Category: category,
		Status:   domain.FileFailed,
		Kind:     domain.KindOf(err),
		Error:    err.Error(),
		Duration: elapsed,
	}
	if o.Kind == domain.KindUnsupportedFormat {
		o.Status = domain.FileUnsupported
	}
	if o.Kind == "" {
		o.Kind = domain.KindExtraction
	}
	return o
}

// Unreadable is an entry below a source root that could not be listed.
type Unreadable struct {
	Path string
	Err  error
}

// Listing is the content of a source tree.
type Listing struct {
	// Files holds every regular file, sorted.
	Files []string
	// Unreadable holds subdirectories and files the walk could not read.
	// Their contents are skipped; the rest of the tree is still listed.
	Unreadable []Unreadable
}

// ListFiles walks root. Only an error on root itself is returned.
func ListFiles(root string) (*Listing, error) {
	return listFS(os.DirFS(root), root)
}

func listFS(fsys fs.FS, root string) (*Listing, error) {
	l := &Listing{}
	err := fs.WalkDir(fsys, ".", func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			if p == "." {
				return err
			}
			l.Unreadable = append(l.Unreadable, Unreadable{Path: filepath.Join(root, filepath.FromSlash(p)), Err: err})
			if entry != nil && entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if entry.Type().IsRegular() {
			l.Files = append(l.Files, filepath.Join(root, filepath.FromSlash(p)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(l.Files)
	return l, nil
}
