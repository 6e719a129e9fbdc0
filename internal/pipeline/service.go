// Package pipeline drives a run from raw files to the published datamart:
// scan, extract, normalize, optimize, write, consolidate, report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/datamart"
	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/dispatch"
	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/domain"
	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/extract"
	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/intermediate"
	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/normalize"
	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/optimize"
	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/publish"
)

// ErrBusy is returned when a run is requested while another is in progress.
var ErrBusy = errors.New("a pipeline run is already in progress")

// Batcher extracts files. Implemented by dispatch.Dispatcher.
type Batcher interface {
	Run(ctx context.Context, sourceDir string) (*dispatch.BatchResult, error)
	ProcessOne(ctx context.Context, path string) domain.FileOutcome
	Extractors() []string
}

// TableWriter persists one optimized table. Implemented by datamart.Writer.
type TableWriter interface {
	Write(ctx context.Context, t *domain.Table) (*domain.DatamartFile, error)
}

// Cataloger maintains the datamart catalog. Implemented by datamart.Consolidator.
type Cataloger interface {
	Consolidate(ctx context.Context, dir string) ([]domain.CatalogEntry, error)
	ReadCatalog(ctx context.Context, dir string) ([]domain.CatalogEntry, error)
}

// Deps holds dependencies for Service. Runs and Publisher are optional.
type Deps struct {
	Batcher      Batcher
	Intermediate *intermediate.Writer
	Normalizer   *normalize.Normalizer
	Optimizer    *optimize.Optimizer
	Writer       TableWriter
	Catalog      Cataloger
	Runs         domain.RunRepository
	Publisher    domain.DatamartPublisher
	RawDir       string
	DatamartDir  string
	Workers      int
	Logger       *slog.Logger
	Now          func() time.Time
	// OnState, when set, observes every state change.
	OnState func(State)
}

// Service runs the pipeline. At most one run executes at a time.
type Service struct {
	deps    Deps
	logger  *slog.Logger
	now     func() time.Time
	running atomic.Bool

	stateMu sync.RWMutex
	state   State
}

// NewService creates a Service in the Idle state.
func NewService(deps Deps) *Service {
	if deps.Workers < 1 {
		deps.Workers = 1
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Service{deps: deps, logger: deps.Logger, now: deps.Now, state: StateIdle}
}

// Options selects what a run does.
type Options struct {
	// Format of the intermediates written for each extracted file.
	Format intermediate.Format
	// BuildDatamart continues past extraction to the datamart and catalog.
	BuildDatamart bool
	// FromProcessed builds the datamart from structured intermediates instead
	// of extracting raw files. It falls back to extraction when none exist.
	FromProcessed bool
	// Trigger is recorded in the ledger; empty means manual.
	Trigger string
}

// RunResult is everything a run produced.
type RunResult struct {
	Run           *domain.Run            `json:"run,omitempty"`
	Batch         *dispatch.BatchResult  `json:"-"`
	Report        *domain.BatchReport    `json:"batch,omitempty"`
	Intermediates []string               `json:"intermediates,omitempty"`
	Files         []*domain.DatamartFile `json:"files,omitempty"`
	Catalog       []domain.CatalogEntry  `json:"catalog,omitempty"`
	Published     []string               `json:"published,omitempty"`
	Warnings      []string               `json:"warnings,omitempty"`
	Errors        []string               `json:"errors,omitempty"`
}

// State returns the current phase.
func (s *Service) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

func (s *Service) advance(to State) {
	s.stateMu.Lock()
	from := s.state
	s.state = to
	s.stateMu.Unlock()
	if !canAdvance(from, to) {
		s.logger.Error("unexpected state transition", "from", from, "to", to)
	}
	s.logger.Debug("pipeline state", "from", from, "to", to)
	if s.deps.OnState != nil {
		s.deps.OnState(to)
	}
}

// Run executes one pipeline run. Per-file extraction failures are reported
// in the result; only a missing source directory, a failed consolidation,
// a failed publish or failed dataset writes return an error, and the result
// is still returned alongside it whenever the run got past scanning.
func (s *Service) Run(ctx context.Context, opts Options) (*RunResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer s.running.Store(false)
	defer s.advance(StateIdle)

	if opts.Format == "" {
		opts.Format = intermediate.FormatStructured
	}
	res := &RunResult{}
	run := s.startRun(ctx, s.deps.RawDir, opts.Trigger)
	logger := s.logger
	if run != nil {
		logger = logger.With("run_id", run.ID)
	}

	err := s.execute(ctx, opts, res, logger)

	s.advance(StateReporting)
	res.Run = s.finishRun(ctx, run, res, err)
	if res.Batch != nil {
		res.Report = &res.Batch.Report
	}
	logger.Info("pipeline run finished",
		"datasets", len(res.Files),
		"warnings", len(res.Warnings),
		"errors", len(res.Errors),
		"ok", err == nil)
	if err != nil && res.Batch == nil && len(res.Files) == 0 {
		return nil, err
	}
	return res, err
}

func (s *Service) execute(ctx context.Context, opts Options, res *RunResult, logger *slog.Logger) error {
	s.advance(StateScanning)

	var inputs []normalize.Input
	extractRaw := !opts.FromProcessed
	if opts.FromProcessed {
		loaded, err := s.loadProcessed(res, logger)
		if err != nil {
			return err
		}
		if len(loaded) == 0 {
			logger.Info("no structured intermediates found, extracting raw files first",
				"processed_dir", s.deps.Intermediate.Dir())
			extractRaw = true
		}
		inputs = loaded
	}

	if extractRaw {
		info, err := os.Stat(s.deps.RawDir)
		if err != nil {
			return domain.ErrPath(s.deps.RawDir, err, "source directory not found")
		}
		if !info.IsDir() {
			return domain.ErrPath(s.deps.RawDir, nil, "source is not a directory")
		}

		s.advance(StateExtracting)
		batch, err := s.deps.Batcher.Run(ctx, s.deps.RawDir)
		if err != nil {
			return err
		}
		res.Batch = batch
		format := opts.Format
		if opts.BuildDatamart {
			// Later --from-processed builds read the structured form.
			format = intermediate.FormatStructured
		}
		results := batch.Results()
		stems := s.stems(results, res, logger)
		for _, r := range results {
			paths, err := s.deps.Intermediate.WriteAs(r, stems[r.Path], format)
			if err != nil {
				// The extraction is still in memory; the datamart keeps it.
				logger.Warn("intermediate not written", "path", r.Path, "error", err)
				res.Warnings = append(res.Warnings, fmt.Sprintf("intermediate for %s: %v", r.Path, err))
			}
			res.Intermediates = append(res.Intermediates, paths...)
			planned, err := normalize.PlanAs(r, stems[r.Path])
			if err != nil {
				res.Warnings = append(res.Warnings, fmt.Sprintf("plan %s: %v", r.Path, err))
				continue
			}
			inputs = append(inputs, planned...)
		}
	}

	if !opts.BuildDatamart {
		return nil
	}

	s.advance(StateNormalizing)
	datasets, err := s.deps.Normalizer.NormalizeAll(inputs)
	if err != nil {
		return err
	}
	for _, ds := range datasets {
		res.Warnings = append(res.Warnings, ds.Warnings...)
	}

	s.advance(StateOptimizing)
	tables := make([]*domain.Table, len(datasets))
	for i, ds := range datasets {
		tables[i] = s.deps.Optimizer.Optimize(ds)
	}

	s.advance(StateWriting)
	files, writeErr := s.writeAll(ctx, tables, logger)
	res.Files = files
	if writeErr != nil {
		res.Errors = append(res.Errors, writeErr.Error())
	}

	// The errgroup in writeAll has returned, so every write is on disk.
	s.advance(StateConsolidating)
	entries, err := s.deps.Catalog.Consolidate(ctx, s.deps.DatamartDir)
	if err != nil {
		return errors.Join(writeErr, fmt.Errorf("consolidate: %w", err))
	}
	res.Catalog = entries

	if s.deps.Publisher != nil {
		paths, err := datamart.ListDatasetFiles(s.deps.DatamartDir)
		if err == nil {
			paths = append(paths, filepath.Join(s.deps.DatamartDir, datamart.CatalogFile))
			res.Published, err = publish.Files(ctx, s.deps.Publisher, paths)
		}
		if err != nil {
			res.Errors = append(res.Errors, err.Error())
			return errors.Join(writeErr, err)
		}
		logger.Info("datamart published", "target", s.deps.Publisher.Target(), "files", len(res.Published))
	}
	return writeErr
}

// writeAll writes tables on a bounded pool and waits for all of them.
// Failed datasets are skipped and joined into the returned error.
func (s *Service) writeAll(ctx context.Context, tables []*domain.Table, logger *slog.Logger) ([]*domain.DatamartFile, error) {
	written := make([]*domain.DatamartFile, len(tables))
	errs := make([]error, len(tables))

	g := new(errgroup.Group)
	g.SetLimit(s.deps.Workers)
	for i, t := range tables {
		g.Go(func() error {
			f, err := s.deps.Writer.Write(ctx, t)
			if err != nil {
				logger.Error("dataset not written", "dataset", t.Name, "error", err)
				errs[i] = fmt.Errorf("dataset %s: %w", t.Name, err)
				return nil
			}
			written[i] = f
			return nil
		})
	}
	_ = g.Wait()

	files := make([]*domain.DatamartFile, 0, len(tables))
	for _, f := range written {
		if f != nil {
			files = append(files, f)
		}
	}
	return files, errors.Join(errs...)
}

// stems assigns collision-free output stems to results. Sources renamed
// because another file shares their name are reported as warnings.
func (s *Service) stems(results []*domain.ExtractionResult, res *RunResult, logger *slog.Logger) map[string]string {
	paths := make([]string, len(results))
	for i, r := range results {
		paths[i] = r.Path
	}
	stems := intermediate.Stems(paths)
	for _, p := range paths {
		if stem := stems[p]; stem != intermediate.Stem(p) {
			logger.Warn("source shares its name with another file", "path", p, "stem", stem)
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s shares its name with another source, written as %s", p, stem))
		}
	}
	return stems
}

// loadProcessed plans every structured intermediate in the processed
// directory. Unreadable files become warnings. When several intermediates
// describe the same source, the one named after its assigned stem is used.
func (s *Service) loadProcessed(res *RunResult, logger *slog.Logger) ([]normalize.Input, error) {
	paths, err := intermediate.ListStructured(s.deps.Intermediate.Dir())
	if err != nil {
		return nil, err
	}
	var sources []*intermediate.Source
	for _, p := range paths {
		src, err := intermediate.Load(p)
		if err != nil {
			logger.Warn("intermediate skipped", "path", p, "error", err)
			res.Warnings = append(res.Warnings, err.Error())
			continue
		}
		sources = append(sources, src)
	}

	var results []*domain.ExtractionResult
	bySource := make(map[string][]*intermediate.Source)
	for _, src := range sources {
		if src.Result == nil {
			continue
		}
		if _, ok := bySource[src.Result.Path]; !ok {
			results = append(results, src.Result)
		}
		bySource[src.Result.Path] = append(bySource[src.Result.Path], src)
	}
	stems := s.stems(results, res, logger)

	var inputs []normalize.Input
	for _, src := range sources {
		var (
			planned []normalize.Input
			err     error
		)
		if src.Result == nil {
			planned, err = normalize.PlanSource(src)
		} else {
			stem := stems[src.Result.Path]
			if !preferredIntermediate(src, bySource[src.Result.Path], stem) {
				logger.Warn("stale intermediate skipped", "path", src.Path, "source", src.Result.Path)
				res.Warnings = append(res.Warnings, fmt.Sprintf("%s skipped: superseded for source %s", src.Path, src.Result.Path))
				continue
			}
			planned, err = normalize.PlanAs(src.Result, stem)
		}
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("plan %s: %v", src.Path, err))
			continue
		}
		inputs = append(inputs, planned...)
	}
	return inputs, nil
}

// preferredIntermediate reports whether src is the one intermediate of its
// source to plan: the file named after stem, else the last one listed.
func preferredIntermediate(src *intermediate.Source, all []*intermediate.Source, stem string) bool {
	if len(all) == 1 {
		return true
	}
	want := stem + intermediate.SuffixStructured
	for _, o := range all {
		if filepath.Base(o.Path) == want {
			return o == src
		}
	}
	return all[len(all)-1] == src
}

// FileResult is the outcome of processing a single file.
type FileResult struct {
	Outcome       domain.FileOutcome `json:"outcome"`
	Intermediates []string           `json:"intermediates,omitempty"`
}

// ProcessFile extracts one file and writes its intermediates in format.
// Extraction failures are reported in the outcome, not as an error.
func (s *Service) ProcessFile(ctx context.Context, path string, format intermediate.Format) (*FileResult, error) {
	if format == "" {
		format = intermediate.FormatStructured
	}
	run := s.startRun(ctx, path, domain.TriggerManual)

	out := &FileResult{Outcome: s.deps.Batcher.ProcessOne(ctx, path)}
	var err error
	if out.Outcome.Status == domain.FileProcessed {
		out.Intermediates, err = s.deps.Intermediate.Write(out.Outcome.Result, format)
	}

	batch := &dispatch.BatchResult{Outcomes: []domain.FileOutcome{out.Outcome}}
	switch out.Outcome.Status {
	case domain.FileProcessed:
		batch.Report.Processed = []string{path}
	case domain.FileUnsupported:
		batch.Report.Unsupported = []string{path}
	default:
		batch.Report.Failed = []string{path}
	}
	s.finishRun(ctx, run, &RunResult{Batch: batch}, err)
	if err != nil {
		return out, fmt.Errorf("write intermediates: %w", err)
	}
	return out, nil
}

// Status describes the directories, extractors and pending raw files.
type Status struct {
	RawDir       string                       `json:"raw_dir"`
	ProcessedDir string                       `json:"processed_dir"`
	DatamartDir  string                       `json:"datamart_dir"`
	Extractors   []string                     `json:"extractors"`
	Files        map[domain.Category][]string `json:"files"`
	State        State                        `json:"state"`
	LatestRun    *domain.Run                  `json:"latest_run,omitempty"`
}

// Status reports what a run would see right now. A missing raw directory
// yields no files.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	st := &Status{
		RawDir:       s.deps.RawDir,
		ProcessedDir: s.deps.Intermediate.Dir(),
		DatamartDir:  s.deps.DatamartDir,
		Extractors:   s.deps.Batcher.Extractors(),
		Files:        map[domain.Category][]string{},
		State:        s.State(),
	}
	listing, err := dispatch.ListFiles(s.deps.RawDir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		listing = &dispatch.Listing{}
	case err != nil:
		return nil, domain.ErrPath(s.deps.RawDir, err, "cannot list source directory")
	}
	for _, u := range listing.Unreadable {
		s.logger.Warn("entry not readable", "path", u.Path, "error", u.Err)
	}
	for _, p := range listing.Files {
		c := extract.Detect(p)
		st.Files[c] = append(st.Files[c], p)
	}
	if s.deps.Runs != nil {
		latest, err := s.deps.Runs.LatestRun(ctx)
		var nf *domain.NotFoundError
		switch {
		case err == nil:
			st.LatestRun = latest
		case !errors.As(err, &nf):
			s.logger.Warn("latest run unavailable", "error", err)
		}
	}
	return st, nil
}

// DatamartReport summarizes the datamart as recorded in its catalog.
type DatamartReport struct {
	Dir         string                `json:"dir"`
	GeneratedAt time.Time             `json:"generated_at"`
	Entries     []domain.CatalogEntry `json:"datasets"`
	TotalRows   int64                 `json:"total_rows"`
	TotalSizeMB float64               `json:"total_size_mb"`
}

// Report reads the catalog, consolidating first when none exists yet.
func (s *Service) Report(ctx context.Context) (*DatamartReport, error) {
	entries, err := s.deps.Catalog.ReadCatalog(ctx, s.deps.DatamartDir)
	var nf *domain.NotFoundError
	if errors.As(err, &nf) {
		entries, err = s.deps.Catalog.Consolidate(ctx, s.deps.DatamartDir)
	}
	if err != nil {
		return nil, err
	}
	r := &DatamartReport{Dir: s.deps.DatamartDir, GeneratedAt: s.now(), Entries: entries}
	for _, e := range entries {
		r.TotalRows += e.Rows
		r.TotalSizeMB += e.SizeMB
	}
	return r, nil
}

// Catalog returns the current catalog without consolidating.
func (s *Service) Catalog(ctx context.Context) ([]domain.CatalogEntry, error) {
	return s.deps.Catalog.ReadCatalog(ctx, s.deps.DatamartDir)
}

func (s *Service) startRun(ctx context.Context, source, trigger string) *domain.Run {
	if s.deps.Runs == nil {
		return nil
	}
	if trigger == "" {
		trigger = domain.TriggerManual
	}
	run, err := s.deps.Runs.CreateRun(ctx, &domain.Run{
		SourceDir:   source,
		TriggerType: trigger,
		StartedAt:   s.now(),
	})
	if err != nil {
		s.logger.Warn("run not recorded", "error", err)
		return nil
	}
	return run
}

func (s *Service) finishRun(ctx context.Context, run *domain.Run, res *RunResult, runErr error) *domain.Run {
	if run == nil {
		return nil
	}
	// Record the outcome even when the run was cancelled.
	ctx = context.WithoutCancel(ctx)

	finished := s.now()
	run.FinishedAt = &finished
	run.Status = domain.RunSucceeded
	if runErr != nil {
		run.Status = domain.RunFailed
		msg := runErr.Error()
		run.ErrorMessage = &msg
	}
	run.Datasets = len(res.Files)
	if res.Batch != nil {
		run.Processed = len(res.Batch.Report.Processed)
		run.Failed = len(res.Batch.Report.Failed)
		run.Unsupported = len(res.Batch.Report.Unsupported)

		files := make([]domain.RunFile, len(res.Batch.Outcomes))
		for i, o := range res.Batch.Outcomes {
			files[i] = domain.RunFile{
				RunID:      run.ID,
				Path:       o.Path,
				Category:   o.Category,
				Status:     o.Status,
				Method:     o.Method,
				ErrorKind:  o.Kind,
				Error:      o.Error,
				DurationMS: o.Duration.Milliseconds(),
			}
		}
		if err := s.deps.Runs.AddFiles(ctx, run.ID, files); err != nil {
			s.logger.Warn("run files not recorded", "run_id", run.ID, "error", err)
		}
	}
	if err := s.deps.Runs.FinishRun(ctx, run); err != nil {
		s.logger.Warn("run outcome not recorded", "run_id", run.ID, "error", err)
	}
	return run
}
