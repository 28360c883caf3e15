package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/qgenlab/qgen/internal/config"
	"github.com/qgenlab/qgen/internal/generator"
	"github.com/qgenlab/qgen/internal/model"
	"github.com/qgenlab/qgen/internal/output"
	"github.com/qgenlab/qgen/internal/prompt"
	"github.com/qgenlab/qgen/internal/source"
	"github.com/qgenlab/qgen/internal/store"
)

const notifyTimeout = 30 * time.Second

// pipeline runs one generation request end to end: load references,
// generate, save, notify.
type pipeline struct {
	cfg      *config.Config
	gen      *generator.Generator
	csvLog   *store.CSVLog // nil when the CSV token log is off
	pdf      *output.PDFRenderer
	notifier model.Notifier
	logger   *slog.Logger
	strict   bool // missing reference files are errors
	noPDF    bool
	dryRun   bool // print results instead of saving them
	shared   bool // concurrent runs: keep one CSV token log
}

// run executes mode for p. The returned document is what was saved as the
// run's main result.
func (pl *pipeline) run(ctx context.Context, mode string, p model.GenerationParams) (any, model.RunSummary, error) {
	dir := output.RunDir(pl.cfg.Paths.ResultsDir, p.Subject, p.OutputFolder)
	if pl.csvLog != nil && pl.cfg.UsageLog.CSVPath == "" {
		if pl.shared {
			pl.csvLog.SetPath(filepath.Join(pl.cfg.Paths.ResultsDir, store.TokenLogFile))
		} else {
			pl.csvLog.SetPath(filepath.Join(dir, store.TokenLogFile))
		}
	}

	var (
		doc     any
		summary model.RunSummary
		err     error
	)
	switch mode {
	case generator.ModeSingle:
		doc, summary, err = pl.single(ctx, p, dir)
	case generator.ModeChain:
		doc, summary, err = pl.chain(ctx, p, dir)
	case generator.ModeRubric:
		doc, summary, err = pl.rubric(ctx, p, dir)
	default:
		return nil, model.RunSummary{}, fmt.Errorf("unknown mode %q (want single, chain or rubric)", mode)
	}
	if err != nil && doc == nil {
		return nil, summary, err
	}

	if !pl.dryRun {
		summary.OutputPath = dir
	}
	if nerr := pl.notifier.Notify(summary); nerr != nil {
		pl.logger.Warn("notification failed", "error", nerr)
	}
	return doc, summary, err
}

func (pl *pipeline) library(p model.GenerationParams) (*source.Library, error) {
	return source.LoadSubject(pl.cfg.Paths.DataDir, p.Subject, pl.strict, pl.logger)
}

func (pl *pipeline) single(ctx context.Context, p model.GenerationParams, dir string) (any, model.RunSummary, error) {
	lib, err := pl.library(p)
	if err != nil {
		return nil, model.RunSummary{}, err
	}
	res, err := pl.gen.Single(ctx, p, lib)
	if err != nil {
		return nil, model.RunSummary{}, err
	}

	if err := pl.save(filepath.Join(dir, output.ResultsFile), res.Value); err != nil {
		return nil, res.Summary, err
	}
	if res.Groups != nil {
		pl.renderQA(filepath.Join(dir, output.QAPDFFile), p, res.Groups)
	}
	return res.Value, res.Summary, nil
}

func (pl *pipeline) chain(ctx context.Context, p model.GenerationParams, dir string) (any, model.RunSummary, error) {
	lib, err := pl.library(p)
	if err != nil {
		return nil, model.RunSummary{}, err
	}
	res, runErr := pl.gen.Chained(ctx, p, lib)
	if res == nil {
		return nil, model.RunSummary{}, runErr
	}
	if runErr != nil {
		pl.logger.Warn("run interrupted, saving partial results", "generated", res.Summary.Generated, "error", runErr)
	}

	if err := pl.save(filepath.Join(dir, output.QuestionsFile), res.Questions); err != nil {
		return nil, res.Summary, err
	}
	docFile := res.Document()
	if err := pl.save(filepath.Join(dir, output.ResultsFile), docFile); err != nil {
		return nil, res.Summary, err
	}
	pl.renderQA(filepath.Join(dir, output.QAPDFFile), p, res.Output)
	return docFile, res.Summary, runErr
}

func (pl *pipeline) rubric(ctx context.Context, p model.GenerationParams, dir string) (any, model.RunSummary, error) {
	var refs prompt.References
	for _, r := range []struct {
		path string
		dst  *string
	}{
		{p.CurriculumFile, &refs.Curriculum},
		{p.SelfAssessmentFile, &refs.SelfAssessment},
		{p.ReferenceFile, &refs.Reference},
	} {
		path := pl.cfg.Paths.Resolve(r.path)
		text, err := source.ReadReference(path)
		if errors.Is(err, fs.ErrNotExist) && !pl.strict {
			pl.logger.Warn("reference file not found, continuing without it", "path", path)
			text, err = "", nil
		}
		if err != nil {
			return nil, model.RunSummary{}, err
		}
		*r.dst = text
	}

	res, err := pl.gen.Rubric(ctx, p, refs)
	if err != nil {
		return nil, model.RunSummary{}, err
	}

	if pl.dryRun {
		fmt.Println(res.Markdown)
		return res.Questions, res.Summary, nil
	}
	if err := output.WriteFile(filepath.Join(dir, output.RubricMDFile), []byte(res.Markdown)); err != nil {
		return nil, res.Summary, err
	}
	if err := output.WriteRubricCSV(filepath.Join(dir, output.RubricCSVFile), res.Questions); err != nil {
		return nil, res.Summary, err
	}
	if !pl.noPDF {
		if err := pl.pdf.RenderRubric(filepath.Join(dir, output.RubricPDFFile), p, res.Questions); err != nil {
			pl.logger.Warn("rubric PDF export failed", "error", err)
		}
	}
	pl.logger.Info("rubric saved", "dir", dir, "questions", len(res.Questions))
	return res.Questions, res.Summary, nil
}

// save writes v as JSON, or prints it in dry-run mode.
func (pl *pipeline) save(path string, v any) error {
	if pl.dryRun {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
		}
		fmt.Fprintf(os.Stdout, "# %s\n%s\n", filepath.Base(path), data)
		return nil
	}
	if err := output.WriteJSON(path, v); err != nil {
		return err
	}
	pl.logger.Info("results saved", "path", path)
	return nil
}

// renderQA exports the question sheet. A PDF failure never fails the run.
func (pl *pipeline) renderQA(path string, p model.GenerationParams, groups model.QAGroups) {
	if pl.dryRun || pl.noPDF || groups.Total() == 0 {
		return
	}
	if err := pl.pdf.RenderQA(path, p, groups); err != nil {
		pl.logger.Warn("PDF export failed", "path", path, "error", err)
	}
}
