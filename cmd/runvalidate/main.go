package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/omerfdemir/docvalidator/constants"
	"github.com/omerfdemir/docvalidator/internal/common"
	"github.com/omerfdemir/docvalidator/internal/extract"
	"github.com/omerfdemir/docvalidator/internal/job"
	"github.com/omerfdemir/docvalidator/internal/llm/anthropic"
	"github.com/omerfdemir/docvalidator/internal/match"
	"github.com/omerfdemir/docvalidator/internal/repository"
	"github.com/omerfdemir/docvalidator/internal/resilience"
	"github.com/omerfdemir/docvalidator/internal/server"
	"github.com/omerfdemir/docvalidator/internal/sigdetect"
)

// runvalidate validates one local file against a template and prints the
// result as JSON. It runs the whole pipeline in process with the
// in-memory stores; no daemon or database needed.
func main() {
	var (
		templateID = flag.String("template", "", "template id (see -list)")
		list       = flag.Bool("list", false, "list built-in templates and exit")
		timeout    = flag.Duration("timeout", 3*time.Minute, "overall timeout")
		noLLM      = flag.Bool("no-llm", false, "skip the semantic analysis step (deterministic matching only)")
	)
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer func() { _ = logger.Sync() }()
	log := logger.Sugar()

	if *list {
		for _, t := range repository.BuiltinTemplates() {
			fmt.Printf("%-20s %s (%d fields)\n", t.ID, t.Name, len(t.Fields))
		}
		return
	}

	if flag.NArg() != 1 || *templateID == "" {
		fmt.Fprintln(os.Stderr, "usage: runvalidate -template <id> [-no-llm] <file>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	ext := constants.NormalizeExt(filepath.Ext(path))
	format := constants.MapExtToFormat(ext)
	if format == "" {
		log.Fatalf("unsupported file extension %q", ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read file: %v", err)
	}

	cfg := common.LoadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	jobs := repository.NewMemoryJobStore()
	templates := repository.NewMemoryTemplateStore()
	if err := repository.SeedTemplates(ctx, templates); err != nil {
		log.Fatalf("seed templates: %v", err)
	}

	engine := extract.NewExtractor(extract.Config{
		Pdftotext:        cfg.Extract.Pdftotext,
		Pdftoppm:         cfg.Extract.Pdftoppm,
		Tesseract:        cfg.Extract.Tesseract,
		TesseractLang:    cfg.Extract.TesseractLang,
		TessdataDir:      cfg.Extract.TessdataDir,
		DPI:              cfg.Extract.DPI,
		MaxPages:         cfg.Extract.MaxPages,
		ArtifactCacheDir: cfg.Extract.ArtifactCacheDir,
	}, logger)

	var matcher *match.Matcher
	if *noLLM || cfg.Anthropic.APIKey == "" {
		log.Infow("semantic analysis disabled, deterministic matching only")
		matcher = match.NewMatcher(nil, logger)
	} else {
		analyzer := anthropic.NewAnalyzer(anthropic.Config{
			APIKey:      cfg.Anthropic.APIKey,
			Model:       cfg.Anthropic.Model,
			MaxTokens:   cfg.Anthropic.MaxTokens,
			Temperature: cfg.Anthropic.Temperature,
		}, logger)
		matcher = match.NewMatcher(analyzer, logger)
	}

	orch := job.NewOrchestrator(jobs, templates, engine, matcher, sigdetect.NewDetector(logger),
		job.OrchestratorConfig{
			Retry:          resilience.DefaultRetryConfig(),
			ExtractTimeout: cfg.Extract.CallTimeout,
		}, logger)
	queue := job.NewQueue(orch, logger, job.WithWorkers(1))

	poll := server.NewPollService(jobs, templates, queue, logger)
	start, err := poll.Start(ctx, server.StartRequest{
		DocumentID: filepath.Base(path),
		TemplateID: *templateID,
		Data:       data,
		Format:     format,
	})
	if err != nil {
		log.Fatalf("start validation: %v", err)
	}
	log.Infow("validation started", "job_id", start.JobID)

	// Poll until terminal, the way a remote caller would.
	for {
		select {
		case <-ctx.Done():
			log.Fatalf("timed out waiting for result")
		case <-time.After(500 * time.Millisecond):
		}

		st, err := poll.Status(ctx, filepath.Base(path))
		if err != nil {
			log.Fatalf("status: %v", err)
		}
		log.Infow("progress", "status", st.Status, "estimate", st.ProgressEstimate, "message", st.Message)
		if st.Status == string(constants.JobStatusCompleted) || st.Status == string(constants.JobStatusFailed) {
			break
		}
	}

	result, err := poll.Result(ctx, filepath.Base(path))
	if err != nil {
		log.Fatalf("result: %v", err)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("encode result: %v", err)
	}
	fmt.Println(string(out))

	queue.Shutdown(ctx)
}
