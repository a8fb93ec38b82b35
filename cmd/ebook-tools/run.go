package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fifosk/ebook-tools-sub003/internal/chunks"
	"github.com/fifosk/ebook-tools-sub003/internal/config"
	"github.com/fifosk/ebook-tools-sub003/internal/googletrans"
	"github.com/fifosk/ebook-tools-sub003/internal/ingest"
	"github.com/fifosk/ebook-tools-sub003/internal/jobs"
	"github.com/fifosk/ebook-tools-sub003/internal/language"
	"github.com/fifosk/ebook-tools-sub003/internal/llm"
	"github.com/fifosk/ebook-tools-sub003/internal/logger"
	"github.com/fifosk/ebook-tools-sub003/internal/media"
	"github.com/fifosk/ebook-tools-sub003/internal/pipeline"
	"github.com/fifosk/ebook-tools-sub003/internal/pool"
	"github.com/fifosk/ebook-tools-sub003/internal/progress"
	"github.com/fifosk/ebook-tools-sub003/internal/runtime"
	"github.com/fifosk/ebook-tools-sub003/internal/translit"
)

type runOptions struct {
	configPath string
	sourceLang string
	targets    []string
	owner      string

	provider  string
	model     string
	workers   int
	queueSize int
	batchSize int

	outputDir  string
	workingDir string
	tmpDir     string
	baseName   string

	voice        string
	readingSpeed int
	tempo        float64

	transliteration bool
	noAudio         bool
	noVideo         bool
	debug           bool
	logFilePath     string
}

func newRunCmd() *cobra.Command {
	opts := runOptions{}
	cmd := &cobra.Command{
		Use:   "run <input file>",
		Short: "Translate a book or subtitle file and export batched artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.Context(), args[0], &opts)
		},
		SilenceUsage: true,
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", defaultConfigPath(), "config file path")
	f.StringVarP(&opts.sourceLang, "source", "s", "en", "source language code")
	f.StringSliceVarP(&opts.targets, "targets", "t", nil, "target language codes, assigned round-robin (required)")
	f.StringVar(&opts.owner, "owner", currentUser(), "job owner recorded in the job store")
	f.StringVar(&opts.provider, "provider", "", "translation provider (llm|googletrans)")
	f.StringVar(&opts.model, "model", "", "LLM model tag override")
	f.IntVar(&opts.workers, "workers", 0, "worker pool size override")
	f.IntVar(&opts.queueSize, "queue-size", 0, "stage queue capacity override")
	f.IntVar(&opts.batchSize, "batch-size", 0, "LLM batch size (<2 disables batching)")
	f.StringVarP(&opts.outputDir, "output-dir", "o", "", "artifact output directory")
	f.StringVar(&opts.workingDir, "working-dir", "", "working directory override")
	f.StringVar(&opts.tmpDir, "tmp-dir", "", "scratch directory override")
	f.StringVar(&opts.baseName, "base-name", "", "artifact base name (default: input stem)")
	f.StringVar(&opts.voice, "voice", "", "TTS voice override (default: derived from target language)")
	f.IntVar(&opts.readingSpeed, "reading-speed", 0, "TTS reading speed in words per minute")
	f.Float64Var(&opts.tempo, "tempo", 1.0, "audio tempo factor, 0.5 to 2.0")
	f.BoolVar(&opts.transliteration, "transliteration", false, "include Latin transliterations")
	f.BoolVar(&opts.noAudio, "no-audio", false, "skip audio synthesis")
	f.BoolVar(&opts.noVideo, "no-video", false, "skip video rendering")
	f.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	f.StringVar(&opts.logFilePath, "log-file", "", "also write JSONL logs to this file")
	_ = cmd.MarkFlagRequired("targets")
	return cmd
}

func runPipeline(ctx context.Context, inputPath string, opts *runOptions) error {
	if err := initLogging(opts.debug, opts.logFilePath); err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.transliteration {
		cfg.IncludeTransliteration = true
	}
	if opts.noAudio {
		cfg.GenerateAudio = false
	}
	if opts.noVideo {
		cfg.GenerateVideo = false
	}
	if opts.provider != "" {
		cfg.TranslationProvider = opts.provider
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	rc, err := runtime.NewContext(cfg, runtime.Overrides{
		WorkingDir:  opts.workingDir,
		OutputDir:   opts.outputDir,
		TmpDir:      opts.tmpDir,
		OllamaModel: opts.model,
		ThreadCount: opts.workers,
		QueueSize:   opts.queueSize,
		BatchSize:   opts.batchSize,
	})
	if err != nil {
		return err
	}
	scratch, err := runtime.NewScratch(rc, runtime.DefaultScratchBytes)
	if err != nil {
		return err
	}
	defer scratch.Teardown()

	sourceLang, ok := language.Resolve(opts.sourceLang)
	if !ok {
		return fmt.Errorf("unknown source language %q", opts.sourceLang)
	}
	targets, err := resolveTargets(opts.targets)
	if err != nil {
		return err
	}

	src, err := ingest.ForFile(inputPath)
	if err != nil {
		return err
	}
	texts, err := src.Sentences(ctx)
	if err != nil {
		return err
	}
	if len(texts) == 0 {
		return fmt.Errorf("no sentences found in %s", inputPath)
	}
	sentences := pipeline.AssignTargets(texts, targets)
	logger.Info("Input ingested", "source", src.Name(), "sentences", len(texts), "targets", targets)

	store, err := jobs.NewStore(jobsDir(cfg, rc), cfg.JobMaxWorkers)
	if err != nil {
		return err
	}
	if err := store.AcquireRunSlot(ctx); err != nil {
		return err
	}
	defer store.ReleaseRunSlot()

	jobType := jobs.TypePipeline
	if ingest.IsSubtitle(inputPath) {
		jobType = jobs.TypeSubtitle
	}
	job := &jobs.Job{
		Type:      jobType,
		Owner:     opts.owner,
		OwnerRole: jobs.RoleUser,
		Status:    jobs.StatusRunning,
		RequestPayload: map[string]any{
			"input":    inputPath,
			"source":   sourceLang.Code,
			"targets":  targets,
			"provider": cfg.TranslationProvider,
		},
	}
	if err := store.Create(job); err != nil {
		return err
	}

	summary, exported, err := executeRun(ctx, cfg, rc, scratch, sentences, sourceLang.Code, inputPath, opts, job.ID)
	if err != nil {
		_ = store.Mutate(job.ID, func(j *jobs.Job) error {
			j.Status = jobs.StatusFailed
			j.ResultPayload = map[string]any{"error": err.Error()}
			return nil
		})
		return err
	}

	result := map[string]any{
		"sentences":  summary.Progress.Total,
		"translated": summary.Progress.CompletedTranslation,
		"artifacts":  exported,
		"stopped":    summary.Stopped,
	}
	if summary.ExportErr != nil {
		result["export_error"] = summary.ExportErr.Error()
	}
	if summary.Stopped {
		if err := store.Mutate(job.ID, func(j *jobs.Job) error {
			j.Status = jobs.StatusCancelled
			j.ResultPayload = result
			return nil
		}); err != nil {
			return err
		}
	} else if err := store.MarkCompleted(job.ID, result); err != nil {
		return err
	}

	printSummary(summary, exported)
	return nil
}

// executeRun wires the engines and drives one pipeline run to completion.
func executeRun(ctx context.Context, cfg config.Config, rc *runtime.RuntimeContext, scratch *runtime.ScratchSpace,
	sentences []pipeline.Sentence, sourceLang, inputPath string, opts *runOptions, jobID string) (pipeline.Summary, []string, error) {

	var none pipeline.Summary

	client, err := buildLLMClient(ctx, cfg, rc)
	if err != nil {
		return none, nil, err
	}

	tracker := progress.NewTracker()
	engine := &pipeline.Engine{
		Client:                 client,
		Google:                 googletrans.New(),
		Translit:               translit.New(client, rc.OllamaModel),
		Tracker:                tracker,
		Pool:                   pool.NewWorkerPool("translate", rc.Workers(), rc.QueueSize),
		Provider:               providerFor(cfg.TranslationProvider),
		Model:                  rc.OllamaModel,
		BatchSize:              rc.BatchSize,
		IncludeTransliteration: cfg.IncludeTransliteration,
	}

	mediaEngine := &pipeline.MediaEngine{
		Synth:         buildSynthesizer(cfg, scratch, opts),
		GenerateAudio: cfg.GenerateAudio,
		Tracker:       tracker,
	}

	baseName := opts.baseName
	if baseName == "" {
		baseName = strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	}
	chunkStore := chunks.NewStore(filepath.Join(rc.OutputDir, jobID))
	var pending []chunks.Chunk
	var exported []string

	exporter := &pipeline.Exporter{
		OutputDir:         rc.OutputDir,
		BaseName:          baseName,
		SentencesPerBatch: cfg.SentencesPerOutputFile,
		GenerateAudio:     cfg.GenerateAudio,
		GenerateVideo:     cfg.GenerateVideo,
		OutputHTML:        cfg.OutputHTML,
		OutputPDF:         cfg.OutputPDF,
		Compositor:        buildCompositor(cfg, scratch),
		ExportPool:        pool.NewSerialPool("export"),
		Tracker:           tracker,
		Exported:          func(path string) { exported = append(exported, path) },
		Committed:         func(batch []pipeline.MediaItem) { pending = append(pending, toChunk(batch)) },
	}

	coordinator := &pipeline.Coordinator{
		Engine:      engine,
		Media:       mediaEngine,
		Exporter:    exporter,
		Tracker:     tracker,
		WorkerCount: rc.Workers(),
		QueueSize:   rc.QueueSize,
	}

	stop := pipeline.NewStop()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("Stop requested, draining committed work")
			stop.Set()
		case <-stop.Done():
		}
	}()

	summary, err := coordinator.Run(ctx, sentences, sourceLang, stop)
	if err != nil {
		return none, nil, err
	}

	if len(pending) > 0 {
		if _, err := chunkStore.Commit(pending); err != nil {
			logger.Warn("Chunk persistence failed", "error", err)
		}
	}
	return summary, exported, nil
}

func buildLLMClient(ctx context.Context, cfg config.Config, rc *runtime.RuntimeContext) (llm.Client, error) {
	switch cfg.LLMBackend {
	case config.BackendGemini:
		key, err := config.ResolveSecret(config.SecretGeminiAPIKey)
		if err != nil {
			return nil, err
		}
		if key == "" {
			return nil, fmt.Errorf("gemini backend selected but no API key found; run `ebook-tools config set-secret %s`", config.SecretGeminiAPIKey)
		}
		return llm.NewGeminiClient(ctx, key, cfg.GeminiModel)
	default:
		return llm.NewOllamaClient(rc.OllamaURL, rc.OllamaModel), nil
	}
}

func buildSynthesizer(cfg config.Config, scratch *runtime.ScratchSpace, opts *runOptions) media.Synthesizer {
	if !cfg.GenerateAudio {
		return nil
	}
	if !media.ESpeakAvailable() {
		logger.Warn("Audio requested but espeak-ng/ffmpeg not installed, continuing without audio")
		return nil
	}
	synth := media.NewESpeakSynthesizer(scratch.Dir)
	synth.Voice = opts.voice
	synth.WordsPerMinute = opts.readingSpeed
	synth.Tempo = opts.tempo
	return synth
}

func buildCompositor(cfg config.Config, scratch *runtime.ScratchSpace) media.Compositor {
	if !cfg.GenerateVideo {
		return nil
	}
	if !media.FFmpegAvailable() {
		logger.Warn("Video requested but ffmpeg not installed, continuing without video")
		return nil
	}
	return media.NewFFmpegCompositor(scratch.Dir)
}

func providerFor(name string) string {
	if strings.HasPrefix(name, "google") {
		return pipeline.ProviderGoogleTrans
	}
	return pipeline.ProviderLLM
}

func resolveTargets(inputs []string) ([]string, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("at least one target language is required")
	}
	out := make([]string, len(inputs))
	for i, in := range inputs {
		lang, ok := language.Resolve(in)
		if !ok {
			return nil, fmt.Errorf("unknown target language %q", in)
		}
		out[i] = lang.Code
	}
	return out, nil
}

// toChunk converts an exported window into its persisted batch form.
func toChunk(batch []pipeline.MediaItem) chunks.Chunk {
	sentences := make([]map[string]any, len(batch))
	for i, item := range batch {
		s := map[string]any{
			"number":      item.Number,
			"language":    item.TargetLanguage,
			"text":        item.Sentence,
			"translation": item.Translation,
		}
		if item.Transliteration != "" {
			s["transliteration"] = item.Transliteration
		}
		sentences[i] = s
	}
	return chunks.Chunk{
		StartSentence: batch[0].Number,
		EndSentence:   batch[len(batch)-1].Number,
		Sentences:     sentences,
	}
}

func jobsDir(cfg config.Config, rc *runtime.RuntimeContext) string {
	if cfg.JobsDir != "" {
		return cfg.JobsDir
	}
	return filepath.Join(rc.WorkingDir, "jobs")
}

func initLogging(debug bool, logFilePath string) error {
	level := logger.LevelInfo
	if debug {
		level = logger.LevelDebug
	}
	if logFilePath == "" {
		logger.Init(level, nil)
		return nil
	}
	f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	logger.Init(level, f)
	return nil
}

func printSummary(summary pipeline.Summary, exported []string) {
	fmt.Printf("Translated %d/%d sentences", summary.Progress.CompletedTranslation, summary.Progress.Total)
	if summary.Stopped {
		fmt.Print(" (stopped early)")
	}
	fmt.Println()
	for _, path := range exported {
		fmt.Println("  " + path)
	}
	if summary.ExportErr != nil {
		fmt.Println("Export errors: " + summary.ExportErr.Error())
	}
}

func defaultConfigPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "ebook-tools", "config.yaml")
	}
	return "config.yaml"
}

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "local"
}
