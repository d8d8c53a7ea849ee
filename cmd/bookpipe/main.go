// Command bookpipe translates a segmented book with a configured LLM
// provider, packing paragraphs into token-budget-sized chunks and
// accounting for usage and cost.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"bookpipe/config"
	"bookpipe/internal/book"
	"bookpipe/internal/cache"
	"bookpipe/internal/chunk"
	"bookpipe/internal/core"
	"bookpipe/internal/cost"
	"bookpipe/internal/logging"
	"bookpipe/internal/monitor"
	"bookpipe/internal/prompt"
	"bookpipe/internal/providers"
	"bookpipe/internal/tokens"
	"bookpipe/internal/translate"
	"bookpipe/internal/version"

	// Provider implementations register themselves at init.
	_ "bookpipe/internal/providers/alibaba"
	_ "bookpipe/internal/providers/deepseek"
	_ "bookpipe/internal/providers/gemini"
	_ "bookpipe/internal/providers/openai"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	inputPath := flag.String("input", "", "path to segmented book JSON")
	outputPath := flag.String("output", "", "translated output path (default: derived from input)")
	dryRun := flag.Bool("dry-run", false, "compute the chunk mapping and cost estimate without calling the provider")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("bookpipe", version.String())
		return
	}

	if err := run(*configPath, *inputPath, *outputPath, *dryRun); err != nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath, inputPath, outputPath string, dryRun bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logging.Setup(os.Stderr, cfg.LogFormat, cfg.LogLevel)

	if inputPath == "" {
		return core.NewConfigError("-input is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	paragraphs, err := book.LoadSegmented(inputPath)
	if err != nil {
		return err
	}
	slog.Info("loaded segmented book", "path", inputPath, "paragraphs", len(paragraphs))

	template := prompt.New(prompt.DefaultTemplate)
	if cfg.Translation.PromptFile != "" {
		if template, err = prompt.Load(cfg.Translation.PromptFile); err != nil {
			return err
		}
	}

	model := cfg.Model()
	provider, err := providers.Create(providers.Config{
		Type:      model.Provider,
		Model:     cfg.Translation.Model,
		Prompt:    template,
		MaxTokens: model.MaxOutputTokens,
	})
	if err != nil {
		return err
	}

	tokenCache, err := cache.New(cfg.Cache.Type, cfg.Cache.Path, cfg.Cache.RedisURL, cfg.Cache.RedisTTL)
	if err != nil {
		return err
	}
	if tokenCache != nil {
		defer func() {
			if err := tokenCache.Close(); err != nil {
				slog.Warn("failed to close token cache", "error", err)
			}
		}()
	}

	native, _ := provider.(core.NativeTokenCounter)
	counter := tokens.NewCounter(cfg.Translation.Model, provider.ProviderType(), native, tokenCache)
	mapper := chunk.NewMapper(model.MaxOutputTokens, model.OutputInputTokenRatio)
	costs := cost.New(model.PricePerMillion.Table())

	if dryRun {
		return printEstimate(ctx, cfg, mapper, counter, costs, template, provider, paragraphs)
	}

	store, err := monitor.New(ctx, cfg.Monitor.Backend, cfg.Monitor.Path, cfg.Monitor.DSN)
	if err != nil {
		return err
	}
	if store != nil {
		defer func() {
			if err := store.Close(); err != nil {
				slog.Warn("failed to close monitor store", "error", err)
			}
		}()
	}

	var newFallback func() (core.Translator, error)
	if cfg.Translation.FallbackModel != "" {
		fallbackModel := cfg.Models[cfg.Translation.FallbackModel]
		fallbackName := cfg.Translation.FallbackModel
		newFallback = func() (core.Translator, error) {
			return providers.Create(providers.Config{
				Type:      fallbackModel.Provider,
				Model:     fallbackName,
				Prompt:    template,
				MaxTokens: fallbackModel.MaxOutputTokens,
			})
		}
	}

	translator := translate.New(mapper, counter, provider, newFallback, costs, store, template, translate.Options{
		SourceLanguage: cfg.Translation.SourceLanguage,
		TargetLanguage: cfg.Translation.TargetLanguage,
		ThinkingBudget: cfg.Translation.ThinkingBudget,
		OutputRatio:    model.OutputInputTokenRatio,
		ThinkingRatio:  cfg.ThinkingRatio(),
		ChunkDelay:     cfg.Pacing.ChunkDelay,
		RetryDelay:     cfg.Pacing.RetryDelay,
	})

	summary, err := translator.Run(ctx, paragraphs)
	if err != nil {
		return err
	}

	if outputPath == "" {
		outputPath = book.OutputFilename(inputPath)
	}
	if err := book.WriteOutput(outputPath, summary.Output); err != nil {
		return err
	}
	slog.Info("wrote translated book", "path", outputPath)

	fmt.Printf("Translated %d chunks (%d failed)\n", len(summary.Mapping), len(summary.FailedChunks))
	fmt.Printf("Tokens: input=%d output=%d thinking=%d\n",
		summary.Totals.Input, summary.Totals.Output, summary.Totals.Thinking)
	fmt.Printf("Cost: $%.4f (input $%.4f, output $%.4f, thinking $%.4f)\n",
		summary.Cost.TotalCost, summary.Cost.InputCost, summary.Cost.OutputCost, summary.Cost.ThinkingCost)
	for _, name := range summary.FailedChunks {
		fmt.Printf("  failed: %s\n", name)
	}
	return nil
}

// printEstimate reports the chunk mapping and the pre-flight cost
// estimate without spending provider tokens on translation. The token
// counting itself may still call the provider's counting endpoint.
func printEstimate(
	ctx context.Context,
	cfg *config.Config,
	mapper *chunk.Mapper,
	counter *tokens.Counter,
	costs *cost.Calculator,
	template *prompt.Template,
	provider core.Translator,
	paragraphs []core.Paragraph,
) error {
	counts := counter.CountParagraphs(ctx, paragraphs)

	inputs := make([]chunk.Input, len(paragraphs))
	for i, p := range paragraphs {
		inputs[i] = chunk.Input{ParagraphID: p.ID, Tokens: counts.Counts[p.ID].Tokens}
	}
	mapping, err := mapper.Map(inputs)
	if err != nil {
		return err
	}

	if augmenter, ok := provider.(core.PromptAugmenter); ok {
		template = template.WithNote(augmenter.PromptNote())
	}
	promptTokens := counter.CountPrompt(ctx, template, cfg.Translation.SourceLanguage, cfg.Translation.TargetLanguage)

	records := tokens.ChunkInputTokens(counts, promptTokens.Tokens, mapping)
	records = tokens.EstimateOutput(records, cfg.Model().OutputInputTokenRatio, cfg.ThinkingRatio())
	totals, hasThinking := tokens.SumTotals(records)
	breakdown := costs.CalculateTotals(totals)

	fmt.Printf("Paragraphs: %d (total %d tokens, avg %.1f)\n",
		len(paragraphs), counts.Total, counts.Average)
	if counts.Estimated {
		fmt.Println("Note: counts include estimator fallback; treat the figures as approximate.")
	}
	fmt.Printf("Chunks: %d (prompt overhead %d tokens/chunk)\n", len(mapping), promptTokens.Tokens)
	for _, r := range records {
		fmt.Printf("  %s: %d paragraphs, %d input tokens\n", r.Name, len(r.ParagraphIDs), r.InputTokens)
	}
	fmt.Printf("Estimated tokens: input=%d output=%d", totals.Input, totals.Output)
	if hasThinking {
		fmt.Printf(" thinking=%d", totals.Thinking)
	}
	fmt.Println()
	fmt.Printf("Estimated cost: $%.4f\n", breakdown.TotalCost)
	return nil
}
