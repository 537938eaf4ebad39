package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"examforge/internal/cache"
	"examforge/internal/drafting"
	"examforge/internal/llm"
	"examforge/internal/pipeline"
	"examforge/internal/progress"
	"examforge/internal/research"
)

var generateCmd = &cobra.Command{
	Use:   "generate <topic>",
	Short: "Generate a multiple-choice question for a topic",
	Args:  cobra.ExactArgs(1),
	RunE:  runGenerate,
}

func init() {
	generateCmd.Flags().Float64("difficulty", 0.5, "Target difficulty in [0,1]")
	generateCmd.Flags().String("variant", string(pipeline.VariantVignette), "Pipeline variant: vignette or structured")
	generateCmd.Flags().Bool("no-cache", false, "Bypass the result cache")
	generateCmd.Flags().Bool("watch", false, "Print pipeline progress events as they happen")
	generateCmd.Flags().Bool("pubmed", false, "Include PubMed literature search in the research context")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	st, err := openStore(cmd)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	llmCfg := llm.ConfigFromEnv()
	if llmCfg.Validate() != nil {
		discovered, ok := llm.DiscoverConfig()
		if !ok {
			return fmt.Errorf("no LLM provider configured; set EXAMFORGE_LLM_PROVIDER and its API key")
		}
		llmCfg = discovered
	}

	provider, err := llm.NewProvider(ctx, llmCfg, st)
	if err != nil {
		return err
	}

	sources := []research.Source{research.NewKBSource(st)}
	if usePubmed, _ := cmd.Flags().GetBool("pubmed"); usePubmed {
		sources = append(sources, research.NewPubMedSource(""))
	}

	broker := progress.NewBroker()
	controller := pipeline.New(pipeline.Deps{
		Agent:   drafting.New(provider, drafting.DefaultConfig()),
		Sources: research.NewMultiSource(0, sources...),
		Cache:   cache.New(),
		Broker:  broker,
		Archive: st,
	}, pipeline.DefaultConfig())

	difficulty, _ := cmd.Flags().GetFloat64("difficulty")
	variant, _ := cmd.Flags().GetString("variant")
	noCache, _ := cmd.Flags().GetBool("no-cache")

	req := pipeline.Request{
		Topic:      args[0],
		Difficulty: difficulty,
		Variant:    pipeline.Variant(variant),
		UseCache:   !noCache,
	}

	sessionID := uuid.NewString()

	watchDone := make(chan struct{})
	if watch, _ := cmd.Flags().GetBool("watch"); watch {
		events, _ := broker.Subscribe(sessionID)
		go func() {
			defer close(watchDone)
			for ev := range events {
				fmt.Fprintln(cmd.OutOrStdout(), renderEvent(ev))
			}
		}()
	} else {
		close(watchDone)
	}

	res, err := controller.Generate(ctx, req, sessionID)
	<-watchDone
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderResult(res))
	return nil
}
