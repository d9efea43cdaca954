package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/videoforge/videoforge/pkg/config"
	"github.com/videoforge/videoforge/pkg/dispatch"
	"github.com/videoforge/videoforge/pkg/logging"
	"github.com/videoforge/videoforge/pkg/pipeline"
	"github.com/videoforge/videoforge/pkg/store"
)

var (
	producePrompt    string
	produceStyleRefs []string
	produceAudio     []string
	produceMinutes   int
	produceVariant   int
	produceSkip4K    bool
)

var produceCmd = &cobra.Command{
	Use:   "produce",
	Short: "Run the full production pipeline locally",
	Long: `Runs every pipeline stage end to end: generate image variants,
upscale the selected one, assemble a short video with audio, extend it,
super-resolve to 4K, loop it to the target length, and publish the
final cut with an intro card.`,
	RunE: runProduce,
}

func init() {
	rootCmd.AddCommand(produceCmd)

	produceCmd.Flags().StringVar(&producePrompt, "prompt", "", "generation prompt (required)")
	produceCmd.Flags().StringSliceVar(&produceStyleRefs, "style-ref", nil, "style reference labels")
	produceCmd.Flags().StringSliceVar(&produceAudio, "audio", nil, "audio track paths")
	produceCmd.Flags().IntVar(&produceMinutes, "minutes", 180, "final loop length in minutes")
	produceCmd.Flags().IntVar(&produceVariant, "variant", 0, "index of the generated variant to use")
	produceCmd.Flags().BoolVar(&produceSkip4K, "skip-4k", false, "skip the 4K super-resolution stage")
	produceCmd.MarkFlagRequired("prompt")
}

func runProduce(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.JSON)

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer st.Close()

	worker := dispatch.NewStubWorker()
	if err := worker.Connect(); err != nil {
		return fmt.Errorf("failed to connect worker session: %w", err)
	}

	dispatcher := dispatch.New(st, worker, dispatch.Config{
		Sessions:     cfg.Dispatcher.Sessions,
		PollInterval: cfg.Dispatcher.PollInterval,
		QueueSize:    cfg.Dispatcher.QueueSize,
	}, logger)
	dispatcher.Start()
	defer dispatcher.Stop()

	p, err := pipeline.New(pipelineConfig(cfg), dispatcher, nil, logger)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	fmt.Println("Stage 1/7: generating image variants...")
	variants, err := p.Generate(ctx, producePrompt, produceStyleRefs)
	if err != nil {
		return err
	}
	if produceVariant < 0 || produceVariant >= len(variants) {
		return fmt.Errorf("variant index %d out of range (got %d variants)", produceVariant, len(variants))
	}
	selected := variants[produceVariant]
	fmt.Printf("Selected variant: %s\n", selected)

	fmt.Println("Stage 2/7: upscaling selected image...")
	upscaled, err := p.Upscale(ctx, selected, 4)
	if err != nil {
		return err
	}

	fmt.Println("Stage 3/7: assembling short video...")
	tracks := make([]pipeline.AudioTrack, 0, len(produceAudio))
	for _, path := range produceAudio {
		tracks = append(tracks, pipeline.AudioTrack{Path: path, Volume: 100})
	}
	short, err := p.AssembleVideo(ctx, upscaled, tracks)
	if err != nil {
		return err
	}

	fmt.Println("Stage 4/7: extending video...")
	extended, err := p.Extend(ctx, short, cfg.Video.LongDuration)
	if err != nil {
		return err
	}

	base := extended
	if !produceSkip4K {
		fmt.Println("Stage 5/7: super-resolving to 4K...")
		base, err = p.SuperResolve(ctx, extended)
		if err != nil {
			return err
		}
	} else {
		fmt.Println("Stage 5/7: skipped (--skip-4k)")
	}

	fmt.Printf("Stage 6/7: looping to %d minutes...\n", produceMinutes)
	loop, err := p.Loop(ctx, base, produceMinutes)
	if err != nil {
		return err
	}

	fmt.Println("Stage 7/7: rendering intro and publishing...")
	intro, err := p.Intro(ctx, "default")
	if err != nil {
		return err
	}
	final, err := p.Finalize(ctx, intro, loop)
	if err != nil {
		return err
	}

	fmt.Printf("\nFinal video published: %s\n", final)
	return nil
}
