package pipeline

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/videoforge/videoforge/pkg/logging"
	"github.com/videoforge/videoforge/pkg/models"
)

// Submitter is the slice of the dispatcher the pipeline needs: hand a
// job to the GPU worker and block until it finishes or times out.
type Submitter interface {
	SubmitAndWait(ctx context.Context, job *models.Job, timeout time.Duration) (*models.JobResult, error)
}

// Config holds pipeline output layout and video parameters
type Config struct {
	OutputDir    string
	PublishDir   string
	TemplatesDir string

	Width         int
	Height        int
	FPS           int
	ShortDuration int
	LongDuration  int
	FourKWidth    int
	FourKHeight   int
	NumVariants   int

	GenerateTimeout     time.Duration
	UpscaleTimeout      time.Duration
	SuperResolveTimeout time.Duration
}

// DefaultConfig returns production defaults
func DefaultConfig() Config {
	return Config{
		OutputDir:           "./outputs",
		PublishDir:          "./publish",
		TemplatesDir:        "./templates",
		Width:               1920,
		Height:              1080,
		FPS:                 60,
		ShortDuration:       10,
		LongDuration:        40,
		FourKWidth:          3840,
		FourKHeight:         2160,
		NumVariants:         4,
		GenerateTimeout:     15 * time.Minute,
		UpscaleTimeout:      10 * time.Minute,
		SuperResolveTimeout: 30 * time.Minute,
	}
}

// AudioTrack is one audio input for video assembly. Volume is a
// percentage; 100 leaves the track untouched.
type AudioTrack struct {
	Path   string
	Volume int
}

// Pipeline orchestrates the production stages. Local encodes run
// through the Runner; GPU-bound stages go to the dispatcher.
type Pipeline struct {
	cfg       Config
	submitter Submitter
	runner    Runner
	log       *logging.Logger
}

// New creates a pipeline and lays out its output directory tree
func New(cfg Config, submitter Submitter, runner Runner, log *logging.Logger) (*Pipeline, error) {
	if runner == nil {
		runner = NewFFmpegRunner()
	}
	if log == nil {
		log = logging.NewLogger(logging.INFO, false)
	}

	p := &Pipeline{
		cfg:       cfg,
		submitter: submitter,
		runner:    runner,
		log:       log.WithField("component", "pipeline"),
	}
	if err := p.setupDirectories(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pipeline) setupDirectories() error {
	dirs := []string{
		filepath.Join(p.cfg.OutputDir, "generated"),
		filepath.Join(p.cfg.OutputDir, "selected"),
		filepath.Join(p.cfg.OutputDir, "videos", "short"),
		filepath.Join(p.cfg.OutputDir, "videos", "long"),
		filepath.Join(p.cfg.OutputDir, "videos", "4k"),
		filepath.Join(p.cfg.OutputDir, "videos", "final"),
		filepath.Join(p.cfg.OutputDir, "audio"),
		p.cfg.PublishDir,
		p.cfg.TemplatesDir,
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// Generate produces image variants for a prompt on the remote worker
// and saves them under outputs/generated. Style references are folded
// into the prompt; a standard negative prompt suppresses artifacts.
func (p *Pipeline) Generate(ctx context.Context, prompt string, styleRefs []string) ([]string, error) {
	enhanced := enhancePrompt(prompt, styleRefs)
	p.log.Info("Generating images", map[string]interface{}{"prompt": enhanced})

	job := &models.Job{
		Kind: models.JobKindGenerateImages,
		Parameters: &models.JobPayload{
			Generate: &models.GenerateParams{
				Prompt:         enhanced,
				NegativePrompt: negativePrompt(),
				NumVariants:    p.cfg.NumVariants,
				Width:          p.cfg.Width,
				Height:         p.cfg.Height,
				StyleRefs:      styleRefs,
			},
		},
	}

	result, err := p.submitter.SubmitAndWait(ctx, job, p.cfg.GenerateTimeout)
	if err != nil {
		return nil, fmt.Errorf("image generation failed: %w", err)
	}
	if result == nil || result.Generate == nil {
		return nil, fmt.Errorf("image generation returned no payload")
	}

	stamp := timestamp()
	var paths []string
	for i, data := range result.Generate.Images {
		path := filepath.Join(p.cfg.OutputDir, "generated",
			fmt.Sprintf("gen_%s_%d.png", stamp, i))
		if err := saveBase64(data, path); err != nil {
			return nil, fmt.Errorf("failed to save variant %d: %w", i, err)
		}
		paths = append(paths, path)
	}

	p.log.Info("Generation complete", map[string]interface{}{"variants": len(paths)})
	return paths, nil
}

// Upscale sends a selected image to the remote worker for enhancement
// and saves the result under outputs/selected.
func (p *Pipeline) Upscale(ctx context.Context, imagePath string, scaleFactor int) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrAssetNotFound, imagePath)
		}
		return "", err
	}

	job := &models.Job{
		Kind: models.JobKindUpscaleImage,
		Parameters: &models.JobPayload{
			Upscale: &models.UpscaleParams{
				ImageData:    base64.StdEncoding.EncodeToString(data),
				ScaleFactor:  scaleFactor,
				TargetWidth:  p.cfg.FourKWidth,
				TargetHeight: p.cfg.FourKHeight,
			},
		},
	}

	result, err := p.submitter.SubmitAndWait(ctx, job, p.cfg.UpscaleTimeout)
	if err != nil {
		return "", fmt.Errorf("upscale failed: %w", err)
	}
	if result == nil || result.Upscale == nil {
		return "", fmt.Errorf("upscale returned no payload")
	}

	outPath := filepath.Join(p.cfg.OutputDir, "selected",
		fmt.Sprintf("upscaled_%s.png", timestamp()))
	if err := saveBase64(result.Upscale.Image, outPath); err != nil {
		return "", err
	}

	p.log.Info("Upscale complete", map[string]interface{}{"output": outPath})
	return outPath, nil
}

// AssembleVideo turns a still image into a short video with optional
// audio, writing the result under outputs/videos/short. The image is
// duplicated into a frame sequence at the configured fps so downstream
// stages see a normal constant-framerate stream.
func (p *Pipeline) AssembleVideo(ctx context.Context, imagePath string, tracks []AudioTrack) (string, error) {
	if _, err := os.Stat(imagePath); err != nil {
		return "", fmt.Errorf("%w: %s", ErrAssetNotFound, imagePath)
	}

	tmpDir, err := os.MkdirTemp("", "assemble-")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tmpDir)

	framesDir := filepath.Join(tmpDir, "frames")
	if err := os.MkdirAll(framesDir, 0755); err != nil {
		return "", err
	}

	numFrames := p.cfg.ShortDuration * p.cfg.FPS
	for i := 0; i < numFrames; i++ {
		dst := filepath.Join(framesDir, fmt.Sprintf("frame_%06d.png", i))
		if err := copyFile(imagePath, dst); err != nil {
			return "", fmt.Errorf("failed to stage frame %d: %w", i, err)
		}
	}

	rawVideo := filepath.Join(tmpDir, "raw_video.mp4")
	err = p.runner.Run(ctx, "assemble", []string{
		"-framerate", fmt.Sprintf("%d", p.cfg.FPS),
		"-pattern_type", "glob",
		"-i", filepath.Join(framesDir, "*.png"),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-crf", "18",
		rawVideo,
	})
	if err != nil {
		return "", err
	}

	withAudio := rawVideo
	if len(tracks) > 0 {
		withAudio, err = p.mixAudio(ctx, rawVideo, tracks, tmpDir)
		if err != nil {
			return "", err
		}
	}

	finalPath := filepath.Join(p.cfg.OutputDir, "videos", "short",
		fmt.Sprintf("video_%s.mp4", timestamp()))
	if err := copyFile(withAudio, finalPath); err != nil {
		return "", err
	}

	p.log.Info("Video assembled", map[string]interface{}{"output": finalPath})
	return finalPath, nil
}

// mixAudio normalizes each track's volume, merges them into one stereo
// stream, and muxes it against the video. -shortest keeps the audio
// from extending past the picture.
func (p *Pipeline) mixAudio(ctx context.Context, videoPath string, tracks []AudioTrack, tmpDir string) (string, error) {
	var processed []string
	for i, track := range tracks {
		if _, err := os.Stat(track.Path); err != nil {
			p.log.Warn("Skipping missing audio track", map[string]interface{}{"path": track.Path})
			continue
		}

		volume := float64(track.Volume) / 100.0
		out := filepath.Join(tmpDir, fmt.Sprintf("audio_%d.wav", i))
		err := p.runner.Run(ctx, "audio-normalize", []string{
			"-i", track.Path,
			"-af", fmt.Sprintf("volume=%g", volume),
			"-ac", "2",
			out,
		})
		if err != nil {
			p.log.Warn("Failed to process audio track", map[string]interface{}{
				"path": track.Path, "error": err.Error(),
			})
			continue
		}
		processed = append(processed, out)
	}

	if len(processed) == 0 {
		return videoPath, nil
	}

	mixed := filepath.Join(tmpDir, "mixed_audio.wav")
	if len(processed) == 1 {
		mixed = processed[0]
	} else {
		var filter strings.Builder
		args := []string{}
		for i, f := range processed {
			args = append(args, "-i", f)
			fmt.Fprintf(&filter, "[%d:a]", i)
		}
		fmt.Fprintf(&filter, "amerge=inputs=%d[out]", len(processed))
		args = append(args,
			"-filter_complex", filter.String(),
			"-map", "[out]",
			"-ac", "2",
			mixed,
		)
		if err := p.runner.Run(ctx, "audio-merge", args); err != nil {
			return "", err
		}
	}

	muxed := filepath.Join(tmpDir, "video_with_audio.mp4")
	err := p.runner.Run(ctx, "audio-mux", []string{
		"-i", videoPath,
		"-i", mixed,
		"-c:v", "copy",
		"-c:a", "aac",
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-shortest",
		muxed,
	})
	if err != nil {
		return "", err
	}
	return muxed, nil
}

// Extend repeats a short video until it covers targetDuration seconds,
// then trims to exactly that length. A video already at or past the
// target is returned unchanged.
func (p *Pipeline) Extend(ctx context.Context, videoPath string, targetDuration int) (string, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return "", fmt.Errorf("%w: %s", ErrAssetNotFound, videoPath)
	}

	current, err := p.runner.Duration(ctx, videoPath)
	if err != nil {
		return "", err
	}
	if current <= 0 {
		return "", fmt.Errorf("%w: %s", ErrInvalidDuration, videoPath)
	}
	if current >= float64(targetDuration) {
		p.log.Info("Video already at target length, skipping extension",
			map[string]interface{}{"duration": current})
		return videoPath, nil
	}

	repeats := int(math.Floor(float64(targetDuration)/current)) + 1

	tmpDir, err := os.MkdirTemp("", "extend-")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tmpDir)

	listFile := filepath.Join(tmpDir, "concat_list.txt")
	if err := writeConcatList(listFile, videoPath, repeats); err != nil {
		return "", err
	}

	extended := filepath.Join(tmpDir, "extended.mp4")
	err = p.runner.Run(ctx, "extend-concat", []string{
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		extended,
	})
	if err != nil {
		return "", err
	}

	finalPath := filepath.Join(p.cfg.OutputDir, "videos", "long",
		fmt.Sprintf("extended_%s.mp4", timestamp()))
	err = p.runner.Run(ctx, "extend-trim", []string{
		"-i", extended,
		"-t", fmt.Sprintf("%d", targetDuration),
		"-c", "copy",
		finalPath,
	})
	if err != nil {
		return "", err
	}

	p.log.Info("Video extended", map[string]interface{}{
		"output": finalPath, "repeats": repeats,
	})
	return finalPath, nil
}

// SuperResolve upscales a video to 4K on the remote worker. The output
// lands under outputs/videos/4k.
func (p *Pipeline) SuperResolve(ctx context.Context, videoPath string) (string, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return "", fmt.Errorf("%w: %s", ErrAssetNotFound, videoPath)
	}

	job := &models.Job{
		Kind: models.JobKindSuperResolveVideo,
		Parameters: &models.JobPayload{
			SuperResolve: &models.SuperResolveParams{
				VideoPath:    videoPath,
				TargetWidth:  p.cfg.FourKWidth,
				TargetHeight: p.cfg.FourKHeight,
				FPS:          p.cfg.FPS,
			},
		},
	}

	result, err := p.submitter.SubmitAndWait(ctx, job, p.cfg.SuperResolveTimeout)
	if err != nil {
		return "", fmt.Errorf("super resolution failed: %w", err)
	}
	if result == nil || result.SuperResolve == nil {
		return "", fmt.Errorf("super resolution returned no payload")
	}

	outPath := filepath.Join(p.cfg.OutputDir, "videos", "4k",
		fmt.Sprintf("4k_%s.mp4", timestamp()))
	if result.SuperResolve.VideoPath != "" && result.SuperResolve.VideoPath != outPath {
		if err := copyFile(result.SuperResolve.VideoPath, outPath); err != nil {
			return "", fmt.Errorf("failed to collect 4k output: %w", err)
		}
	}

	p.log.Info("Super resolution complete", map[string]interface{}{"output": outPath})
	return outPath, nil
}

// Loop repeats a base video into a long seamless render, re-encoding
// with a constant framerate and resampled audio so players do not
// stutter at the splice points.
func (p *Pipeline) Loop(ctx context.Context, videoPath string, totalMinutes int) (string, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return "", fmt.Errorf("%w: %s", ErrAssetNotFound, videoPath)
	}

	duration, err := p.runner.Duration(ctx, videoPath)
	if err != nil {
		return "", err
	}
	if duration <= 0 {
		return "", fmt.Errorf("%w: %s", ErrInvalidDuration, videoPath)
	}

	totalSeconds := float64(totalMinutes * 60)
	repeats := int(math.Floor(totalSeconds/duration)) + 1

	tmpDir, err := os.MkdirTemp("", "loop-")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tmpDir)

	listFile := filepath.Join(tmpDir, "loop_list.txt")
	if err := writeConcatList(listFile, videoPath, repeats); err != nil {
		return "", err
	}

	outPath := filepath.Join(p.cfg.OutputDir, "videos", "final",
		fmt.Sprintf("loop_%dmin_%s.mp4", totalMinutes, timestamp()))

	err = p.runner.Run(ctx, "loop", []string{
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-filter_complex",
		fmt.Sprintf("[0:v]fps=%d[v];[0:a]aresample=44100[a]", p.cfg.FPS),
		"-map", "[v]",
		"-map", "[a]",
		"-c:v", "libx264",
		"-crf", "18",
		"-preset", "medium",
		"-c:a", "aac",
		"-b:a", "192k",
		outPath,
	})
	if err != nil {
		return "", err
	}

	p.log.Info("Seamless loop created", map[string]interface{}{
		"output": outPath, "minutes": totalMinutes, "repeats": repeats,
	})
	return outPath, nil
}

// Intro renders a one-second branded title card at the configured
// resolution and framerate, saved under the templates directory.
func (p *Pipeline) Intro(ctx context.Context, template string) (string, error) {
	if template == "" {
		template = "default"
	}

	outPath := filepath.Join(p.cfg.TemplatesDir,
		fmt.Sprintf("intro_%s_%s.mp4", template, timestamp()))

	drawtext := "drawtext=text='VIDEO PRODUCTION':fontcolor=white:fontsize=80:" +
		"x=(w-text_w)/2:y=(h-text_h)/2"

	err := p.runner.Run(ctx, "intro", []string{
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=0x1e1e3c:s=%dx%d:r=%d:d=1",
			p.cfg.Width, p.cfg.Height, p.cfg.FPS),
		"-vf", drawtext,
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-crf", "18",
		outPath,
	})
	if err != nil {
		return "", err
	}

	p.log.Info("Intro generated", map[string]interface{}{"output": outPath})
	return outPath, nil
}

// Finalize concatenates the intro and the main video without
// re-encoding and files the result under publish/<date>.
func (p *Pipeline) Finalize(ctx context.Context, introPath, mainPath string) (string, error) {
	for _, path := range []string{introPath, mainPath} {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("%w: %s", ErrAssetNotFound, path)
		}
	}

	tmpDir, err := os.MkdirTemp("", "finalize-")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tmpDir)

	listFile := filepath.Join(tmpDir, "final_list.txt")
	f, err := os.Create(listFile)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(f, "file '%s'\n", introPath)
	fmt.Fprintf(f, "file '%s'\n", mainPath)
	if err := f.Close(); err != nil {
		return "", err
	}

	now := time.Now()
	publishDir := filepath.Join(p.cfg.PublishDir, now.Format("2006-01-02"))
	if err := os.MkdirAll(publishDir, 0755); err != nil {
		return "", err
	}

	finalPath := filepath.Join(publishDir,
		fmt.Sprintf("final_video_%s.mp4", now.Format("150405")))

	err = p.runner.Run(ctx, "finalize", []string{
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		finalPath,
	})
	if err != nil {
		return "", err
	}

	p.log.Info("Final video published", map[string]interface{}{"output": finalPath})
	return finalPath, nil
}

// enhancePrompt folds style-reference labels and quality keywords into
// the base prompt. Only the first three references are named; more adds
// noise without steering the model.
func enhancePrompt(prompt string, styleRefs []string) string {
	if len(styleRefs) == 0 {
		return prompt
	}
	refs := styleRefs
	if len(refs) > 3 {
		refs = refs[:3]
	}
	return prompt +
		", style references: " + strings.Join(refs, ", ") +
		", masterpiece, best quality, detailed, 8k, ultra detailed"
}

func negativePrompt() string {
	return "worst quality, low quality, normal quality, blurry, watermark, signature"
}

func timestamp() string {
	return time.Now().Format("20060102_150405")
}

func writeConcatList(path, videoPath string, repeats int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	for i := 0; i < repeats; i++ {
		if _, err := fmt.Fprintf(f, "file '%s'\n", videoPath); err != nil {
			f.Close()
			return err
		}
	}
	return f.Close()
}

func saveBase64(data, path string) error {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return fmt.Errorf("invalid base64 image data: %w", err)
	}
	return os.WriteFile(path, raw, 0644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
