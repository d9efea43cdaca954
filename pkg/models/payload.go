package models

// Job parameters and results are tagged unions over JobKind: exactly one
// variant pointer is set, matching the job's kind. They serialize to a
// single JSON object per job row.

// GenerateParams are the parameters for a generate-images job
type GenerateParams struct {
	Prompt         string   `json:"prompt"`
	NegativePrompt string   `json:"negative_prompt,omitempty"`
	NumVariants    int      `json:"num_variants"`
	Width          int      `json:"width"`
	Height         int      `json:"height"`
	StyleRefs      []string `json:"style_refs,omitempty"`
}

// UpscaleParams are the parameters for an upscale-image job
type UpscaleParams struct {
	// ImageData is the base64-encoded source image.
	ImageData    string `json:"image_data"`
	ScaleFactor  int    `json:"scale_factor"`
	TargetWidth  int    `json:"target_width"`
	TargetHeight int    `json:"target_height"`
}

// SuperResolveParams are the parameters for a super-resolve-video job
type SuperResolveParams struct {
	VideoPath    string `json:"video_path"`
	TargetWidth  int    `json:"target_width"`
	TargetHeight int    `json:"target_height"`
	FPS          int    `json:"fps"`
}

// JobPayload carries the kind-specific parameters of a job
type JobPayload struct {
	Generate     *GenerateParams     `json:"generate,omitempty"`
	Upscale      *UpscaleParams      `json:"upscale,omitempty"`
	SuperResolve *SuperResolveParams `json:"super_resolve,omitempty"`
}

// GenerateResult is the result of a generate-images job
type GenerateResult struct {
	// Images are base64-encoded PNGs, one per variant.
	Images         []string `json:"images"`
	GenerationTime float64  `json:"generation_time,omitempty"`
	ModelUsed      string   `json:"model_used,omitempty"`
}

// UpscaleResult is the result of an upscale-image job
type UpscaleResult struct {
	Image        string  `json:"image"`
	OriginalSize string  `json:"original_size,omitempty"`
	UpscaledSize string  `json:"upscaled_size,omitempty"`
	UpscaleTime  float64 `json:"upscale_time,omitempty"`
}

// SuperResolveResult is the result of a super-resolve-video job
type SuperResolveResult struct {
	VideoPath       string  `json:"video_path"`
	ProcessingTime  float64 `json:"processing_time,omitempty"`
	FramesProcessed int     `json:"frames_processed,omitempty"`
}

// JobResult carries the kind-specific result of a completed job
type JobResult struct {
	Generate     *GenerateResult     `json:"generate,omitempty"`
	Upscale      *UpscaleResult      `json:"upscale,omitempty"`
	SuperResolve *SuperResolveResult `json:"super_resolve,omitempty"`
	// ResultPath points at the primary artifact on disk, when one exists.
	ResultPath string `json:"result_path,omitempty"`
}
