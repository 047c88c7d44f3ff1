package engine

import (
	"context"
	"fmt"

	gvision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"

	"github.com/GriffinCanCode/textcam/internal/still"
)

// Vision recognizes text with Google Cloud Vision document text detection.
// Credentials come from credsFile when set, otherwise from ADC.
type Vision struct {
	credsFile string
	hints     []string
	client    *gvision.ImageAnnotatorClient
}

// NewVision creates a Cloud Vision backend.
func NewVision(credsFile string) *Vision {
	return &Vision{credsFile: credsFile}
}

func (v *Vision) Name() string { return BackendVision }

func (v *Vision) Init(ctx context.Context, languages []string) error {
	var opts []option.ClientOption
	if v.credsFile != "" {
		opts = append(opts, option.WithCredentialsFile(v.credsFile))
	}
	client, err := gvision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to create vision client: %w", err)
	}
	v.client = client
	v.hints = LanguageHints(languages)
	return nil
}

func (v *Vision) Recognize(ctx context.Context, img still.Image) (Recognition, error) {
	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image:        &visionpb.Image{Content: img.Data},
				Features:     []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
				ImageContext: &visionpb.ImageContext{LanguageHints: v.hints},
			},
		},
	}

	resp, err := v.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return Recognition{}, fmt.Errorf("vision API request failed: %w", err)
	}
	if len(resp.Responses) == 0 {
		return Recognition{}, nil
	}
	return parseVisionResponse(resp.Responses[0])
}

func (v *Vision) Close() error {
	if v.client == nil {
		return nil
	}
	return v.client.Close()
}

// parseVisionResponse takes the full text annotation; confidence is the
// mean over pages.
func parseVisionResponse(r *visionpb.AnnotateImageResponse) (Recognition, error) {
	if r.GetError() != nil {
		return Recognition{}, fmt.Errorf("vision API error: %s", r.GetError().GetMessage())
	}
	full := r.GetFullTextAnnotation()
	if full == nil {
		return Recognition{}, nil
	}

	var sum float64
	pages := full.GetPages()
	for _, p := range pages {
		sum += float64(p.GetConfidence())
	}
	conf := 0.0
	if len(pages) > 0 {
		conf = sum / float64(len(pages))
	}
	return Recognition{Text: full.GetText(), Confidence: conf}, nil
}
