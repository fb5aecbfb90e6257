package vision

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/JaimeStill/terra/pkg/formatting"
)

const objectsPrompt = `List every distinct physical object visible in this photo, one entry per instance.
Respond with JSON only: {"objects":[{"name":"<object name>","confidence":<0..1>}]}`

const labelsPrompt = `Describe the content of this photo with short labels (scene, materials, activities).
Respond with JSON only: {"labels":[{"description":"<label>","confidence":<0..1>}]}`

// ContentGenerator is the subset of the genai Models service used here.
type ContentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// GenAIDetector implements Detector with a Gemini model.
type GenAIDetector struct {
	models  ContentGenerator
	model   string
	fetcher *Fetcher
	logger  *slog.Logger
}

// Model backends.
const (
	BackendGemini = "gemini"
	BackendVertex = "vertex"
)

// ClientConfig selects the model backend and its credentials. The Gemini
// API needs an API key. Vertex AI uses application default credentials
// with a project and location.
type ClientConfig struct {
	Backend  string
	APIKey   string
	Project  string
	Location string
}

// ReadsGCS reports whether the backend reads gs:// URIs directly.
func (c ClientConfig) ReadsGCS() bool {
	return c.Backend == BackendVertex
}

// GenAI converts c into a genai client configuration.
func (c ClientConfig) GenAI() (*genai.ClientConfig, error) {
	switch c.Backend {
	case "", BackendGemini:
		if c.APIKey == "" {
			return nil, fmt.Errorf("genai api key is required")
		}
		return &genai.ClientConfig{APIKey: c.APIKey, Backend: genai.BackendGeminiAPI}, nil
	case BackendVertex:
		if c.Project == "" || c.Location == "" {
			return nil, fmt.Errorf("vertex backend requires project and location")
		}
		return &genai.ClientConfig{
			Project:  c.Project,
			Location: c.Location,
			Backend:  genai.BackendVertexAI,
		}, nil
	}
	return nil, fmt.Errorf("unknown genai backend %q", c.Backend)
}

// NewGenAIClient creates a client for the configured backend.
func NewGenAIClient(ctx context.Context, cfg ClientConfig) (*genai.Client, error) {
	cc, err := cfg.GenAI()
	if err != nil {
		return nil, err
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return client, nil
}

// NewGenAIDetector creates a detector that asks model about images resolved by fetcher.
func NewGenAIDetector(models ContentGenerator, model string, fetcher *Fetcher, logger *slog.Logger) *GenAIDetector {
	return &GenAIDetector{
		models:  models,
		model:   model,
		fetcher: fetcher,
		logger:  logger.With("system", "vision-genai"),
	}
}

func (d *GenAIDetector) DetectObjects(ctx context.Context, locator string) ([]Detection, error) {
	type response struct {
		Objects []Detection `json:"objects"`
	}

	r, err := generate[response](ctx, d, locator, objectsPrompt)
	if err != nil {
		return nil, fmt.Errorf("detect objects: %w", err)
	}
	return r.Objects, nil
}

func (d *GenAIDetector) DetectLabels(ctx context.Context, locator string) ([]Label, error) {
	type response struct {
		Labels []Label `json:"labels"`
	}

	r, err := generate[response](ctx, d, locator, labelsPrompt)
	if err != nil {
		return nil, fmt.Errorf("detect labels: %w", err)
	}
	return r.Labels, nil
}

func generate[T any](ctx context.Context, d *GenAIDetector, locator, prompt string) (T, error) {
	var zero T

	img, err := d.fetcher.Fetch(ctx, locator)
	if err != nil {
		return zero, err
	}

	var part *genai.Part
	if img.URI != "" {
		part = genai.NewPartFromURI(img.URI, img.MIMEType)
	} else {
		part = genai.NewPartFromBytes(img.Data, img.MIMEType)
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{part, genai.NewPartFromText(prompt)}, genai.RoleUser),
	}

	resp, err := d.models.GenerateContent(ctx, d.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0),
	})
	if err != nil {
		return zero, err
	}

	text := resp.Text()
	d.logger.DebugContext(ctx, "model response", "locator", locator, "bytes", len(text))

	return formatting.Parse[T](text)
}
