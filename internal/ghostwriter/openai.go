package ghostwriter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const openAIDefaultModel = openai.ChatModelGPT4o

// sectionsSchema constrains the model's structured output before the
// pipeline trusts it.
const sectionsSchema = `{
  "type": "object",
  "required": ["sections"],
  "properties": {
    "sections": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["title", "body"],
        "properties": {
          "title": {"type": "string", "minLength": 1},
          "body": {"type": "string"}
        }
      }
    }
  }
}`

const systemPrompt = `You are a professional ghostwriter. Respond with a single JSON object
of the form {"sections": [{"title": "...", "body": "..."}]} and nothing else.
Bodies are plain prose paragraphs separated by blank lines.`

// OpenAI is a Producer backed by the OpenAI chat completions API.
type OpenAI struct {
	client     openai.Client
	model      openai.ChatModel
	maxRetries int
	schema     *jsonschema.Schema
	logger     *slog.Logger
}

// NewOpenAI creates an OpenAI-backed producer.
func NewOpenAI(cfg Config, logger *slog.Logger) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai backend requires an API key")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := openAIDefaultModel
	if cfg.Model != "" {
		model = openai.ChatModel(cfg.Model)
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	schema, err := jsonschema.CompileString("sections.json", sectionsSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to compile sections schema: %w", err)
	}

	return &OpenAI{
		client:     openai.NewClient(opts...),
		model:      model,
		maxRetries: maxRetries,
		schema:     schema,
		logger:     logger.With("producer", BackendOpenAI),
	}, nil
}

// Name returns the backend identifier.
func (o *OpenAI) Name() string {
	return BackendOpenAI
}

// Generate asks the model for structured sections, validates them and
// flattens the result to markdown. The API call retries transient
// failures with backoff.
func (o *OpenAI) Generate(ctx context.Context, ins Instructions) (string, error) {
	prompt := o.buildPrompt(ins)

	var content string
	err := retry.Do(
		func() error {
			resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
				Model: o.model,
				Messages: []openai.ChatCompletionMessageParamUnion{
					openai.SystemMessage(systemPrompt),
					openai.UserMessage(prompt),
				},
			})
			if err != nil {
				return err
			}
			if len(resp.Choices) == 0 {
				return fmt.Errorf("empty completion response")
			}
			content = resp.Choices[0].Message.Content
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(o.maxRetries)),
		retry.Delay(time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.OnRetry(func(n uint, err error) {
			o.logger.Warn("completion retry", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	text, err := o.parseSections(content)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	return text, nil
}

func (o *OpenAI) buildPrompt(ins Instructions) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Write a document titled %q.", ins.Title)
	if ins.Subtitle != "" {
		fmt.Fprintf(&sb, " Subtitle: %q.", ins.Subtitle)
	}
	if ins.SectionCount > 0 {
		fmt.Fprintf(&sb, " Use exactly %d sections.", ins.SectionCount)
	}
	if ins.Prompt != "" {
		sb.WriteString("\n\n")
		sb.WriteString(ins.Prompt)
	}
	return sb.String()
}

// parseSections validates the structured payload and flattens it to
// markdown with heading markers.
func (o *OpenAI) parseSections(content string) (string, error) {
	content = stripCodeFence(content)

	var payload any
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return "", fmt.Errorf("response is not valid JSON: %w", err)
	}
	if err := o.schema.Validate(payload); err != nil {
		return "", fmt.Errorf("response failed schema validation: %w", err)
	}

	var parsed struct {
		Sections []struct {
			Title string `json:"title"`
			Body  string `json:"body"`
		} `json:"sections"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, s := range parsed.Sections {
		fmt.Fprintf(&sb, "# %s\n\n%s\n\n", s.Title, strings.TrimSpace(s.Body))
	}
	return sb.String(), nil
}

// stripCodeFence removes a surrounding markdown code fence if the model
// wrapped its JSON in one.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
