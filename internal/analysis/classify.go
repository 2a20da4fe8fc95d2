package analysis

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const classifySystemPrompt = "You are a video editor's assistant. You receive a timed " +
	"transcript of a video and group it into contiguous segments, marking each segment " +
	"as useful content or redundant filler (silence, repetition, false starts, tangents). " +
	"Respond with JSON only."

const classifyInstructions = "Rules:\n" +
	"1) Cover the transcript with non-overlapping segments in chronological order.\n" +
	"2) Set is_redundant true for filler and false for content worth keeping.\n" +
	"3) text is the caption for the segment, empty only when is_redundant is true.\n" +
	"4) confidence is 0..1.\n\n" +
	"Output format:\n" +
	`{"segments":[{"start_time":0.0,"end_time":4.2,"text":"...","is_redundant":false,"confidence":0.9}]}` +
	"\n\nTranscript cues:\n"

// Classifier groups transcript cues into classified time ranges.
type Classifier interface {
	Classify(ctx context.Context, cues []Cue) ([]rawSegment, error)
}

// OpenAIClassifier calls a chat-completions endpoint with a JSON-object
// response format. Any OpenAI-compatible base URL works.
type OpenAIClassifier struct {
	client  openai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

func NewOpenAIClassifier(apiKey, baseURL, model string, timeout time.Duration, logger *slog.Logger) *OpenAIClassifier {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIClassifier{
		client:  openai.NewClient(opts...),
		model:   model,
		timeout: timeout,
		logger:  logger,
	}
}

func (c *OpenAIClassifier) Classify(ctx context.Context, cues []Cue) ([]rawSegment, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, _ := json.Marshal(cues)

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(classifySystemPrompt),
			openai.UserMessage(classifyInstructions + string(payload)),
		},
		Model:       c.model,
		Temperature: openai.Float(0.2),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{Type: "json_object"},
		},
	})
	if err != nil {
		return nil, &AnalysisError{Stage: "classifying", Message: "classification request failed", Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &AnalysisError{Stage: "classifying", Message: "model returned no choices"}
	}

	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	return parseClassification(raw, c.logger), nil
}
