package openai

import "github.com/koscakluka/ema-tutor/core/llms"

type openAIMessage struct {
	Type    messageType `json:"type"`
	Role    messageRole `json:"role,omitempty"`
	Content string      `json:"content,omitempty"`
}

type messageRole string

const (
	messageRoleUser messageRole = "user"
)

type messageType string

const (
	messageTypeMessage messageType = "message"
)

type requestBody struct {
	Model              string          `json:"model"`
	Instructions       string          `json:"instructions,omitempty"`
	Input              []openAIMessage `json:"input"`
	PreviousResponseID string          `json:"previous_response_id,omitempty"`
	Temperature        *float64        `json:"temperature,omitempty"`
	MaxOutputTokens    *int            `json:"max_output_tokens,omitempty"`
	Stream             bool            `json:"stream"`
}

func (c *Client) toRequestBody(request llms.Request, stream bool) requestBody {
	body := requestBody{
		Model:              c.model,
		Instructions:       request.Instructions,
		PreviousResponseID: request.PreviousResponseID,
		Temperature:        c.temperature,
		MaxOutputTokens:    c.maxOutputTokens,
		Stream:             stream,
	}
	if request.Temperature != nil {
		body.Temperature = request.Temperature
	}
	if request.MaxOutputTokens != nil {
		body.MaxOutputTokens = request.MaxOutputTokens
	}
	if request.Message != "" {
		body.Input = []openAIMessage{{
			Type:    messageTypeMessage,
			Role:    messageRoleUser,
			Content: request.Message,
		}}
	}
	return body
}

// responseBodyUsage represents token usage details including input tokens,
// output tokens, a breakdown of output tokens, and the total tokens used.
type responseBodyUsage struct {
	// InputTokens represents the number of input tokens.
	InputTokens int `json:"input_tokens"`
	// InputTokensDetails represents a detailed breakdown of the input tokens.
	InputTokensDetails *struct {
		// CachedTokens represents the number of tokens that were retrieved from the
		// cache.
		CachedTokens int `json:"cached_tokens"`
	} `json:"input_tokens_details"`
	// OutputTokens represents the number of output tokens.
	OutputTokens int `json:"output_tokens"`
	// OutputTokensDetails represents a detailed breakdown of the output tokens.
	OutputTokensDetails *struct {
		// ReasoningTokens represents the number of reasoning tokens.
		ReasoningTokens int `json:"reasoning_tokens"`
	} `json:"output_tokens_details"`
	// TotalTokens represents the total number of tokens used.
	TotalTokens int `json:"total_tokens"`
}

func (u *responseBodyUsage) apply(usage *llms.Usage) {
	if u == nil {
		return
	}
	usage.InputTokens = u.InputTokens
	usage.OutputTokens = u.OutputTokens
	usage.TotalTokens = u.TotalTokens
	if u.InputTokensDetails != nil {
		usage.CachedTokens = u.InputTokensDetails.CachedTokens
	}
	if u.OutputTokensDetails != nil {
		usage.ReasoningTokens = u.OutputTokensDetails.ReasoningTokens
	}
}

// errorBody is the error envelope returned with unsuccessful statuses.
type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}
