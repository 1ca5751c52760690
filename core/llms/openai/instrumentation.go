package openai

import (
	"go.opentelemetry.io/otel"

	"github.com/koscakluka/ema-tutor/internal/logging"
)

const scopeName = "github.com/koscakluka/ema-tutor/core/llms/openai"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = logging.NewLogger(scopeName)
)
