package server

import (
	"go.opentelemetry.io/otel"

	"github.com/koscakluka/ema-tutor/internal/logging"
)

const scopeName = "github.com/koscakluka/ema-tutor/internal/server"

var (
	tracer = otel.Tracer(scopeName)
	logger = logging.NewLogger(scopeName)
)
