package lessons

import "github.com/koscakluka/ema-tutor/internal/logging"

const scopeName = "github.com/koscakluka/ema-tutor/core/lessons"

var logger = logging.NewLogger(scopeName)
