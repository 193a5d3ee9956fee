// Package logging provides structured logging using uber/zap.
//
// Production mode writes JSON to stderr; development mode writes colored
// console output. Components take a *Logger and derive a named child:
//
//	logger := logging.NewDefault().Component("analyzer")
//	logger.Info("NSFW content detected", zap.Float64("confidence", 0.8))
//
// A nil *Logger is tolerated through OrNop.
package logging
