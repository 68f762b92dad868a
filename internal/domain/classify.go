package domain

import (
	"errors"

	"github.com/sirupsen/logrus"
)

// Classify maps any error raised by the pipeline into the stable error
// envelope. Validation failures keep their message; dependency failures are
// named generically per service; everything else becomes INTERNAL_ERROR with
// a fixed message so internal detail never leaks to the caller. The full
// error is logged here, at the one place that sees it last.
func Classify(err error, log *logrus.Logger) *ErrorResponse {
	if log == nil {
		log = logrus.New()
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		return &ErrorResponse{
			Error:     ve.Msg,
			Code:      CodeInvalidInput,
			Timestamp: Timestamp(),
		}
	}

	var se *ServiceError
	if errors.As(err, &se) {
		log.WithError(se.Err).WithField("dependency", se.Dependency).Error("dependency failure")

		msg := "Service unavailable"
		switch se.Dependency {
		case DepEmbedding:
			msg = "Embedding service unavailable"
		case DepIndex:
			msg = "Database service unavailable"
		case DepGeneration:
			msg = "Generation service unavailable"
		}
		return &ErrorResponse{
			Error:     msg,
			Code:      CodeServiceUnavailable,
			Timestamp: Timestamp(),
		}
	}

	log.WithError(err).Error("unclassified failure")
	return &ErrorResponse{
		Error:     "An unexpected error occurred",
		Code:      CodeInternalError,
		Timestamp: Timestamp(),
	}
}
