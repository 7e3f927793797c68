package engine

import (
	"github.com/miradorstack/mirador-logrca/internal/models"
)

func classified(service, errorType, host, ts string, category models.Category, severity models.Severity) models.ClassifiedLog {
	return models.ClassifiedLog{
		LogRecord: models.LogRecord{
			Timestamp:   ts,
			Message:     "boom",
			LogLevel:    "error",
			ServiceName: service,
			HostName:    host,
			ErrorType:   errorType,
		},
		Category: category,
		Severity: severity,
	}
}

func group(service, errorType string, category models.Category, first, last string) models.ErrorGroup {
	return models.ErrorGroup{
		Category:        category,
		ServiceName:     service,
		ErrorType:       errorType,
		Count:           1,
		Severity:        models.SeverityMedium,
		FirstOccurrence: first,
		LastOccurrence:  last,
	}
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
