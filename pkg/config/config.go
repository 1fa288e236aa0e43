package config

import (
	"time"

	"github.com/sirupsen/logrus"
)

type Config interface {
	Model() string
	ProcessingDelay() time.Duration
	DeepSeekAPIKey() string
	AllowNonRootAccess() bool
	AnalysisCron() string
	AnalysisDataset() string

	SetModel(string)
	SetProcessingDelay(time.Duration)
	SetDeepSeekAPIKey(string)
	SetAllowNonRootAccess(bool)
	SetAnalysisCron(string)
	SetAnalysisDataset(string)

	LogrusFields() logrus.Fields

	// Load reads the configuration from the source.
	Load() error
	// Save saves the configuration to the source.
	Save() error
}
