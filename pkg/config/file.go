package config

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/charlie0129/battsense/pkg/prediction"
	"github.com/charlie0129/battsense/pkg/utils/ptr"
)

// EnvDeepSeekAPIKey is consulted when the config file does not set a key.
const EnvDeepSeekAPIKey = "BATTSENSE_DEEPSEEK_API_KEY"

var (
	defaultFileConfig = &RawFileConfig{
		Model: ptr.To(prediction.DefaultModel),
		// Mirrors the "processing" pause users see before results appear.
		ProcessingDelayMs:  ptr.To(2000),
		DeepSeekAPIKey:     ptr.To(""),
		AllowNonRootAccess: ptr.To(false),
		AnalysisCron:       ptr.To(""),
		AnalysisDataset:    ptr.To(""),
	}
)

var _ Config = &File{}

type File struct {
	c        *RawFileConfig
	mu       *sync.RWMutex
	filepath string
}

func NewFile(configPath string) (*File, error) {
	f := &File{
		filepath: configPath,
		mu:       &sync.RWMutex{},
	}
	err := f.Load()
	if err != nil {
		return nil, err
	}

	return f, nil
}

func NewFileFromConfig(c *RawFileConfig, configPath string) *File {
	if c == nil {
		c = &RawFileConfig{}
	}

	f := &File{
		c:        c,
		mu:       &sync.RWMutex{},
		filepath: configPath,
	}

	return f
}

type RawFileConfig struct {
	Model              *string `json:"model,omitempty" yaml:"model,omitempty"`
	ProcessingDelayMs  *int    `json:"processingDelayMs,omitempty" yaml:"processingDelayMs,omitempty"`
	DeepSeekAPIKey     *string `json:"deepseekAPIKey,omitempty" yaml:"deepseekAPIKey,omitempty"`
	AllowNonRootAccess *bool   `json:"allowNonRootAccess,omitempty" yaml:"allowNonRootAccess,omitempty"`
	AnalysisCron       *string `json:"analysisCron,omitempty" yaml:"analysisCron,omitempty"`
	AnalysisDataset    *string `json:"analysisDataset,omitempty" yaml:"analysisDataset,omitempty"`
}

// NewRawFileConfigFromConfig snapshots c with every field populated. The API
// key is masked so the result can be handed to clients.
func NewRawFileConfigFromConfig(c Config) (*RawFileConfig, error) {
	if c == nil {
		return nil, pkgerrors.New("config is nil")
	}

	rawConfig := &RawFileConfig{
		Model:              ptr.To(c.Model()),
		ProcessingDelayMs:  ptr.To(int(c.ProcessingDelay() / time.Millisecond)),
		DeepSeekAPIKey:     ptr.To(maskKey(c.DeepSeekAPIKey())),
		AllowNonRootAccess: ptr.To(c.AllowNonRootAccess()),
		AnalysisCron:       ptr.To(c.AnalysisCron()),
		AnalysisDataset:    ptr.To(c.AnalysisDataset()),
	}

	return rawConfig, nil
}

func maskKey(k string) string {
	if len(k) <= 4 {
		return strings.Repeat("*", len(k))
	}
	return k[:2] + strings.Repeat("*", len(k)-4) + k[len(k)-2:]
}

func (f *File) Model() string {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.c.Model, *defaultFileConfig.Model)
}

func (f *File) ProcessingDelay() time.Duration {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	ms := ptr.Deref(f.c.ProcessingDelayMs, *defaultFileConfig.ProcessingDelayMs)
	if ms < 0 {
		ms = 0
	}
	return time.Duration(ms) * time.Millisecond
}

func (f *File) DeepSeekAPIKey() string {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	key := ptr.Deref(f.c.DeepSeekAPIKey, *defaultFileConfig.DeepSeekAPIKey)
	if key == "" {
		key = os.Getenv(EnvDeepSeekAPIKey)
	}
	return key
}

func (f *File) AllowNonRootAccess() bool {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.c.AllowNonRootAccess, *defaultFileConfig.AllowNonRootAccess)
}

func (f *File) AnalysisCron() string {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.c.AnalysisCron, *defaultFileConfig.AnalysisCron)
}

func (f *File) AnalysisDataset() string {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.c.AnalysisDataset, *defaultFileConfig.AnalysisDataset)
}

func (f *File) SetModel(m string) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.Model = &m
}

func (f *File) SetProcessingDelay(d time.Duration) {
	if f.c == nil {
		panic("config is nil")
	}
	if d < 0 {
		panic("processing delay must not be negative")
	}

	ms := int(d / time.Millisecond)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.ProcessingDelayMs = &ms
}

func (f *File) SetDeepSeekAPIKey(k string) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.DeepSeekAPIKey = &k
}

func (f *File) SetAllowNonRootAccess(b bool) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.AllowNonRootAccess = &b
}

func (f *File) SetAnalysisCron(s string) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.AnalysisCron = &s
}

func (f *File) SetAnalysisDataset(s string) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.AnalysisDataset = &s
}

func (f *File) isYAML() bool {
	ext := strings.ToLower(filepath.Ext(f.filepath))
	return ext == ".yaml" || ext == ".yml"
}

func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fp, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			// If the file does not exist, return the empty config.
			// Do not make f.c a nil.
			f.c = &RawFileConfig{}
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	b, err := io.ReadAll(fp)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}

	if strings.TrimSpace(string(b)) == "" {
		f.c = &RawFileConfig{}
		return nil
	}

	conf := RawFileConfig{}
	if f.isYAML() {
		err = yaml.Unmarshal(b, &conf)
	} else {
		err = json.Unmarshal(b, &conf)
	}
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal config from file %s", f.filepath)
	}
	if conf.Model != nil {
		if _, err := prediction.Lookup(*conf.Model); err != nil {
			return pkgerrors.Wrapf(err, "invalid model in %s", f.filepath)
		}
	}
	f.c = &conf

	return nil
}

func (f *File) Save() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		return pkgerrors.New("config is nil")
	}

	fp, err := os.OpenFile(f.filepath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	if f.isYAML() {
		enc := yaml.NewEncoder(fp)
		enc.SetIndent(2)
		err = enc.Encode(f.c)
		if err == nil {
			err = enc.Close()
		}
	} else {
		enc := json.NewEncoder(fp)
		enc.SetIndent("", "  ")
		err = enc.Encode(f.c)
	}
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to encode config to file %s", f.filepath)
	}

	return nil
}

func (f *File) LogrusFields() logrus.Fields {
	if f.c == nil {
		panic("config is nil")
	}

	return logrus.Fields{
		"model":              f.Model(),
		"processingDelay":    f.ProcessingDelay().String(),
		"deepseekAPIKeySet":  f.DeepSeekAPIKey() != "",
		"allowNonRootAccess": f.AllowNonRootAccess(),
		"analysisCron":       f.AnalysisCron(),
		"analysisDataset":    f.AnalysisDataset(),
	}
}
