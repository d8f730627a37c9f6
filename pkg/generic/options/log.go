package options

import (
	"encoding/json"
	"fmt"
	"github.com/spf13/pflag"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/component-base/config"
	"k8s.io/component-base/logs"
	"k8s.io/component-base/logs/registry"
	"strings"
	"time"
)

const (
	_defaultLogFormat      = "text"
	_defaultVerbosity      = 2
	_defaultFlushFrequency = 5 * time.Second
)

type LoggingConfiguration struct {
	// Refer [Logs Options](https://github.com/kubernetes/component-base/blob/master/logs/options.go) for more information.
	config.LoggingConfiguration
}

func NewDefaultLoggingConfiguration() LoggingConfiguration {
	return LoggingConfiguration{
		config.LoggingConfiguration{
			Format:         _defaultLogFormat,
			FlushFrequency: _defaultFlushFrequency,
			Verbosity:      _defaultVerbosity,
		},
	}
}

func (l *LoggingConfiguration) ValidateAndApply() error {
	o := logs.NewOptions()
	o.Config.Format = l.Format
	if l.FlushFrequency > 0 {
		o.Config.FlushFrequency = l.FlushFrequency
	}
	o.Config.Verbosity = l.Verbosity
	o.Config.VModule = l.VModule
	return o.ValidateAndApply()
}

// marshalLoggingConfig 配置文件中的日志字段
type marshalLoggingConfig struct {
	Format         string                      `json:"format"`
	FlushFrequency metav1.Duration             `json:"flushFrequency"`
	Verbosity      config.VerbosityLevel       `json:"verbosity"`
	VModule        config.VModuleConfiguration `json:"vmodule,omitempty"`
}

func (l *LoggingConfiguration) MarshalJSON() ([]byte, error) {
	return json.Marshal(&marshalLoggingConfig{
		Format:         l.Format,
		FlushFrequency: metav1.Duration{Duration: l.FlushFrequency},
		Verbosity:      l.Verbosity,
		VModule:        l.VModule,
	})
}

func (l *LoggingConfiguration) UnmarshalJSON(bytes []byte) error {
	in := &marshalLoggingConfig{
		Format:         l.Format,
		FlushFrequency: metav1.Duration{Duration: l.FlushFrequency},
		Verbosity:      l.Verbosity,
		VModule:        l.VModule,
	}
	if err := json.Unmarshal(bytes, in); err != nil {
		return err
	}
	l.Format = in.Format
	l.FlushFrequency = in.FlushFrequency.Duration
	l.Verbosity = in.Verbosity
	l.VModule = in.VModule
	return nil
}

// BindLoggingFlags only -v, --vmodule and --logging-format stay visible.
func (l *LoggingConfiguration) BindLoggingFlags(fs *pflag.FlagSet) {
	notHidden := map[string]bool{
		"v":              true,
		"vmodule":        true,
		"logging-format": true,
	}

	logsFs := pflag.NewFlagSet("", pflag.ContinueOnError)
	logs.BindLoggingFlags(&l.LoggingConfiguration, logsFs)
	logsFs.VisitAll(func(f *pflag.Flag) {
		if notHidden[f.Name] {
			if f.Name == "logging-format" {
				formats := fmt.Sprintf(`"%s"`, strings.Join(registry.LogRegistry.List(), `", "`))
				f.Usage = fmt.Sprintf("Sets the log format. Permitted formats: %s.", formats)
			}
			return
		}
		f.Hidden = true
	})

	fs.AddFlagSet(logsFs)
}
