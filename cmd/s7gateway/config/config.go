package config

import (
	"harnss7/pkg/protocol/s7"
	s7runtime "harnss7/pkg/protocol/s7/runtime"
	"harnss7/pkg/publish"
)

type Config struct {
	Collector *s7.Collector
	Results   <-chan *s7runtime.ParseVariableResult
	// Publisher is nil when no mqtt broker is configured
	Publisher *publish.Publisher
	CertFile  string
	KeyFile   string
}
