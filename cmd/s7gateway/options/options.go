package options

import (
	"fmt"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"harnss7/cmd/s7gateway/config"
	baseoptions "harnss7/pkg/generic/options"
	"harnss7/pkg/protocol/s7"
	s7runtime "harnss7/pkg/protocol/s7/runtime"
	"harnss7/pkg/publish"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/klog/v2"
	"time"
)

type Options struct {
	Port      string                  `json:"port"`
	Wait      metav1.Duration         `json:"graceful-timeout"`
	CertFile  string                  `json:"certFile,omitempty"`
	KeyFile   string                  `json:"keyFile,omitempty"`
	PLC       PLCOptions              `json:"plc"`
	MQTT      publish.Options         `json:"mqtt"`
	Collector CollectorOptions        `json:"collector"`
	Variables s7runtime.VariableSlice `json:"variables"`
	baseoptions.BaseOptions
}

type PLCOptions struct {
	Host        string          `json:"host"`    // 控制器地址
	Port        uint            `json:"port"`    // 默认 102
	Rack        uint8           `json:"rack"`    // 机架号
	Slot        uint8           `json:"slot"`    // 槽位号
	CPU         string          `json:"cpu"`     // s7200 s7300 s7400 s71200 s71500
	PDUSize     uint16          `json:"pduSize"` // 请求的 pdu 大小
	Timeout     metav1.Duration `json:"timeout"`
	DialTimeout metav1.Duration `json:"dialTimeout"`
}

type CollectorOptions struct {
	Cycle       metav1.Duration `json:"cycle"`
	Connections int             `json:"connections,omitempty"`
}

const (
	_defaultPort    = "32200"
	_defaultWait    = 15 * time.Second
	_defaultCPU     = "s71500"
	_defaultSlot    = 1
	_defaultPDUSize = 960
	_defaultQos     = 1
)

func NewDefaultPLCOptions() PLCOptions {
	return PLCOptions{
		Port:        s7.DefaultPort,
		Slot:        _defaultSlot,
		CPU:         _defaultCPU,
		PDUSize:     _defaultPDUSize,
		Timeout:     metav1.Duration{Duration: s7.DefaultTimeout},
		DialTimeout: metav1.Duration{Duration: s7.DefaultDialTimeout},
	}
}

func NewDefaultOptions() *Options {
	return &Options{
		Port:        _defaultPort,
		Wait:        metav1.Duration{Duration: _defaultWait},
		PLC:         NewDefaultPLCOptions(),
		MQTT:        publish.Options{Qos: _defaultQos},
		Collector:   CollectorOptions{Cycle: metav1.Duration{Duration: s7.DefaultCycle}},
		BaseOptions: baseoptions.NewDefaultBaseOptions(),
	}
}

func (o *PLCOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Host, "plc-host", o.Host, "Host name or IP of the controller")
	fs.UintVar(&o.Port, "plc-port", o.Port, "ISO-on-TCP port of the controller")
	fs.Uint8Var(&o.Rack, "rack", o.Rack, "Rack of the cpu, 0..7")
	fs.Uint8Var(&o.Slot, "slot", o.Slot, "Slot of the cpu, 0..31")
	fs.StringVar(&o.CPU, "cpu", o.CPU, "Cpu class, one of s7200, s7300, s7400, s71200, s71500")
	fs.Uint16Var(&o.PDUSize, "pdu-size", o.PDUSize, "PDU size requested during setup, the controller may negotiate it down")
	fs.DurationVar(&o.Timeout.Duration, "timeout", o.Timeout.Duration, "Deadline of every request/response exchange")
	fs.DurationVar(&o.DialTimeout.Duration, "dial-timeout", o.DialTimeout.Duration, "Deadline of the tcp connect")
}

func (o *Options) AddFlags(fs *pflag.FlagSet) {
	// refer to node port assignment https://rancher.com/docs/rancher/v2.x/en/installation/requirements/ports/#commonly-used-ports
	fs.StringVarP(&o.Port, "port", "P", o.Port, "Port exposed")
	fs.DurationVar(&o.Wait.Duration, "graceful-timeout", o.Wait.Duration, "The duration for which the server gracefully wait for existing connections to finish - e.g. 15s or 1m")
	fs.StringVar(&o.CertFile, "tls-cert-file", o.CertFile, "File containing the x509 certificate for HTTPS")
	fs.StringVar(&o.KeyFile, "tls-private-key-file", o.KeyFile, "File containing the x509 private key matching --tls-cert-file")
	o.PLC.AddFlags(fs)
	fs.StringVar(&o.MQTT.Broker, "mqtt-broker", o.MQTT.Broker, "MQTT broker url, e.g. tcp://localhost:1883, values are not published when empty")
	fs.StringVar(&o.MQTT.Topic, "mqtt-topic", o.MQTT.Topic, "Topic the collected values are published to, defaults to data/s7/v1/<plc-host>")
	fs.StringVar(&o.MQTT.ClientID, "mqtt-client-id", o.MQTT.ClientID, "MQTT client id, generated when empty")
	fs.StringVar(&o.MQTT.Username, "mqtt-username", o.MQTT.Username, "MQTT username")
	fs.StringVar(&o.MQTT.Password, "mqtt-password", o.MQTT.Password, "MQTT password")
	fs.Uint8Var(&o.MQTT.Qos, "mqtt-qos", o.MQTT.Qos, "MQTT qos of published messages, 0..2")
	fs.DurationVar(&o.Collector.Cycle.Duration, "cycle", o.Collector.Cycle.Duration, "Pause between two polls of the configured variables")
	fs.IntVar(&o.Collector.Connections, "connections", o.Collector.Connections, "Pooled connections of the collector, derived from the number of variables when 0")
}

func (o *PLCOptions) ConnectionOptions() s7.ConnectionOptions {
	return s7.ConnectionOptions{
		Address: &s7runtime.S7Address{
			Location: o.Host,
			Option: &s7runtime.S7AddressOption{
				Port: o.Port,
				Rack: o.Rack,
				Slot: o.Slot,
			},
		},
		CPU:         o.CPU,
		PDUSize:     o.PDUSize,
		Timeout:     o.Timeout.Duration,
		DialTimeout: o.DialTimeout.Duration,
	}
}

func (o *Options) Config() (*config.Config, error) {
	collector, results, err := s7.NewCollector(s7.CollectorOptions{
		Connection:  o.PLC.ConnectionOptions(),
		Variables:   o.Variables,
		Cycle:       o.Collector.Cycle.Duration,
		Connections: o.Collector.Connections,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create s7 collector")
	}
	c := &config.Config{
		Collector: collector,
		Results:   results,
		CertFile:  o.CertFile,
		KeyFile:   o.KeyFile,
	}

	if len(o.MQTT.Broker) == 0 {
		klog.V(1).InfoS("No MQTT broker configured, collected values are not published")
		return c, nil
	}
	client, err := publish.NewClient(&o.MQTT)
	if err != nil {
		return nil, err
	}
	topic := o.MQTT.Topic
	if len(topic) == 0 {
		topic = fmt.Sprintf("data/s7/v1/%s", o.PLC.Host)
	}
	c.Publisher = publish.NewPublisher(client, topic, o.MQTT.Qos)
	return c, nil
}
