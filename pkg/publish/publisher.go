package publish

import (
	"context"
	"encoding/json"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	s7runtime "harnss7/pkg/protocol/s7/runtime"
	"harnss7/pkg/utils/uuidutil"
	"k8s.io/klog/v2"
	"time"
)

const (
	mqttTimeout       = 3 * time.Second
	disconnectQuiesce = 2000
	timestampLayout   = "2006-01-02T15:04:05.000Z"
)

var ErrPublishTimeout = errors.New("mqtt publish timed out")

type Options struct {
	Broker   string `json:"broker"`             // tcp://host:1883
	ClientID string `json:"clientId,omitempty"` // 为空时生成
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Topic    string `json:"topic"`
	Qos      byte   `json:"qos"`
}

// NewClient connects to the broker of o. The client reconnects on its own.
func NewClient(o *Options) (mqtt.Client, error) {
	clientID := o.ClientID
	if len(clientID) == 0 {
		clientID = uuidutil.NewID("s7gateway")
	}
	opts := mqtt.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(clientID).
		SetUsername(o.Username).
		SetPassword(o.Password).
		SetAutoReconnect(true).
		SetConnectTimeout(mqttTimeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			klog.V(1).InfoS("Lost MQTT connection", "broker", o.Broker, "err", err)
		})
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttTimeout) {
		return nil, errors.Wrapf(ErrPublishTimeout, "connect %s", o.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, errors.Wrapf(err, "connect %s", o.Broker)
	}
	klog.V(2).InfoS("Connected MQTT broker", "broker", o.Broker, "clientId", clientID)
	return client, nil
}

// Publisher turns collector results into timestamped time series messages.
type Publisher struct {
	client    mqtt.Client
	topic     string
	qos       byte
	published *atomic.Int64
	failed    *atomic.Int64
	now       func() time.Time
}

func NewPublisher(client mqtt.Client, topic string, qos byte) *Publisher {
	return &Publisher{
		client:    client,
		topic:     topic,
		qos:       qos,
		published: atomic.NewInt64(0),
		failed:    atomic.NewInt64(0),
		now:       time.Now,
	}
}

// Message the payload for the values of pvr, nil when no variable was read.
func (p *Publisher) Message(pvr *s7runtime.ParseVariableResult) *PublishData {
	if pvr == nil || len(pvr.VariableSlice) == 0 {
		return nil
	}
	pds := make([]PointData, 0, len(pvr.VariableSlice))
	for _, v := range pvr.VariableSlice {
		pds = append(pds, PointData{
			DataPointId: v.GetVariableName(),
			Address:     v.Address,
			Value:       v.GetValue(),
		})
	}
	var errs []string
	for _, err := range pvr.Err {
		errs = append(errs, err.Error())
	}
	return &PublishData{Payload: Payload{Data: []TimeSeriesData{{
		Timestamp: p.now().UTC().Format(timestampLayout),
		Values:    pds,
		Errors:    errs,
	}}}}
}

func (p *Publisher) Publish(pvr *s7runtime.ParseVariableResult) error {
	publishData := p.Message(pvr)
	if publishData == nil {
		return nil
	}
	marshal, err := json.Marshal(publishData)
	if err != nil {
		p.failed.Inc()
		return errors.Wrap(err, "marshal publish data")
	}
	token := p.client.Publish(p.topic, p.qos, false, marshal)
	if !token.WaitTimeout(mqttTimeout) {
		p.failed.Inc()
		return errors.Wrapf(ErrPublishTimeout, "topic %s", p.topic)
	}
	if err := token.Error(); err != nil {
		p.failed.Inc()
		return errors.Wrapf(err, "publish to %s", p.topic)
	}
	p.published.Inc()
	klog.V(5).InfoS("Succeed to publish MQTT", "topic", p.topic, "data", publishData)
	return nil
}

// Run publishes every result until ctx ends or results is closed.
func (p *Publisher) Run(ctx context.Context, results <-chan *s7runtime.ParseVariableResult) {
	for {
		select {
		case <-ctx.Done():
			return
		case pvr, ok := <-results:
			if !ok {
				klog.V(2).InfoS("Stopped to publish data", "topic", p.topic)
				return
			}
			for _, err := range pvr.Err {
				klog.V(2).InfoS("Failed to collect variable", "err", err)
			}
			if err := p.Publish(pvr); err != nil {
				klog.V(1).InfoS("Failed to publish MQTT", "topic", p.topic, "err", err)
			}
		}
	}
}

func (p *Publisher) Published() int64 {
	return p.published.Load()
}

func (p *Publisher) Failed() int64 {
	return p.failed.Load()
}

func (p *Publisher) Close() {
	p.client.Disconnect(disconnectQuiesce)
}
