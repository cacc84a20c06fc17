// Package mqtt with the protocol binding client for MQTT.
// MQTT has no request/response primitive and no per-request isolation, so
// reads pair a request topic with a response topic and action invocations
// correlate multiplexed results through an embedded request id.
package mqtt

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/thingzone/wotlib-go/api"
	"github.com/thingzone/wotlib-go/pkg/observable"
	"github.com/thingzone/wotlib-go/pkg/protocols"
	"github.com/thingzone/wotlib-go/pkg/td"
	"github.com/thingzone/wotlib-go/pkg/wotconfig"
)

// MQTT URI schemes. The secured scheme is preferred during form resolution.
const (
	SchemeMQTTS = "mqtts"
	SchemeMQTT  = "mqtt"
)

const defaultPortMQTT = "1883"
const defaultPortMQTTS = "8883"

// resultTopicSuffix derives the action result topic from the invoke topic
const resultTopicSuffix = "/result"

// MQTTClient implements the protocol client contract for MQTT
type MQTTClient struct {
	// tlsConfig enables the mqtts scheme. Without it only plain mqtt
	// brokers can be reached.
	tlsConfig *tls.Config
	// timeout bounds each suspending operation, DefaultTimeout when zero
	timeout time.Duration
	// qos for publishes and subscriptions
	qos byte
}

// NewMQTTClient creates an MQTT protocol client without TLS support
func NewMQTTClient() *MQTTClient {
	return &MQTTClient{}
}

// NewMQTTSClient creates an MQTT protocol client that connects to mqtts
// brokers with the given TLS configuration.
func NewMQTTSClient(tlsConfig *tls.Config) *MQTTClient {
	return &MQTTClient{tlsConfig: tlsConfig}
}

// NewMQTTClientFromConfig creates an MQTT protocol client with the operation
// timeout and quality of service from the client configuration.
// tlsConfig is optional and enables the mqtts scheme.
func NewMQTTClientFromConfig(config *wotconfig.ClientConfig, tlsConfig *tls.Config) *MQTTClient {
	client := &MQTTClient{tlsConfig: tlsConfig}
	if config != nil {
		client.timeout = time.Duration(config.MqttTimeout) * time.Second
		client.qos = config.MqttQos
	}
	return client
}

// opTimeout returns the configured operation timeout, DefaultTimeout when unset
func (client *MQTTClient) opTimeout() time.Duration {
	if client.timeout > 0 {
		return client.timeout
	}
	return DefaultTimeout
}

// Protocol identifies this client as the MQTT binding
func (client *MQTTClient) Protocol() string {
	return api.ProtocolMQTT
}

// IsSupportedInteraction returns true when any form of the named interaction
// uses the mqtt or mqtts scheme.
func (client *MQTTClient) IsSupportedInteraction(thing *td.Thing, name string) bool {
	return protocols.SupportsInteraction(thing, name, SchemeMQTTS, SchemeMQTT)
}

// ToResultTopic returns the result topic paired with an invoke topic
func ToResultTopic(invokeTopic string) string {
	return invokeTopic + resultTopicSuffix
}

// brokerEndpoint is an MQTT form href split into broker URL and topic
type brokerEndpoint struct {
	brokerURL string
	topic     string
}

// parseHref splits an mqtt(s) href into the paho broker URL and the topic
func parseHref(href string) (*brokerEndpoint, error) {
	parsed, err := url.Parse(href)
	if err != nil || parsed.Host == "" || parsed.Path == "" {
		return nil, fmt.Errorf("%w: invalid mqtt href '%s'", api.ErrFormNotFound, href)
	}
	hostPort := parsed.Host
	transport := "tcp"
	if parsed.Scheme == SchemeMQTTS {
		transport = "ssl"
	}
	if parsed.Port() == "" {
		port := defaultPortMQTT
		if parsed.Scheme == SchemeMQTTS {
			port = defaultPortMQTTS
		}
		hostPort = net.JoinHostPort(parsed.Hostname(), port)
	}
	return &brokerEndpoint{
		brokerURL: fmt.Sprintf("%s://%s", transport, hostPort),
		topic:     strings.Trim(parsed.Path, "/"),
	}, nil
}

// pickEndpoint resolves the form serving the operation into a broker endpoint
func pickEndpoint(thing *td.Thing, forms []*td.Form, name string, op string) (*brokerEndpoint, error) {
	href := protocols.PickHref(thing, forms, op, SchemeMQTTS, SchemeMQTT)
	if href == "" {
		return nil, fmt.Errorf("%w: interaction '%s', operation '%s'", api.ErrFormNotFound, name, op)
	}
	return parseHref(href)
}

// actionResult is the message shape on the result topic
type actionResult struct {
	ID     string      `json:"id"`
	Result interface{} `json:"result,omitempty"`
	Error  *string     `json:"error,omitempty"`
}

// matchActionResult decodes a result-topic message and correlates it to the
// pending invocation. Messages of concurrent invocations and undecodable
// messages return false and are discarded by the caller.
func matchActionResult(payload []byte, invocationID string) (protocols.InvocationStatus, bool) {
	var result actionResult
	if json.Unmarshal(payload, &result) != nil {
		return protocols.InvocationStatus{}, false
	}
	if result.ID != invocationID {
		return protocols.InvocationStatus{}, false
	}
	status := protocols.InvocationStatus{ID: result.ID, Done: true, Result: result.Result}
	if result.Error != nil {
		status.Error = *result.Error
	}
	return status, true
}

// InvokeAction invokes an action on a remote Thing.
// The input is published with a fresh correlation id to the invoke topic and
// the paired result topic is watched for a message carrying the same id.
// Messages with any other id belong to concurrent invocations and are
// discarded.
func (client *MQTTClient) InvokeAction(
	ctx context.Context, thing *td.Thing, name string, input interface{}) (interface{}, error) {

	var forms []*td.Form
	if action := thing.Action(name); action != nil {
		forms = action.Forms()
	}
	endpoint, err := pickEndpoint(thing, forms, name, api.OpInvokeAction)
	if err != nil {
		return nil, err
	}
	opCtx, cancelOp := protocols.EnsureDeadline(ctx, client.opTimeout())
	defer cancelOp()

	conn := newMqttConn(endpoint.brokerURL, client.tlsConfig, client.qos)
	if err = conn.Connect(opCtx); err != nil {
		return nil, err
	}
	defer conn.Close()

	invocationID := uuid.NewString()
	statuses := make(chan protocols.InvocationStatus, 16)
	err = conn.Subscribe(opCtx, ToResultTopic(endpoint.topic), func(topic string, payload []byte) {
		status, matches := matchActionResult(payload, invocationID)
		if !matches {
			// a concurrent invocation's result on the shared topic
			return
		}
		select {
		case statuses <- status:
		case <-opCtx.Done():
		}
	})
	if err != nil {
		return nil, err
	}

	request, err := json.Marshal(map[string]interface{}{"id": invocationID, "input": input})
	if err != nil {
		return nil, err
	}
	if err = conn.Publish(opCtx, endpoint.topic, request); err != nil {
		return nil, err
	}
	logrus.Infof("MQTTClient.InvokeAction: action '%s' submitted, invocation id '%s'", name, invocationID)
	return protocols.AwaitInvocation(opCtx, name, statuses)
}

// ReadProperty reads a property value from a remote Thing.
// A read request is published on the read topic and the first message on the
// paired observe topic carries the value.
func (client *MQTTClient) ReadProperty(
	ctx context.Context, thing *td.Thing, name string) (interface{}, error) {

	var forms []*td.Form
	if prop := thing.Property(name); prop != nil {
		forms = prop.Forms()
	}
	readEndpoint, err := pickEndpoint(thing, forms, name, api.OpReadProperty)
	if err != nil {
		return nil, err
	}
	observeEndpoint, err := pickEndpoint(thing, forms, name, api.OpObserveProperty)
	if err != nil {
		return nil, err
	}
	opCtx, cancelOp := protocols.EnsureDeadline(ctx, client.opTimeout())
	defer cancelOp()

	observeConn := newMqttConn(observeEndpoint.brokerURL, client.tlsConfig, client.qos)
	if err = observeConn.Connect(opCtx); err != nil {
		return nil, err
	}
	defer observeConn.Close()

	values := make(chan interface{}, 1)
	err = observeConn.Subscribe(opCtx, observeEndpoint.topic, func(topic string, payload []byte) {
		var decoded struct {
			Value interface{} `json:"value"`
		}
		if json.Unmarshal(payload, &decoded) != nil {
			return
		}
		select {
		case values <- decoded.Value:
		default:
		}
	})
	if err != nil {
		return nil, err
	}

	readConn := newMqttConn(readEndpoint.brokerURL, client.tlsConfig, client.qos)
	if err = readConn.Connect(opCtx); err != nil {
		return nil, err
	}
	defer readConn.Close()

	request, _ := json.Marshal(map[string]interface{}{"action": "read"})
	if err = readConn.Publish(opCtx, readEndpoint.topic, request); err != nil {
		return nil, err
	}
	select {
	case <-opCtx.Done():
		return nil, opCtx.Err()
	case value := <-values:
		return value, nil
	}
}

// WriteProperty publishes a write request for a remote property.
//
// The MQTT binding write is fire-and-forget: a nil return means the write
// message was delivered to the broker, not that a remote write handler has
// finished executing. This is a materially weaker guarantee than the CoAP
// binding provides.
func (client *MQTTClient) WriteProperty(
	ctx context.Context, thing *td.Thing, name string, value interface{}) error {

	var forms []*td.Form
	if prop := thing.Property(name); prop != nil {
		forms = prop.Forms()
	}
	endpoint, err := pickEndpoint(thing, forms, name, api.OpWriteProperty)
	if err != nil {
		return err
	}
	opCtx, cancelOp := protocols.EnsureDeadline(ctx, client.opTimeout())
	defer cancelOp()

	conn := newMqttConn(endpoint.brokerURL, client.tlsConfig, client.qos)
	if err = conn.Connect(opCtx); err != nil {
		return err
	}
	defer conn.Close()

	request, err := json.Marshal(map[string]interface{}{"action": "write", "value": value})
	if err != nil {
		return err
	}
	return conn.Publish(opCtx, endpoint.topic, request)
}

// ObserveProperty is not supported by the MQTT binding
func (client *MQTTClient) ObserveProperty(
	thing *td.Thing, name string) (*observable.Observable, error) {

	return nil, fmt.Errorf("%w: observe property '%s' over mqtt", api.ErrNotImplemented, name)
}

// SubscribeEvent is not supported by the MQTT binding
func (client *MQTTClient) SubscribeEvent(
	thing *td.Thing, name string) (*observable.Observable, error) {

	return nil, fmt.Errorf("%w: subscribe event '%s' over mqtt", api.ErrNotImplemented, name)
}
