// Package mqtt with a thin connection wrapper around the paho MQTT client.
// Protocol operations open a short-lived connection to the broker named in the
// form href, perform their publishes and subscriptions, and disconnect.
package mqtt

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/thingzone/wotlib-go/api"
)

// DefaultTimeout bounds connecting and each suspending MQTT operation when the
// caller's context carries no deadline of its own.
const DefaultTimeout = 10 * time.Second

// disconnect quiesce period in milliseconds
const disconnectQuiesceMs = 250

// MqttConn is one connection to an MQTT broker
type MqttConn struct {
	brokerURL string
	// tlsConfig enables the mqtts scheme, nil for plain tcp brokers
	tlsConfig  *tls.Config
	pubQos     byte
	subQos     byte
	pahoClient pahomqtt.Client
}

// newMqttConn creates a connection handle for the given broker URL with the
// quality of service for publishes and subscriptions.
// Call Connect before use and Close when done.
func newMqttConn(brokerURL string, tlsConfig *tls.Config, qos byte) *MqttConn {
	return &MqttConn{
		brokerURL: brokerURL,
		tlsConfig: tlsConfig,
		pubQos:    qos,
		subQos:    qos,
	}
}

// waitToken waits for a paho token honoring context cancellation
func waitToken(ctx context.Context, token pahomqtt.Token) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
		return token.Error()
	}
}

// Connect to the broker. The client ID is generated from the hostname and the
// current timestamp, and clean session is used as not all brokers support
// persistence with generated client IDs.
func (conn *MqttConn) Connect(ctx context.Context) error {
	hostName, _ := os.Hostname()
	clientID := fmt.Sprintf("%s-wot-%d", hostName, time.Now().UnixNano()/1000000)

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(conn.brokerURL)
	opts.SetClientID(clientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetConnectTimeout(DefaultTimeout)
	if conn.tlsConfig != nil {
		opts.SetTLSConfig(conn.tlsConfig)
	}

	logrus.Debugf("MqttConn.Connect: connecting to broker %s with clientID=%s", conn.brokerURL, clientID)
	conn.pahoClient = pahomqtt.NewClient(opts)
	if err := waitToken(ctx, conn.pahoClient.Connect()); err != nil {
		return &api.ProtocolError{Protocol: api.ProtocolMQTT,
			Status: fmt.Sprintf("connecting to %s failed", conn.brokerURL), Err: err}
	}
	return nil
}

// Publish a message to a topic and wait for the broker acknowledgement.
// With qos 0 the acknowledgement means delivered to the broker only.
func (conn *MqttConn) Publish(ctx context.Context, topic string, payload []byte) error {
	if conn.pahoClient == nil || !conn.pahoClient.IsConnected() {
		return &api.ProtocolError{Protocol: api.ProtocolMQTT, Status: "no connection with broker"}
	}
	logrus.Debugf("MqttConn.Publish: topic=%s, qos=%d", topic, conn.pubQos)
	token := conn.pahoClient.Publish(topic, conn.pubQos, false, payload)
	if err := waitToken(ctx, token); err != nil {
		return &api.ProtocolError{Protocol: api.ProtocolMQTT,
			Status: fmt.Sprintf("publish on %s failed", topic), Err: err}
	}
	return nil
}

// Subscribe to a topic. The handler runs on the paho receive routine.
func (conn *MqttConn) Subscribe(
	ctx context.Context, topic string, handler func(topic string, payload []byte)) error {

	if conn.pahoClient == nil || !conn.pahoClient.IsConnected() {
		return &api.ProtocolError{Protocol: api.ProtocolMQTT, Status: "no connection with broker"}
	}
	logrus.Debugf("MqttConn.Subscribe: topic=%s, qos=%d", topic, conn.subQos)
	token := conn.pahoClient.Subscribe(topic, conn.subQos,
		func(client pahomqtt.Client, msg pahomqtt.Message) {
			handler(msg.Topic(), msg.Payload())
		})
	if err := waitToken(ctx, token); err != nil {
		return &api.ProtocolError{Protocol: api.ProtocolMQTT,
			Status: fmt.Sprintf("subscribe to %s failed", topic), Err: err}
	}
	return nil
}

// Close the connection to the broker
func (conn *MqttConn) Close() {
	if conn.pahoClient != nil && conn.pahoClient.IsConnected() {
		conn.pahoClient.Disconnect(disconnectQuiesceMs)
	}
	conn.pahoClient = nil
}
