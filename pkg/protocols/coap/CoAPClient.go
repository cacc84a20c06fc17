// Package coap with the protocol binding client for CoAP.
// CoAP offers native server push through Observe, so both property observation
// and the resolve phase of action invocation suspend until a notification
// arrives instead of polling on a timer.
package coap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	piondtls "github.com/pion/dtls/v3"
	"github.com/plgd-dev/go-coap/v3/dtls"
	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/message/codes"
	"github.com/plgd-dev/go-coap/v3/message/pool"
	netclient "github.com/plgd-dev/go-coap/v3/net/client"
	"github.com/plgd-dev/go-coap/v3/udp"
	udpclient "github.com/plgd-dev/go-coap/v3/udp/client"
	"github.com/sirupsen/logrus"

	"github.com/thingzone/wotlib-go/api"
	"github.com/thingzone/wotlib-go/pkg/observable"
	"github.com/thingzone/wotlib-go/pkg/protocols"
	"github.com/thingzone/wotlib-go/pkg/td"
	"github.com/thingzone/wotlib-go/pkg/wotconfig"
)

// CoAP URI schemes. The secured scheme is preferred during form resolution.
const (
	SchemeCoAPS = "coaps"
	SchemeCoAP  = "coap"
)

const defaultPortCoAP = "5683"
const defaultPortCoAPS = "5684"

// DefaultTimeout bounds each request/response operation when the caller's
// context carries no deadline of its own. Observe streams are not bounded.
const DefaultTimeout = 10 * time.Second

// CoAPClient implements the protocol client contract for CoAP
type CoAPClient struct {
	// dtlsConfig enables the coaps scheme. Without it only plain coap
	// endpoints can be dialled.
	dtlsConfig *piondtls.Config
	// timeout bounds each request/response operation, DefaultTimeout when zero
	timeout time.Duration
}

// NewCoAPClient creates a CoAP protocol client without DTLS support
func NewCoAPClient() *CoAPClient {
	return &CoAPClient{}
}

// NewCoAPSClient creates a CoAP protocol client that dials coaps endpoints
// with the given DTLS configuration.
func NewCoAPSClient(dtlsConfig *piondtls.Config) *CoAPClient {
	return &CoAPClient{dtlsConfig: dtlsConfig}
}

// NewCoAPClientFromConfig creates a CoAP protocol client with the operation
// timeout from the client configuration.
// dtlsConfig is optional and enables the coaps scheme.
func NewCoAPClientFromConfig(config *wotconfig.ClientConfig, dtlsConfig *piondtls.Config) *CoAPClient {
	client := &CoAPClient{dtlsConfig: dtlsConfig}
	if config != nil {
		client.timeout = time.Duration(config.CoapTimeout) * time.Second
	}
	return client
}

// opTimeout returns the configured operation timeout, DefaultTimeout when unset
func (client *CoAPClient) opTimeout() time.Duration {
	if client.timeout > 0 {
		return client.timeout
	}
	return DefaultTimeout
}

// Protocol identifies this client as the CoAP binding
func (client *CoAPClient) Protocol() string {
	return api.ProtocolCoAP
}

// IsSupportedInteraction returns true when any form of the named interaction
// uses the coap or coaps scheme.
func (client *CoAPClient) IsSupportedInteraction(thing *td.Thing, name string) bool {
	return protocols.SupportsInteraction(thing, name, SchemeCoAPS, SchemeCoAP)
}

// isSuccess returns true for a 2.xx response code class
func isSuccess(code codes.Code) bool {
	return code>>5 == 2
}

// queryOptions turns the href query string into CoAP URI-Query options
func queryOptions(endpoint *url.URL, extra ...string) []message.Option {
	opts := make([]message.Option, 0, 2)
	if endpoint.RawQuery != "" {
		for _, query := range strings.Split(endpoint.RawQuery, "&") {
			opts = append(opts, message.Option{ID: message.URIQuery, Value: []byte(query)})
		}
	}
	for _, query := range extra {
		opts = append(opts, message.Option{ID: message.URIQuery, Value: []byte(query)})
	}
	return opts
}

// dial opens a CoAP connection to the endpoint, over DTLS for coaps
func (client *CoAPClient) dial(endpoint *url.URL) (*udpclient.Conn, error) {
	hostPort := endpoint.Host
	if endpoint.Port() == "" {
		port := defaultPortCoAP
		if endpoint.Scheme == SchemeCoAPS {
			port = defaultPortCoAPS
		}
		hostPort = net.JoinHostPort(endpoint.Hostname(), port)
	}
	if endpoint.Scheme == SchemeCoAPS {
		if client.dtlsConfig == nil {
			return nil, &api.ProtocolError{Protocol: api.ProtocolCoAP,
				Status: fmt.Sprintf("no DTLS configuration for %s", endpoint.Host)}
		}
		conn, err := dtls.Dial(hostPort, client.dtlsConfig)
		if err != nil {
			return nil, &api.ProtocolError{Protocol: api.ProtocolCoAP, Status: "dial failed", Err: err}
		}
		return conn, nil
	}
	conn, err := udp.Dial(hostPort)
	if err != nil {
		return nil, &api.ProtocolError{Protocol: api.ProtocolCoAP, Status: "dial failed", Err: err}
	}
	return conn, nil
}

// pickEndpoint resolves the form for the requested operation and parses its href
func pickEndpoint(thing *td.Thing, forms []*td.Form, name string, op string) (*url.URL, error) {
	href := protocols.PickHref(thing, forms, op, SchemeCoAPS, SchemeCoAP)
	if href == "" {
		return nil, fmt.Errorf("%w: interaction '%s', operation '%s'", api.ErrFormNotFound, name, op)
	}
	endpoint, err := url.Parse(href)
	if err != nil {
		return nil, fmt.Errorf("%w: interaction '%s', operation '%s'", api.ErrFormNotFound, name, op)
	}
	return endpoint, nil
}

// InvokeAction invokes an action on a remote Thing.
// Submit: POST the input to the invoke endpoint, receiving an invocation id.
// Resolve: observe the status endpoint keyed by that id and suspend until a
// terminal status arrives.
func (client *CoAPClient) InvokeAction(
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

	conn, err := client.dial(endpoint)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	payload, err := json.Marshal(map[string]interface{}{"input": input})
	if err != nil {
		return nil, err
	}
	response, err := conn.Post(opCtx, endpoint.Path, message.AppJSON, bytes.NewReader(payload),
		queryOptions(endpoint)...)
	if err != nil {
		return nil, &api.ProtocolError{Protocol: api.ProtocolCoAP, Status: "invoke request failed", Err: err}
	}
	if !isSuccess(response.Code()) {
		return nil, &api.ProtocolError{Protocol: api.ProtocolCoAP, Status: response.Code().String()}
	}
	body, err := response.ReadBody()
	if err != nil {
		return nil, &api.ProtocolError{Protocol: api.ProtocolCoAP, Status: "unreadable response", Err: err}
	}
	var submitted struct {
		Invocation string `json:"invocation"`
	}
	if err = json.Unmarshal(body, &submitted); err != nil || submitted.Invocation == "" {
		return nil, &api.ProtocolError{Protocol: api.ProtocolCoAP, Status: "missing invocation id", Err: err}
	}
	logrus.Infof("CoAPClient.InvokeAction: action '%s' submitted, invocation id '%s'",
		name, submitted.Invocation)

	// The observe callback blocks when the channel is full; cancelling the
	// local context releases it once a terminal status was consumed.
	resolveCtx, cancelResolve := context.WithCancel(opCtx)
	defer cancelResolve()

	statuses := make(chan protocols.InvocationStatus, 16)
	observation, err := conn.Observe(resolveCtx, endpoint.Path, func(notification *pool.Message) {
		notifyBody, readErr := notification.ReadBody()
		if readErr != nil {
			return
		}
		var status protocols.InvocationStatus
		if json.Unmarshal(notifyBody, &status) != nil {
			return
		}
		select {
		case statuses <- status:
		case <-resolveCtx.Done():
		}
	}, queryOptions(endpoint, "invocation="+submitted.Invocation)...)
	if err != nil {
		return nil, &api.ProtocolError{Protocol: api.ProtocolCoAP, Status: "status observe failed", Err: err}
	}
	defer observation.Cancel(context.Background())

	return protocols.AwaitInvocation(resolveCtx, name, statuses)
}

// ReadProperty reads a property value from a remote Thing
func (client *CoAPClient) ReadProperty(
	ctx context.Context, thing *td.Thing, name string) (interface{}, error) {

	var forms []*td.Form
	if prop := thing.Property(name); prop != nil {
		forms = prop.Forms()
	}
	endpoint, err := pickEndpoint(thing, forms, name, api.OpReadProperty)
	if err != nil {
		return nil, err
	}
	opCtx, cancelOp := protocols.EnsureDeadline(ctx, client.opTimeout())
	defer cancelOp()

	conn, err := client.dial(endpoint)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	response, err := conn.Get(opCtx, endpoint.Path, queryOptions(endpoint)...)
	if err != nil {
		return nil, &api.ProtocolError{Protocol: api.ProtocolCoAP, Status: "read request failed", Err: err}
	}
	if !isSuccess(response.Code()) {
		return nil, &api.ProtocolError{Protocol: api.ProtocolCoAP, Status: response.Code().String()}
	}
	body, err := response.ReadBody()
	if err != nil {
		return nil, &api.ProtocolError{Protocol: api.ProtocolCoAP, Status: "unreadable response", Err: err}
	}
	var decoded struct {
		Value interface{} `json:"value"`
	}
	if err = json.Unmarshal(body, &decoded); err != nil {
		return nil, &api.ProtocolError{Protocol: api.ProtocolCoAP, Status: "invalid payload", Err: err}
	}
	return decoded.Value, nil
}

// WriteProperty updates a property value on a remote Thing.
// The write returns once the remote side confirms the update.
func (client *CoAPClient) WriteProperty(
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

	conn, err := client.dial(endpoint)
	if err != nil {
		return err
	}
	defer conn.Close()

	payload, err := json.Marshal(map[string]interface{}{"value": value})
	if err != nil {
		return err
	}
	response, err := conn.Post(opCtx, endpoint.Path, message.AppJSON, bytes.NewReader(payload),
		queryOptions(endpoint)...)
	if err != nil {
		return &api.ProtocolError{Protocol: api.ProtocolCoAP, Status: "write request failed", Err: err}
	}
	if !isSuccess(response.Code()) {
		return &api.ProtocolError{Protocol: api.ProtocolCoAP, Status: response.Code().String()}
	}
	return nil
}

// ObserveProperty returns the change stream of a remote property, backed by a
// CoAP Observe registration. Each notification carries {"value": ...}.
func (client *CoAPClient) ObserveProperty(
	thing *td.Thing, name string) (*observable.Observable, error) {

	var forms []*td.Form
	if prop := thing.Property(name); prop != nil {
		forms = prop.Forms()
	}
	endpoint, err := pickEndpoint(thing, forms, name, api.OpObserveProperty)
	if err != nil {
		return nil, err
	}
	return client.newObserveStream(endpoint, func(payload []byte) (interface{}, bool) {
		var decoded struct {
			Value interface{} `json:"value"`
		}
		if json.Unmarshal(payload, &decoded) != nil {
			return nil, false
		}
		return api.EmittedEvent{
			Name: name,
			Data: api.PropertyChangeData{Name: name, Value: decoded.Value},
		}, true
	}), nil
}

// SubscribeEvent returns the stream of a remote event, backed by a CoAP
// Observe registration. Each notification carries {"data": ...}; empty
// notifications are skipped.
func (client *CoAPClient) SubscribeEvent(
	thing *td.Thing, name string) (*observable.Observable, error) {

	var forms []*td.Form
	if event := thing.Event(name); event != nil {
		forms = event.Forms()
	}
	endpoint, err := pickEndpoint(thing, forms, name, api.OpSubscribeEvent)
	if err != nil {
		return nil, err
	}
	return client.newObserveStream(endpoint, func(payload []byte) (interface{}, bool) {
		if len(payload) == 0 {
			return nil, false
		}
		var decoded struct {
			Data interface{} `json:"data"`
		}
		if json.Unmarshal(payload, &decoded) != nil {
			return nil, false
		}
		return api.EmittedEvent{Name: name, Data: decoded.Data}, true
	}), nil
}

// newObserveStream builds an observable around a CoAP Observe registration.
// Disposal marks the subscription inactive, cancels the server-push
// registration and cancels any notification wait still in flight, so neither
// a live registration nor a dangling suspended wait survives disposal.
func (client *CoAPClient) newObserveStream(
	endpoint *url.URL, buildItem func(payload []byte) (interface{}, bool)) *observable.Observable {

	return observable.New(func(sub *observable.Subscriber) func() {
		observeCtx, cancelObserve := context.WithCancel(context.Background())

		state := struct {
			sync.Mutex
			active      bool
			conn        *udpclient.Conn
			observation netclient.Observation
		}{active: true}

		go func() {
			conn, err := client.dial(endpoint)
			if err != nil {
				sub.Fail(err)
				return
			}
			state.Lock()
			if !state.active {
				state.Unlock()
				conn.Close()
				return
			}
			state.conn = conn
			state.Unlock()

			observation, err := conn.Observe(observeCtx, endpoint.Path, func(notification *pool.Message) {
				payload, readErr := notification.ReadBody()
				if readErr != nil {
					return
				}
				if item, isItem := buildItem(payload); isItem {
					sub.Push(item)
				}
			}, queryOptions(endpoint)...)
			if err != nil {
				sub.Fail(&api.ProtocolError{Protocol: api.ProtocolCoAP, Status: "observe failed", Err: err})
				conn.Close()
				return
			}
			state.Lock()
			if !state.active {
				state.Unlock()
				observation.Cancel(context.Background())
				conn.Close()
				return
			}
			state.observation = observation
			state.Unlock()
		}()

		return func() {
			state.Lock()
			state.active = false
			observation := state.observation
			conn := state.conn
			state.observation = nil
			state.conn = nil
			state.Unlock()

			if observation != nil {
				if err := observation.Cancel(context.Background()); err != nil {
					logrus.Warnf("CoAPClient: cancelling observation of %s: %s", endpoint, err)
				}
			}
			cancelObserve()
			if conn != nil {
				conn.Close()
			}
		}
	})
}
