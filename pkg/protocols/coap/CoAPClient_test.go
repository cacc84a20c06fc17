package coap_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/message/codes"
	coapmux "github.com/plgd-dev/go-coap/v3/mux"
	coapnet "github.com/plgd-dev/go-coap/v3/net"
	"github.com/plgd-dev/go-coap/v3/options"
	coapudp "github.com/plgd-dev/go-coap/v3/udp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thingzone/wotlib-go/api"
	"github.com/thingzone/wotlib-go/pkg/protocols/coap"
	"github.com/thingzone/wotlib-go/pkg/td"
)

// makeLampThing builds a Thing whose status property points at the given
// CoAP host
func makeLampThing(t *testing.T, host string) *td.Thing {
	t.Helper()
	thing := td.NewThing("urn:dev:wot:com:example:servient:lamp")
	prop := td.NewProperty(thing, "status", &td.PropertyInit{
		Type:     api.DataTypeString,
		Writable: true,
		Forms: []*td.Form{
			td.NewForm("coap://" + host + "/status"),
		},
	})
	require.NoError(t, thing.AddInteraction(prop))
	action := td.NewAction(thing, "toggle", &td.ActionInit{
		Forms: []*td.Form{
			td.NewForm("mqtt://broker.example.com/things/lamp/actions/toggle"),
		},
	})
	require.NoError(t, thing.AddInteraction(action))
	return thing
}

// startServer serves the given routes on a loopback UDP listener and returns
// its host:port
func startServer(t *testing.T, routes map[string]coapmux.HandlerFunc) string {
	t.Helper()
	router := coapmux.NewRouter()
	for path, handler := range routes {
		require.NoError(t, router.Handle(path, handler))
	}
	listener, err := coapnet.NewListenUDP("udp", "127.0.0.1:0")
	require.NoError(t, err)

	server := coapudp.NewServer(options.WithMux(router))
	go func() {
		_ = server.Serve(listener)
	}()
	t.Cleanup(func() {
		server.Stop()
		_ = listener.Close()
	})
	return listener.LocalAddr().String()
}

// notify transmits one observe notification to a registered client
func notify(cc coapmux.Conn, token message.Token, sequence uint32, payload []byte) {
	m := cc.AcquireMessage(cc.Context())
	defer cc.ReleaseMessage(m)
	m.SetCode(codes.Content)
	m.SetToken(token)
	m.SetContentFormat(message.AppJSON)
	m.SetObserve(sequence)
	m.SetBody(bytes.NewReader(payload))
	_ = cc.WriteMessage(m)
}

func TestIsSupportedInteraction(t *testing.T) {
	thing := makeLampThing(t, "mylamp.example.com")
	client := coap.NewCoAPClient()

	assert.True(t, client.IsSupportedInteraction(thing, "status"))
	assert.False(t, client.IsSupportedInteraction(thing, "toggle"))
	assert.False(t, client.IsSupportedInteraction(thing, "missing"))
	assert.Equal(t, api.ProtocolCoAP, client.Protocol())
}

func TestFormNotFound(t *testing.T) {
	thing := makeLampThing(t, "mylamp.example.com")
	client := coap.NewCoAPClient()
	ctx := context.Background()

	// toggle only has an mqtt form
	_, err := client.InvokeAction(ctx, thing, "toggle", nil)
	assert.ErrorIs(t, err, api.ErrFormNotFound)

	_, err = client.ReadProperty(ctx, thing, "missing")
	assert.ErrorIs(t, err, api.ErrFormNotFound)

	_, err = client.ObserveProperty(thing, "missing")
	assert.ErrorIs(t, err, api.ErrFormNotFound)

	_, err = client.SubscribeEvent(thing, "missing")
	assert.ErrorIs(t, err, api.ErrFormNotFound)
}

func TestCoAPSRequiresDTLSConfig(t *testing.T) {
	thing := td.NewThing("urn:example:thing")
	prop := td.NewProperty(thing, "status", &td.PropertyInit{
		Forms: []*td.Form{td.NewForm("coaps://mylamp.example.com/status")},
	})
	require.NoError(t, thing.AddInteraction(prop))

	client := coap.NewCoAPClient()
	_, err := client.ReadProperty(context.Background(), thing, "status")
	var protocolErr *api.ProtocolError
	require.ErrorAs(t, err, &protocolErr)
	assert.Equal(t, api.ProtocolCoAP, protocolErr.Protocol)
}

func TestReadProperty(t *testing.T) {
	host := startServer(t, map[string]coapmux.HandlerFunc{
		"/status": func(w coapmux.ResponseWriter, r *coapmux.Message) {
			payload, _ := json.Marshal(map[string]interface{}{"value": "on"})
			_ = w.SetResponse(codes.Content, message.AppJSON, bytes.NewReader(payload))
		},
	})
	thing := makeLampThing(t, host)
	client := coap.NewCoAPClient()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	value, err := client.ReadProperty(ctx, thing, "status")
	require.NoError(t, err)
	assert.Equal(t, "on", value)
}

func TestWriteProperty(t *testing.T) {
	written := make(chan interface{}, 1)
	host := startServer(t, map[string]coapmux.HandlerFunc{
		"/status": func(w coapmux.ResponseWriter, r *coapmux.Message) {
			body, err := r.ReadBody()
			if err != nil {
				_ = w.SetResponse(codes.BadRequest, message.TextPlain, nil)
				return
			}
			var decoded struct {
				Value interface{} `json:"value"`
			}
			if json.Unmarshal(body, &decoded) != nil {
				_ = w.SetResponse(codes.BadRequest, message.TextPlain, nil)
				return
			}
			written <- decoded.Value
			_ = w.SetResponse(codes.Changed, message.TextPlain, nil)
		},
	})
	thing := makeLampThing(t, host)
	client := coap.NewCoAPClient()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := client.WriteProperty(ctx, thing, "status", "off")
	require.NoError(t, err)

	select {
	case value := <-written:
		assert.Equal(t, "off", value)
	case <-time.After(time.Second):
		assert.Fail(t, "write never reached the server")
	}
}

func TestWritePropertyServerError(t *testing.T) {
	host := startServer(t, map[string]coapmux.HandlerFunc{
		"/status": func(w coapmux.ResponseWriter, r *coapmux.Message) {
			_ = w.SetResponse(codes.InternalServerError, message.TextPlain, nil)
		},
	})
	thing := makeLampThing(t, host)
	client := coap.NewCoAPClient()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := client.WriteProperty(ctx, thing, "status", "off")
	var protocolErr *api.ProtocolError
	require.ErrorAs(t, err, &protocolErr)
	assert.Equal(t, api.ProtocolCoAP, protocolErr.Protocol)
}

// TestInvokeAction runs both invocation phases against a loopback server:
// the POST returns the invocation id, the status observation then delivers a
// pending status followed by the terminal status that resolves the result.
func TestInvokeAction(t *testing.T) {
	host := startServer(t, map[string]coapmux.HandlerFunc{
		"/toggle": func(w coapmux.ResponseWriter, r *coapmux.Message) {
			switch r.Code() {
			case codes.POST:
				payload, _ := json.Marshal(map[string]interface{}{"invocation": "inv-42"})
				_ = w.SetResponse(codes.Content, message.AppJSON, bytes.NewReader(payload))
			case codes.GET:
				obs, obsErr := r.Options().Observe()
				if obsErr == nil && obs == 0 {
					cc := w.Conn()
					token := r.Token()
					go func() {
						pending, _ := json.Marshal(map[string]interface{}{
							"id": "inv-42", "done": false})
						notify(cc, token, 2, pending)
						time.Sleep(20 * time.Millisecond)
						terminal, _ := json.Marshal(map[string]interface{}{
							"id": "inv-42", "done": true, "result": "on"})
						notify(cc, token, 3, terminal)
					}()
				} else {
					// observation cancelled
					_ = w.SetResponse(codes.Content, message.AppJSON, bytes.NewReader([]byte("{}")))
				}
			}
		},
	})
	thing := td.NewThing("urn:dev:wot:com:example:servient:lamp")
	action := td.NewAction(thing, "toggle", &td.ActionInit{
		Forms: []*td.Form{td.NewForm("coap://" + host + "/toggle")},
	})
	require.NoError(t, thing.AddInteraction(action))
	client := coap.NewCoAPClient()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	result, err := client.InvokeAction(ctx, thing, "toggle", map[string]interface{}{"target": "on"})
	require.NoError(t, err)
	assert.Equal(t, "on", result)
}

// TestObservePropertyLifecycle covers the full life of a property observation:
// registration, two change notifications, and the deregistration triggered by
// disposing the subscription.
func TestObservePropertyLifecycle(t *testing.T) {
	cancelled := make(chan struct{}, 1)
	host := startServer(t, map[string]coapmux.HandlerFunc{
		"/status": func(w coapmux.ResponseWriter, r *coapmux.Message) {
			obs, obsErr := r.Options().Observe()
			switch {
			case obsErr == nil && obs == 0:
				cc := w.Conn()
				token := r.Token()
				go func() {
					first, _ := json.Marshal(map[string]interface{}{"value": "on"})
					notify(cc, token, 2, first)
					time.Sleep(20 * time.Millisecond)
					second, _ := json.Marshal(map[string]interface{}{"value": "off"})
					notify(cc, token, 3, second)
				}()
			case obsErr == nil && obs == 1:
				select {
				case cancelled <- struct{}{}:
				default:
				}
				payload, _ := json.Marshal(map[string]interface{}{"value": "off"})
				_ = w.SetResponse(codes.Content, message.AppJSON, bytes.NewReader(payload))
			default:
				payload, _ := json.Marshal(map[string]interface{}{"value": "on"})
				_ = w.SetResponse(codes.Content, message.AppJSON, bytes.NewReader(payload))
			}
		},
	})
	thing := makeLampThing(t, host)
	client := coap.NewCoAPClient()

	stream, err := client.ObserveProperty(thing, "status")
	require.NoError(t, err)

	changes := make(chan api.PropertyChangeData, 8)
	sub := stream.Subscribe(func(item interface{}) {
		event := item.(api.EmittedEvent)
		changes <- event.Data.(api.PropertyChangeData)
	}, nil, nil)

	waitChange := func() api.PropertyChangeData {
		select {
		case change := <-changes:
			return change
		case <-time.After(5 * time.Second):
			t.Fatal("no notification received")
			return api.PropertyChangeData{}
		}
	}
	assert.Equal(t, "on", waitChange().Value)
	assert.Equal(t, "off", waitChange().Value)

	// disposal must deregister the observation on the server
	sub.Dispose()
	select {
	case <-cancelled:
	case <-time.After(5 * time.Second):
		assert.Fail(t, "observation was not deregistered")
	}
	assert.True(t, sub.Disposed())
}
