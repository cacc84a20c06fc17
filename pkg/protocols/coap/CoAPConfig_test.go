// White-box test of the configuration plumbing into the operation deadline.
package coap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/thingzone/wotlib-go/pkg/wotconfig"
)

func TestClientFromConfig(t *testing.T) {
	config := wotconfig.CreateDefaultClientConfig()
	config.CoapTimeout = 5

	client := NewCoAPClientFromConfig(config, nil)
	assert.Equal(t, 5*time.Second, client.opTimeout())

	// a nil configuration falls back to the default
	client = NewCoAPClientFromConfig(nil, nil)
	assert.Equal(t, DefaultTimeout, client.opTimeout())
}
