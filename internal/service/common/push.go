//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"

	"github.com/google/uuid"

	"github.com/oshokin/studio-control/internal/config"
	"github.com/oshokin/studio-control/internal/transport/push"
	"github.com/oshokin/studio-control/internal/version"
)

const clientSuffixLength = 8

// DialPush connects to the configured MQTT broker.
func DialPush(ctx context.Context, settings *config.Config, binary string, parts ...string) (*push.MQTT, error) {
	return push.DialMQTT(ctx, push.MQTTOptions{
		Broker:   settings.MQTT.Broker,
		ClientID: PushClientID(settings.MQTT.ClientID, binary, parts...),
		Username: settings.MQTT.Username,
		Password: settings.MQTT.Password,
		QoS:      settings.MQTT.QoS,
		Timeout:  settings.Timeout,
	})
}

// PushClientID returns a broker client id unique to this process. A
// configured id replaces the binary and version but keeps parts, and every
// id ends with a random suffix so consoles sharing a config file do not
// take over each other's session.
func PushClientID(configured, binary string, parts ...string) string {
	id := version.ClientID(binary, parts...)

	if configured != "" {
		id = configured

		for _, p := range parts {
			if p != "" {
				id += "-" + p
			}
		}
	}

	return id + "-" + uuid.NewString()[:clientSuffixLength]
}
