package factories

import (
	"context"
	"errors"

	"captionkit/core"
	"captionkit/handlers/transport"
	"captionkit/metrics"
	"captionkit/transports/livekit"
	"captionkit/transports/local"
)

// TransportFactoryConfig configures the local audio devices and the call's
// data channel. Without LiveKitConfig captions stay on this machine.
type TransportFactoryConfig struct {
	Audio         local.Config    `json:"audio"`
	LiveKitConfig *livekit.Config `json:"livekit,omitempty"`
}

// ProviderKeys holds credentials for transport providers.
// Pass to TransportFactoryConfig.InjectProviderKeys after loading from JSON
// so that secrets are not stored in config files.
type ProviderKeys struct {
	LiveKitURL       string
	LiveKitAPIKey    string
	LiveKitAPISecret string
	LiveKitToken     string
}

// DefaultTransportFactoryConfig returns local audio defaults and no call.
func DefaultTransportFactoryConfig() TransportFactoryConfig {
	return TransportFactoryConfig{Audio: local.DefaultConfig()}
}

// InjectProviderKeys applies credentials to the config only when the existing value is empty,
// so keys already set in the config file are preserved.
func (c *TransportFactoryConfig) InjectProviderKeys(keys ProviderKeys) {
	if c.LiveKitConfig == nil {
		return
	}
	lk := c.LiveKitConfig
	if lk.URL == "" {
		lk.URL = keys.LiveKitURL
	}
	if lk.APIKey == "" {
		lk.APIKey = keys.LiveKitAPIKey
	}
	if lk.APISecret == "" {
		lk.APISecret = keys.LiveKitAPISecret
	}
	if lk.Token == "" {
		lk.Token = keys.LiveKitToken
	}
}

// Devices are the endpoints a session runs on. Close releases the call.
type Devices struct {
	Microphone  transport.Microphone
	Speaker     transport.Speaker
	DataChannel transport.DataChannel
	Close       func()
}

// BuildDevices opens the call connection and prepares the local audio
// devices. Audio devices are opened later by the session.
func (c TransportFactoryConfig) BuildDevices(ctx context.Context, m *metrics.Metrics, logger *core.Logger) (Devices, error) {
	devices := Devices{
		Microphone: local.NewMicrophone(c.Audio, logger),
		Speaker:    local.NewSpeaker(logger),
		Close:      func() {},
	}
	if c.LiveKitConfig == nil {
		logger.Info("no call configured; captions stay local")
		return devices, nil
	}
	if c.LiveKitConfig.URL == "" {
		return Devices{}, errors.New("livekit: url is required")
	}
	channel, err := livekit.Connect(ctx, *c.LiveKitConfig, logger, m)
	if err != nil {
		return Devices{}, err
	}
	devices.DataChannel = channel
	devices.Close = channel.Close
	return devices, nil
}
