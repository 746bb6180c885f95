package medium

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	"github.com/sideshow/apns2"
	"github.com/spf13/cast"

	"passbridge/config"
	"passbridge/utilities"
)

// ErrPushTokenGone marks a token APNs reports as no longer registered. The
// dispatcher prunes the matching registration instead of retrying forever.
var ErrPushTokenGone = errors.New("push token no longer registered")

type APNSClient struct {
	client *apns2.Client
	topic  string
}

func NewAPNSClient(conf config.Apple) (*APNSClient, error) {
	cert, err := tls.LoadX509KeyPair(conf.CertPath, conf.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("loading apns certificate failed: %w", err)
	}

	client := apns2.NewClient(cert)
	if conf.APNsProduction {
		client = client.Production()
	} else {
		client = client.Development()
	}
	client.HTTPClient.Timeout = cast.ToDuration(conf.PushTimeout)

	return &APNSClient{
		client: client,
		topic:  conf.PassTypeID,
	}, nil
}

// PushUpdate sends the empty-payload silent push that tells a device to
// re-fetch its pass. The push is the signal, never the content; the device
// pulls fresh bytes through the web service afterwards.
func (c *APNSClient) PushUpdate(ctx context.Context, pushToken string) error {
	log := utilities.NewLoggerWithFields(
		"apns.PushUpdate", map[string]interface{}{
			"topic": c.topic,
		},
	)

	notification := &apns2.Notification{
		DeviceToken: pushToken,
		Topic:       c.topic,
		Payload:     []byte(`{}`),
	}

	resp, err := c.client.PushWithContext(ctx, notification)
	if err != nil {
		return fmt.Errorf("apns push failed: %w", err)
	}

	if !resp.Sent() {
		if resp.Reason == apns2.ReasonUnregistered {
			return ErrPushTokenGone
		}
		return fmt.Errorf("apns rejected push: %s", resp.Reason)
	}

	log.Debug("Silent push delivered")

	return nil
}
