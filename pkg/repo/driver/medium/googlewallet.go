package medium

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/walletobjects/v1"

	"passbridge/config"
	"passbridge/utilities"
)

type GoogleWalletClient struct {
	service *walletobjects.Service
}

func NewGoogleWalletClient(ctx context.Context, conf config.Google) (*GoogleWalletClient, error) {
	// Use the path to the wallet service account credential json file
	service, err := walletobjects.NewService(ctx, option.WithCredentialsFile(conf.ServiceAccountPath))
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet objects service with config path %s: %w", conf.ServiceAccountPath, err)
	}

	return &GoogleWalletClient{service: service}, nil
}

// EnsureClass creates the loyalty class if it does not exist yet. An
// already-existing class is not an error.
func (c *GoogleWalletClient) EnsureClass(ctx context.Context, class *walletobjects.LoyaltyClass) error {
	_, err := c.service.Loyaltyclass.Insert(class).Context(ctx).Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusConflict {
			return nil
		}
		return fmt.Errorf("loyalty class insert failed: %w", err)
	}

	return nil
}

// UpsertObject inserts the loyalty object, falling back to a patch when it
// already exists. The mutation is immediately visible on the next wallet
// sync; no push is needed for Google passes.
func (c *GoogleWalletClient) UpsertObject(ctx context.Context, object *walletobjects.LoyaltyObject) error {
	log := utilities.NewLoggerWithFields(
		"googlewallet.UpsertObject", map[string]interface{}{
			"object_id": object.Id,
		},
	)

	_, err := c.service.Loyaltyobject.Insert(object).Context(ctx).Do()
	if err == nil {
		log.Debug("Loyalty object inserted")
		return nil
	}

	var gerr *googleapi.Error
	if !errors.As(err, &gerr) || gerr.Code != http.StatusConflict {
		return fmt.Errorf("loyalty object insert failed: %w", err)
	}

	if _, err = c.service.Loyaltyobject.Patch(object.Id, object).Context(ctx).Do(); err != nil {
		return fmt.Errorf("loyalty object patch failed: %w", err)
	}

	log.Debug("Loyalty object patched")

	return nil
}

// AddMessage appends a message module for history display in the wallet app.
func (c *GoogleWalletClient) AddMessage(ctx context.Context, objectID, header, body string) error {
	request := &walletobjects.AddMessageRequest{
		Message: &walletobjects.Message{
			Header: header,
			Body:   body,
		},
	}

	if _, err := c.service.Loyaltyobject.Addmessage(objectID, request).Context(ctx).Do(); err != nil {
		return fmt.Errorf("loyalty object add message failed: %w", err)
	}

	return nil
}
