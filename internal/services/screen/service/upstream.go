package service

import (
	"context"
	"net/http"
	"net/url"

	"gatekeep/internal/core/httpcall"
	perr "gatekeep/internal/platform/errors"
	"gatekeep/internal/services/screen/domain"
)

// secondaryClient adapts the retrying client to the SecondaryPort.
//
// Protocol convention: the secondary classifier signals a positive detection
// with a 401 status. That is not an auth fault; it is the application-level
// "flagged" answer and is decoded here, in one place, so the rest of the
// pipeline only ever sees a clean SecondaryResult
type secondaryClient struct {
	client *httpcall.Client
	url    string
}

// NewSecondaryClient builds the SecondaryPort over an httpcall client
func NewSecondaryClient(client *httpcall.Client, rawurl string) domain.SecondaryPort {
	return &secondaryClient{client: client, url: rawurl}
}

// Check posts the message and decodes the detection convention
func (c *secondaryClient) Check(ctx context.Context, message string) (domain.SecondaryResult, error) {
	resp, err := c.client.PostForm(ctx, c.url, url.Values{"message": {message}})
	if err != nil {
		return domain.SecondaryResult{}, err
	}

	switch {
	case resp.Status == http.StatusUnauthorized:
		return domain.SecondaryResult{Detected: true}, nil
	case resp.OK():
		return domain.SecondaryResult{Detected: false}, nil
	default:
		return domain.SecondaryResult{}, perr.Unavailablef("secondary classifier returned %d", resp.Status)
	}
}

// generatorClient adapts the retrying client to the GeneratorPort
type generatorClient struct {
	client *httpcall.Client
	url    string
}

// NewGeneratorClient builds the GeneratorPort over an httpcall client
func NewGeneratorClient(client *httpcall.Client, rawurl string) domain.GeneratorPort {
	return &generatorClient{client: client, url: rawurl}
}

// Generate posts the message and returns the response body verbatim
func (c *generatorClient) Generate(ctx context.Context, message string) (string, error) {
	resp, err := c.client.PostForm(ctx, c.url, url.Values{"message": {message}})
	if err != nil {
		return "", err
	}
	if !resp.OK() {
		return "", perr.Unavailablef("generation service returned %d", resp.Status)
	}
	return string(resp.Body), nil
}
