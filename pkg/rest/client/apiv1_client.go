// Package client provides a basic REST client for the form mailer submission API.
package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/formmailer/formmailer/pkg/rest/model"
)

// Client accesses the REST API v1
type Client struct {
	restClient
}

// New creates a new v1 REST API client given the base URL of a form mailer server, ex:
// "http://localhost:9080"
func New(baseURL string, opts ...func(*ClientOptions)) (*Client, error) {
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	options := getDefaultClientOptions()
	for _, opt := range opts {
		opt(options)
	}
	c := &Client{
		restClient{
			client: &http.Client{
				Timeout:   options.timeout,
				Transport: options.transport,
			},
			baseURL: parsedURL,
		},
	}
	return c, nil
}

// ListForm returns the stored submissions of the named form, oldest first.
func (c *Client) ListForm(ctx context.Context, form string) (headers []*SubmissionHeader, err error) {
	uri := "/api/v1/forms/" + form + "/submissions"
	err = c.doJSON(ctx, "GET", uri, &headers)
	if err != nil {
		return nil, err
	}
	for _, h := range headers {
		h.client = c
	}
	return
}

// GetSubmission returns a stored submission with its fields.
func (c *Client) GetSubmission(ctx context.Context, id string) (sub *Submission, err error) {
	uri := "/api/v1/submissions/" + url.PathEscape(id)
	err = c.doJSON(ctx, "GET", uri, &sub)
	if err != nil {
		return nil, err
	}
	sub.client = c
	return
}

// DeleteSubmission removes a stored submission.
func (c *Client) DeleteSubmission(ctx context.Context, id string) error {
	uri := "/api/v1/submissions/" + url.PathEscape(id)
	return c.doJSON(ctx, "DELETE", uri, nil)
}

// SubmissionHeader represents a stored submission sans fields
type SubmissionHeader struct {
	*model.JSONSubmissionHeaderV1
	client *Client
}

// GetSubmission returns this submission with its fields
func (h *SubmissionHeader) GetSubmission(ctx context.Context) (*Submission, error) {
	return h.client.GetSubmission(ctx, h.ID)
}

// Delete removes this submission
func (h *SubmissionHeader) Delete(ctx context.Context) error {
	return h.client.DeleteSubmission(ctx, h.ID)
}

// Submission represents a stored submission including its fields
type Submission struct {
	*model.JSONSubmissionV1
	client *Client
}

// Value returns the value of the named field.
func (s *Submission) Value(name string) (string, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Delete removes this submission
func (s *Submission) Delete(ctx context.Context) error {
	return s.client.DeleteSubmission(ctx, s.ID)
}
