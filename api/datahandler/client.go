package datahandler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/gabrielantonyxaviour/jedi-vault/api"
	"github.com/gabrielantonyxaviour/jedi-vault/interfaces"
)

// Client implements interfaces.NodeBackend over the data API of one node.
// Every call is a single authenticated round trip; there are no retries at
// this layer.
type Client struct {
	node   interfaces.Node
	tokens interfaces.TokenProvider
	client *http.Client
}

// NewClient creates a backend for one node. httpClient may be nil, in which
// case http.DefaultClient is used.
func NewClient(node interfaces.Node, tokens interfaces.TokenProvider, httpClient *http.Client) (*Client, error) {
	if err := node.Validate(); err != nil {
		return nil, err
	}
	if tokens == nil {
		return nil, fmt.Errorf("node %s: token provider is required", node.ID)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{node: node, tokens: tokens, client: httpClient}, nil
}

// Node returns the descriptor of the node this client talks to.
func (c *Client) Node() interfaces.Node { return c.node }

// Create stores partial records on the node.
func (c *Client) Create(ctx context.Context, schema interfaces.SchemaID, records []interfaces.PartialRecord) ([]interfaces.RecordID, error) {
	var resp api.CreateResponse
	err := c.roundTrip(ctx, "create", http.MethodPost, "/data/create",
		api.CreateRequest{Schema: schema, Data: records}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.CreatedIDs, nil
}

// Read lists partial records matching the filter.
func (c *Client) Read(ctx context.Context, schema interfaces.SchemaID, filter interfaces.Filter) ([]interfaces.PartialRecord, error) {
	var resp api.ReadResponse
	err := c.roundTrip(ctx, "read", http.MethodPost, "/data/read",
		api.ReadRequest{Schema: schema, Filter: filter}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Records, nil
}

// Update patches the named fields of one record.
func (c *Client) Update(ctx context.Context, schema interfaces.SchemaID, id interfaces.RecordID, patch map[string]interfaces.Field) (bool, error) {
	var resp api.UpdateResponse
	err := c.roundTrip(ctx, "update", http.MethodPut, "/data/update",
		api.UpdateRequest{Schema: schema, ID: id, Update: patch}, &resp)
	if err != nil {
		return false, err
	}
	return resp.Updated, nil
}

// Delete removes one record. Absent records are not an error.
func (c *Client) Delete(ctx context.Context, schema interfaces.SchemaID, id interfaces.RecordID) (bool, error) {
	path := fmt.Sprintf("/data/delete/%s?schema=%s", id.String(), url.QueryEscape(schema.String()))
	var resp api.DeleteResponse
	err := c.roundTrip(ctx, "delete", http.MethodDelete, path, nil, &resp)
	if err != nil {
		return false, err
	}
	return resp.Deleted, nil
}

// roundTrip performs one authenticated request and decodes the response into
// out. All failure modes surface as *interfaces.NodeError.
func (c *Client) roundTrip(ctx context.Context, operation, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return c.fail(operation, 0, fmt.Errorf("could not encode request: %w", err))
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.node.Endpoint+path, body)
	if err != nil {
		return c.fail(operation, 0, fmt.Errorf("could not initialize request: %w", err))
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.tokens.TokenFor(c.node)
	if err != nil {
		return c.fail(operation, 0, fmt.Errorf("could not obtain access token: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return c.fail(operation, 0, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.fail(operation, resp.StatusCode, fmt.Errorf("could not read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp api.ErrorResponse
		if json.Unmarshal(data, &errResp) == nil && errResp.Error != "" {
			return c.fail(operation, resp.StatusCode, fmt.Errorf("%s", errResp.Error))
		}
		return c.fail(operation, resp.StatusCode, fmt.Errorf("%s", string(data)))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return c.fail(operation, resp.StatusCode, fmt.Errorf("malformed response: %w", err))
	}
	return nil
}

func (c *Client) fail(operation string, status int, cause error) error {
	return &interfaces.NodeError{
		Node:       c.node,
		Operation:  operation,
		StatusCode: status,
		Cause:      cause,
	}
}
