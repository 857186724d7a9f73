package upstream

import (
	"context"
	"net/http"
	"net/url"
)

// Deployment is a model deployment in the Foundry project.
type Deployment struct {
	Name           string `json:"name"`
	Type           string `json:"type,omitempty"`
	ModelName      string `json:"modelName,omitempty"`
	ModelVersion   string `json:"modelVersion,omitempty"`
	ModelPublisher string `json:"modelPublisher,omitempty"`
	ConnectionName string `json:"connectionName,omitempty"`
}

// DeploymentList is one page of deployments.
type DeploymentList struct {
	Value    []Deployment `json:"value"`
	NextLink string       `json:"nextLink,omitempty"`
}

// ListDeployments returns the first page of deployments. A non-empty
// publisher filters by model publisher.
func (c *Client) ListDeployments(ctx context.Context, publisher string) (*DeploymentList, error) {
	var query url.Values
	if publisher != "" {
		query = url.Values{"modelPublisher": {publisher}}
	}

	var list DeploymentList
	if err := c.Do(ctx, "list_deployments", http.MethodGet, "/deployments", query, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// Ping verifies connectivity by listing deployments. One page is enough.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.ListDeployments(ctx, "")
	return err
}
