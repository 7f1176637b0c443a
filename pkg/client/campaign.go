package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"settlement-engine/pkg/config"
	"settlement-engine/pkg/errutil"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"
)

var Module = fx.Module("collaborators",
	fx.Provide(
		NewCampaignClient,
		NewUserClient,
	),
)

// Deliverable is the campaign collaborator's view of one piece of content a
// creator owes under an application.
type Deliverable struct {
	ID            string     `json:"id"`
	ApplicationID string     `json:"application_id"`
	Status        string     `json:"status"`
	AgreedAmount  *string    `json:"agreed_amount,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// Completed reports whether the deliverable counts toward base earnings.
func (d Deliverable) Completed() bool {
	return d.Status == "completed" || d.Status == "approved"
}

// CampaignClient reaches the campaign/deliverable collaborator service.
type CampaignClient interface {
	GetDeliverables(ctx context.Context, applicationID string) ([]Deliverable, error)
	GetCampaignStatus(ctx context.Context, campaignID string) (string, error)
	NotifySpendUpdate(ctx context.Context, campaignID string, amount decimal.Decimal) error
}

type campaignClient struct {
	baseURL string
	http    *http.Client
}

func NewCampaignClient(cfg *config.Config) CampaignClient {
	return &campaignClient{
		baseURL: cfg.Collaborators.CampaignURL,
		http:    &http.Client{Timeout: cfg.Collaborators.Timeout},
	}
}

func (c *campaignClient) GetDeliverables(ctx context.Context, applicationID string) ([]Deliverable, error) {
	var out struct {
		Deliverables []Deliverable `json:"deliverables"`
	}
	if err := c.get(ctx, fmt.Sprintf("/api/v1/applications/%s/deliverables", applicationID), &out); err != nil {
		return nil, err
	}
	return out.Deliverables, nil
}

func (c *campaignClient) GetCampaignStatus(ctx context.Context, campaignID string) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.get(ctx, fmt.Sprintf("/api/v1/campaigns/%s/status", campaignID), &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

func (c *campaignClient) NotifySpendUpdate(ctx context.Context, campaignID string, amount decimal.Decimal) error {
	body, err := json.Marshal(map[string]string{"amount": amount.StringFixed(2)})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+fmt.Sprintf("/api/v1/campaigns/%s/spend", campaignID), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errutil.BadGateway("campaign service unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return errutil.BadGateway(fmt.Sprintf("campaign service returned %d", resp.StatusCode), nil)
	}
	return nil
}

func (c *campaignClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errutil.BadGateway("campaign service unreachable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errutil.NotFound("campaign resource not found", nil)
	case resp.StatusCode >= http.StatusBadRequest:
		return errutil.BadGateway(fmt.Sprintf("campaign service returned %d", resp.StatusCode), nil)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
