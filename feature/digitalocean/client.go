package digitalocean

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"inventory-sync/core/httpclient"

	"github.com/digitalocean/godo"
	"golang.org/x/oauth2"
)

// Client lists droplets through the official DigitalOcean SDK.
type Client struct {
	api     *godo.Client
	perPage int
}

// NewClient creates a client from the configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIToken == "" {
		return nil, errors.New("digitalocean api token is required")
	}
	perPage := cfg.PerPage
	if perPage <= 0 {
		perPage = 200
	}

	hc := &http.Client{Transport: &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.APIToken}),
		Base:   httpclient.NewTransport(httpclient.Seconds(cfg.TimeoutSeconds)),
	}}
	opts := []godo.ClientOpt{godo.SetUserAgent("inventory-sync")}
	if cfg.BaseURL != "" {
		opts = append(opts, godo.SetBaseURL(cfg.BaseURL))
	}
	api, err := godo.New(hc, opts...)
	if err != nil {
		return nil, fmt.Errorf("create digitalocean client: %w", err)
	}
	return &Client{api: api, perPage: perPage}, nil
}

// ListDroplets returns every droplet, following pagination. Any failed page
// fails the whole listing.
func (c *Client) ListDroplets(ctx context.Context) ([]Droplet, error) {
	var out []Droplet
	opt := &godo.ListOptions{Page: 1, PerPage: c.perPage}
	for {
		page, resp, err := c.api.Droplets.List(ctx, opt)
		if err != nil {
			return nil, fmt.Errorf("list droplets page %d: %w", opt.Page, err)
		}
		for _, d := range page {
			out = append(out, fromGodo(d))
		}

		if len(page) == 0 || resp.Links == nil || resp.Links.IsLastPage() {
			return out, nil
		}
		opt.Page++
	}
}

func fromGodo(d godo.Droplet) Droplet {
	out := Droplet{
		ID:       int64(d.ID),
		Name:     d.Name,
		Status:   d.Status,
		SizeSlug: d.SizeSlug,
	}
	if d.Region != nil {
		out.Region = Region{Name: d.Region.Name, Slug: d.Region.Slug}
	}
	return out
}
