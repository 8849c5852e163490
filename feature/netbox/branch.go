package netbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// MainBranch names the main schema. Selecting it means no branch header.
const MainBranch = "main"

const branchesPath = "/api/plugins/branching/branches/"

// branchingConstraint is the NetBox version range the branching plugin supports.
var branchingConstraint = mustConstraint(">= 4.1.0")

var (
	// ErrBranchNotFound is returned when a branch is missing and creation was not forced.
	ErrBranchNotFound = errors.New("branch does not exist")
	// ErrBranchingUnsupported is returned when NetBox cannot serve branches.
	ErrBranchingUnsupported = errors.New("branching is not supported by this NetBox")
)

// BranchOptions controls branch selection.
type BranchOptions struct {
	// Force creates the branch when it does not exist.
	Force bool
	// Timeout bounds the wait for the branch to become ready.
	Timeout time.Duration
	// PollInterval is the delay between readiness checks.
	PollInterval time.Duration
}

// CheckBranching verifies that the NetBox version supports branching.
func (c *Client) CheckBranching(ctx context.Context) error {
	status, err := c.Status(ctx)
	if err != nil {
		return fmt.Errorf("read netbox status: %w", err)
	}
	v, err := semver.NewVersion(status.NetBoxVersion)
	if err != nil {
		return fmt.Errorf("parse netbox version %q: %w", status.NetBoxVersion, err)
	}
	// Release builds carry suffixes such as "-Docker-3.0.2".
	release, err := v.SetPrerelease("")
	if err != nil {
		return err
	}
	if !branchingConstraint.Check(&release) {
		return fmt.Errorf("%w: netbox %s does not satisfy %s", ErrBranchingUnsupported, v, branchingConstraint)
	}
	return nil
}

// GetBranch looks a branch up by name. It returns ErrBranchNotFound when absent.
func (c *Client) GetBranch(ctx context.Context, name string) (*Branch, error) {
	var found *Branch
	err := c.list(ctx, branchesPath, url.Values{"name": {name}}, func(raw json.RawMessage) error {
		var b Branch
		if err := json.Unmarshal(raw, &b); err != nil {
			return err
		}
		if b.Name == name && found == nil {
			found = &b
		}
		return nil
	})
	if err != nil {
		if isStatus(err, fiber.StatusNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrBranchingUnsupported, err)
		}
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %q", ErrBranchNotFound, name)
	}
	return found, nil
}

// CreateBranch creates a branch.
func (c *Client) CreateBranch(ctx context.Context, name string) (*Branch, error) {
	var b Branch
	body := map[string]any{
		"name":        name,
		"description": "Created by inventory-sync",
	}
	if err := c.do(ctx, fiber.MethodPost, c.endpoint(branchesPath, nil), body, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// EnsureBranch selects the named branch for every following request and
// returns it. MainBranch (or an empty name) selects the main schema. A missing
// branch is created only with opts.Force, and the call waits until the branch
// reports ready or opts.Timeout elapses.
func (c *Client) EnsureBranch(ctx context.Context, name string, opts BranchOptions, logger *zap.Logger) (*Branch, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if name == "" || name == MainBranch {
		c.UseBranch("")
		logger.Info("Operating on the main branch")
		return nil, nil
	}

	if err := c.CheckBranching(ctx); err != nil {
		return nil, err
	}

	branch, err := c.GetBranch(ctx, name)
	switch {
	case err == nil:
		logger.Info("Branch already exists", zap.String("branch", name))
	case errors.Is(err, ErrBranchNotFound) && opts.Force:
		if branch, err = c.CreateBranch(ctx, name); err != nil {
			return nil, fmt.Errorf("create branch %q: %w", name, err)
		}
		logger.Info("Branch created", zap.String("branch", name))
	case errors.Is(err, ErrBranchNotFound):
		return nil, fmt.Errorf("%w (use --force to create it)", err)
	default:
		return nil, fmt.Errorf("get branch %q: %w", name, err)
	}

	if branch, err = c.waitReady(ctx, branch, opts, logger); err != nil {
		return nil, err
	}
	c.UseBranch(branch.SchemaID)
	return branch, nil
}

func (c *Client) waitReady(ctx context.Context, branch *Branch, opts BranchOptions, logger *zap.Logger) (*Branch, error) {
	if branch.Ready() {
		return branch, nil
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = time.Second
	}

	logger.Info("Waiting for branch to be ready", zap.String("branch", branch.Name), zap.String("status", branch.Status.Value))
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, fmt.Errorf("timeout waiting for branch %q to be ready (status %q)", branch.Name, branch.Status.Value)
		case <-ticker.C:
			b, err := c.GetBranch(ctx, branch.Name)
			if err != nil {
				return nil, err
			}
			branch = b
			if branch.Ready() {
				logger.Info("Branch is ready", zap.String("branch", branch.Name))
				return branch, nil
			}
		}
	}
}

func mustConstraint(s string) *semver.Constraints {
	c, err := semver.NewConstraint(s)
	if err != nil {
		panic(err)
	}
	return c
}
