package custody

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
)

var errActivityPending = errors.New("activity pending")

// CreateSubOrganization submits a create_sub_organization activity under
// organizationID and waits for it to complete.
func (c *Client) CreateSubOrganization(ctx context.Context, organizationID string, params CreateSubOrganizationParams) (*CreateSubOrganizationResult, error) {
	req := submitRequest{
		Type:           ActivityTypeCreateSubOrganization,
		TimestampMs:    strconv.FormatInt(c.now().UnixMilli(), 10),
		OrganizationID: organizationID,
		Parameters:     params,
	}

	var out activityResponse
	if err := c.post(ctx, PathCreateSubOrganization, req, &out); err != nil {
		return nil, fmt.Errorf("create sub-organization: %w", err)
	}

	activity, err := c.WaitForActivity(ctx, &out.Activity)
	if err != nil {
		return nil, fmt.Errorf("create sub-organization: %w", err)
	}
	if activity.Result == nil || activity.Result.CreateSubOrganizationResultV4 == nil {
		return nil, ErrEmptyResult
	}
	return activity.Result.CreateSubOrganizationResultV4, nil
}

// GetActivity fetches the current state of an activity.
func (c *Client) GetActivity(ctx context.Context, organizationID, activityID string) (*Activity, error) {
	req := activityRequest{OrganizationID: organizationID, ActivityID: activityID}
	var out activityResponse
	if err := c.post(ctx, PathGetActivity, req, &out); err != nil {
		return nil, fmt.Errorf("get activity: %w", err)
	}
	return &out.Activity, nil
}

// WaitForActivity polls until the activity leaves the created/pending states.
// A completed activity is returned; any other final status is an *ActivityError.
func (c *Client) WaitForActivity(ctx context.Context, activity *Activity) (*Activity, error) {
	if !activity.Pending() {
		return activity, activityOutcome(activity)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.pollInterval
	b.MaxInterval = 4 * c.pollInterval

	orgID, activityID := activity.OrganizationID, activity.ID
	op := func() (*Activity, error) {
		latest, err := c.GetActivity(ctx, orgID, activityID)
		if err != nil {
			var reqErr *RequestError
			if errors.As(err, &reqErr) && reqErr.StatusCode < http.StatusInternalServerError {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		if latest.Pending() {
			return nil, errActivityPending
		}
		if err := activityOutcome(latest); err != nil {
			return nil, backoff.Permanent(err)
		}
		return latest, nil
	}

	notify := func(err error, next time.Duration) {
		c.logger.Debug("waiting for activity",
			slog.String("activity_id", activityID),
			slog.String("reason", err.Error()),
			slog.Duration("next", next),
		)
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(c.pollTimeout),
		backoff.WithNotify(notify),
	)
}

func activityOutcome(a *Activity) error {
	if a.Status == ActivityStatusCompleted {
		return nil
	}
	err := &ActivityError{ActivityID: a.ID, Status: a.Status}
	if a.Failure != nil {
		err.Message = a.Failure.Message
	}
	return err
}
