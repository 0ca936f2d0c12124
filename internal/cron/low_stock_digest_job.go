package cron

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/bistro-backend/internal/inventory"
	"github.com/angelmondragon/bistro-backend/internal/reports"
	"github.com/angelmondragon/bistro-backend/pkg/db/models"
	"github.com/angelmondragon/bistro-backend/pkg/enums"
	"github.com/angelmondragon/bistro-backend/pkg/logger"
	"github.com/angelmondragon/bistro-backend/pkg/mail"
	"go.uber.org/multierr"
)

const digestSubject = "Daily Low Inventory Digest"

type lowStockLister interface {
	List(ctx context.Context, f inventory.ListFilter) ([]models.InventoryItem, error)
}

type recipientLookup interface {
	ListActiveByRoles(ctx context.Context, roles []enums.Role) ([]models.User, error)
}

type LowStockDigestJobParams struct {
	Logger     *logger.Logger
	Items      lowStockLister
	Recipients recipientLookup
	Sender     mail.Sender
	Roles      []enums.Role
	Restaurant string
}

// NewLowStockDigestJob builds the job that mails one summary of every item at
// or below its reorder level to the alert roles.
func NewLowStockDigestJob(params LowStockDigestJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Items == nil {
		return nil, fmt.Errorf("inventory lister required")
	}
	if params.Recipients == nil {
		return nil, fmt.Errorf("recipient lookup required")
	}
	if params.Sender == nil {
		return nil, fmt.Errorf("mail sender required")
	}
	return &lowStockDigestJob{
		logg:       params.Logger,
		items:      params.Items,
		recipients: params.Recipients,
		sender:     params.Sender,
		roles:      params.Roles,
		restaurant: params.Restaurant,
	}, nil
}

type lowStockDigestJob struct {
	logg       *logger.Logger
	items      lowStockLister
	recipients recipientLookup
	sender     mail.Sender
	roles      []enums.Role
	restaurant string
}

func (j *lowStockDigestJob) Name() string { return "low-stock-digest" }

func (j *lowStockDigestJob) Run(ctx context.Context) error {
	if len(j.roles) == 0 {
		return nil
	}
	items, err := j.items.List(ctx, inventory.ListFilter{LowStockOnly: true, OrderBy: "title"})
	if err != nil {
		return fmt.Errorf("list low stock: %w", err)
	}
	if len(items) == 0 {
		j.logg.Info(ctx, "no low stock items")
		return nil
	}
	users, err := j.recipients.ListActiveByRoles(ctx, j.roles)
	if err != nil {
		return fmt.Errorf("list recipients: %w", err)
	}

	body := digestBody(items, j.restaurant)
	var sendErr error
	for _, u := range users {
		err := j.sender.Send(ctx, mail.Message{To: u.Email, ToName: u.DisplayName, Subject: digestSubject, Body: body})
		sendErr = multierr.Append(sendErr, err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"items":      len(items),
		"recipients": len(users),
	}), "low stock digest sent")
	return sendErr
}

func digestBody(items []models.InventoryItem, restaurant string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d inventory items are at or below their reorder level:\n\n", len(items))
	for _, item := range items {
		fmt.Fprintf(&b, "- %s: %s\n", item.Title, reports.StockSummary(item))
	}
	b.WriteString("\nPlease reorder these items soon.\n")
	b.WriteString(restaurant)
	return b.String()
}
