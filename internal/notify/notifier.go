// Package notify tells proposal owners about new interest in their
// proposals. Delivery is best-effort: a failed send is logged and never
// fails the write that triggered it.
package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"investmatch/internal/common/config"
	apperrors "investmatch/internal/common/errors"
	"investmatch/internal/common/logger"
	"investmatch/internal/models"
)

// SESService and SNSService are the slices of the AWS clients the notifier
// uses. Declared here so tests can substitute recorders.
type SESService interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, input *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type Notifier struct {
	sesService SESService
	snsService SNSService
	cfg        config.NotificationConfig
	logger     logger.Logger
}

func NewNotifier(sesService SESService, snsService SNSService, cfg config.NotificationConfig, log logger.Logger) *Notifier {
	return &Notifier{
		sesService: sesService,
		snsService: snsService,
		cfg:        cfg,
		logger:     log.WithFields(map[string]interface{}{"component": "notifier"}),
	}
}

// InterestReceived notifies the proposal owner that an investor registered
// interest. Email goes out whenever email notifications are enabled; an SMS
// is added for offers at or above the configured threshold.
func (n *Notifier) InterestReceived(ctx context.Context, owner models.UserProfile, proposalTitle string, amount float64) {
	if n.cfg.Email.Enabled && n.sesService != nil && owner.Email != "" {
		if err := n.sendEmail(ctx, owner, proposalTitle, amount); err != nil {
			n.logger.WithError(err).WithFields(map[string]interface{}{
				"owner_id": owner.ID,
			}).Warn("Failed to send interest email", nil)
		}
	}

	if n.cfg.SMS.Enabled && n.snsService != nil && owner.Phone != "" && amount >= n.cfg.SMS.AmountThreshold {
		if err := n.sendSMS(ctx, owner, proposalTitle, amount); err != nil {
			n.logger.WithError(err).WithFields(map[string]interface{}{
				"owner_id": owner.ID,
			}).Warn("Failed to send interest SMS", nil)
		}
	}
}

func (n *Notifier) sendEmail(ctx context.Context, owner models.UserProfile, proposalTitle string, amount float64) error {
	subject := fmt.Sprintf("New interest in %s", proposalTitle)
	body := fmt.Sprintf(
		"Hello %s,\n\nAn investor has registered interest in your proposal %q with an offer of %.2f.\n\nLog in to review the offer.",
		owner.Name, proposalTitle, amount,
	)

	input := &ses.SendEmailInput{
		Source: aws.String(n.cfg.Email.FromEmail),
		Destination: &sestypes.Destination{
			ToAddresses: []string{owner.Email},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(body)},
			},
		},
	}

	if _, err := n.sesService.SendEmail(ctx, input); err != nil {
		return apperrors.NewNotificationSendFailedError("email", err)
	}
	return nil
}

func (n *Notifier) sendSMS(ctx context.Context, owner models.UserProfile, proposalTitle string, amount float64) error {
	message := fmt.Sprintf("New offer of %.2f on %q. Check your dashboard.", amount, proposalTitle)

	input := &sns.PublishInput{
		Message:     aws.String(message),
		PhoneNumber: aws.String(owner.Phone),
	}

	if _, err := n.snsService.Publish(ctx, input); err != nil {
		return apperrors.NewNotificationSendFailedError("sms", err)
	}
	return nil
}
