package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/corvana/control-plane/events-ingest/utils"
)

type EventType string

const (
	EVENT_ORG_CREATED          EventType = "product.org.created"
	EVENT_ORG_UPDATED          EventType = "product.org.updated"
	EVENT_SUBSCRIPTION_CREATED EventType = "product.subscription.created"
	EVENT_SUBSCRIPTION_UPDATED EventType = "product.subscription.updated"
	EVENT_SUBSCRIPTION_DELETED EventType = "product.subscription.deleted"
	EVENT_INVOICE_PAID         EventType = "product.invoice.paid"
)

// InboundEvent is the webhook envelope. Data stays raw until the event type
// is known; Payload then holds the decoded type-specific struct. Events with
// a type outside the known set are flagged Unknown and keep their raw data
// for logging.
type InboundEvent struct {
	EventID   string          `json:"eventId" validate:"required,uuid"`
	EventType EventType       `json:"eventType" validate:"required"`
	Timestamp string          `json:"timestamp" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	Data      json.RawMessage `json:"data"`

	OccurredAt time.Time `json:"-"`
	Payload    any       `json:"-"`
	Unknown    bool      `json:"-"`
}

type OrgCreatedData struct {
	ExternalOrgID      string  `json:"externalOrgId" validate:"required"`
	Name               string  `json:"name" validate:"required"`
	ExternalDatabaseID *string `json:"externalDatabaseId"`
	Slug               *string `json:"slug"`
	Domain             *string `json:"domain"`
	Status             string  `json:"status"`
}

type OrgUpdatedData struct {
	ExternalOrgID      string              `json:"externalOrgId" validate:"required"`
	Name               utils.Patch[string] `json:"name"`
	Slug               utils.Patch[string] `json:"slug"`
	Domain             utils.Patch[string] `json:"domain"`
	Status             utils.Patch[string] `json:"status"`
	ExternalDatabaseID utils.Patch[string] `json:"externalDatabaseId"`
}

type SubscriptionCreatedData struct {
	StripeSubscriptionID string            `json:"stripeSubscriptionId" validate:"required"`
	StripeCustomerID     string            `json:"stripeCustomerId" validate:"required"`
	ExternalOrgID        string            `json:"externalOrgId" validate:"required"`
	Status               string            `json:"status" validate:"required,oneof=active trialing past_due canceled unpaid incomplete incomplete_expired paused"`
	StripePriceID        string            `json:"stripePriceId" validate:"required"`
	Amount               string            `json:"amount" validate:"required,numeric"`
	Currency             string            `json:"currency" validate:"required,iso4217"`
	Interval             string            `json:"interval" validate:"required,oneof=month year"`
	CurrentPeriodStart   *utils.CustomTime `json:"currentPeriodStart"`
	CurrentPeriodEnd     *utils.CustomTime `json:"currentPeriodEnd"`
	TrialStart           *utils.CustomTime `json:"trialStart"`
	TrialEnd             *utils.CustomTime `json:"trialEnd"`
	CancelAtPeriodEnd    bool              `json:"cancelAtPeriodEnd"`
	StripeEventID        string            `json:"stripeEventId"`
}

type SubscriptionUpdatedData struct {
	StripeSubscriptionID string                        `json:"stripeSubscriptionId" validate:"required"`
	Status               utils.Patch[string]           `json:"status" validate:"omitempty,oneof=active trialing past_due canceled unpaid incomplete incomplete_expired paused"`
	StripePriceID        utils.Patch[string]           `json:"stripePriceId"`
	Amount               utils.Patch[string]           `json:"amount" validate:"omitempty,numeric"`
	Currency             utils.Patch[string]           `json:"currency" validate:"omitempty,iso4217"`
	Interval             utils.Patch[string]           `json:"interval" validate:"omitempty,oneof=month year"`
	CurrentPeriodStart   utils.Patch[utils.CustomTime] `json:"currentPeriodStart"`
	CurrentPeriodEnd     utils.Patch[utils.CustomTime] `json:"currentPeriodEnd"`
	TrialStart           utils.Patch[utils.CustomTime] `json:"trialStart"`
	TrialEnd             utils.Patch[utils.CustomTime] `json:"trialEnd"`
	CancelAt             utils.Patch[utils.CustomTime] `json:"cancelAt"`
	CanceledAt           utils.Patch[utils.CustomTime] `json:"canceledAt"`
	CancelAtPeriodEnd    utils.Patch[bool]             `json:"cancelAtPeriodEnd"`
	StripeEventID        string                        `json:"stripeEventId"`
}

type SubscriptionDeletedData struct {
	StripeSubscriptionID string            `json:"stripeSubscriptionId" validate:"required"`
	CanceledAt           *utils.CustomTime `json:"canceledAt"`
	StripeEventID        string            `json:"stripeEventId"`
}

type InvoicePaidData struct {
	Amount               string `json:"amount" validate:"required,numeric"`
	Currency             string `json:"currency" validate:"required,iso4217"`
	StripeSubscriptionID string `json:"stripeSubscriptionId"`
	StripeInvoiceID      string `json:"stripeInvoiceId"`
	StripeEventID        string `json:"stripeEventId"`
}

type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

type ValidationError struct {
	Message string
	Fields  []FieldError
}

func (e *ValidationError) Error() string {
	return e.Message
}

var validate = newEventValidator()

func newEventValidator() *validator.Validate {
	v := validator.New()

	// report json field names instead of Go field names
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterCustomTypeFunc(patchValuer[string], utils.Patch[string]{})
	v.RegisterCustomTypeFunc(patchValuer[bool], utils.Patch[bool]{})
	v.RegisterCustomTypeFunc(patchValuer[utils.CustomTime], utils.Patch[utils.CustomTime]{})

	return v
}

// patchValuer exposes the inner value of a present patch to the validator.
// Absent and null patches validate as nil, so patch rules must carry
// omitempty.
func patchValuer[T any](field reflect.Value) any {
	if patch, ok := field.Interface().(utils.Patch[T]); ok {
		if patch.Present() && !patch.Null() {
			return patch.Value()
		}
	}

	return nil
}

// ParseInboundEvent decodes and validates a webhook body. Envelope and
// payload failures both come back as a ValidationError carrying field-level
// details.
func ParseInboundEvent(body []byte) utils.Result[*InboundEvent] {
	var event InboundEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return failedEventResult(&ValidationError{Message: "body is not a valid event envelope"})
	}

	if err := validate.Struct(&event); err != nil {
		return failedEventResult(newValidationError("invalid event envelope", err))
	}

	occurredAt, err := time.Parse(time.RFC3339, event.Timestamp)
	if err != nil {
		return failedEventResult(&ValidationError{Message: "invalid event timestamp"})
	}
	event.OccurredAt = occurredAt

	return decodeEventPayload(&event)
}

func decodeEventPayload(event *InboundEvent) utils.Result[*InboundEvent] {
	switch event.EventType {
	case EVENT_ORG_CREATED:
		return decodePayload[OrgCreatedData](event)
	case EVENT_ORG_UPDATED:
		return decodePayload[OrgUpdatedData](event)
	case EVENT_SUBSCRIPTION_CREATED:
		return decodePayload[SubscriptionCreatedData](event)
	case EVENT_SUBSCRIPTION_UPDATED:
		return decodePayload[SubscriptionUpdatedData](event)
	case EVENT_SUBSCRIPTION_DELETED:
		return decodePayload[SubscriptionDeletedData](event)
	case EVENT_INVOICE_PAID:
		return decodePayload[InvoicePaidData](event)
	default:
		event.Unknown = true
		return utils.SuccessResult(event)
	}
}

func decodePayload[T any](event *InboundEvent) utils.Result[*InboundEvent] {
	if len(event.Data) == 0 {
		return failedEventResult(&ValidationError{
			Message: fmt.Sprintf("missing data for event type %s", event.EventType),
		})
	}

	var data T
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return failedEventResult(&ValidationError{
			Message: fmt.Sprintf("invalid data for event type %s", event.EventType),
		})
	}

	if err := validate.Struct(&data); err != nil {
		return failedEventResult(newValidationError(
			fmt.Sprintf("invalid data for event type %s", event.EventType), err))
	}

	event.Payload = &data
	return utils.SuccessResult(event)
}

func newValidationError(message string, err error) *ValidationError {
	verr := &ValidationError{Message: message}

	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) {
		for _, fieldError := range fieldErrors {
			verr.Fields = append(verr.Fields, FieldError{
				Field:   fieldError.Field(),
				Rule:    fieldError.Tag(),
				Message: fmt.Sprintf("%s failed on the %s rule", fieldError.Field(), fieldError.Tag()),
			})
		}
	}

	return verr
}

func failedEventResult(verr *ValidationError) utils.Result[*InboundEvent] {
	return utils.FailedResult[*InboundEvent](verr).NonRetryable().NonCapturable()
}
