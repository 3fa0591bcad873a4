package checkout

import (
	"errors"
	"regexp"
	"strings"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"
)

// DateLayout is the calendar-date format used for delivery dates.
const DateLayout = "2006-01-02"

// PaymentMethod is the payment cadence of an order.
type PaymentMethod string

const (
	PaymentOneTime      PaymentMethod = "one-time"
	PaymentSubscription PaymentMethod = "subscription"
)

// Frequency is the delivery cadence of a subscription.
type Frequency string

const (
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// Details is what the shopper enters on the checkout form.
type Details struct {
	FullName      string        `json:"full_name" validate:"required,max=120"`
	Phone         string        `json:"phone_number" validate:"required,phone"`
	Email         string        `json:"email" validate:"required,email"`
	Address       string        `json:"address" validate:"required,max=255"`
	Location      string        `json:"location" validate:"required,max=120"`
	DeliveryDate  string        `json:"delivery_date" validate:"required,datetime=2006-01-02"`
	TimeSlot      string        `json:"time_slot" validate:"required,timeslot"`
	PaymentMethod PaymentMethod `json:"payment_method" validate:"oneof=one-time subscription"`
	Frequency     Frequency     `json:"frequency,omitempty" validate:"omitempty,oneof=weekly monthly"`
}

// normalized trims input and applies defaults. Frequency is dropped for one-time orders.
func (d Details) normalized() Details {
	d.FullName = strings.TrimSpace(d.FullName)
	d.Phone = strings.TrimSpace(d.Phone)
	d.Email = strings.TrimSpace(d.Email)
	d.Address = strings.TrimSpace(d.Address)
	d.Location = strings.TrimSpace(d.Location)
	d.DeliveryDate = strings.TrimSpace(d.DeliveryDate)
	d.TimeSlot = strings.TrimSpace(d.TimeSlot)
	if d.PaymentMethod == "" {
		d.PaymentMethod = PaymentOneTime
	}
	if d.PaymentMethod == PaymentOneTime {
		d.Frequency = ""
	}
	return d
}

var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 ()-]{5,18}[0-9]$`)

// NewValidator returns a validator that knows the checkout rules.
func NewValidator() *validatorv10.Validate {
	v := validatorv10.New()

	_ = v.RegisterValidation("phone", func(fl validatorv10.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("timeslot", func(fl validatorv10.FieldLevel) bool {
		return IsTimeSlot(fl.Field().String())
	})
	v.RegisterStructValidation(detailsStructValidation, Details{})
	v.RegisterStructValidation(payloadStructValidation, payloadWire{})

	return v
}

// detailsStructValidation requires a frequency for subscriptions.
func detailsStructValidation(sl validatorv10.StructLevel) {
	d := sl.Current().Interface().(Details)
	if d.PaymentMethod == PaymentSubscription && d.Frequency == "" {
		sl.ReportError(d.Frequency, "frequency", "Frequency", "required_for_subscription", "")
	}
}

// validateDetails checks d against the rules and against today's date. The delivery
// date may not lie in the past.
func validateDetails(v *validatorv10.Validate, d Details, today time.Time) error {
	fields := map[string]string{}

	if err := v.Struct(d); err != nil {
		var ve validatorv10.ValidationErrors
		if !errors.As(err, &ve) {
			return err
		}
		for _, fe := range ve {
			fields[jsonFieldName(fe.Field())] = fe.Tag()
		}
	}

	if _, bad := fields["delivery_date"]; !bad && d.DeliveryDate != "" {
		date, err := time.ParseInLocation(DateLayout, d.DeliveryDate, today.Location())
		y, m, day := today.Date()
		if err != nil || date.Before(time.Date(y, m, day, 0, 0, 0, 0, today.Location())) {
			fields["delivery_date"] = "not_before_today"
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

var detailsJSONNames = map[string]string{
	"FullName":      "full_name",
	"Phone":         "phone_number",
	"Email":         "email",
	"Address":       "address",
	"Location":      "location",
	"DeliveryDate":  "delivery_date",
	"TimeSlot":      "time_slot",
	"PaymentMethod": "payment_method",
	"Frequency":     "frequency",
}

func jsonFieldName(field string) string {
	if name, ok := detailsJSONNames[field]; ok {
		return name
	}
	return field
}
