package checkout

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/angelmondragon/storefront/internal/commerce"
	"github.com/angelmondragon/storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// DeliveryForm is the contact and delivery stage of checkout.
type DeliveryForm struct {
	DeliveryType enums.DeliveryType `json:"deliveryType" validate:"required,oneof=delivery pickup"`
	FirstName    string             `json:"firstName" validate:"required,min=2"`
	LastName     string             `json:"lastName" validate:"required,min=2"`
	Email        string             `json:"email" validate:"required,email"`
	Phone        string             `json:"phone" validate:"required,min=6"`
	Country      string             `json:"country"`
	Address      string             `json:"address"`
	City         string             `json:"city"`
	State        string             `json:"state"`
	BuildingType string             `json:"buildingType"`
	PostalCode   string             `json:"postalCode"`
}

type shippingFields struct {
	Country    string `json:"country" validate:"required"`
	Address    string `json:"address" validate:"required,min=5"`
	City       string `json:"city" validate:"required"`
	PostalCode string `json:"postalCode" validate:"required"`
}

// PaymentForm is the final stage: billing details and the order note.
// Billing repeats the delivery details unless UseSameForBilling is false.
type PaymentForm struct {
	UseSameForBilling *bool  `json:"useSameForBilling"`
	BillingFirstName  string `json:"billingFirstName"`
	BillingLastName   string `json:"billingLastName"`
	BillingCompany    string `json:"billingCompany"`
	BillingVat        string `json:"billingVat"`
	BillingCountry    string `json:"billingCountry"`
	BillingAddress    string `json:"billingAddress"`
	BillingCity       string `json:"billingCity"`
	BillingState      string `json:"billingState"`
	BillingPostalCode string `json:"billingPostalCode"`
	BillingPhone      string `json:"billingPhone"`
	Note              string `json:"note"`
}

type billingFields struct {
	BillingFirstName  string `json:"billingFirstName" validate:"required"`
	BillingLastName   string `json:"billingLastName" validate:"required"`
	BillingCountry    string `json:"billingCountry" validate:"required"`
	BillingAddress    string `json:"billingAddress" validate:"required"`
	BillingCity       string `json:"billingCity" validate:"required"`
	BillingPostalCode string `json:"billingPostalCode" validate:"required"`
}

// SameForBilling defaults to true when the field is omitted.
func (p PaymentForm) SameForBilling() bool {
	return p.UseSameForBilling == nil || *p.UseSameForBilling
}

func (f DeliveryForm) normalized() DeliveryForm {
	f.DeliveryType = enums.DeliveryType(strings.ToLower(strings.TrimSpace(string(f.DeliveryType))))
	f.FirstName = strings.TrimSpace(f.FirstName)
	f.LastName = strings.TrimSpace(f.LastName)
	f.Email = strings.TrimSpace(f.Email)
	f.Phone = strings.TrimSpace(f.Phone)
	f.Country = strings.TrimSpace(f.Country)
	f.Address = strings.TrimSpace(f.Address)
	f.City = strings.TrimSpace(f.City)
	f.State = strings.TrimSpace(f.State)
	f.BuildingType = strings.TrimSpace(f.BuildingType)
	f.PostalCode = strings.TrimSpace(f.PostalCode)
	return f
}

func (p PaymentForm) normalized() PaymentForm {
	for _, field := range []*string{
		&p.BillingFirstName, &p.BillingLastName, &p.BillingCompany, &p.BillingVat,
		&p.BillingCountry, &p.BillingAddress, &p.BillingCity, &p.BillingState,
		&p.BillingPostalCode, &p.BillingPhone, &p.Note,
	} {
		*field = strings.TrimSpace(*field)
	}
	return p
}

// ValidateDelivery checks the delivery stage. Address fields are only
// required for home delivery.
func ValidateDelivery(f DeliveryForm) (DeliveryForm, error) {
	f = f.normalized()
	details := map[string]string{}
	collect(details, validate.Struct(f))
	if f.DeliveryType.RequiresAddress() {
		collect(details, validate.Struct(shippingFields{
			Country:    f.Country,
			Address:    f.Address,
			City:       f.City,
			PostalCode: f.PostalCode,
		}))
	}
	if len(details) > 0 {
		return f, pkgerrors.New(pkgerrors.CodeValidation, "delivery details are invalid").WithDetails(details)
	}
	return f, nil
}

// ValidatePayment checks the payment stage.
func ValidatePayment(p PaymentForm) (PaymentForm, error) {
	p = p.normalized()
	if p.SameForBilling() {
		return p, nil
	}
	details := map[string]string{}
	collect(details, validate.Struct(billingFields{
		BillingFirstName:  p.BillingFirstName,
		BillingLastName:   p.BillingLastName,
		BillingCountry:    p.BillingCountry,
		BillingAddress:    p.BillingAddress,
		BillingCity:       p.BillingCity,
		BillingPostalCode: p.BillingPostalCode,
	}))
	if len(details) > 0 {
		return p, pkgerrors.New(pkgerrors.CodeValidation, "billing address information is required").WithDetails(details)
	}
	return p, nil
}

func collect(details map[string]string, err error) {
	if err == nil {
		return
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		details["_"] = err.Error()
		return
	}
	for _, fe := range errs {
		details[fe.Field()] = message(fe)
	}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "email":
		return "must be a valid email"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	}
	return "is invalid"
}

// CustomerName joins first and last name the way orders display them.
func (f DeliveryForm) CustomerName() string {
	return f.FirstName + " " + f.LastName
}

// BuildOrderPayload maps validated forms onto the order-creation body.
// Pickup orders carry no shipping address.
func BuildOrderPayload(currencyID string, d DeliveryForm, p PaymentForm) commerce.OrderPayload {
	name := d.CustomerName()
	payload := commerce.OrderPayload{
		CurrencyID:         currencyID,
		OrderCustomerName:  name,
		OrderCustomerEmail: d.Email,
		OrderCustomerPhone: d.Phone,
	}

	if d.DeliveryType.RequiresAddress() {
		payload.OrderAddresses.Shipping = &commerce.ShippingAddress{
			Name:    name,
			Street:  d.Address,
			City:    d.City,
			Country: d.Country,
			State:   d.State,
			Zip:     d.PostalCode,
		}
	}

	switch {
	case !p.SameForBilling():
		phone := p.BillingPhone
		if phone == "" {
			phone = d.Phone
		}
		payload.OrderAddresses.Billing = commerce.BillingAddress{
			Name:    p.BillingFirstName + " " + p.BillingLastName,
			Street:  p.BillingAddress,
			City:    p.BillingCity,
			Country: p.BillingCountry,
			State:   p.BillingState,
			Zip:     p.BillingPostalCode,
			Phone:   phone,
			Note:    p.Note,
			Vat:     p.BillingVat,
			Company: p.BillingCompany,
		}
	case d.DeliveryType.RequiresAddress():
		payload.OrderAddresses.Billing = commerce.BillingAddress{
			Name:    name,
			Street:  d.Address,
			City:    d.City,
			Country: d.Country,
			State:   d.State,
			Zip:     d.PostalCode,
			Phone:   d.Phone,
			Note:    p.Note,
		}
	default:
		payload.OrderAddresses.Billing = commerce.BillingAddress{
			Name:  name,
			Phone: d.Phone,
			Note:  p.Note,
		}
	}
	return payload
}
