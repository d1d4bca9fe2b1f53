package ledger

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/toxnroot/trans-invoice-v3/models"
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

func (s *Service) validateStruct(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return errors.Wrap(err, "ledger: validate")
	}
	fe := verrs[0]
	return invalid(fe.Field(), describe(fe))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must not be less than %s", fe.Param())
	case "email":
		return "must be a valid email address"
	}
	return fmt.Sprintf("failed %s check", fe.Tag())
}

func normalizeProduct(in models.ProductInput) models.ProductInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Color = strings.TrimSpace(in.Color)
	return in
}

func (s *Service) validateProduct(in models.ProductInput) (models.ProductInput, error) {
	in = normalizeProduct(in)
	if err := s.validateStruct(in); err != nil {
		return in, err
	}
	return in, nil
}

// validateLineItems checks a client-supplied product list and returns it
// with fresh totals.
func (s *Service) validateLineItems(products []models.Product) ([]models.Product, error) {
	// Client-supplied ids are reserved before any new one is minted.
	used := make([]models.Product, 0, len(products))
	for _, p := range products {
		if p.ID != 0 {
			used = append(used, models.Product{ID: p.ID})
		}
	}
	seen := make(map[int64]bool, len(products))

	out := make([]models.Product, 0, len(products))
	for i, p := range products {
		in, err := s.validateProduct(models.ProductInput{
			Name:     p.Name,
			Color:    p.Color,
			Price:    p.Price,
			Quantity: p.Quantity,
			Meter:    p.Meter,
		})
		if err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				return nil, invalid(fmt.Sprintf("products[%d].%s", i, ve.Field), ve.Message)
			}
			return nil, err
		}
		id := p.ID
		if id == 0 || seen[id] {
			id = models.NextProductID(used, s.now())
			used = append(used, models.Product{ID: id})
		}
		seen[id] = true
		out = append(out, in.ToProduct(id))
	}
	return out, nil
}

func validateState(st models.InvoiceState) error {
	if st != models.StateDeliveryNote && st != models.StateReturnNote {
		return invalid("state", fmt.Sprintf("unknown invoice state %q", st))
	}
	return nil
}

func validatePayment(pt models.PaymentType) error {
	if pt != models.PaymentCash && pt != models.PaymentCredit {
		return invalid("paymentType", fmt.Sprintf("unknown payment type %q", pt))
	}
	return nil
}

func validateDiscount(d decimal.Decimal) error {
	if d.IsNegative() {
		return invalid("discount", "must not be negative")
	}
	return nil
}

// validatePatch checks the fields a patch sets and normalizes its line
// items in place.
func (s *Service) validatePatch(p *models.InvoicePatch) error {
	if p.State != nil {
		if err := validateState(*p.State); err != nil {
			return err
		}
	}
	if p.PaymentType != nil {
		if err := validatePayment(*p.PaymentType); err != nil {
			return err
		}
	}
	if p.Discount != nil {
		if err := validateDiscount(*p.Discount); err != nil {
			return err
		}
	}
	if p.InvoiceNumber != nil && *p.InvoiceNumber <= 0 {
		return invalid("invoiceNumber", "must be positive")
	}
	if p.Products != nil {
		products, err := s.validateLineItems(*p.Products)
		if err != nil {
			return err
		}
		p.Products = &products
	}
	return nil
}
