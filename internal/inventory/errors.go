package inventory

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-mill/internal/shared"
)

var (
	// ErrNotFound is returned when an edit or delete targets a missing id.
	ErrNotFound = fmt.Errorf("inventory: record %w", shared.ErrNotFound)
	// ErrNoOwner is returned when a mutation arrives without a user identity.
	ErrNoOwner = fmt.Errorf("inventory: user identity required: %w", shared.ErrUnauthorized)
	// ErrLinkedVoucher is returned when a consumption voucher is edited outside its process.
	ErrLinkedVoucher = fmt.Errorf("voucher pemakaian dikelola oleh proses produksi: %w", shared.ErrConflict)
	// ErrOutputExists is returned when a process already has a finalized output.
	ErrOutputExists = fmt.Errorf("proses ini sudah memiliki output: %w", shared.ErrConflict)
)

// ValidationError carries per-field messages for the form.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "data tidak valid: " + strings.Join(parts, "; ")
}

// Unwrap ties the error to shared.ErrValidation.
func (e *ValidationError) Unwrap() error {
	return shared.ErrValidation
}

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// InsufficientStockError reports the quantity available when the check ran.
type InsufficientStockError struct {
	Name      string
	Available float64
	Requested float64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stok %s tidak mencukupi: tersedia %s, diminta %s", e.Name, formatQty(e.Available), formatQty(e.Requested))
}

// Unwrap ties the error to shared.ErrInsufficientStock.
func (e *InsufficientStockError) Unwrap() error {
	return shared.ErrInsufficientStock
}

// Result is the structured outcome returned at the mutation boundary.
type Result struct {
	Success  bool              `json:"success"`
	Message  string            `json:"message"`
	ID       string            `json:"id,omitempty"`
	Warnings []string          `json:"warnings,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
}

// ResultFromError converts a mutation error into a failed Result.
func ResultFromError(err error) Result {
	res := Result{Success: false, Message: shared.UserSafeMessage(err)}
	var verr *ValidationError
	if errors.As(err, &verr) {
		res.Fields = verr.Fields
	}
	return res
}

func validationFromStruct(v *validator.Validate, input any) error {
	err := v.Struct(input)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	verr := &ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		verr.Fields[fieldKey(fe.Namespace())] = fieldMessage(fe)
	}
	return verr
}

// fieldKey strips the struct name from a validator namespace ("SaleInput.Quantity" -> "Quantity").
func fieldKey(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "wajib diisi"
	case "gt":
		return "harus lebih besar dari " + fe.Param()
	case "gte":
		return "tidak boleh kurang dari " + fe.Param()
	case "lte":
		return "tidak boleh lebih dari " + fe.Param()
	case "ne":
		return "tidak boleh " + fe.Param()
	case "max":
		return "terlalu panjang"
	case "min":
		return "minimal " + fe.Param() + " baris"
	case "oneof":
		return "harus salah satu dari: " + fe.Param()
	default:
		return "tidak valid"
	}
}
