package httpx

import (
	"errors"
	"net/http"

	"github.com/opentill/opentill/internal/shared"
)

// statusByKind maps the workflow error taxonomy onto client-visible
// categories. The services never decide transport status codes themselves.
var statusByKind = map[shared.Kind]int{
	shared.KindNotFound:        http.StatusNotFound,
	shared.KindProductNotFound: http.StatusNotFound,

	shared.KindForbidden: http.StatusForbidden,

	shared.KindBadStatus:                  http.StatusConflict,
	shared.KindDuplicatePayment:           http.StatusConflict,
	shared.KindDuplicateCredit:            http.StatusConflict,
	shared.KindAlreadyRefunded:            http.StatusConflict,
	shared.KindNotApproved:                http.StatusConflict,
	shared.KindNoOpenSession:              http.StatusConflict,
	shared.KindInsufficientInventoryStock: http.StatusConflict,
	shared.KindInsufficientStock:          http.StatusConflict,
	shared.KindConflict:                   http.StatusConflict,

	shared.KindBadQty:              http.StatusBadRequest,
	shared.KindBadDiscount:         http.StatusBadRequest,
	shared.KindDiscountTooHigh:     http.StatusBadRequest,
	shared.KindSaleDiscountTooHigh: http.StatusBadRequest,
	shared.KindPriceTooHigh:        http.StatusBadRequest,
	shared.KindNoItems:             http.StatusBadRequest,
	shared.KindBadAmount:           http.StatusBadRequest,
	shared.KindBadPaymentMethod:    http.StatusBadRequest,
	shared.KindValidation:          http.StatusBadRequest,
}

// RespondError maps a tagged workflow error to an RFC7807 response,
// preserving its structured context fields.
func RespondError(w http.ResponseWriter, err error) {
	var tagged *shared.Error
	if errors.As(err, &tagged) {
		status, ok := statusByKind[tagged.Kind]
		if !ok {
			status = http.StatusInternalServerError
		}
		JSON(w, status, ProblemDetail{
			Type:   string(tagged.Kind),
			Title:  tagged.Message,
			Status: status,
			Fields: tagged.Fields,
		})
		return
	}
	Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
