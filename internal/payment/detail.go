// Package payment serves the payment-detail records: the model, its stores
// and the CRUD handlers mounted under /api/PaymentDetail.
package payment

import (
	"errors"
	"fmt"
	"time"
)

// PaymentDetail is one stored card record.
type PaymentDetail struct {
	PaymentDetailID int       `json:"paymentDetailId"`
	CardOwnerName   string    `json:"cardOwnerName"`
	CardNumber      string    `json:"cardNumber"`
	ExpirationDate  time.Time `json:"expirationDate"`
	SecurityCode    string    `json:"securityCode"`
}

// ResponseMessage is the body handlers return for anything but a record.
type ResponseMessage struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid payment detail")

const maxOwnerNameLen = 100

// Validate checks the fields a client must supply.
func (d PaymentDetail) Validate() error {
	switch {
	case d.PaymentDetailID < 0:
		return fmt.Errorf("%w: paymentDetailId must not be negative", ErrInvalid)
	case d.CardOwnerName == "":
		return fmt.Errorf("%w: cardOwnerName is required", ErrInvalid)
	case len(d.CardOwnerName) > maxOwnerNameLen:
		return fmt.Errorf("%w: cardOwnerName exceeds %d characters", ErrInvalid, maxOwnerNameLen)
	case !digits(d.CardNumber, 16):
		return fmt.Errorf("%w: cardNumber must be 16 digits", ErrInvalid)
	case !digits(d.SecurityCode, 3):
		return fmt.Errorf("%w: securityCode must be 3 digits", ErrInvalid)
	case d.ExpirationDate.IsZero():
		return fmt.Errorf("%w: expirationDate is required", ErrInvalid)
	}
	return nil
}

func digits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
