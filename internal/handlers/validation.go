package handlers

import (
	"fmt"
	"sync"

	"github.com/btcpayserver/btcpayserver-sub006/internal/core/domain"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerValidatorsOnce sync.Once

// registerValidators adds the processorname and paymentmethod tags to Gin's validator.
func registerValidators() error {
	var err error
	registerValidatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = fmt.Errorf("gin validator engine is %T, not *validator.Validate", binding.Validator.Engine())
			return
		}
		if err = v.RegisterValidation("processorname", func(fl validator.FieldLevel) bool {
			return domain.IsKnownProcessorName(fl.Field().String())
		}); err != nil {
			return
		}
		err = v.RegisterValidation("paymentmethod", func(fl validator.FieldLevel) bool {
			_, perr := domain.ParsePaymentMethodID(fl.Field().String())
			return perr == nil
		})
	})
	return err
}
