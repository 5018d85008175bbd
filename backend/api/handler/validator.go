package handler

import (
	"chunkvault/backend/library/hashutil"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterValidators installs the custom binding validators. "hexhash"
// accepts exactly the digests the hashing utility produces.
func RegisterValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("hexhash", func(fl validator.FieldLevel) bool {
			return hashutil.IsValidDigest(fl.Field().String())
		})
	}
}
