package authapi

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

// NewValidator returns a validator that reports JSON field names.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Decode reads an envelope from r and validates it. Data is validated only when present;
// callers decide whether a missing Data is acceptable.
func Decode[T any](r io.Reader, v *validator.Validate) (*Envelope[T], error) {
	var env Envelope[T]
	dec := json.NewDecoder(io.LimitReader(r, maxBodyBytes))
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if err := v.Struct(env); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidResponse, describe(err))
	}
	if env.Data != nil {
		if err := v.Struct(env.Data); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidResponse, describe(err))
		}
	}
	return &env, nil
}

func describe(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(msgs, ", ")
}
