// Package validation validates configuration structs before a stream client
// or workflow client is built.
//
// Struct tags use go-playground/validator with one extra tag, stream_url,
// for absolute http(s) endpoints. The Validator builder covers checks that
// tags cannot express. Both report an *errors.Error with code
// INVALID_CONFIG and a per-field "fields" detail.
//
//	type Config struct {
//	    URL string `json:"url" validate:"required,stream_url"`
//	}
//	err := validation.Validate(cfg)
//
//	err = validation.New().
//	    OneOf("format", cfg.Format, "json", "console").
//	    Err()
package validation
