package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/Abhiiiiiinav/Vedic-Sage/pkg/chart"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// validationError is a request rejected by field validation.
type validationError struct {
	msg string
}

func (e *validationError) Error() string {
	return "validation failed: " + e.msg
}

// validatorSvc holds the validator and its English translator.
type validatorSvc struct {
	validate   *validator.Validate
	translator ut.Translator
}

var (
	vOnce sync.Once
	vSvc  *validatorSvc
)

// getValidator returns the validator singleton with English messages and
// json tag names.
func getValidator() *validatorSvc {
	vOnce.Do(func() {
		enLoc := en.New()
		uni := ut.New(enLoc, enLoc)
		trans, _ := uni.GetTranslator("en")

		v := validator.New(validator.WithRequiredStructEnabled())

		// prefer json tag names in messages
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("json")
			if tag == "-" || tag == "" {
				return fld.Name
			}
			if idx := strings.Index(tag, ","); idx >= 0 {
				tag = tag[:idx]
			}
			return tag
		})

		_ = en_translations.RegisterDefaultTranslations(v, trans)

		vSvc = &validatorSvc{validate: v, translator: trans}
	})
	return vSvc
}

// validationMessage returns the translated messages of a validation error
// joined by "; ".
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Translate(getValidator().translator))
	}
	return strings.Join(msgs, "; ")
}

// birthFromMap normalizes and validates loosely typed birth details.
func birthFromMap(raw map[string]any) (chart.BirthRequest, error) {
	r, err := chart.Normalize(raw)
	if err != nil {
		return chart.BirthRequest{}, err
	}
	if err := getValidator().validate.Struct(r); err != nil {
		return chart.BirthRequest{}, &validationError{msg: validationMessage(err)}
	}
	return r, nil
}

// readBody decodes a JSON object body. An empty body is an empty object.
func readBody(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if dec.More() {
		return nil, errors.New("invalid JSON: unexpected trailing data")
	}
	if body == nil {
		body = map[string]any{}
	}
	return body, nil
}

// queryMap flattens query parameters to their first value.
func queryMap(r *http.Request) map[string]any {
	out := make(map[string]any)
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

// stringList reads an optional list of strings from body[key].
func stringList(body map[string]any, key string) ([]string, error) {
	v, ok := body[key]
	if !ok || v == nil {
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%s must be a list of division codes", key)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%s must be a list of division codes", key)
		}
		out = append(out, s)
	}
	return out, nil
}
