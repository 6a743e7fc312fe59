package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/google/uuid"
	"gopkg.in/go-playground/validator.v9"
	en_translations "gopkg.in/go-playground/validator.v9/translations/en"
)

const maxBodyBytes = 1 << 16

// requestValidator checks request bodies and renders failures in English
type requestValidator struct {
	validate *validator.Validate
	trans    ut.Translator
}

func newRequestValidator() *requestValidator {
	v := validator.New()
	// Report fields by their JSON names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(v, trans)

	return &requestValidator{validate: v, trans: trans}
}

// check returns field -> message for every failed rule, or nil
func (rv *requestValidator) check(s any) map[string]string {
	err := rv.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"body": err.Error()}
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fe.Translate(rv.trans)
	}
	return out
}

// decode reads a JSON body into dst and validates it. On failure it writes
// the 400 response and returns false.
func (rv *requestValidator) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		BadRequest(w, r, "invalid request body")
		return false
	}
	if details := rv.check(dst); details != nil {
		WriteError(w, r, http.StatusBadRequest,
			NewAPIError("VALIDATION_FAILED", "request validation failed").WithDetails(details))
		return false
	}
	return true
}

// pathUUID parses a UUID path parameter
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		BadRequest(w, r, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// queryInt reads an optional positive integer query parameter
func queryInt(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		BadRequest(w, r, name+" must be a positive integer")
		return 0, false
	}
	return n, true
}
