package client

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// HTTPError is returned for a non 2xx response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.StatusCode, e.Body)
}

// GraphQLError is one entry of the errors list of a response.
type GraphQLError struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

// GraphQLErrors is returned when the response carries errors.
type GraphQLErrors []*GraphQLError

func (errs GraphQLErrors) Error() string {
	messages := make([]string, 0, len(errs))
	for _, err := range errs {
		messages = append(messages, err.Message)
	}
	return "graphql: " + strings.Join(messages, "; ")
}

type response struct {
	Data   jsontext.Value `json:"data"`
	Errors GraphQLErrors  `json:"errors,omitempty"`
}

// ParseResponse decodes the data of resp into out.
func ParseResponse(resp *http.Response, out any) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var r response
	if err := json.Unmarshal(body, &r); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if len(r.Errors) > 0 {
		return r.Errors
	}

	if len(r.Data) == 0 || string(r.Data) == "null" {
		return errors.New("response has no data")
	}

	return decodeData(r.Data, out)
}

// decodeData stores data into out, which must be a non-nil pointer.
func decodeData(data jsontext.Value, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("failed to decode data: cannot decode into non-pointer %T", out)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode data: %w", err)
	}

	return nil
}
