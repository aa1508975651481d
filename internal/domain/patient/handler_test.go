package patient

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestHTTPErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: units must be at least 1", ErrInvalidInput), http.StatusBadRequest},
		{errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		he, ok := httpError(c.err).(*echo.HTTPError)
		if !ok {
			t.Fatalf("%v: expected *echo.HTTPError", c.err)
		}
		if he.Code != c.code {
			t.Errorf("%v: code = %d, want %d", c.err, he.Code, c.code)
		}
	}
}
