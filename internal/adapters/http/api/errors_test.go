package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/keystride/keystride/internal/adapters/packs"
	"github.com/keystride/keystride/internal/adapters/repository"
	"github.com/keystride/keystride/internal/adapters/sources"
	service "github.com/keystride/keystride/internal/app"
	"github.com/keystride/keystride/internal/validation"
)

func TestOpError(t *testing.T) {
	Convey("Given operation errors", t, func() {
		cause := errors.New("unexpected EOF")

		Convey("When a kind wraps a cause", func() {
			err := WrapKind("api.submit_attempt", ErrBadRequest, cause)

			Convey("Then both are matched and named", func() {
				So(errors.Is(err, ErrBadRequest), ShouldBeTrue)
				So(errors.Is(err, cause), ShouldBeTrue)
				So(err.Error(), ShouldEqual, "api.submit_attempt: bad request: unexpected EOF")
			})
		})

		Convey("When only a kind is given", func() {
			err := NewKind("api.submit_attempt", ErrRateLimited)
			So(errors.Is(err, ErrRateLimited), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.submit_attempt: rate limited")
		})

		Convey("When wrapping keeps the cause's kind", func() {
			err := Wrap("api.get_user", fmt.Errorf("user %q: %w", "x", repository.ErrNotFound))
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			So(Wrap("api.get_user", nil), ShouldBeNil)
		})
	})
}

func TestClassify(t *testing.T) {
	Convey("Given errors from every layer", t, func() {
		cases := []struct {
			err    error
			status int
			code   string
		}{
			{&validation.Error{Fields: map[string]string{"lang": "is required"}}, http.StatusBadRequest, "validation_failed"},
			{NewKind("op", ErrBadRequest), http.StatusBadRequest, "bad_request"},
			{repository.ErrNotFound, http.StatusNotFound, "not_found"},
			{fmt.Errorf("pack: %w", packs.ErrPackNotFound), http.StatusNotFound, "not_found"},
			{repository.ErrAlreadyExists, http.StatusConflict, "conflict"},
			{service.ErrDuplicateSubmission, http.StatusConflict, "conflict"},
			{ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
			{ErrBackpressure, http.StatusTooManyRequests, "backpressure"},
			{sources.ErrUnknownSource, http.StatusBadGateway, "upstream_unavailable"},
			{service.ErrNotStarted, http.StatusServiceUnavailable, "unavailable"},
			{errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
		}
		for _, c := range cases {
			status, code := classify(c.err)
			So(status, ShouldEqual, c.status)
			So(code, ShouldEqual, c.code)
		}
	})
}
