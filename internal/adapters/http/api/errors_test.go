package api

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestErrorKinds(t *testing.T) {
	Convey("Given the error helpers", t, func() {
		cause := errors.New("boom")

		Convey("Then NewKind should match its kind", func() {
			err := NewKind("api.op", ErrNotFound)
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: not found")
		})

		Convey("Then WrapKind should match both kind and cause", func() {
			err := WrapKind("api.op", ErrBadRequest, cause)
			So(errors.Is(err, ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: bad request: boom")
		})

		Convey("Then Wrap should keep the cause only", func() {
			So(Wrap("api.op", nil), ShouldBeNil)
			err := Wrap("api.op", cause)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(errors.Is(err, ErrBadRequest), ShouldBeFalse)
			So(err.Error(), ShouldEqual, "api.op: boom")
		})

		Convey("Then WrapKind without a cause should behave like NewKind", func() {
			So(errors.Is(WrapKind("api.op", ErrConflict, nil), ErrConflict), ShouldBeTrue)
		})
	})
}
