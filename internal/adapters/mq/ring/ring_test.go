package ring

import (
	"testing"

	"github.com/okian/peelforce/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func samples(from, to int) []model.RawSample {
	out := make([]model.RawSample, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, model.RawSample{Timestamp: float64(i), Raw: float64(i) * 0.1})
	}
	return out
}

func TestRingBuffer(t *testing.T) {
	Convey("Given an empty ring of four", t, func() {
		b := New(4)

		Convey("Then it should hold nothing", func() {
			So(b.Len(), ShouldEqual, 0)
			So(b.Cap(), ShouldEqual, 4)
			_, ok := b.Latest()
			So(ok, ShouldBeFalse)
			So(b.Recent(3), ShouldBeEmpty)
		})

		Convey("When fewer samples than capacity are appended", func() {
			b.Append(samples(0, 3))

			Convey("Then all should be returned oldest first", func() {
				r := b.Recent(0)
				So(len(r), ShouldEqual, 3)
				So(r[0].Timestamp, ShouldEqual, 0)
				So(r[2].Timestamp, ShouldEqual, 2)
			})
		})

		Convey("When the ring wraps", func() {
			b.Append(samples(0, 3))
			b.Append(samples(3, 7))

			Convey("Then only the newest samples should be kept", func() {
				So(b.Len(), ShouldEqual, 4)
				So(b.Total(), ShouldEqual, 7)
				r := b.Recent(10)
				So(len(r), ShouldEqual, 4)
				So(r[0].Timestamp, ShouldEqual, 3)
				So(r[3].Timestamp, ShouldEqual, 6)
				last, ok := b.Latest()
				So(ok, ShouldBeTrue)
				So(last.Timestamp, ShouldEqual, 6)
				two := b.Recent(2)
				So(two[0].Timestamp, ShouldEqual, 5)
			})
		})
	})

	Convey("Given a non-positive capacity", t, func() {
		So(New(0).Cap(), ShouldEqual, defaultCapacity)
	})
}
