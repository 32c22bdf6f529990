package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/okian/peelforce/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func result(layer int64, session string) model.PeelResult {
	return model.PeelResult{
		Metrics: model.AdhesionMetrics{LayerID: layer, SessionID: session, SampleCount: 10},
		Curve:   model.Curve{Times: []float64{0, 1}, Positions: []float64{0, 1}, Forces: []float64{0, 1}},
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	Convey("Given an empty store", t, func() {
		s := NewMemoryStore()

		Convey("Then queries should report nothing", func() {
			So(s.Count(ctx), ShouldEqual, 0)
			got, err := s.Latest(ctx, 5)
			So(err, ShouldBeNil)
			So(got, ShouldBeEmpty)
			_, err = s.ByLayer(ctx, 1)
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			_, err = s.Session(ctx, "missing")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("Then a non-positive limit should be rejected", func() {
			_, err := s.Latest(ctx, 0)
			So(errors.Is(err, ErrInvalidLimit), ShouldBeTrue)
		})
	})

	Convey("Given a store with results for several layers", t, func() {
		s := NewMemoryStore()
		So(s.Put(ctx, result(1, "a")), ShouldBeNil)
		So(s.Put(ctx, result(2, "b")), ShouldBeNil)
		So(s.Put(ctx, result(1, "c")), ShouldBeNil)

		Convey("When listing the latest", func() {
			got, err := s.Latest(ctx, 2)
			So(err, ShouldBeNil)

			Convey("Then results should come newest first", func() {
				So(len(got), ShouldEqual, 2)
				So(got[0].Metrics.SessionID, ShouldEqual, "c")
				So(got[1].Metrics.SessionID, ShouldEqual, "b")
			})
		})

		Convey("When querying a layer", func() {
			got, err := s.ByLayer(ctx, 1)
			So(err, ShouldBeNil)
			So(len(got), ShouldEqual, 2)
			So(got[0].Metrics.SessionID, ShouldEqual, "c")
			So(got[1].Metrics.SessionID, ShouldEqual, "a")
		})

		Convey("When querying a session", func() {
			got, err := s.Session(ctx, "b")
			So(err, ShouldBeNil)
			So(got.Metrics.LayerID, ShouldEqual, 2)
		})
	})

	Convey("Given a store with a small history", t, func() {
		s := NewMemoryStore(WithHistory(3), WithCurveHistory(1))
		for i := 0; i < 5; i++ {
			So(s.Put(ctx, result(int64(i), fmt.Sprint(i))), ShouldBeNil)
		}

		Convey("Then the oldest results should be evicted", func() {
			So(s.Count(ctx), ShouldEqual, 3)
			_, err := s.ByLayer(ctx, 0)
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			got, _ := s.Latest(ctx, 10)
			So(got[0].Metrics.SessionID, ShouldEqual, "4")
			So(got[2].Metrics.SessionID, ShouldEqual, "2")
		})

		Convey("Then only the newest results should keep their trace", func() {
			got, _ := s.Latest(ctx, 10)
			So(got[0].Curve.Len(), ShouldEqual, 2)
			So(got[1].Curve.Len(), ShouldEqual, 0)
			So(got[1].Metrics.SampleCount, ShouldEqual, 10)
		})
	})

	Convey("Given concurrent writers and readers", t, func() {
		s := NewMemoryStore(WithHistory(50))
		var wg sync.WaitGroup
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					_ = s.Put(ctx, result(int64(w), fmt.Sprintf("%d-%d", w, i)))
					_, _ = s.Latest(ctx, 5)
				}
			}(w)
		}
		wg.Wait()

		So(s.Count(ctx), ShouldEqual, 50)
	})
}
