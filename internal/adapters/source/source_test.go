package source

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/peelforce/internal/adapters/position"
	"github.com/okian/peelforce/internal/timeutil"
	. "github.com/smartystreets/goconvey/convey"
	"go.bug.st/serial"
)

type collector struct {
	mu  sync.Mutex
	ts  []float64
	raw []float64
}

func (c *collector) cb(ts, raw float64) {
	c.mu.Lock()
	c.ts = append(c.ts, ts)
	c.raw = append(c.raw, raw)
	c.mu.Unlock()
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.raw)
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

func nextEvent(ch <-chan Event) (Event, bool) {
	select {
	case e := <-ch:
		return e, true
	case <-time.After(2 * time.Second):
		return Event{}, false
	}
}

func TestParseLine(t *testing.T) {
	Convey("Given amplifier lines", t, func() {
		Convey("When only a raw value is sent", func() {
			_, hasTS, raw, err := ParseLine(" 0.4512\r")
			So(err, ShouldBeNil)
			So(hasTS, ShouldBeFalse)
			So(raw, ShouldEqual, 0.4512)
		})

		Convey("When a timestamp and raw value are sent", func() {
			ts, hasTS, raw, err := ParseLine("12.5,0.25")
			So(err, ShouldBeNil)
			So(hasTS, ShouldBeTrue)
			So(ts, ShouldEqual, 12.5)
			So(raw, ShouldEqual, 0.25)
		})

		Convey("When the line is garbage", func() {
			for _, line := range []string{"", "abc", "1,2,3", "1;x"} {
				_, _, _, err := ParseLine(line)
				So(errors.Is(err, ErrParseLine), ShouldBeTrue)
			}
		})
	})
}

func TestPortOptions(t *testing.T) {
	Convey("Given serial options", t, func() {
		Convey("When empty", func() {
			opts, err := PortOptions{}.Normalize()
			So(err, ShouldBeNil)
			So(opts.BaudRate, ShouldEqual, 115200)
			So(opts.DataBits, ShouldEqual, 8)
			So(opts.StopBits, ShouldEqual, 1)
			So(opts.Parity, ShouldEqual, "N")
		})

		Convey("When converted to a mode", func() {
			mode, err := PortOptions{BaudRate: 9600, StopBits: 2, Parity: "even"}.SerialMode()
			So(err, ShouldBeNil)
			So(mode.BaudRate, ShouldEqual, 9600)
			So(mode.StopBits, ShouldEqual, serial.TwoStopBits)
			So(mode.Parity, ShouldEqual, serial.EvenParity)
		})

		Convey("When invalid", func() {
			_, err := PortOptions{DataBits: 9}.Normalize()
			So(errors.Is(err, ErrInvalidOptions), ShouldBeTrue)
			_, err = PortOptions{StopBits: 3}.Normalize()
			So(errors.Is(err, ErrInvalidOptions), ShouldBeTrue)
			_, err = PortOptions{Parity: "mark"}.SerialMode()
			So(errors.Is(err, ErrInvalidOptions), ShouldBeTrue)
		})
	})
}

func TestSerialSource(t *testing.T) {
	Convey("Given a serial source on a testable port", t, func() {
		port := NewTestablePort()
		clock := timeutil.NewMockClock(time.Unix(0, 0))
		epoch := timeutil.NewEpoch(clock)
		src := NewSerial("/dev/ttyTEST", PortOptions{}, port.Opener(), epoch)
		c := &collector{}

		So(src.Start(context.Background(), c.cb), ShouldBeNil)
		e, ok := nextEvent(src.Events())
		So(ok, ShouldBeTrue)
		So(e.Kind, ShouldEqual, EventAttached)

		Convey("When lines arrive", func() {
			clock.Advance(250 * time.Millisecond)
			port.Feed("0.5\n3.0,0.75\nnoise\n1.25\n")

			Convey("Then readings should reach the callback and bad lines become events", func() {
				So(waitFor(func() bool { return c.len() == 3 }), ShouldBeTrue)
				c.mu.Lock()
				So(c.raw, ShouldResemble, []float64{0.5, 0.75, 1.25})
				So(c.ts[0], ShouldAlmostEqual, 0.25, 1e-9)
				So(c.ts[1], ShouldEqual, 3.0)
				c.mu.Unlock()
				e, ok := nextEvent(src.Events())
				So(ok, ShouldBeTrue)
				So(e.Kind, ShouldEqual, EventError)
				So(errors.Is(e.Err, ErrParseLine), ShouldBeTrue)
			})
		})

		Convey("When the interval is changed", func() {
			So(src.SetInterval(5), ShouldBeNil)
			So(port.Written(), ShouldEqual, "I5\n")
			So(errors.Is(src.SetInterval(0), ErrInvalidOptions), ShouldBeTrue)
		})

		Convey("When started twice", func() {
			So(errors.Is(src.Start(context.Background(), c.cb), ErrAlreadyStarted), ShouldBeTrue)
		})

		Convey("When the device disconnects", func() {
			port.Fail(errors.New("device unplugged"))

			Convey("Then a detach event should carry the fault", func() {
				e, ok := nextEvent(src.Events())
				So(ok, ShouldBeTrue)
				So(e.Kind, ShouldEqual, EventDetached)
				So(e.Err, ShouldNotBeNil)
			})
		})

		Convey("When closed", func() {
			So(src.Close(), ShouldBeNil)
			So(src.Close(), ShouldBeNil)

			Convey("Then a clean detach should be reported", func() {
				e, ok := nextEvent(src.Events())
				So(ok, ShouldBeTrue)
				So(e.Kind, ShouldEqual, EventDetached)
				So(e.Err, ShouldBeNil)
				So(errors.Is(src.SetInterval(5), ErrSourceClosed), ShouldBeTrue)
			})
		})

		_ = src.Close()
	})

	Convey("Given a port that cannot be opened", t, func() {
		failing := func(string, *serial.Mode) (Porter, error) { return nil, errors.New("no such device") }
		src := NewSerial("/dev/missing", PortOptions{}, failing, nil)

		Convey("Then start should fail and report an error event", func() {
			So(src.Start(context.Background(), func(float64, float64) {}), ShouldNotBeNil)
			e, ok := nextEvent(src.Events())
			So(ok, ShouldBeTrue)
			So(e.Kind, ShouldEqual, EventError)
		})
	})
}

func TestSimulatedSource(t *testing.T) {
	Convey("Given a simulated amplifier", t, func() {
		stage := position.NewStage(nil, 0, 3, 1)
		src := NewSimulated(SimConfig{Interval: time.Millisecond, Gain: 0.1, Offset: 1, Seed: 1}, stage, nil)

		Convey("Then the noiseless curve should peak a third of the way along", func() {
			So(src.ForceAt(0), ShouldAlmostEqual, 0.01, 1e-12)
			So(src.ForceAt(1), ShouldAlmostEqual, 0.2, 1e-12)
			So(src.ForceAt(2.5), ShouldAlmostEqual, 0.02, 1e-12)
			So(src.ForceAt(1.2), ShouldBeLessThan, 0.2)
		})

		Convey("When started", func() {
			c := &collector{}
			ctx, cancel := context.WithCancel(context.Background())
			So(src.Start(ctx, c.cb), ShouldBeNil)

			Convey("Then raw readings should be delivered", func() {
				So(waitFor(func() bool { return c.len() >= 5 }), ShouldBeTrue)
				c.mu.Lock()
				So(c.raw[0], ShouldBeGreaterThan, 1)
				c.mu.Unlock()
				So(src.SetInterval(2), ShouldBeNil)
				So(errors.Is(src.Start(ctx, c.cb), ErrAlreadyStarted), ShouldBeTrue)
			})

			cancel()
			_ = src.Close()
		})
	})

	Convey("Given a disabled source", t, func() {
		d := NewDisabled()
		So(d.Start(context.Background(), nil), ShouldBeNil)
		So(d.SetInterval(1), ShouldBeNil)
		So(d.Close(), ShouldBeNil)
		So(d.Events(), ShouldNotBeNil)
	})
}
