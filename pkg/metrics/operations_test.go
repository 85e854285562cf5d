package metrics

import (
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestNewOperations(t *testing.T) {
	Convey("When creating a new operations tracker", t, func() {
		m := NewOperations()
		Convey("Then it should not be nil", func() {
			So(m, ShouldNotBeNil)
			So(m.GetMetrics(), ShouldBeEmpty)
		})
	})
}

func TestRecord(t *testing.T) {
	Convey("Given an operations tracker", t, func() {
		m := NewOperations()
		m.Record("open", nil, time.Second)
		m.Record("open", errors.New("boom"), time.Second)

		Convey("Then calls and failures are counted", func() {
			s := m.Get("open")
			So(s.Calls, ShouldEqual, 2)
			So(s.Failures, ShouldEqual, 1)
			So(s.Latency, ShouldEqual, 2*time.Second)
			So(s.LastError, ShouldEqual, "boom")
		})

		Convey("Then unknown operations are zero", func() {
			So(m.Get("delete").Calls, ShouldEqual, 0)
		})
	})
}

func TestGetMetrics(t *testing.T) {
	Convey("Given an operations tracker with data", t, func() {
		m := NewOperations()
		m.Record("children", nil, time.Second)
		m.Record("children", nil, 3*time.Second)
		metrics := m.GetMetrics()

		Convey("Then returned metrics reflect counts and averages", func() {
			children := metrics["children"].(map[string]any)
			So(children["calls"], ShouldEqual, int64(2))
			So(children["avg_latency"], ShouldEqual, 2.0)
		})
	})
}

func TestReset(t *testing.T) {
	Convey("Given a populated operations tracker", t, func() {
		m := NewOperations()
		m.Record("create", nil, time.Second)
		m.Reset()
		Convey("Then all values are cleared", func() {
			So(m.Get("create").Calls, ShouldEqual, 0)
			So(m.GetMetrics(), ShouldBeEmpty)
		})
	})
}
