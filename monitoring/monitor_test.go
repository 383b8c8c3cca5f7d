package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/zkmemsim/system"
)

type fixedTraffic struct {
	report system.TrafficReport
}

func (f fixedTraffic) TrafficReport() system.TrafficReport {
	return f.report
}

type innerObject struct {
	Count int
}

type sampleObject struct {
	Count int
	Name  string
	Inner innerObject
}

var _ = Describe("Monitor", func() {
	var (
		m *Monitor
	)

	BeforeEach(func() {
		m = NewMonitor().WithProfileDuration(10 * time.Millisecond)
	})

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		m.Router().ServeHTTP(rec, req)

		return rec
	}

	It("should fall back to a random port for reserved ports", func() {
		m.WithPortNumber(80)
		Expect(m.portNumber).To(Equal(0))

		m.WithPortNumber(8080)
		Expect(m.portNumber).To(Equal(8080))
	})

	It("should list progress bars", func() {
		bar := m.CreateProgressBar("kernels", 10)
		bar.IncrementInProgress(3)
		bar.MoveInProgressToFinished(2)
		m.CreateProgressBar("stages", 5)

		rec := get("/api/progress")

		Expect(rec.Code).To(Equal(http.StatusOK))

		var bars []ProgressBar
		Expect(json.Unmarshal(rec.Body.Bytes(), &bars)).To(Succeed())
		Expect(bars).To(HaveLen(2))
		Expect(bars[0].ID).To(Equal(bar.ID))
		Expect(bars[0].Finished).To(Equal(uint64(2)))
		Expect(bars[0].InProgress).To(Equal(uint64(1)))
	})

	It("should drop completed progress bars", func() {
		bar := m.CreateProgressBar("kernels", 10)
		m.CompleteProgressBar(bar)

		Expect(m.progressBars).To(BeEmpty())
	})

	It("should report the traffic of a source", func() {
		m.RegisterTrafficSource("system", fixedTraffic{
			report: system.TrafficReport{Calls: 3, Ops: 42},
		})

		rec := get("/api/traffic/system")

		Expect(rec.Code).To(Equal(http.StatusOK))

		var report system.TrafficReport
		Expect(json.Unmarshal(rec.Body.Bytes(), &report)).To(Succeed())
		Expect(report.Calls).To(Equal(3))
		Expect(report.Ops).To(Equal(uint64(42)))

		rec = get("/api/traffic")
		Expect(rec.Body.String()).To(MatchJSON(`["system"]`))
	})

	It("should return 404 for unknown names", func() {
		Expect(get("/api/traffic/none").Code).To(Equal(http.StatusNotFound))
		Expect(get("/api/object/none").Code).To(Equal(http.StatusNotFound))
	})

	It("should serialize registered objects", func() {
		m.RegisterObject("obj", &sampleObject{Count: 7, Name: "x"})

		Expect(get("/api/object").Body.String()).To(MatchJSON(`["obj"]`))

		rec := get("/api/object/obj")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).NotTo(BeEmpty())
	})

	It("should serialize a field of an object", func() {
		m.RegisterObject("obj", &sampleObject{
			Inner: innerObject{Count: 1},
		})

		q := url.PathEscape(`{"object_name":"obj","field_name":"Inner"}`)
		rec := get("/api/field/" + q)

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).NotTo(BeEmpty())
	})

	It("should reject malformed field requests", func() {
		Expect(get("/api/field/notjson").Code).To(Equal(http.StatusBadRequest))
	})

	It("should report process resources", func() {
		rec := get("/api/resource")

		Expect(rec.Code).To(Equal(http.StatusOK))

		var rsp resourceRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.MemorySize).To(BeNumerically(">", 0))
	})

	It("should collect a CPU profile", func() {
		Expect(get("/api/profile").Code).To(Equal(http.StatusOK))
	})

	It("should serve the dashboard", func() {
		rec := get("/")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(HavePrefix("<!DOCTYPE html>"))
	})

	It("should serve over HTTP", func() {
		addr, err := m.StartServer()
		Expect(err).NotTo(HaveOccurred())
		defer m.Shutdown(context.Background())

		rsp, err := http.Get(addr + "/api/progress")
		Expect(err).NotTo(HaveOccurred())
		defer rsp.Body.Close()

		Expect(rsp.StatusCode).To(Equal(http.StatusOK))
	})
})
