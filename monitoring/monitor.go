// Package monitoring serves the state of a running simulation over HTTP.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"
	"github.com/sirupsen/logrus"
	"github.com/syifan/goseth"

	"github.com/sarchlab/zkmemsim/monitoring/web"
	"github.com/sarchlab/zkmemsim/system"
)

// A TrafficSource reports the traffic it has generated so far.
type TrafficSource interface {
	TrafficReport() system.TrafficReport
}

// Monitor can turn a simulation into a server and allows external monitoring
// of the simulation.
type Monitor struct {
	portNumber      int
	profileDuration time.Duration

	lock           sync.Mutex
	objects        map[string]func() any
	trafficSources map[string]TrafficSource
	progressBars   []*ProgressBar

	server *http.Server
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		profileDuration: time.Second,
		objects:         make(map[string]func() any),
		trafficSources:  make(map[string]TrafficSource),
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		logrus.Warnf("Port number %d is assigned to the monitoring server, "+
			"which is not allowed. Using a random port instead.", portNumber)

		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithProfileDuration sets how long /api/profile samples the CPU.
func (m *Monitor) WithProfileDuration(d time.Duration) *Monitor {
	m.profileDuration = d
	return m
}

// RegisterObject makes an object inspectable under the given name. The
// object is read while the simulation runs, so it must not change after it
// is registered. Use RegisterSnapshot for state that changes.
func (m *Monitor) RegisterObject(name string, obj any) {
	m.RegisterSnapshot(name, func() any { return obj })
}

// RegisterSnapshot makes the value returned by snapshot inspectable under the
// given name. snapshot is called on every request and must be safe to call
// from the server goroutines.
func (m *Monitor) RegisterSnapshot(name string, snapshot func() any) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.objects[name] = snapshot
}

// RegisterTrafficSource makes the traffic report of src available under the
// given name.
func (m *Monitor) RegisterTrafficSource(name string, src TrafficSource) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.trafficSources[name] = src
}

// Router returns the HTTP handler of the monitor.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.HandleFunc("/api/object", m.listObjects)
	r.HandleFunc("/api/object/{name}", m.objectDetails)
	r.HandleFunc("/api/field/{json}", m.fieldValue)
	r.HandleFunc("/api/traffic", m.listTrafficSources)
	r.HandleFunc("/api/traffic/{name}", m.reportTraffic)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts serving in the background and returns the URL of the
// monitor.
func (m *Monitor) StartServer() (string, error) {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	if err != nil {
		return "", err
	}

	url := "http://localhost:" +
		strconv.Itoa(listener.Addr().(*net.TCPAddr).Port)

	m.server = &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("Monitoring server stopped: %v", err)
		}
	}()

	logrus.Infof("Monitoring simulation with %s", url)

	return url, nil
}

// Shutdown stops the server started by StartServer.
func (m *Monitor) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	return m.server.Shutdown(ctx)
}

// OpenInBrowser opens the monitor in the default browser.
func (m *Monitor) OpenInBrowser(url string) error {
	return browser.OpenURL(url)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		logrus.Errorf("Failed to write response: %v", err)
	}
}

func fail(w http.ResponseWriter, code int, err error) {
	logrus.Debugf("Monitor request failed: %v", err)
	http.Error(w, err.Error(), code)
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	bars := make([]ProgressBar, len(m.progressBars))
	for i, b := range m.progressBars {
		bars[i] = b.snapshot()
	}
	m.lock.Unlock()

	writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		fail(w, http.StatusInternalServerError, err)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		fail(w, http.StatusInternalServerError, err)
		return
	}

	memInfo, err := proc.MemoryInfo()
	if err != nil {
		fail(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memInfo.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		fail(w, http.StatusConflict, err)
		return
	}

	time.Sleep(m.profileDuration)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		fail(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, prof)
}

func (m *Monitor) listObjects(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	names := make([]string, 0, len(m.objects))
	for name := range m.objects {
		names = append(names, name)
	}
	m.lock.Unlock()

	slices.Sort(names)

	writeJSON(w, names)
}

func (m *Monitor) findObject(name string) (any, bool) {
	m.lock.Lock()
	snapshot, ok := m.objects[name]
	m.lock.Unlock()

	if !ok {
		return nil, false
	}

	return snapshot(), true
}

func (m *Monitor) objectDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	obj, ok := m.findObject(name)
	if !ok {
		fail(w, http.StatusNotFound, errors.New("object not found"))
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(obj)
	serializer.SetMaxDepth(1)

	err := serializer.Serialize(w)
	if err != nil {
		logrus.Errorf("Failed to serialize %s: %v", name, err)
	}
}

type fieldReq struct {
	ObjectName string `json:"object_name,omitempty"`
	FieldName  string `json:"field_name,omitempty"`
}

func (m *Monitor) fieldValue(w http.ResponseWriter, r *http.Request) {
	req := fieldReq{}

	err := json.Unmarshal([]byte(mux.Vars(r)["json"]), &req)
	if err != nil {
		fail(w, http.StatusBadRequest, err)
		return
	}

	obj, ok := m.findObject(req.ObjectName)
	if !ok {
		fail(w, http.StatusNotFound, errors.New("object not found"))
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(obj)
	serializer.SetMaxDepth(1)

	err = serializer.SetEntryPoint(strings.Split(req.FieldName, "."))
	if err != nil {
		fail(w, http.StatusBadRequest, err)
		return
	}

	err = serializer.Serialize(w)
	if err != nil {
		logrus.Errorf("Failed to serialize %s.%s: %v",
			req.ObjectName, req.FieldName, err)
	}
}

func (m *Monitor) listTrafficSources(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	names := make([]string, 0, len(m.trafficSources))
	for name := range m.trafficSources {
		names = append(names, name)
	}
	m.lock.Unlock()

	slices.Sort(names)

	writeJSON(w, names)
}

func (m *Monitor) reportTraffic(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	m.lock.Lock()
	src, ok := m.trafficSources[name]
	m.lock.Unlock()

	if !ok {
		fail(w, http.StatusNotFound, errors.New("traffic source not found"))
		return
	}

	writeJSON(w, src.TrafficReport())
}
