package placement

import (
	"errors"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/heyfey/munkres"
	"github.com/origamihpc/origami/config"
	"github.com/origamihpc/origami/pkg/common/types"
	"github.com/prometheus/client_golang/prometheus"
	"k8s.io/klog/v2"
)

// PlacementManager assigns local GPU devices to scheduled folding jobs.
// Every rescheduling produces a fresh device layout; the manager rebinds
// the layout to physical devices so that running jobs keep the devices
// they already occupy.
type PlacementManager struct {
	SchedulerID string

	// States of the placement manager, will be updated every time the
	// placements are adjusted, should be protected by placementLock.
	// devices and their states.
	deviceStates map[deviceID]*deviceState
	// jobs and their states.
	jobStates map[string]*jobState
	// placementLock is used to protect states of the placement manager.
	placementLock sync.RWMutex

	metrics PlacementManagerMetrics
}

// discoverDevices reads the schedulable GPU devices from the environment,
// a comma-separated list of device ids. A single device 0 is assumed when
// the variable is unset.
func discoverDevices() map[deviceID]*deviceState {
	devices := make(map[deviceID]*deviceState)
	list := os.Getenv(config.EnvGPUDevices)
	if list == "" {
		list = "0"
	}
	for _, id := range strings.Split(list, ",") {
		id = strings.TrimSpace(id)
		if id != "" {
			devices[deviceID(id)] = newDeviceState(deviceID(id))
		}
	}
	return devices
}

// NewPlacementManager creates a new placement manager.
func NewPlacementManager(id string) *PlacementManager {
	pm := &PlacementManager{
		SchedulerID:   id,
		deviceStates:  discoverDevices(),
		jobStates:     map[string]*jobState{},
		placementLock: sync.RWMutex{},
	}
	pm.initPlacementManagerMetrics()

	for _, d := range pm.deviceStates {
		klog.InfoS("Discovered GPU device", "scheduler", pm.SchedulerID, "device", d.id)
	}
	return pm
}

// TotalDevices returns the number of schedulable GPU devices.
func (pm *PlacementManager) TotalDevices() int {
	pm.placementLock.RLock()
	defer pm.placementLock.RUnlock()
	return len(pm.deviceStates)
}

// Devices returns the ids of the devices held by a job, sorted, ready to
// be joined into CUDA_VISIBLE_DEVICES.
func (pm *PlacementManager) Devices(job string) []string {
	pm.placementLock.RLock()
	defer pm.placementLock.RUnlock()

	js, ok := pm.jobStates[job]
	if !ok {
		return nil
	}
	devices := make([]string, len(js.devices))
	for i, id := range js.devices {
		devices[i] = string(id)
	}
	return devices
}

// Place adjusts device assignments to match a scheduling result.
func (pm *PlacementManager) Place(jobRequests types.JobScheduleResult) {
	klog.InfoS("Started placement adjustment", "scheduler", pm.SchedulerID)
	defer klog.InfoS("Finished placement adjustment", "scheduler", pm.SchedulerID)

	pm.placementLock.Lock()
	defer pm.placementLock.Unlock()
	timer := prometheus.NewTimer(pm.metrics.placementAlgoDuration)

	/***** Placement algorithm begin *****/
	pm.releaseDevices(jobRequests)
	positionList := pm.layoutDevices(jobRequests)
	rebound := pm.bindDevices(positionList)
	pm.updateJobStates()
	/***** Placement algorithm end *****/

	timer.ObserveDuration()
	pm.metrics.reboundDevicesGauge.Set(float64(rebound))

	free := 0
	for _, d := range pm.deviceStates {
		if d.job == "" {
			free++
		}
	}
	pm.metrics.freeDevicesGauge.Set(float64(free))
}

// releaseDevices frees the devices of jobs that are no longer scheduled.
// Releasing should be done in both jobStates and deviceStates because
// they represent the same states only in different perspectives.
func (pm *PlacementManager) releaseDevices(jobRequests types.JobScheduleResult) {
	for _, job := range pm.jobStates {
		gpus, ok := jobRequests[job.name]
		if ok && gpus > 0 {
			continue
		}
		for _, id := range job.devices {
			klog.V(5).InfoS("Released device", "job", job.name, "device", id, "scheduler", pm.SchedulerID)

			if d, ok := pm.deviceStates[id]; ok && d.job == job.name {
				d.job = ""
			}
		}
		job.devices = job.devices[:0]
	}
}

// layoutDevices packs the scheduled jobs onto anonymous devices, most
// demanding job first. The returned list has one position per physical
// device; positions left unpacked stay free.
func (pm *PlacementManager) layoutDevices(jobRequests types.JobScheduleResult) []*deviceState {
	requests := make([]request, 0, len(jobRequests))
	for job, n := range jobRequests {
		if n > 0 {
			requests = append(requests, request{job: job, gpus: n})
		}
	}

	// sort the list by number of GPUs requested in descending order
	sort.SliceStable(requests, func(i, j int) bool {
		if requests[i].gpus != requests[j].gpus {
			return requests[i].gpus > requests[j].gpus
		}
		return requests[i].job < requests[j].job
	})

	positionList := make([]*deviceState, 0, len(pm.deviceStates))
	for i := 0; i < len(pm.deviceStates); i++ {
		positionList = append(positionList, newDeviceState("TBD"))
	}

	idx := 0
	for _, r := range requests {
		for g := 0; g < r.gpus; g++ {
			if idx >= len(positionList) {
				// The scheduling algorithm must never request more GPUs
				// than the device count it was given.
				klog.ErrorS(errors.New("schedule exceeds device count"), "Dropped device assignment",
					"job", r.job, "scheduler", pm.SchedulerID)
				return positionList
			}
			positionList[idx].job = r.job
			idx++
		}
	}
	return positionList
}

// bindDevices constructs new deviceStates by binding each position in the
// layout to one of the physical devices, maximizing the number of devices
// that keep the job they already run. Returns the number of devices bound
// to a different job than before.
func (pm *PlacementManager) bindDevices(positionList []*deviceState) int {
	size := len(pm.deviceStates)
	if size == 0 {
		return 0
	}
	currentDeviceList := make([]*deviceState, 0, size)
	for _, d := range pm.deviceStates {
		currentDeviceList = append(currentDeviceList, d)
	}
	// map iteration order is random, keep the matrix reproducible
	sort.SliceStable(currentDeviceList, func(i, j int) bool {
		return currentDeviceList[i].id < currentDeviceList[j].id
	})

	scoringMatrix := make([]int64, 0, size*size)
	for _, position := range positionList {
		scoringMatrix = append(scoringMatrix, pm.scoreCandidates(position, currentDeviceList)...)
	}
	klog.V(5).InfoS("Scored all devices", "scoringMatrix", scoringMatrix, "scheduler", pm.SchedulerID)

	m := munkres.NewMatrix(size)
	m.A = scoringMatrix
	result := munkres.ComputeMunkresMax(m)

	rebound := 0
	totalScore := int64(0)
	for _, rowCol := range result {
		position := positionList[rowCol.Row]
		candidate := currentDeviceList[rowCol.Col]
		if position.job != "" && position.job != candidate.job {
			rebound++
		}
		position.rebind(candidate.id)
		totalScore += scoringMatrix[size*rowCol.Row+rowCol.Col]
	}

	newDeviceStates := make(map[deviceID]*deviceState)
	for _, d := range positionList {
		newDeviceStates[d.id] = d
	}
	klog.V(4).InfoS("Updated device states", "oldStates", pm.deviceStates, "newStates", newDeviceStates,
		"score", totalScore, "scheduler", pm.SchedulerID)

	pm.deviceStates = newDeviceStates
	return rebound
}

// scoreCandidates scores all the candidate devices for a position.
func (pm *PlacementManager) scoreCandidates(position *deviceState, candidateList []*deviceState) []int64 {
	scores := make([]int64, len(candidateList))
	for i, candidate := range candidateList {
		scores[i] = pm.score(position, candidate)
	}
	return scores
}

// score is 1 when the candidate device already runs the job placed at
// this position.
func (pm *PlacementManager) score(position *deviceState, candidate *deviceState) int64 {
	if position.job != "" && position.job == candidate.job {
		return 1
	}
	return 0
}

// updateJobStates constructs new jobStates from deviceStates and replaces
// the original ones.
func (pm *PlacementManager) updateJobStates() {
	newJobStates := make(map[string]*jobState)
	for _, d := range pm.deviceStates {
		if d.job == "" {
			continue
		}
		js, ok := newJobStates[d.job]
		if !ok {
			js = newJobState(d.job)
			newJobStates[d.job] = js
		}
		js.devices = append(js.devices, d.id)
	}
	for _, js := range newJobStates {
		sort.Slice(js.devices, func(i, j int) bool { return js.devices[i] < js.devices[j] })
	}
	klog.V(4).InfoS("Updated job states", "oldStates", pm.jobStates, "newStates", newJobStates,
		"scheduler", pm.SchedulerID)

	pm.jobStates = newJobStates
}
