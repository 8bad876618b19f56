package placement

// request represents a single folding job in JobScheduleResult.
type request struct {
	job  string
	gpus int
}

type deviceID string

// deviceState represents state of a schedulable GPU device. A device
// runs at most one folding job at a time.
type deviceState struct {
	id deviceID
	// Job that was placed on this device, empty when the device is free.
	job string
}

// newDeviceState creates a new deviceState.
func newDeviceState(id deviceID) *deviceState {
	d := &deviceState{
		id:  id,
		job: "",
	}
	return d
}

// rebind updates the id of a schedulable device.
func (d *deviceState) rebind(id deviceID) {
	d.id = id
}

// jobState represents state of a placed job.
type jobState struct {
	name string
	// Devices held by the job. The set must stay fixed while the job
	// runs; a process can not change CUDA_VISIBLE_DEVICES after start.
	devices []deviceID
}

// newJobState creates a new jobState.
func newJobState(name string) *jobState {
	j := &jobState{
		name:    name,
		devices: []deviceID{},
	}
	return j
}
