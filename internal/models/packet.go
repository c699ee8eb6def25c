package models

import "encoding/json"

// DevicePacket is the combined wearable payload: samples and both flags in one message.
type DevicePacket struct {
	DeviceID   string      `json:"device_id"`
	Timestamp  string      `json:"timestamp"`
	SensorData *SensorData `json:"sensor_data"`
}

type SensorData struct {
	// Plethysmometer entries are decoded one by one so a bad entry only skips itself.
	Plethysmometer []json.RawMessage `json:"plethysmometer"`
	MPU            *MPUReading       `json:"mpu,omitempty"`
	EMG            *EMGReading       `json:"emg,omitempty"`
}

type MPUReading struct {
	SleepFlag bool `json:"sleep_flag"`
}

type EMGReading struct {
	AtoniaFlag bool `json:"atonia_flag"`
}

// Flags returns the packet's sensor flags, or nil when it carries neither reading.
// A single missing reading counts as false.
func (d *SensorData) Flags() *SensorFlags {
	if d == nil || (d.MPU == nil && d.EMG == nil) {
		return nil
	}
	var f SensorFlags
	if d.MPU != nil {
		f.SleepFlag = d.MPU.SleepFlag
	}
	if d.EMG != nil {
		f.AtoniaFlag = d.EMG.AtoniaFlag
	}
	return &f
}
