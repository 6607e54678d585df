package model

// VitalsSnapshot 一次生命体征记录，未填写的字段为 nil
type VitalsSnapshot struct {
	Systolic         *float64 `json:"systolic,omitempty"`
	Diastolic        *float64 `json:"diastolic,omitempty"`
	HeartRate        *float64 `json:"heart_rate,omitempty"`
	FastingSugar     *float64 `json:"fasting_sugar,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"` // 华氏度
	OxygenSaturation *float64 `json:"oxygen_saturation,omitempty"`
	Weight           *float64 `json:"weight,omitempty"`
}
