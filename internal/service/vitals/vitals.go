// Package vitals 生命体征阈值评估
package vitals

import "github.com/ashwinyue/report-insight/internal/model"

// 告警文案
const (
	AlertHighBloodPressure = "High blood pressure detected"
	AlertHighFastingSugar  = "High fasting blood sugar detected"
	AlertAbnormalHeartRate = "Abnormal heart rate detected"
	AlertAbnormalTemp      = "Abnormal body temperature detected"
	AlertLowOxygen         = "Low oxygen saturation detected"
)

// 临床阈值
const (
	maxSystolic      = 140.0
	maxDiastolic     = 90.0
	maxFastingSugar  = 126.0
	minHeartRate     = 60.0
	maxHeartRate     = 100.0
	minTemperatureF  = 97.0
	maxTemperatureF  = 100.4
	minOxygenPercent = 95.0
)

// Evaluate 按固定顺序返回告警，未填写的字段跳过；结果永远非 nil
func Evaluate(s model.VitalsSnapshot) []string {
	alerts := []string{}

	if gt(s.Systolic, maxSystolic) || gt(s.Diastolic, maxDiastolic) {
		alerts = append(alerts, AlertHighBloodPressure)
	}
	if gt(s.FastingSugar, maxFastingSugar) {
		alerts = append(alerts, AlertHighFastingSugar)
	}
	if outside(s.HeartRate, minHeartRate, maxHeartRate) {
		alerts = append(alerts, AlertAbnormalHeartRate)
	}
	if outside(s.Temperature, minTemperatureF, maxTemperatureF) {
		alerts = append(alerts, AlertAbnormalTemp)
	}
	if s.OxygenSaturation != nil && *s.OxygenSaturation < minOxygenPercent {
		alerts = append(alerts, AlertLowOxygen)
	}

	return alerts
}

func gt(v *float64, limit float64) bool {
	return v != nil && *v > limit
}

func outside(v *float64, lo, hi float64) bool {
	return v != nil && (*v < lo || *v > hi)
}
