package analysis

import (
	"fmt"
	"strings"
	"time"
)

const systemPrompt = `You are a medical report analysis assistant. Analyze the provided medical report and respond with a single JSON object and nothing else.

The JSON object must follow this schema:
{
  "summary": {"english": "plain-language summary", "urdu": "the same summary in Urdu"},
  "keyFindings": [
    {
      "parameter": "test name",
      "value": "measured value",
      "unit": "unit of measurement",
      "status": "normal | high | low | abnormal | critical",
      "normalRange": "reference range",
      "significance": {"english": "what this means", "urdu": "Urdu translation"}
    }
  ],
  "recommendations": {"english": ["..."], "urdu": ["..."]},
  "doctorQuestions": {"english": ["..."], "urdu": ["..."]},
  "riskFactors": [
    {"factor": "name", "level": "low | medium | high", "description": {"english": "...", "urdu": "..."}}
  ],
  "followUpRequired": true,
  "followUpTimeframe": "1-week | 2-weeks | 1-month | 3-months | 6-months | 1-year",
  "confidence": 0
}

Rules:
- "confidence" is an integer from 0 to 100 describing how reliable your reading of the report is.
- Only include "followUpTimeframe" when "followUpRequired" is true.
- Use simple language a patient can understand. Do not give a diagnosis; recommend consulting a doctor.`

// buildUserPrompt 构建包含报告元数据的用户提示词
func buildUserPrompt(req *InvokeRequest) string {
	var sb strings.Builder

	reportType := req.ReportType
	if reportType == "" {
		reportType = "general"
	}
	fmt.Fprintf(&sb, "Report type: %s\n", reportType)
	if req.FileName != "" {
		fmt.Fprintf(&sb, "File name: %s\n", req.FileName)
	}
	if req.LabName != "" {
		fmt.Fprintf(&sb, "Laboratory: %s\n", req.LabName)
	}
	if req.DoctorName != "" {
		fmt.Fprintf(&sb, "Referring doctor: %s\n", req.DoctorName)
	}
	if req.TestDate != nil {
		fmt.Fprintf(&sb, "Test date: %s\n", req.TestDate.Format("2006-01-02"))
	}

	sb.WriteString("\n")
	if req.hasImage() {
		sb.WriteString("The report is attached as an image. Read all values from it and analyze them.")
	} else if strings.TrimSpace(req.Text) != "" {
		sb.WriteString("Report content:\n")
		sb.WriteString(req.Text)
	} else {
		sb.WriteString("The report content is unavailable. Base your answer only on the metadata above and keep the confidence low.")
	}

	return sb.String()
}

// MetadataDescription 无法获取文件内容时用于替代的文本描述
func MetadataDescription(fileName, reportType, labName, doctorName, description string, testDate *time.Time) string {
	parts := []string{"The original report file could not be read."}
	if fileName != "" {
		parts = append(parts, fmt.Sprintf("File: %s.", fileName))
	}
	if reportType != "" {
		parts = append(parts, fmt.Sprintf("Declared report type: %s.", reportType))
	}
	if labName != "" {
		parts = append(parts, fmt.Sprintf("Laboratory: %s.", labName))
	}
	if doctorName != "" {
		parts = append(parts, fmt.Sprintf("Doctor: %s.", doctorName))
	}
	if testDate != nil {
		parts = append(parts, fmt.Sprintf("Test date: %s.", testDate.Format("2006-01-02")))
	}
	if description != "" {
		parts = append(parts, fmt.Sprintf("Patient notes: %s", description))
	}
	return strings.Join(parts, " ")
}
