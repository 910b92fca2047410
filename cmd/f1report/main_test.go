package main

import (
	"bytes"
	"testing"

	"f1report/internal/models"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestPrintRunPartial(t *testing.T) {
	color.NoColor = true
	run := &models.Run{
		ID:      "run-1",
		Status:  models.RunStatusPartial,
		FileKey: "runs/run-1/f1-report-20240302-150000.xlsx",
		Warning: "close connection: session expired",
		Reports: []models.ReportResult{
			{Position: 1, Name: "top_drivers_points", Chart: "pie", Status: models.ResultStatusOK, Rows: 10, DurationMs: 1200},
			{Position: 2, Name: "most_overtakes", Chart: "scatter", Status: models.ResultStatusFailed, Error: "run query: timeout"},
		},
	}

	var buf bytes.Buffer
	printRun(&buf, run)
	out := buf.String()

	assert.Contains(t, out, "top_drivers_points")
	assert.Contains(t, out, "most_overtakes")
	assert.Contains(t, out, "run query: timeout")
	assert.Contains(t, out, "1.2s")
	assert.Contains(t, out, "partial (1 of 2 reports failed)")
	assert.Contains(t, out, "Workbook: runs/run-1/f1-report-20240302-150000.xlsx")
	assert.Contains(t, out, "Warning: close connection: session expired")
}

func TestPrintRunConnectFailure(t *testing.T) {
	color.NoColor = true
	run := &models.Run{ID: "run-2", Status: models.RunStatusFailed, Error: "390100: incorrect username or password"}

	var buf bytes.Buffer
	printRun(&buf, run)
	out := buf.String()

	assert.Contains(t, out, "Run run-2: failed")
	assert.Contains(t, out, "Error: 390100: incorrect username or password")
	assert.NotContains(t, out, "Workbook:")
}

func TestExitErrorMessage(t *testing.T) {
	assert.Equal(t, "exit code 2", exitError{code: ExitCodeReportsFailed}.Error())
}
