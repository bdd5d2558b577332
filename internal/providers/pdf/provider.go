package pdf

import (
	"context"
	"io"
	"time"
)

type Provider interface {
	GenerateProjectReport(ctx context.Context, data ProjectReport) (io.Reader, error)
}

type ProjectReport struct {
	OrgName     string
	ProjectKey  string
	ProjectName string
	Description string
	Status      string
	StartDate   string
	DueDate     string
	GeneratedAt time.Time

	// StatusCounts is keyed by task status.
	StatusCounts map[string]int64
	Tasks        []ReportTask
}

type ReportTask struct {
	Title    string
	Status   string
	Priority string
	Assignee string
	DueDate  string
}
