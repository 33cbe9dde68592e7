package api

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/msaad732/meme-coin/internal/models"
	"github.com/msaad732/meme-coin/internal/service"
)

//go:embed templates/dashboard.html
var templatesFS embed.FS

var dashboardTemplate = template.Must(template.ParseFS(templatesFS, "templates/dashboard.html"))

// DashboardTimeFormat is how record times are shown on the dashboard.
const DashboardTimeFormat = "2006-01-02 15:04:05 UTC"

// DashboardHandler renders the HTML overview of recent records.
type DashboardHandler struct {
	reads *service.ReadService
}

// NewDashboardHandler creates a DashboardHandler.
func NewDashboardHandler(reads *service.ReadService) *DashboardHandler {
	return &DashboardHandler{reads: reads}
}

type dashboardRow struct {
	Time    string
	Channel string
	Author  string
	Content string
}

type dashboardPage struct {
	Latest       *dashboardRow
	Rows         []dashboardRow
	Warning      string
	Source       string
	Limit        int
	LimitOptions []int
}

// Show handles GET /. An unparseable limit falls back to the default.
func (h *DashboardHandler) Show(c echo.Context) error {
	limit, err := service.ParseLimit(c.QueryParam("limit"))
	if err != nil {
		limit = service.DefaultLimit
	}
	// The selector only offers multiples of the step.
	limit = max(service.MinLimit, limit/service.LimitStep*service.LimitStep)

	res, err := h.reads.Recent(c.Request().Context(), limit)
	if err != nil {
		slog.Error("dashboard read failed", "error", err)
		res = service.RecentResult{Source: service.SourceFallback, Warning: err.Error()}
	}

	page := dashboardPage{
		Rows:         make([]dashboardRow, 0, len(res.Records)),
		Warning:      res.Warning,
		Source:       res.Source,
		Limit:        limit,
		LimitOptions: limitOptions(),
	}
	for _, rec := range res.Records {
		page.Rows = append(page.Rows, newDashboardRow(rec))
	}
	if len(page.Rows) > 0 {
		latest := page.Rows[0]
		page.Latest = &latest
	}

	var buf bytes.Buffer
	if err := dashboardTemplate.Execute(&buf, page); err != nil {
		slog.Error("rendering dashboard", "error", err)
		return Error(c, http.StatusInternalServerError, "internal server error")
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

func newDashboardRow(rec models.Record) dashboardRow {
	return dashboardRow{
		Time:    rec.Time().Format(DashboardTimeFormat),
		Channel: rec.ChannelLabel(),
		Author:  rec.Author,
		Content: rec.Content,
	}
}

func limitOptions() []int {
	opts := make([]int, 0, (service.MaxLimit-service.MinLimit)/service.LimitStep+1)
	for n := service.MinLimit; n <= service.MaxLimit; n += service.LimitStep {
		opts = append(opts, n)
	}
	return opts
}
