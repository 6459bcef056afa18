package api

import (
	"embed"
	"html/template"
	"math"
	"strings"

	"MarketSignal/internal/domain/models"
	xutil "MarketSignal/pkg/util"
)

//go:embed templates/dashboard.html
var templateFS embed.FS

var dashboardTmpl = template.Must(template.New("dashboard.html").Funcs(template.FuncMap{
	"percent": xutil.Percent,
	"round2":  func(v float64) float64 { return math.Round(v*100) / 100 },
	"lower":   func(s models.Signal) string { return strings.ToLower(string(s)) },
}).ParseFS(templateFS, "templates/dashboard.html"))

// pageData feeds templates/dashboard.html.
type pageData struct {
	Symbol      string
	Index       string
	Indices     []models.IndexQuote
	Signal      *models.DailySignal
	SocialText  string
	Social      *models.SocialSignal
	SocialError string
}
