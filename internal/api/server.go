package api

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"tweetclassifier/internal/classifier"
	"tweetclassifier/internal/content"
	"tweetclassifier/internal/domain"
	"tweetclassifier/internal/storage"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	rawPageSize   = 25
	recentLimit   = 10
	feedLimit     = 50
	defaultPrompt = "Type Here"
)

// Pages supplies the markdown documents and image galleries.
type Pages interface {
	Page(name string) (*content.Page, error)
	Images(section string) ([]string, error)
}

type Server struct {
	echo        *echo.Echo
	classifier  classifier.Classifier
	tweets      storage.TweetRepository
	predictions storage.PredictionRepository
	pages       Pages
	templates   *template.Template
	sse         *SSEBroker
	now         func() time.Time
}

type CountView struct {
	Label   string
	Class   string
	Count   int
	Percent string
}

type TweetView struct {
	ID      string
	Label   string
	Class   string
	Message string
}

type PredictionView struct {
	ID         string
	Model      string
	Text       string
	Author     string
	Label      string
	Class      string
	Confidence string
	Source     string
	TimeAgo    string
}

type ModelView struct {
	Name        string
	Title       string
	Description string
	Default     bool
}

// NewServer builds the web application. staticDir is served under /static
// when non-empty.
func NewServer(cl classifier.Classifier, tweets storage.TweetRepository, predictions storage.PredictionRepository, pages Pages, staticDir string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency}
			if v.Error != nil {
				slog.Error("request", append(attrs, "error", v.Error)...)
				return nil
			}
			slog.Info("request", attrs...)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	tmpl := template.Must(template.ParseFS(templateFS, "templates/*.html"))

	s := &Server{
		echo:        e,
		classifier:  cl,
		tweets:      tweets,
		predictions: predictions,
		pages:       pages,
		templates:   tmpl,
		sse:         NewSSEBroker(),
		now:         time.Now,
	}

	s.routes(staticDir)

	return s
}

func (s *Server) routes(staticDir string) {
	s.echo.GET("/", s.index)
	s.echo.POST("/classify", s.classify)
	s.echo.GET("/eda", s.eda)
	s.echo.GET("/models", s.models)
	s.echo.GET("/about", s.about)
	s.echo.GET("/feed", s.feed)
	s.echo.GET("/health", s.health)

	s.echo.GET("/api/events", s.events)
	s.echo.POST("/api/classify", s.apiClassify)
	s.echo.GET("/api/models", s.apiModels)
	s.echo.GET("/api/tweets", s.apiTweets)
	s.echo.GET("/api/predictions", s.apiPredictions)
	s.echo.GET("/api/predictions/:id", s.apiPrediction)

	if staticDir != "" {
		s.echo.Static("/static", staticDir)
	}
}

func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Broadcast pushes an HTML fragment to every live feed viewer.
func (s *Server) Broadcast(msg string) {
	s.sse.Broadcast(msg)
}

func (s *Server) index(c echo.Context) error {
	data := s.predictionPage(c.Request().Context(), s.classifier.DefaultModel(), defaultPrompt)
	return s.render(c, http.StatusOK, "index.html", data)
}

func (s *Server) classify(c echo.Context) error {
	ctx := c.Request().Context()
	text := c.FormValue("text")
	modelName := c.FormValue("model")
	if modelName == "" {
		modelName = s.classifier.DefaultModel()
	}

	status := http.StatusOK
	var result *PredictionView
	var message string

	res, err := s.classifier.Classify(ctx, modelName, text)
	if err != nil {
		slog.Warn("classify failed", "model", modelName, "error", err)
		status = http.StatusUnprocessableEntity
		message = errorMessage(err)
	} else {
		p := s.record(ctx, res, text, domain.SourceWeb, "")
		v := s.predictionView(p)
		result = &v
	}

	data := s.predictionPage(ctx, modelName, text)
	data["Result"] = result
	data["Error"] = message
	return s.render(c, status, "index.html", data)
}

func (s *Server) predictionPage(ctx context.Context, selected, text string) map[string]any {
	models := s.modelViews()

	recent, err := s.predictions.RecentPredictions(ctx, recentLimit)
	if err != nil {
		slog.Error("recent predictions failed", "error", err)
	}

	return map[string]any{
		"Active":   "prediction",
		"Models":   models,
		"Selected": selected,
		"Text":     text,
		"Recent":   s.predictionViews(recent),
	}
}

func (s *Server) eda(c echo.Context) error {
	ctx := c.Request().Context()

	counts, err := s.tweets.CountBySentiment(ctx)
	if err != nil {
		slog.Error("count tweets failed", "error", err)
	}
	images, err := s.pages.Images("eda")
	if err != nil {
		slog.Error("list eda images failed", "error", err)
	}

	views, total := countViews(counts)
	data := map[string]any{
		"Active": "eda",
		"Page":   s.page("eda"),
		"Counts": views,
		"Total":  total,
		"Images": images,
	}

	if c.QueryParam("show_raw") != "1" {
		return s.render(c, http.StatusOK, "eda.html", data)
	}
	data["ShowRaw"] = true

	filter, err := htmlTweetFilter(c)
	if err != nil {
		data["Error"] = err.Error()
		return s.render(c, http.StatusBadRequest, "eda.html", data)
	}

	tweets, err := s.tweets.FindTweets(ctx, filter)
	if err != nil {
		return err
	}
	matched, err := s.tweets.CountTweets(ctx, filter)
	if err != nil {
		return err
	}

	rows := make([]TweetView, len(tweets))
	for i, t := range tweets {
		rows[i] = TweetView{ID: t.ID, Label: t.Sentiment.String(), Class: t.Sentiment.Slug(), Message: t.Content}
	}

	page := filter.Offset/rawPageSize + 1
	pages := (matched + rawPageSize - 1) / rawPageSize
	label := c.QueryParam("sentiment")

	data["Tweets"] = rows
	data["Matched"] = matched
	data["Filter"] = label
	data["Labels"] = domain.Sentiments()
	data["PageNum"] = page
	data["Pages"] = pages
	if page > 1 {
		data["PrevURL"] = rawURL(label, page-1)
	}
	if page < pages {
		data["NextURL"] = rawURL(label, page+1)
	}
	return s.render(c, http.StatusOK, "eda.html", data)
}

func (s *Server) models(c echo.Context) error {
	data := map[string]any{
		"Active": "models",
		"Page":   s.page("models"),
		"Models": s.modelViews(),
	}
	return s.render(c, http.StatusOK, "models.html", data)
}

func (s *Server) about(c echo.Context) error {
	images, err := s.pages.Images("")
	if err != nil {
		slog.Error("list images failed", "error", err)
	}

	data := map[string]any{
		"Active": "about",
		"Page":   s.page("about"),
		"Images": images,
	}
	return s.render(c, http.StatusOK, "about.html", data)
}

func (s *Server) feed(c echo.Context) error {
	recent, err := s.predictions.RecentPredictions(c.Request().Context(), feedLimit)
	if err != nil {
		slog.Error("recent predictions failed", "error", err)
	}

	data := map[string]any{
		"Active": "feed",
		"Items":  s.predictionViews(recent),
	}
	return s.render(c, http.StatusOK, "feed.html", data)
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"status": "ok", "listeners": s.sse.Clients()})
}

// record stores a prediction. Storage failures are logged; the caller still
// gets its result.
func (s *Server) record(ctx context.Context, res *classifier.Result, text string, source domain.Source, author string) domain.Prediction {
	p := domain.Prediction{
		ID:         uuid.NewString(),
		Model:      res.Model,
		Text:       text,
		Label:      res.Label,
		Confidence: res.Confidence,
		Source:     source,
		Author:     author,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.predictions.SavePrediction(ctx, p); err != nil {
		slog.Error("save prediction failed", "id", p.ID, "error", err)
	}
	return p
}

func (s *Server) page(name string) *content.Page {
	p, err := s.pages.Page(name)
	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			slog.Warn("page missing", "page", name)
		} else {
			slog.Error("page failed", "page", name, "error", err)
		}
		return &content.Page{Name: name}
	}
	return p
}

func (s *Server) modelViews() []ModelView {
	specs := s.classifier.Models()
	def := s.classifier.DefaultModel()

	views := make([]ModelView, len(specs))
	for i, m := range specs {
		title := m.Title
		if title == "" {
			title = m.Name
		}
		views[i] = ModelView{Name: m.Name, Title: title, Description: m.Description, Default: m.Name == def}
	}
	return views
}

func (s *Server) predictionView(p domain.Prediction) PredictionView {
	v := PredictionView{
		ID:      p.ID,
		Model:   p.Model,
		Text:    p.Text,
		Author:  p.Author,
		Label:   p.Label.String(),
		Class:   p.Label.Slug(),
		Source:  string(p.Source),
		TimeAgo: timeAgo(s.now().Sub(p.CreatedAt)),
	}
	if p.Confidence > 0 {
		v.Confidence = fmt.Sprintf("%.1f%%", p.Confidence*100)
	}
	return v
}

func (s *Server) predictionViews(ps []domain.Prediction) []PredictionView {
	views := make([]PredictionView, len(ps))
	for i, p := range ps {
		views[i] = s.predictionView(p)
	}
	return views
}

func (s *Server) render(c echo.Context, status int, name string, data any) error {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		slog.Error("render failed", "template", name, "error", err)
		return err
	}
	return c.HTMLBlob(status, buf.Bytes())
}

func countViews(counts map[domain.Sentiment]int) ([]CountView, int) {
	total := 0
	for _, n := range counts {
		total += n
	}

	views := make([]CountView, 0, len(counts))
	for _, s := range domain.Sentiments() {
		n := counts[s]
		pct := "0.0%"
		if total > 0 {
			pct = fmt.Sprintf("%.1f%%", float64(n)*100/float64(total))
		}
		views = append(views, CountView{Label: s.String(), Class: s.Slug(), Count: n, Percent: pct})
	}
	return views, total
}

// parseSentiment accepts a display name ("Pro") or a numeric label ("1").
// An empty string means no filter.
func parseSentiment(v string) (*domain.Sentiment, error) {
	if v == "" {
		return nil, nil
	}
	if s, ok := domain.ParseSentiment(v); ok {
		return &s, nil
	}
	if n, err := strconv.Atoi(v); err == nil && domain.Sentiment(n).Valid() {
		s := domain.Sentiment(n)
		return &s, nil
	}
	return nil, fmt.Errorf("unknown sentiment %q", v)
}

func htmlTweetFilter(c echo.Context) (storage.TweetFilter, error) {
	sent, err := parseSentiment(c.QueryParam("sentiment"))
	if err != nil {
		return storage.TweetFilter{}, err
	}

	page := 1
	if v := c.QueryParam("page"); v != "" {
		page, err = strconv.Atoi(v)
		if err != nil || page < 1 {
			return storage.TweetFilter{}, fmt.Errorf("invalid page %q", v)
		}
	}

	return storage.TweetFilter{Sentiment: sent, Limit: rawPageSize, Offset: (page - 1) * rawPageSize}, nil
}

func rawURL(label string, page int) string {
	q := url.Values{"show_raw": {"1"}, "page": {strconv.Itoa(page)}}
	if label != "" {
		q.Set("sentiment", label)
	}
	return "/eda?" + q.Encode()
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, classifier.ErrEmptyText):
		return "Enter some text to classify."
	default:
		return "Classification failed: " + strings.TrimPrefix(err.Error(), "classifier: ")
	}
}

func timeAgo(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
