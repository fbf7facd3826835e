package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"tweetclassifier/internal/classifier"
	"tweetclassifier/internal/domain"
	"tweetclassifier/internal/model"
	"tweetclassifier/internal/storage"
)

const maxAPILimit = 500

type classifyRequest struct {
	Text   string `json:"text"`
	Model  string `json:"model"`
	Author string `json:"author"`
}

type predictionResponse struct {
	ID         string    `json:"id"`
	Model      string    `json:"model"`
	Text       string    `json:"text"`
	Label      int       `json:"label"`
	Sentiment  string    `json:"sentiment"`
	Confidence *float64  `json:"confidence,omitempty"`
	Source     string    `json:"source"`
	Author     string    `json:"author,omitempty"`
	Cached     bool      `json:"cached,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type modelResponse struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Default     bool   `json:"default"`
}

type tweetResponse struct {
	ID        string `json:"id"`
	Label     int    `json:"label"`
	Sentiment string `json:"sentiment"`
	Message   string `json:"message"`
}

type tweetsResponse struct {
	Total  int             `json:"total"`
	Tweets []tweetResponse `json:"tweets"`
}

func newPredictionResponse(p domain.Prediction) predictionResponse {
	r := predictionResponse{
		ID:        p.ID,
		Model:     p.Model,
		Text:      p.Text,
		Label:     int(p.Label),
		Sentiment: p.Label.String(),
		Source:    string(p.Source),
		Author:    p.Author,
		CreatedAt: p.CreatedAt,
	}
	if p.Confidence > 0 {
		conf := p.Confidence
		r.Confidence = &conf
	}
	return r
}

func jsonError(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}

func (s *Server) apiClassify(c echo.Context) error {
	var req classifyRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()
	res, err := s.classifier.Classify(ctx, req.Model, req.Text)
	switch {
	case errors.Is(err, classifier.ErrEmptyText):
		return jsonError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrUnknownModel):
		return jsonError(c, http.StatusNotFound, err.Error())
	case err != nil:
		return jsonError(c, http.StatusUnprocessableEntity, err.Error())
	}

	p := s.record(ctx, res, req.Text, domain.SourceAPI, req.Author)
	out := newPredictionResponse(p)
	out.Cached = res.Cached
	return c.JSON(http.StatusOK, out)
}

func (s *Server) apiModels(c echo.Context) error {
	views := s.modelViews()
	out := make([]modelResponse, len(views))
	for i, m := range views {
		out[i] = modelResponse{Name: m.Name, Title: m.Title, Description: m.Description, Default: m.Default}
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) apiTweets(c echo.Context) error {
	sent, err := parseSentiment(c.QueryParam("sentiment"))
	if err != nil {
		return jsonError(c, http.StatusBadRequest, err.Error())
	}
	limit, err := intParam(c, "limit", 50)
	if err != nil || limit < 1 {
		return jsonError(c, http.StatusBadRequest, "invalid limit")
	}
	offset, err := intParam(c, "offset", 0)
	if err != nil || offset < 0 {
		return jsonError(c, http.StatusBadRequest, "invalid offset")
	}
	limit = min(limit, maxAPILimit)

	ctx := c.Request().Context()
	f := storage.TweetFilter{Sentiment: sent, Limit: limit, Offset: offset}

	tweets, err := s.tweets.FindTweets(ctx, f)
	if err != nil {
		return jsonError(c, http.StatusInternalServerError, err.Error())
	}
	total, err := s.tweets.CountTweets(ctx, f)
	if err != nil {
		return jsonError(c, http.StatusInternalServerError, err.Error())
	}

	out := tweetsResponse{Total: total, Tweets: make([]tweetResponse, len(tweets))}
	for i, t := range tweets {
		out.Tweets[i] = tweetResponse{ID: t.ID, Label: int(t.Sentiment), Sentiment: t.Sentiment.String(), Message: t.Content}
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) apiPredictions(c echo.Context) error {
	limit, err := intParam(c, "limit", feedLimit)
	if err != nil || limit < 1 {
		return jsonError(c, http.StatusBadRequest, "invalid limit")
	}

	ps, err := s.predictions.RecentPredictions(c.Request().Context(), min(limit, maxAPILimit))
	if err != nil {
		return jsonError(c, http.StatusInternalServerError, err.Error())
	}

	out := make([]predictionResponse, len(ps))
	for i, p := range ps {
		out[i] = newPredictionResponse(p)
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) apiPrediction(c echo.Context) error {
	p, err := s.predictions.FindPrediction(c.Request().Context(), c.Param("id"))
	if err != nil {
		return jsonError(c, http.StatusInternalServerError, err.Error())
	}
	if p == nil {
		return jsonError(c, http.StatusNotFound, "not found")
	}
	return c.JSON(http.StatusOK, newPredictionResponse(*p))
}

func intParam(c echo.Context, name string, def int) (int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
