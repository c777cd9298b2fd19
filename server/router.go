package server

import (
	"crypto/subtle"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jtarchie/scrub/automaton"
	"github.com/jtarchie/scrub/redaction"
	"github.com/klauspost/compress/zstd"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/bytes"
	gonanoid "github.com/matoous/go-nanoid/v2"
	slogecho "github.com/samber/slog-echo"
)

// DefaultBodyLimit caps request bodies, before and after decompression.
const DefaultBodyLimit = "4M"

// TextRequest is the JSON body accepted by every /api endpoint that takes text.
type TextRequest struct {
	Text *string `json:"text" validate:"required"`
}

type RedactResponse struct {
	Text  string               `json:"text"`
	Spans []automaton.Interval `json:"spans"`
}

type ScanResponse struct {
	Matches []automaton.Match `json:"matches"`
}

type ContainsResponse struct {
	Found bool `json:"found"`
}

// StatsResponse describes the loaded automaton. Keyword values are never
// returned.
type StatsResponse struct {
	Keywords        int    `json:"keywords"`
	States          int    `json:"states"`
	CaseInsensitive bool   `json:"case_insensitive"`
	Mask            string `json:"mask"`
}

// RouterOptions configures the router.
type RouterOptions struct {
	BasicAuthUsername string
	BasicAuthPassword string
	BodyLimit         string
}

// Router wraps echo.Echo around a single redactor.
type Router struct {
	*echo.Echo
	redactor *redaction.Redactor
}

type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i any) error {
	err := v.validate.Struct(i)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return nil
}

// newBasicAuthMiddleware creates a basic auth middleware using Echo's built-in BasicAuth.
// If username/password are empty strings, the middleware is disabled.
func newBasicAuthMiddleware(username, password string) echo.MiddlewareFunc {
	if username == "" || password == "" {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return next
		}
	}

	return middleware.BasicAuth(func(u, p string, _ echo.Context) (bool, error) {
		userMatch := subtle.ConstantTimeCompare([]byte(u), []byte(username)) == 1
		passMatch := subtle.ConstantTimeCompare([]byte(p), []byte(password)) == 1

		return userMatch && passMatch, nil
	})
}

// newZstdMiddleware transparently decodes request bodies sent with
// "Content-Encoding: zstd". The decoded body is capped at limit bytes.
func newZstdMiddleware(limit int64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			request := ctx.Request()
			if !strings.EqualFold(request.Header.Get(echo.HeaderContentEncoding), "zstd") {
				return next(ctx)
			}

			decoder, err := zstd.NewReader(request.Body)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "could not read zstd body")
			}
			defer decoder.Close()

			request.Body = http.MaxBytesReader(ctx.Response(), io.NopCloser(decoder), limit)
			request.Header.Del(echo.HeaderContentEncoding)
			request.ContentLength = -1

			return next(ctx)
		}
	}
}

func NewRouter(logger *slog.Logger, redactor *redaction.Redactor, opts RouterOptions) (*Router, error) {
	if redactor == nil {
		return nil, fmt.Errorf("router requires a redactor: %w", automaton.ErrInvalidArgument)
	}

	if opts.BodyLimit == "" {
		opts.BodyLimit = DefaultBodyLimit
	}

	limit, err := bytes.Parse(opts.BodyLimit)
	if err != nil {
		return nil, fmt.Errorf("could not parse body limit %q: %w", opts.BodyLimit, err)
	}

	router := &Router{
		Echo:     echo.New(),
		redactor: redactor,
	}

	router.HideBanner = true
	router.HidePort = true
	router.Validator = &requestValidator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}

	router.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string {
			return gonanoid.Must()
		},
	}))
	router.Use(slogecho.New(logger))
	router.Use(middleware.Recover())

	router.GET("/health", func(ctx echo.Context) error {
		return ctx.String(http.StatusOK, "OK")
	})

	api := router.Group("/api")
	api.Use(newBasicAuthMiddleware(opts.BasicAuthUsername, opts.BasicAuthPassword))
	api.Use(middleware.BodyLimit(opts.BodyLimit))
	api.Use(newZstdMiddleware(limit))

	api.POST("/redact", router.redact)
	api.POST("/scan", router.scan)
	api.POST("/contains", router.contains)
	api.GET("/stats", router.stats)

	logger.Info("server.router.initialized",
		"keywords", redactor.Matcher().Len(),
		"basic_auth", opts.BasicAuthUsername != "" && opts.BasicAuthPassword != "",
		"body_limit", opts.BodyLimit,
	)

	return router, nil
}

func bindText(ctx echo.Context) (string, error) {
	var request TextRequest

	err := ctx.Bind(&request)
	if err != nil {
		return "", err
	}

	err = ctx.Validate(&request)
	if err != nil {
		return "", err
	}

	return *request.Text, nil
}

func (r *Router) redact(ctx echo.Context) error {
	text, err := bindText(ctx)
	if err != nil {
		return err
	}

	spans := r.redactor.Spans(text)
	if spans == nil {
		spans = []automaton.Interval{}
	}

	return ctx.JSON(http.StatusOK, RedactResponse{
		Text:  r.redactor.Redact(text),
		Spans: spans,
	})
}

func (r *Router) scan(ctx echo.Context) error {
	text, err := bindText(ctx)
	if err != nil {
		return err
	}

	matches := r.redactor.Matcher().Scan(text)
	if matches == nil {
		matches = []automaton.Match{}
	}

	return ctx.JSON(http.StatusOK, ScanResponse{Matches: matches})
}

func (r *Router) contains(ctx echo.Context) error {
	text, err := bindText(ctx)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, ContainsResponse{
		Found: r.redactor.Matcher().ContainsAny(text),
	})
}

func (r *Router) stats(ctx echo.Context) error {
	matcher := r.redactor.Matcher()

	return ctx.JSON(http.StatusOK, StatsResponse{
		Keywords:        matcher.Len(),
		States:          matcher.States(),
		CaseInsensitive: matcher.CaseInsensitive(),
		Mask:            string(r.redactor.Mask()),
	})
}
