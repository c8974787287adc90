package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement-parser/internal/config"
	"github.com/insightdelivered/statement-parser/internal/extractor"
	"github.com/insightdelivered/statement-parser/internal/models"
	"github.com/insightdelivered/statement-parser/internal/parser"
	"github.com/insightdelivered/statement-parser/internal/rules"
	"github.com/insightdelivered/statement-parser/internal/writer"
)

// ParseResponse is the JSON response from the /api/parse endpoint.
type ParseResponse struct {
	Success         bool                 `json:"success"`
	Error           string               `json:"error,omitempty"`
	RequestID       string               `json:"requestId,omitempty"`
	Bank            string               `json:"bank,omitempty"`
	AccountNumber   string               `json:"accountNumber,omitempty"`
	StatementPeriod string               `json:"statementPeriod,omitempty"`
	Year            int                  `json:"year,omitempty"`
	Transactions    []models.Transaction `json:"transactions"`
	TotalIn         json.Number          `json:"totalIn,omitempty"`
	TotalOut        json.Number          `json:"totalOut,omitempty"`
	Count           int                  `json:"count"`
	Version         string               `json:"version,omitempty"`
	DebugLines      []models.DebugLine   `json:"debugLines,omitempty"`
}

// Deps are the collaborators a Handler needs. Only Extractor is required.
type Deps struct {
	Log       zerolog.Logger
	Extractor *extractor.Extractor
	Rules     *rules.Rules
	Metrics   StatementObserver
	Gatherer  prometheus.Gatherer
	Parser    config.ParserConfig
	Version   string
}

// StatementObserver is the part of metrics.Recorder the handler drives.
type StatementObserver interface {
	parser.Observer
	StatementDone(bank models.BankType, source string, err error, d time.Duration)
}

type parserKey struct {
	bank  models.BankType
	debug bool
}

// Handler holds the HTTP handlers for the API.
type Handler struct {
	deps Deps

	mu      sync.Mutex
	parsers map[parserKey]parser.Parser
}

// NewHandler returns a handler backed by deps.
func NewHandler(deps Deps) *Handler {
	return &Handler{deps: deps, parsers: make(map[parserKey]parser.Parser)}
}

// parserFor returns the shared parser for bank, building it on first use.
// Unsupported banks are never cached.
func (h *Handler) parserFor(bank models.BankType, debug bool) (parser.Parser, error) {
	key := parserKey{bank: bank, debug: debug}
	h.mu.Lock()
	defer h.mu.Unlock()
	if p, ok := h.parsers[key]; ok {
		return p, nil
	}

	opts := parser.Options{
		Year:           h.deps.Parser.DefaultYear,
		BlankLineLimit: h.deps.Parser.BlankLineLimit,
		Rules:          h.deps.Rules,
		Debug:          debug,
		Logger:         &h.deps.Log,
	}
	if h.deps.Metrics != nil {
		opts.Observer = h.deps.Metrics
	}
	p, err := parser.New(bank, opts)
	if err != nil {
		return nil, err
	}
	h.parsers[key] = p
	return p, nil
}

// NewApp builds the fiber app with middleware and routes registered.
func NewApp(h *Handler, cfg config.ServerConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "statement-parser",
		BodyLimit:             cfg.BodyLimitMB << 20,
		ReadTimeout:           time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout:          time.Duration(cfg.WriteTimeout) * time.Second,
		ErrorHandler:          h.errorHandler,
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type",
	}))
	h.RegisterRoutes(app)
	return app
}

// RegisterRoutes sets up the HTTP routes.
func (h *Handler) RegisterRoutes(app *fiber.App) {
	app.Get("/api/health", h.HandleHealth)
	app.Post("/api/parse", h.HandleParse)
	if h.deps.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(h.deps.Gatherer, promhttp.HandlerOpts{})))
	}
}

// HandleHealth reports liveness.
func (h *Handler) HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"version": h.deps.Version,
	})
}

// HandleParse accepts a multipart form with either a PDF in "file" or
// pre-extracted text in "text". Optional fields: bank, year, format
// (json, csv, xlsx), header and debug.
func (h *Handler) HandleParse(c *fiber.Ctx) (err error) {
	start := time.Now()
	reqID := c.GetRespHeader(fiber.HeaderXRequestID)
	log := h.deps.Log.With().Str("request_id", reqID).Logger()

	// bank stays unset until a parser accepts it, so metrics never see
	// client-supplied labels.
	var (
		bank   models.BankType
		source = "text"
	)
	if h.deps.Metrics != nil {
		defer func() {
			h.deps.Metrics.StatementDone(bank, source, err, time.Since(start))
		}()
	}

	year, err := formInt(c, "year", h.deps.Parser.DefaultYear)
	if err != nil {
		return err
	}
	format := strings.ToLower(c.FormValue("format", writer.FormatJSON))
	includeHeader := c.FormValue("header") != "false"
	debug := c.FormValue("debug") == "true"

	var pages []string
	if fh, ferr := c.FormFile("file"); ferr == nil {
		source = "pdf"
		data, rerr := readUpload(fh)
		if rerr != nil {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("Failed to read upload: %v", rerr))
		}
		pages, err = h.deps.Extractor.ExtractBytes(c.UserContext(), data)
		if err != nil {
			return err
		}
	} else if text := c.FormValue("text"); text != "" {
		pages = extractor.SplitPages(text)
	} else {
		return fiber.NewError(fiber.StatusBadRequest, "No statement supplied. Use form field 'file' or 'text'.")
	}

	var requested models.BankType
	if b := c.FormValue("bank"); b != "" {
		requested = models.BankType(strings.ToLower(b))
	} else if requested, err = parser.AutoDetect(pages); err != nil {
		return err
	}

	p, err := h.parserFor(requested, debug)
	if err != nil {
		return err
	}
	bank = requested
	info, err := p.ParseYear(pages, year)
	if err != nil {
		return err
	}

	log.Info().
		Str("bank", string(info.Bank)).
		Str("source", source).
		Int("transactions", len(info.Transactions)).
		Dur("elapsed", time.Since(start)).
		Msg("statement parsed")

	if format == writer.FormatJSON {
		return c.JSON(h.response(reqID, info))
	}
	return h.sendFile(c, format, includeHeader, info)
}

func (h *Handler) response(reqID string, info *models.StatementInfo) ParseResponse {
	// nil marshals to null, not []
	txns := info.Transactions
	if txns == nil {
		txns = []models.Transaction{}
	}

	var in, out decimal.Decimal
	for _, tx := range txns {
		if tx.Direction == models.DirectionIn {
			in = in.Add(tx.Amount)
		} else {
			out = out.Add(tx.Amount)
		}
	}

	return ParseResponse{
		Success:         true,
		RequestID:       reqID,
		Bank:            string(info.Bank),
		AccountNumber:   info.AccountNumber,
		StatementPeriod: info.StatementPeriod,
		Year:            info.Year,
		Transactions:    txns,
		TotalIn:         json.Number(in.StringFixed(2)),
		TotalOut:        json.Number(out.StringFixed(2)),
		Count:           len(txns),
		Version:         h.deps.Version,
		DebugLines:      info.DebugLines,
	}
}

func (h *Handler) sendFile(c *fiber.Ctx, format string, includeHeader bool, info *models.StatementInfo) error {
	w, err := writer.New(format, includeHeader)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	var buf bytes.Buffer
	if err := w.Write(&buf, info); err != nil {
		return fmt.Errorf("%s generation failed: %w", format, err)
	}
	c.Attachment("statement" + w.Extension())
	c.Set(fiber.HeaderContentType, w.ContentType())
	return c.Send(buf.Bytes())
}

// errorHandler renders every error as a ParseResponse.
func (h *Handler) errorHandler(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		h.deps.Log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	} else {
		h.deps.Log.Debug().Err(err).Str("path", c.Path()).Int("status", status).Msg("request rejected")
	}
	return c.Status(status).JSON(ParseResponse{
		Success:   false,
		Error:     err.Error(),
		RequestID: c.GetRespHeader(fiber.HeaderXRequestID),
	})
}

func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, parser.ErrUnknownBank):
		return fiber.StatusBadRequest
	case errors.Is(err, parser.ErrNoText), errors.Is(err, extractor.ErrUnreadable):
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

func formInt(c *fiber.Ctx, key string, def int) (int, error) {
	v := c.FormValue(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid %s %q", key, v))
	}
	return n, nil
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
