package server

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/roach88/semlayer/internal/intent"
	"github.com/roach88/semlayer/internal/store"
)

func (s *Server) health(c *fiber.Ctx) error {
	body := fiber.Map{
		"status":  "ok",
		"metrics": s.svc.Compiler.Model().Metrics().Len(),
	}
	if s.svc.Audit != nil {
		if err := s.svc.Audit.Ping(c.UserContext()); err != nil {
			s.logger.Error("audit log unavailable", "error", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "error": err.Error()})
		}
		seq, err := s.svc.Audit.LastSeq(c.UserContext())
		if err != nil {
			return err
		}
		body["audit_seq"] = seq
	}
	return c.JSON(body)
}

// compile takes a StructuredIntent body. ?execute=true also runs it.
func (s *Server) compile(c *fiber.Ctx) error {
	in, err := intent.Parse(c.Body())
	if err != nil {
		return err
	}
	ans, err := s.svc.Compile(c.UserContext(), "", in, c.QueryBool("execute"))
	if err != nil {
		return err
	}
	return c.JSON(ans)
}

type askRequest struct {
	Question string `json:"question"`
	Execute  bool   `json:"execute"`
}

func (s *Server) ask(c *fiber.Ctx) error {
	var req askRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		return fiber.NewError(fiber.StatusBadRequest, "question is required")
	}

	ans, err := s.svc.Ask(c.UserContext(), req.Question, req.Execute)
	if err != nil {
		return err
	}
	return c.JSON(ans)
}

func (s *Server) vocabulary(c *fiber.Ctx) error {
	return c.JSON(s.vocab)
}

// metric describes one certified metric with its rendered SQL.
func (s *Server) metric(c *fiber.Ctx) error {
	id := c.Params("id")
	m, err := s.svc.Compiler.Model().Metric(id)
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, "metric "+id+" is not defined")
	}
	sqlText, _ := s.svc.Compiler.Model().Metrics().CompileToSQL(id)
	deps, _ := s.svc.Compiler.Model().Metrics().Dependencies(id)
	return c.JSON(fiber.Map{
		"id":               m.ID,
		"label":            m.DisplayLabel(),
		"kind":             m.Kind,
		"description":      m.Description,
		"sql":              sqlText,
		"depends_on":       deps,
		"default_group_by": m.DefaultGroupBy,
	})
}

func (s *Server) segment(c *fiber.Ctx) error {
	id := c.Params("id")
	seg, err := s.svc.Compiler.Model().Segment(id)
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, "segment "+id+" is not defined")
	}
	sqlText, _ := s.svc.Compiler.Model().Taxonomy().CompileToSQL(id)
	return c.JSON(fiber.Map{
		"id":          seg.ID,
		"family":      seg.Family(),
		"label":       seg.DisplayLabel(),
		"description": seg.Description,
		"sql":         sqlText,
	})
}

func (s *Server) auditList(c *fiber.Ctx) error {
	if s.svc.Audit == nil {
		return fiber.NewError(fiber.StatusNotFound, "audit log is not enabled")
	}
	records, err := s.svc.Audit.List(c.UserContext(), store.Filter{
		MetricID:    c.Query("metric"),
		Fingerprint: c.Query("fingerprint"),
		FailedOnly:  c.QueryBool("failed"),
		Limit:       c.QueryInt("limit", 100),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"records": records})
}

// auditUsage counts successful compilations per metric.
func (s *Server) auditUsage(c *fiber.Ctx) error {
	if s.svc.Audit == nil {
		return fiber.NewError(fiber.StatusNotFound, "audit log is not enabled")
	}
	usage, err := s.svc.Audit.Usage(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"usage": usage})
}

func (s *Server) auditRecord(c *fiber.Ctx) error {
	if s.svc.Audit == nil {
		return fiber.NewError(fiber.StatusNotFound, "audit log is not enabled")
	}
	rec, err := s.svc.Audit.Read(c.UserContext(), c.Params("id"))
	if errors.Is(err, sql.ErrNoRows) {
		return fiber.NewError(fiber.StatusNotFound, "audit record not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(rec)
}
