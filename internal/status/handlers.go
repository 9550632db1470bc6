package status

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Guliveer/vitalis/cpumon/internal/models"
	"github.com/Guliveer/vitalis/cpumon/internal/render"
)

// Usage endpoint
func (s *Server) getUsage(c *fiber.Ctx) error {
	f, ok := s.opts.Frames.Latest()
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no usage sampled yet"})
	}
	return c.JSON(toUsageFrame(f))
}

// Watchdog table endpoint
func (s *Server) getThreads(c *fiber.Ctx) error {
	return c.JSON(s.threadTable())
}

// Health check endpoint
func (s *Server) healthCheck(c *fiber.Ctx) error {
	h := models.Health{
		Status:        "ok",
		Version:       s.opts.Version,
		Watchdog:      s.threadTable().State,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		Frames:        s.opts.Frames.Frames(),
		Host:          s.opts.Host,
	}
	if s.opts.Stats != nil {
		h.Pipeline = s.opts.Stats()
	}
	if h.Frames == 0 {
		h.Status = "starting"
	}
	return c.JSON(h)
}

func (s *Server) threadTable() models.ThreadTable {
	if s.opts.Threads == nil {
		return models.ThreadTable{State: "disabled", Threads: []models.WatchedThread{}}
	}

	threads := s.opts.Threads.Threads()
	table := models.ThreadTable{
		State:   s.opts.Threads.State().String(),
		Threads: make([]models.WatchedThread, 0, len(threads)),
	}
	for _, t := range threads {
		table.Threads = append(table.Threads, models.WatchedThread{
			Name:          t.Name,
			RegisteredAt:  t.RegisteredAt,
			LastSeen:      t.LastSeen,
			SilenceMillis: t.Silence.Milliseconds(),
			Beats:         t.Beats,
		})
	}
	return table
}

func toUsageFrame(f *render.Frame) models.UsageFrame {
	out := models.UsageFrame{Timestamp: f.At, Cores: make([]models.CoreUsage, 0, len(f.Usage))}
	for i, u := range f.Usage {
		if i == 0 {
			out.Overall = u.Percent
			continue
		}
		out.Cores = append(out.Cores, models.CoreUsage{Name: u.Name, Percent: u.Percent})
	}
	return out
}
